package api

import (
	"errors"
	"time"

	"dietcoach/internal/auth"
	"dietcoach/internal/logger"
	"dietcoach/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	refreshCookie   = "refresh_token"
	minPasscodeSize = 4
)

// ConfigHandler tells the client whether the passcode still has to be chosen.
func ConfigHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, ok, err := d.Tokens.OwnerHash(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}
		return c.JSON(fiber.Map{
			"setupRequired":  !ok,
			"pushConfigured": d.Push != nil && d.Push.Configured(),
		})
	}
}

// SetupHandler sets the passcode on first run and logs the owner in.
func SetupHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.PasscodeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if len(req.Passcode) < minPasscodeSize {
			return fiber.NewError(fiber.StatusBadRequest, "Passcode must be at least 4 characters")
		}

		hash, err := auth.HashPasscode(req.Passcode)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to hash passcode")
		}
		if err := d.Tokens.SetOwner(c.UserContext(), hash); err != nil {
			if errors.Is(err, auth.ErrAlreadySetUp) {
				return fiber.NewError(fiber.StatusConflict, "Passcode already set")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}

		token, err := issueTokens(c, d, d.Issuer.RefreshDays(req.Remember))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{Token: token})
	}
}

func LoginHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.PasscodeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		hash, ok, err := d.Tokens.OwnerHash(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "Passcode not set up yet")
		}
		if err := auth.CheckPasscode(hash, req.Passcode); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid passcode")
		}

		token, err := issueTokens(c, d, d.Issuer.RefreshDays(req.Remember))
		if err != nil {
			return err
		}
		return c.JSON(models.AuthResponse{Token: token})
	}
}

// RefreshTokenHandler trades a valid refresh cookie for a new access token and
// rotates the refresh token.
func RefreshTokenHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refreshToken := c.Cookies(refreshCookie)
		if refreshToken == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not found")
		}

		if _, err := d.Issuer.ValidateRefresh(refreshToken); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired refresh token")
		}

		ttlDays, err := d.Tokens.ValidateRefreshToken(c.UserContext(), refreshToken, time.Now())
		if err != nil {
			logger.Warn("refresh token rejected", "error", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not valid")
		}

		token, err := issueTokens(c, d, ttlDays)
		if err != nil {
			return err
		}
		if err := d.Tokens.RevokeRefreshToken(c.UserContext(), refreshToken); err != nil {
			logger.Warn("failed to revoke rotated refresh token", "error", err)
		}
		return c.JSON(models.AuthResponse{Token: token})
	}
}

func LogoutHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if old := c.Cookies(refreshCookie); old != "" {
			_ = d.Tokens.RevokeRefreshToken(c.UserContext(), old)
		}
		setRefreshCookie(c, d.Issuer, "", time.Now().Add(-1*time.Hour))
		return c.JSON(fiber.Map{
			"message": "Logged out successfully",
		})
	}
}

// issueTokens signs a new access token and a refresh token valid for days,
// persists the refresh token and sets its cookie.
func issueTokens(c *fiber.Ctx, d Deps, days int) (string, error) {
	accessToken, err := d.Issuer.AccessToken()
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate token")
	}
	refreshToken, err := d.Issuer.RefreshToken(days)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate refresh token")
	}

	expiresAt := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	if err := d.Tokens.StoreRefreshToken(c.UserContext(), refreshToken, expiresAt, days); err != nil {
		logger.Error("failed to store refresh token", "error", err)
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to store refresh token")
	}
	setRefreshCookie(c, d.Issuer, refreshToken, expiresAt)
	return accessToken, nil
}

func setRefreshCookie(c *fiber.Ctx, issuer *auth.Issuer, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   issuer.CookieSecure(),
		SameSite: "Lax",
		Path:     "/api/auth",
	})
}

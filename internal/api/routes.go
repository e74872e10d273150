package api

import (
	"dietcoach/internal/auth"
	"dietcoach/internal/coach"
	"dietcoach/internal/notify"
	"dietcoach/internal/state"

	"github.com/gofiber/fiber/v2"
)

// Deps are the services the handlers work with.
type Deps struct {
	Issuer *auth.Issuer
	Tokens *auth.Store
	State  *state.Container
	Coach  *coach.Coach
	Push   *notify.WebPush
}

func SetupRoutes(app *fiber.App, d Deps) {
	api := app.Group("/api")

	// Public configuration for the client's first screen
	api.Get("/config", ConfigHandler(d))

	authGroup := api.Group("/auth")
	authGroup.Post("/setup", SetupHandler(d))
	authGroup.Post("/login", LoginHandler(d))
	authGroup.Post("/refresh", RefreshTokenHandler(d))
	authGroup.Post("/logout", LogoutHandler(d))

	// public, registered before the protected group
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler(d))

	protected := api.Group("/", AuthMiddleware(d.Issuer))

	protected.Get("/state", GetStateHandler(d))
	protected.Get("/messages", ListMessagesHandler(d))
	protected.Post("/messages", SendMessageHandler(d))
	protected.Post("/onboarding", OnboardingHandler(d))

	push := protected.Group("/push")
	push.Post("/subscribe", SubscribePushHandler(d))
	push.Delete("/unsubscribe", UnsubscribePushHandler(d))
	push.Post("/test", SendTestPushHandler(d))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

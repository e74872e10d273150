package api

import (
	"errors"
	"fmt"

	"dietcoach/internal/logger"
	"dietcoach/internal/models"
	"dietcoach/internal/notify"
	"dietcoach/internal/reminder"

	"github.com/gofiber/fiber/v2"
)

func SubscribePushHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var sub models.PushSubscription
		if err := c.BodyParser(&sub); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Missing subscription fields")
		}

		if err := d.Push.Subscribe(c.UserContext(), sub); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

func UnsubscribePushHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Endpoint string `json:"endpoint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if err := d.Push.Unsubscribe(c.UserContext(), body.Endpoint); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// VapidPublicKeyHandler returns the VAPID public key for client subscription.
func VapidPublicKeyHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d.Push == nil || d.Push.PublicKey() == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured")
		}
		return c.JSON(fiber.Map{
			"publicKey": d.Push.PublicKey(),
		})
	}
}

// SendTestPushHandler sends a real notification to every subscribed device.
func SendTestPushHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d.Push == nil || !d.Push.Configured() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured. Set VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY, and VAPID_SUBJECT.")
		}

		s := d.State.Snapshot(c.UserContext())
		payload := notify.Payload{
			Title: reminder.NotificationTitle + " — Test Notification",
			Body:  fmt.Sprintf("%d / %d kcal today. Reminders will show up like this.", s.Stats.CaloriesConsumed, s.Profile.DailyCalorieTarget),
			Tag:   d.Push.Tag("dietcoach-test"),
		}

		sent, err := d.Push.Send(c.UserContext(), payload)
		if errors.Is(err, notify.ErrNoSubscriptions) {
			return fiber.NewError(fiber.StatusNotFound, "No push subscriptions found")
		}
		if err != nil {
			logger.Warn("test push failed", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to send test notification: "+err.Error())
		}

		return c.JSON(fiber.Map{
			"success": true,
			"sent":    sent,
			"message": "Test notification sent",
		})
	}
}

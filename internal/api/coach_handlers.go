package api

import (
	"errors"

	"dietcoach/internal/coach"
	"dietcoach/internal/models"

	"github.com/gofiber/fiber/v2"
)

func GetStateHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := d.State.Snapshot(c.UserContext())
		replies := s.QuickReplies
		if replies == nil {
			replies = []string{}
		}
		return c.JSON(models.StateResponse{
			Profile:      s.Profile,
			Stats:        s.Stats,
			QuickReplies: replies,
			Pending:      s.Pending,
		})
	}
}

func ListMessagesHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := d.State.Snapshot(c.UserContext())
		return c.JSON(s.Messages)
	}
}

// SendMessageHandler runs one conversational turn. It blocks until the
// model (and image generator, if asked) has answered.
func SendMessageHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		res, err := d.Coach.SendMessage(c.UserContext(), req.Text, req.Image)
		if errors.Is(err, coach.ErrEmptyMessage) {
			return fiber.NewError(fiber.StatusBadRequest, "Message text or image is required")
		}
		if err != nil {
			return err
		}
		if res.QuickReplies == nil {
			res.QuickReplies = []string{}
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

func OnboardingHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p models.UserProfile
		if err := c.BodyParser(&p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		profile, err := d.Coach.CompleteOnboarding(c.UserContext(), p)
		if errors.Is(err, coach.ErrInvalidProfile) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return err
		}
		return c.JSON(profile)
	}
}

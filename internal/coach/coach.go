// Package coach runs one conversational turn: it records the user's message,
// asks the model, applies the directives hidden in the reply and records the
// coach's answer.
package coach

import (
	"context"
	"errors"
	"strings"

	"dietcoach/internal/clock"
	"dietcoach/internal/directive"
	"dietcoach/internal/logger"
	"dietcoach/internal/models"
	"dietcoach/internal/state"

	"github.com/google/uuid"
)

const (
	FallbackReply    = "Oh no! My connection seems a bit weak right now. Can you say that again?"
	ImageUnavailable = "Image unavailable — would you still like the recipe?"

	DefaultHistoryWindow = 15
	maxMealLabel         = 30
)

var (
	ErrEmptyMessage   = errors.New("message needs text or an image")
	ErrInvalidProfile = errors.New("invalid profile")
)

var imageFallbackReplies = []string{"Yes", "No"}

// ModelClient produces the coach's raw reply, directives included, for the
// given transcript window.
type ModelClient interface {
	Reply(ctx context.Context, window []models.Message, profile models.UserProfile, stats models.DailyStats) (string, error)
}

// ImageGenerator returns a data URI for prompt, or "" when nothing was made.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Coach struct {
	state         *state.Container
	clock         clock.Clock
	model         ModelClient
	images        ImageGenerator
	historyWindow int
}

// New builds a Coach. A nil model always answers with FallbackReply and a nil
// image generator always reports the image as unavailable.
func New(st *state.Container, clk clock.Clock, model ModelClient, images ImageGenerator, historyWindow int) *Coach {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Coach{
		state:         st,
		clock:         clk,
		model:         model,
		images:        images,
		historyWindow: historyWindow,
	}
}

// SendMessage runs a full turn and returns the coach's message together with
// the quick replies now on offer.
func (c *Coach) SendMessage(ctx context.Context, text, image string) (models.SendMessageResponse, error) {
	if strings.TrimSpace(text) == "" && image == "" {
		return models.SendMessageResponse{}, ErrEmptyMessage
	}

	userMsg := models.NewMessage(models.RoleUser, text, image, c.clock.Now())
	st := c.state.Dispatch(ctx,
		state.QuickRepliesSet{},
		state.MessageAppended{Message: userMsg},
		state.PendingSet{Pending: true},
	)

	raw := c.ask(ctx, st)
	reply := directive.Parse(raw)

	c.state.Dispatch(ctx, c.statEvents(reply, text, image)...)

	finalText := reply.Text
	var botImage string
	var tail []state.Event
	if prompt, ok := reply.ImagePrompt(); ok {
		botImage = c.generate(ctx, prompt)
		if botImage == "" {
			finalText = ImageUnavailable
			tail = append(tail, state.QuickRepliesSet{Options: imageFallbackReplies})
		}
	}

	modelMsg := models.NewMessage(models.RoleModel, finalText, botImage, c.clock.Now())
	tail = append(tail,
		state.MessageAppended{Message: modelMsg},
		state.PendingSet{Pending: false},
	)
	st = c.state.Dispatch(ctx, tail...)

	return models.SendMessageResponse{Message: modelMsg, QuickReplies: st.QuickReplies}, nil
}

func (c *Coach) ask(ctx context.Context, st state.State) string {
	if c.model == nil {
		return FallbackReply
	}
	raw, err := c.model.Reply(ctx, st.Window(c.historyWindow), st.Profile, st.Stats)
	if err != nil {
		logger.Warn("model call failed", "error", err)
		return FallbackReply
	}
	return raw
}

// statEvents turns the reply's directives into state changes, in the order
// target, calories, water, buttons.
func (c *Coach) statEvents(reply directive.Reply, text, image string) []state.Event {
	now := c.clock.Now()
	var events []state.Event

	if kcal, ok := reply.NewTarget(); ok && kcal > 0 {
		events = append(events, state.TargetSet{Kcal: kcal})
	}
	if kcal, ok := reply.CaloriesToAdd(); ok && kcal > 0 {
		events = append(events, state.MealLogged{Meal: models.MealLog{
			ID:          uuid.NewString(),
			Time:        clock.TimeString(now),
			Description: mealLabel(text, image),
			Calories:    kcal,
		}})
	}
	if ml, ok := reply.WaterToAdd(); ok && ml > 0 {
		events = append(events, state.WaterAdded{ML: ml, At: now})
	}
	if options, ok := reply.Buttons(); ok {
		events = append(events, state.QuickRepliesSet{Options: options})
	}
	return events
}

func mealLabel(text, image string) string {
	switch {
	case strings.TrimSpace(text) == "" && image != "":
		return "Photo meal"
	case len([]rune(text)) > maxMealLabel:
		return "Meal/Snack"
	}
	return text
}

func (c *Coach) generate(ctx context.Context, prompt string) string {
	if c.images == nil {
		return ""
	}
	uri, err := c.images.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("image generation failed", "error", err)
		return ""
	}
	return uri
}

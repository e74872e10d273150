package llm

import (
	"context"
	"fmt"
	"time"

	"dietcoach/internal/clock"
	"dietcoach/internal/models"
)

// EmptyReply stands in for a completion that came back without text.
const EmptyReply = "Sorry, I couldn't generate a response."

type ChatClient struct {
	client
	model       string
	temperature float64
	clock       clock.Clock
}

func NewChatClient(baseURL, apiKey, model string, temperature float64, timeout time.Duration, clk clock.Clock) *ChatClient {
	return &ChatClient{
		client:      newClient(baseURL, apiKey, timeout),
		model:       model,
		temperature: temperature,
		clock:       clk,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Reply sends the persona, the current-day context and window to the model
// and returns its raw text, directives included.
func (c *ChatClient) Reply(ctx context.Context, window []models.Message, profile models.UserProfile, stats models.DailyStats) (string, error) {
	if len(window) == 0 {
		return "", fmt.Errorf("no message content to send")
	}

	msgs := make([]chatMessage, 0, len(window)+1)
	msgs = append(msgs, chatMessage{
		Role:    "system",
		Content: persona + contextBlock(c.clock.Now(), profile, stats),
	})
	for _, m := range window {
		msgs = append(msgs, toChatMessage(m))
	}

	var out chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    msgs,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	if out.Choices[0].Message.Content == "" {
		return EmptyReply, nil
	}
	return out.Choices[0].Message.Content, nil
}

func toChatMessage(m models.Message) chatMessage {
	// assistant turns carry text only
	if m.Role == models.RoleModel {
		return chatMessage{Role: "assistant", Content: m.Text}
	}
	if m.Image == "" {
		return chatMessage{Role: "user", Content: m.Text}
	}

	parts := []contentPart{{Type: "image_url", ImageURL: &imageURL{URL: m.Image}}}
	if m.Text != "" {
		parts = append(parts, contentPart{Type: "text", Text: m.Text})
	}
	return chatMessage{Role: "user", Content: parts}
}

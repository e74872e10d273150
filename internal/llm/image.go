package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type ImageClient struct {
	client
	model string
}

func NewImageClient(baseURL, apiKey, model string, timeout time.Duration) *ImageClient {
	return &ImageClient{client: newClient(baseURL, apiKey, timeout), model: model}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// Generate returns the first image as a data URI. Hosted URLs are downloaded
// and inlined. An empty result is "", nil.
func (c *ImageClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := imageRequest{Model: c.model, Prompt: prompt, N: 1, Size: "1024x1024"}
	// dall-e models default to hosted URLs; newer image models always return base64
	if strings.HasPrefix(c.model, "dall-e") {
		req.ResponseFormat = "b64_json"
	}

	var out imageResponse
	if err := c.post(ctx, "/images/generations", req, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 {
		return "", nil
	}
	if b64 := out.Data[0].B64JSON; b64 != "" {
		return "data:image/png;base64," + b64, nil
	}
	if url := out.Data[0].URL; url != "" {
		data, contentType, err := c.fetch(ctx, url)
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(contentType, "image/") {
			return "", fmt.Errorf("hosted image has content type %q", contentType)
		}
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	return "", nil
}

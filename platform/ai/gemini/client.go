// Package gemini implements the completion contract against the Gemini API
// via the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"converse_backend/platform/ai/completion"

	"google.golang.org/genai"
)

// Config for the Gemini client.
type Config struct {
	APIKey string
	Model  string
}

// Client adapts the genai SDK to the completion contract.
type Client struct {
	model  string
	client *genai.Client
}

// NewClient creates a Gemini completion client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{model: cfg.Model, client: client}, nil
}

// Complete implements completion.Client.
func (c *Client) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		Temperature:     genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, mapError(err)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &completion.Response{
		Text:   resp.Text(),
		Tokens: tokens,
	}, nil
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return completion.ErrRateLimited
		case apiErr.Code == http.StatusPaymentRequired:
			return completion.ErrPaymentRequired
		case apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("gemini returned %d: %w", apiErr.Code, completion.ErrUnavailable)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("completion timed out: %w", completion.ErrUnavailable)
	}
	return fmt.Errorf("completion request failed: %w", completion.ErrUnavailable)
}

// Package moonshot implements the completion contract against Moonshot's
// OpenAI-compatible chat completions API.
package moonshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"converse_backend/platform/ai/completion"
)

// Config for the Moonshot client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client calls the Moonshot chat completions endpoint.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a Moonshot completion client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.moonshot.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "kimi-k2-turbo-preview"
	}
	return &Client{
		config: cfg,
		http:   &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error interface{} `json:"error"`
}

// Complete implements completion.Client.
func (c *Client) Complete(ctx context.Context, req completion.Request) (*completion.Response, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("completion timed out: %w", completion.ErrUnavailable)
		}
		return nil, fmt.Errorf("completion request failed: %w", completion.ErrUnavailable)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, completion.ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, completion.ErrPaymentRequired
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("completion provider returned %d: %w", resp.StatusCode, completion.ErrUnavailable)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("completion provider returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response had no choices")
	}

	return &completion.Response{
		Text:   parsed.Choices[0].Message.Content,
		Tokens: parsed.Usage.TotalTokens,
	}, nil
}

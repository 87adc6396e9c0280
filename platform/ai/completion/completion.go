// Package completion defines the contract for the external text-completion
// capability. Providers live in sibling packages; the automation core only
// depends on this interface and its typed failures.
package completion

import (
	"context"
	"errors"
)

// Message is one entry of the ordered conversation transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
}

// Response is a successful completion result.
type Response struct {
	Text   string
	Tokens int
}

// Typed provider failures. All of them leave the caller's state untouched;
// ErrRateLimited and ErrUnavailable may be retried with the same input.
var (
	ErrRateLimited     = errors.New("completion provider rate limited")
	ErrPaymentRequired = errors.New("completion provider payment required")
	ErrUnavailable     = errors.New("completion provider unavailable")
)

// Retryable reports whether the caller may retry the same request.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// FailureKind returns the metric label for a typed failure, or "" if err
// is not a completion failure.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrPaymentRequired):
		return "payment_required"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return ""
	}
}

// Client is the text-completion capability consumed by the session state machine.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

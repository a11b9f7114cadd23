// Package llm sends prompts to a chat-completion backend.
package llm

import (
	"context"
	"errors"
)

// ErrCompletion marks any failure to obtain an answer from the model.
var ErrCompletion = errors.New("completion failed")

// Role values for Message.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Request is one completion call. Temperature and TopP are forwarded as-is.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	TopP        float32
}

// Completer returns the model's reply to a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

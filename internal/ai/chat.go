// Package ai defines the provider-neutral chat contract the interview is built on.
package ai

import (
	"context"
	"errors"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrUnreachable reports that the model endpoint could not be contacted.
	ErrUnreachable = errors.New("model endpoint unreachable")
	// ErrModelMissing reports that the endpoint does not serve the configured model.
	ErrModelMissing = errors.New("model not available on endpoint")
)

// Message is a single chat message sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Request is one round trip to the model.
type Request struct {
	Messages []Message
	// JSON asks the model to answer with a single JSON object.
	JSON bool
	// Stream delivers the reply incrementally through the ChunkFunc.
	Stream bool
}

// ChunkFunc receives reply fragments as they arrive. Returning an error aborts the call.
type ChunkFunc func(chunk string) error

// Chatter sends a request to a model and returns the complete reply.
type Chatter interface {
	Chat(ctx context.Context, req Request, fn ChunkFunc) (string, error)
}

// UserPrompt is a convenience for single-message requests.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

// Package history keeps the server-side transcript of each chat session.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history: session not found")

// ToolCall records one tool run made while answering a message.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result,omitempty"`
}

type Entry struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Provider  string     `json:"provider,omitempty"`
	Model     string     `json:"model,omitempty"`
	AgentUsed string     `json:"agent_used,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Store holds per-session transcripts that expire after a period without
// access. Get and Append refresh the expiry.
type Store interface {
	Create(ctx context.Context, sessionID string) (time.Time, error)
	// Append creates the session when it does not exist.
	Append(ctx context.Context, sessionID string, entries ...Entry) error
	Get(ctx context.Context, sessionID string) ([]Entry, error)
	Delete(ctx context.Context, sessionID string) error
}

// Window returns the last n entries, or all of them when n <= 0.
func Window(entries []Entry, n int) []Entry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

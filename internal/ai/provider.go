package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider turns a conversation into one assistant reply.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ProviderConfig carries the per-request generation settings a factory
// builds a provider from. An empty APIKey means "use the server key".
type ProviderConfig struct {
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

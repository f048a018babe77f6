// Package llm defines the Provider interface for chat-completion backends.
//
// An LLM provider wraps a remote model API (e.g., OpenAI, Groq, or a local
// Ollama instance) and exposes a uniform synchronous request/response interface
// so the conversation session stays decoupled from any specific SDK.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Role identifies the author of a [Message].
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a recognised message role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry in a conversation. Messages are immutable once
// created; an ordered sequence of them forms the transcript sent to the model.
type Message struct {
	// Role is the author of the message.
	Role Role

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
//
// Messages is the ordered conversation slice: exactly one system message at
// position 0 followed by the bounded recent history, oldest first. Callers
// should treat a zero-value request as invalid; at minimum Messages must be
// non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation sent to the model.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests the
	// provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// Usage holds token accounting information returned by the backend. Counts are
// in the model's native token unit and may differ between providers for the
// same textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the model's reply to a [CompletionRequest].
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair, when the
	// backend reports it.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives; on error no partial response is returned.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens the given messages would consume in
	// the model's context window. The result need not be exact but should not
	// undercount; implementations may approximate locally.
	CountTokens(messages []Message) (int, error)

	// Model returns the identifier of the model this provider targets
	// (e.g., "llama3-70b-8192"). Constant for the lifetime of the Provider.
	Model() string
}

// Package session manages the bounded, ordered dialogue history of one
// conversation and turns user utterances into chat-backend requests.
//
// The system instruction is stored out-of-band from the history, so a request
// can never contain a duplicated system message: the request builder prepends
// it exactly once, followed by at most the last N history entries
// (oldest first). History holds user and assistant messages only and is
// mutated exclusively by [Session.Reply] and [Session.Clear].
//
// Session performs no internal locking. The pipeline processes one utterance
// at a time, which serializes all access; callers that add entry points must
// preserve that discipline.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxhollow/voxd/pkg/provider/llm"
)

// ErrEmptyInput is returned by [Session.Reply] when the user text is empty or
// whitespace. The accompanying reply text is the fixed apology; history is
// not mutated.
var ErrEmptyInput = errors.New("session: empty input")

const (
	// defaultHistoryWindow is how many recent history messages are included in
	// a backend request, in addition to the system message.
	defaultHistoryWindow = 10

	// EmptyInputReply is spoken when the user said nothing recognisable.
	EmptyInputReply = "I didn't catch that. Could you please repeat?"

	// BackendFailureReply is spoken when the chat backend is unreachable. The
	// user's turn stays in history so it is retried in context next turn.
	BackendFailureReply = "I'm having trouble connecting to my language model. Please try again later."
)

// DefaultSystemPrompt is the assistant's standing instruction: keep answers
// short enough to be worth reading aloud.
const DefaultSystemPrompt = "You are a helpful assistant that provides direct, concise answers without unnecessary text. " +
	"Keep responses brief, straightforward, and to the point. " +
	"Answer questions directly without long introductions or excessive explanations. " +
	"Use simple language and be efficient with words."

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithHistoryWindow sets how many recent history messages are included in
// each backend request. The default is 10.
func WithHistoryWindow(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithTemperature sets the sampling temperature sent with each request.
// Zero (the default) requests the provider default.
func WithTemperature(t float64) Option {
	return func(s *Session) { s.temperature = t }
}

// WithMaxTokens caps the completion length requested from the backend.
func WithMaxTokens(n int) Option {
	return func(s *Session) { s.maxTokens = n }
}

// Session owns one conversation: the fixed system message and the ordered,
// append-only history of user/assistant turns.
type Session struct {
	provider    llm.Provider
	system      llm.Message
	window      int
	temperature float64
	maxTokens   int

	history []llm.Message
}

// New creates a Session talking to provider with the given system prompt.
// An empty systemPrompt falls back to [DefaultSystemPrompt].
func New(provider llm.Provider, systemPrompt string, opts ...Option) *Session {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	s := &Session{
		provider: provider,
		system:   llm.Message{Role: llm.RoleSystem, Content: systemPrompt},
		window:   defaultHistoryWindow,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Reply processes one user turn and returns the assistant's reply text.
//
// The returned text is always speakable, even on failure:
//
//   - Empty or whitespace input returns a fixed apology together with
//     [ErrEmptyInput]; history is untouched.
//   - On backend failure the user message stays in history (it is retried in
//     context next turn), no assistant message is appended, and a fixed
//     fallback string is returned together with the wrapped backend error.
//   - On success the user and assistant messages are appended (history grows
//     by exactly two) and the assistant text is returned with a nil error.
func (s *Session) Reply(ctx context.Context, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return EmptyInputReply, ErrEmptyInput
	}

	s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: userText})

	resp, err := s.provider.Complete(ctx, s.buildRequest())
	if err != nil {
		slog.Error("chat backend request failed", "model", s.provider.Model(), "err", err)
		return BackendFailureReply, fmt.Errorf("session: chat backend: %w", err)
	}

	s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
	return resp.Content, nil
}

// Clear empties the history while keeping the system message. Idempotent.
func (s *Session) Clear() {
	s.history = s.history[:0]
}

// History returns a copy of the current dialogue history (user and assistant
// messages only; the system message is held separately).
func (s *Session) History() []llm.Message {
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// SystemPrompt returns the fixed system instruction text.
func (s *Session) SystemPrompt() string {
	return s.system.Content
}

// buildRequest assembles the bounded backend request: the system message at
// position 0 followed by at most the last window history entries, oldest
// first. The request therefore never exceeds window+1 messages.
func (s *Session) buildRequest() llm.CompletionRequest {
	start := 0
	if len(s.history) > s.window {
		start = len(s.history) - s.window
	}
	recent := s.history[start:]

	messages := make([]llm.Message, 0, len(recent)+1)
	messages = append(messages, s.system)
	messages = append(messages, recent...)

	return llm.CompletionRequest{
		Messages:    messages,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
}

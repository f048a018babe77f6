package anyllm

import (
	"testing"

	"github.com/voxhollow/voxd/pkg/provider/llm"
)

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_Messages(t *testing.T) {
	p := &Provider{model: "llama3-70b-8192"}

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are helpful."},
			{Role: llm.RoleUser, Content: "Hello!"},
			{Role: llm.RoleAssistant, Content: "Hi there!"},
		},
	}

	params := p.buildParams(req)
	if params.Model != "llama3-70b-8192" {
		t.Errorf("model: got %q, want llama3-70b-8192", params.Model)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(params.Messages))
	}
	for i, want := range []struct{ role, content string }{
		{"system", "You are helpful."},
		{"user", "Hello!"},
		{"assistant", "Hi there!"},
	} {
		if params.Messages[i].Role != want.role {
			t.Errorf("message %d role: got %q, want %q", i, params.Messages[i].Role, want.role)
		}
		if params.Messages[i].Content != want.content {
			t.Errorf("message %d content: got %q, want %q", i, params.Messages[i].Content, want.content)
		}
	}
}

func TestBuildParams_OptionalFields(t *testing.T) {
	p := &Provider{model: "llama3-8b-8192"}

	params := p.buildParams(llm.CompletionRequest{Temperature: 0.7, MaxTokens: 512})
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("temperature: got %v, want 0.7", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("max tokens: got %v, want 512", params.MaxTokens)
	}

	params = p.buildParams(llm.CompletionRequest{})
	if params.Temperature != nil {
		t.Errorf("zero temperature should be omitted, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("zero max tokens should be omitted, got %v", *params.MaxTokens)
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

func TestCountTokens_Approximation(t *testing.T) {
	p := &Provider{model: "llama3-70b-8192"}

	// 16 chars -> 4 content tokens + 4 overhead.
	n, err := p.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "sixteen chars ab"}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n != 8 {
		t.Errorf("got %d tokens, want 8", n)
	}

	n, err = p.CountTokens(nil)
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n != 0 {
		t.Errorf("got %d tokens for no messages, want 0", n)
	}
}

// ── Constructors ──────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "llama3-70b-8192"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("groq", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("not-a-provider", "some-model"); err == nil {
		t.Error("expected error for unsupported provider name")
	}
}

func TestNew_Model(t *testing.T) {
	p, err := NewOllama("llama3")
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	if p.Model() != "llama3" {
		t.Errorf("Model() = %q, want llama3", p.Model())
	}
}

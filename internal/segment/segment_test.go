package segment

import (
	"strings"
	"testing"
)

func TestContainsCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"fenced block", "Sure:\n```python\nprint(1)\n```", true},
		{"def keyword", "Try def main(): pass", true},
		{"import statement", "You need import os first", true},
		{"include directive", "#include <stdio.h>", true},
		{"java entry point", "public static void main(String[] args)", true},
		{"plain prose", "The capital of France is Paris.", false},
		{"empty", "", false},
		{"word containing def but no space", "defer is a Go keyword", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsCode(tt.text); got != tt.want {
				t.Errorf("ContainsCode(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSpeakableIntro(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "prose before fence",
			text: "Sure, here:\n```python\nprint(1)\n```",
			want: "Sure, here:",
		},
		{
			name: "code only gets placeholder",
			text: "```go\nfmt.Println(1)\n```",
			want: "Here's the code you requested.",
		},
		{
			name: "short intro gets placeholder",
			text: "Code:\n```js\nconsole.log(1)\n```",
			want: "Here's the code you requested.",
		},
		{
			name: "earliest indicator wins",
			text: "Use import sys before the ```block```",
			want: "Here's the code you requested.",
		},
		{
			name: "plain prose unchanged",
			text: "The answer is 42.",
			want: "The answer is 42.",
		},
		{
			name: "empty unchanged",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpeakableIntro(tt.text); got != tt.want {
				t.Errorf("SpeakableIntro(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestChunkForSynthesis(t *testing.T) {
	t.Run("round-trips and bounds chunk length", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 55) // 550 chars
		chunks := ChunkForSynthesis(text, 200)

		if want := 3; len(chunks) != want { // ceil(550/200)
			t.Fatalf("expected %d chunks, got %d", want, len(chunks))
		}
		for i, c := range chunks {
			if len(c) > 200 {
				t.Errorf("chunk %d has length %d > 200", i, len(c))
			}
		}
		if got := strings.Join(chunks, ""); got != text {
			t.Error("concatenated chunks do not reproduce the input")
		}
	})

	t.Run("short text is a single chunk", func(t *testing.T) {
		chunks := ChunkForSynthesis("hello", 200)
		if len(chunks) != 1 || chunks[0] != "hello" {
			t.Fatalf("got %v, want [hello]", chunks)
		}
	})

	t.Run("exact multiple has no trailing empty chunk", func(t *testing.T) {
		chunks := ChunkForSynthesis(strings.Repeat("x", 400), 200)
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d", len(chunks))
		}
	})

	t.Run("empty input yields no chunks", func(t *testing.T) {
		if chunks := ChunkForSynthesis("", 200); chunks != nil {
			t.Fatalf("expected nil, got %v", chunks)
		}
	})

	t.Run("multibyte runes are never split", func(t *testing.T) {
		text := strings.Repeat("ü", 5)
		chunks := ChunkForSynthesis(text, 2)
		if got := strings.Join(chunks, ""); got != text {
			t.Errorf("concatenation mismatch: %q != %q", got, text)
		}
		for i, c := range chunks {
			if !strings.ContainsRune("ü", []rune(c)[0]) {
				t.Errorf("chunk %d starts mid-rune: %q", i, c)
			}
		}
	})
}

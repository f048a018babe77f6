// Package segment holds the pure text-processing helpers that decide what
// part of an assistant reply is speakable and how to slice it for the
// synthesis backend.
//
// Replies containing code are not read aloud verbatim — only the
// introductory prose before the first code marker is spoken, or a fixed
// placeholder when there is no usable introduction. Speakable text is then
// split into bounded chunks because the synthesis endpoint rejects long
// inputs.
//
// All functions are pure and safe for concurrent use.
package segment

import "strings"

// DefaultChunkLen is the chunk size used for the synthesis backend, matching
// its text-length limit.
const DefaultChunkLen = 200

// codePlaceholder is spoken in place of a reply that is essentially all code.
const codePlaceholder = "Here's the code you requested."

// minIntroLen is the minimum usable introduction length; shorter prefixes are
// replaced by the placeholder.
const minIntroLen = 10

// codeIndicators are the substrings that mark a reply as containing code:
// fenced blocks plus common keyword and import tokens across languages.
// First match short-circuits; the order is irrelevant.
var codeIndicators = []string{
	"```",
	"def ",
	"class ",
	"function",
	"public static void",
	"import ",
	"#include",
	"package ",
	"from ",
}

// ContainsCode reports whether text contains any code-indicating substring.
func ContainsCode(text string) bool {
	for _, indicator := range codeIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}

// SpeakableIntro returns the part of text worth speaking aloud.
//
// When text contains code, the result is the trimmed prose before the first
// code indicator — or a fixed placeholder when that prefix is empty or
// shorter than 10 characters. Text without code is returned unchanged.
func SpeakableIntro(text string) string {
	if !ContainsCode(text) {
		return text
	}

	cut := len(text)
	for _, indicator := range codeIndicators {
		if idx := strings.Index(text, indicator); idx >= 0 && idx < cut {
			cut = idx
		}
	}

	intro := strings.TrimSpace(text[:cut])
	if len(intro) < minIntroLen {
		return codePlaceholder
	}
	return intro
}

// ChunkForSynthesis splits text into contiguous, non-overlapping chunks of at
// most maxLen runes, preserving the original order. The last chunk may be
// shorter; empty input yields nil. Concatenating the chunks reproduces text
// exactly.
//
// maxLen values below 1 fall back to [DefaultChunkLen].
func ChunkForSynthesis(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if maxLen < 1 {
		maxLen = DefaultChunkLen
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := min(start+maxLen, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

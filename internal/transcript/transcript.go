// Package transcript post-processes recognized speech before it reaches the
// conversation. Speech recognizers routinely mangle uncommon vocabulary
// (product names, technical terms, proper nouns) into phonetically similar
// everyday words. The corrector realigns such words against a configured
// vocabulary so the assistant is asked about "Kubernetes", not "cooper
// netties".
package transcript

import (
	"strings"
	"sync"
)

// Correction records one vocabulary realignment applied to a transcript.
type Correction struct {
	// Original is the span of recognized text that was replaced.
	Original string

	// Corrected is the vocabulary term it was replaced with.
	Corrected string

	// Confidence is the similarity score that justified the replacement,
	// in [0, 1].
	Confidence float64
}

// Matcher decides whether a recognized word or phrase should be realigned to
// a vocabulary term.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
type Matcher interface {
	Match(word string, vocabulary []string) (corrected string, confidence float64, matched bool)
}

// Corrector applies vocabulary realignment to transcripts using a [Matcher].
// The zero value with a nil matcher passes text through untouched. Corrector
// is safe for concurrent use; the vocabulary can be swapped at runtime with
// [Corrector.SetVocabulary].
type Corrector struct {
	matcher Matcher

	mu         sync.RWMutex
	vocabulary []string
	maxWindow  int
}

// NewCorrector builds a Corrector realigning against vocabulary. A nil
// matcher or empty vocabulary yields a pass-through corrector.
func NewCorrector(matcher Matcher, vocabulary []string) *Corrector {
	return &Corrector{
		matcher:    matcher,
		vocabulary: vocabulary,
		maxWindow:  maxWordCount(vocabulary),
	}
}

// Correct realigns text against the vocabulary and returns the corrected
// text along with the corrections applied, in textual order.
//
// The text is tokenised into whitespace-separated words. At each position
// the corrector tries n-gram windows from the longest vocabulary term down
// to a single word, so multi-word terms take precedence over partial
// single-word matches. Matched windows are replaced by the vocabulary term;
// unmatched tokens pass through unchanged.
func (c *Corrector) Correct(text string) (string, []Correction) {
	c.mu.RLock()
	vocabulary, maxWindow := c.vocabulary, c.maxWindow
	c.mu.RUnlock()

	if c.matcher == nil || len(vocabulary) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		output      []string
		corrections []Correction
	)

	i := 0
	for i < len(tokens) {
		maxN := maxWindow
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			term, conf, ok := c.matcher.Match(window, vocabulary)
			if !ok || term == window {
				continue
			}

			output = append(output, strings.Fields(term)...)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// SetVocabulary replaces the correction vocabulary. Transcripts already
// being corrected keep the vocabulary they started with.
func (c *Corrector) SetVocabulary(vocabulary []string) {
	c.mu.Lock()
	c.vocabulary = vocabulary
	c.maxWindow = maxWordCount(vocabulary)
	c.mu.Unlock()
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any vocabulary term. Returns 1 when vocabulary is empty.
func maxWordCount(vocabulary []string) int {
	max := 1
	for _, v := range vocabulary {
		if n := len(strings.Fields(v)); n > max {
			max = n
		}
	}
	return max
}

package resilience

import (
	"context"

	"github.com/voxhollow/voxd/pkg/provider/tts"
)

// SynthesizerFallback implements [tts.Synthesizer] with automatic failover
// across multiple synthesis backends. Each backend has its own circuit
// breaker.
type SynthesizerFallback struct {
	group *FallbackGroup[tts.Synthesizer]
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*SynthesizerFallback)(nil)

// NewSynthesizerFallback creates a [SynthesizerFallback] with primary as the
// preferred backend.
func NewSynthesizerFallback(primary tts.Synthesizer, primaryName string, cfg FallbackConfig) *SynthesizerFallback {
	return &SynthesizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesizer as a fallback.
func (f *SynthesizerFallback) AddFallback(name string, synthesizer tts.Synthesizer) {
	f.group.AddFallback(name, synthesizer)
}

// Synthesize renders the chunk with the first healthy synthesizer. If the
// primary fails, subsequent fallbacks are tried.
func (f *SynthesizerFallback) Synthesize(ctx context.Context, chunk string) (*tts.Asset, error) {
	return ExecuteWithResult(f.group, func(s tts.Synthesizer) (*tts.Asset, error) {
		return s.Synthesize(ctx, chunk)
	})
}

// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer to script per-chunk outcomes in pipeline tests: successful
// assets (backed by real temp files so release semantics can be asserted)
// and typed synthesis failures, in order.
package mock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/voxhollow/voxd/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Chunk is the text chunk passed to Synthesize.
	Chunk string
}

// Synthesizer is a mock implementation of tts.Synthesizer.
//
// By default every call creates a real temporary file (so callers can verify
// release behaviour) and returns it as an Asset. Set Errs to inject failures
// for specific call indices, or SynthesizeFunc to take over entirely.
type Synthesizer struct {
	mu sync.Mutex

	// Errs maps zero-based call index → error to return for that call.
	Errs map[int]error

	// SynthesizeFunc, if non-nil, overrides the default behaviour.
	SynthesizeFunc func(ctx context.Context, chunk string) (*tts.Asset, error)

	// SynthesizeCalls records every invocation in order.
	SynthesizeCalls []SynthesizeCall

	// Assets records every Asset handed out, in order.
	Assets []*tts.Asset
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, chunk string) (*tts.Asset, error) {
	s.mu.Lock()
	idx := len(s.SynthesizeCalls)
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Chunk: chunk})
	fn := s.SynthesizeFunc
	err := s.Errs[idx]
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, chunk)
	}
	if err != nil {
		return nil, err
	}

	f, ferr := os.CreateTemp("", "mock-tts-*.mp3")
	if ferr != nil {
		return nil, fmt.Errorf("mock: create temp file: %w", ferr)
	}
	fmt.Fprintf(f, "audio(%s)", chunk)
	f.Close()

	asset := tts.NewAsset(f.Name())
	s.mu.Lock()
	s.Assets = append(s.Assets, asset)
	s.mu.Unlock()
	return asset, nil
}

// Calls returns a snapshot of recorded Synthesize invocations.
func (s *Synthesizer) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SynthesizeCall, len(s.SynthesizeCalls))
	copy(out, s.SynthesizeCalls)
	return out
}

// Package tts defines the Synthesizer interface for speech-synthesis backends.
//
// A synthesizer turns one bounded text chunk into a playable [Asset] per call.
// The assistant splits long replies into chunks before synthesis, calls
// Synthesize once per chunk, and plays the resulting assets strictly in
// order. A failed chunk is skipped, never fatal — callers detect the typed
// [*SynthesisError] and simply omit that chunk from playback.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// SynthesisError reports a non-success response from the synthesis backend
// for a single chunk. Callers treat it as "skip this chunk": one failed chunk
// must not abort the remaining chunks.
type SynthesisError struct {
	// StatusCode is the HTTP status the backend returned.
	StatusCode int
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("tts: synthesis backend returned status %d", e.StatusCode)
}

// Asset is the synthesized audio for one chunk, backed by a uniquely named
// temporary file. Ownership is transient: the asset is created by a
// Synthesizer, consumed exactly once by the playback engine, and must be
// released afterwards regardless of playback outcome.
type Asset struct {
	path string

	releaseOnce sync.Once
	releaseErr  error
}

// NewAsset wraps path, which must name an existing temporary audio file, as
// an Asset. The Asset takes ownership of the file.
func NewAsset(path string) *Asset {
	return &Asset{path: path}
}

// Path returns the location of the backing temporary file.
func (a *Asset) Path() string {
	return a.path
}

// Release deletes the backing temporary file. It is idempotent; only the
// first call performs the deletion and its result is returned on every call.
func (a *Asset) Release() error {
	a.releaseOnce.Do(func() {
		if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
			a.releaseErr = fmt.Errorf("tts: release asset %q: %w", a.path, err)
		}
	})
	return a.releaseErr
}

// Synthesizer is the abstraction over any speech-synthesis backend.
//
// Implementations must be safe for concurrent use.
type Synthesizer interface {
	// Synthesize converts one text chunk into a playable Asset. The chunk is
	// expected to already be within the backend's length limit; see
	// segment.ChunkForSynthesis. A backend rejection surfaces as a
	// [*SynthesisError] so callers can skip the chunk; transport faults
	// surface as ordinary wrapped errors.
	Synthesize(ctx context.Context, chunk string) (*Asset, error)
}

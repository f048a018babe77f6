// Package mock provides a test double for the stt.Recognizer interface.
//
// Use Recognizer to script transcription outcomes for the capture loop:
// successful transcripts, unintelligible audio, and service faults, in order.
package mock

import (
	"context"
	"sync"

	"github.com/voxhollow/voxd/pkg/provider/stt"
)

// Result scripts the outcome of one Transcribe call.
type Result struct {
	Transcript stt.Transcript
	Err        error
}

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is the audio segment passed to Transcribe.
	Audio stt.Audio
}

// Recognizer is a mock implementation of stt.Recognizer.
//
// When Results is non-empty, each Transcribe call consumes the next entry;
// once exhausted, calls fall back to the Transcript/Err pair. All methods are
// safe for concurrent use.
type Recognizer struct {
	mu sync.Mutex

	// Results is an ordered script of outcomes, consumed one per call.
	Results []Result

	// Transcript is returned once Results is exhausted.
	Transcript stt.Transcript

	// Err, if non-nil, is returned once Results is exhausted.
	Err error

	// TranscribeFunc, if non-nil, overrides all of the above.
	TranscribeFunc func(ctx context.Context, audio stt.Audio) (stt.Transcript, error)

	// TranscribeCalls records every invocation in order.
	TranscribeCalls []TranscribeCall
}

// Compile-time interface assertion.
var _ stt.Recognizer = (*Recognizer)(nil)

// Transcribe implements stt.Recognizer.
func (r *Recognizer) Transcribe(ctx context.Context, audio stt.Audio) (stt.Transcript, error) {
	r.mu.Lock()
	r.TranscribeCalls = append(r.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: audio})
	fn := r.TranscribeFunc
	var res Result
	if len(r.Results) > 0 {
		res = r.Results[0]
		r.Results = r.Results[1:]
	} else {
		res = Result{Transcript: r.Transcript, Err: r.Err}
	}
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio)
	}
	return res.Transcript, res.Err
}

// Calls returns a snapshot of recorded Transcribe invocations.
func (r *Recognizer) Calls() []TranscribeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TranscribeCall, len(r.TranscribeCalls))
	copy(out, r.TranscribeCalls)
	return out
}

package resilience

import (
	"context"
	"errors"

	"github.com/voxhollow/voxd/pkg/provider/stt"
)

// RecognizerFallback implements [stt.Recognizer] with automatic failover
// across multiple recognition backends. Each backend has its own circuit
// breaker.
//
// [stt.ErrUnintelligible] is a verdict about the audio, not a provider
// fault: it is returned to the caller directly, does not trip the breaker,
// and does not trigger failover to the next backend.
type RecognizerFallback struct {
	group *FallbackGroup[stt.Recognizer]
}

// Compile-time interface assertion.
var _ stt.Recognizer = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend.
func NewRecognizerFallback(primary stt.Recognizer, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	return &RecognizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognizer as a fallback.
func (f *RecognizerFallback) AddFallback(name string, recognizer stt.Recognizer) {
	f.group.AddFallback(name, recognizer)
}

// Transcribe submits the audio to the first healthy recognizer. Service
// failures try the next backend; an unintelligible-audio verdict is final.
func (f *RecognizerFallback) Transcribe(ctx context.Context, audio stt.Audio) (stt.Transcript, error) {
	var unintelligible error
	transcript, err := ExecuteWithResult(f.group, func(r stt.Recognizer) (stt.Transcript, error) {
		t, err := r.Transcribe(ctx, audio)
		if errors.Is(err, stt.ErrUnintelligible) {
			unintelligible = err
			return stt.Transcript{}, nil
		}
		return t, err
	})
	if err != nil {
		return stt.Transcript{}, err
	}
	if unintelligible != nil {
		return stt.Transcript{}, unintelligible
	}
	return transcript, nil
}

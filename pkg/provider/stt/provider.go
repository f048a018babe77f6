// Package stt defines the Recognizer interface for speech-to-text backends.
//
// A recognizer wraps a batch transcription service (e.g., Deepgram's
// prerecorded API): one captured utterance in, one transcript out. The
// assistant's capture loop records a complete phrase and submits it in a
// single call — there is no streaming or partial-transcript mode.
//
// Failure is typed: [ErrUnintelligible] means the service processed the audio
// but found no recognisable speech in it, while any other error indicates a
// service or transport fault. Callers treat the two very differently (the
// capture loop keeps cycling on both, but reports them as distinct statuses).
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"
)

// ErrUnintelligible is returned by [Recognizer.Transcribe] when the backend
// processed the audio successfully but could not recognise any speech in it.
// This is an expected per-utterance outcome, not a service fault.
var ErrUnintelligible = errors.New("stt: audio was unintelligible")

// Audio is one captured utterance handed to a recognizer: raw little-endian
// 16-bit PCM plus the format needed to interpret it.
type Audio struct {
	// PCM is the raw sample data (int16 little-endian).
	PCM []byte

	// SampleRate is the sample rate in Hz (e.g., 16000).
	SampleRate int

	// Channels is the channel count. 1 = mono, which is what the capture loop
	// records and most STT services prefer.
	Channels int
}

// Duration returns the play length of the audio segment.
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	samples := len(a.PCM) / 2 / a.Channels
	return time.Duration(samples) * time.Second / time.Duration(a.SampleRate)
}

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the transcribed speech content. Never empty on success;
	// recognizers return [ErrUnintelligible] instead of an empty transcript.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// backend does not report confidence.
	Confidence float64
}

// Recognizer is the abstraction over any batch speech-to-text backend.
//
// Implementations must be safe for concurrent use.
type Recognizer interface {
	// Transcribe submits one complete utterance and blocks until the backend
	// returns a transcript or an error. Returns [ErrUnintelligible] (possibly
	// wrapped) when the audio contains no recognisable speech; any other error
	// is a service or transport fault.
	Transcribe(ctx context.Context, audio Audio) (Transcript, error)
}

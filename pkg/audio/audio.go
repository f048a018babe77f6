// Package audio defines the device-facing interfaces of the assistant: the
// microphone the capture loop records from and the player the synthesized
// replies are spoken through.
//
// The two primary abstractions are:
//
//   - [Microphone] — opens a capture [Stream] delivering raw PCM frames.
//   - [Player] — plays a sequence of synthesized assets strictly in order.
//
// Implementations live in platform adapter packages (audio/mal for miniaudio
// capture, audio/mpg for MP3 output). The interfaces are intentionally narrow
// so the capture loop and the pipeline stay decoupled from device details.
//
// Device ownership is exclusive: the microphone belongs to the capture loop
// while it is listening, and the output device belongs to one Player, which
// plays at most one asset at a time.
package audio

import (
	"context"

	"github.com/voxhollow/voxd/pkg/provider/tts"
)

// Format describes the PCM layout of a capture stream. Samples are always
// little-endian int16.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 16000).
	SampleRate int

	// Channels is the channel count. The capture loop records mono.
	Channels int
}

// Frame is one batch of raw PCM bytes (int16 little-endian) read from a
// capture stream.
type Frame []byte

// Stream is an open microphone capture session.
//
// Callers must call Close when the stream is no longer needed; failing to do
// so leaks the device handle. All methods are safe for concurrent use.
type Stream interface {
	// Frames returns a read-only channel delivering captured PCM frames in
	// arrival order. The channel is closed when the stream is closed or the
	// device fails; after the channel closes, Close reports the terminal error
	// if there was one.
	Frames() <-chan Frame

	// Close stops capture and releases the device. It is idempotent; it
	// returns the device fault that ended the stream, if any.
	Close() error
}

// Microphone is the entry point for an audio capture device.
//
// Implementations must be safe for concurrent use, but at most one stream
// may be open at a time — the device is owned exclusively by its opener.
type Microphone interface {
	// Open acquires the device and starts capturing with the given format.
	// The supplied ctx governs the open attempt only; the returned Stream
	// stays live until Close. Returns an error if the device cannot be
	// acquired or a stream is already open.
	Open(ctx context.Context, format Format) (Stream, error)
}

// Player owns the audio output device and plays synthesized assets.
//
// Implementations must be safe for concurrent use, but play serially: one
// asset at a time, one PlaySequential call at a time.
type Player interface {
	// PlaySequential plays each asset to completion strictly in order — no
	// overlap, no skipping ahead. After each asset finishes, its backing
	// temporary file is released unconditionally, even when playback of that
	// asset failed. The first playback error is returned after all assets
	// have been released; ctx cancellation stops playback between assets.
	PlaySequential(ctx context.Context, assets []*tts.Asset) error
}

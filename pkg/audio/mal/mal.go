// Package mal provides an audio.Microphone backed by miniaudio via
// github.com/gen2brain/malgo. It captures int16 mono PCM from the default
// capture device and delivers it as frames on a channel.
//
// The audio thread never blocks: when the consumer falls behind, frames are
// dropped rather than stalling the device callback. The capture loop reads
// continuously while listening, so drops only occur under pathological load.
package mal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxhollow/voxd/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Microphone = (*Microphone)(nil)

// frameChanBuf is the buffer depth of the frames channel. At the default
// 16 kHz mono and ~10 ms device periods this absorbs roughly half a second
// of consumer lag before frames are dropped.
const frameChanBuf = 64

// Microphone implements audio.Microphone using the default miniaudio capture
// device. At most one stream may be open at a time.
type Microphone struct {
	mu   sync.Mutex
	open bool
}

// New creates a Microphone. The underlying device is not touched until Open.
func New() *Microphone {
	return &Microphone{}
}

// Open implements audio.Microphone. It initialises a miniaudio context and
// capture device with the requested format and starts the device.
func (m *Microphone) Open(ctx context.Context, format audio.Format) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mal: open: %w", err)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("mal: invalid format %d Hz / %d ch", format.SampleRate, format.Channels)
	}

	m.mu.Lock()
	if m.open {
		m.mu.Unlock()
		return nil, errors.New("mal: capture stream already open")
	}
	m.open = true
	m.mu.Unlock()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		m.release()
		return nil, fmt.Errorf("mal: init context: %w", err)
	}

	s := &stream{
		mic:      m,
		malgoCtx: malgoCtx,
		frames:   make(chan audio.Frame, frameChanBuf),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, cfg, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		m.release()
		return nil, fmt.Errorf("mal: init capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		m.release()
		return nil, fmt.Errorf("mal: start capture device: %w", err)
	}

	return s, nil
}

// release marks the device as available again.
func (m *Microphone) release() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
}

// stream is an open malgo capture session.
type stream struct {
	mic      *Microphone
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	frames chan audio.Frame

	mu        sync.Mutex
	closed    bool
	err       error
	closeOnce sync.Once
}

// Frames implements audio.Stream.
func (s *stream) Frames() <-chan audio.Frame {
	return s.frames
}

// onData runs on the miniaudio device thread. It copies the input samples
// (the callback buffer is reused by miniaudio) and hands them to the
// consumer without ever blocking the audio thread.
func (s *stream) onData(_, inputSamples []byte, _ uint32) {
	if len(inputSamples) == 0 {
		return
	}
	frame := make(audio.Frame, len(inputSamples))
	copy(frame, inputSamples)

	// The closed check and the send share the mutex so the channel cannot be
	// closed between them.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- frame:
	default:
		// Consumer lagging: drop the frame rather than stall the device.
	}
}

// onStop runs when the device stops outside of Close (unplugged, backend
// fault). It records the fault and closes the frames channel.
func (s *stream) onStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = errors.New("mal: capture device stopped unexpectedly")
	close(s.frames)
}

// Close implements audio.Stream. It stops the device, tears down the malgo
// context, and releases the microphone for reuse.
func (s *stream) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	err := s.err
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		// Uninit stops the device first when it is still running.
		s.device.Uninit()
		s.malgoCtx.Uninit()
		s.malgoCtx.Free()
		s.mic.release()
	})
	return err
}

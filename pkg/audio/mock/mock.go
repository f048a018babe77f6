// Package mock provides test doubles for the audio.Microphone and
// audio.Player interfaces.
//
// Microphone feeds scripted PCM frames to the capture loop; Player records
// which assets were played and honours the release-after-play contract so
// pipeline tests can assert cleanup behaviour.
package mock

import (
	"context"
	"sync"

	"github.com/voxhollow/voxd/pkg/audio"
	"github.com/voxhollow/voxd/pkg/provider/tts"
)

// ─── Microphone ──────────────────────────────────────────────────────────────

// Microphone is a mock implementation of audio.Microphone. Each Open call
// consumes the next scripted session from Sessions; when the script is
// exhausted, OpenErr (or an empty session) is used.
type Microphone struct {
	mu sync.Mutex

	// Sessions scripts the streams returned by successive Open calls. Each
	// inner slice is the frame sequence one stream delivers before its
	// channel closes.
	Sessions [][]audio.Frame

	// OpenErr, if non-nil, is returned by Open once Sessions is exhausted.
	OpenErr error

	// OpenCalls counts Open invocations.
	OpenCalls int

	// Streams records the streams handed out, in order.
	Streams []*Stream
}

// Compile-time interface assertion.
var _ audio.Microphone = (*Microphone)(nil)

// Open implements audio.Microphone.
func (m *Microphone) Open(_ context.Context, _ audio.Format) (audio.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls++
	if len(m.Sessions) == 0 {
		if m.OpenErr != nil {
			return nil, m.OpenErr
		}
		s := newStream(nil)
		m.Streams = append(m.Streams, s)
		return s, nil
	}

	frames := m.Sessions[0]
	m.Sessions = m.Sessions[1:]
	s := newStream(frames)
	m.Streams = append(m.Streams, s)
	return s, nil
}

// Stream is the audio.Stream returned by the mock Microphone. Its frames
// channel delivers the scripted frames and then closes.
type Stream struct {
	frames chan audio.Frame

	mu     sync.Mutex
	closed bool
}

func newStream(frames []audio.Frame) *Stream {
	ch := make(chan audio.Frame, len(frames)+1)
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &Stream{frames: ch}
}

// Frames implements audio.Stream.
func (s *Stream) Frames() <-chan audio.Frame {
	return s.frames
}

// Close implements audio.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ─── Player ──────────────────────────────────────────────────────────────────

// PlayCall records a single invocation of PlaySequential.
type PlayCall struct {
	// Ctx is the context passed to PlaySequential.
	Ctx context.Context
	// Paths are the asset paths in the order they were handed over.
	Paths []string
}

// Player is a mock implementation of audio.Player. It releases every asset
// it is given, mirroring the production contract, and records the play order.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by PlaySequential (assets are still
	// released first).
	PlayErr error

	// PlayCalls records every invocation in order.
	PlayCalls []PlayCall
}

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// PlaySequential implements audio.Player.
func (p *Player) PlaySequential(ctx context.Context, assets []*tts.Asset) error {
	paths := make([]string, len(assets))
	for i, a := range assets {
		paths[i] = a.Path()
		_ = a.Release()
	}

	p.mu.Lock()
	p.PlayCalls = append(p.PlayCalls, PlayCall{Ctx: ctx, Paths: paths})
	err := p.PlayErr
	p.mu.Unlock()
	return err
}

// Calls returns a snapshot of recorded PlaySequential invocations.
func (p *Player) Calls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.PlayCalls))
	copy(out, p.PlayCalls)
	return out
}

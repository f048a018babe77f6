// Package pipeline orchestrates the assistant's response flow: recognized or
// typed input goes through the conversation session, the reply is segmented
// into speakable chunks, each chunk is synthesized, and the resulting audio
// is played back in order.
//
// The pipeline owns a single response slot. While a response is being
// generated or spoken, further utterances are rejected rather than queued so
// the assistant never talks over itself or answers stale input. Typed input
// and spoken input share the slot.
//
// Consumers observe the pipeline through its event stream: message events
// for the conversation display and status events for the status line.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/voxhollow/voxd/internal/capture"
	"github.com/voxhollow/voxd/internal/observe"
	"github.com/voxhollow/voxd/internal/segment"
	"github.com/voxhollow/voxd/internal/session"
	"github.com/voxhollow/voxd/internal/transcript"
	"github.com/voxhollow/voxd/pkg/audio"
	"github.com/voxhollow/voxd/pkg/provider/tts"
)

// WelcomeMessage is shown when the assistant starts. It is display-only and
// never enters the conversation history.
const WelcomeMessage = "Hello! I'm your voice assistant. Start listening and speak to me, or type a message."

// ClearedMessage is shown after the conversation is cleared. Display-only.
const ClearedMessage = "Conversation cleared. How can I help you?"

// Status describes the assistant's externally visible state.
type Status int

const (
	// StatusReady means the assistant is idle and not capturing.
	StatusReady Status = iota

	// StatusListening means the capture loop is running.
	StatusListening

	// StatusThinking means a response is being generated or spoken.
	StatusThinking

	// StatusUnrecognized means the last utterance contained no intelligible
	// speech.
	StatusUnrecognized

	// StatusRecognitionError means the recognition backend failed.
	StatusRecognitionError

	// StatusCaptureError means the microphone faulted.
	StatusCaptureError
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusListening:
		return "listening"
	case StatusThinking:
		return "thinking"
	case StatusUnrecognized:
		return "unrecognized"
	case StatusRecognitionError:
		return "recognition-error"
	case StatusCaptureError:
		return "capture-error"
	default:
		return "unknown"
	}
}

// EventKind discriminates pipeline events.
type EventKind int

const (
	// EventUserMessage carries input accepted into the conversation.
	EventUserMessage EventKind = iota

	// EventAssistantMessage carries assistant text for display, including
	// display-only notices such as [WelcomeMessage].
	EventAssistantMessage

	// EventStatus carries a status transition.
	EventStatus
)

// Event is one observable output of the pipeline.
type Event struct {
	Kind   EventKind
	Text   string
	Status Status
	Err    error
}

const defaultEventBuf = 64

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithCorrector attaches a vocabulary corrector applied to spoken
// transcripts before they enter the conversation. Typed input is never
// corrected. When nil (the default), transcripts pass through unchanged.
func WithCorrector(c *transcript.Corrector) Option {
	return func(p *Pipeline) { p.corrector = c }
}

// WithChunkLen overrides the maximum synthesis chunk length.
// Default: [segment.DefaultChunkLen].
func WithChunkLen(n int) Option {
	return func(p *Pipeline) { p.chunkLen = n }
}

// WithMetrics attaches a metrics instance. When nil (the default), no
// metrics are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithEventBuffer sets the buffer depth of the events channel. Default: 64.
func WithEventBuffer(n int) Option {
	return func(p *Pipeline) { p.eventBuf = n }
}

// Pipeline wires capture, conversation, synthesis, and playback together.
// Construct with [New], start event routing with [Pipeline.Run], and drive
// it through the control methods. All control methods are safe for
// concurrent use.
type Pipeline struct {
	sess   *session.Session
	synth  tts.Synthesizer
	player audio.Player
	loop   *capture.Loop

	corrector *transcript.Corrector
	metrics   *observe.Metrics
	chunkLen  int
	eventBuf  int

	events chan Event

	// busy is the single response slot. Input that arrives while a response
	// is in flight is rejected, not queued.
	busy *semaphore.Weighted
}

// New constructs a Pipeline around the given collaborators.
func New(sess *session.Session, synth tts.Synthesizer, player audio.Player, loop *capture.Loop, opts ...Option) *Pipeline {
	p := &Pipeline{
		sess:     sess,
		synth:    synth,
		player:   player,
		loop:     loop,
		chunkLen: segment.DefaultChunkLen,
		eventBuf: defaultEventBuf,
		busy:     semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(p)
	}
	p.events = make(chan Event, p.eventBuf)
	return p
}

// Events returns the pipeline's event stream. The channel is closed when
// [Pipeline.Run] returns.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// Run routes capture events into the pipeline until ctx is cancelled. It
// emits the welcome notice, then dispatches each recognized utterance to the
// response flow. Run blocks; call it on its own goroutine. The capture loop
// is stopped and the events channel closed before Run returns.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.events)
	defer p.stopCapture(ctx)

	p.emit(ctx, Event{Kind: EventAssistantMessage, Text: WelcomeMessage})
	p.emit(ctx, Event{Kind: EventStatus, Status: StatusReady})

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.loop.Events():
			p.routeCaptureEvent(ctx, ev)
		}
	}
}

// StartListening starts the capture loop. Calling it while already listening
// is a no-op.
func (p *Pipeline) StartListening(ctx context.Context) {
	if err := p.loop.Start(); err != nil {
		return
	}
	if p.metrics != nil {
		p.metrics.CaptureActive.Add(ctx, 1)
	}
}

// StopListening requests the capture loop to stop. The [StatusReady]
// transition is emitted once the loop confirms it has exited.
func (p *Pipeline) StopListening(ctx context.Context) {
	p.stopCapture(ctx)
}

// Listening reports whether the capture loop is running.
func (p *Pipeline) Listening() bool {
	return p.loop.Running()
}

// SendText submits typed input to the response flow. It blocks until the
// response has been spoken. Returns false when the input was rejected
// because a response is already in flight.
func (p *Pipeline) SendText(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return p.handleUtterance(ctx, text, "text")
}

// ClearConversation resets the conversation history and emits the cleared
// notice. The system prompt is preserved.
func (p *Pipeline) ClearConversation(ctx context.Context) {
	p.sess.Clear()
	p.emit(ctx, Event{Kind: EventAssistantMessage, Text: ClearedMessage})
}

// ─── Event routing ───────────────────────────────────────────────────────────

func (p *Pipeline) routeCaptureEvent(ctx context.Context, ev capture.Event) {
	switch {
	case ev.IsTranscript():
		text := ev.Transcript
		if p.corrector != nil {
			corrected, corrections := p.corrector.Correct(text)
			if len(corrections) > 0 {
				slog.Debug("transcript corrected",
					"original", text,
					"corrected", corrected,
					"corrections", len(corrections))
			}
			text = corrected
		}
		p.handleUtterance(ctx, text, "voice")
	case ev.Status == capture.StatusListening:
		p.emit(ctx, Event{Kind: EventStatus, Status: StatusListening})
	case ev.Status == capture.StatusUnrecognized:
		p.emit(ctx, Event{Kind: EventStatus, Status: StatusUnrecognized})
	case ev.Status == capture.StatusRecognitionError:
		p.emit(ctx, Event{Kind: EventStatus, Status: StatusRecognitionError, Err: ev.Err})
	case ev.Status == capture.StatusDeviceError:
		p.emit(ctx, Event{Kind: EventStatus, Status: StatusCaptureError, Err: ev.Err})
	case ev.Status == capture.StatusStopped:
		p.emit(ctx, Event{Kind: EventStatus, Status: StatusReady})
	}
}

// ─── Response flow ───────────────────────────────────────────────────────────

// handleUtterance runs one input through the full response flow. Returns
// false when the single response slot was occupied.
func (p *Pipeline) handleUtterance(ctx context.Context, text, source string) bool {
	if !p.busy.TryAcquire(1) {
		slog.Debug("utterance dropped, response in flight", "source", source)
		if p.metrics != nil {
			p.metrics.DroppedUtterances.Add(ctx, 1)
		}
		return false
	}
	defer p.busy.Release(1)

	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordUtterance(ctx, source)
	}

	p.emit(ctx, Event{Kind: EventUserMessage, Text: text})
	p.emit(ctx, Event{Kind: EventStatus, Status: StatusThinking})

	chatStart := time.Now()
	reply, err := p.sess.Reply(ctx, text)
	if p.metrics != nil {
		p.metrics.ChatDuration.Record(ctx, time.Since(chatStart).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordProviderRequest(ctx, "chat", "completion", status)
	}
	if err != nil {
		slog.Warn("reply failed", "err", err)
	}

	// The reply text is always speakable, even when it is the backend
	// failure apology.
	p.emit(ctx, Event{Kind: EventAssistantMessage, Text: reply})
	p.speak(ctx, reply)

	if p.metrics != nil {
		p.metrics.UtteranceDuration.Record(ctx, time.Since(start).Seconds())
	}

	if p.loop.Running() {
		p.emit(ctx, Event{Kind: EventStatus, Status: StatusListening})
	} else {
		p.emit(ctx, Event{Kind: EventStatus, Status: StatusReady})
	}
	return true
}

// speak synthesizes and plays the speakable portion of text. Chunks whose
// synthesis fails are skipped so one bad chunk never silences the rest of
// the response.
func (p *Pipeline) speak(ctx context.Context, text string) {
	intro := segment.SpeakableIntro(text)
	chunks := segment.ChunkForSynthesis(intro, p.chunkLen)
	if len(chunks) == 0 {
		return
	}

	assets := make([]*tts.Asset, 0, len(chunks))
	for _, chunk := range chunks {
		synthStart := time.Now()
		asset, err := p.synth.Synthesize(ctx, chunk)
		if p.metrics != nil {
			p.metrics.SynthesisDuration.Record(ctx, time.Since(synthStart).Seconds())
		}
		if err != nil {
			slog.Warn("chunk synthesis failed, skipping", "err", err)
			if p.metrics != nil {
				p.metrics.RecordProviderError(ctx, "tts", "synthesis")
			}
			continue
		}
		assets = append(assets, asset)
	}
	if len(assets) == 0 {
		return
	}

	playStart := time.Now()
	if err := p.player.PlaySequential(ctx, assets); err != nil {
		slog.Warn("playback failed", "err", err)
	}
	if p.metrics != nil {
		p.metrics.PlaybackDuration.Record(ctx, time.Since(playStart).Seconds())
	}
}

// stopCapture stops the loop and waits for it to exit.
func (p *Pipeline) stopCapture(ctx context.Context) {
	if !p.loop.Running() {
		return
	}
	p.loop.Stop()
	<-p.loop.Done()
	if p.metrics != nil {
		p.metrics.CaptureActive.Add(ctx, -1)
	}
}

// emit delivers an event, dropping it when ctx is cancelled and the buffer
// is full.
func (p *Pipeline) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

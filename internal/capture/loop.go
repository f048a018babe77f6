// Package capture implements the continuous speech-capture loop: an
// explicit state machine that cycles acquire-microphone → calibrate →
// listen → transcribe indefinitely until cooperatively stopped.
//
// Each cycle opens the microphone fresh, measures ambient noise to derive an
// energy gate, waits for speech onset, records until trailing silence or the
// phrase cap, releases the device, and submits the utterance to the
// recognizer. Recognition failures never stop the loop: unintelligible audio
// and service errors are reported as status events and the next cycle starts
// immediately, while device faults additionally apply a fixed backoff so a
// broken device is not hammered in a hot loop.
//
// The loop runs on its own goroutine; [Loop.Start] never blocks. [Loop.Stop]
// is an idempotent, cross-goroutine cooperative cancellation — the loop
// observes it between blocking steps, emits a terminal [StatusStopped], and
// exits without emitting further events.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/voxhollow/voxd/internal/observe"
	"github.com/voxhollow/voxd/pkg/audio"
	"github.com/voxhollow/voxd/pkg/provider/stt"
)

// Status describes the capture loop's externally visible condition. Statuses
// are transient — they are emitted as events, never persisted.
type Status int

const (
	// StatusIdle is the initial state before Start.
	StatusIdle Status = iota

	// StatusListening is emitted when the loop starts cycling.
	StatusListening

	// StatusUnrecognized is emitted when an utterance was captured but the
	// recognizer found no intelligible speech in it.
	StatusUnrecognized

	// StatusRecognitionError is emitted when the recognition backend failed.
	// The loop continues with no backoff.
	StatusRecognitionError

	// StatusDeviceError is emitted on a microphone or IO fault. The loop
	// applies a fixed backoff before the next cycle.
	StatusDeviceError

	// StatusStopped is the terminal status emitted exactly once after Stop.
	StatusStopped
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusListening:
		return "listening"
	case StatusUnrecognized:
		return "unrecognized"
	case StatusRecognitionError:
		return "recognition-error"
	case StatusDeviceError:
		return "device-error"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one output of the capture loop: either a transcript or a status
// transition.
type Event struct {
	// Transcript is the recognized text. Non-empty exactly for transcript
	// events; transcript events carry no status.
	Transcript string

	// Status is the new status for status events.
	Status Status

	// Err carries detail for error statuses.
	Err error
}

// IsTranscript reports whether e carries recognized text.
func (e Event) IsTranscript() bool {
	return e.Transcript != ""
}

const (
	// defaultOnsetTimeout is how long a cycle waits for speech to begin.
	defaultOnsetTimeout = 5 * time.Second

	// defaultMaxPhrase caps the recorded length of a single utterance.
	defaultMaxPhrase = 10 * time.Second

	// defaultCalibration is how much leading audio is used to measure the
	// ambient noise floor each cycle.
	defaultCalibration = 300 * time.Millisecond

	// defaultSilenceHold is how much trailing sub-threshold audio ends an
	// utterance.
	defaultSilenceHold = 800 * time.Millisecond

	// defaultBackoff is the fixed delay after a device fault.
	defaultBackoff = 2 * time.Second

	// defaultEventBuf is the buffer depth of the events channel.
	defaultEventBuf = 32

	// gateFactor scales the measured ambient RMS into the speech-onset
	// threshold.
	gateFactor = 2.5

	// gateFloor is the minimum onset threshold, guarding against a silent
	// calibration window producing a zero gate.
	gateFloor = 180.0
)

// defaultFormat is the capture format submitted to the recognizer: 16 kHz
// mono int16, the rate STT services are optimised for.
var defaultFormat = audio.Format{SampleRate: 16000, Channels: 1}

// Option is a functional option for configuring a Loop.
type Option func(*Loop)

// WithFormat overrides the capture format. Default: 16 kHz mono.
func WithFormat(f audio.Format) Option {
	return func(l *Loop) { l.format = f }
}

// WithOnsetTimeout sets how long each cycle waits for speech onset.
// Default: 5 s.
func WithOnsetTimeout(d time.Duration) Option {
	return func(l *Loop) { l.onsetTimeout = d }
}

// WithMaxPhrase caps the recorded length of one utterance. Default: 10 s.
func WithMaxPhrase(d time.Duration) Option {
	return func(l *Loop) { l.maxPhrase = d }
}

// WithCalibration sets the length of the ambient-noise measurement window at
// the start of each cycle. Default: 300 ms.
func WithCalibration(d time.Duration) Option {
	return func(l *Loop) { l.calibration = d }
}

// WithSilenceHold sets how much trailing silence ends an utterance.
// Default: 800 ms.
func WithSilenceHold(d time.Duration) Option {
	return func(l *Loop) { l.silenceHold = d }
}

// WithBackoff sets the fixed delay applied after a device fault. Default: 2 s.
func WithBackoff(d time.Duration) Option {
	return func(l *Loop) { l.backoff = d }
}

// WithMetrics attaches a metrics instance recording transcription latency and
// recognizer errors. When nil (the default), no metrics are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// Loop is the speech-capture state machine. Construct with [New], drive with
// [Loop.Start] and [Loop.Stop], consume [Loop.Events].
//
// Start and Stop are safe for concurrent use from different goroutines.
type Loop struct {
	mic audio.Microphone
	rec stt.Recognizer

	format       audio.Format
	onsetTimeout time.Duration
	maxPhrase    time.Duration
	calibration  time.Duration
	silenceHold  time.Duration
	backoff      time.Duration
	metrics      *observe.Metrics

	events chan Event

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Loop reading from mic and transcribing with rec.
func New(mic audio.Microphone, rec stt.Recognizer, opts ...Option) *Loop {
	l := &Loop{
		mic:          mic,
		rec:          rec,
		format:       defaultFormat,
		onsetTimeout: defaultOnsetTimeout,
		maxPhrase:    defaultMaxPhrase,
		calibration:  defaultCalibration,
		silenceHold:  defaultSilenceHold,
		backoff:      defaultBackoff,
		events:       make(chan Event, defaultEventBuf),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Events returns the channel on which transcripts and status transitions are
// delivered. The channel is never closed; a [StatusStopped] event marks the
// end of a run. The same channel is reused across Start/Stop cycles.
func (l *Loop) Events() <-chan Event {
	return l.events
}

// Running reports whether a capture run is currently active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start transitions the loop from stopped to listening and begins cycling on
// a dedicated goroutine. It never blocks. Returns an error if the loop is
// already running.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("capture: loop already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(ctx, l.done)
	return nil
}

// Stop requests cooperative cancellation and returns immediately. The loop
// finishes its in-flight cycle, emits [StatusStopped], and exits. Stop is
// idempotent and safe to call from any goroutine; use [Loop.Done] to wait
// for the run to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.cancel()
}

// Done returns a channel closed when the current run has fully exited.
// Returns a closed channel when no run is active.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.done
}

// ─── Loop body ───────────────────────────────────────────────────────────────

// run executes capture cycles until ctx is cancelled.
func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		l.emit(Event{Status: StatusStopped})
		close(done)
	}()

	l.emit(Event{Status: StatusListening})

	for {
		if ctx.Err() != nil {
			return
		}
		l.cycle(ctx)
	}
}

// cycle runs one acquire → calibrate → listen → transcribe iteration.
func (l *Loop) cycle(ctx context.Context) {
	pcm, err := l.captureUtterance(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("capture cycle failed", "err", err)
		l.emit(Event{Status: StatusDeviceError, Err: err})
		l.sleep(ctx, l.backoff)
		return
	}
	if len(pcm) == 0 {
		// Quiet cycle: no speech onset before the timeout. Not a fault.
		return
	}

	start := time.Now()
	transcript, err := l.rec.Transcribe(ctx, stt.Audio{
		PCM:        pcm,
		SampleRate: l.format.SampleRate,
		Channels:   l.format.Channels,
	})
	if l.metrics != nil {
		l.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil && !errors.Is(err, stt.ErrUnintelligible) {
			l.metrics.RecordProviderError(ctx, "stt", "transcribe")
		}
	}
	switch {
	case err == nil && transcript.Text != "":
		l.emit(Event{Transcript: transcript.Text})
	case errors.Is(err, stt.ErrUnintelligible):
		l.emit(Event{Status: StatusUnrecognized})
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		l.emit(Event{Status: StatusRecognitionError, Err: err})
	}
}

// captureUtterance opens the microphone, calibrates the noise gate, waits
// for speech onset, and records until trailing silence or the phrase cap.
// It returns nil PCM with nil error on a quiet cycle (no onset) and a
// non-nil error on device faults. The microphone is always released before
// returning.
func (l *Loop) captureUtterance(ctx context.Context) ([]byte, error) {
	stream, err := l.mic.Open(ctx, l.format)
	if err != nil {
		return nil, fmt.Errorf("capture: open microphone: %w", err)
	}
	// The device is released between cycles regardless of outcome.
	defer stream.Close()

	gate, err := l.calibrate(ctx, stream)
	if err != nil {
		return nil, err
	}

	onsetFrame, err := l.awaitOnset(ctx, stream, gate)
	if err != nil || onsetFrame == nil {
		return nil, err
	}

	return l.record(ctx, stream, gate, onsetFrame)
}

// calibrate measures ambient noise over the calibration window and derives
// the speech-onset energy gate.
func (l *Loop) calibrate(ctx context.Context, stream audio.Stream) (float64, error) {
	var (
		captured  time.Duration
		sumSquare float64
		samples   int
	)

	for captured < l.calibration {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case frame, ok := <-stream.Frames():
			if !ok {
				return 0, l.streamFault(stream, "calibration")
			}
			sumSquare, samples = accumulate(frame, sumSquare, samples)
			captured += l.frameDuration(frame)
		}
	}

	ambient := 0.0
	if samples > 0 {
		ambient = math.Sqrt(sumSquare / float64(samples))
	}
	gate := ambient * gateFactor
	if gate < gateFloor {
		gate = gateFloor
	}
	return gate, nil
}

// awaitOnset discards sub-gate audio until speech begins or the onset
// timeout elapses. It returns the first speech frame, or nil on a quiet
// cycle.
func (l *Loop) awaitOnset(ctx context.Context, stream audio.Stream, gate float64) (audio.Frame, error) {
	var waited time.Duration
	deadline := time.NewTimer(l.onsetTimeout)
	defer deadline.Stop()

	for waited < l.onsetTimeout {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case frame, ok := <-stream.Frames():
			if !ok {
				return nil, l.streamFault(stream, "onset wait")
			}
			if rms(frame) >= gate {
				return frame, nil
			}
			waited += l.frameDuration(frame)
		}
	}
	return nil, nil
}

// record accumulates PCM from the onset frame until the trailing-silence
// hold or the max phrase length is reached. A stream that ends cleanly
// mid-utterance flushes what was captured.
func (l *Loop) record(ctx context.Context, stream audio.Stream, gate float64, onset audio.Frame) ([]byte, error) {
	pcm := append([]byte(nil), onset...)
	var (
		recorded = l.frameDuration(onset)
		silence  time.Duration
	)

	for recorded < l.maxPhrase && silence < l.silenceHold {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case frame, ok := <-stream.Frames():
			if !ok {
				if err := l.streamFault(stream, "recording"); err != nil {
					return nil, err
				}
				return pcm, nil
			}
			pcm = append(pcm, frame...)
			d := l.frameDuration(frame)
			recorded += d
			if rms(frame) < gate {
				silence += d
			} else {
				silence = 0
			}
		}
	}
	return pcm, nil
}

// streamFault closes the stream and wraps its terminal error, if any. A
// stream that ended without a fault (scripted test streams, clean device
// shutdown) yields nil.
func (l *Loop) streamFault(stream audio.Stream, stage string) error {
	if err := stream.Close(); err != nil {
		return fmt.Errorf("capture: device fault during %s: %w", stage, err)
	}
	return nil
}

// emit delivers an event without ever blocking the loop: when the consumer
// has fallen defaultEventBuf events behind, the oldest pending event is
// dropped in favour of the new one.
func (l *Loop) emit(ev Event) {
	for {
		select {
		case l.events <- ev:
			return
		default:
			select {
			case <-l.events:
			default:
			}
		}
	}
}

// sleep waits for d or until ctx is cancelled.
func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// frameDuration converts a frame's byte length into audio time for the
// configured format.
func (l *Loop) frameDuration(frame audio.Frame) time.Duration {
	bytesPerSecond := l.format.SampleRate * l.format.Channels * 2
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(len(frame)) * time.Second / time.Duration(bytesPerSecond)
}

// accumulate folds a frame into the running sum of squared samples.
func accumulate(frame audio.Frame, sumSquare float64, samples int) (float64, int) {
	for i := 0; i+1 < len(frame); i += 2 {
		s := float64(int16(frame[i]) | int16(frame[i+1])<<8)
		sumSquare += s * s
		samples++
	}
	return sumSquare, samples
}

// rms computes the root-mean-square amplitude of one PCM frame.
func rms(frame audio.Frame) float64 {
	if len(frame) < 2 {
		return 0
	}
	sumSquare, samples := accumulate(frame, 0, 0)
	if samples == 0 {
		return 0
	}
	return math.Sqrt(sumSquare / float64(samples))
}

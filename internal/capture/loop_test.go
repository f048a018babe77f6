package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/voxhollow/voxd/pkg/audio"
	audiomock "github.com/voxhollow/voxd/pkg/audio/mock"
	"github.com/voxhollow/voxd/pkg/provider/stt"
	sttmock "github.com/voxhollow/voxd/pkg/provider/stt/mock"
)

// Frames are 10 ms of 16 kHz mono int16: 160 samples, 320 bytes.
const frameBytes = 320

func quietFrame() audio.Frame {
	return make(audio.Frame, frameBytes)
}

func loudFrame() audio.Frame {
	f := make(audio.Frame, frameBytes)
	for i := 0; i+1 < len(f); i += 2 {
		// Amplitude 8000, well above the default gate floor.
		f[i] = byte(8000 & 0xff)
		f[i+1] = byte(8000 >> 8)
	}
	return f
}

// spokenSession is a scripted stream containing calibration silence, a burst
// of speech, and trailing silence long enough to end the utterance.
func spokenSession() []audio.Frame {
	var frames []audio.Frame
	for i := 0; i < 3; i++ {
		frames = append(frames, quietFrame())
	}
	for i := 0; i < 5; i++ {
		frames = append(frames, loudFrame())
	}
	for i := 0; i < 4; i++ {
		frames = append(frames, quietFrame())
	}
	return frames
}

// fastTimings shrinks the loop's windows so frame scripts resolve instantly.
func fastTimings() []Option {
	return []Option{
		WithCalibration(20 * time.Millisecond),
		WithSilenceHold(20 * time.Millisecond),
		WithOnsetTimeout(200 * time.Millisecond),
		WithMaxPhrase(500 * time.Millisecond),
	}
}

// nextEvent reads one event or fails the test after a timeout.
func nextEvent(t *testing.T, l *Loop) Event {
	t.Helper()
	select {
	case ev := <-l.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for capture event")
		return Event{}
	}
}

// stopAndDrain stops the loop and waits for the run goroutine to exit.
func stopAndDrain(t *testing.T, l *Loop) {
	t.Helper()
	l.Stop()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopTranscribesUtterance(t *testing.T) {
	mic := &audiomock.Microphone{
		Sessions: [][]audio.Frame{spokenSession()},
		OpenErr:  errors.New("device gone"),
	}
	rec := &sttmock.Recognizer{
		Results: []sttmock.Result{{Transcript: stt.Transcript{Text: "hello there"}}},
	}
	l := New(mic, rec, append(fastTimings(), WithBackoff(time.Hour))...)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopAndDrain(t, l)

	if ev := nextEvent(t, l); ev.Status != StatusListening {
		t.Fatalf("first event = %+v, want listening status", ev)
	}
	ev := nextEvent(t, l)
	if !ev.IsTranscript() {
		t.Fatalf("event = %+v, want transcript", ev)
	}
	if ev.Transcript != "hello there" {
		t.Errorf("transcript = %q, want %q", ev.Transcript, "hello there")
	}

	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("transcribe calls = %d, want 1", len(calls))
	}
	got := calls[0].Audio
	if got.SampleRate != 16000 || got.Channels != 1 {
		t.Errorf("audio format = %d Hz / %d ch, want 16000 Hz / 1 ch", got.SampleRate, got.Channels)
	}
	if len(got.PCM) == 0 || len(got.PCM)%frameBytes != 0 {
		t.Errorf("pcm length = %d, want non-zero multiple of %d", len(got.PCM), frameBytes)
	}
}

func TestLoopContinuesAfterUnintelligible(t *testing.T) {
	mic := &audiomock.Microphone{
		Sessions: [][]audio.Frame{spokenSession(), spokenSession()},
		OpenErr:  errors.New("device gone"),
	}
	rec := &sttmock.Recognizer{
		Results: []sttmock.Result{
			{Err: stt.ErrUnintelligible},
			{Transcript: stt.Transcript{Text: "second try"}},
		},
	}
	l := New(mic, rec, append(fastTimings(), WithBackoff(time.Hour))...)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopAndDrain(t, l)

	if ev := nextEvent(t, l); ev.Status != StatusListening {
		t.Fatalf("first event = %+v, want listening status", ev)
	}
	if ev := nextEvent(t, l); ev.Status != StatusUnrecognized {
		t.Fatalf("event = %+v, want unrecognized status", ev)
	}
	if ev := nextEvent(t, l); ev.Transcript != "second try" {
		t.Fatalf("event = %+v, want transcript %q", ev, "second try")
	}
}

func TestLoopRecognitionErrorHasNoBackoff(t *testing.T) {
	mic := &audiomock.Microphone{
		Sessions: [][]audio.Frame{spokenSession(), spokenSession()},
		OpenErr:  errors.New("device gone"),
	}
	svcErr := errors.New("stt service unavailable")
	rec := &sttmock.Recognizer{
		Results: []sttmock.Result{
			{Err: svcErr},
			{Transcript: stt.Transcript{Text: "recovered"}},
		},
	}
	// Backoff is set far past the event timeout: the follow-up transcript
	// arriving proves recognition errors skip it.
	l := New(mic, rec, append(fastTimings(), WithBackoff(time.Hour))...)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopAndDrain(t, l)

	if ev := nextEvent(t, l); ev.Status != StatusListening {
		t.Fatalf("first event = %+v, want listening status", ev)
	}
	ev := nextEvent(t, l)
	if ev.Status != StatusRecognitionError {
		t.Fatalf("event = %+v, want recognition-error status", ev)
	}
	if !errors.Is(ev.Err, svcErr) {
		t.Errorf("event err = %v, want %v", ev.Err, svcErr)
	}
	if ev := nextEvent(t, l); ev.Transcript != "recovered" {
		t.Fatalf("event = %+v, want transcript %q", ev, "recovered")
	}
}

func TestLoopDeviceFaultBacksOffAndRetries(t *testing.T) {
	mic := &audiomock.Microphone{OpenErr: errors.New("no such device")}
	rec := &sttmock.Recognizer{}
	l := New(mic, rec, append(fastTimings(), WithBackoff(5*time.Millisecond))...)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopAndDrain(t, l)

	if ev := nextEvent(t, l); ev.Status != StatusListening {
		t.Fatalf("first event = %+v, want listening status", ev)
	}
	for i := 0; i < 2; i++ {
		ev := nextEvent(t, l)
		if ev.Status != StatusDeviceError {
			t.Fatalf("event = %+v, want device-error status", ev)
		}
		if ev.Err == nil {
			t.Error("device-error event carries no error")
		}
	}
	if len(rec.Calls()) != 0 {
		t.Errorf("transcribe calls = %d, want 0", len(rec.Calls()))
	}
}

func TestLoopQuietCycleEmitsNothing(t *testing.T) {
	quiet := make([]audio.Frame, 6)
	for i := range quiet {
		quiet[i] = quietFrame()
	}
	mic := &audiomock.Microphone{
		Sessions: [][]audio.Frame{quiet},
		OpenErr:  errors.New("device gone"),
	}
	rec := &sttmock.Recognizer{}
	l := New(mic, rec, append(fastTimings(), WithBackoff(time.Hour))...)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopAndDrain(t, l)

	if ev := nextEvent(t, l); ev.Status != StatusListening {
		t.Fatalf("first event = %+v, want listening status", ev)
	}
	// The quiet session must pass silently; the next event is the scripted
	// device fault once the session script is exhausted.
	if ev := nextEvent(t, l); ev.Status != StatusDeviceError {
		t.Fatalf("event = %+v, want device-error status", ev)
	}
	if len(rec.Calls()) != 0 {
		t.Errorf("transcribe calls = %d, want 0 for a quiet cycle", len(rec.Calls()))
	}
}

func TestLoopStopIsIdempotentAndTerminal(t *testing.T) {
	mic := &audiomock.Microphone{OpenErr: errors.New("no such device")}
	l := New(mic, &sttmock.Recognizer{}, append(fastTimings(), WithBackoff(time.Hour))...)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ev := nextEvent(t, l); ev.Status != StatusListening {
		t.Fatalf("first event = %+v, want listening status", ev)
	}

	l.Stop()
	l.Stop()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	if l.Running() {
		t.Error("Running() = true after stop")
	}

	sawStopped := false
drain:
	for {
		select {
		case ev := <-l.Events():
			if ev.Status == StatusStopped {
				sawStopped = true
			}
		default:
			break drain
		}
	}
	if !sawStopped {
		t.Error("no stopped status emitted")
	}

	// A stopped loop can be started again.
	if err := l.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	stopAndDrain(t, l)
}

func TestLoopStartTwiceFails(t *testing.T) {
	mic := &audiomock.Microphone{OpenErr: errors.New("no such device")}
	l := New(mic, &sttmock.Recognizer{}, append(fastTimings(), WithBackoff(time.Hour))...)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopAndDrain(t, l)

	if err := l.Start(); err == nil {
		t.Fatal("second Start succeeded, want error")
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusIdle:             "idle",
		StatusListening:        "listening",
		StatusUnrecognized:     "unrecognized",
		StatusRecognitionError: "recognition-error",
		StatusDeviceError:      "device-error",
		StatusStopped:          "stopped",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", status, got, want)
		}
	}
}

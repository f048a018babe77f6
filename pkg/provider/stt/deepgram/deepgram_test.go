package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxhollow/voxd/pkg/provider/stt"
)

func listenJSON(transcript string, confidence float64) string {
	resp := map[string]any{
		"results": map[string]any{
			"channels": []any{
				map[string]any{
					"alternatives": []any{
						map[string]any{
							"transcript": transcript,
							"confidence": confidence,
						},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func testAudio() stt.Audio {
	return stt.Audio{
		PCM:        make([]byte, 640),
		SampleRate: 16000,
		Channels:   1,
	}
}

func TestTranscribe_Success(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotQuery map[string][]string
	var gotBodyLen int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = r.URL.Query()
		body, _ := io.ReadAll(r.Body)
		gotBodyLen = len(body)
		io.WriteString(w, listenJSON("hello world", 0.97))
	}))
	defer srv.Close()

	r, err := New("dg-test", WithBaseURL(srv.URL), WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := r.Transcribe(context.Background(), testAudio())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "hello world" {
		t.Errorf("Text = %q, want %q", tr.Text, "hello world")
	}
	if tr.Confidence != 0.97 {
		t.Errorf("Confidence = %v, want 0.97", tr.Confidence)
	}

	if gotPath != "/v1/listen" {
		t.Errorf("path = %q, want /v1/listen", gotPath)
	}
	if gotAuth != "Token dg-test" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Token dg-test")
	}
	if gotContentType != "audio/raw" {
		t.Errorf("Content-Type = %q, want audio/raw", gotContentType)
	}
	if gotBodyLen != 640 {
		t.Errorf("body length = %d, want 640", gotBodyLen)
	}

	for param, want := range map[string]string{
		"model":       "nova-2",
		"encoding":    "linear16",
		"sample_rate": "16000",
		"channels":    "1",
		"language":    "en",
	} {
		if got := gotQuery[param]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", param, got, want)
		}
	}
}

func TestTranscribe_CustomModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("model"); got != "nova-3" {
			t.Errorf("model = %q, want nova-3", got)
		}
		io.WriteString(w, listenJSON("ok", 0.9))
	}))
	defer srv.Close()

	r, err := New("key", WithBaseURL(srv.URL), WithModel("nova-3"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Transcribe(context.Background(), testAudio()); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestTranscribe_EmptyTranscriptIsUnintelligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listenJSON("", 0))
	}))
	defer srv.Close()

	r, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = r.Transcribe(context.Background(), testAudio())
	if !errors.Is(err, stt.ErrUnintelligible) {
		t.Errorf("got %v, want ErrUnintelligible", err)
	}
}

func TestTranscribe_NoChannelsIsUnintelligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":{"channels":[]}}`)
	}))
	defer srv.Close()

	r, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = r.Transcribe(context.Background(), testAudio())
	if !errors.Is(err, stt.ErrUnintelligible) {
		t.Errorf("got %v, want ErrUnintelligible", err)
	}
}

func TestTranscribe_EmptyAudioIsUnintelligible(t *testing.T) {
	r, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// No request must be made; the zero-value base URL would fail loudly.
	_, err = r.Transcribe(context.Background(), stt.Audio{SampleRate: 16000, Channels: 1})
	if !errors.Is(err, stt.ErrUnintelligible) {
		t.Errorf("got %v, want ErrUnintelligible", err)
	}
}

func TestTranscribe_ServerErrorIsNotUnintelligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = r.Transcribe(context.Background(), testAudio())
	if err == nil {
		t.Fatal("expected error for 503 response, got nil")
	}
	if errors.Is(err, stt.ErrUnintelligible) {
		t.Errorf("service fault must not be ErrUnintelligible: %v", err)
	}
}

func TestTranscribe_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer srv.Close()

	r, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := r.Transcribe(context.Background(), testAudio()); err == nil {
		t.Fatal("expected error for malformed response, got nil")
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key, got nil")
	}
}

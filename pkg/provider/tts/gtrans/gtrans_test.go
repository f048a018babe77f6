package gtrans

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/voxhollow/voxd/pkg/provider/tts"
)

func TestSynthesize_Success(t *testing.T) {
	const mp3Payload = "ID3fake-mp3-bytes"
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, mp3Payload)
	}))
	defer srv.Close()

	s := New(WithBaseURL(srv.URL), WithLanguage("de"), WithSpeed(1.5), WithTempDir(t.TempDir()))

	asset, err := s.Synthesize(context.Background(), "Hallo Welt")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer asset.Release()

	data, err := os.ReadFile(asset.Path())
	if err != nil {
		t.Fatalf("read asset file: %v", err)
	}
	if string(data) != mp3Payload {
		t.Errorf("asset content = %q, want %q", data, mp3Payload)
	}
	if !strings.HasSuffix(asset.Path(), ".mp3") {
		t.Errorf("asset path %q should end in .mp3", asset.Path())
	}

	for param, want := range map[string]string{
		"q":       "Hallo Welt",
		"tl":      "de",
		"textlen": "10",
		"speed":   "1.5",
		"client":  "tw-ob",
		"ie":      "UTF-8",
	} {
		if got := gotQuery[param]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", param, got, want)
		}
	}
}

func TestSynthesize_TextlenCountsRunes(t *testing.T) {
	// 14 characters, 17 bytes.
	const chunk = "Grüße aus Köln"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("textlen"); got != "14" {
			t.Errorf("textlen = %q, want 14 (characters, not bytes)", got)
		}
		io.WriteString(w, "audio")
	}))
	defer srv.Close()

	s := New(WithBaseURL(srv.URL), WithTempDir(t.TempDir()))
	asset, err := s.Synthesize(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	asset.Release()
}

func TestSynthesize_ReleaseRemovesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "audio")
	}))
	defer srv.Close()

	s := New(WithBaseURL(srv.URL), WithTempDir(t.TempDir()))

	asset, err := s.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	path := asset.Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("asset file should exist before release: %v", err)
	}

	asset.Release()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("asset file should be removed after release, stat err = %v", err)
	}

	// Second release is a no-op.
	asset.Release()
}

func TestSynthesize_NonOKIsSynthesisError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := New(WithBaseURL(srv.URL), WithTempDir(t.TempDir()))

	_, err := s.Synthesize(context.Background(), "hello")
	var synthErr *tts.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("got %v, want *tts.SynthesisError", err)
	}
	if synthErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", synthErr.StatusCode, http.StatusForbidden)
	}
}

func TestSynthesize_EmptyChunk(t *testing.T) {
	s := New(WithTempDir(t.TempDir()))
	if _, err := s.Synthesize(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty chunk, got nil")
	}
}

func TestSynthesize_DefaultSpeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("speed"); got != "2.0" {
			t.Errorf("speed = %q, want 2.0", got)
		}
		io.WriteString(w, "audio")
	}))
	defer srv.Close()

	s := New(WithBaseURL(srv.URL), WithTempDir(t.TempDir()))
	asset, err := s.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	asset.Release()
}

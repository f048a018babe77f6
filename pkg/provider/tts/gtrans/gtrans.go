// Package gtrans provides a tts.Synthesizer backed by the Google Translate
// text-to-speech endpoint (GET /translate_tts).
//
// The endpoint is a plain HTTP GET with the chunk text and its length as
// query parameters and returns MP3 bytes. It enforces a hard text-length
// limit, which is why callers chunk replies before synthesis (see
// segment.ChunkForSynthesis). Each successful call writes the MP3 payload to
// a uniquely named temporary file and returns it wrapped as a [tts.Asset].
package gtrans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/voxhollow/voxd/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

const (
	defaultBaseURL  = "https://translate.google.com"
	defaultLanguage = "en"
	defaultSpeed    = 2.0
	defaultTimeout  = 15 * time.Second
	ttsEndpoint     = "/translate_tts"

	// tempPattern names the temporary files holding synthesized audio.
	tempPattern = "voxd-tts-*.mp3"
)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithBaseURL overrides the endpoint base URL. Useful for tests and proxies.
func WithBaseURL(u string) Option {
	return func(s *Synthesizer) { s.baseURL = u }
}

// WithLanguage sets the target language code sent as the tl parameter
// (e.g., "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Synthesizer) { s.language = lang }
}

// WithSpeed sets the playback speed multiplier requested from the endpoint.
// Defaults to 2.0, matching the assistant's brisk reading pace.
func WithSpeed(speed float64) Option {
	return func(s *Synthesizer) { s.speed = speed }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.httpClient.Timeout = d }
}

// WithTempDir sets the directory for the temporary audio files. Defaults to
// the system temp directory.
func WithTempDir(dir string) Option {
	return func(s *Synthesizer) { s.tempDir = dir }
}

// Synthesizer implements tts.Synthesizer against the Google Translate TTS
// endpoint. It is safe for concurrent use; each Synthesize call is an
// independent HTTP request and temp file.
type Synthesizer struct {
	baseURL    string
	language   string
	speed      float64
	tempDir    string
	httpClient *http.Client
}

// New creates a Synthesizer with the given options.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		baseURL:  defaultBaseURL,
		language: defaultLanguage,
		speed:    defaultSpeed,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize implements tts.Synthesizer. It issues a GET request with the
// URL-encoded chunk and its length, writes the MP3 response to a fresh
// temporary file, and returns the file wrapped as an Asset. A non-200 status
// is returned as a [*tts.SynthesisError] so the caller can skip the chunk.
func (s *Synthesizer) Synthesize(ctx context.Context, chunk string) (*tts.Asset, error) {
	if chunk == "" {
		return nil, errors.New("gtrans: chunk must not be empty")
	}

	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("q", chunk)
	params.Set("tl", s.language)
	params.Set("total", "1")
	params.Set("idx", "0")
	// textlen counts characters, not bytes; chunks are bounded by rune count
	// so the reported length must match for multibyte text.
	params.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))
	params.Set("speed", strconv.FormatFloat(s.speed, 'f', 1, 64))

	reqURL := s.baseURL + ttsEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gtrans: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gtrans: GET %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &tts.SynthesisError{StatusCode: resp.StatusCode}
	}

	f, err := os.CreateTemp(s.tempDir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("gtrans: create temp audio file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("gtrans: write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("gtrans: close temp audio file: %w", err)
	}

	return tts.NewAsset(f.Name()), nil
}

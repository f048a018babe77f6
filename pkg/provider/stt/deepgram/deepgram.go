// Package deepgram provides an stt.Recognizer backed by Deepgram's
// prerecorded transcription REST API (POST /v1/listen).
//
// Raw PCM is submitted with encoding/sample-rate/channel query parameters so
// no container format is needed. An empty transcript in an otherwise
// successful response is mapped to [stt.ErrUnintelligible].
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voxhollow/voxd/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Recognizer = (*Recognizer)(nil)

const (
	defaultBaseURL = "https://api.deepgram.com"
	defaultModel   = "nova-2"
	defaultTimeout = 30 * time.Second
	listenEndpoint = "/v1/listen"
)

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithBaseURL overrides the Deepgram API base URL. Useful for tests and
// self-hosted deployments.
func WithBaseURL(u string) Option {
	return func(r *Recognizer) { r.baseURL = u }
}

// WithModel selects the Deepgram model (e.g., "nova-2", "nova-3").
// Defaults to "nova-2".
func WithModel(model string) Option {
	return func(r *Recognizer) { r.model = model }
}

// WithLanguage sets the BCP-47 language tag for recognition (e.g., "en",
// "en-US"). Empty lets Deepgram auto-detect.
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(r *Recognizer) { r.httpClient.Timeout = d }
}

// Recognizer implements stt.Recognizer against the Deepgram prerecorded API.
// It is safe for concurrent use; each Transcribe call is an independent
// HTTP request.
type Recognizer struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Recognizer authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	r := &Recognizer{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// listenResponse mirrors the subset of the Deepgram response we consume.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements stt.Recognizer. It POSTs the raw PCM to /v1/listen
// and returns the top alternative of the first channel.
func (r *Recognizer) Transcribe(ctx context.Context, audio stt.Audio) (stt.Transcript, error) {
	if len(audio.PCM) == 0 {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrUnintelligible)
	}

	params := url.Values{}
	params.Set("model", r.model)
	params.Set("encoding", "linear16")
	params.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	params.Set("channels", strconv.Itoa(audio.Channels))
	if r.language != "" {
		params.Set("language", r.language)
	}

	reqURL := r.baseURL + listenEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(audio.PCM))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: create listen request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+r.apiKey)
	req.Header.Set("Content-Type", "audio/raw")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: POST %s: %w", listenEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("deepgram: POST %s returned status %d", listenEndpoint, resp.StatusCode)
	}

	var decoded listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: decode listen response: %w", err)
	}

	if len(decoded.Results.Channels) == 0 || len(decoded.Results.Channels[0].Alternatives) == 0 {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrUnintelligible)
	}

	alt := decoded.Results.Channels[0].Alternatives[0]
	if alt.Transcript == "" {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrUnintelligible)
	}

	return stt.Transcript{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
	}, nil
}

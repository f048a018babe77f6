// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the voxd voice assistant.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration is a [time.Duration] that unmarshals from YAML strings such as
// "5s" or "300ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for voxd.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`
	Capture   CaptureConfig   `yaml:"capture"`

	// Vocabulary lists terms the transcript corrector realigns recognized
	// speech against (product names, technical terms, proper nouns).
	Vocabulary []string `yaml:"vocabulary"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// Chat is the primary chat-completion backend.
	Chat ProviderEntry `yaml:"chat"`

	// ChatFallbacks are tried in order when the primary chat backend fails.
	ChatFallbacks []ProviderEntry `yaml:"chat_fallbacks"`

	// STT is the primary speech recognizer.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary recognizer fails.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	// TTS is the speech synthesizer.
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "groq", "deepgram", "gtrans").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "llama3-70b-8192", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above (e.g., "language", "speed").
	Options map[string]any `yaml:"options"`
}

// StringOption returns the named option as a string, or "" when unset or of
// another type.
func (e ProviderEntry) StringOption(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// FloatOption returns the named option as a float64. Integer YAML values are
// converted. Returns 0 when unset or of another type.
func (e ProviderEntry) FloatOption(key string) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// SessionConfig tunes the conversation session.
type SessionConfig struct {
	// SystemPrompt overrides the assistant's standing instruction. Empty
	// uses the built-in default.
	SystemPrompt string `yaml:"system_prompt"`

	// HistoryWindow is how many recent history messages accompany each
	// request. 0 uses the default of 10.
	HistoryWindow int `yaml:"history_window"`

	// Temperature, when non-nil, is passed to the chat backend.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens, when positive, caps the response length.
	MaxTokens int `yaml:"max_tokens"`
}

// CaptureConfig tunes the speech-capture loop. Zero values use the loop's
// built-in defaults.
type CaptureConfig struct {
	// SampleRate is the microphone capture rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// OnsetTimeout is how long each cycle waits for speech to begin.
	// Default: 5s.
	OnsetTimeout Duration `yaml:"onset_timeout"`

	// MaxPhrase caps the recorded length of one utterance. Default: 10s.
	MaxPhrase Duration `yaml:"max_phrase"`

	// Calibration is the ambient-noise measurement window. Default: 300ms.
	Calibration Duration `yaml:"calibration"`

	// SilenceHold is how much trailing silence ends an utterance.
	// Default: 800ms.
	SilenceHold Duration `yaml:"silence_hold"`

	// Backoff is the fixed delay after a microphone fault. Default: 2s.
	Backoff Duration `yaml:"backoff"`
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"chat": {"groq", "openai", "anthropic", "gemini", "mistral", "ollama"},
	"stt":  {"deepgram"},
	"tts":  {"gtrans"},
}

// ValidChatModels lists known model names per chat provider. Unknown models
// produce a warning, not an error, so newly released models keep working.
var ValidChatModels = map[string][]string{
	"groq": {"llama3-70b-8192", "llama3-8b-8192", "mixtral-8x7b-32768"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Provider name validation warns for unknown names.
	validateProviderName("chat", cfg.Providers.Chat.Name)
	for _, fb := range cfg.Providers.ChatFallbacks {
		validateProviderName("chat", fb.Name)
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, fb := range cfg.Providers.STTFallbacks {
		validateProviderName("stt", fb.Name)
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.Chat.Name == "" {
		errs = append(errs, errors.New("providers.chat.name is required"))
	}
	validateChatModel(cfg.Providers.Chat)
	for i, fb := range cfg.Providers.ChatFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.chat_fallbacks[%d].name is required", i))
		}
		validateChatModel(fb)
	}
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
	}

	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; voice input will be unavailable")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; responses will not be spoken")
	}

	// Session
	if t := cfg.Session.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("session.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Session.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("session.history_window %d must not be negative", cfg.Session.HistoryWindow))
	}
	if cfg.Session.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("session.max_tokens %d must not be negative", cfg.Session.MaxTokens))
	}

	// Capture
	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}
	for _, d := range []struct {
		name  string
		value Duration
	}{
		{"capture.onset_timeout", cfg.Capture.OnsetTimeout},
		{"capture.max_phrase", cfg.Capture.MaxPhrase},
		{"capture.calibration", cfg.Capture.Calibration},
		{"capture.silence_hold", cfg.Capture.SilenceHold},
		{"capture.backoff", cfg.Capture.Backoff},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}
	if cfg.Capture.OnsetTimeout > 0 && cfg.Capture.MaxPhrase > 0 &&
		cfg.Capture.MaxPhrase < cfg.Capture.OnsetTimeout {
		slog.Warn("capture.max_phrase is shorter than capture.onset_timeout",
			"max_phrase", cfg.Capture.MaxPhrase.Std(),
			"onset_timeout", cfg.Capture.OnsetTimeout.Std(),
		)
	}

	// TTS speed, when set, must be a sane playback rate.
	if speed := cfg.Providers.TTS.FloatOption("speed"); speed != 0 && (speed < 0.25 || speed > 4) {
		errs = append(errs, fmt.Errorf("providers.tts.options.speed %.2f is out of range [0.25, 4]", speed))
	}

	// Vocabulary entries must be non-blank.
	for i, term := range cfg.Vocabulary {
		if term == "" {
			errs = append(errs, fmt.Errorf("vocabulary[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

// validateChatModel logs a warning when the model is not in the known list
// for the provider.
func validateChatModel(entry ProviderEntry) {
	if entry.Name == "" || entry.Model == "" {
		return
	}
	known, ok := ValidChatModels[entry.Name]
	if !ok {
		return
	}
	if slices.Contains(known, entry.Model) {
		return
	}
	slog.Warn("unknown chat model, may be a typo or a newly released model",
		"provider", entry.Name,
		"model", entry.Model,
		"known", known,
	)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

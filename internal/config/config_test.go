package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/voxhollow/voxd/internal/config"
	"gopkg.in/yaml.v3"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level config.LogLevel
		want  bool
	}{
		{config.LogDebug, true},
		{config.LogInfo, true},
		{config.LogWarn, true},
		{config.LogError, true},
		{config.LogLevel(""), false},
		{config.LogLevel("trace"), false},
		{config.LogLevel("INFO"), false},
	}

	for _, tt := range tests {
		if got := tt.level.IsValid(); got != tt.want {
			t.Errorf("IsValid(%q): got %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", yaml: `"5s"`, want: 5 * time.Second},
		{name: "milliseconds", yaml: `"300ms"`, want: 300 * time.Millisecond},
		{name: "compound", yaml: `"1m30s"`, want: 90 * time.Second},
		{name: "bare number", yaml: `5`, wantErr: false, want: 0},
		{name: "garbage", yaml: `"fast"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var d config.Duration
			err := yaml.Unmarshal([]byte(tt.yaml), &d)
			if tt.name == "bare number" {
				// YAML integers are not valid durations.
				if err == nil {
					t.Fatal("expected error for bare number, got nil")
				}
				return
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Std() != tt.want {
				t.Errorf("got %v, want %v", d.Std(), tt.want)
			}
		})
	}
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	t.Parallel()
	d := config.Duration(800 * time.Millisecond)
	out, err := yaml.Marshal(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "800ms" {
		t.Errorf("marshal: got %q, want %q", got, "800ms")
	}

	var back config.Duration
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != d {
		t.Errorf("round trip: got %v, want %v", back.Std(), d.Std())
	}
}

func TestProviderEntry_Options(t *testing.T) {
	t.Parallel()

	entry := config.ProviderEntry{
		Name: "gtrans",
		Options: map[string]any{
			"language": "en",
			"speed":    1.25,
			"retries":  3,
			"verbose":  true,
		},
	}

	if got := entry.StringOption("language"); got != "en" {
		t.Errorf("StringOption(language): got %q, want en", got)
	}
	if got := entry.StringOption("missing"); got != "" {
		t.Errorf("StringOption(missing): got %q, want empty", got)
	}
	if got := entry.StringOption("speed"); got != "" {
		t.Errorf("StringOption on float value: got %q, want empty", got)
	}

	if got := entry.FloatOption("speed"); got != 1.25 {
		t.Errorf("FloatOption(speed): got %v, want 1.25", got)
	}
	if got := entry.FloatOption("retries"); got != 3 {
		t.Errorf("FloatOption on int value: got %v, want 3", got)
	}
	if got := entry.FloatOption("verbose"); got != 0 {
		t.Errorf("FloatOption on bool value: got %v, want 0", got)
	}
	if got := entry.FloatOption("missing"); got != 0 {
		t.Errorf("FloatOption(missing): got %v, want 0", got)
	}

	var empty config.ProviderEntry
	if got := empty.StringOption("anything"); got != "" {
		t.Errorf("StringOption on nil map: got %q, want empty", got)
	}
	if got := empty.FloatOption("anything"); got != 0 {
		t.Errorf("FloatOption on nil map: got %v, want 0", got)
	}
}

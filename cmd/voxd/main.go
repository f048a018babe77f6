// Command voxd is a terminal voice assistant: speak (or type) to it and it
// answers out loud.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxhollow/voxd/internal/capture"
	"github.com/voxhollow/voxd/internal/config"
	"github.com/voxhollow/voxd/internal/health"
	"github.com/voxhollow/voxd/internal/observe"
	"github.com/voxhollow/voxd/internal/pipeline"
	"github.com/voxhollow/voxd/internal/resilience"
	"github.com/voxhollow/voxd/internal/session"
	"github.com/voxhollow/voxd/internal/transcript"
	"github.com/voxhollow/voxd/internal/transcript/phonetic"
	"github.com/voxhollow/voxd/pkg/audio"
	"github.com/voxhollow/voxd/pkg/audio/mal"
	"github.com/voxhollow/voxd/pkg/audio/mpg"
	"github.com/voxhollow/voxd/pkg/provider/llm"
	"github.com/voxhollow/voxd/pkg/provider/llm/anyllm"
	openaillm "github.com/voxhollow/voxd/pkg/provider/llm/openai"
	"github.com/voxhollow/voxd/pkg/provider/stt"
	"github.com/voxhollow/voxd/pkg/provider/stt/deepgram"
	"github.com/voxhollow/voxd/pkg/provider/tts"
	"github.com/voxhollow/voxd/pkg/provider/tts/gtrans"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxd: config file %q not found — copy config.example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("voxd starting",
		"config", *configPath,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	var metricsMux *http.ServeMux
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsMux = http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
		go func() {
			slog.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	chat, recognizer, synth, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	sess := session.New(chat, cfg.Session.SystemPrompt, sessionOptions(cfg.Session)...)

	var mic audio.Microphone = mal.New()
	captureOpts := append(captureOptions(cfg.Capture), capture.WithMetrics(observe.DefaultMetrics()))
	loop := capture.New(mic, recognizer, captureOpts...)

	var corrector *transcript.Corrector
	pipeOpts := []pipeline.Option{pipeline.WithMetrics(observe.DefaultMetrics())}
	if len(cfg.Vocabulary) > 0 {
		corrector = transcript.NewCorrector(phonetic.New(), cfg.Vocabulary)
		pipeOpts = append(pipeOpts, pipeline.WithCorrector(corrector))
	}

	pipe := pipeline.New(sess, synth, mpg.New(), loop, pipeOpts...)

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.VocabularyChanged && corrector != nil {
			corrector.SetVocabulary(d.NewVocabulary)
			slog.Info("vocabulary reloaded", "terms", len(d.NewVocabulary))
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Health endpoints ──────────────────────────────────────────────────────
	if metricsMux != nil {
		checkers := []health.Checker{{
			Name: "config",
			Check: func(context.Context) error {
				if watcher == nil || watcher.Current() == nil {
					return errors.New("config watcher not running")
				}
				return nil
			},
		}}
		health.New(checkers...).Register(metricsMux)
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		pipe.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		renderEvents(pipe.Events())
	}()

	readCommands(ctx, pipe)

	stop()
	wg.Wait()

	if metricsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(sctx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with voxd
// into reg. Each factory receives a config.ProviderEntry and constructs the
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Chat ──────────────────────────────────────────────────────────────────
	// openai uses the native SDK client; the other hosted providers go through
	// the any-llm abstraction and share the same pattern: optional APIKey +
	// optional BaseURL.
	reg.RegisterChat("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(entry.BaseURL))
		}
		return openaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{"groq", "anthropic", "gemini", "mistral"} {
		reg.RegisterChat(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("gtrans", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []gtrans.Option
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, gtrans.WithLanguage(lang))
		}
		if speed := entry.FloatOption("speed"); speed != 0 {
			opts = append(opts, gtrans.WithSpeed(speed))
		}
		return gtrans.New(opts...), nil
	})
}

// buildProviders instantiates the configured providers and wraps each stage in
// its resilience layer. The chat backend is required; STT and TTS degrade to
// warnings when unconfigured.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, stt.Recognizer, tts.Synthesizer, error) {
	fbCfg := resilience.FallbackConfig{}

	primary, err := reg.CreateChat(cfg.Providers.Chat)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create chat provider %q: %w", cfg.Providers.Chat.Name, err)
	}
	chat := resilience.NewChatFallback(primary, cfg.Providers.Chat.Name, fbCfg)
	slog.Info("provider created", "kind", "chat", "name", cfg.Providers.Chat.Name, "model", cfg.Providers.Chat.Model)
	for _, entry := range cfg.Providers.ChatFallbacks {
		fb, err := reg.CreateChat(entry)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create chat fallback %q: %w", entry.Name, err)
		}
		chat.AddFallback(entry.Name, fb)
		slog.Info("chat fallback registered", "name", entry.Name, "model", entry.Model)
	}

	var recognizer stt.Recognizer
	if name := cfg.Providers.STT.Name; name != "" {
		primary, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		sttFb := resilience.NewRecognizerFallback(primary, name, fbCfg)
		slog.Info("provider created", "kind", "stt", "name", name)
		for _, entry := range cfg.Providers.STTFallbacks {
			fb, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
			}
			sttFb.AddFallback(entry.Name, fb)
			slog.Info("stt fallback registered", "name", entry.Name)
		}
		recognizer = sttFb
	} else {
		slog.Warn("no stt provider configured; /listen will produce device errors")
		recognizer = unavailableRecognizer{}
	}

	var synth tts.Synthesizer
	if name := cfg.Providers.TTS.Name; name != "" {
		primary, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		synth = resilience.NewSynthesizerFallback(primary, name, fbCfg)
		slog.Info("provider created", "kind", "tts", "name", name)
	} else {
		slog.Warn("no tts provider configured; responses will not be spoken")
		synth = silentSynthesizer{}
	}

	return chat, recognizer, synth, nil
}

// unavailableRecognizer stands in when no STT provider is configured.
type unavailableRecognizer struct{}

func (unavailableRecognizer) Transcribe(context.Context, stt.Audio) (stt.Transcript, error) {
	return stt.Transcript{}, errors.New("no stt provider configured")
}

// silentSynthesizer stands in when no TTS provider is configured. Responses
// are still displayed, just not spoken.
type silentSynthesizer struct{}

func (silentSynthesizer) Synthesize(context.Context, string) (*tts.Asset, error) {
	return nil, errors.New("no tts provider configured")
}

// ── Option mapping ────────────────────────────────────────────────────────────

func sessionOptions(sc config.SessionConfig) []session.Option {
	var opts []session.Option
	if sc.HistoryWindow > 0 {
		opts = append(opts, session.WithHistoryWindow(sc.HistoryWindow))
	}
	if sc.Temperature != nil {
		opts = append(opts, session.WithTemperature(*sc.Temperature))
	}
	if sc.MaxTokens > 0 {
		opts = append(opts, session.WithMaxTokens(sc.MaxTokens))
	}
	return opts
}

func captureOptions(cc config.CaptureConfig) []capture.Option {
	var opts []capture.Option
	if cc.SampleRate > 0 {
		opts = append(opts, capture.WithFormat(audio.Format{SampleRate: cc.SampleRate, Channels: 1}))
	}
	if d := cc.OnsetTimeout.Std(); d > 0 {
		opts = append(opts, capture.WithOnsetTimeout(d))
	}
	if d := cc.MaxPhrase.Std(); d > 0 {
		opts = append(opts, capture.WithMaxPhrase(d))
	}
	if d := cc.Calibration.Std(); d > 0 {
		opts = append(opts, capture.WithCalibration(d))
	}
	if d := cc.SilenceHold.Std(); d > 0 {
		opts = append(opts, capture.WithSilenceHold(d))
	}
	if d := cc.Backoff.Std(); d > 0 {
		opts = append(opts, capture.WithBackoff(d))
	}
	return opts
}

// ── Terminal front-end ────────────────────────────────────────────────────────

// renderEvents prints pipeline events until the event channel closes.
func renderEvents(events <-chan pipeline.Event) {
	for ev := range events {
		switch ev.Kind {
		case pipeline.EventUserMessage:
			fmt.Printf("You: %s\n", ev.Text)
		case pipeline.EventAssistantMessage:
			fmt.Printf("Assistant: %s\n", ev.Text)
		case pipeline.EventStatus:
			fmt.Printf("[%s]\n", statusLine(ev))
		}
	}
}

// statusLine maps a status event to the line shown in the terminal.
func statusLine(ev pipeline.Event) string {
	switch ev.Status {
	case pipeline.StatusReady:
		return "Ready"
	case pipeline.StatusListening:
		return "Listening..."
	case pipeline.StatusThinking:
		return "Thinking..."
	case pipeline.StatusUnrecognized:
		return "Could not understand audio"
	case pipeline.StatusRecognitionError:
		return fmt.Sprintf("Recognition error: %v", ev.Err)
	case pipeline.StatusCaptureError:
		return fmt.Sprintf("Error listening: %v", ev.Err)
	default:
		return ev.Status.String()
	}
}

// readCommands reads stdin lines and drives the pipeline until EOF, /quit, or
// ctx cancellation. Lines starting with "/" are commands; everything else is
// sent as a typed message.
func readCommands(ctx context.Context, pipe *pipeline.Pipeline) {
	fmt.Println("Commands: /listen /stop /clear /quit — anything else is sent as a message.")

	// Scan on a separate goroutine so a signal can interrupt the prompt even
	// while Scan blocks on a quiet terminal.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("stdin read error", "err", err)
		}
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return
		case line, ok = <-lines:
			if !ok {
				return
			}
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/listen":
			pipe.StartListening(ctx)
		case "/stop":
			pipe.StopListening(ctx)
		case "/clear":
			pipe.ClearConversation(ctx)
		default:
			if strings.HasPrefix(line, "/") {
				fmt.Printf("Unknown command %q\n", line)
				continue
			}
			// SendText blocks until the reply has been spoken; run it off the
			// command loop so /stop stays responsive.
			go func() {
				if !pipe.SendText(ctx, line) {
					fmt.Println("[Busy — still answering the previous message]")
				}
			}()
		}
	}
}

// ── Logger ────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

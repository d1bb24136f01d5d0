// Command voxbridge bridges Twilio Media Streams phone calls to the OpenAI
// Realtime API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxbridge/voxbridge/internal/bridge"
	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/health"
	"github.com/voxbridge/voxbridge/internal/monitor"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/telephony"
)

const (
	defaultListenAddr = ":8080"

	// maxSessions caps concurrent calls per instance for the readiness probe.
	maxSessions = 50
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration (with hot reload) ──────────────────────────────────
	logLevel := new(slog.LevelVar)
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.VoiceChanged || d.InstructionsChanged {
			slog.Info("model settings changed; they apply to new calls",
				"voice_changed", d.VoiceChanged,
				"instructions_changed", d.InstructionsChanged,
			)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxbridge: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxbridge: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	slog.Info("voxbridge starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
		"model", cfg.Model.Name,
		"voice", cfg.Model.EffectiveVoice(),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxbridge",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Local playback (optional) ─────────────────────────────────────────────
	var bridgeOpts []bridge.Option
	bridgeOpts = append(bridgeOpts, bridge.WithMetrics(metrics))
	if cfg.Audio.LocalPlayback {
		rate := cfg.Audio.ModelSampleRate
		if rate <= 0 {
			rate = 24000
		}
		speaker, err := monitor.Open(rate)
		if err != nil {
			slog.Warn("local playback unavailable", "err", err)
		} else {
			defer speaker.Close()
			bridgeOpts = append(bridgeOpts, bridge.WithMonitor(speaker))
			slog.Info("local playback enabled", "sample_rate", rate)
		}
	}

	// ── Bridge orchestrator ───────────────────────────────────────────────────
	orch := bridge.New(bridge.Config{
		APIKey:          cfg.Model.APIKey,
		Model:           cfg.Model.Name,
		BaseURL:         cfg.Model.BaseURL,
		Voice:           cfg.Model.EffectiveVoice(),
		Instructions:    cfg.Model.EffectiveInstructions(),
		ModelSampleRate: cfg.Audio.ModelSampleRate,
		ConnectTimeout:  cfg.Model.ConnectTimeout,
		QueueDepth:      cfg.Audio.QueueDepth,
	}, bridgeOpts...)

	// ── HTTP routes ───────────────────────────────────────────────────────────
	checks := health.New(
		health.Checker{
			Name: "credentials",
			Check: func(context.Context) error {
				if cfg.Model.APIKey == "" {
					return errors.New("model api key missing")
				}
				return nil
			},
		},
		health.MaxSessions(maxSessions, orch.Registry().Len),
	)

	mux := http.NewServeMux()
	mux.Handle("/audio", telephony.NewHandler(orch))
	mux.Handle("GET /metrics", promhttp.Handler())
	checks.Register(mux)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down")
		if cfg.Server.TLS != nil {
			serveErr <- server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		slog.Error("bridge shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/api"
	"github.com/snarg/audio-translator/internal/codec"
	"github.com/snarg/audio-translator/internal/config"
	"github.com/snarg/audio-translator/internal/metrics"
	"github.com/snarg/audio-translator/internal/notify"
	"github.com/snarg/audio-translator/internal/pipeline"
	"github.com/snarg/audio-translator/internal/storage"
	"github.com/snarg/audio-translator/internal/watch"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.InboxDir, "inbox", "", "directory to watch for audio files (overrides INBOX_DIR)")
	flag.StringVar(&overrides.OutputDir, "output", "", "directory for transcript artifacts (overrides OUTPUT_DIR)")
	flag.StringVar(&overrides.TempDir, "temp-dir", "", "parent directory for per-run workspaces (overrides TEMP_DIR)")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("audio-translator starting")
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set; requests must supply their own key")
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audio tools
	ff := codec.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, log)
	codecErr := ff.Check()
	if codecErr != nil {
		log.Error().Err(codecErr).Msg("audio conversion unavailable")
	}

	// Inbox artifacts need somewhere to land
	outputDir := cfg.OutputDir
	if outputDir == "" && cfg.InboxDir != "" {
		outputDir = filepath.Join(cfg.InboxDir, "out")
	}
	store, err := storage.New(cfg.S3, outputDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize artifact store")
	}
	if store != nil {
		log.Info().Str("type", store.Type()).Msg("artifact export enabled")
	}

	// MQTT job events (optional)
	var notifier pipeline.Notifier
	health := api.HealthSources{Codec: func() error { return codecErr }}
	if cfg.MQTTBrokerURL != "" {
		mqtt, err := notify.Connect(notify.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
		notifier = mqtt
		health.MQTT = mqtt
	}

	runner := pipeline.NewFromConfig(cfg, ff, notifier, store, log)
	health.InFlight = runner.InFlight

	// Inbox watcher (optional)
	var queue *watch.Queue
	var watcher *watch.Watcher
	if cfg.InboxDir != "" {
		queue = watch.NewQueue(watch.QueueOptions{
			Runner:         runner,
			SourceLanguage: cfg.InboxSourceLanguage,
			TargetLanguage: cfg.InboxTargetLanguage,
			Log:            log,
		})
		queue.Start()
		watcher = watch.NewWatcher(cfg.InboxDir, queue, watch.DefaultDebounce, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("inbox", cfg.InboxDir).Msg("failed to start inbox watcher")
		}
		health.Watcher = watcher.Status
		prometheus.MustRegister(metrics.NewCollector(runner, queue))
	} else {
		prometheus.MustRegister(metrics.NewCollector(runner, nil))
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:    cfg,
		Pipeline:  runner,
		Health:    health,
		Version:   version,
		StartTime: startTime,
		Log:       httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Stop intake before draining
	if watcher != nil {
		watcher.Stop()
		queue.Stop()
	}

	// Graceful shutdown with 30s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("audio-translator stopped")
}

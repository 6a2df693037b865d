// Command translate-file runs the transcription and translation pipeline on
// one local audio file and writes both artifacts to an output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/codec"
	"github.com/snarg/audio-translator/internal/config"
	"github.com/snarg/audio-translator/internal/pipeline"
	"github.com/snarg/audio-translator/internal/storage"
)

func main() {
	var (
		overrides config.Overrides
		source    string
		target    string
	)
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY)")
	flag.StringVar(&overrides.OutputDir, "output", "", "directory for transcript artifacts (default: current directory)")
	flag.StringVar(&overrides.TempDir, "temp-dir", "", "parent directory for the run workspace")
	flag.StringVar(&source, "source", "Auto-detect", "source language name or code")
	flag.StringVar(&target, "target", "English", "target language name or code")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <audio file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ff := codec.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, log)
	if err := ff.Check(); err != nil {
		log.Fatal().Err(err).Msg("audio conversion unavailable")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read input")
	}

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	store := storage.NewLocalStore(outputDir)

	runner := pipeline.NewFromConfig(cfg, ff, nil, store, log)
	res, err := runner.Run(ctx, pipeline.Request{
		AudioData:      data,
		Filename:       filepath.Base(input),
		SourceLanguage: source,
		TargetLanguage: target,
	})
	if err != nil {
		log.Error().Err(err).Str("stage", string(pipeline.StageOf(err))).Msg("translation failed")
		os.Exit(1)
	}

	if res.TranscriptKey == "" || res.TranslationKey == "" {
		log.Error().Str("output", outputDir).Msg("artifacts were not written")
		os.Exit(1)
	}
	fmt.Printf("%s\n%s\n",
		filepath.Join(outputDir, filepath.FromSlash(res.TranscriptKey)),
		filepath.Join(outputDir, filepath.FromSlash(res.TranslationKey)))
}

package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/config"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/docparse"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/relay"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/server"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/speech"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/storage"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/telemetry"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/upstream"
)

const serveUsage = `Usage:
  graph-llm-backend serve [--config <path>] [--port <port>] [--verbose]

Flags:
  --config string   Path to YAML configuration file (optional; environment
                    variables and defaults apply without one)
  --port   int      Override server port from configuration
  --verbose         Enable debug logging`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	var verbose bool
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")
	fs.BoolVar(&verbose, "verbose", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	installLogger(verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	if cfg.OpenRouter.APIKey == "" {
		slog.Warn("no OpenRouter API key configured; chat requests will fail until OPENROUTER_API_KEY is set")
	}

	recorder := telemetry.NewAsyncRecorder(cfg.Telemetry.BufferSize, slog.Default())
	defer recorder.Close()

	client := upstream.New(cfg.OpenRouter)
	rl := relay.New(client, client, recorder, cfg.OpenRouter, slog.Default())

	store, err := storage.NewDiskStore(cfg.Storage)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, rl, speech.New(cfg.Speech), docparse.TextParser{}, store)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func installLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

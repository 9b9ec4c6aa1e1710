package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KrzysztofStaron/graph-llm-backend/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			// The serve command has installed the console handler by now.
			slog.Info("graph-llm-backend stopped on signal")
			return
		}
		fmt.Fprintf(os.Stderr, "graph-llm-backend: %v\n", err)
		os.Exit(1)
	}
}

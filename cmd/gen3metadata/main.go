package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch containers

	"github.com/AustralianBioCommons/gen3metadata/internal/adapter/driving/cli"
	"github.com/AustralianBioCommons/gen3metadata/internal/config"
)

func main() {
	if err := run(); err != nil {
		if !cli.Logged(err) {
			slog.Error("fatal error", "error", err)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Until a command sets up its own logger, keep stdout free for data.
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.NewRootCommand(cfg, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

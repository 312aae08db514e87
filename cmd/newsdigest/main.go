package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/config"
	"github.com/JakeFAU/newsdigest/internal/logging"
	"github.com/JakeFAU/newsdigest/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type globalOptions struct {
	Config string `short:"c" long:"config" env:"NEWS_CONFIG" description:"Path to a YAML config file"`
}

func main() {
	var opts globalOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true
	registerCommands(parser, &opts)

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
	if parser.Active == nil {
		if err := (&serveCommand{global: &opts}).Execute(nil); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
}

// runApp loads configuration, builds the application and hands it to fn.
// The context is canceled on SIGINT or SIGTERM.
func runApp(global *globalOptions, fn func(ctx context.Context, app *server.App, logger *zap.Logger) error) error {
	cfg, err := config.Load(global.Config)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, Version, logger)
	if err != nil {
		logger.Error("build failed", zap.Error(err))
		return err
	}
	defer app.Close()
	return fn(ctx, app, logger)
}

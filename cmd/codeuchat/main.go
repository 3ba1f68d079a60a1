package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"codeuchat/internal/app"
	"codeuchat/pkg/config"
	"codeuchat/pkg/logger"
	"codeuchat/pkg/state/shutdown"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flags, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(1)
	}
	eff, err := config.Resolve(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, config.ErrUsage)
		os.Exit(1)
	}

	logger.Init(eff.Config.Logging.Level, eff.Config.Logging.Format)
	defer logger.Sync()
	logger.Info("codeuchat_starting", "version", version, "commit", commit, "build_date", buildDate, "config_source", eff.Source)

	a, err := app.New(eff, version)
	if err != nil {
		shutdown.Abort(eff.Bootstrap.DataDir, "startup failed", err)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()
	if err := a.Run(ctx); err != nil {
		logger.Error("codeuchat_stopped", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("codeuchat_stopped")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"termosifoni/internal/backend"
	"termosifoni/internal/cli"
	"termosifoni/internal/log"
	"termosifoni/internal/sheets"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentCLI)

	fs := flag.NewFlagSet("letture", flag.ContinueOnError)
	cmdCfg, err := cli.ParseCommand(fs, os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// Offline edits are not announced on the change feed.
	backendCfg.AMQPURL = ""

	ctx := context.Background()
	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err)
		os.Exit(1)
	}

	var mirror sheets.MirrorReader
	if cmdCfg.Command == "restore-from-sheet" && cfg.MirrorEnabled() {
		m, err := factory.CreateMirror(ctx, backend.MirrorFromAppConfig(cfg))
		if err != nil {
			logger.Error("Failed to create mirror", log.FieldError, err)
			os.Exit(1)
		}
		mirror = m
	}

	runErr := cli.RunCommand(ctx, cmdCfg, result.Store, mirror, os.Stdout, os.Stderr)
	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		if errors.Is(runErr, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

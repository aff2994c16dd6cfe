package main

import (
	"context"
	"os"
	"time"

	"termosifoni/internal/amqp"
	"termosifoni/internal/backend"
	"termosifoni/internal/cli"
	"termosifoni/internal/log"
	"termosifoni/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting termosifoni-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend is not shared with the server, the mirror will stay empty")
	}

	// The worker only reads the slot; publishing is the server's job.
	readCfg := backendCfg
	readCfg.AMQPURL = ""

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), readCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err, log.FieldBackend, readCfg.Type)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	mirror, err := factory.CreateMirror(context.Background(), backend.MirrorFromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to create mirror", log.FieldError, err)
		os.Exit(1)
	}

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
		logger.Info("Consuming readings changes", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, mirroring on interval only", "interval", cfg.MirrorInterval)
	}

	w := worker.NewMirrorWorker(result.Store, mirror, cfg.MirrorInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	if err := w.Run(ctx, consumer); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if ref, at := w.LastSync(); ref != "" {
		logger.Info("Worker stopped", log.FieldSheetsRef, ref, "last_sync", at.Format(time.RFC3339))
	}
}

// HoneybeePF - a host-resident eBPF observability agent for AI
// infrastructure hosts: block I/O, network, GPU, NCCL, and LLM call
// visibility, exported over OTLP or NATS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sureshkrishnan-v/honeybeepf/internal/config"
	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := constants.DefaultConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "honeybeepf: loading config: %v\n", err)
		return errs.ExitCode(err)
	}

	logger, err := newLogger(cfg.Agent.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "honeybeepf: initializing logger: %v\n", err)
		return 4
	}
	defer logger.Sync()

	logger.Info("honeybeepf starting",
		zap.String("version", constants.Version),
		zap.String("node", cfg.Agent.NodeName),
		zap.String("exporter_protocol", cfg.Exporter.Protocol))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sv, err := supervisor.New(cfg, logger)
	if err != nil {
		logger.Error("building supervisor", zap.Error(err))
		return errs.ExitCode(err)
	}

	if err := sv.Run(ctx); err != nil {
		logger.Error("supervisor exited with error", zap.Error(err))
		return errs.ExitCode(err)
	}

	logger.Info("honeybeepf stopped")
	return 0
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

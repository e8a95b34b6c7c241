package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openlims/lims/internal/command"
	"github.com/openlims/lims/internal/config"
	"github.com/openlims/lims/internal/domain/flagging"
	"github.com/openlims/lims/internal/domain/order"
	"github.com/openlims/lims/internal/domain/rawresult"
	"github.com/openlims/lims/internal/platform/broker"
	"github.com/openlims/lims/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-ingest",
		Short: "Ingestion tier: stage raw results and relay them to the laboratory core",
	}
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume the raw-result queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	bk, err := broker.Connect(cfg.BrokerURL, cfg.ConsumerPrefetch)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer bk.Close()

	rawSvc := rawresult.NewService(
		rawresult.NewRepoPG(pool),
		order.NewRepoPG(pool),
		flagging.NewService(flagging.NewRepoPG(pool)),
		bk,
		cfg.LabQueue,
		logger,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info().Msg("shutting down")
		cancel()
	}()

	logger.Info().
		Int("workers", cfg.ConsumerWorkers).
		Str("from", cfg.RawResultQueue).
		Str("to", cfg.LabQueue).
		Msg("ingestion consumers started")

	consumers := command.NewPool(cfg.ConsumerWorkers, logger)
	if err := consumers.Consume(ctx, bk, cfg.RawResultQueue, rawSvc.Relay(cfg.RawResultQueue)); err != nil {
		return err
	}

	logger.Info().Msg("ingestion stopped")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openlims/lims/internal/config"
	"github.com/openlims/lims/internal/domain/rawresult"
	"github.com/openlims/lims/internal/platform/broker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-generator",
		Short: "Instrument simulator publishing raw results",
	}
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		orderIDs []string
		seed     int64
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and publish one envelope per order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(orderIDs, seed, interval)
		},
	}
	cmd.Flags().StringSliceVar(&orderIDs, "order", nil, "Order id to generate results for (repeatable)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed; 0 seeds from the clock")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between envelopes; 0 publishes back to back")
	return cmd
}

func run(orderIDs []string, seed int64, interval time.Duration) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	if len(orderIDs) == 0 {
		return fmt.Errorf("at least one --order is required")
	}
	ids := make([]uuid.UUID, 0, len(orderIDs))
	for _, raw := range orderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid order id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	if seed == 0 {
		seed = cfg.GeneratorSeed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	bk, err := broker.Connect(cfg.BrokerURL, cfg.ConsumerPrefetch)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer bk.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	gen := rawresult.NewGenerator(rand.New(rand.NewSource(seed)), cfg.InstrumentID)
	logger.Info().
		Int64("seed", seed).
		Str("instrument", cfg.InstrumentID).
		Int("orders", len(ids)).
		Msg("generator started")

	for _, id := range ids {
		env := gen.Generate(id)
		body, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		if err := bk.Publish(ctx, cfg.RawResultQueue, body); err != nil {
			return fmt.Errorf("publish envelope for order %s: %w", id, err)
		}
		logger.Info().
			Str("order_id", id.String()).
			Int("items", len(env.Items)).
			Msg("envelope published")

		if interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
	}

	return nil
}

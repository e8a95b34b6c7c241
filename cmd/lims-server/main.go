package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openlims/lims/internal/command"
	"github.com/openlims/lims/internal/config"
	"github.com/openlims/lims/internal/domain/comment"
	"github.com/openlims/lims/internal/domain/flagging"
	"github.com/openlims/lims/internal/domain/order"
	"github.com/openlims/lims/internal/domain/rawresult"
	"github.com/openlims/lims/internal/domain/review"
	"github.com/openlims/lims/internal/platform/audit"
	"github.com/openlims/lims/internal/platform/broker"
	"github.com/openlims/lims/internal/platform/db"
	"github.com/openlims/lims/internal/platform/middleware"
)

// The command-dispatching wrappers below route the HTTP handlers' use cases
// through the dispatcher, so the API and the queue consumers share one
// registered handler per command.

type reviewCommands struct {
	d *command.Dispatcher
}

func (r reviewCommands) TriggerReview(ctx context.Context, orderID uuid.UUID) (*order.TestOrder, error) {
	out, err := r.d.Dispatch(ctx, "review.trigger", orderID)
	if err != nil {
		return nil, err
	}
	o, _ := out.(*order.TestOrder)
	return o, nil
}

type flaggingCommands struct {
	*flagging.Service
	d *command.Dispatcher
}

func (f flaggingCommands) Resolve(ctx context.Context, testCode, gender string) (*flagging.FlaggingConfig, error) {
	out, err := f.d.Dispatch(ctx, "flagging.resolve", flagging.ResolveQuery{TestCode: testCode, Gender: gender})
	if err != nil {
		return nil, err
	}
	cfg, _ := out.(*flagging.FlaggingConfig)
	return cfg, nil
}

type commentCommands struct {
	*comment.Service
	d *command.Dispatcher
}

func (c commentCommands) Add(ctx context.Context, subjectType string, subjectID uuid.UUID, message string, authorID uuid.UUID) (uuid.UUID, error) {
	out, err := c.d.Dispatch(ctx, "comment.add", comment.AddInput{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Message:     message,
		AuthorID:    authorID,
	})
	if err != nil {
		return uuid.Nil, err
	}
	id, _ := out.(uuid.UUID)
	return id, nil
}

func (c commentCommands) Delete(ctx context.Context, id, requesterID uuid.UUID) error {
	_, err := c.d.Dispatch(ctx, "comment.delete", comment.DeleteInput{CommentID: id, RequesterID: requesterID})
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-server",
		Short: "Laboratory core API server and lab-queue consumer",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the laboratory core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
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

	// Repositories and services
	orderRepo := order.NewRepoPG(pool)
	orderSvc := order.NewService(orderRepo)

	flagRepo := flagging.NewRepoPG(pool)
	flagSvc := flagging.NewService(flagRepo)

	commentSvc := comment.NewService(comment.NewRepoPG(pool))

	auditLog := audit.NewLog(audit.NewRepoPG(pool), logger)

	rawSvc := rawresult.NewService(rawresult.NewRepoPG(pool), orderRepo, flagSvc, bk, cfg.LabQueue, logger)

	reviewSvc := review.NewService(orderRepo, review.NewTrainingRepoPG(pool), review.NewNearestCentroid(), auditLog, logger)

	// Command surface: every use case has exactly one handler.
	dispatcher := command.NewDispatcher()
	dispatcher.MustRegister("rawresult.handle", func(ctx context.Context, payload any) (any, error) {
		body, ok := payload.([]byte)
		if !ok {
			return nil, fmt.Errorf("rawresult.handle: payload must be []byte")
		}
		return nil, rawSvc.Apply(cfg.LabQueue)(ctx, body)
	})
	dispatcher.MustRegister("review.trigger", func(ctx context.Context, payload any) (any, error) {
		id, ok := payload.(uuid.UUID)
		if !ok {
			return nil, fmt.Errorf("review.trigger: payload must be a uuid")
		}
		return reviewSvc.TriggerReview(ctx, id)
	})
	dispatcher.MustRegister("flagging.resolve", func(ctx context.Context, payload any) (any, error) {
		q, ok := payload.(flagging.ResolveQuery)
		if !ok {
			return nil, fmt.Errorf("flagging.resolve: payload must be a ResolveQuery")
		}
		return flagSvc.Resolve(ctx, q.TestCode, q.Gender)
	})
	dispatcher.MustRegister("comment.add", func(ctx context.Context, payload any) (any, error) {
		in, ok := payload.(comment.AddInput)
		if !ok {
			return nil, fmt.Errorf("comment.add: payload must be an AddInput")
		}
		return commentSvc.Add(ctx, in.SubjectType, in.SubjectID, in.Message, in.AuthorID)
	})
	dispatcher.MustRegister("comment.delete", func(ctx context.Context, payload any) (any, error) {
		in, ok := payload.(comment.DeleteInput)
		if !ok {
			return nil, fmt.Errorf("comment.delete: payload must be a DeleteInput")
		}
		return nil, commentSvc.Delete(ctx, in.CommentID, in.RequesterID)
	})

	// Lab-queue consumer pool
	consumers := command.NewPool(cfg.ConsumerWorkers, logger)
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumers.Consume(ctx, bk, cfg.LabQueue, func(ctx context.Context, body []byte) error {
			_, err := dispatcher.Dispatch(ctx, "rawresult.handle", body)
			return err
		})
	}()
	logger.Info().
		Int("workers", cfg.ConsumerWorkers).
		Str("queue", cfg.LabQueue).
		Msg("lab-queue consumers started")

	// HTTP surface
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	apiV1 := e.Group("/api/v1")
	order.NewHandler(orderSvc).RegisterRoutes(apiV1)
	flagging.NewHandler(flaggingCommands{Service: flagSvc, d: dispatcher}).RegisterRoutes(apiV1)
	comment.NewHandler(commentCommands{Service: commentSvc, d: dispatcher}).RegisterRoutes(apiV1)
	review.NewHandler(reviewCommands{d: dispatcher}).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}

	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumers did not stop in time")
	}

	logger.Info().Msg("server stopped")
	return nil
}

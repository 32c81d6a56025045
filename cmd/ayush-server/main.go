package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayushmap/ayushmap/internal/config"
	"github.com/ayushmap/ayushmap/internal/domain/audit"
	"github.com/ayushmap/ayushmap/internal/domain/diagnosis"
	"github.com/ayushmap/ayushmap/internal/domain/pipeline"
	"github.com/ayushmap/ayushmap/internal/domain/terminology"
	"github.com/ayushmap/ayushmap/internal/platform/abdm"
	"github.com/ayushmap/ayushmap/internal/platform/auth"
	"github.com/ayushmap/ayushmap/internal/platform/db"
	"github.com/ayushmap/ayushmap/internal/platform/icd"
	"github.com/ayushmap/ayushmap/internal/platform/llm"
	"github.com/ayushmap/ayushmap/internal/platform/middleware"
	"github.com/ayushmap/ayushmap/internal/platform/oauth"
	"github.com/ayushmap/ayushmap/internal/platform/workpool"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ayush-server",
		Short: "AYUSH to ICD-11 mapping API server",
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
		Short: "Start the API server",
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
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Deterministic seed table, loaded once for the process lifetime.
	seedRepo, err := terminology.NewCSVRepo(cfg.SeedMappingsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.SeedMappingsPath).Msg("failed to load seed mappings")
	}
	terms := terminology.NewService(seedRepo)

	// External clients share one bounded worker pool.
	poolSize := cfg.WorkerPoolSize
	outbound := workpool.New(poolSize)

	llmClient := llm.NewClient(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel)

	icdTokens := oauth.NewTokenSource(oauth.Config{
		ClientID:     cfg.ICDClientID,
		ClientSecret: cfg.ICDClientSecret,
		TokenURL:     cfg.ICDTokenURL,
		Scope:        "icdapi_access",
	}, nil)
	icdClient := icd.NewClient(icd.Config{
		SearchURL:  cfg.ICDSearchURL,
		APIVersion: cfg.ICDAPIVersion,
	}, icdTokens, logger)

	abdmTokens := oauth.NewTokenSource(oauth.Config{
		ClientID:     cfg.ABDMClientID,
		ClientSecret: cfg.ABDMClientSecret,
		TokenURL:     cfg.ABDMTokenURL,
	}, nil)
	abdmClient := abdm.NewClient(abdm.Config{FHIRBase: cfg.ABDMFHIRBase}, abdmTokens, logger)

	// Pipeline and collaborators
	pipe := pipeline.New(llmClient, icdClient, abdmClient, terms, outbound, logger)
	diagRepo := diagnosis.NewRepoPG(pool)
	auditRepo := audit.NewRepoPG(pool)
	diagSvc := diagnosis.NewService(pipe, diagRepo, auditRepo, cfg.RunTimeout(), logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: all requests get the dev identity")
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(cfg.JWTSecret)}))
	}

	diagnosis.NewHandler(diagSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

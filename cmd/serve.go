package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/repository"
	"github.com/ppandrangi/crms/internal/server"
	"github.com/ppandrangi/crms/internal/services/evidence"
	"github.com/ppandrangi/crms/internal/services/iam"
	"github.com/ppandrangi/crms/internal/services/incident"
	"github.com/ppandrangi/crms/internal/services/validation"
	"github.com/ppandrangi/crms/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CRMS API server",
	Long:  `Starts the HTTP server exposing the authentication, incident and evidence endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Refuse to start without a signing secret rather than failing every login.
		if err := cfg.RequireSigningSecret(); err != nil {
			return err
		}

		if cfg.Debug {
			log.Printf("DEBUG: database=%s addr=%s pool=%d protected=%v origins=%v",
				bunx.DetectDatabaseType(cfg.DatabaseURL), cfg.ServerAddr, cfg.MaxDBConnections,
				cfg.Auth.ProtectedPaths, cfg.CORSAllowedOrigins)
		}

		shutdownTelemetry, err := telemetry.Init(cmd.Context(), cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				log.Printf("WARNING: %v", err)
			}
		}()

		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to %s database", bunx.DetectDatabaseType(cfg.DatabaseURL))

		dbMetrics, err := telemetry.NewDatabaseMetrics()
		if err != nil {
			return fmt.Errorf("create database metrics: %w", err)
		}
		db.AddQueryHook(dbMetrics.QueryHook())

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("create server metrics: %w", err)
		}
		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("create auth metrics: %w", err)
		}

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		incidentRepo := repository.NewBunIncidentRepository(db)
		evidenceRepo := repository.NewBunEvidenceRepository(db)

		policy, err := auth.NewPolicy()
		if err != nil {
			return fmt.Errorf("configure authorization policy: %w", err)
		}
		tokens := auth.NewTokenService(cfg.Auth.JWTSecret)

		validator, err := validation.NewSchemaValidator(validation.DefaultCacheSize)
		if err != nil {
			return fmt.Errorf("create request validator: %w", err)
		}

		// Initialize services
		iamService := iam.NewService(userRepo, tokens).
			WithBcryptCost(cfg.Auth.BcryptCost).
			WithAuthMetrics(authMetrics)
		incidentService := incident.NewService(incidentRepo, userRepo, policy)
		evidenceService := evidence.NewService(evidenceRepo, incidentRepo, policy)

		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				log.Printf("ERROR: health check database ping failed: %v", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"status":"unavailable"}`)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"status":"ok"}`)
		}

		corsOptions := server.DefaultCORSOptions(cfg.CORSAllowedOrigins)

		// Assemble the shared router with the production-specific options.
		routerOpts := server.RouterOptions{
			IAM:            iamService,
			Incidents:      incidentService,
			Evidence:       evidenceService,
			Validator:      validator,
			Tokens:         tokens,
			ProtectedPaths: cfg.Auth.ProtectedPaths,
			ServerMetrics:  serverMetrics,
			AuthMetrics:    authMetrics,
			CORSOptions:    &corsOptions,
			HealthHandler:  healthHandler,
		}

		// Create HTTP server
		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      server.NewH2CHandler(routerOpts),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			// Graceful shutdown with timeout
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

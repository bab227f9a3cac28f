package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garagehub/shopload/internal/config"
	"github.com/garagehub/shopload/internal/db"
	"github.com/garagehub/shopload/internal/ledger"
	"github.com/garagehub/shopload/internal/loader"
	"github.com/garagehub/shopload/internal/manifest"
	"github.com/garagehub/shopload/internal/middleware"
	"github.com/garagehub/shopload/internal/repository"
	"github.com/garagehub/shopload/internal/retry"
	"github.com/garagehub/shopload/internal/staging"
	"github.com/garagehub/shopload/internal/upsert"

	"github.com/rs/cors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.DB, cfg.Loader.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	loadRepo := repository.NewLoadRepository(conn.Pool)
	stagingRepo := repository.NewStagingRepository(conn.Pool)
	crosswalkRepo := repository.NewCrosswalkRepository()
	productionRepo := repository.NewProductionRepository()
	ledgerRepo := repository.NewLedgerRepository(conn.Pool)
	exceptionRepo := repository.NewExceptionRepository(conn.Pool)

	// Pipeline
	validator := manifest.NewValidator(cfg.Loader.VerifyChecksums)
	stager := staging.NewLoader(stagingRepo)
	engine := upsert.NewEngine(
		conn, stagingRepo, crosswalkRepo, productionRepo, exceptionRepo,
		retry.DefaultExecutor(), cfg.Loader.BatchSize,
	)
	reporter := ledger.NewReporter(ledgerRepo, exceptionRepo, cfg.Loader.ReportDir)
	service := loader.NewService(loadRepo, stagingRepo, validator, stager, engine, reporter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	mux := http.NewServeMux()
	loader.NewHTTPHandler(service).Register(mux)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		// Loads can run for minutes; only bound the read side.
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Starting loader service on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

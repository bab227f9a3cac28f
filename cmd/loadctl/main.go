package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/garagehub/shopload/internal/config"
	"github.com/garagehub/shopload/internal/db"
	"github.com/garagehub/shopload/internal/domain"
	"github.com/garagehub/shopload/internal/ledger"
	"github.com/garagehub/shopload/internal/loader"
	"github.com/garagehub/shopload/internal/manifest"
	"github.com/garagehub/shopload/internal/repository"
	"github.com/garagehub/shopload/internal/retry"
	"github.com/garagehub/shopload/internal/staging"
	"github.com/garagehub/shopload/internal/storage"
	"github.com/garagehub/shopload/internal/upsert"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	partnerID    string
	shopID       string
	loadID       string
	path         string
	forceRestage bool
)

func main() {
	// A local .env is convenient for operators; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	root := &cobra.Command{
		Use:   "loadctl",
		Short: "Operator CLI for the shop import loader",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run (or rerun) the pipeline for one load",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result, runErr := service.Run(cmd.Context(), loader.RunRequest{
				Key:          domain.LoadKey{PartnerID: partnerID, ShopID: shopID, LoadID: loadID},
				Files:        storage.NewLocalDir(path),
				ForceRestage: forceRestage,
			})
			if runErr != nil {
				fmt.Fprintf(os.Stderr, "load failed: %v\n", runErr)
			}
			return printJSON(result.Ledger)
		},
	}
	runCmd.Flags().StringVar(&path, "path", "", "directory holding manifest.json and the export files")
	_ = runCmd.MarkFlagRequired("path")
	runCmd.Flags().BoolVar(&forceRestage, "force-restage", false, "replace existing staged rows even when counts match")
	addKeyFlags(runCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show a load's status and tallies",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			load, tallies, err := service.Status(cmd.Context(), domain.LoadKey{
				PartnerID: partnerID, ShopID: shopID, LoadID: loadID,
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"load": load, "tallies": tallies})
		},
	}
	addKeyFlags(statusCmd)

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete staged rows older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			service, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			purged, err := service.PurgeStaging(cmd.Context(), cfg.Loader.StagingRetentionDays)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d staged rows\n", purged)
			return nil
		},
	}

	root.AddCommand(runCmd, statusCmd, purgeCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&partnerID, "partner", "", "partner identifier")
	cmd.Flags().StringVar(&shopID, "shop", "", "shop identifier")
	cmd.Flags().StringVar(&loadID, "load", "", "load identifier")
	_ = cmd.MarkFlagRequired("partner")
	_ = cmd.MarkFlagRequired("shop")
	_ = cmd.MarkFlagRequired("load")
}

func buildService(ctx context.Context) (*loader.Service, func(), error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, nil, err
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	if err := db.RunMigrations(cfg.DB, cfg.Loader.MigrationsPath); err != nil {
		conn.Close()
		return nil, nil, err
	}

	loadRepo := repository.NewLoadRepository(conn.Pool)
	stagingRepo := repository.NewStagingRepository(conn.Pool)
	ledgerRepo := repository.NewLedgerRepository(conn.Pool)
	exceptionRepo := repository.NewExceptionRepository(conn.Pool)

	engine := upsert.NewEngine(
		conn, stagingRepo,
		repository.NewCrosswalkRepository(),
		repository.NewProductionRepository(),
		exceptionRepo,
		retry.DefaultExecutor(), cfg.Loader.BatchSize,
	)
	service := loader.NewService(
		loadRepo, stagingRepo,
		manifest.NewValidator(cfg.Loader.VerifyChecksums),
		staging.NewLoader(stagingRepo),
		engine,
		ledger.NewReporter(ledgerRepo, exceptionRepo, cfg.Loader.ReportDir),
	)
	return service, conn.Close, nil
}

func printJSON(payload any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

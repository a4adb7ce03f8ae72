// Package cli implements the catalogsync command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/application/catalogsync"
	"github.com/catalogsync/backend/internal/bootstrap"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
)

// version is set at build time
var version = "dev"

// SyncService is the part of the reconciliation service the CLI drives
type SyncService interface {
	Trigger(ctx context.Context, input catalogsync.TriggerInput) (*catalogsync.RunResult, error)
	ListRuns(ctx context.Context, input catalogsync.ListRunsInput) (*catalogsync.RunListResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error)
}

var (
	// loadConfig reads configuration; replaced in tests
	loadConfig = config.Load

	// openService wires the reconciliation service from configuration; replaced in tests
	openService = func(ctx context.Context, cfg *config.Config) (SyncService, func(context.Context) error, error) {
		log, err := logger.New(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: "stderr",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize logger: %w", err)
		}
		app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{})
		if err != nil {
			return nil, nil, err
		}
		return app.CatalogSync, func(ctx context.Context) error {
			defer func() { _ = log.Sync() }()
			return app.Close(ctx)
		}, nil
	}
)

var rootCmd = &cobra.Command{
	Use:   "catalogsync",
	Short: "Reconcile the local catalog with the remote storefront",
	Long: `catalogsync mirrors the remote storefront catalog into the local database.
It can start a run, inspect the run ledger and issue API tokens.
Configuration is read from config.toml and CATALOG_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// withService opens the service for the duration of fn
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc SyncService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeFn(context.WithoutCancel(ctx)); closeErr != nil {
			cmd.PrintErrf("warning: %v\n", closeErr)
		}
	}()
	if svc == nil {
		return errors.New("sync service not configured")
	}
	return fn(ctx, svc)
}

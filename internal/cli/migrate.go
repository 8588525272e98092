package cli

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Run:   runMigrate,
}

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint [kind] [ledger]",
	Short: "Reset the stored checkpoint of a listener to a given ledger",
	Args:  cobra.ExactArgs(2),
	Run:   runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetCheckpointCmd)
}

func openDB(ctx context.Context) *postgres.DB {
	cfg := loadConfig()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return db
}

func runMigrate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	db := openDB(ctx)
	defer func() {
		_ = db.Close()
	}()

	if err := postgres.Migrate(ctx, db); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	version, err := postgres.MigrationVersion(ctx, db)
	if err != nil {
		slog.Warn("Failed to read migration version", "error", err)
		return
	}
	slog.Info("Database is up to date", "version", version)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	kind := domain.ListenerKind(args[0])
	ledger, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		slog.Error("Invalid ledger", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db := openDB(ctx)
	defer func() {
		_ = db.Close()
	}()

	if err := postgres.NewCheckpointRepo(db).Reset(ctx, kind, ledger); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}
	slog.Info("Checkpoint reset; restart the listener to apply", "kind", kind, "ledger", ledger)
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/stakescope/stakescope/internal/core/config"
	"github.com/stakescope/stakescope/internal/infra/storage/postgres"
)

var resetCmd = &cobra.Command{
	Use:   "reset [program_address]",
	Short: "Delete all indexed data for a program so the next run re-ingests it",
	Args:  cobra.ExactArgs(1),
	Run:   runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	programID := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	// Events reference transactions by signature, so clear them first.
	// Direct SQL is fine here; the running service will simply re-ingest
	// everything through the normal dedup path.
	res, err := db.ExecContext(ctx,
		`DELETE FROM staking_events WHERE signature IN
			(SELECT signature FROM transactions WHERE program_id = $1)`, programID)
	if err != nil {
		slog.Error("Failed to delete events", "error", err)
		os.Exit(1)
	}
	eventsDeleted, _ := res.RowsAffected()

	res, err = db.ExecContext(ctx, "DELETE FROM transactions WHERE program_id = $1", programID)
	if err != nil {
		slog.Error("Failed to delete transactions", "error", err)
		os.Exit(1)
	}
	txDeleted, _ := res.RowsAffected()

	fmt.Printf("Reset %s: deleted %d transactions and %d events\n", programID, txDeleted, eventsDeleted)
}

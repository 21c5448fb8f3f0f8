package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stakescope/stakescope/internal/core/config"
	"github.com/stakescope/stakescope/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indexing progress for all configured programs",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	query := `SELECT program_id, MAX(slot), COUNT(*),
		COUNT(*) FILTER (WHERE err IS NOT NULL)
		FROM transactions GROUP BY program_id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("Failed to query transactions", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROGRAM\tLAST SLOT\tTRANSACTIONS\tFAILED")

	for rows.Next() {
		var programID string
		var lastSlot, total, failed int64
		if err := rows.Scan(&programID, &lastSlot, &total, &failed); err != nil {
			continue
		}
		name := programID
		for _, p := range cfg.Programs {
			if p.Address == programID && p.Name != "" {
				name = p.Name
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", name, lastSlot, total, failed)
	}
	_ = w.Flush()
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/stakescope/stakescope/internal/core/domain"
	"github.com/stakescope/stakescope/internal/infra/storage"
)

// IngestionRepo implements storage.IngestionRepository and
// storage.HistoryReader using PostgreSQL. Idempotency rides on the
// store's unique constraints: (program_id, signature) for transactions,
// (signature, kind, log_index) for events.
type IngestionRepo struct {
	db *DB
}

// NewIngestionRepo creates a new PostgreSQL ingestion repository.
func NewIngestionRepo(db *DB) *IngestionRepo {
	return &IngestionRepo{db: db}
}

// FilterNew returns the subset of signatures not yet persisted for the
// program, preserving input order.
func (r *IngestionRepo) FilterNew(ctx context.Context, programID string, signatures []string) ([]string, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	query := `
		SELECT signature FROM transactions
		WHERE program_id = $1 AND signature = ANY($2)
	`
	var existing []string
	if err := r.db.SelectContext(ctx, &existing, query, programID, pq.Array(signatures)); err != nil {
		return nil, fmt.Errorf("failed to filter signatures: %w", err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		known[s] = struct{}{}
	}

	fresh := make([]string, 0, len(signatures))
	for _, s := range signatures {
		if _, ok := known[s]; !ok {
			fresh = append(fresh, s)
		}
	}
	return fresh, nil
}

// SaveBatch inserts transactions and their events insert-if-absent inside
// one database transaction. Returns the count of newly inserted
// transaction rows; duplicates count as zero and are not errors.
func (r *IngestionRepo) SaveBatch(ctx context.Context, records []*domain.IndexedTransaction) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin save: %w", err)
	}
	defer tx.Rollback()

	txQuery := `
		INSERT INTO transactions (
			program_id, signature, slot, block_time, err, logs, source, indexed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (program_id, signature) DO NOTHING
	`
	eventQuery := `
		INSERT INTO staking_events (
			signature, slot, block_time, program_id, kind, log_index,
			staker, amount, fee, total_staked, old_fee, new_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (signature, kind, log_index) DO NOTHING
	`

	saved := 0
	for _, rec := range records {
		res, err := tx.ExecContext(ctx, txQuery,
			rec.ProgramID, rec.Signature, int64(rec.Slot), rec.BlockTime,
			rec.Err, logsArray(rec.Logs), string(rec.Source),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save transaction %s: %w", rec.Signature, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			saved += int(n)
		}

		for _, ev := range rec.Events {
			_, err := tx.ExecContext(ctx, eventQuery,
				ev.Signature, int64(ev.Slot), ev.BlockTime, ev.ProgramID,
				string(ev.Kind), ev.LogIndex,
				nullable(ev.Staker), nullable(ev.Amount), nullable(ev.Fee),
				nullable(ev.TotalStaked), nullable(ev.OldFee), nullable(ev.NewFee),
			)
			if err != nil {
				return 0, fmt.Errorf("failed to save event %s/%s: %w", ev.Signature, ev.Kind, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit save: %w", err)
	}
	return saved, nil
}

// LastIndexedSlot returns the max slot persisted for the program.
func (r *IngestionRepo) LastIndexedSlot(ctx context.Context, programID string) (uint64, bool, error) {
	var slot sql.NullInt64
	query := `SELECT MAX(slot) FROM transactions WHERE program_id = $1`
	if err := r.db.GetContext(ctx, &slot, query, programID); err != nil {
		return 0, false, fmt.Errorf("failed to get last indexed slot: %w", err)
	}
	if !slot.Valid {
		return 0, false, nil
	}
	return uint64(slot.Int64), true, nil
}

// TransactionCount reports the number of stored transactions for the
// program. Used by the status surfaces.
func (r *IngestionRepo) TransactionCount(ctx context.Context, programID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM transactions WHERE program_id = $1`
	if err := r.db.GetContext(ctx, &n, query, programID); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

type historyRow struct {
	Signature string         `db:"signature"`
	BlockTime sql.NullInt64  `db:"block_time"`
	Kind      string         `db:"kind"`
	Amount    sql.NullString `db:"amount"`
	Err       sql.NullString `db:"err"`
}

// HistoryByStaker returns decoded events involving the staker, most
// recent first, with the total match count for pagination.
func (r *IngestionRepo) HistoryByStaker(ctx context.Context, staker string, page, limit int) ([]storage.HistoryEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM staking_events WHERE staker = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, staker); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	query := `
		SELECT e.signature, e.block_time, e.kind, e.amount, t.err
		FROM staking_events e
		JOIN transactions t ON t.program_id = e.program_id AND t.signature = e.signature
		WHERE e.staker = $1
		ORDER BY e.block_time DESC NULLS LAST, e.log_index ASC
		LIMIT $2 OFFSET $3
	`
	var rows []historyRow
	if err := r.db.SelectContext(ctx, &rows, query, staker, limit, (page-1)*limit); err != nil {
		return nil, 0, fmt.Errorf("failed to query history: %w", err)
	}

	entries := make([]storage.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := storage.HistoryEntry{
			Signature: row.Signature,
			Kind:      domain.EventKind(row.Kind),
			Amount:    row.Amount.String,
			Failed:    row.Err.Valid,
		}
		if row.BlockTime.Valid {
			bt := row.BlockTime.Int64
			entry.BlockTime = &bt
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// logsArray encodes log lines for the NOT NULL logs column. A nil slice
// (transaction fetched without metadata) must land as an empty array,
// not SQL NULL.
func logsArray(logs []string) any {
	if logs == nil {
		logs = []string{}
	}
	return pq.Array(logs)
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/rental-meter-worker/internal/db"
)

// Repository handles sync journal operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertAttemptQuery = `
	INSERT INTO meter_sync_journal (
		id, contract_id, utility, service_id, previous_reading, current_reading,
		usage, amount, status, error_message, attempted_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// RecordAttempts journals the per-utility attempts of one row save in a single transaction
func (r *Repository) RecordAttempts(ctx context.Context, attempts []db.SyncAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range attempts {
			a := &attempts[i]
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			_, err := tx.Exec(ctx, insertAttemptQuery,
				a.ID,
				a.ContractID,
				a.Utility,
				a.ServiceID,
				a.PreviousReading,
				a.CurrentReading,
				a.Usage,
				a.Amount,
				a.Status,
				a.ErrorMessage,
				a.AttemptedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert sync attempt: %w", err)
			}
		}
		return nil
	})
}

// RecentUsages gets the usages of the latest successful syncs for anomaly detection
func (r *Repository) RecentUsages(ctx context.Context, contractID, utility string, limit int) ([]float64, error) {
	query := `
		SELECT usage
		FROM meter_sync_journal
		WHERE contract_id = $1 AND utility = $2 AND status = 'synced' AND usage IS NOT NULL
		ORDER BY attempted_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, contractID, utility, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent usages: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return values, nil
}

// NopJournal discards attempts; used when no journal database is configured.
type NopJournal struct{}

func (NopJournal) RecordAttempts(context.Context, []db.SyncAttempt) error { return nil }

func (NopJournal) RecentUsages(context.Context, string, string, int) ([]float64, error) {
	return nil, nil
}

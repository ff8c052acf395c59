package aiquota

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store handles ai_suggestion_quota persistence.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Consume atomically checks the monthly quota and deducts one suggestion.
// It resets the counter to DefaultQuota when last_reset_month is behind the
// current month. Returns ErrQuotaExhausted when 0 rows are updated (quota
// spent or donor absent).
func (s *Store) Consume(ctx context.Context, donorID string) error {
	month := time.Now().Format("2006-01")

	tag, err := s.db.Exec(ctx, `
		UPDATE ai_suggestion_quota SET
			suggestions_remaining = CASE WHEN last_reset_month != $1 THEN $2 - 1 ELSE suggestions_remaining - 1 END,
			last_reset_month = $1
		WHERE donor_id = $3 AND (last_reset_month < $1 OR suggestions_remaining > 0)
	`, month, DefaultQuota, donorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuotaExhausted
	}
	return nil
}

// EnsureDonor inserts a quota row for donorID with the default allowance.
// If the row already exists the insert is silently skipped.
func (s *Store) EnsureDonor(ctx context.Context, donorID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_suggestion_quota (donor_id, suggestions_remaining, last_reset_month)
		VALUES ($1, $2, $3)
		ON CONFLICT (donor_id) DO NOTHING
	`, donorID, DefaultQuota, time.Now().Format("2006-01"))
	return err
}

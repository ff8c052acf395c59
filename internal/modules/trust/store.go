// README: Trust score store; the clamp runs inside the SQL so updates stay atomic.
package trust

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"seva/internal/modules/donation"
	"seva/internal/types"
)

type Store struct {
	db donation.DB
}

func NewStore(db donation.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// GetOrCreate lazily initializes the score row at InitialScore on first touch.
func (s *Store) GetOrCreate(ctx context.Context, volunteerID types.ID) (*Score, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trust_scores (volunteer_id, score, tier, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (volunteer_id) DO NOTHING`,
		string(volunteerID), InitialScore, string(TierFor(InitialScore)),
	)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx, `
		SELECT volunteer_id, score, tier, updated_at
		FROM trust_scores WHERE volunteer_id = $1`, string(volunteerID),
	)
	var sc Score
	if err := row.Scan(&sc.VolunteerID, &sc.Score, &sc.Tier, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ApplyDelta is a single increment-then-clamp upsert; concurrent updates to
// the same volunteer serialize on the row without Go-side locking.
func (s *Store) ApplyDelta(ctx context.Context, volunteerID types.ID, delta int, now time.Time) (int, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO trust_scores (volunteer_id, score, tier, updated_at)
		VALUES ($1, LEAST($4, GREATEST($3, $5 + $2)), '', $6)
		ON CONFLICT (volunteer_id) DO UPDATE SET
			score = LEAST($4, GREATEST($3, trust_scores.score + $2)),
			updated_at = $6
		RETURNING score`,
		string(volunteerID), delta, MinScore, MaxScore, InitialScore, now,
	)
	var score int
	if err := row.Scan(&score); err != nil {
		return 0, err
	}
	_, err := s.db.Exec(ctx, `
		UPDATE trust_scores SET tier = $1 WHERE volunteer_id = $2`,
		string(TierFor(score)), string(volunteerID),
	)
	return score, err
}

func (s *Store) AppendActivity(ctx context.Context, a *Activity) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trust_activities (volunteer_id, activity_type, score_change, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(a.VolunteerID), a.ActivityType, a.ScoreChange, a.Description, a.CreatedAt,
	)
	return err
}

func (s *Store) ListActivities(ctx context.Context, volunteerID types.ID, limit int) ([]*Activity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, volunteer_id, activity_type, score_change, description, created_at
		FROM trust_activities
		WHERE volunteer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		string(volunteerID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.VolunteerID, &a.ActivityType, &a.ScoreChange, &a.Description, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

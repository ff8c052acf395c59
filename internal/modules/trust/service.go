// README: Trust score ledger; every mutation leaves an immutable activity row.
package trust

import (
	"context"
	"time"

	"seva/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// GetScore returns the volunteer's current score and tier, creating the row
// at the initial score on first access.
func (s *Service) GetScore(ctx context.Context, volunteerID types.ID) (*Score, error) {
	sc, err := s.store.GetOrCreate(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	// Derived tier wins over whatever is stored.
	sc.Tier = TierFor(sc.Score)
	return sc, nil
}

// Update applies a clamped delta and appends an activity log entry.
func (s *Service) Update(ctx context.Context, volunteerID types.ID, activityType string, delta int, description string) (*Score, error) {
	now := time.Now()
	score, err := s.store.ApplyDelta(ctx, volunteerID, delta, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendActivity(ctx, &Activity{
		VolunteerID:  volunteerID,
		ActivityType: activityType,
		ScoreChange:  delta,
		Description:  description,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}
	return &Score{VolunteerID: volunteerID, Score: score, Tier: TierFor(score), UpdatedAt: now}, nil
}

// LogActivity appends an audit-only entry without touching the score.
func (s *Service) LogActivity(ctx context.Context, volunteerID types.ID, activityType, description string) error {
	return s.store.AppendActivity(ctx, &Activity{
		VolunteerID:  volunteerID,
		ActivityType: activityType,
		ScoreChange:  0,
		Description:  description,
		CreatedAt:    time.Now(),
	})
}

// ListActivities returns the newest entries first.
func (s *Service) ListActivities(ctx context.Context, volunteerID types.ID, limit int) ([]*Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListActivities(ctx, volunteerID, limit)
}

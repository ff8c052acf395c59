package coverage

import (
	"context"
	"time"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Snapshot recomputes district coverage on every call; the result carries no
// authority and may differ between calls as the source tables move.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	stats, err := s.store.DistrictStats(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{GeneratedAt: time.Now(), Districts: stats}, nil
}

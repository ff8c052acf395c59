package aiquota

import "context"

// Service meters AI priority suggestions per donor per month.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Consume deducts one suggestion from the donor's monthly allowance.
// If the donor row does not exist yet it is initialised and the suggestion is
// immediately consumed. Returns ErrQuotaExhausted when the month's allowance
// is spent.
func (s *Service) Consume(ctx context.Context, donorID string) error {
	err := s.store.Consume(ctx, donorID)
	if err != ErrQuotaExhausted {
		return err
	}

	// Row may be missing: try to create it, then retry the deduction once.
	if initErr := s.store.EnsureDonor(ctx, donorID); initErr != nil {
		return initErr
	}
	return s.store.Consume(ctx, donorID)
}

// README: Periodic sweep that reclaims accepted-but-never-started assignments.
package assignment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"seva/internal/modules/donation"
	"seva/internal/modules/trust"
	"seva/internal/types"
)

const (
	DefaultSweepInterval = 30 * time.Minute
	DefaultStuckTimeout  = 4 * time.Hour
)

// ReconcilerConfig controls the sweep cadence and the stuck threshold.
type ReconcilerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultSweepInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultStuckTimeout
	}
	return c
}

// RunReconciler sweeps on a fixed interval until ctx is cancelled. Tests drive
// Sweep directly instead of waiting on the ticker.
func (s *Service) RunReconciler(ctx context.Context, cfg ReconcilerConfig) {
	cfg = cfg.withDefaults()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx, time.Now(), cfg.Timeout); err != nil {
				log.Printf("reconciler: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("reconciler: reclaimed %d stuck assignment(s)", n)
			}
		}
	}
}

// Sweep reclaims every stuck assignment once. A single item's failure is
// logged and does not abort the rest of the sweep. Returns how many
// assignments were reclaimed.
func (s *Service) Sweep(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	stuck, err := s.store.ListStuck(ctx, now.Add(-timeout))
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, a := range stuck {
		if !IsStuck(a, now, timeout) {
			continue
		}
		if err := s.reclaim(ctx, a, now); err != nil {
			log.Printf("reconciler: assignment %s: %v", a.ID, err)
			continue
		}
		reclaimed++
	}
	return reclaimed, nil
}

// reclaim cancels one stuck assignment, penalizes the no-show volunteer,
// frees the donation, and tries to hand it to a better-trusted volunteer.
func (s *Service) reclaim(ctx context.Context, a *Assignment, now time.Time) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := s.store.WithTx(tx).CancelStuck(ctx, a.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Someone else advanced or reclaimed it since the listing; skip.
		return nil
	}
	if _, err := s.donations.WithTx(tx).ReleaseVolunteer(ctx, a.DonationID, a.VolunteerID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if _, err := s.trust.Update(ctx, a.VolunteerID, trust.ActivityNoShow, trust.DeltaNoShow,
		fmt.Sprintf("auto-unassigned from donation %s after timeout", a.DonationID)); err != nil {
		log.Printf("reconciler: trust penalty for %s: %v", a.VolunteerID, err)
	}

	if err := s.Reassign(ctx, a.DonationID, a.VolunteerID, now); err != nil {
		log.Printf("reconciler: reassign donation %s: %v", a.DonationID, err)
	}
	return nil
}

// Reassign offers a freed donation to the best eligible in-district
// volunteer. When nobody qualifies the donation stays unassigned and an
// audit-only activity entry records the attempt.
func (s *Service) Reassign(ctx context.Context, donationID, previous types.ID, now time.Time) error {
	d, err := s.donations.Get(ctx, donationID)
	if err != nil {
		return err
	}
	candidate, err := s.store.PickReassignCandidate(ctx, d.District, previous)
	if err != nil {
		return err
	}
	if candidate == nil {
		return s.trust.LogActivity(ctx, previous, trust.ActivityReassignment,
			fmt.Sprintf("no eligible volunteer to take over donation %s", donationID))
	}

	assignmentID := donation.NewID()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := s.donations.WithTx(tx).ClaimVolunteer(ctx, donationID, candidate.ID, candidate.Name, candidate.Phone, assignmentID, now)
	if err != nil {
		return err
	}
	if !ok {
		// The donation moved on (cancelled, or claimed organically) — fine.
		return nil
	}
	if err := s.store.WithTx(tx).Create(ctx, &Assignment{
		ID:          assignmentID,
		DonationID:  donationID,
		VolunteerID: candidate.ID,
		Status:      StatusAccepted,
		AcceptedAt:  now,
	}); err != nil {
		if isUniqueViolation(err, volunteerActiveIdx) || isUniqueViolation(err, donationActiveIdx) {
			// The candidate accepted something else between the pick and the
			// insert; the donation stays free for the next sweep.
			return nil
		}
		return err
	}
	return tx.Commit(ctx)
}

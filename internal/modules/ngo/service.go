// README: NGO service gates approvals by specialization and daily capacity.
package ngo

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seva/internal/modules/donation"
	"seva/internal/types"
)

var (
	ErrNGONotFound     = errors.New("ngo not found")
	ErrOutsideDistrict = errors.New("donation outside NGO district")
	ErrNotSpecialized  = errors.New("donation outside NGO specialization")
	ErrCapacity        = errors.New("daily approval limit reached")
)

type Service struct {
	pool      *pgxpool.Pool
	store     *Store
	donations *donation.Store
}

func NewService(pool *pgxpool.Pool, store *Store, donations *donation.Store) *Service {
	return &Service{pool: pool, store: store, donations: donations}
}

type ApproveCommand struct {
	NGOID      types.ID
	DonationID types.ID
}

type RejectCommand struct {
	NGOID      types.ID
	DonationID types.ID
	Reason     string
}

type ApproveResult struct {
	MatchType  MatchType
	IsCritical bool
	Remaining  int
}

// Approve runs the whole pending_approval → assigned transition in one
// transaction: specialization gate, capacity counter, donation update, audit
// event. Critical donations bypass the cap and count separately.
func (s *Service) Approve(ctx context.Context, cmd ApproveCommand) (ApproveResult, error) {
	var res ApproveResult

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	store := s.store.WithTx(tx)
	donations := s.donations.WithTx(tx)

	n, err := store.Get(ctx, cmd.NGOID)
	if err != nil {
		return res, err
	}
	d, err := donations.Get(ctx, cmd.DonationID)
	if err != nil {
		return res, err
	}
	if d.District != n.District {
		return res, ErrOutsideDistrict
	}
	if d.Status != donation.StatusPendingApproval {
		return res, donation.ErrConflict
	}

	match := Match(n.Type, n.CanAcceptUniversal, d)
	if !match.Allowed {
		return res, ErrNotSpecialized
	}
	res.MatchType = match.MatchType
	res.IsCritical = donation.IsCritical(d)

	now := time.Now()
	perf, err := store.GetPerformance(ctx, cmd.NGOID)
	if err != nil {
		return res, err
	}
	score := 0.0
	if perf != nil {
		score = perf.Rating
	}
	dl, err := store.GetOrCreateDailyLimit(ctx, cmd.NGOID, now, InitialDailyLimit(perf), score)
	if err != nil {
		return res, err
	}

	if res.IsCritical {
		if err := store.IncrementCritical(ctx, cmd.NGOID, now); err != nil {
			return res, err
		}
		res.Remaining = dl.DailyLimit - dl.ApprovalsUsed
	} else {
		remaining, ok, err := store.TryIncrementUsed(ctx, cmd.NGOID, now)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, ErrCapacity
		}
		res.Remaining = remaining
	}

	ok, err := donations.ApproveByNGO(ctx, cmd.DonationID, cmd.NGOID, now)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, donation.ErrConflict
	}
	_ = donations.AppendEvent(ctx, &donation.Event{
		DonationID: cmd.DonationID,
		FromStatus: donation.StatusPendingApproval,
		ToStatus:   donation.StatusAssigned,
		ActorType:  "ngo",
		ActorID:    &cmd.NGOID,
		CreatedAt:  now,
	})

	if err := tx.Commit(ctx); err != nil {
		return res, err
	}

	// Rollup recompute is best-effort; the approval already committed.
	if _, err := s.store.RecomputePerformance(ctx, cmd.NGOID, now); err != nil {
		log.Printf("ngo %s: performance recompute failed: %v", cmd.NGOID, err)
	}
	return res, nil
}

// Reject records a per-NGO rejection. The donation stays visible to the other
// NGOs in the district.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	n, err := s.store.Get(ctx, cmd.NGOID)
	if err != nil {
		return err
	}
	d, err := s.donations.Get(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if d.District != n.District {
		return ErrOutsideDistrict
	}
	ok, err := s.donations.MarkRejected(ctx, cmd.DonationID, cmd.NGOID, cmd.Reason)
	if err != nil {
		return err
	}
	if !ok {
		return donation.ErrConflict
	}
	return nil
}

// CanApprove is the read-only capacity probe surfaced to NGO dashboards. The
// authoritative check happens again inside Approve's transaction.
func (s *Service) CanApprove(ctx context.Context, ngoID, donationID types.ID) (CapacityDecision, error) {
	d, err := s.donations.Get(ctx, donationID)
	if err != nil {
		return CapacityDecision{}, err
	}
	if donation.IsCritical(d) {
		return CapacityDecision{CanApprove: true, Reason: "critical donation bypasses the daily cap", IsCritical: true}, nil
	}
	perf, err := s.store.GetPerformance(ctx, ngoID)
	if err != nil {
		return CapacityDecision{}, err
	}
	score := 0.0
	if perf != nil {
		score = perf.Rating
	}
	dl, err := s.store.GetOrCreateDailyLimit(ctx, ngoID, time.Now(), InitialDailyLimit(perf), score)
	if err != nil {
		return CapacityDecision{}, err
	}
	remaining := dl.DailyLimit - dl.ApprovalsUsed
	if remaining <= 0 {
		return CapacityDecision{CanApprove: false, Reason: "daily approval limit reached", Remaining: 0}, nil
	}
	return CapacityDecision{CanApprove: true, Reason: "within daily limit", Remaining: remaining}, nil
}

// Pending lists the NGO's district queue, critical first.
func (s *Service) Pending(ctx context.Context, ngoID types.ID) ([]*donation.Donation, error) {
	n, err := s.store.Get(ctx, ngoID)
	if err != nil {
		return nil, err
	}
	return s.donations.ListPendingForNGO(ctx, n.District, ngoID)
}

// README: Volunteer allocation: browse, atomic accept, pickup, delivery.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seva/internal/modules/donation"
	"seva/internal/modules/trust"
	"seva/internal/types"
)

var (
	ErrVolunteerNotFound  = errors.New("volunteer not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrDistrictMismatch   = errors.New("volunteer outside donation district")
	ErrActiveAssignment   = errors.New("volunteer already holds an active assignment")
	ErrInactiveVolunteer  = errors.New("volunteer is not active")
)

// TrustLedger is the slice of the trust service the allocation flow needs.
type TrustLedger interface {
	Update(ctx context.Context, volunteerID types.ID, activityType string, delta int, description string) (*trust.Score, error)
	LogActivity(ctx context.Context, volunteerID types.ID, activityType, description string) error
}

type Service struct {
	pool      *pgxpool.Pool
	store     *Store
	donations *donation.Store
	trust     TrustLedger
}

func NewService(pool *pgxpool.Pool, store *Store, donations *donation.Store, trust TrustLedger) *Service {
	return &Service{pool: pool, store: store, donations: donations, trust: trust}
}

type AcceptCommand struct {
	DonationID  types.ID
	VolunteerID types.ID
}

type PickupCommand struct {
	DonationID  types.ID
	VolunteerID types.ID
}

type DeliverCommand struct {
	DonationID  types.ID
	VolunteerID types.ID
	NGOID       *types.ID
}

type CancelCommand struct {
	DonationID types.ID
	ActorType  string
	ActorID    types.ID
	Reason     string
}

// ListAvailable returns the volunteer queue for a district, critical first.
func (s *Service) ListAvailable(ctx context.Context, district string) ([]*donation.Donation, error) {
	return s.donations.ListAvailable(ctx, district)
}

// Accept claims an approved donation for a volunteer. The claim is a
// conditional update on volunteer_id IS NULL, so N concurrent accepts produce
// exactly one winner; the rest get ErrTaken. The one-active-assignment rule is
// enforced by the partial unique index on assignments(volunteer_id) — the
// HasActiveByVolunteer read below only shapes the common-case error.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (types.ID, error) {
	v, err := s.store.GetVolunteer(ctx, cmd.VolunteerID)
	if err != nil {
		return "", err
	}
	if !v.Active {
		return "", ErrInactiveVolunteer
	}
	d, err := s.donations.Get(ctx, cmd.DonationID)
	if err != nil {
		return "", err
	}
	if d.District != v.District {
		return "", ErrDistrictMismatch
	}
	active, err := s.store.HasActiveByVolunteer(ctx, cmd.VolunteerID)
	if err != nil {
		return "", err
	}
	if active {
		return "", ErrActiveAssignment
	}

	assignmentID := donation.NewID()
	now := time.Now()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := s.donations.WithTx(tx).ClaimVolunteer(ctx, cmd.DonationID, v.ID, v.Name, v.Phone, assignmentID, now)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", donation.ErrTaken
	}
	if err := s.store.WithTx(tx).Create(ctx, &Assignment{
		ID:          assignmentID,
		DonationID:  cmd.DonationID,
		VolunteerID: v.ID,
		Status:      StatusAccepted,
		AcceptedAt:  now,
	}); err != nil {
		if isUniqueViolation(err, volunteerActiveIdx) {
			return "", ErrActiveAssignment
		}
		if isUniqueViolation(err, donationActiveIdx) {
			return "", donation.ErrTaken
		}
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return assignmentID, nil
}

// Cancel withdraws a donation before pickup. Any accepted assignment is
// closed with its own reason, no trust penalty, and the volunteer hold is
// cleared in the same transaction so the sweep never sees an orphan.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	now := time.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	donations := s.donations.WithTx(tx)
	d, err := donations.Get(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if !donation.CanTransition(d.Status, donation.StatusCancelled) {
		return donation.ErrInvalidState
	}
	if d.VolunteerID != nil {
		if _, err := s.store.WithTx(tx).CancelByDonation(ctx, cmd.DonationID, ReasonDonationCancelled); err != nil {
			return err
		}
	}
	ok, err := donations.CancelAndRelease(ctx, d.ID, d.Status, d.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return donation.ErrConflict
	}
	_ = donations.AppendEvent(ctx, &donation.Event{
		DonationID: d.ID,
		FromStatus: d.Status,
		ToStatus:   donation.StatusCancelled,
		ActorType:  cmd.ActorType,
		ActorID:    &cmd.ActorID,
		CreatedAt:  now,
	})
	return tx.Commit(ctx)
}

// Pickup advances donation assigned → picked_up and the assignment to started
// in one transaction.
func (s *Service) Pickup(ctx context.Context, cmd PickupCommand) error {
	now := time.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	donations := s.donations.WithTx(tx)
	d, err := donations.Get(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if d.VolunteerID == nil || *d.VolunteerID != cmd.VolunteerID {
		return donation.ErrWrongVolunteer
	}
	if !donation.CanTransition(d.Status, donation.StatusPickedUp) {
		return donation.ErrInvalidState
	}
	ok, err := donations.UpdateStatus(ctx, d.ID, d.Status, donation.StatusPickedUp, d.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return donation.ErrConflict
	}

	a, err := s.store.WithTx(tx).ActiveByDonation(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if _, err := s.store.WithTx(tx).MarkStarted(ctx, a.ID, now); err != nil {
		return err
	}
	_ = donations.AppendEvent(ctx, &donation.Event{
		DonationID: d.ID,
		FromStatus: d.Status,
		ToStatus:   donation.StatusPickedUp,
		ActorType:  "volunteer",
		ActorID:    &cmd.VolunteerID,
		CreatedAt:  now,
	})
	return tx.Commit(ctx)
}

// Deliver closes the volunteer leg: donation delivered, assignment completed,
// volunteer delivery count bumped, trust credited.
func (s *Service) Deliver(ctx context.Context, cmd DeliverCommand) error {
	now := time.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	donations := s.donations.WithTx(tx)
	d, err := donations.Get(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if d.VolunteerID == nil || *d.VolunteerID != cmd.VolunteerID {
		return donation.ErrWrongVolunteer
	}
	if !donation.CanTransition(d.Status, donation.StatusDelivered) {
		return donation.ErrInvalidState
	}
	ok, err := donations.UpdateStatus(ctx, d.ID, d.Status, donation.StatusDelivered, d.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return donation.ErrConflict
	}
	if cmd.NGOID != nil {
		if err := donations.AttachNGO(ctx, d.ID, *cmd.NGOID); err != nil {
			return err
		}
	}

	store := s.store.WithTx(tx)
	a, err := store.ActiveByDonation(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if _, err := store.MarkCompleted(ctx, a.ID, now); err != nil {
		return err
	}
	if err := store.IncrementCompleted(ctx, cmd.VolunteerID); err != nil {
		return err
	}
	_ = donations.AppendEvent(ctx, &donation.Event{
		DonationID: d.ID,
		FromStatus: d.Status,
		ToStatus:   donation.StatusDelivered,
		ActorType:  "volunteer",
		ActorID:    &cmd.VolunteerID,
		CreatedAt:  now,
	})
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	_, err = s.trust.Update(ctx, cmd.VolunteerID, trust.ActivityDelivery, trust.DeltaDelivery, "completed delivery "+string(cmd.DonationID))
	return err
}

// Get returns a single assignment.
func (s *Service) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	return s.store.Get(ctx, id)
}

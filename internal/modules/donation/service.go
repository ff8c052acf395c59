// README: Donation service implements lifecycle transitions and persistence.
package donation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"seva/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

var (
	ErrBadRequest     = errors.New("bad request")
	ErrNotFound       = errors.New("donation not found")
	ErrInvalidState   = errors.New("invalid state transition")
	ErrConflict       = errors.New("donation state conflict")
	ErrTaken          = errors.New("donation no longer available")
	ErrWrongVolunteer = errors.New("volunteer does not hold this donation")
)

type CreateCommand struct {
	DonorID    types.ID
	Items      Items
	CustomItem string
	CustomQty  int
	Priority   Priority
	City       string
	Position   *types.Point
}

type TransitCommand struct {
	DonationID  types.ID
	VolunteerID types.ID
}

type CompleteCommand struct {
	DonationID types.ID
	ActorType  string
	ActorID    types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.DonorID == "" || cmd.City == "" {
		return "", ErrBadRequest
	}
	if !ValidPriority(cmd.Priority) {
		return "", ErrBadRequest
	}
	for cat, q := range cmd.Items {
		if !ValidItemCategory(cat) || q < 0 {
			return "", ErrBadRequest
		}
	}
	if cmd.CustomQty < 0 {
		return "", ErrBadRequest
	}
	if cmd.Items.Total() == 0 && cmd.CustomQty == 0 {
		return "", ErrBadRequest
	}

	id := NewID()
	now := time.Now()
	d := &Donation{
		ID:             id,
		DonorID:        cmd.DonorID,
		Items:          cmd.Items,
		CustomItem:     cmd.CustomItem,
		CustomQty:      cmd.CustomQty,
		Priority:       cmd.Priority,
		IsUniversal:    IsUniversal(cmd.Items, cmd.CustomItem),
		City:           cmd.City,
		District:       NormalizeDistrict(cmd.City),
		Position:       cmd.Position,
		Status:         StatusPendingApproval,
		StatusVersion:  0,
		ApprovalStatus: ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return "", err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		DonationID: id,
		FromStatus: StatusNone,
		ToStatus:   StatusPendingApproval,
		ActorType:  "donor",
		ActorID:    &cmd.DonorID,
		CreatedAt:  now,
	})
	return id, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Donation, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListPendingForNGO(ctx context.Context, district string, ngoID types.ID) ([]*Donation, error) {
	return s.store.ListPendingForNGO(ctx, district, ngoID)
}

func (s *Service) ListAvailable(ctx context.Context, district string) ([]*Donation, error) {
	return s.store.ListAvailable(ctx, district)
}

// MarkInTransit moves picked_up → in_transit. Pickup and delivery live in the
// assignment service because they also advance the assignment record.
func (s *Service) MarkInTransit(ctx context.Context, cmd TransitCommand) error {
	return s.volunteerTransition(ctx, cmd.DonationID, cmd.VolunteerID, StatusInTransit)
}

func (s *Service) volunteerTransition(ctx context.Context, id, volunteerID types.ID, to Status) error {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.VolunteerID == nil || *d.VolunteerID != volunteerID {
		return ErrWrongVolunteer
	}
	if !CanTransition(d.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, d.ID, d.Status, to, d.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		DonationID: d.ID,
		FromStatus: d.Status,
		ToStatus:   to,
		ActorType:  "volunteer",
		ActorID:    &volunteerID,
		CreatedAt:  time.Now(),
	})
	return nil
}

// Complete is the NGO/admin acknowledgement after delivery.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	d, err := s.store.Get(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if !CanTransition(d.Status, StatusCompleted) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, d.ID, d.Status, StatusCompleted, d.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		DonationID: d.ID,
		FromStatus: d.Status,
		ToStatus:   StatusCompleted,
		ActorType:  cmd.ActorType,
		ActorID:    &cmd.ActorID,
		CreatedAt:  time.Now(),
	})
	return nil
}

func NewID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

// README: Assignment and volunteer store; a partial unique index keeps one
// active assignment per donation.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"seva/internal/modules/donation"
	"seva/internal/types"
)

// Partial unique indexes in the schema; insert collisions on these are how
// concurrent claims lose.
const (
	donationActiveIdx  = "assignments_one_active_idx"
	volunteerActiveIdx = "assignments_volunteer_active_idx"
)

// isUniqueViolation reports whether err is a violation of the named index.
func isUniqueViolation(err error, index string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == index
}

type Store struct {
	db donation.DB
}

func NewStore(db donation.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

const assignmentColumns = `
	id, donation_id, volunteer_id, status,
	accepted_at, started_at, completed_at, auto_unassigned, cancelled_reason`

func (s *Store) Create(ctx context.Context, a *Assignment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO assignments (id, donation_id, volunteer_id, status, accepted_at, auto_unassigned)
		VALUES ($1, $2, $3, $4, $5, FALSE)`,
		string(a.ID), string(a.DonationID), string(a.VolunteerID), string(a.Status), a.AcceptedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, `SELECT`+assignmentColumns+` FROM assignments WHERE id = $1`, string(id))
	return scanAssignment(row)
}

// ActiveByDonation returns the accepted/started assignment for a donation, or
// ErrAssignmentNotFound when none is active.
func (s *Store) ActiveByDonation(ctx context.Context, donationID types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+assignmentColumns+`
		FROM assignments
		WHERE donation_id = $1 AND status IN ('accepted','started')`,
		string(donationID),
	)
	return scanAssignment(row)
}

// HasActiveByVolunteer reports whether the volunteer already holds an
// accepted/started assignment.
func (s *Store) HasActiveByVolunteer(ctx context.Context, volunteerID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM assignments
			WHERE volunteer_id = $1 AND status IN ('accepted','started')
		)`, string(volunteerID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkStarted records the pickup. Conditional on the accepted state so a
// concurrently reclaimed assignment cannot restart.
func (s *Store) MarkStarted(ctx context.Context, id types.ID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE assignments
		SET status = 'started', started_at = $1
		WHERE id = $2 AND status = 'accepted'`,
		now, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted closes the delivery leg.
func (s *Store) MarkCompleted(ctx context.Context, id types.ID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE assignments
		SET status = 'completed', completed_at = $1
		WHERE id = $2 AND status IN ('accepted','started')`,
		now, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelByDonation closes any active assignment when the donor withdraws the
// donation. Not a volunteer fault: auto_unassigned stays FALSE so the sweep
// and the trust ledger ignore the row.
func (s *Store) CancelByDonation(ctx context.Context, donationID types.ID, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE assignments
		SET status = 'cancelled', cancelled_reason = $1
		WHERE donation_id = $2 AND status IN ('accepted','started')`,
		reason, string(donationID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelStuck reclaims an accepted-but-never-started assignment. The guard
// repeats the stuck conditions, so a sweep seeing stale rows is harmless.
func (s *Store) CancelStuck(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE assignments
		SET status = 'cancelled', auto_unassigned = TRUE, cancelled_reason = $1
		WHERE id = $2 AND status = 'accepted' AND started_at IS NULL AND NOT auto_unassigned`,
		ReasonAutoUnassigned, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListStuck finds assignments accepted before the cutoff and never started.
func (s *Store) ListStuck(ctx context.Context, cutoff time.Time) ([]*Assignment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+assignmentColumns+`
		FROM assignments
		WHERE status = 'accepted'
		  AND started_at IS NULL
		  AND NOT auto_unassigned
		  AND accepted_at < $1
		ORDER BY accepted_at`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetVolunteer(ctx context.Context, id types.ID) (*Volunteer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, district, active, completed_count, registered_at
		FROM volunteers WHERE id = $1`, string(id),
	)
	var v Volunteer
	err := row.Scan(&v.ID, &v.Name, &v.Phone, &v.District, &v.Active, &v.CompletedCount, &v.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVolunteerNotFound
	}
	if err != nil {
		return nil, err
	}
	v.District = donation.NormalizeDistrict(v.District)
	return &v, nil
}

func (s *Store) IncrementCompleted(ctx context.Context, volunteerID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE volunteers SET completed_count = completed_count + 1 WHERE id = $1`,
		string(volunteerID),
	)
	return err
}

// PickReassignCandidate selects the best in-district volunteer for a freed
// donation: active, holding no active assignment, highest trust score first,
// earliest registration breaking ties, id as the final deterministic order.
func (s *Store) PickReassignCandidate(ctx context.Context, district string, exclude types.ID) (*Volunteer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT v.id, v.name, v.phone, v.district, v.active, v.completed_count, v.registered_at
		FROM volunteers v
		LEFT JOIN trust_scores t ON t.volunteer_id = v.id
		WHERE v.active
		  AND v.district = $1
		  AND v.id <> $2
		  AND NOT EXISTS (
		        SELECT 1 FROM assignments a
		        WHERE a.volunteer_id = v.id AND a.status IN ('accepted','started')
		  )
		ORDER BY COALESCE(t.score, $3) DESC, v.registered_at ASC, v.id ASC
		LIMIT 1`,
		donation.NormalizeDistrict(district), string(exclude), 100,
	)
	var v Volunteer
	err := row.Scan(&v.ID, &v.Name, &v.Phone, &v.District, &v.Active, &v.CompletedCount, &v.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.District = donation.NormalizeDistrict(v.District)
	return &v, nil
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.DonationID, &a.VolunteerID, &a.Status,
		&a.AcceptedAt, &a.StartedAt, &a.CompletedAt, &a.AutoUnassigned, &a.CancelledReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// README: Donation store backed by PostgreSQL; all mutations are conditional writes.
package donation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"seva/internal/types"
)

// DB is satisfied by *pgxpool.Pool and pgx.Tx so approval and accept flows can
// run store operations inside a caller-owned transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// WithTx returns a store view running against the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

const donationColumns = `
	id, donor_id,
	qty_books, qty_clothes, qty_grains, qty_footwear, qty_toys, qty_school_supplies,
	custom_item, custom_qty,
	priority, is_universal, city, district, lat, lng,
	status, status_version, approval_status,
	ngo_id, volunteer_id, volunteer_name, volunteer_phone, assignment_id,
	created_at, assigned_at, updated_at`

func (s *Store) Create(ctx context.Context, d *Donation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO donations (
			id, donor_id,
			qty_books, qty_clothes, qty_grains, qty_footwear, qty_toys, qty_school_supplies,
			custom_item, custom_qty,
			priority, is_universal, city, district, lat, lng,
			status, status_version, approval_status,
			created_at, updated_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19,
			$20, $20
		)`,
		string(d.ID), string(d.DonorID),
		d.Items[ItemBooks], d.Items[ItemClothes], d.Items[ItemGrains],
		d.Items[ItemFootwear], d.Items[ItemToys], d.Items[ItemSchoolSupplies],
		d.CustomItem, d.CustomQty,
		string(d.Priority), d.IsUniversal, d.City, d.District, lat(d.Position), lng(d.Position),
		string(d.Status), d.StatusVersion, string(d.ApprovalStatus),
		d.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Donation, error) {
	row := s.db.QueryRow(ctx, `SELECT`+donationColumns+` FROM donations WHERE id = $1`, string(id))
	return scanDonation(row)
}

// ApproveByNGO performs the pending_approval → assigned transition for one NGO
// as a single conditional write. Returns false when another actor got there
// first or the donation is no longer pending.
func (s *Store) ApproveByNGO(ctx context.Context, id, ngoID types.ID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE donations
		SET status = 'assigned',
		    approval_status = 'approved',
		    ngo_id = $1,
		    assigned_at = $2,
		    updated_at = $2,
		    status_version = status_version + 1
		WHERE id = $3
		  AND status = 'pending_approval'
		  AND approval_status = 'pending'
		  AND NOT EXISTS (
		        SELECT 1 FROM donation_rejections r
		        WHERE r.donation_id = donations.id AND r.ngo_id = $1
		  )`,
		string(ngoID), now, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRejected records a per-NGO rejection. The donation itself stays at
// pending_approval so other NGOs in the district keep seeing it.
func (s *Store) MarkRejected(ctx context.Context, id, ngoID types.ID, reason string) (bool, error) {
	var pending bool
	err := s.db.QueryRow(ctx, `
		SELECT status = 'pending_approval' AND approval_status = 'pending'
		FROM donations WHERE id = $1`, string(id),
	).Scan(&pending)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if !pending {
		return false, nil
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO donation_rejections (donation_id, ngo_id, reason, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (donation_id, ngo_id) DO NOTHING`,
		string(id), string(ngoID), reason,
	)
	return err == nil, err
}

// ClaimVolunteer attaches a volunteer to an approved donation only if no
// volunteer holds it yet. Concurrent claims race on the volunteer_id IS NULL
// guard; exactly one wins.
func (s *Store) ClaimVolunteer(ctx context.Context, id, volunteerID types.ID, name, phone string, assignmentID types.ID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE donations
		SET volunteer_id = $1,
		    volunteer_name = $2,
		    volunteer_phone = $3,
		    assignment_id = $4,
		    assigned_at = $5,
		    updated_at = $5,
		    status_version = status_version + 1
		WHERE id = $6
		  AND status = 'assigned'
		  AND volunteer_id IS NULL`,
		string(volunteerID), name, phone, string(assignmentID), now, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseVolunteer clears the volunteer fields so the donation becomes
// claimable again. Conditional on the expected holder to stay idempotent when
// the reconciler and a late pickup race.
func (s *Store) ReleaseVolunteer(ctx context.Context, id, volunteerID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE donations
		SET volunteer_id = NULL,
		    volunteer_name = NULL,
		    volunteer_phone = NULL,
		    assignment_id = NULL,
		    updated_at = NOW(),
		    status_version = status_version + 1
		WHERE id = $1
		  AND status = 'assigned'
		  AND volunteer_id = $2`,
		string(id), string(volunteerID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AttachNGO fills in a missing receiving NGO at delivery time. No-op when one
// is already set.
func (s *Store) AttachNGO(ctx context.Context, id, ngoID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE donations
		SET ngo_id = $1, updated_at = NOW()
		WHERE id = $2 AND ngo_id IS NULL`,
		string(ngoID), string(id),
	)
	return err
}

// UpdateStatus is the optimistic-locked transition write shared by the
// pickup/transit/deliver/complete/cancel flows.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE donations
		SET status = $1,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelAndRelease moves the donation to cancelled and clears any volunteer
// hold in the same write, so a cancelled row never keeps volunteer fields.
func (s *Store) CancelAndRelease(ctx context.Context, id types.ID, from Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE donations
		SET status = 'cancelled',
		    volunteer_id = NULL,
		    volunteer_name = NULL,
		    volunteer_phone = NULL,
		    assignment_id = NULL,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2 AND status_version = $3`,
		string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListPendingForNGO returns district-local donations still open for approval
// by the given NGO, critical first, newest first within a priority.
func (s *Store) ListPendingForNGO(ctx context.Context, district string, ngoID types.ID) ([]*Donation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+donationColumns+`
		FROM donations
		WHERE status = 'pending_approval'
		  AND approval_status = 'pending'
		  AND district = $1
		  AND NOT EXISTS (
		        SELECT 1 FROM donation_rejections r
		        WHERE r.donation_id = donations.id AND r.ngo_id = $2
		  )
		ORDER BY `+priorityRankSQL+`, created_at DESC`,
		NormalizeDistrict(district), string(ngoID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDonations(rows)
}

// ListAvailable returns approved, unclaimed donations in a district, ordered
// for the volunteer queue.
func (s *Store) ListAvailable(ctx context.Context, district string) ([]*Donation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+donationColumns+`
		FROM donations
		WHERE status = 'assigned'
		  AND volunteer_id IS NULL
		  AND district = $1
		ORDER BY `+priorityRankSQL+`, created_at DESC`,
		NormalizeDistrict(district),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDonations(rows)
}

const priorityRankSQL = `
		CASE priority
			WHEN 'critical' THEN 1
			WHEN 'high' THEN 2
			WHEN 'medium' THEN 3
			ELSE 4
		END`

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO donation_state_events (
			donation_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.DonationID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func scanDonations(rows pgx.Rows) ([]*Donation, error) {
	var out []*Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDonation(row pgx.Row) (*Donation, error) {
	var d Donation
	var books, clothes, grains, footwear, toys, school int
	var latV, lngV *float64
	var ngoID, volunteerID, assignmentID, volunteerName, volunteerPhone *string
	var assignedAt *time.Time

	err := row.Scan(
		&d.ID, &d.DonorID,
		&books, &clothes, &grains, &footwear, &toys, &school,
		&d.CustomItem, &d.CustomQty,
		&d.Priority, &d.IsUniversal, &d.City, &d.District, &latV, &lngV,
		&d.Status, &d.StatusVersion, &d.ApprovalStatus,
		&ngoID, &volunteerID, &volunteerName, &volunteerPhone, &assignmentID,
		&d.CreatedAt, &assignedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d.Items = Items{}
	for cat, q := range map[ItemCategory]int{
		ItemBooks: books, ItemClothes: clothes, ItemGrains: grains,
		ItemFootwear: footwear, ItemToys: toys, ItemSchoolSupplies: school,
	} {
		if q > 0 {
			d.Items[cat] = q
		}
	}
	if latV != nil && lngV != nil {
		d.Position = &types.Point{Lat: *latV, Lng: *lngV}
	}
	d.NGOID = toID(ngoID)
	d.VolunteerID = toID(volunteerID)
	d.AssignmentID = toID(assignmentID)
	d.VolunteerName = volunteerName
	d.VolunteerPhone = volunteerPhone
	d.AssignedAt = assignedAt
	return &d, nil
}

func toID(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func lat(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lat
}

func lng(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lng
}

// README: NGO store: daily-limit counters and performance rollups in PostgreSQL.
package ngo

import (
	"context"
	"errors"
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

func (s *Store) Get(ctx context.Context, id types.ID) (*NGO, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, type, district, can_accept_universal, created_at
		FROM ngos WHERE id = $1`, string(id),
	)
	var n NGO
	var rawType string
	err := row.Scan(&n.ID, &n.Name, &rawType, &n.District, &n.CanAcceptUniversal, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNGONotFound
	}
	if err != nil {
		return nil, err
	}
	n.Type = ParseType(rawType)
	n.District = donation.NormalizeDistrict(n.District)
	return &n, nil
}

// GetOrCreateDailyLimit lazily materializes the counter row for (ngo, day).
// The initial cap is computed by the caller from performance data so the
// derivation stays a pure function.
func (s *Store) GetOrCreateDailyLimit(ctx context.Context, ngoID types.ID, day time.Time, initialLimit int, performanceScore float64) (*DailyLimit, error) {
	d := day.Truncate(24 * time.Hour)
	_, err := s.db.Exec(ctx, `
		INSERT INTO ngo_daily_limits (ngo_id, day, daily_limit, approvals_used, critical_approvals, performance_score, load_level)
		VALUES ($1, $2, $3, 0, 0, $4, 'low')
		ON CONFLICT (ngo_id, day) DO NOTHING`,
		string(ngoID), d, initialLimit, performanceScore,
	)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx, `
		SELECT ngo_id, day, daily_limit, approvals_used, critical_approvals, performance_score, load_level
		FROM ngo_daily_limits WHERE ngo_id = $1 AND day = $2`,
		string(ngoID), d,
	)
	var dl DailyLimit
	if err := row.Scan(&dl.NGOID, &dl.Day, &dl.DailyLimit, &dl.ApprovalsUsed, &dl.CriticalApprovals, &dl.PerformanceScore, &dl.LoadLevel); err != nil {
		return nil, err
	}
	return &dl, nil
}

// TryIncrementUsed bumps the non-critical counter only while under the cap.
// The guard and the increment are one statement, so two NGO sessions cannot
// both take the last slot. remaining is the count left after this approval
// (RETURNING evaluates against the updated row).
func (s *Store) TryIncrementUsed(ctx context.Context, ngoID types.ID, day time.Time) (remaining int, ok bool, err error) {
	d := day.Truncate(24 * time.Hour)
	row := s.db.QueryRow(ctx, `
		UPDATE ngo_daily_limits
		SET approvals_used = approvals_used + 1,
		    load_level = CASE
		        WHEN (approvals_used + 1)::float / daily_limit < 0.5 THEN 'low'
		        WHEN (approvals_used + 1) < daily_limit THEN 'moderate'
		        ELSE 'high'
		    END
		WHERE ngo_id = $1 AND day = $2 AND approvals_used < daily_limit
		RETURNING daily_limit - approvals_used`,
		string(ngoID), d,
	)
	err = row.Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

// IncrementCritical records an uncapped critical approval.
func (s *Store) IncrementCritical(ctx context.Context, ngoID types.ID, day time.Time) error {
	d := day.Truncate(24 * time.Hour)
	_, err := s.db.Exec(ctx, `
		UPDATE ngo_daily_limits
		SET critical_approvals = critical_approvals + 1
		WHERE ngo_id = $1 AND day = $2`,
		string(ngoID), d,
	)
	return err
}

// GetPerformance returns nil without error when the NGO has no rollup yet.
func (s *Store) GetPerformance(ctx context.Context, ngoID types.ID) (*Performance, error) {
	row := s.db.QueryRow(ctx, `
		SELECT ngo_id, volunteer_count, rating, city_coverage_pct,
		       avg_approval_hours, avg_delivery_hours, total_approvals, total_deliveries, updated_at
		FROM ngo_performance WHERE ngo_id = $1`, string(ngoID),
	)
	var p Performance
	err := row.Scan(&p.NGOID, &p.VolunteerCount, &p.Rating, &p.CityCoveragePct,
		&p.AvgApprovalHours, &p.AvgDeliveryHours, &p.TotalApprovals, &p.TotalDeliveries, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecomputePerformance rebuilds the rolling 30-day metrics from the source
// tables and upserts the rollup row.
func (s *Store) RecomputePerformance(ctx context.Context, ngoID types.ID, now time.Time) (*Performance, error) {
	since := now.Add(-30 * 24 * time.Hour)

	row := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE d.assigned_at IS NOT NULL),
			COALESCE(AVG(EXTRACT(EPOCH FROM (d.assigned_at - d.created_at)) / 3600.0), 0)
		FROM donations d
		WHERE d.ngo_id = $1 AND d.assigned_at >= $2`,
		string(ngoID), since,
	)
	var totalApprovals int
	var avgApprovalHours float64
	if err := row.Scan(&totalApprovals, &avgApprovalHours); err != nil {
		return nil, err
	}

	row = s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(EXTRACT(EPOCH FROM (a.completed_at - d.assigned_at)) / 3600.0), 0),
			COUNT(DISTINCT a.volunteer_id)
		FROM assignments a
		JOIN donations d ON d.id = a.donation_id
		WHERE d.ngo_id = $1 AND a.status = 'completed' AND a.completed_at >= $2`,
		string(ngoID), since,
	)
	var totalDeliveries, volunteerCount int
	var avgDeliveryHours float64
	if err := row.Scan(&totalDeliveries, &avgDeliveryHours, &volunteerCount); err != nil {
		return nil, err
	}

	row = s.db.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT d.district) FILTER (WHERE d.ngo_id = $1),
			COUNT(DISTINCT d.district)
		FROM donations d
		WHERE d.created_at >= $2`,
		string(ngoID), since,
	)
	var servedDistricts, totalDistricts int
	if err := row.Scan(&servedDistricts, &totalDistricts); err != nil {
		return nil, err
	}
	coveragePct := 0.0
	if totalDistricts > 0 {
		coveragePct = float64(servedDistricts) / float64(totalDistricts) * 100
	}

	p := &Performance{
		NGOID:            ngoID,
		VolunteerCount:   volunteerCount,
		Rating:           RatingFor(avgApprovalHours, avgDeliveryHours, coveragePct),
		CityCoveragePct:  coveragePct,
		AvgApprovalHours: avgApprovalHours,
		AvgDeliveryHours: avgDeliveryHours,
		TotalApprovals:   totalApprovals,
		TotalDeliveries:  totalDeliveries,
		UpdatedAt:        now,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO ngo_performance (
			ngo_id, volunteer_count, rating, city_coverage_pct,
			avg_approval_hours, avg_delivery_hours, total_approvals, total_deliveries, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ngo_id) DO UPDATE SET
			volunteer_count = EXCLUDED.volunteer_count,
			rating = EXCLUDED.rating,
			city_coverage_pct = EXCLUDED.city_coverage_pct,
			avg_approval_hours = EXCLUDED.avg_approval_hours,
			avg_delivery_hours = EXCLUDED.avg_delivery_hours,
			total_approvals = EXCLUDED.total_approvals,
			total_deliveries = EXCLUDED.total_deliveries,
			updated_at = EXCLUDED.updated_at`,
		string(p.NGOID), p.VolunteerCount, p.Rating, p.CityCoveragePct,
		p.AvgApprovalHours, p.AvgDeliveryHours, p.TotalApprovals, p.TotalDeliveries, p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

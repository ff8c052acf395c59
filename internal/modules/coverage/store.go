// README: Coverage aggregates; grouped queries only, nothing authoritative here.
package coverage

import (
	"context"

	"seva/internal/modules/donation"
)

type Store struct {
	db donation.DB
}

func NewStore(db donation.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DistrictStats(ctx context.Context) ([]DistrictStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT
			d.district,
			COUNT(*) FILTER (WHERE d.status IN ('pending_approval','assigned')),
			COUNT(*) FILTER (WHERE d.status IN ('picked_up','in_transit')),
			COUNT(*) FILTER (WHERE d.status IN ('delivered','completed')),
			(SELECT COUNT(*) FROM ngos n WHERE LOWER(n.district) = d.district),
			(SELECT COUNT(*) FROM volunteers v WHERE LOWER(v.district) = d.district AND v.active),
			COALESCE((
				SELECT AVG(p.rating)
				FROM ngo_performance p
				JOIN ngos n ON n.id = p.ngo_id
				WHERE LOWER(n.district) = d.district
			), 0)
		FROM donations d
		GROUP BY d.district
		ORDER BY d.district`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DistrictStats
	for rows.Next() {
		var st DistrictStats
		if err := rows.Scan(&st.District, &st.OpenDonations, &st.InProgress, &st.Delivered,
			&st.NGOCount, &st.VolunteerCount, &st.AvgNGORating); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

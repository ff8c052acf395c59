// README: Read-mostly district analytics recomputed from source tables.
package coverage

import "time"

type DistrictStats struct {
	District       string
	OpenDonations  int
	InProgress     int
	Delivered      int
	NGOCount       int
	VolunteerCount int
	AvgNGORating   float64
}

type Snapshot struct {
	GeneratedAt time.Time
	Districts   []DistrictStats
}

// README: Volunteer trust score, tier bands, and activity log entries.
package trust

import (
	"time"

	"seva/internal/types"
)

type Tier string

const (
	TierRestricted Tier = "RESTRICTED"
	TierNew        Tier = "NEW"
	TierStandard   Tier = "STANDARD"
	TierPremium    Tier = "PREMIUM"
	TierElite      Tier = "ELITE"
)

const (
	MinScore     = 0
	MaxScore     = 100
	InitialScore = 100
)

// Standard deltas applied by the lifecycle and the reconciler.
const (
	DeltaDelivery = 10
	DeltaNoShow   = -15
)

const (
	ActivityDelivery     = "delivery_completed"
	ActivityNoShow       = "no_show"
	ActivityReassignment = "reassignment"
)

// TierFor maps a score onto its band. The tier is always derived from the
// current score; it is never stored independently of it.
func TierFor(score int) Tier {
	switch {
	case score <= 29:
		return TierRestricted
	case score <= 49:
		return TierNew
	case score <= 74:
		return TierStandard
	case score <= 89:
		return TierPremium
	default:
		return TierElite
	}
}

// Clamp bounds a prospective score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

type Score struct {
	VolunteerID types.ID
	Score       int
	Tier        Tier
	UpdatedAt   time.Time
}

type Activity struct {
	ID           int64
	VolunteerID  types.ID
	ActivityType string
	ScoreChange  int
	Description  string
	CreatedAt    time.Time
}

// README: NGO types, specialization table, and capacity/performance records.
package ngo

import (
	"time"

	"seva/internal/modules/donation"
	"seva/internal/types"
)

// Type is a closed set of NGO kinds, each carrying its specialized item
// categories as data. Anything unparsed collapses to TypeUnknown, which is
// always denied rather than silently permitted.
type Type string

const (
	TypeFood         Type = "food"
	TypeEducation    Type = "education"
	TypeClothing     Type = "clothing"
	TypeMultiPurpose Type = "multi_purpose"
	TypeUnknown      Type = "unknown"
)

var specializations = map[Type][]donation.ItemCategory{
	TypeFood:      {donation.ItemGrains},
	TypeEducation: {donation.ItemBooks, donation.ItemToys, donation.ItemSchoolSupplies},
	TypeClothing:  {donation.ItemClothes, donation.ItemFootwear},
}

// ParseType maps a stored string onto the closed type set.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeFood, TypeEducation, TypeClothing, TypeMultiPurpose:
		return Type(s)
	default:
		return TypeUnknown
	}
}

// SpecializedItems returns the categories an NGO type handles directly.
func SpecializedItems(t Type) []donation.ItemCategory {
	return specializations[t]
}

type NGO struct {
	ID                 types.ID
	Name               string
	Type               Type
	District           string
	CanAcceptUniversal bool
	CreatedAt          time.Time
}

type MatchType string

const (
	MatchMultiPurpose MatchType = "multi_purpose"
	MatchUniversal    MatchType = "universal"
	MatchSpecialized  MatchType = "specialized"
	MatchNone         MatchType = "none"
)

type MatchDecision struct {
	Allowed   bool
	MatchType MatchType
	Reason    string
}

// Match decides whether an NGO type may approve a donation's item mix.
// Rule order matters; first match wins.
func Match(t Type, canAcceptUniversal bool, d *donation.Donation) MatchDecision {
	if t == TypeMultiPurpose {
		return MatchDecision{Allowed: true, MatchType: MatchMultiPurpose, Reason: "multi-purpose NGO handles all categories"}
	}
	spec, known := specializations[t]
	if !known {
		return MatchDecision{Allowed: false, MatchType: MatchNone, Reason: "unknown NGO type"}
	}
	if canAcceptUniversal && d.IsUniversal {
		return MatchDecision{Allowed: true, MatchType: MatchUniversal, Reason: "universal item (food/medicine/water)"}
	}
	for _, cat := range spec {
		if d.Items[cat] > 0 {
			return MatchDecision{Allowed: true, MatchType: MatchSpecialized, Reason: "item mix matches specialization"}
		}
	}
	return MatchDecision{Allowed: false, MatchType: MatchNone, Reason: "items outside NGO specialization"}
}

// DailyLimit is the per-NGO per-day approval counter row.
type DailyLimit struct {
	NGOID             types.ID
	Day               time.Time
	DailyLimit        int
	ApprovalsUsed     int
	CriticalApprovals int
	PerformanceScore  float64
	LoadLevel         string
}

// Performance is the rolling 30-day throughput record per NGO.
type Performance struct {
	NGOID            types.ID
	VolunteerCount   int
	Rating           float64
	CityCoveragePct  float64
	AvgApprovalHours float64
	AvgDeliveryHours float64
	TotalApprovals   int
	TotalDeliveries  int
	UpdatedAt        time.Time
}

const defaultDailyLimit = 7

// InitialDailyLimit derives a new day's cap from the NGO's rolling
// performance. Absent performance data gets the default.
func InitialDailyLimit(perf *Performance) int {
	if perf == nil {
		return defaultDailyLimit
	}
	switch {
	case perf.VolunteerCount >= 5 && perf.Rating >= 4.5:
		return 8
	case perf.VolunteerCount >= 3 && perf.Rating >= 4.0:
		return 7
	default:
		return 5
	}
}

// rating penalties per the throughput thresholds
const (
	slowApprovalHours   = 24
	slowDeliveryHours   = 72
	lowCoveragePct      = 20
	slowApprovalPenalty = 1.0
	slowDeliveryPenalty = 1.0
	lowCoveragePenalty  = 0.5
)

// RatingFor scores an NGO in [0,5] from its rolling latency and coverage.
func RatingFor(avgApprovalHours, avgDeliveryHours, coveragePct float64) float64 {
	rating := 5.0
	if avgApprovalHours > slowApprovalHours {
		rating -= slowApprovalPenalty
	}
	if avgDeliveryHours > slowDeliveryHours {
		rating -= slowDeliveryPenalty
	}
	if coveragePct < lowCoveragePct {
		rating -= lowCoveragePenalty
	}
	if rating < 0 {
		return 0
	}
	return rating
}

// LoadLevelFor buckets today's utilisation for display.
func LoadLevelFor(used, limit int) string {
	if limit <= 0 {
		return "high"
	}
	ratio := float64(used) / float64(limit)
	switch {
	case ratio < 0.5:
		return "low"
	case ratio < 1.0:
		return "moderate"
	default:
		return "high"
	}
}

// CapacityDecision is the structured answer to "may this NGO approve one more
// donation today".
type CapacityDecision struct {
	CanApprove bool
	Reason     string
	Remaining  int
	IsCritical bool
}

// README: Donation aggregate, status definitions, and pure classifiers.
package donation

import (
	"strings"
	"time"

	"seva/internal/types"
)

type Status string

const (
	StatusNone            Status = "none"
	StatusPendingApproval Status = "pending_approval"
	StatusAssigned        Status = "assigned"
	StatusPickedUp        Status = "picked_up"
	StatusInTransit       Status = "in_transit"
	StatusDelivered       Status = "delivered"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities for queue sorting: critical first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	default:
		return 4
	}
}

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type ItemCategory string

const (
	ItemBooks          ItemCategory = "books"
	ItemClothes        ItemCategory = "clothes"
	ItemGrains         ItemCategory = "grains"
	ItemFootwear       ItemCategory = "footwear"
	ItemToys           ItemCategory = "toys"
	ItemSchoolSupplies ItemCategory = "school_supplies"
)

var ItemCategories = []ItemCategory{
	ItemBooks, ItemClothes, ItemGrains, ItemFootwear, ItemToys, ItemSchoolSupplies,
}

func ValidItemCategory(c ItemCategory) bool {
	for _, k := range ItemCategories {
		if k == c {
			return true
		}
	}
	return false
}

// Items maps category to a non-negative quantity. Zero-quantity entries are
// treated the same as absent ones.
type Items map[ItemCategory]int

func (it Items) Total() int {
	sum := 0
	for _, q := range it {
		sum += q
	}
	return sum
}

type Donation struct {
	ID             types.ID
	DonorID        types.ID
	Items          Items
	CustomItem     string
	CustomQty      int
	Priority       Priority
	IsUniversal    bool
	City           string
	District       string
	Position       *types.Point
	Status         Status
	StatusVersion  int
	ApprovalStatus ApprovalStatus
	NGOID          *types.ID
	VolunteerID    *types.ID
	VolunteerName  *string
	VolunteerPhone *string
	AssignmentID   *types.ID
	CreatedAt      time.Time
	AssignedAt     *time.Time
	UpdatedAt      time.Time
}

type Event struct {
	ID         int64
	DonationID types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the donation lifecycle as code. Cancellation
// and rejection are reachable only before pickup.
var AllowedTransitions = map[Status][]Status{
	StatusPendingApproval: {StatusAssigned, StatusRejected, StatusCancelled},
	StatusAssigned:        {StatusPickedUp, StatusCancelled},
	StatusPickedUp:        {StatusInTransit, StatusDelivered},
	StatusInTransit:       {StatusDelivered},
	StatusDelivered:       {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// universalKeywords mark a free-text item as approvable by any NGO that
// accepts universal goods.
var universalKeywords = []string{"food", "medicine", "medical", "water"}

// criticalKeywords exempt a donation from the NGO daily approval cap.
var criticalKeywords = []string{
	"medicine", "injection", "vaccine", "insulin", "oxygen", "blood", "plasma",
	"emergency", "urgent", "critical", "medical", "hospital", "baby food", "infant",
}

// IsUniversal reports whether the item mix may be approved regardless of an
// NGO's specialization: any grain/food quantity, or a universal keyword in the
// custom description.
func IsUniversal(items Items, customItem string) bool {
	if items[ItemGrains] > 0 {
		return true
	}
	return containsAny(customItem, universalKeywords)
}

// IsCritical reports whether a donation bypasses the daily approval cap.
// Pure function of the record; independent of who asks.
func IsCritical(d *Donation) bool {
	if d.Priority == PriorityCritical {
		return true
	}
	if d.Items[ItemGrains] > 0 {
		return true
	}
	return containsAny(d.CustomItem, criticalKeywords)
}

func containsAny(text string, keywords []string) bool {
	low := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

// NormalizeDistrict lowercases and trims a city/region name into the key used
// to match donations, NGOs, and volunteers.
func NormalizeDistrict(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

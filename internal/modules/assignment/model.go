// README: Volunteer assignment record and the stuck-work predicate.
package assignment

import (
	"time"

	"seva/internal/types"
)

type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const (
	ReasonAutoUnassigned    = "auto_unassigned_timeout"
	ReasonDonationCancelled = "donation_cancelled"
)

type Assignment struct {
	ID              types.ID
	DonationID      types.ID
	VolunteerID     types.ID
	Status          Status
	AcceptedAt      time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	AutoUnassigned  bool
	CancelledReason *string
}

type Volunteer struct {
	ID             types.ID
	Name           string
	Phone          string
	District       string
	Active         bool
	CompletedCount int
	RegisteredAt   time.Time
}

// IsStuck reports whether an assignment was accepted but never started within
// the timeout and has not already been reclaimed.
func IsStuck(a *Assignment, now time.Time, timeout time.Duration) bool {
	return a.Status == StatusAccepted &&
		a.StartedAt == nil &&
		!a.AutoUnassigned &&
		now.Sub(a.AcceptedAt) > timeout
}

// README: Donation state machine and classifier tests (no database required).
package donation

import (
	"context"
	"testing"
)

// TestCanTransition verifies the state machine transition table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPendingApproval, StatusAssigned, true},
		{StatusAssigned, StatusPickedUp, true},
		{StatusPickedUp, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusDelivered, StatusCompleted, true},
		// delivery straight from pickup (short trips skip in_transit)
		{StatusPickedUp, StatusDelivered, true},
		// off-ramps before pickup
		{StatusPendingApproval, StatusRejected, true},
		{StatusPendingApproval, StatusCancelled, true},
		{StatusAssigned, StatusCancelled, true},
		// invalid: cancelling after pickup
		{StatusPickedUp, StatusCancelled, false},
		{StatusInTransit, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusAssigned, false},
		{StatusCancelled, StatusAssigned, false},
		{StatusRejected, StatusAssigned, false},
		// invalid: skipping states
		{StatusPendingApproval, StatusPickedUp, false},
		{StatusPendingApproval, StatusDelivered, false},
		{StatusAssigned, StatusDelivered, false},
		{StatusAssigned, StatusCompleted, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	order := []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
	if Priority("bogus").Rank() != PriorityLow.Rank() {
		t.Error("unknown priority should sort with low")
	}
}

func TestValidPriority(t *testing.T) {
	for _, p := range []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow} {
		if !ValidPriority(p) {
			t.Errorf("%s should be valid", p)
		}
	}
	if ValidPriority("urgent") {
		t.Error("unknown priority accepted")
	}
}

func TestIsUniversal(t *testing.T) {
	tests := []struct {
		name   string
		items  Items
		custom string
		want   bool
	}{
		{"grains make it universal", Items{ItemGrains: 2}, "", true},
		{"clothes only", Items{ItemClothes: 3}, "", false},
		{"medicine keyword", Items{}, "insulin and Medicine strips", true},
		{"water keyword", Items{ItemToys: 1}, "bottled water", true},
		{"unrelated custom text", Items{ItemBooks: 5}, "old textbooks", false},
		{"empty donation", Items{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniversal(tt.items, tt.custom); got != tt.want {
				t.Errorf("IsUniversal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCritical(t *testing.T) {
	tests := []struct {
		name string
		d    Donation
		want bool
	}{
		{"critical priority", Donation{Priority: PriorityCritical}, true},
		{"grains present", Donation{Priority: PriorityLow, Items: Items{ItemGrains: 1}}, true},
		{"keyword in description", Donation{Priority: PriorityMedium, CustomItem: "Baby Food jars"}, true},
		{"oxygen keyword", Donation{Priority: PriorityLow, CustomItem: "portable OXYGEN concentrator"}, true},
		{"plain clothes", Donation{Priority: PriorityHigh, Items: Items{ItemClothes: 10}}, false},
		{"books medium", Donation{Priority: PriorityMedium, Items: Items{ItemBooks: 4}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCritical(&tt.d); got != tt.want {
				t.Errorf("IsCritical() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeDistrict(t *testing.T) {
	if NormalizeDistrict("  Pune ") != "pune" {
		t.Error("district should lowercase and trim")
	}
	if NormalizeDistrict("MUMBAI") != "mumbai" {
		t.Error("district should lowercase")
	}
}

// Validation failures return before the store is touched, so a nil-backed
// store is safe here.
func TestCreateValidation(t *testing.T) {
	svc := NewService(NewStore(nil))
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateCommand
	}{
		{"missing donor", CreateCommand{City: "Pune", Priority: PriorityMedium, Items: Items{ItemBooks: 1}}},
		{"missing city", CreateCommand{DonorID: "d1", Priority: PriorityMedium, Items: Items{ItemBooks: 1}}},
		{"unknown priority", CreateCommand{DonorID: "d1", City: "Pune", Priority: "urgent", Items: Items{ItemBooks: 1}}},
		{"negative quantity", CreateCommand{DonorID: "d1", City: "Pune", Priority: PriorityLow, Items: Items{ItemBooks: -2}}},
		{"unknown item category", CreateCommand{DonorID: "d1", City: "Pune", Priority: PriorityLow, Items: Items{ItemCategory("weapons"): 5}}},
		{"negative custom qty", CreateCommand{DonorID: "d1", City: "Pune", Priority: PriorityLow, CustomItem: "lamps", CustomQty: -1}},
		{"empty donation", CreateCommand{DonorID: "d1", City: "Pune", Priority: PriorityLow, Items: Items{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.cmd); err != ErrBadRequest {
				t.Errorf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}

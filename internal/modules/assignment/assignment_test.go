// README: Stuck-assignment predicate and reconciler config tests (no database required).
package assignment

import (
	"testing"
	"time"
)

func TestIsStuck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeout := 4 * time.Hour
	started := now.Add(-2 * time.Hour)

	cases := []struct {
		name string
		a    Assignment
		want bool
	}{
		{
			"accepted past timeout",
			Assignment{Status: StatusAccepted, AcceptedAt: now.Add(-5 * time.Hour)},
			true,
		},
		{
			"accepted within timeout",
			Assignment{Status: StatusAccepted, AcceptedAt: now.Add(-3 * time.Hour)},
			false,
		},
		{
			"exactly at timeout is not stuck",
			Assignment{Status: StatusAccepted, AcceptedAt: now.Add(-timeout)},
			false,
		},
		{
			"started long ago but pickup happened",
			Assignment{Status: StatusStarted, AcceptedAt: now.Add(-10 * time.Hour), StartedAt: &started},
			false,
		},
		{
			"already auto-unassigned",
			Assignment{Status: StatusAccepted, AcceptedAt: now.Add(-10 * time.Hour), AutoUnassigned: true},
			false,
		},
		{
			"completed",
			Assignment{Status: StatusCompleted, AcceptedAt: now.Add(-10 * time.Hour)},
			false,
		},
		{
			"cancelled",
			Assignment{Status: StatusCancelled, AcceptedAt: now.Add(-10 * time.Hour)},
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsStuck(&tc.a, now, timeout); got != tc.want {
				t.Errorf("IsStuck = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReconcilerConfigDefaults(t *testing.T) {
	cfg := ReconcilerConfig{}.withDefaults()
	if cfg.Interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", cfg.Interval, DefaultSweepInterval)
	}
	if cfg.Timeout != DefaultStuckTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, DefaultStuckTimeout)
	}

	cfg = ReconcilerConfig{Interval: time.Minute, Timeout: time.Hour}.withDefaults()
	if cfg.Interval != time.Minute || cfg.Timeout != time.Hour {
		t.Errorf("explicit values overridden: %+v", cfg)
	}
}

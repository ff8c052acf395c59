// README: End-to-end lifecycle tests wiring the real services against Postgres.
package integration

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"seva/internal/modules/assignment"
	"seva/internal/modules/donation"
	"seva/internal/modules/ngo"
	"seva/internal/modules/trust"
	"seva/internal/types"
)

type env struct {
	db          *pgxpool.Pool
	donations   *donation.Service
	ngos        *ngo.Service
	assignments *assignment.Service
	trust       *trust.Service
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("SEVA_TEST_DSN"))
	if dsn == "" {
		t.Skip("SEVA_TEST_DSN not set; skipping integration tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, `
		TRUNCATE TABLE
			donation_state_events, donation_rejections, assignments, donations,
			ngo_daily_limits, ngo_performance, ngos, volunteers,
			trust_activities, trust_scores`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	donationStore := donation.NewStore(db)
	ngoStore := ngo.NewStore(db)
	assignmentStore := assignment.NewStore(db)
	trustStore := trust.NewStore(db)
	trustSvc := trust.NewService(trustStore)

	return &env{
		db:          db,
		donations:   donation.NewService(donationStore),
		ngos:        ngo.NewService(db, ngoStore, donationStore),
		assignments: assignment.NewService(db, assignmentStore, donationStore, trustSvc),
		trust:       trustSvc,
	}
}

func (e *env) seedNGO(t *testing.T, id, typ, district string, universal bool) {
	t.Helper()
	_, err := e.db.Exec(context.Background(), `
		INSERT INTO ngos (id, name, type, district, can_accept_universal)
		VALUES ($1, $1, $2, $3, $4)`,
		id, typ, district, universal)
	if err != nil {
		t.Fatalf("seed ngo %s: %v", id, err)
	}
}

func (e *env) seedVolunteer(t *testing.T, id, district string, registeredAt time.Time) {
	t.Helper()
	_, err := e.db.Exec(context.Background(), `
		INSERT INTO volunteers (id, name, phone, district, active, registered_at)
		VALUES ($1, $1, '555-0100', $2, TRUE, $3)`,
		id, district, registeredAt)
	if err != nil {
		t.Fatalf("seed volunteer %s: %v", id, err)
	}
}

// Full happy path: donor creates, NGO approves, volunteer accepts, picks up,
// delivers, NGO completes. Every hop is checked against the persisted state.
func TestDonationLifecycle(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t)
	e.seedNGO(t, "ngo_life", "education", "pune", false)
	e.seedVolunteer(t, "vol_life", "pune", time.Now().Add(-time.Hour))

	id, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_life",
		City:     "Pune",
		Priority: donation.PriorityMedium,
		Items:    donation.Items{donation.ItemBooks: 10},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_life", DonationID: id})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.IsCritical {
		t.Fatal("books donation should not be critical")
	}
	if res.MatchType != ngo.MatchSpecialized {
		t.Fatalf("match type = %s, want specialized", res.MatchType)
	}

	avail, err := e.assignments.ListAvailable(ctx, "pune")
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(avail) != 1 || avail[0].ID != id {
		t.Fatalf("expected the approved donation in the queue, got %d entries", len(avail))
	}

	assignmentID, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: id, VolunteerID: "vol_life"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	// a second accept by the same volunteer is blocked
	if _, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: id, VolunteerID: "vol_life"}); err != assignment.ErrActiveAssignment {
		t.Fatalf("expected ErrActiveAssignment, got %v", err)
	}

	if err := e.assignments.Pickup(ctx, assignment.PickupCommand{DonationID: id, VolunteerID: "vol_life"}); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if err := e.donations.MarkInTransit(ctx, donation.TransitCommand{DonationID: id, VolunteerID: "vol_life"}); err != nil {
		t.Fatalf("in transit: %v", err)
	}
	if err := e.assignments.Deliver(ctx, assignment.DeliverCommand{DonationID: id, VolunteerID: "vol_life"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := e.donations.Complete(ctx, donation.CompleteCommand{DonationID: id, ActorType: "ngo", ActorID: "ngo_life"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	d, err := e.donations.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != donation.StatusCompleted {
		t.Fatalf("final status = %s, want completed", d.Status)
	}

	a, err := e.assignments.Get(ctx, assignmentID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if a.Status != assignment.StatusCompleted || a.CompletedAt == nil {
		t.Fatalf("assignment not completed: %+v", a)
	}

	// delivery credit clamps at the ceiling and leaves an activity row
	sc, err := e.trust.GetScore(ctx, "vol_life")
	if err != nil {
		t.Fatalf("trust score: %v", err)
	}
	if sc.Score != trust.MaxScore || sc.Tier != trust.TierElite {
		t.Fatalf("trust after delivery = %d/%s", sc.Score, sc.Tier)
	}
	acts, err := e.trust.ListActivities(ctx, "vol_life", 10)
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(acts) != 1 || acts[0].ActivityType != trust.ActivityDelivery || acts[0].ScoreChange != trust.DeltaDelivery {
		t.Fatalf("unexpected activity log: %+v", acts)
	}

	var completed int
	if err := e.db.QueryRow(ctx, `SELECT completed_count FROM volunteers WHERE id = 'vol_life'`).Scan(&completed); err != nil {
		t.Fatalf("volunteer count: %v", err)
	}
	if completed != 1 {
		t.Fatalf("completed_count = %d, want 1", completed)
	}
}

// An exhausted daily limit rejects ordinary approvals but critical donations
// still go through on the separate counter.
func TestCriticalBypassesDailyLimit(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t)
	e.seedNGO(t, "ngo_cap", "education", "pune", false)

	if _, err := e.db.Exec(ctx, `
		INSERT INTO ngo_daily_limits (ngo_id, day, daily_limit, approvals_used)
		VALUES ('ngo_cap', CURRENT_DATE, 5, 5)`); err != nil {
		t.Fatalf("seed exhausted limit: %v", err)
	}

	ordinary, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_cap",
		City:     "Pune",
		Priority: donation.PriorityMedium,
		Items:    donation.Items{donation.ItemBooks: 2},
	})
	if err != nil {
		t.Fatalf("create ordinary: %v", err)
	}
	critical, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_cap",
		City:     "Pune",
		Priority: donation.PriorityCritical,
		Items:    donation.Items{donation.ItemBooks: 2},
	})
	if err != nil {
		t.Fatalf("create critical: %v", err)
	}

	if _, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_cap", DonationID: ordinary}); err != ngo.ErrCapacity {
		t.Fatalf("expected ErrCapacity for ordinary donation, got %v", err)
	}
	d, _ := e.donations.Get(ctx, ordinary)
	if d.Status != donation.StatusPendingApproval {
		t.Fatalf("failed approval must not move the donation, got %s", d.Status)
	}

	res, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_cap", DonationID: critical})
	if err != nil {
		t.Fatalf("critical approve: %v", err)
	}
	if !res.IsCritical {
		t.Fatal("expected critical classification")
	}

	var used, crit int
	if err := e.db.QueryRow(ctx, `
		SELECT approvals_used, critical_approvals
		FROM ngo_daily_limits WHERE ngo_id = 'ngo_cap' AND day = CURRENT_DATE`).Scan(&used, &crit); err != nil {
		t.Fatalf("read counters: %v", err)
	}
	if used != 5 || crit != 1 {
		t.Fatalf("counters = used %d crit %d, want 5 and 1", used, crit)
	}
}

// N volunteers race for one approved donation; exactly one accept wins.
func TestConcurrentAcceptSameDonation(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t)
	e.seedNGO(t, "ngo_race", "multi_purpose", "pune", true)

	const volunteers = 6
	for i := 0; i < volunteers; i++ {
		e.seedVolunteer(t, fmt.Sprintf("vol_race_%d", i), "pune", time.Now().Add(-time.Hour))
	}

	id, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_race",
		City:     "Pune",
		Priority: donation.PriorityHigh,
		Items:    donation.Items{donation.ItemClothes: 4},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_race", DonationID: id}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, volunteers)
	for i := 0; i < volunteers; i++ {
		vid := types.ID(fmt.Sprintf("vol_race_%d", i))
		wg.Add(1)
		go func(v types.ID) {
			defer wg.Done()
			_, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: id, VolunteerID: v})
			errs <- err
		}(vid)
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != donation.ErrTaken {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 winning accept, got %d", success)
	}

	d, err := e.donations.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.VolunteerID == nil {
		t.Fatal("expected a volunteer on the donation")
	}
}

// A stuck assignment is reclaimed by the sweep: cancelled with the audit
// reason, the volunteer penalized, and the donation handed to the next best
// in-district volunteer.
func TestSweepReclaimsStuckAssignment(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t)
	e.seedNGO(t, "ngo_sweep", "multi_purpose", "pune", true)
	e.seedVolunteer(t, "vol_slow", "pune", time.Now().Add(-48*time.Hour))
	e.seedVolunteer(t, "vol_backup", "pune", time.Now().Add(-24*time.Hour))

	id, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_sweep",
		City:     "Pune",
		Priority: donation.PriorityMedium,
		Items:    donation.Items{donation.ItemToys: 3},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_sweep", DonationID: id}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assignmentID, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: id, VolunteerID: "vol_slow"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	// backdate the acceptance past the stuck timeout
	if _, err := e.db.Exec(ctx, `
		UPDATE assignments SET accepted_at = NOW() - INTERVAL '5 hours' WHERE id = $1`,
		string(assignmentID)); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := e.assignments.Sweep(ctx, time.Now(), 4*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed = %d, want 1", n)
	}

	a, err := e.assignments.Get(ctx, assignmentID)
	if err != nil {
		t.Fatalf("get old assignment: %v", err)
	}
	if a.Status != assignment.StatusCancelled || !a.AutoUnassigned {
		t.Fatalf("old assignment not reclaimed: %+v", a)
	}
	if a.CancelledReason == nil || *a.CancelledReason != assignment.ReasonAutoUnassigned {
		t.Fatalf("cancelled reason = %v", a.CancelledReason)
	}

	sc, err := e.trust.GetScore(ctx, "vol_slow")
	if err != nil {
		t.Fatalf("trust: %v", err)
	}
	if sc.Score != trust.InitialScore+trust.DeltaNoShow {
		t.Fatalf("no-show score = %d, want %d", sc.Score, trust.InitialScore+trust.DeltaNoShow)
	}
	if sc.Tier != trust.TierPremium {
		t.Fatalf("no-show tier = %s, want %s", sc.Tier, trust.TierPremium)
	}

	// donation handed to the backup volunteer with a fresh assignment
	d, err := e.donations.Get(ctx, id)
	if err != nil {
		t.Fatalf("get donation: %v", err)
	}
	if d.Status != donation.StatusAssigned {
		t.Fatalf("donation status = %s, want assigned", d.Status)
	}
	if d.VolunteerID == nil || *d.VolunteerID != "vol_backup" {
		t.Fatalf("expected reassignment to vol_backup, got %v", d.VolunteerID)
	}

	// a second sweep finds nothing
	n, err = e.assignments.Sweep(ctx, time.Now(), 4*time.Hour)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep reclaimed %d, want 0", n)
	}
}

// A donor withdrawing after a volunteer accepted must close the assignment
// without blaming the volunteer: the assignment carries its own cancel
// reason, the volunteer fields are cleared, the sweep finds nothing to
// reclaim, and the volunteer stays unpenalized and free to accept new work.
func TestCancelAfterAcceptReleasesAssignment(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t)
	e.seedNGO(t, "ngo_cxl", "multi_purpose", "pune", true)
	e.seedVolunteer(t, "vol_cxl", "pune", time.Now().Add(-time.Hour))

	id, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_cxl",
		City:     "Pune",
		Priority: donation.PriorityMedium,
		Items:    donation.Items{donation.ItemClothes: 3},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_cxl", DonationID: id}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assignmentID, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: id, VolunteerID: "vol_cxl"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := e.assignments.Cancel(ctx, assignment.CancelCommand{
		DonationID: id, ActorType: "donor", ActorID: "donor_cxl", Reason: "changed my mind",
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	d, err := e.donations.Get(ctx, id)
	if err != nil {
		t.Fatalf("get donation: %v", err)
	}
	if d.Status != donation.StatusCancelled {
		t.Fatalf("donation status = %s, want cancelled", d.Status)
	}
	if d.VolunteerID != nil || d.AssignmentID != nil {
		t.Fatalf("cancelled donation still holds volunteer fields: %+v", d)
	}

	a, err := e.assignments.Get(ctx, assignmentID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if a.Status != assignment.StatusCancelled {
		t.Fatalf("assignment status = %s, want cancelled", a.Status)
	}
	if a.AutoUnassigned {
		t.Fatal("donor cancellation must not be flagged auto_unassigned")
	}
	if a.CancelledReason == nil || *a.CancelledReason != assignment.ReasonDonationCancelled {
		t.Fatalf("cancelled reason = %v, want %s", a.CancelledReason, assignment.ReasonDonationCancelled)
	}

	// hours later the sweep has nothing to reclaim and no penalty lands
	n, err := e.assignments.Sweep(ctx, time.Now().Add(6*time.Hour), 4*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("sweep reclaimed %d after a donor cancel, want 0", n)
	}
	acts, err := e.trust.ListActivities(ctx, "vol_cxl", 10)
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(acts) != 0 {
		t.Fatalf("volunteer was penalized for a donor cancel: %+v", acts)
	}

	// the volunteer is free again
	next, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_cxl2",
		City:     "Pune",
		Priority: donation.PriorityMedium,
		Items:    donation.Items{donation.ItemToys: 1},
	})
	if err != nil {
		t.Fatalf("create next: %v", err)
	}
	if _, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_cxl", DonationID: next}); err != nil {
		t.Fatalf("approve next: %v", err)
	}
	if _, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: next, VolunteerID: "vol_cxl"}); err != nil {
		t.Fatalf("released volunteer should accept again: %v", err)
	}
}

// The donor loses the right to cancel once the volunteer has the goods.
func TestCancelBlocksAfterPickup(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t)
	e.seedNGO(t, "ngo_late", "multi_purpose", "pune", true)
	e.seedVolunteer(t, "vol_late", "pune", time.Now().Add(-time.Hour))

	id, err := e.donations.Create(ctx, donation.CreateCommand{
		DonorID:  "donor_late",
		City:     "Pune",
		Priority: donation.PriorityMedium,
		Items:    donation.Items{donation.ItemBooks: 1},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_late", DonationID: id}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: id, VolunteerID: "vol_late"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := e.assignments.Pickup(ctx, assignment.PickupCommand{DonationID: id, VolunteerID: "vol_late"}); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	err = e.assignments.Cancel(ctx, assignment.CancelCommand{DonationID: id, ActorType: "donor", ActorID: "donor_late"})
	if err != donation.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState cancelling after pickup, got %v", err)
	}
}

// One volunteer racing their own accepts across two donations holds at most
// one of them; the schema index decides when both requests slip past the
// pre-check.
func TestSameVolunteerConcurrentAccepts(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t)
	e.seedNGO(t, "ngo_dual", "multi_purpose", "pune", true)
	e.seedVolunteer(t, "vol_dual", "pune", time.Now().Add(-time.Hour))

	ids := make([]types.ID, 2)
	for i := range ids {
		id, err := e.donations.Create(ctx, donation.CreateCommand{
			DonorID:  "donor_dual",
			City:     "Pune",
			Priority: donation.PriorityMedium,
			Items:    donation.Items{donation.ItemBooks: 1},
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if _, err := e.ngos.Approve(ctx, ngo.ApproveCommand{NGOID: "ngo_dual", DonationID: id}); err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
		ids[i] = id
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(d types.ID) {
			defer wg.Done()
			_, err := e.assignments.Accept(ctx, assignment.AcceptCommand{DonationID: d, VolunteerID: "vol_dual"})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != assignment.ErrActiveAssignment {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 winning accept for the volunteer, got %d", success)
	}

	var active int
	if err := e.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM assignments
		WHERE volunteer_id = 'vol_dual' AND status IN ('accepted','started')`).Scan(&active); err != nil {
		t.Fatalf("count active: %v", err)
	}
	if active != 1 {
		t.Fatalf("active assignments = %d, want 1", active)
	}
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

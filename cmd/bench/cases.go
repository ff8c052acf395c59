// README: Smoke cases for the donation API; includes HTTP, DB, Redis, and performance checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// state threaded between flow cases
	donationID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

const (
	benchNGO      = "benchngo"
	benchDistrict = "benchtown"
	benchVolCount = 25
)

func benchVol(i int) string { return fmt.Sprintf("benchvol%d", i) }

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "database reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL when requested",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "schema contains every table from the migration",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "API: health",
			Focus: "server responds",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				resp, err := r.httpc.Get(base + "/health")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name:  "Seed: bench NGO and volunteers",
			Focus: "fixtures for the flow cases",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				if _, err := r.db.Exec(ctx, `
					INSERT INTO ngos (id, name, type, district, can_accept_universal)
					VALUES ($1, $1, 'multi_purpose', $2, TRUE)
					ON CONFLICT (id) DO NOTHING`, benchNGO, benchDistrict); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for i := 0; i < benchVolCount; i++ {
					if _, err := r.db.Exec(ctx, `
						INSERT INTO volunteers (id, name, phone, district, active)
						VALUES ($1, $1, '555-0100', $2, TRUE)
						ON CONFLICT (id) DO NOTHING`, benchVol(i), benchDistrict); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					// stale assignments from a previous run would block accepts
					if _, err := r.db.Exec(ctx, `
						UPDATE assignments SET status = 'cancelled', cancelled_reason = 'bench_reset'
						WHERE volunteer_id = $1 AND status IN ('accepted','started')`, benchVol(i)); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},

		// Donation flow, each step feeding the next through r.donationID.
		{
			Name:  "Flow: donor creates donation",
			Focus: "POST /api/donations",
			Run: func(ctx context.Context, r *Runner) Result {
				status, body, latency := r.post(ctx, base+"/api/donations", map[string]any{
					"donor_id": "bench_donor",
					"city":     benchDistrict,
					"priority": "high",
					"items":    map[string]int{"books": 5, "clothes": 2},
					"lat":      18.5204,
					"lng":      73.8567,
				})
				if status != http.StatusCreated {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				var out struct {
					DonationID string `json:"donation_id"`
				}
				if err := json.Unmarshal(body, &out); err != nil || out.DonationID == "" {
					return Result{Status: "FAIL", Note: "no donation_id in response"}
				}
				r.donationID = out.DonationID
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Flow: create rejects empty donation",
			Focus: "validation",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.post(ctx, base+"/api/donations", map[string]any{
					"donor_id": "bench_donor",
					"city":     benchDistrict,
					"priority": "high",
				})
				return expectStatus(status, latency, http.StatusBadRequest)
			},
		},
		{
			Name:  "Flow: NGO sees donation in pending queue",
			Focus: "GET /api/ngos/:id/donations",
			Run: func(ctx context.Context, r *Runner) Result {
				status, body, latency := r.get(ctx, base+"/api/ngos/"+benchNGO+"/donations")
				if status != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				if !bytes.Contains(body, []byte(r.donationID)) {
					return Result{Status: "FAIL", Note: "donation missing from queue"}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Flow: NGO capacity probe",
			Focus: "GET /api/ngos/:id/can-approve",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.get(ctx, base+"/api/ngos/"+benchNGO+"/can-approve?donation_id="+r.donationID)
				return expectStatus(status, latency, http.StatusOK)
			},
		},
		{
			Name:  "Flow: NGO approves",
			Focus: "POST approve",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.post(ctx, base+"/api/ngos/"+benchNGO+"/donations/"+r.donationID+"/approve", nil)
				return expectStatus(status, latency, http.StatusOK)
			},
		},
		{
			Name:  "Flow: approve is not repeatable",
			Focus: "second approve conflicts",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.post(ctx, base+"/api/ngos/"+benchNGO+"/donations/"+r.donationID+"/approve", nil)
				return expectStatus(status, latency, http.StatusConflict)
			},
		},
		{
			Name:  "Flow: volunteer queue lists approved donation",
			Focus: "GET /api/volunteers/donations",
			Run: func(ctx context.Context, r *Runner) Result {
				status, body, latency := r.get(ctx, base+"/api/volunteers/donations?district="+benchDistrict)
				if status != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				if !bytes.Contains(body, []byte(r.donationID)) {
					return Result{Status: "FAIL", Note: "donation missing from volunteer queue"}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Flow: volunteer accepts",
			Focus: "POST accept",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.post(ctx, base+"/api/volunteers/donations/"+r.donationID+"/accept?volunteer_id="+benchVol(0), nil)
				return expectStatus(status, latency, http.StatusOK)
			},
		},
		{
			Name:  "Flow: pickup, transit, deliver",
			Focus: "status advances through the volunteer leg",
			Run: func(ctx context.Context, r *Runner) Result {
				for _, step := range []string{"pickup", "transit", "deliver"} {
					status, body, _ := r.post(ctx, base+"/api/volunteers/donations/"+r.donationID+"/"+step+"?volunteer_id="+benchVol(0), nil)
					if status != http.StatusOK {
						return Result{Status: "FAIL", Note: fmt.Sprintf("%s status=%d body=%s", step, status, body)}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Flow: NGO completes",
			Focus: "POST complete",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.post(ctx, base+"/api/donations/"+r.donationID+"/complete?actor_id="+benchNGO, nil)
				return expectStatus(status, latency, http.StatusOK)
			},
		},
		{
			Name:  "Flow: completed donation cannot be cancelled",
			Focus: "terminal state rejects transitions",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.post(ctx, base+"/api/donations/"+r.donationID+"/cancel?actor_id=bench_donor", nil)
				return expectStatus(status, latency, http.StatusConflict)
			},
		},
		{
			Name:  "Flow: delivery credited to trust score",
			Focus: "GET /api/volunteers/:id/trust",
			Run: func(ctx context.Context, r *Runner) Result {
				status, body, latency := r.get(ctx, base+"/api/volunteers/"+benchVol(0)+"/trust")
				if status != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				if !bytes.Contains(body, []byte("score")) {
					return Result{Status: "FAIL", Note: "no score in response"}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},

		{
			Name:  "Geo: volunteer location update",
			Focus: "PUT /api/volunteers/:id/location",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.put(ctx, base+"/api/volunteers/"+benchVol(0)+"/location",
					map[string]any{"lat": 18.52, "lng": 73.85})
				return expectStatus(status, latency, http.StatusOK)
			},
		},
		{
			Name:  "Geo: nearby volunteers for donation",
			Focus: "GET /api/donations/:id/nearby-volunteers",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency := r.get(ctx, base+"/api/donations/"+r.donationID+"/nearby-volunteers?radius_km=25")
				return expectStatus(status, latency, http.StatusOK)
			},
		},

		{
			Name:  "Concurrency: multi accept same donation",
			Focus: "only one volunteer wins the claim",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentAccept(ctx, r, base)
			},
		},

		{
			Name:  "Perf: location update throughput",
			Focus: "sustained position writes",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPut, base+"/api/volunteers/"+benchVol(1)+"/location",
					map[string]any{"lat": 18.52, "lng": 73.85})
			},
		},
		{
			Name:  "Perf: donation create throughput",
			Focus: "sustained submissions",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPost, base+"/api/donations", map[string]any{
					"donor_id": "bench_perf_donor",
					"city":     benchDistrict,
					"priority": "low",
					"items":    map[string]int{"toys": 1},
				})
			},
		},
	}
}

func (r *Runner) post(ctx context.Context, url string, body any) (int, []byte, time.Duration) {
	return r.request(ctx, http.MethodPost, url, body)
}

func (r *Runner) put(ctx context.Context, url string, body any) (int, []byte, time.Duration) {
	return r.request(ctx, http.MethodPut, url, body)
}

func (r *Runner) get(ctx context.Context, url string) (int, []byte, time.Duration) {
	return r.request(ctx, http.MethodGet, url, nil)
}

func (r *Runner) request(ctx context.Context, method, url string, body any) (int, []byte, time.Duration) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, []byte(err.Error()), time.Since(start)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, time.Since(start)
}

func expectStatus(got int, latency time.Duration, want int) Result {
	if got != want {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d want=%d", got, want)}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", got)}
}

// concurrentAccept creates and approves a fresh donation, then has many
// volunteers race to accept it. Exactly one should win.
func concurrentAccept(ctx context.Context, r *Runner, base string) Result {
	status, body, _ := r.post(ctx, base+"/api/donations", map[string]any{
		"donor_id": "bench_race_donor",
		"city":     benchDistrict,
		"priority": "medium",
		"items":    map[string]int{"clothes": 3},
	})
	if status != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("create status=%d", status)}
	}
	var created struct {
		DonationID string `json:"donation_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.DonationID == "" {
		return Result{Status: "FAIL", Note: "no donation_id"}
	}
	if status, _, _ := r.post(ctx, base+"/api/ngos/"+benchNGO+"/donations/"+created.DonationID+"/approve", nil); status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("approve status=%d", status)}
	}

	racers := r.cfg.Concurrency
	if racers > benchVolCount-1 {
		racers = benchVolCount - 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succ := 0
	for i := 0; i < racers; i++ {
		// volunteer 0 may still hold an assignment from the flow cases
		vol := benchVol(i + 1)
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			status, _, _ := r.post(ctx, base+"/api/volunteers/donations/"+created.DonationID+"/accept?volunteer_id="+v, nil)
			if status >= 200 && status < 300 {
				mu.Lock()
				succ++
				mu.Unlock()
			}
		}(vol)
	}
	wg.Wait()

	if succ != 1 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("success=%d", succ)}
	}
	return Result{Status: "PASS", Note: "success=1"}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				req, _ := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(b))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

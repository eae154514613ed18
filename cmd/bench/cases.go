// README: Smoke cases for a live deployment: environment checks, the auth and
// donation flows, matching, pickup races, and sustained-load probes.
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

	// Populated by the setup case; later cases fail with a note when empty.
	donorName      string
	donorToken     string
	volunteerToken string
	adminToken     string
	donationID     string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
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

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "no DSN configured"}
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
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "no Redis address configured"}
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
			Name: "Schema: apply (optional)",
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
				for _, stmt := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, stmt); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Schema: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "no DSN configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, table := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						table,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + table}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "API: health reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				code, _, latency, err := r.do(ctx, http.MethodGet, base+"/health", nil, "")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if code != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name: "Setup: bench accounts",
			Run:  setupAccounts,
		},

		// Auth
		apiCase("Auth: wrong password rejected", http.MethodPost, base+"/api/auth/login",
			func(r *Runner) any {
				return map[string]any{"name": r.donorName, "password": "definitely-wrong"}
			},
			func(r *Runner) string { return "" },
			[]int{401}),
		apiCase("Auth: donations require token", http.MethodGet, base+"/api/donations",
			nil,
			func(r *Runner) string { return "" },
			[]int{401}),

		// Donation flow
		{
			Name: "Donation: post (valid)",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.donorToken == "" {
					return Result{Status: "FAIL", Note: "setup incomplete"}
				}
				body := map[string]any{
					"items": []map[string]any{
						{"name": "Bench Rice", "quantity": 2, "weight_kg": 5.0},
					},
					"location": map[string]float64{"lng": 121.0015, "lat": 14.602},
				}
				code, data, latency, err := r.do(ctx, http.MethodPost, base+"/api/donations", body, r.donorToken)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if code != http.StatusCreated {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				var d struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(data, &d); err != nil || d.ID == "" {
					return Result{Status: "FAIL", Latency: latency, Note: "no donation id in response"}
				}
				r.donationID = d.ID
				return Result{Status: "PASS", Latency: latency}
			},
		},
		apiCase("Donation: post (missing fields -> 400)", http.MethodPost, base+"/api/donations",
			func(r *Runner) any { return map[string]any{} },
			func(r *Runner) string { return r.donorToken },
			[]int{400}),
		apiCase("Donation: post blocked for volunteers", http.MethodPost, base+"/api/donations",
			func(r *Runner) any {
				return map[string]any{"items": []map[string]any{{"name": "Nope", "weight_kg": 1.0}}}
			},
			func(r *Runner) string { return r.volunteerToken },
			[]int{403}),
		{
			Name: "Donation: invalid transition -> 409",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.donationID == "" {
					return Result{Status: "FAIL", Note: "no bench donation"}
				}
				body := map[string]any{"to": "delivered"}
				code, _, latency, err := r.do(ctx, http.MethodPost,
					base+"/api/donations/"+r.donationID+"/transition", body, r.donorToken)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if code != http.StatusConflict {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name: "Donation: audit trail present",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.donationID == "" {
					return Result{Status: "FAIL", Note: "no bench donation"}
				}
				code, data, latency, err := r.do(ctx, http.MethodGet,
					base+"/api/donations/"+r.donationID+"/audit", nil, r.donorToken)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				var trail struct {
					Audit []json.RawMessage `json:"audit"`
				}
				if code != http.StatusOK || json.Unmarshal(data, &trail) != nil {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				if len(trail.Audit) == 0 {
					return Result{Status: "FAIL", Latency: latency, Note: "empty audit trail"}
				}
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("entries=%d", len(trail.Audit))}
			},
		},

		// Matching
		apiCase("Matching: run blocked for donors", http.MethodPost, base+"/api/matching/run",
			nil,
			func(r *Runner) string { return r.donorToken },
			[]int{403}),
		apiCase("Matching: run as admin", http.MethodPost, base+"/api/matching/run",
			func(r *Runner) any { return map[string]any{"radius_km": 10.0} },
			func(r *Runner) string { return r.adminToken },
			[]int{200}),
		{
			Name: "Matching: bench donation matched",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.donationID == "" {
					return Result{Status: "FAIL", Note: "no bench donation"}
				}
				code, data, latency, err := r.do(ctx, http.MethodGet,
					base+"/api/donations/"+r.donationID, nil, r.donorToken)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				var d struct {
					State string `json:"state"`
				}
				if code != http.StatusOK || json.Unmarshal(data, &d) != nil {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				if d.State != "matched" {
					return Result{Status: "FAIL", Latency: latency, Note: "state=" + d.State}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},

		// Pickup
		{
			Name: "Pickup: plan route",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.donationID == "" || r.volunteerToken == "" {
					return Result{Status: "FAIL", Note: "setup incomplete"}
				}
				body := map[string]any{"donation_ids": []string{r.donationID}}
				code, _, latency, err := r.do(ctx, http.MethodPost, base+"/api/pickups/plan", body, r.volunteerToken)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if code != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name: "Concurrency: duplicate schedule same donation",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentSchedule(ctx, r, base+"/api/pickups")
			},
		},

		// Tracking
		apiCase("Tracking: volunteer location update", http.MethodPost, base+"/api/tracking/location",
			func(r *Runner) any {
				return map[string]any{"lng": 121.0021, "lat": 14.6031}
			},
			func(r *Runner) string { return r.volunteerToken },
			[]int{200}),
		apiCase("Tracking: nearby lookup", http.MethodGet,
			base+"/api/tracking/nearby?lng=121.002&lat=14.603&radius_km=5",
			nil,
			func(r *Runner) string { return r.adminToken },
			[]int{200}),

		// Reports
		apiCase("Reports: summary blocked for donors", http.MethodGet, base+"/api/reports/summary",
			nil,
			func(r *Runner) string { return r.donorToken },
			[]int{403}),
		apiCase("Reports: summary as admin", http.MethodGet, base+"/api/reports/summary",
			nil,
			func(r *Runner) string { return r.adminToken },
			[]int{200}),

		// Manual checks
		manualCase("Error: Postgres down -> donation post 500",
			"stop the Postgres container, POST /api/donations, expect 500 and a clean recovery after restart"),
		manualCase("Error: interrupted matching run releases lock",
			"kill the API during a run, wait out the 30s lock TTL, verify the next run succeeds"),

		// Performance
		{
			Name: "Perf: location update throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.volunteerToken == "" {
					return Result{Status: "FAIL", Note: "setup incomplete"}
				}
				return perfLoad(ctx, r, base+"/api/tracking/location", map[string]any{
					"lng": 121.0022, "lat": 14.6032,
				}, r.volunteerToken)
			},
		},
		{
			Name: "Perf: donation post throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.donorToken == "" {
					return Result{Status: "FAIL", Note: "setup incomplete"}
				}
				return perfLoad(ctx, r, base+"/api/donations", map[string]any{
					"items": []map[string]any{{"name": "Bench Load", "weight_kg": 1.0}},
				}, r.donorToken)
			},
		},
	}
}

// setupAccounts registers fresh bench users and a pantry so the flow cases
// have someone to act as. Names carry a nanosecond suffix so reruns against
// the same deployment never collide.
func setupAccounts(ctx context.Context, r *Runner) Result {
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	base := r.cfg.BaseURL

	r.donorName = "bench-donor-" + suffix
	donorToken, err := r.registerAndLogin(ctx, r.donorName, "donor", map[string]float64{"lng": 121.0015, "lat": 14.602})
	if err != nil {
		return Result{Status: "FAIL", Note: "donor: " + err.Error()}
	}
	r.donorToken = donorToken

	volToken, err := r.registerAndLogin(ctx, "bench-vol-"+suffix, "volunteer", map[string]float64{"lng": 121.002, "lat": 14.603})
	if err != nil {
		return Result{Status: "FAIL", Note: "volunteer: " + err.Error()}
	}
	r.volunteerToken = volToken

	adminToken, err := r.registerAndLogin(ctx, "bench-admin-"+suffix, "admin", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: "admin: " + err.Error()}
	}
	r.adminToken = adminToken

	pantry := map[string]any{
		"name":        "Bench Pantry " + suffix,
		"capacity_kg": 500.0,
		"location":    map[string]float64{"lng": 121.005, "lat": 14.605},
	}
	code, _, _, err := r.do(ctx, http.MethodPost, base+"/api/recipients", pantry, r.adminToken)
	if err != nil {
		return Result{Status: "FAIL", Note: "pantry: " + err.Error()}
	}
	if code != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("pantry: status=%d", code)}
	}
	return Result{Status: "PASS"}
}

func (r *Runner) registerAndLogin(ctx context.Context, name, role string, location map[string]float64) (string, error) {
	base := r.cfg.BaseURL
	register := map[string]any{"name": name, "password": "bench-" + name, "role": role}
	if location != nil {
		register["location"] = location
	}
	code, _, _, err := r.do(ctx, http.MethodPost, base+"/api/auth/register", register, "")
	if err != nil {
		return "", err
	}
	if code != http.StatusCreated {
		return "", fmt.Errorf("register status=%d", code)
	}
	code, data, _, err := r.do(ctx, http.MethodPost, base+"/api/auth/login", map[string]any{
		"name": name, "password": "bench-" + name,
	}, "")
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("login status=%d", code)
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &res); err != nil || res.Token == "" {
		return "", fmt.Errorf("no token in login response")
	}
	return res.Token, nil
}

func (r *Runner) do(ctx context.Context, method, url string, body any, token string) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp.StatusCode, data, time.Since(start), nil
}

// apiCase builds a single-request case. Body and token resolve at run time so
// they can depend on setup state.
func apiCase(name, method, url string, body func(*Runner) any, token func(*Runner) string, want []int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			var payload any
			if body != nil {
				payload = body(r)
			}
			code, _, latency, err := r.do(ctx, method, url, payload, token(r))
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if contains(want, code) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

// concurrentSchedule fires simultaneous schedule requests for the one matched
// bench donation. Only the first may land; the rest must conflict.
func concurrentSchedule(ctx context.Context, r *Runner, url string) Result {
	if r.donationID == "" || r.volunteerToken == "" {
		return Result{Status: "FAIL", Note: "setup incomplete"}
	}
	payload := map[string]any{"donation_ids": []string{r.donationID}}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succ := 0
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, _, _, err := r.do(ctx, http.MethodPost, url, payload, r.volunteerToken)
			if err != nil {
				return
			}
			mu.Lock()
			if code >= 200 && code < 300 {
				succ++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if succ == 1 {
		return Result{Status: "PASS", Note: "success=1"}
	}
	return Result{Status: "FAIL", Note: fmt.Sprintf("success=%d", succ)}
}

// perfLoad hammers one endpoint for the configured duration. 429s are counted
// apart so a run against a default SHARETRAY_RATE_LIMIT_RPM is readable;
// raise the limit on the target for real throughput numbers.
func perfLoad(ctx context.Context, r *Runner, url string, payload any, token string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var ok, limited, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				code, _, _, err := r.do(ctx, http.MethodPost, url, payload, token)
				mu.Lock()
				switch {
				case err != nil || code >= 500:
					errCount++
				case code == http.StatusTooManyRequests:
					limited++
				default:
					ok++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok == 0 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("no requests completed (rate-limited=%d errors=%d)", limited, errCount)}
	}
	rps := float64(ok) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f rate-limited=%d errors=%d", rps, limited, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
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
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

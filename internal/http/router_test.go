// README: End-to-end router tests over the in-memory backend: auth flow, role
// guards, the donation lifecycle, matching, pickups, and admin surfaces.
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sharetray/internal/config"
	httptransport "sharetray/internal/http"
	"sharetray/internal/logging"
	"sharetray/internal/modules/activity"
	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/matching"
	"sharetray/internal/modules/pickup"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/modules/tracking"
	"sharetray/internal/modules/user"
	"sharetray/internal/report"
	"sharetray/internal/roles"
	"sharetray/internal/seed"
	"sharetray/internal/store"
)

// newTestServer wires the full router over the in-memory backend, the same
// shape main builds for SHARETRAY_STORE=memory.
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logging.Discard()

	mem := store.NewMemory()
	users := user.NewService(mem.Users(), "router-test-secret", time.Hour)
	recipients := recipient.NewService(mem.Recipients())
	donations := donation.NewService(mem.Donations(), recipients, users, log)
	matcher := matching.NewService(donations, recipients, nil, config.MatchingConfig{RadiusKm: 5}, log)
	pickups := pickup.NewService(mem.Pickups(), donations, mem.Users(), nil)
	trackingSvc := tracking.NewService(mem.Users(), mem.Snapshots(), nil)
	activitySvc := activity.NewService(mem.Events())

	rolesMgr := roles.NewManager(filepath.Join(t.TempDir(), "roles_criteria.json"))
	if err := rolesMgr.Load(); err != nil {
		t.Fatalf("load role criteria: %v", err)
	}
	reports := report.NewService(mem.Donations(), recipients, activitySvc, rolesMgr)

	return httptransport.NewRouter(httptransport.RouterDeps{
		Users:        users,
		Recipients:   recipients,
		Donations:    donations,
		Matching:     matcher,
		Pickups:      pickups,
		Tracking:     trackingSvc,
		Activity:     activitySvc,
		Reports:      reports,
		Roles:        rolesMgr,
		Log:          log,
		CORSOrigins:  []string{"*"},
		RateLimitRPM: 10000,
		Seeder: func(ctx context.Context) (seed.Result, error) {
			return seed.Seed(ctx, users, recipients, donations)
		},
	})
}

func doJSON(r *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// registerAndLogin creates a user over the API and returns its id and a
// bearer token.
func registerAndLogin(t *testing.T, r *gin.Engine, name, role string, location map[string]float64) (string, string) {
	t.Helper()
	body := map[string]any{"name": name, "password": "pw-" + name, "role": role}
	if location != nil {
		body["location"] = location
	}
	if w := doJSON(r, http.MethodPost, "/api/auth/register", body, ""); w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", name, w.Code, w.Body.String())
	}
	w := doJSON(r, http.MethodPost, "/api/auth/login", map[string]any{
		"name": name, "password": "pw-" + name,
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", name, w.Code, w.Body.String())
	}
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, w, &res)
	if res.Token == "" || res.User.ID == "" {
		t.Fatalf("login %s: missing token or id in %s", name, w.Body.String())
	}
	return res.User.ID, res.Token
}

func postDonation(t *testing.T, r *gin.Engine, token string, body map[string]any) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/donations", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create donation: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var d struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	decode(t, w, &d)
	if d.State != "posted" {
		t.Fatalf("expected new donation to be posted, got %q", d.State)
	}
	return d.ID
}

// oneItem is a single-line items payload for donation bodies.
func oneItem(name string, weightKg float64) []map[string]any {
	return []map[string]any{{"name": name, "weight_kg": weightKg}}
}

func TestHealth(t *testing.T) {
	r := newTestServer(t)
	w := doJSON(r, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("expected 200 OK, got %d %q", w.Code, w.Body.String())
	}
}

func TestRegister_DoesNotLeakPassword(t *testing.T) {
	r := newTestServer(t)
	w := doJSON(r, http.MethodPost, "/api/auth/register", map[string]any{
		"name": "ana", "password": "hunter2secret", "role": "donor",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if strings.Contains(body, "password") || strings.Contains(body, "hunter2secret") {
		t.Errorf("register response leaks credentials: %s", body)
	}

	w = doJSON(r, http.MethodPost, "/api/auth/login", map[string]any{
		"name": "ana", "password": "wrong",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", w.Code)
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	r := newTestServer(t)
	if w := doJSON(r, http.MethodGet, "/api/donations", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/api/donations", nil, "not-a-jwt"); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", w.Code)
	}
}

func TestDonationCreate_RequiresDonorRole(t *testing.T) {
	r := newTestServer(t)
	_, token := registerAndLogin(t, r, "vol-luis", "volunteer", nil)
	w := doJSON(r, http.MethodPost, "/api/donations", map[string]any{
		"items": oneItem("Rice", 5.0),
	}, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for volunteer, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDonationLifecycle(t *testing.T) {
	r := newTestServer(t)
	donorID, token := registerAndLogin(t, r, "donor-mia", "donor", nil)

	id := postDonation(t, r, token, map[string]any{
		"items": []map[string]any{{"name": "Bread", "quantity": 12, "weight_kg": 4.5}},
	})

	// Cancel it.
	w := doJSON(r, http.MethodPost, "/api/donations/"+id+"/transition", map[string]any{
		"to": "cancelled", "note": "changed plans",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var d struct {
		State string `json:"state"`
	}
	decode(t, w, &d)
	if d.State != "cancelled" {
		t.Errorf("expected cancelled, got %q", d.State)
	}

	// The trail holds the creation entry and the cancel, with the actor.
	w = doJSON(r, http.MethodGet, "/api/donations/"+id+"/audit", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", w.Code)
	}
	var trail struct {
		Audit []struct {
			OldState *string `json:"old_state"`
			NewState string  `json:"new_state"`
			Note     string  `json:"note"`
			ActorID  string  `json:"actor_id"`
		} `json:"audit"`
	}
	decode(t, w, &trail)
	if len(trail.Audit) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(trail.Audit))
	}
	if trail.Audit[0].OldState != nil || trail.Audit[0].NewState != "posted" {
		t.Errorf("unexpected creation entry: %+v", trail.Audit[0])
	}
	last := trail.Audit[1]
	if last.NewState != "cancelled" || last.Note != "changed plans" || last.ActorID != donorID {
		t.Errorf("unexpected cancel entry: %+v", last)
	}

	// Cancelled is terminal: further transitions conflict and leave no trace.
	w = doJSON(r, http.MethodPost, "/api/donations/"+id+"/transition", map[string]any{
		"to": "matched",
	}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 after terminal state, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMatchingRun_AdminOnlyAndMatches(t *testing.T) {
	r := newTestServer(t)
	_, adminToken := registerAndLogin(t, r, "admin-kay", "admin", nil)
	_, donorToken := registerAndLogin(t, r, "donor-jo", "donor", nil)

	w := doJSON(r, http.MethodPost, "/api/recipients", map[string]any{
		"name": "Harbor Pantry", "capacity_kg": 100.0,
		"location": map[string]float64{"lng": 121.005, "lat": 14.605},
	}, adminToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create recipient: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var pantry struct {
		ID string `json:"id"`
	}
	decode(t, w, &pantry)

	id := postDonation(t, r, donorToken, map[string]any{
		"items":    oneItem("Rice", 5.0),
		"location": map[string]float64{"lng": 121.0015, "lat": 14.602},
	})

	// Donors cannot trigger a run.
	if w := doJSON(r, http.MethodPost, "/api/matching/run", nil, donorToken); w.Code != http.StatusForbidden {
		t.Fatalf("donor run: expected 403, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/matching/run", map[string]any{"radius_km": 10.0}, adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("run: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var run struct {
		Matched     int `json:"matched"`
		Assignments []struct {
			DonationID  string  `json:"donation_id"`
			RecipientID string  `json:"recipient_id"`
			DistanceKm  float64 `json:"distance_km"`
		} `json:"assignments"`
	}
	decode(t, w, &run)
	if run.Matched != 1 || len(run.Assignments) != 1 {
		t.Fatalf("expected one assignment, got %s", w.Body.String())
	}
	if run.Assignments[0].DonationID != id || run.Assignments[0].RecipientID != pantry.ID {
		t.Errorf("unexpected assignment: %+v", run.Assignments[0])
	}

	w = doJSON(r, http.MethodGet, "/api/donations/"+id, nil, donorToken)
	var d struct {
		State              string `json:"state"`
		MatchedRecipientID string `json:"matched_recipient_id"`
	}
	decode(t, w, &d)
	if d.State != "matched" || d.MatchedRecipientID != pantry.ID {
		t.Errorf("expected matched donation, got %+v", d)
	}
}

func TestPickupFlow(t *testing.T) {
	r := newTestServer(t)
	_, adminToken := registerAndLogin(t, r, "admin-rhea", "admin", nil)
	_, donorToken := registerAndLogin(t, r, "donor-ben", "donor", nil)
	volID, volToken := registerAndLogin(t, r, "vol-dee", "volunteer",
		map[string]float64{"lng": 121.002, "lat": 14.603})

	if w := doJSON(r, http.MethodPost, "/api/recipients", map[string]any{
		"name": "Harbor Pantry", "capacity_kg": 100.0,
		"location": map[string]float64{"lng": 121.005, "lat": 14.605},
	}, adminToken); w.Code != http.StatusCreated {
		t.Fatalf("create recipient: got %d: %s", w.Code, w.Body.String())
	}

	id := postDonation(t, r, donorToken, map[string]any{
		"items":    oneItem("Soup", 3.0),
		"location": map[string]float64{"lng": 121.001, "lat": 14.601},
	})
	if w := doJSON(r, http.MethodPost, "/api/matching/run", nil, adminToken); w.Code != http.StatusOK {
		t.Fatalf("run: got %d: %s", w.Code, w.Body.String())
	}

	// Preview the route. Coordinates serialize as [lat, lng] pairs.
	w := doJSON(r, http.MethodPost, "/api/pickups/plan", map[string]any{
		"donation_ids": []string{id},
	}, volToken)
	if w.Code != http.StatusOK {
		t.Fatalf("plan: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var plan struct {
		Route []struct {
			DonationID string     `json:"donation_id"`
			Coordinate [2]float64 `json:"coordinate"`
			LegKm      float64    `json:"leg_km"`
		} `json:"route"`
	}
	decode(t, w, &plan)
	if len(plan.Route) != 1 || plan.Route[0].DonationID != id {
		t.Fatalf("unexpected route: %s", w.Body.String())
	}
	stop := plan.Route[0]
	if math.Abs(stop.Coordinate[0]-14.601) > 1e-9 || math.Abs(stop.Coordinate[1]-121.001) > 1e-9 {
		t.Errorf("expected [lat, lng] pair, got %v", stop.Coordinate)
	}
	if stop.LegKm <= 0 {
		t.Errorf("expected positive leg distance, got %f", stop.LegKm)
	}

	// Schedule it.
	w = doJSON(r, http.MethodPost, "/api/pickups", map[string]any{
		"donation_ids": []string{id},
	}, volToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("schedule: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var p struct {
		ID          string   `json:"id"`
		VolunteerID string   `json:"volunteer_id"`
		Status      string   `json:"status"`
		DonationIDs []string `json:"donation_ids"`
	}
	decode(t, w, &p)
	if p.Status != "scheduled" || p.VolunteerID != volID {
		t.Errorf("unexpected pickup: %+v", p)
	}
	if len(p.DonationIDs) != 1 || p.DonationIDs[0] != id {
		t.Errorf("unexpected donation ids: %v", p.DonationIDs)
	}

	var d struct {
		State    string `json:"state"`
		PickupID string `json:"pickup_id"`
	}
	w = doJSON(r, http.MethodGet, "/api/donations/"+id, nil, volToken)
	decode(t, w, &d)
	if d.State != "pickup_scheduled" || d.PickupID != p.ID {
		t.Errorf("expected scheduled donation bound to pickup, got %+v", d)
	}

	if w := doJSON(r, http.MethodGet, "/api/pickups/"+p.ID, nil, volToken); w.Code != http.StatusOK {
		t.Errorf("get pickup: expected 200, got %d", w.Code)
	}
}

func TestSeedDemo(t *testing.T) {
	r := newTestServer(t)
	w := doJSON(r, http.MethodPost, "/seed/demo", nil, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		DonorID    string `json:"donor_id"`
		DonationID string `json:"donation_id"`
	}
	decode(t, w, &res)
	if res.DonorID == "" || res.DonationID == "" {
		t.Fatalf("incomplete seed result: %s", w.Body.String())
	}

	// Seeded users can log in with the demo password.
	w = doJSON(r, http.MethodPost, "/api/auth/login", map[string]any{
		"name": "Demo Donor", "password": "demo1234",
	}, "")
	if w.Code != http.StatusOK {
		t.Errorf("demo login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRolesCriteria(t *testing.T) {
	r := newTestServer(t)
	_, adminToken := registerAndLogin(t, r, "admin-zed", "admin", nil)
	_, donorToken := registerAndLogin(t, r, "donor-pat", "donor", nil)

	w := doJSON(r, http.MethodGet, "/api/roles/criteria", nil, donorToken)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "donor") {
		t.Errorf("list criteria: expected 200 with donor entry, got %d: %s", w.Code, w.Body.String())
	}

	update := map[string]any{"criteria": []string{"Accept food-safety terms"}}
	if w := doJSON(r, http.MethodPut, "/api/roles/donor/criteria", update, donorToken); w.Code != http.StatusForbidden {
		t.Errorf("non-admin update: expected 403, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodPut, "/api/roles/donor/criteria", update, adminToken); w.Code != http.StatusOK {
		t.Errorf("admin update: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/roles/donor/criteria", nil, donorToken)
	if !strings.Contains(w.Body.String(), "Accept food-safety terms") {
		t.Errorf("expected updated criteria, got %s", w.Body.String())
	}
}

func TestReports_AdminOnly(t *testing.T) {
	r := newTestServer(t)
	_, adminToken := registerAndLogin(t, r, "admin-lea", "admin", nil)
	_, donorToken := registerAndLogin(t, r, "donor-sam", "donor", nil)

	if w := doJSON(r, http.MethodGet, "/api/reports/summary", nil, donorToken); w.Code != http.StatusForbidden {
		t.Errorf("donor summary: expected 403, got %d", w.Code)
	}

	w := doJSON(r, http.MethodGet, "/api/reports/summary", nil, adminToken)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "delivered_count") {
		t.Errorf("admin summary: expected 200 with delivered_count, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/reports/export.csv", nil, adminToken)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "donation_id,") {
		t.Errorf("csv export: expected 200 with header, got %d: %s", w.Code, w.Body.String())
	}
}

package serve

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
)

func newTestServer(t *testing.T, config ServeConfig) (*Server, *db.DB) {
	t.Helper()
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(database, nil, config), database
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, ServeConfig{})
	rec, env := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !env.OK {
		t.Errorf("health = %d, ok=%v", rec.Code, env.OK)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, ServeConfig{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: %d, want 200", rec.Code)
	}
}

func TestListIterationsProvisions(t *testing.T) {
	s, database := newTestServer(t, ServeConfig{})

	scope := &models.Scope{Name: "eng", Timezone: "UTC"}
	if err := database.CreateScope(scope); err != nil {
		t.Fatal(err)
	}

	rec, env := doJSON(t, s, http.MethodGet, "/scopes/"+scope.ID+"/iterations", nil)
	if rec.Code != http.StatusOK || !env.OK {
		t.Fatalf("list = %d: %+v", rec.Code, env.Error)
	}

	var dtos []IterationDTO
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, &dtos); err != nil {
		t.Fatal(err)
	}
	// First list provisions the current iteration plus the default lookahead.
	if len(dtos) != 4 {
		t.Fatalf("iterations = %d, want 4", len(dtos))
	}
	if dtos[0].Status != models.StatusCurrent {
		t.Errorf("iteration 1 status = %s, want current", dtos[0].Status)
	}
	for _, dto := range dtos[1:] {
		if dto.Status != models.StatusUpcoming {
			t.Errorf("iteration %d status = %s, want upcoming", dto.Number, dto.Status)
		}
	}
}

func TestCreateIteration(t *testing.T) {
	s, database := newTestServer(t, ServeConfig{})
	scope := &models.Scope{Name: "eng", Timezone: "UTC"}
	if err := database.CreateScope(scope); err != nil {
		t.Fatal(err)
	}

	rec, env := doJSON(t, s, http.MethodPost, "/scopes/"+scope.ID+"/iterations", map[string]string{
		"title":      "hardening",
		"start_date": "2026-09-01",
		"end_date":   "2026-09-07",
	})
	if rec.Code != http.StatusCreated || !env.OK {
		t.Fatalf("create = %d: %+v", rec.Code, env.Error)
	}

	// Bad date format maps to a validation error.
	rec, env = doJSON(t, s, http.MethodPost, "/scopes/"+scope.ID+"/iterations", map[string]string{
		"start_date": "next tuesday",
		"end_date":   "2026-09-07",
	})
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrValidation {
		t.Errorf("bad date = %d: %+v", rec.Code, env.Error)
	}

	// One date without the other is rejected too.
	rec, env = doJSON(t, s, http.MethodPost, "/scopes/"+scope.ID+"/iterations", map[string]string{
		"start_date": "2026-09-01",
	})
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrValidation {
		t.Errorf("half-dated = %d: %+v", rec.Code, env.Error)
	}

	// Unknown scope is a 404.
	rec, env = doJSON(t, s, http.MethodPost, "/scopes/sc-nope/iterations", map[string]string{})
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrNotFound {
		t.Errorf("unknown scope = %d: %+v", rec.Code, env.Error)
	}
}

func TestAddAndRemoveItems(t *testing.T) {
	s, database := newTestServer(t, ServeConfig{})
	scope := &models.Scope{Name: "eng", Timezone: "UTC"}
	if err := database.CreateScope(scope); err != nil {
		t.Fatal(err)
	}

	// An iteration that ended last month is closed to additions.
	start := time.Now().UTC().AddDate(0, 0, -40)
	end := time.Now().UTC().AddDate(0, 0, -26)
	closed := &models.Iteration{ScopeID: scope.ID, StartAt: &start, EndAt: &end, Timezone: "UTC"}
	if err := database.CreateIteration(closed); err != nil {
		t.Fatal(err)
	}

	// An iteration spanning today accepts them.
	openStart := time.Now().UTC().AddDate(0, 0, -7)
	openEnd := time.Now().UTC().AddDate(0, 0, 7)
	open := &models.Iteration{ScopeID: scope.ID, StartAt: &openStart, EndAt: &openEnd, Timezone: "UTC"}
	if err := database.CreateIteration(open); err != nil {
		t.Fatal(err)
	}

	item := &models.Item{ScopeID: scope.ID, Title: "task", StateGroup: models.GroupStarted}
	if err := database.CreateItem(item); err != nil {
		t.Fatal(err)
	}

	rec, env := doJSON(t, s, http.MethodPost, "/iterations/"+closed.ID+"/items", map[string]any{
		"item_ids": []string{item.ID},
	})
	if rec.Code != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != ErrIterClosed {
		t.Errorf("closed add = %d: %+v", rec.Code, env.Error)
	}

	rec, env = doJSON(t, s, http.MethodPost, "/iterations/"+open.ID+"/items", map[string]any{
		"item_ids": []string{item.ID},
	})
	if rec.Code != http.StatusOK || !env.OK {
		t.Fatalf("open add = %d: %+v", rec.Code, env.Error)
	}

	// Empty item list is a validation error.
	rec, env = doJSON(t, s, http.MethodPost, "/iterations/"+open.ID+"/items", map[string]any{
		"item_ids": []string{},
	})
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrValidation {
		t.Errorf("empty add = %d: %+v", rec.Code, env.Error)
	}

	// Removal works even from closed iterations; twice is a 404.
	rec, _ = doJSON(t, s, http.MethodDelete, "/iterations/"+open.ID+"/items/"+item.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("remove = %d, want 200", rec.Code)
	}
	rec, env = doJSON(t, s, http.MethodDelete, "/iterations/"+open.ID+"/items/"+item.ID, nil)
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrNotFound {
		t.Errorf("double remove = %d: %+v", rec.Code, env.Error)
	}
}

func TestTransferEndpoint(t *testing.T) {
	s, database := newTestServer(t, ServeConfig{})
	scope := &models.Scope{Name: "eng", Timezone: "UTC"}
	if err := database.CreateScope(scope); err != nil {
		t.Fatal(err)
	}

	srcStart := time.Now().UTC().AddDate(0, 0, -20)
	srcEnd := time.Now().UTC().AddDate(0, 0, -6)
	source := &models.Iteration{ScopeID: scope.ID, StartAt: &srcStart, EndAt: &srcEnd, Timezone: "UTC"}
	if err := database.CreateIteration(source); err != nil {
		t.Fatal(err)
	}
	dstStart := time.Now().UTC().AddDate(0, 0, -6)
	dstEnd := time.Now().UTC().AddDate(0, 0, 8)
	dest := &models.Iteration{ScopeID: scope.ID, StartAt: &dstStart, EndAt: &dstEnd, Timezone: "UTC"}
	if err := database.CreateIteration(dest); err != nil {
		t.Fatal(err)
	}

	item := &models.Item{ScopeID: scope.ID, Title: "task", StateGroup: models.GroupStarted}
	if err := database.CreateItem(item); err != nil {
		t.Fatal(err)
	}
	if _, err := database.BulkEnsureMemberships(source.ID, []string{item.ID}); err != nil {
		t.Fatal(err)
	}

	rec, env := doJSON(t, s, http.MethodPost, "/iterations/"+source.ID+"/transfer", map[string]string{
		"scope_id":                 scope.ID,
		"destination_iteration_id": dest.ID,
		"actor_id":                 "ana",
	})
	if rec.Code != http.StatusOK || !env.OK {
		t.Fatalf("transfer = %d: %+v", rec.Code, env.Error)
	}

	// Transferring the other direction fails: that source is still open.
	rec, env = doJSON(t, s, http.MethodPost, "/iterations/"+dest.ID+"/transfer", map[string]string{
		"scope_id":                 scope.ID,
		"destination_iteration_id": source.ID,
		"actor_id":                 "ana",
	})
	if rec.Code != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != ErrDestClosed {
		t.Errorf("reverse transfer = %d: %+v", rec.Code, env.Error)
	}

	// Missing destination is a validation error.
	rec, env = doJSON(t, s, http.MethodPost, "/iterations/"+source.ID+"/transfer", map[string]string{
		"scope_id": scope.ID,
	})
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrValidation {
		t.Errorf("missing dest = %d: %+v", rec.Code, env.Error)
	}
}

func TestArchiveEndpoints(t *testing.T) {
	s, database := newTestServer(t, ServeConfig{})
	scope := &models.Scope{Name: "eng", Timezone: "UTC"}
	if err := database.CreateScope(scope); err != nil {
		t.Fatal(err)
	}

	// Still running, so the archive gate rejects.
	start := time.Now().UTC().AddDate(0, 0, -7)
	end := time.Now().UTC().AddDate(0, 0, 7)
	current := &models.Iteration{ScopeID: scope.ID, StartAt: &start, EndAt: &end, Timezone: "UTC"}
	if err := database.CreateIteration(current); err != nil {
		t.Fatal(err)
	}

	rec, env := doJSON(t, s, http.MethodPost, "/iterations/"+current.ID+"/archive", nil)
	if rec.Code != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != ErrArchiveGate {
		t.Errorf("archive current = %d: %+v", rec.Code, env.Error)
	}

	pastStart := time.Now().UTC().AddDate(0, 0, -30)
	pastEnd := time.Now().UTC().AddDate(0, 0, -16)
	done := &models.Iteration{ScopeID: scope.ID, StartAt: &pastStart, EndAt: &pastEnd, Timezone: "UTC"}
	if err := database.CreateIteration(done); err != nil {
		t.Fatal(err)
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/iterations/"+done.ID+"/archive", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("archive done = %d, want 200", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodPost, "/iterations/"+done.ID+"/unarchive", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("unarchive = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, ServeConfig{CORSOrigin: "http://localhost:3000"})

	req := httptest.NewRequest(http.MethodOptions, "/scopes", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin = %q", got)
	}
}

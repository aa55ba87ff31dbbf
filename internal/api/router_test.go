// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/alerting"
	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/authz"
	"github.com/tomtom215/crowdwatch/internal/config"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/query"
	"github.com/tomtom215/crowdwatch/internal/results"
	"github.com/tomtom215/crowdwatch/internal/store"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "console",
		Output: io.Discard,
	})
}

const detectionsJSON = `[
  {"timestamp": "2026-03-01T12:00:00", "frame": 1, "count": 10, "average_count": 10, "alert": false},
  {"timestamp": "2026-03-01T12:00:01", "frame": 2, "count": 45, "average_count": 27.5, "alert": true}
]`

const forecastJSON = `{
  "timestamp": "2026-03-01T12:00:00",
  "frame": 100,
  "lstm_predictions": [10, 12, 14],
  "linear_predictions": [11, 12, 13],
  "steps": 3
}`

// envelope decodes a response with typed data.
type envelope[T any] struct {
	Success bool             `json:"success"`
	Data    T                `json:"data"`
	Error   *models.APIError `json:"error"`
	Meta    *models.APIMeta  `json:"meta"`
}

// testServer is a fully wired router over an in-memory store and a
// temporary results directory.
type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *store.Store
	jwt     *auth.JWTManager
	dir     string
	watcher *results.Watcher
	tokens  map[models.Role]string
	userIDs map[models.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Security: config.SecurityConfig{
			JWTSecret:         "test-secret-for-router-tests",
			SessionTimeout:    time.Hour,
			RateLimitDisabled: true,
		},
		Results: config.ResultsConfig{
			CleanupDefaultMax: 100,
			RetentionPolicy:   config.RetentionPerType,
		},
	}

	jwt, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatal(err)
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	writeResult(t, dir, "detections_1.json", detectionsJSON, time.Now().Add(-time.Minute))
	writeResult(t, dir, "forecast_1.json", forecastJSON, time.Now())
	watcher := results.NewWatcher(dir, results.Options{DisableFSNotify: true})
	if err := watcher.Scan(); err != nil {
		t.Fatal(err)
	}

	breaker := store.NewBreaker("test")
	querier := query.NewService(query.NewStoreAdapter(st, breaker), watcher, query.Options{})
	alerts := alerting.NewService(st, nil, alerting.Config{DefaultThreshold: 100})

	h := NewHandler(Deps{
		Config:   cfg,
		Accounts: auth.NewService(st, jwt),
		Auth:     auth.NewMiddleware(jwt, enforcer),
		Results:  querier,
		Files:    watcher,
		Mirror:   query.NewMirror(watcher, st),
		Alerting: alerts,
		Users:    st,
		Breaker:  breaker,
	})
	mw := NewChiMiddleware(ChiMiddlewareConfigFrom(&cfg.Security))

	ts := &testServer{
		t:       t,
		handler: NewRouter(h, mw).SetupChi(),
		store:   st,
		jwt:     jwt,
		dir:     dir,
		watcher: watcher,
		tokens:  map[models.Role]string{},
		userIDs: map[models.Role]string{},
	}
	for _, role := range []models.Role{models.RoleAdmin, models.RoleOperator, models.RoleViewer} {
		ts.addUser(string(role)+"user", role)
	}
	return ts
}

// addUser stores an account and mints a token for it.
func (ts *testServer) addUser(username string, role models.Role) string {
	ts.t.Helper()
	u := &models.User{Username: username, PasswordHash: "x", Role: role, IsActive: true}
	if err := ts.store.CreateUser(context.Background(), u); err != nil {
		ts.t.Fatal(err)
	}
	token, err := ts.jwt.GenerateToken(u.ID, u.Username, string(u.Role))
	if err != nil {
		ts.t.Fatal(err)
	}
	if _, ok := ts.tokens[role]; !ok {
		ts.tokens[role] = token
		ts.userIDs[role] = u.ID
	}
	return token
}

// do sends a request as role. An empty role sends no token.
func (ts *testServer) do(method, path string, role models.Role, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	return ts.doToken(method, path, ts.tokens[role], body)
}

func (ts *testServer) doToken(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return env
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

func writeResult(t *testing.T, dir, name, content string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)

	env := decode[HealthStatus](t, w)
	if env.Data.Status != "OK" || env.Data.Environment != "test" {
		t.Errorf("health = %+v", env.Data)
	}
	if env.Data.IndexedFiles != 2 {
		t.Errorf("IndexedFiles = %d, want 2", env.Data.IndexedFiles)
	}
	if env.Data.StoreBreaker != "closed" {
		t.Errorf("StoreBreaker = %q, want closed", env.Data.StoreBreaker)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}
}

// roomCounter is a ClientCounter with fixed room sizes.
type roomCounter map[string]int

func (c roomCounter) GetClientCount() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

func (c roomCounter) RoomSize(room string) int { return c[room] }

type fixedBreaker string

func (b fixedBreaker) State() string { return string(b) }

func TestHealth_ReportsSubscribersAndBreaker(t *testing.T) {
	t.Parallel()
	h := NewHandler(Deps{
		Clients: roomCounter{"results-updates": 3, "admin-alerts": 1},
		Breaker: fixedBreaker("open"),
	})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	expectStatus(t, w, http.StatusOK)

	env := decode[HealthStatus](t, w)
	if env.Data.WSClients != 4 || env.Data.Subscribers != 3 {
		t.Errorf("clients = %d, subscribers = %d, want 4 and 3", env.Data.WSClients, env.Data.Subscribers)
	}
	if env.Data.StoreBreaker != "open" {
		t.Errorf("StoreBreaker = %q, want open", env.Data.StoreBreaker)
	}
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/nope", models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusNotFound)
	env := decode[interface{}](t, w)
	if env.Success || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("envelope = %+v", env)
	}
}

func TestRouter_Authentication(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "no token", path: "/api/alerts", status: http.StatusUnauthorized},
		{name: "forged token", path: "/api/alerts", token: "forged", status: http.StatusUnauthorized},
		{name: "viewer reads", path: "/api/alerts", token: ts.tokens[models.RoleViewer], status: http.StatusOK},
		{name: "viewer cannot list users", path: "/api/users", token: ts.tokens[models.RoleViewer], status: http.StatusForbidden},
		{name: "operator cannot list users", path: "/api/users", token: ts.tokens[models.RoleOperator], status: http.StatusForbidden},
		{name: "admin lists users", path: "/api/users", token: ts.tokens[models.RoleAdmin], status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.doToken(http.MethodGet, tt.path, tt.token, nil)
			expectStatus(t, w, tt.status)
		})
	}
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "newbie",
		"email":    "newbie@example.com",
		"password": "secret1",
	})
	expectStatus(t, w, http.StatusCreated)
	reg := decode[auth.Session](t, w)
	if reg.Data.User.Role != models.RoleViewer {
		t.Errorf("registered role = %q, want viewer", reg.Data.User.Role)
	}
	if reg.Data.User.PasswordHash != "" {
		t.Error("password hash must not be returned")
	}

	w = ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": "newbie", "password": "secret1"})
	expectStatus(t, w, http.StatusConflict)

	w = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "newbie", "password": "wrong!"})
	expectStatus(t, w, http.StatusUnauthorized)

	w = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "newbie", "password": "secret1"})
	expectStatus(t, w, http.StatusOK)
	login := decode[auth.Session](t, w)
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.TokenCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.Value != login.Data.Token {
		t.Fatalf("session cookie = %+v", cookie)
	}

	w = ts.doToken(http.MethodGet, "/api/auth/me", login.Data.Token, nil)
	expectStatus(t, w, http.StatusOK)
	if me := decode[models.User](t, w); me.Data.Username != "newbie" {
		t.Errorf("me = %+v", me.Data)
	}

	w = ts.doToken(http.MethodPut, "/api/auth/change-password", login.Data.Token, map[string]string{
		"currentPassword": "secret1",
		"newPassword":     "secret2",
	})
	expectStatus(t, w, http.StatusOK)
	w = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "newbie", "password": "secret2"})
	expectStatus(t, w, http.StatusOK)
}

func TestAuth_RegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{name: "short password", body: map[string]string{"username": "valid", "password": "123"}, field: "password"},
		{name: "short username", body: map[string]string{"username": "ab", "password": "secret1"}, field: "username"},
		{name: "bad email", body: map[string]string{"username": "valid", "password": "secret1", "email": "nope"}, field: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/auth/register", "", tt.body)
			expectStatus(t, w, http.StatusBadRequest)
			env := decode[interface{}](t, w)
			if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
				t.Fatalf("error = %+v", env.Error)
			}
			details, _ := json.Marshal(env.Error.Details)
			if !bytes.Contains(details, []byte(`"`+tt.field+`"`)) {
				t.Errorf("details %s should name %q", details, tt.field)
			}
		})
	}
}

func TestResults_Range(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		status     int
		wantSteps  []int
		wantFrames []int
	}{
		{name: "forecast tail", path: "/api/results/files/forecast_1.json/range?start=1", status: http.StatusOK, wantSteps: []int{1, 2}},
		{name: "forecast clamped", path: "/api/results/files/forecast_1.json/range?start=0&end=99", status: http.StatusOK, wantSteps: []int{0, 1, 2}},
		{name: "forecast inverted", path: "/api/results/files/forecast_1.json/range?start=2&end=1", status: http.StatusOK},
		{name: "detection frames", path: "/api/results/files/detections_1.json/range?start=2&end=2", status: http.StatusOK, wantFrames: []int{2}},
		{name: "detection all", path: "/api/results/files/detections_1.json/range", status: http.StatusOK, wantFrames: []int{1, 2}},
		{name: "negative start", path: "/api/results/files/detections_1.json/range?start=-1", status: http.StatusBadRequest},
		{name: "missing file", path: "/api/results/files/forecast_9.json/range", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodGet, tt.path, models.RoleViewer, nil)
			expectStatus(t, w, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			got := decode[ResultRange](t, w).Data
			if len(got.Predictions) != len(tt.wantSteps) || len(got.Frames) != len(tt.wantFrames) {
				t.Fatalf("range = %+v", got)
			}
			for i, step := range tt.wantSteps {
				p := got.Predictions[i]
				want := time.Date(2026, 3, 1, 12, 0, 5*(step+1), 0, time.UTC)
				if p.Step != step || !p.Time.Equal(want) {
					t.Errorf("prediction %d = %+v, want step %d at %s", i, p, step, want)
				}
			}
			for i, frame := range tt.wantFrames {
				if got.Frames[i].Frame != frame {
					t.Errorf("frame %d = %d, want %d", i, got.Frames[i].Frame, frame)
				}
			}
		})
	}
}

func TestResults_ReadEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/results/files", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	listing := decode[query.Listing](t, w)
	if listing.Data.Count != 2 || !listing.Data.FilesystemAvailable {
		t.Errorf("listing = %+v", listing.Data)
	}

	tests := []struct {
		name   string
		path   string
		status int
		code   string
		source string
	}{
		{name: "file from disk", path: "/api/results/files/detections_1.json", status: http.StatusOK, source: "filesystem"},
		{name: "invalid filename", path: "/api/results/files/notes.txt", status: http.StatusBadRequest, code: ErrCodeInvalidFilename},
		{name: "missing file", path: "/api/results/files/detections_9.json", status: http.StatusNotFound, code: ErrCodeNotFound},
		{name: "latest forecast", path: "/api/results/latest/forecast", status: http.StatusOK, source: "filesystem"},
		{name: "unknown type", path: "/api/results/latest/bogus", status: http.StatusBadRequest, code: ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodGet, tt.path, models.RoleViewer, nil)
			expectStatus(t, w, tt.status)
			env := decode[json.RawMessage](t, w)
			if tt.code != "" && (env.Error == nil || env.Error.Code != tt.code) {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
			if tt.source != "" && env.Meta.Source != tt.source {
				t.Errorf("source = %q, want %q", env.Meta.Source, tt.source)
			}
		})
	}

	w = ts.do(http.MethodGet, "/api/results/detections?limit=10", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	if frames := decode[[]models.Frame](t, w); len(frames.Data) != 2 {
		t.Errorf("frames = %d, want 2", len(frames.Data))
	}

	w = ts.do(http.MethodGet, "/api/results/detections?limit=0", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodGet, "/api/results/stats", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	if stats := decode[query.Stats](t, w); stats.Data.DetectionFiles != 1 || stats.Data.ForecastFiles != 1 {
		t.Errorf("stats = %+v", stats.Data)
	}
}

func TestResults_UploadThenReadFromStore(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/results/upload", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(http.MethodPost, "/api/results/upload", models.RoleAdmin, map[string]bool{"dryRun": true})
	expectStatus(t, w, http.StatusOK)
	if report := decode[query.MirrorReport](t, w); !report.Data.DryRun || !report.Data.Success {
		t.Errorf("dry run report = %+v", report.Data)
	}
	w = ts.do(http.MethodGet, "/api/results/files/detections_1.json", models.RoleViewer, nil)
	if env := decode[json.RawMessage](t, w); env.Meta.Source != "filesystem" {
		t.Errorf("dry run must not write; source = %q", env.Meta.Source)
	}

	w = ts.do(http.MethodPost, "/api/results/upload", models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusOK)
	report := decode[query.MirrorReport](t, w)
	if !report.Data.Success || len(report.Data.Failures) != 0 {
		t.Fatalf("report = %+v", report.Data)
	}

	w = ts.do(http.MethodGet, "/api/results/files/detections_1.json", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	if env := decode[json.RawMessage](t, w); env.Meta.Source != "store" {
		t.Errorf("source after upload = %q, want store", env.Meta.Source)
	}
}

func TestResults_Cleanup(t *testing.T) {
	ts := newTestServer(t)
	writeResult(t, ts.dir, "detections_2.json", detectionsJSON, time.Now())

	w := ts.do(http.MethodPost, "/api/results/cleanup", models.RoleViewer, map[string]int{"maxFiles": 1})
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(http.MethodPost, "/api/results/cleanup", models.RoleAdmin, map[string]int{"maxFiles": -1})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodPost, "/api/results/cleanup", models.RoleAdmin, map[string]int{"maxFiles": 1})
	expectStatus(t, w, http.StatusOK)
	res := decode[CleanupResult](t, w)
	if res.Data.Remaining != 2 || res.Data.MaxFiles != 1 {
		t.Errorf("cleanup = %+v, want one file per type kept", res.Data)
	}
	if _, err := os.Stat(filepath.Join(ts.dir, "detections_1.json")); !os.IsNotExist(err) {
		t.Error("oldest detection file should be deleted")
	}

	w = ts.do(http.MethodPost, "/api/results/cleanup", models.RoleAdmin, map[string]interface{}{"maxFiles": 1, "policy": "newest"})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodPost, "/api/results/cleanup", models.RoleAdmin, map[string]interface{}{"maxFiles": 1, "policy": "combined"})
	expectStatus(t, w, http.StatusOK)
	if res := decode[CleanupResult](t, w); res.Data.Remaining != 1 || res.Data.Policy != "combined" {
		t.Errorf("combined cleanup = %+v, want a single file kept", res.Data)
	}
}

func TestCameras_CRUD(t *testing.T) {
	ts := newTestServer(t)
	cam := map[string]interface{}{
		"cameraId":       "cam-1",
		"location":       "North Gate",
		"maxCapacity":    100,
		"alertThreshold": 50,
	}

	w := ts.do(http.MethodPost, "/api/cameras", models.RoleOperator, cam)
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(http.MethodPost, "/api/cameras", models.RoleAdmin, cam)
	expectStatus(t, w, http.StatusCreated)
	created := decode[models.Camera](t, w)

	w = ts.do(http.MethodPost, "/api/cameras", models.RoleAdmin, cam)
	expectStatus(t, w, http.StatusConflict)

	w = ts.do(http.MethodPost, "/api/cameras", models.RoleAdmin, map[string]interface{}{
		"cameraId": "cam-2", "location": "x", "maxCapacity": 10, "alertThreshold": 20,
	})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodGet, "/api/cameras/by-camera/cam-1", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	view := decode[alerting.CameraView](t, w)
	if view.Data.ID != created.Data.ID || view.Data.Active {
		t.Errorf("camera view = %+v", view.Data)
	}

	w = ts.do(http.MethodPut, "/api/cameras/"+created.Data.ID, models.RoleAdmin, map[string]interface{}{"location": "South Gate"})
	expectStatus(t, w, http.StatusOK)
	if updated := decode[alerting.CameraView](t, w); updated.Data.Location != "South Gate" {
		t.Errorf("location = %q", updated.Data.Location)
	}

	w = ts.do(http.MethodGet, "/api/cameras?status=active", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]alerting.CameraView](t, w); len(list.Data) != 1 {
		t.Errorf("cameras = %d, want 1", len(list.Data))
	}

	w = ts.do(http.MethodDelete, "/api/cameras/"+created.Data.ID, models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusOK)
	w = ts.do(http.MethodGet, "/api/cameras/"+created.Data.ID, models.RoleViewer, nil)
	expectStatus(t, w, http.StatusNotFound)
}

// registerCamera creates cam-1 with an alert threshold of 50.
func registerCamera(t *testing.T, ts *testServer) {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/cameras", models.RoleAdmin, map[string]interface{}{
		"cameraId": "cam-1", "location": "North Gate", "maxCapacity": 100, "alertThreshold": 50,
	})
	expectStatus(t, w, http.StatusCreated)
}

func sample(count int, alert bool) map[string]interface{} {
	return map[string]interface{}{
		"cameraId":       "cam-1",
		"count":          count,
		"prediction":     []float64{1, 2, 3, 4, 5, 6},
		"alertTriggered": alert,
	}
}

func TestCrowd_SubmitRaisesAlert(t *testing.T) {
	ts := newTestServer(t)
	registerCamera(t, ts)

	w := ts.do(http.MethodPost, "/api/crowd", models.RoleViewer, sample(60, true))
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(http.MethodPost, "/api/crowd", models.RoleOperator, sample(10, true))
	expectStatus(t, w, http.StatusCreated)
	if res := decode[alerting.SampleResult](t, w); res.Data.Alert != nil {
		t.Error("count below threshold should not alert")
	}

	w = ts.do(http.MethodPost, "/api/crowd", models.RoleOperator, sample(60, true))
	expectStatus(t, w, http.StatusCreated)
	res := decode[alerting.SampleResult](t, w)
	if res.Data.Alert == nil || res.Data.Alert.Type != models.AlertHighCrowd {
		t.Fatalf("alert = %+v", res.Data.Alert)
	}

	bad := sample(5, false)
	bad["prediction"] = []float64{1, 2}
	w = ts.do(http.MethodPost, "/api/crowd", models.RoleOperator, bad)
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodGet, "/api/crowd/cam-1/history?limit=1", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	if hist := decode[[]models.CrowdSample](t, w); len(hist.Data) != 1 || hist.Data[0].Count != 60 {
		t.Errorf("history = %+v", hist.Data)
	}
	w = ts.do(http.MethodGet, "/api/crowd/cam-1/history?limit=5000", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodGet, "/api/crowd/latest", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	latest := decode[[]models.CrowdSample](t, w)
	if len(latest.Data) != 1 {
		t.Fatalf("latest = %+v", latest.Data)
	}

	w = ts.do(http.MethodDelete, "/api/crowd/"+latest.Data[0].ID, models.RoleOperator, nil)
	expectStatus(t, w, http.StatusForbidden)
	w = ts.do(http.MethodDelete, "/api/crowd/"+latest.Data[0].ID, models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusOK)

	w = ts.do(http.MethodGet, "/api/alerts?cameraId=cam-1", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	alerts := decode[[]models.Alert](t, w)
	if len(alerts.Data) != 1 || alerts.Meta.Pagination == nil || alerts.Meta.Pagination.Total != 1 {
		t.Errorf("alerts = %+v meta = %+v", alerts.Data, alerts.Meta)
	}
}

func TestAlerts_Lifecycle(t *testing.T) {
	ts := newTestServer(t)
	registerCamera(t, ts)

	w := ts.do(http.MethodPost, "/api/alerts", models.RoleOperator, map[string]string{
		"cameraId": "unknown", "type": "Other", "message": "x",
	})
	expectStatus(t, w, http.StatusNotFound)

	w = ts.do(http.MethodPost, "/api/alerts", models.RoleOperator, map[string]string{
		"cameraId": "cam-1", "type": "Bogus", "message": "x",
	})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodPost, "/api/alerts", models.RoleOperator, map[string]string{
		"cameraId": "cam-1", "type": "SecurityBreach", "message": "Fence down",
	})
	expectStatus(t, w, http.StatusCreated)
	created := decode[models.Alert](t, w)
	if created.Data.TriggeredBy != models.TriggeredByAdmin || created.Data.Status != models.AlertActive {
		t.Errorf("alert = %+v", created.Data)
	}
	statusPath := "/api/alerts/" + created.Data.ID + "/status"

	w = ts.do(http.MethodPut, statusPath, models.RoleOperator, map[string]string{"status": "resolved"})
	expectStatus(t, w, http.StatusOK)
	resolved := decode[models.Alert](t, w)
	if resolved.Data.ResolvedBy != "operatoruser" {
		t.Errorf("ResolvedBy = %q", resolved.Data.ResolvedBy)
	}

	w = ts.do(http.MethodPut, statusPath, models.RoleOperator, map[string]string{"status": "acknowledged"})
	expectStatus(t, w, http.StatusConflict)

	w = ts.do(http.MethodPut, statusPath, models.RoleOperator, map[string]string{"status": "active"})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodGet, "/api/alerts/stats", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)
	if stats := decode[store.AlertStats](t, w); stats.Data.Total != 1 {
		t.Errorf("stats = %+v", stats.Data)
	}

	w = ts.do(http.MethodGet, "/api/alerts?limit=500", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusBadRequest)
	w = ts.do(http.MethodGet, "/api/alerts?page=0", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusBadRequest)
	w = ts.do(http.MethodGet, "/api/alerts?from=yesterday", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestActions_Ownership(t *testing.T) {
	ts := newTestServer(t)
	registerCamera(t, ts)
	otherOperator := ts.addUser("otherop", models.RoleOperator)

	w := ts.do(http.MethodPost, "/api/actions", models.RoleOperator, map[string]string{
		"action": "Open east exit", "cameraId": "cam-1",
	})
	expectStatus(t, w, http.StatusCreated)
	created := decode[models.Action](t, w)
	if created.Data.PerformedBy != ts.userIDs[models.RoleOperator] || created.Data.Status != models.ActionCompleted {
		t.Errorf("action = %+v", created.Data)
	}
	path := "/api/actions/" + created.Data.ID

	w = ts.doToken(http.MethodPut, path, otherOperator, map[string]int{"effectivenessRating": 4})
	expectStatus(t, w, http.StatusForbidden)

	w = ts.do(http.MethodPut, path, models.RoleOperator, map[string]int{"effectivenessRating": 9})
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodPut, path, models.RoleOperator, map[string]int{"effectivenessRating": 4})
	expectStatus(t, w, http.StatusOK)

	w = ts.do(http.MethodGet, "/api/actions/stats", models.RoleViewer, nil)
	expectStatus(t, w, http.StatusOK)

	w = ts.doToken(http.MethodDelete, path, otherOperator, nil)
	expectStatus(t, w, http.StatusForbidden)
	w = ts.do(http.MethodDelete, path, models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusOK)
	w = ts.do(http.MethodGet, path, models.RoleViewer, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestUsers_Admin(t *testing.T) {
	ts := newTestServer(t)
	viewerID := ts.userIDs[models.RoleViewer]
	adminID := ts.userIDs[models.RoleAdmin]

	w := ts.do(http.MethodGet, "/api/users", models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusOK)
	users := decode[[]models.User](t, w)
	if len(users.Data) != 3 {
		t.Errorf("users = %d, want 3", len(users.Data))
	}
	for _, u := range users.Data {
		if u.PasswordHash != "" {
			t.Errorf("user %s leaked its password hash", u.Username)
		}
	}

	w = ts.do(http.MethodPut, "/api/users/"+viewerID, models.RoleAdmin, map[string]string{"role": "operator"})
	expectStatus(t, w, http.StatusOK)
	if u := decode[models.User](t, w); u.Data.Role != models.RoleOperator {
		t.Errorf("role = %q", u.Data.Role)
	}

	w = ts.do(http.MethodPut, "/api/users/"+adminID, models.RoleAdmin, map[string]string{"role": "viewer"})
	expectStatus(t, w, http.StatusBadRequest)
	w = ts.do(http.MethodDelete, "/api/users/"+adminID, models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(http.MethodDelete, "/api/users/"+viewerID, models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusOK)
	w = ts.do(http.MethodGet, "/api/users/"+viewerID, models.RoleAdmin, nil)
	expectStatus(t, w, http.StatusNotFound)
}

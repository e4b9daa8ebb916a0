package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"strcal/internal/calendar"
	"strcal/internal/colors"
	"strcal/internal/config"
	"strcal/internal/model"
	"strcal/internal/source"
)

type fakeCollector struct {
	calls    atomic.Int32
	bookings []model.Booking
	tasks    []model.VendorTask
	errs     []error
	from, to time.Time
}

func (f *fakeCollector) Collect(ctx context.Context, from, to time.Time) source.Collection {
	f.calls.Add(1)
	f.from, f.to = from, to
	return source.Collection{From: from, To: to, Bookings: f.bookings, Tasks: f.tasks, Errors: f.errs}
}

type ctxBookings struct{ bookings []model.Booking }

func (ctxBookings) Name() string { return "backend" }

func (s ctxBookings) Bookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.bookings, nil
}

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *fakeCollector) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Snapshot.OutputPath = t.TempDir() + "/calendar.png"
	if mutate != nil {
		mutate(cfg)
	}
	store, err := colors.NewStore(config.Validator(), []model.ColorAssignment{
		{ID: "sea", Category: model.CategoryProperty, Name: "Sea View", Color: "#0EA5E9"},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	fc := &fakeCollector{
		bookings: []model.Booking{{
			ID:           "b1",
			PropertyID:   "sea",
			PropertyName: "Sea View",
			GuestName:    "Jane Doe",
			CheckIn:      time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
			CheckOut:     time.Date(2025, 3, 12, 11, 0, 0, 0, time.UTC),
			Channel:      model.ChannelAirbnb,
			Status:       model.StatusConfirmed,
		}},
		tasks: []model.VendorTask{{
			ID:            "t1",
			PropertyID:    "sea",
			Type:          model.TaskCleaning,
			VendorName:    "Maria",
			ScheduledTime: time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC),
			Duration:      120,
			Status:        model.TaskScheduled,
		}},
	}
	s := NewServer(cfg, fc, store, false)
	s.now = func() time.Time { return testNow }
	return s, fc
}

func do(s *Server, method, target string, body string, setup func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func withBasicAuth(cfg *config.Config) {
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
}

func TestHealthIsOpen(t *testing.T) {
	s, _ := newTestServer(t, withBasicAuth)
	rec := do(s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("expected open health check, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, withBasicAuth)

	rec := do(s, http.MethodGet, "/api/colors", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("WWW-Authenticate"), `realm="strcal"`) {
		t.Fatalf("expected basic challenge, got %q", rec.Header().Get("WWW-Authenticate"))
	}

	rec = do(s, http.MethodGet, "/api/colors", "", func(r *http.Request) { r.SetBasicAuth("admin", "wrong") })
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	rec = do(s, http.MethodGet, "/api/colors", "", func(r *http.Request) { r.SetBasicAuth("admin", "secret") })
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) { cfg.JWTSecret = "s3cret" })

	sign := func(secret string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "dashboard",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		str, err := tok.SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}
		return str
	}

	rec := do(s, http.MethodGet, "/api/colors", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+sign("s3cret"))
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}

	rec = do(s, http.MethodGet, "/api/colors", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+sign("other"))
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with foreign token, got %d", rec.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	id := "6f1c1d7e-4c1b-4d8e-9f39-0d5b2d2f6a11"
	rec := do(s, http.MethodGet, "/health", "", func(r *http.Request) { r.Header.Set(requestIDHeader, id) })
	if got := rec.Header().Get(requestIDHeader); got != id {
		t.Fatalf("expected request id %s, got %s", id, got)
	}
	rec = do(s, http.MethodGet, "/health", "", func(r *http.Request) { r.Header.Set(requestIDHeader, "not-a-uuid") })
	if got := rec.Header().Get(requestIDHeader); got == "not-a-uuid" || got == "" {
		t.Fatalf("expected generated request id, got %q", got)
	}
}

func TestMonthView(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/calendar/month?month=2025-03", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Grid     calendar.MonthGrid `json:"grid"`
		Colors   colorIndex         `json:"colors"`
		Warnings []any              `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// March 2025 starts on a Saturday: Feb 23 .. Apr 5 with Sunday weeks.
	if len(resp.Grid.Weeks) != 6 {
		t.Fatalf("expected 6 weeks, got %d", len(resp.Grid.Weeks))
	}
	got, ok := resp.Colors.Bookings["b1"]
	if !ok {
		t.Fatalf("expected colors for b1, got %v", resp.Colors.Bookings)
	}
	if got.Property != "#0EA5E9" || got.Channel != calendar.ChannelColors[string(model.ChannelAirbnb)] {
		t.Fatalf("unexpected booking colors %+v", got)
	}
	if len(resp.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", resp.Warnings)
	}
}

func TestDayViewReportsDegenerateBooking(t *testing.T) {
	s, fc := newTestServer(t, nil)
	fc.bookings = append(fc.bookings, model.Booking{
		ID:         "bad",
		PropertyID: "sea",
		CheckIn:    time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2025, 3, 11, 11, 0, 0, 0, time.UTC),
	})

	rec := do(s, http.MethodGet, "/api/calendar/day?date=2025-03-12", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Grid     calendar.DayGrid       `json:"grid"`
		Colors   colorIndex             `json:"colors"`
		Warnings []calendar.DataWarning `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Grid.CheckOuts) != 1 || resp.Grid.CheckOuts[0].ID != "b1" {
		t.Fatalf("expected b1 checking out, got %+v", resp.Grid.CheckOuts)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].EntityID != "bad" {
		t.Fatalf("expected one warning for bad, got %+v", resp.Warnings)
	}
	if resp.Colors.Tasks["t1"] != calendar.TaskTypeColors[string(model.TaskCleaning)] {
		t.Fatalf("expected cleaning color for t1, got %q", resp.Colors.Tasks["t1"])
	}
}

func TestBadDateParam(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{"/api/calendar/day?date=12-03-2025", "/api/calendar/month?month=2025/03"} {
		rec := do(s, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestOccupancy(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/occupancy?month=2025-03", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp occupancyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Mar 10, 11 and 12 (checkout day counts) out of 31.
	if resp.Overall.OccupiedDays != 3 || resp.Overall.TotalDays != 31 || resp.Percent != 10 {
		t.Fatalf("unexpected occupancy %+v", resp.Overall)
	}
	if len(resp.Properties) != 1 || resp.Properties[0].PropertyID != "sea" {
		t.Fatalf("unexpected per-property occupancy %+v", resp.Properties)
	}
}

func TestCollectionCachedWithinTTL(t *testing.T) {
	s, fc := newTestServer(t, nil)

	do(s, http.MethodGet, "/api/calendar/month?month=2025-03", "", nil)
	do(s, http.MethodGet, "/api/calendar/month?month=2025-03", "", nil)
	if n := fc.calls.Load(); n != 1 {
		t.Fatalf("expected 1 collect within TTL, got %d", n)
	}

	s.now = func() time.Time { return testNow.Add(collectionTTL + time.Second) }
	do(s, http.MethodGet, "/api/calendar/month?month=2025-03", "", nil)
	if n := fc.calls.Load(); n != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", n)
	}

	rec := do(s, http.MethodPost, "/api/refresh", "", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	do(s, http.MethodGet, "/api/calendar/month?month=2025-03", "", nil)
	if n := fc.calls.Load(); n != 3 {
		t.Fatalf("expected refetch after refresh, got %d calls", n)
	}
}

func TestFailedCollectionIsNotCached(t *testing.T) {
	s, fc := newTestServer(t, nil)
	fc.errs = []error{errors.New("backend: connection refused")}

	w := calendar.WindowFor(calendar.ViewMonth, testNow, time.Sunday)
	col, _ := s.Collection(context.Background(), w)
	if len(col.Errors) != 1 {
		t.Fatalf("expected source error passed through, got %v", col.Errors)
	}

	fc.errs = nil
	col, _ = s.Collection(context.Background(), w)
	if n := fc.calls.Load(); n != 2 {
		t.Fatalf("expected refetch after a failed collection, got %d calls", n)
	}
	if len(col.Errors) != 0 || len(col.Bookings) != 1 {
		t.Fatalf("expected healthy collection, got %d bookings %v", len(col.Bookings), col.Errors)
	}

	s.Collection(context.Background(), w)
	if n := fc.calls.Load(); n != 2 {
		t.Fatalf("expected healthy collection cached, got %d calls", n)
	}
}

func TestCancelledRequestIsNotCached(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := colors.NewStore(config.Validator(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	b := model.Booking{
		ID:       "b1",
		CheckIn:  time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 3, 12, 11, 0, 0, 0, time.UTC),
	}
	s := NewServer(cfg, source.NewCollector().AddBookings(ctxBookings{bookings: []model.Booking{b}}), store, false)
	s.now = func() time.Time { return testNow }
	w := calendar.WindowFor(calendar.ViewMonth, testNow, time.Sunday)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	col, _ := s.Collection(ctx, w)
	if len(col.Bookings) != 0 || len(col.Errors) != 1 {
		t.Fatalf("expected an empty collection with one error, got %d bookings %v", len(col.Bookings), col.Errors)
	}

	col, _ = s.Collection(context.Background(), w)
	if len(col.Bookings) != 1 || len(col.Errors) != 0 {
		t.Fatalf("expected next request to fetch again, got %d bookings %v", len(col.Bookings), col.Errors)
	}
}

func TestYearViewCollectsPaddedCells(t *testing.T) {
	s, fc := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/calendar/year?year=2025", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// January 2025 opens on Sunday Dec 29; December closes on Saturday Jan 3.
	if !fc.from.Equal(time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected collection from Dec 29 2024, got %v", fc.from)
	}
	if !calendar.SameDay(fc.to, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected collection through Jan 3 2026, got %v", fc.to)
	}
}

func TestGCalCallbackRegistersSource(t *testing.T) {
	s, fc := newTestServer(t, func(cfg *config.Config) {
		cfg.GoogleCalendar = config.GoogleCalendarConfig{
			Enabled:      true,
			CalendarID:   "owner@example.com",
			PropertyID:   "sea",
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://127.0.0.1:8080/oauth2/callback",
		}
	})
	var exchanged string
	s.exchange = func(ctx context.Context, cfg config.GoogleCalendarConfig, code string) error {
		exchanged = code
		return nil
	}
	registered := 0
	s.OnGoogleAuthorized(func() error {
		registered++
		return nil
	})

	rec := do(s, http.MethodGet, "/api/gcal/auth", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var auth struct {
		AuthURL string `json:"auth_url"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(auth.AuthURL, "access_type=offline") {
		t.Fatalf("expected offline consent url, got %s", auth.AuthURL)
	}

	do(s, http.MethodGet, "/api/calendar/month?month=2025-03", "", nil)

	rec = do(s, http.MethodGet, "/oauth2/callback?state="+auth.State+"&code=abc", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if exchanged != "abc" || registered != 1 {
		t.Fatalf("expected code exchanged and source registered, got %q and %d", exchanged, registered)
	}

	do(s, http.MethodGet, "/api/calendar/month?month=2025-03", "", nil)
	if n := fc.calls.Load(); n != 2 {
		t.Fatalf("expected cache dropped after authorization, got %d calls", n)
	}

	rec = do(s, http.MethodGet, "/oauth2/callback?state="+auth.State+"&code=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected state to be single use, got %d", rec.Code)
	}
}

func TestPutAndDeleteColors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(s, http.MethodPut, "/api/colors", `[{"id":"Maria","category":"crew","name":"Maria","color":"#22C55E"}]`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := s.colors.Resolver().Resolve(model.CategoryCrew, "Maria"); got != "#22C55E" {
		t.Fatalf("expected crew color stored, got %s", got)
	}

	rec = do(s, http.MethodPut, "/api/colors", `[{"id":"x","category":"crew","color":"green"}]`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid color, got %d", rec.Code)
	}

	rec = do(s, http.MethodDelete, "/api/colors/crew/Maria", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(s, http.MethodDelete, "/api/colors/crew/Maria", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestCalendarPageRenders(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/calendar?month=2025-03", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`data-ready="true"`, "March 2025", "Sea View · Jane Doe", "Occupancy 10%"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}

func TestPreviewMissing(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/preview.png", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first capture, got %d", rec.Code)
	}
}

func TestGCalAuthDisabled(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/gcal/auth", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(s, http.MethodGet, "/oauth2/callback?state=nope&code=x", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", rec.Code)
	}
}

package handler

import (
	"database/sql"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/booking"
	"github.com/iliyamo/ticket-sales/internal/config"
	"github.com/iliyamo/ticket-sales/internal/middleware"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/testutil"
	"github.com/iliyamo/ticket-sales/internal/utils"
)

const testSecret = "test-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	e     *echo.Echo
	db    *sql.DB
	svc   *booking.Service
	clock *testClock
	admin string
	staff string
}

// newTestEnv wires every handler onto a fresh echo instance backed by an
// in-memory database.  Routes mirror the production router.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	clock := &testClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	days := repository.NewEventDayRepo(db)
	sessions := repository.NewSessionRepo(db)
	tickets := repository.NewTicketRepo(db)
	svc := booking.NewService(sessions, tickets,
		booking.WithClock(clock.Now),
		booking.WithPendingTTL(15*time.Minute),
	)
	t.Cleanup(svc.Wait)

	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4}
	e := echo.New()

	e.GET("/healthz", Health(db))

	b := NewBookingHandler(svc, nil)
	e.POST("/v1/bookings", b.Create)
	e.GET("/v1/bookings/:ref", b.Get)

	av := NewAvailabilityHandler(svc.Calculator(), nil)
	e.GET("/v1/sessions/:id/availability", av.Session)
	e.GET("/v1/availability", av.Batch)

	br := NewBrowseHandler(days, sessions, nil)
	e.GET("/v1/event-days", br.ListEventDays)
	e.GET("/v1/event-days/:id/sessions", br.ListSessions)

	a := NewAuthHandler(cfg, users, tokens, nil)
	e.POST("/v1/auth/register", a.Register)
	e.POST("/v1/auth/login", a.Login)
	e.POST("/v1/auth/refresh", a.Refresh)
	e.POST("/v1/auth/refresh-access", a.RefreshAccess)
	e.POST("/v1/auth/logout", a.Logout)
	e.GET("/v1/me", a.Me, middleware.JWTAuth(testSecret))

	ad := NewAdminHandler(days, sessions, tickets, svc, booking.NewReaper(svc, tokens, 0, nil), nil)
	g := e.Group("/v1/admin", middleware.JWTAuth(testSecret), middleware.RequireRole(model.RoleStaff, model.RoleAdmin))
	g.GET("/sessions", ad.ListSessions)
	g.GET("/sessions/:id/tickets", ad.SessionTickets)
	w := g.Group("", middleware.RequireRole(model.RoleAdmin))
	w.POST("/event-days", ad.CreateEventDay)
	w.POST("/sessions", ad.CreateSession)
	w.PATCH("/sessions/:id", ad.UpdateSession)
	w.DELETE("/sessions/:id", ad.DeleteSession)
	w.POST("/bookings/:ref/pay", ad.PayBooking)
	w.POST("/bookings/:ref/cancel", ad.CancelBooking)
	w.POST("/tickets/:id/cancel", ad.CancelTicket)
	w.POST("/reap", ad.Reap)

	adminTok, err := utils.NewAccessToken(testSecret, 1, model.RoleAdmin, 5)
	if err != nil {
		t.Fatal(err)
	}
	staffTok, err := utils.NewAccessToken(testSecret, 2, model.RoleStaff, 5)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{e: e, db: db, svc: svc, clock: clock, admin: adminTok.Token, staff: staffTok.Token}
}

func (env *testEnv) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func bookingBody(sessionID uint64, adult, student, child int) string {
	b, _ := json.Marshal(map[string]any{
		"session_id":       sessionID,
		"adult_quantity":   adult,
		"student_quantity": student,
		"child_quantity":   child,
		"purchaser_info":   map[string]string{"name": "Ada", "phone": "+15550001", "email": "ada@example.com"},
	})
	return string(b)
}

type rejection struct {
	Error        string          `json:"error"`
	Reasons      []string        `json:"reasons"`
	Availability *model.Snapshot `json:"availability"`
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateBookingThenGet(t *testing.T) {
	env := newTestEnv(t)
	sid := testutil.SeedSession(t, env.db, 5, 5, 5)

	rec := env.do(t, http.MethodPost, "/v1/bookings", bookingBody(sid, 2, 1, 0), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	created := decode[bookingView](t, rec)
	if created.BookingRef == "" || created.Status != "PENDING" {
		t.Fatalf("created = %+v", created)
	}
	if len(created.Tickets) != 2 {
		t.Fatalf("tickets = %d, want one per non-zero category", len(created.Tickets))
	}
	if created.ExpiresAt == nil || !created.ExpiresAt.Equal(env.clock.Now().Add(15*time.Minute)) {
		t.Fatalf("expires_at = %v", created.ExpiresAt)
	}

	rec = env.do(t, http.MethodGet, "/v1/bookings/"+created.BookingRef, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode[bookingView](t, rec)
	if got.Quantities != (model.Counts{Adult: 2, Student: 1}) {
		t.Fatalf("quantities = %+v", got.Quantities)
	}

	if rec := env.do(t, http.MethodGet, "/v1/bookings/nope", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown ref status = %d", rec.Code)
	}
}

func TestCreateBookingRejections(t *testing.T) {
	env := newTestEnv(t)
	sid := testutil.SeedSession(t, env.db, 2, 0, 1)
	closed := testutil.SeedSession(t, env.db, 5, 5, 5)
	if err := repository.NewSessionRepo(env.db).SetActive(t.Context(), closed, false); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		body    string
		status  int
		reasons []string
	}{
		{"unknown field", `{"session_id":1,"adult_quantity":1,"vip":true,"purchaser_info":{"name":"a","phone":"1"}}`, http.StatusBadRequest, nil},
		{"fractional quantity", `{"session_id":1,"adult_quantity":1.5,"purchaser_info":{"name":"a","phone":"1"}}`, http.StatusBadRequest, nil},
		{"trailing data", bookingBody(sid, 1, 0, 0) + `{}`, http.StatusBadRequest, nil},
		{"empty", bookingBody(sid, 0, 0, 0), http.StatusBadRequest, []string{"EmptyRequest"}},
		{"empty on unknown session", bookingBody(999, 0, 0, 0), http.StatusBadRequest, []string{"EmptyRequest"}},
		{"negative", bookingBody(sid, -1, 0, 0), http.StatusBadRequest, []string{"InvalidQuantity"}},
		{"zero session id", bookingBody(0, 1, 0, 0), http.StatusNotFound, []string{"SessionNotFound"}},
		{"omitted session id", `{"adult_quantity":1,"purchaser_info":{"name":"a","phone":"1"}}`, http.StatusNotFound, []string{"SessionNotFound"}},
		{"missing purchaser", `{"session_id":1,"adult_quantity":1}`, http.StatusBadRequest, nil},
		{"unknown session", bookingBody(999, 1, 0, 0), http.StatusNotFound, []string{"SessionNotFound"}},
		{"closed session", bookingBody(closed, 1, 0, 0), http.StatusConflict, []string{"SessionClosed"}},
		{"short categories", bookingBody(sid, 3, 1, 1), http.StatusConflict, []string{"InsufficientAdultCapacity", "InsufficientStudentCapacity"}},
		{"quantity near int64 max", bookingBody(sid, math.MaxInt64, 0, 0), http.StatusConflict, []string{"InsufficientAdultCapacity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/bookings", tt.body, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if tt.reasons == nil {
				return
			}
			got := decode[rejection](t, rec)
			if strings.Join(got.Reasons, ",") != strings.Join(tt.reasons, ",") {
				t.Fatalf("reasons = %v, want %v", got.Reasons, tt.reasons)
			}
		})
	}

	rec := env.do(t, http.MethodPost, "/v1/bookings", bookingBody(sid, 3, 0, 0), "")
	got := decode[rejection](t, rec)
	if got.Availability == nil || got.Availability.Remaining.Adult != 2 {
		t.Fatalf("availability = %+v", got.Availability)
	}
}

func TestAvailabilityEndpoints(t *testing.T) {
	env := newTestEnv(t)
	sid := testutil.SeedSession(t, env.db, 3, 2, 1)
	if rec := env.do(t, http.MethodPost, "/v1/bookings", bookingBody(sid, 1, 2, 0), ""); rec.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rec.Code, rec.Body)
	}

	rec := env.do(t, http.MethodGet, "/v1/sessions/"+itoa(sid)+"/availability", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decode[model.Snapshot](t, rec)
	if snap.Remaining != (model.Counts{Adult: 2, Student: 0, Child: 1}) {
		t.Fatalf("remaining = %+v", snap.Remaining)
	}

	if rec := env.do(t, http.MethodGet, "/v1/sessions/999/availability", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/sessions/abc/availability", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/availability?session_ids="+itoa(sid)+",999,"+itoa(sid), "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("batch status = %d", rec.Code)
	}
	batch := decode[struct {
		Sessions []model.Snapshot `json:"sessions"`
	}](t, rec)
	if len(batch.Sessions) != 2 || batch.Sessions[0].SessionID != sid || !batch.Sessions[1].Unknown {
		t.Fatalf("batch = %+v", batch.Sessions)
	}
	if rec := env.do(t, http.MethodGet, "/v1/availability?session_ids=x", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad list status = %d", rec.Code)
	}
}

func TestBrowse(t *testing.T) {
	env := newTestEnv(t)
	sid := testutil.SeedSession(t, env.db, 1, 0, 0)

	rec := env.do(t, http.MethodGet, "/v1/event-days", "", "")
	days := decode[struct {
		Items []PublicEventDay `json:"items"`
	}](t, rec)
	if len(days.Items) != 1 || days.Items[0].EventDate != "2026-06-01" {
		t.Fatalf("days = %+v", days.Items)
	}

	rec = env.do(t, http.MethodGet, "/v1/event-days/"+itoa(days.Items[0].ID)+"/sessions", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list := decode[struct {
		Items []PublicSession `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 || list.Items[0].ID != sid || list.Items[0].Remaining.Adult != 1 {
		t.Fatalf("sessions = %+v", list.Items)
	}
	if strings.Contains(rec.Body.String(), `"sold"`) {
		t.Fatalf("public view leaks sold counts: %s", rec.Body)
	}
	if rec := env.do(t, http.MethodGet, "/v1/event-days/999/sessions", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown day status = %d", rec.Code)
	}
}

func TestAdminRoles(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/v1/admin/sessions", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/admin/sessions", "", env.staff); rec.Code != http.StatusOK {
		t.Fatalf("staff read = %d", rec.Code)
	}
	body := `{"event_date":"2026-07-01","title":"Summer"}`
	if rec := env.do(t, http.MethodPost, "/v1/admin/event-days", body, env.staff); rec.Code != http.StatusForbidden {
		t.Fatalf("staff write = %d", rec.Code)
	}
}

func TestAdminSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/admin/event-days", `{"event_date":"2026-07-01","title":"Summer"}`, env.admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create day = %d %s", rec.Code, rec.Body)
	}
	day := decode[model.EventDay](t, rec)

	if rec := env.do(t, http.MethodPost, "/v1/admin/event-days", `{"event_date":"July","title":"x"}`, env.admin); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", rec.Code)
	}

	body := `{"event_day_id":` + itoa(day.ID) + `,"starts_at":"2026-07-01T18:00:00Z","limits":{"adult":2,"student":1}}`
	rec = env.do(t, http.MethodPost, "/v1/admin/sessions", body, env.admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session = %d %s", rec.Code, rec.Body)
	}
	s := decode[model.Session](t, rec)
	if !s.IsActive || s.Limits != (model.Counts{Adult: 2, Student: 1}) {
		t.Fatalf("session = %+v", s)
	}
	if rec := env.do(t, http.MethodPost, "/v1/admin/sessions", `{"event_day_id":999,"starts_at":"2026-07-01T18:00:00Z"}`, env.admin); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown day = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/v1/bookings", bookingBody(s.ID, 2, 0, 0), ""); rec.Code != http.StatusCreated {
		t.Fatalf("book = %d %s", rec.Code, rec.Body)
	}

	path := "/v1/admin/sessions/" + itoa(s.ID)
	if rec := env.do(t, http.MethodPatch, path, `{"limits":{"adult":1}}`, env.admin); rec.Code != http.StatusConflict {
		t.Fatalf("limit below sold = %d %s", rec.Code, rec.Body)
	}
	// A refused limit change leaves is_active alone too.
	if rec := env.do(t, http.MethodPatch, path, `{"limits":{"adult":1},"is_active":false}`, env.admin); rec.Code != http.StatusConflict {
		t.Fatalf("limit below sold with close = %d %s", rec.Code, rec.Body)
	}
	if cur, err := repository.NewSessionRepo(env.db).GetByID(t.Context(), s.ID); err != nil || !cur.IsActive || cur.Limits.Adult != 2 {
		t.Fatalf("after refused patch = %+v, %v", cur, err)
	}
	if rec := env.do(t, http.MethodPatch, "/v1/admin/sessions/999", `{"is_active":false}`, env.admin); rec.Code != http.StatusNotFound {
		t.Fatalf("patch unknown = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPatch, path, `{"limits":{"child":4},"is_active":false}`, env.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body)
	}
	s = decode[model.Session](t, rec)
	if s.IsActive || s.Limits != (model.Counts{Adult: 2, Student: 1, Child: 4}) {
		t.Fatalf("patched = %+v", s)
	}

	if rec := env.do(t, http.MethodDelete, path, "", env.admin); rec.Code != http.StatusConflict {
		t.Fatalf("delete with tickets = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/v1/admin/sessions/999", "", env.admin); rec.Code != http.StatusNotFound {
		t.Fatalf("delete unknown = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, path+"/tickets", "", env.staff)
	tickets := decode[struct {
		Items []model.Ticket `json:"items"`
	}](t, rec)
	if len(tickets.Items) != 1 {
		t.Fatalf("tickets = %+v", tickets.Items)
	}
}

func TestAdminBookingActions(t *testing.T) {
	env := newTestEnv(t)
	sid := testutil.SeedSession(t, env.db, 3, 3, 0)

	rec := env.do(t, http.MethodPost, "/v1/bookings", bookingBody(sid, 1, 1, 0), "")
	ref := decode[bookingView](t, rec).BookingRef

	rec = env.do(t, http.MethodPost, "/v1/admin/bookings/"+ref+"/pay", "", env.admin)
	if rec.Code != http.StatusOK || decode[bookingView](t, rec).Status != "ACTIVE" {
		t.Fatalf("pay = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodPost, "/v1/admin/bookings/nope/pay", "", env.admin); rec.Code != http.StatusNotFound {
		t.Fatalf("pay unknown = %d", rec.Code)
	}

	v := decode[bookingView](t, env.do(t, http.MethodGet, "/v1/bookings/"+ref, "", ""))
	rec = env.do(t, http.MethodPost, "/v1/admin/tickets/"+itoa(v.Tickets[0].ID)+"/cancel", "", env.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel ticket = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodPost, "/v1/admin/tickets/999/cancel", "", env.admin); rec.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown ticket = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/admin/bookings/"+ref+"/cancel", "", env.admin)
	if rec.Code != http.StatusOK || decode[bookingView](t, rec).Status != "CANCELLED" {
		t.Fatalf("cancel = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodPost, "/v1/admin/bookings/"+ref+"/pay", "", env.admin); rec.Code != http.StatusConflict {
		t.Fatalf("pay cancelled = %d", rec.Code)
	}

	snap := decode[model.Snapshot](t, env.do(t, http.MethodGet, "/v1/sessions/"+itoa(sid)+"/availability", "", ""))
	if snap.Sold != (model.Counts{}) {
		t.Fatalf("sold after cancel = %+v", snap.Sold)
	}
}

func TestAdminReap(t *testing.T) {
	env := newTestEnv(t)
	sid := testutil.SeedSession(t, env.db, 1, 0, 0)
	if rec := env.do(t, http.MethodPost, "/v1/bookings", bookingBody(sid, 1, 0, 0), ""); rec.Code != http.StatusCreated {
		t.Fatalf("book = %d", rec.Code)
	}
	env.clock.Advance(16 * time.Minute)

	rec := env.do(t, http.MethodPost, "/v1/admin/reap", "", env.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("reap = %d %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]int](t, rec)["expired"]; got != 1 {
		t.Fatalf("expired = %d, want 1", got)
	}
	if rec := env.do(t, http.MethodPost, "/v1/bookings", bookingBody(sid, 1, 0, 0), ""); rec.Code != http.StatusCreated {
		t.Fatalf("capacity not released: %d %s", rec.Code, rec.Body)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	creds := `{"email":"Staff@Example.com","password":"pw123456"}`

	rec := env.do(t, http.MethodPost, "/v1/auth/register", creds, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", rec.Code, rec.Body)
	}
	reg := decode[authResp](t, rec)
	if reg.User.Role != model.RoleStaff || reg.User.Email != "staff@example.com" {
		t.Fatalf("user = %+v", reg.User)
	}
	if rec := env.do(t, http.MethodPost, "/v1/auth/register", creds, ""); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/auth/login", `{"email":"staff@example.com","password":"wrong"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/login", creds, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body)
	}
	login := decode[authResp](t, rec)

	rec = env.do(t, http.MethodGet, "/v1/me", "", login.Access.Token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"STAFF"`) {
		t.Fatalf("me = %d %s", rec.Code, rec.Body)
	}

	refreshBody := `{"refresh_token":"` + login.Refresh.Token + `"}`
	if rec := env.do(t, http.MethodPost, "/v1/auth/refresh-access", refreshBody, ""); rec.Code != http.StatusOK {
		t.Fatalf("refresh-access = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", refreshBody, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d %s", rec.Code, rec.Body)
	}
	rotated := decode[authResp](t, rec)
	if rec := env.do(t, http.MethodPost, "/v1/auth/refresh", refreshBody, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh = %d", rec.Code)
	}

	logout := `{"refresh_token":"` + rotated.Refresh.Token + `"}`
	if rec := env.do(t, http.MethodPost, "/v1/auth/logout", logout, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/auth/logout", logout, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("second logout = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/auth/logout", "", login.Access.Token); rec.Code != http.StatusNoContent {
		t.Fatalf("bearer logout = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodPost, "/v1/auth/logout", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty logout = %d", rec.Code)
	}
}

func TestNewBookingViewStatus(t *testing.T) {
	tk := func(s model.TicketStatus) model.Ticket {
		return model.Ticket{BookingRef: "r", Category: model.CategoryAdult, Quantity: 1, Status: s}
	}
	tests := []struct {
		in   []model.Ticket
		want string
	}{
		{[]model.Ticket{tk(model.TicketPending), tk(model.TicketCancelled)}, "PENDING"},
		{[]model.Ticket{tk(model.TicketActive), tk(model.TicketPending)}, "ACTIVE"},
		{[]model.Ticket{tk(model.TicketCancelled)}, "CANCELLED"},
	}
	for _, tt := range tests {
		if got := newBookingView(tt.in).Status; got != tt.want {
			t.Errorf("status = %s, want %s", got, tt.want)
		}
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList(" 1, 2,,3 ")
	if err != nil || len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("ids = %v, err = %v", ids, err)
	}
	if _, err := parseIDList("1,0"); err == nil {
		t.Fatal("zero id accepted")
	}
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

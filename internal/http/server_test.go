package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"soldi/internal/auth"
	"soldi/internal/core"
	"soldi/internal/realtime"
	"soldi/internal/session"
	"soldi/internal/storage"
)

type fakeRepo struct {
	payments      map[int64]core.RecurringPayment
	notifications map[int64]core.Notification
	nextID        int64
	unreadCalls   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments:      make(map[int64]core.RecurringPayment),
		notifications: make(map[int64]core.Notification),
	}
}

func (f *fakeRepo) CreateRecurringPayment(_ context.Context, p core.RecurringPayment) (int64, error) {
	f.nextID++
	p.ID = f.nextID
	f.payments[p.ID] = p
	return p.ID, nil
}

func (f *fakeRepo) ListRecurringPayments(_ context.Context, userID int64) ([]core.RecurringPayment, error) {
	var out []core.RecurringPayment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetRecurringPaymentActive(_ context.Context, id, userID int64, active bool) error {
	p, ok := f.payments[id]
	if !ok || p.UserID != userID {
		return storage.ErrNotFound
	}
	p.Active = active
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) DeleteRecurringPayment(_ context.Context, id, userID int64) error {
	p, ok := f.payments[id]
	if !ok || p.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.payments, id)
	return nil
}

func (f *fakeRepo) ListNotifications(_ context.Context, userID int64, _ int) ([]core.Notification, error) {
	var out []core.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountUnreadNotifications(_ context.Context, userID int64) (int64, error) {
	f.unreadCalls++
	var count int64
	for _, n := range f.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) MarkNotificationRead(_ context.Context, id, userID int64) error {
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	n.Read = true
	f.notifications[id] = n
	return nil
}

func (f *fakeRepo) DeleteNotification(_ context.Context, id, userID int64) error {
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.notifications, id)
	return nil
}

type fakeUsers struct {
	users map[string]*core.User
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*core.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func newTestServer(t *testing.T) (*Server, *fakeRepo) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := &fakeUsers{users: map[string]*core.User{
		"emilio": {ID: 7, Username: "emilio", PasswordHash: string(hash)},
	}}

	repo := newFakeRepo()
	sessions := session.NewMemoryStore()
	authSvc := auth.NewService(users, sessions, "test-secret-at-least-16-bytes", time.Hour)
	srv := NewServer(":0", authSvc, repo, sessions, realtime.NewHub(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, repo
}

func doRequest(srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doRequest(srv, http.MethodPost, "/api/login", "", loginRequest{Username: "emilio", Password: "hunter22"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	token := login(t, srv)
	if token == "" {
		t.Fatalf("expected a token")
	}

	rec := doRequest(srv, http.MethodPost, "/api/login", "", loginRequest{Username: "emilio", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/notifications", "/api/recurring-payments"} {
		rec := doRequest(srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, rec.Code)
		}
		rec = doRequest(srv, http.MethodGet, path, "garbage-token", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s with garbage token: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	srv, _ := newTestServer(t)
	token := login(t, srv)

	if rec := doRequest(srv, http.MethodGet, "/api/notifications", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("before logout: expected 200, got %d", rec.Code)
	}

	if rec := doRequest(srv, http.MethodPost, "/api/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	if rec := doRequest(srv, http.MethodGet, "/api/notifications", token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", rec.Code)
	}
}

func TestLogoutAllRevokesEveryToken(t *testing.T) {
	srv, _ := newTestServer(t)
	t1 := login(t, srv)
	t2 := login(t, srv)

	rec := doRequest(srv, http.MethodPost, "/api/logout-all", t1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout-all: expected 200, got %d", rec.Code)
	}
	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["revoked"] != 2 {
		t.Fatalf("expected 2 revoked, got %d", resp["revoked"])
	}

	for _, token := range []string{t1, t2} {
		if rec := doRequest(srv, http.MethodGet, "/api/notifications", token, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("after logout-all: expected 401, got %d", rec.Code)
		}
	}
}

func TestRecurringPaymentCRUD(t *testing.T) {
	srv, repo := newTestServer(t)
	token := login(t, srv)

	rec := doRequest(srv, http.MethodPost, "/api/recurring-payments", token, createPaymentRequest{
		Name:       "Netflix",
		Amount:     "120,00",
		DayOfMonth: 15,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var created paymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.AmountCents != 12000 || !created.Active {
		t.Fatalf("unexpected payment: %+v", created)
	}

	rec = doRequest(srv, http.MethodGet, "/api/recurring-payments", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var items []paymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(items))
	}

	active := false
	rec = doRequest(srv, http.MethodPatch, fmt.Sprintf("/api/recurring-payments/%d", created.ID), token, updatePaymentRequest{Active: &active})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update: expected 204, got %d", rec.Code)
	}
	if repo.payments[created.ID].Active {
		t.Fatalf("payment should be paused")
	}

	rec = doRequest(srv, http.MethodDelete, fmt.Sprintf("/api/recurring-payments/%d", created.ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = doRequest(srv, http.MethodDelete, fmt.Sprintf("/api/recurring-payments/%d", created.ID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double delete: expected 404, got %d", rec.Code)
	}
}

func TestCreateRecurringPaymentValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	token := login(t, srv)

	cases := []struct {
		name string
		req  createPaymentRequest
	}{
		{"bad amount", createPaymentRequest{Name: "x", Amount: "abc", DayOfMonth: 1}},
		{"zero amount", createPaymentRequest{Name: "x", Amount: "0", DayOfMonth: 1}},
		{"day too high", createPaymentRequest{Name: "x", Amount: "1,00", DayOfMonth: 32}},
		{"day too low", createPaymentRequest{Name: "x", Amount: "1,00", DayOfMonth: 0}},
		{"empty name", createPaymentRequest{Name: "  ", Amount: "1,00", DayOfMonth: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/api/recurring-payments", token, tc.req)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rec.Code)
			}
		})
	}
}

func TestUnreadCountCaching(t *testing.T) {
	srv, repo := newTestServer(t)
	token := login(t, srv)

	repo.notifications[1] = core.Notification{ID: 1, UserID: 7, Title: "t", Message: "m", Severity: core.SeverityInfo}

	for i := 0; i < 3; i++ {
		rec := doRequest(srv, http.MethodGet, "/api/notifications/unread-count", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("unread-count: expected 200, got %d", rec.Code)
		}
	}
	if repo.unreadCalls != 1 {
		t.Fatalf("expected 1 repo hit with warm cache, got %d", repo.unreadCalls)
	}

	// Mutations invalidate the cached count
	if rec := doRequest(srv, http.MethodPost, "/api/notifications/1/read", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("mark read: expected 204, got %d", rec.Code)
	}
	rec := doRequest(srv, http.MethodGet, "/api/notifications/unread-count", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unread-count: expected 200, got %d", rec.Code)
	}
	if repo.unreadCalls != 2 {
		t.Fatalf("expected cache invalidation after mark-read, got %d repo hits", repo.unreadCalls)
	}
	var resp map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["unread"] != 0 {
		t.Fatalf("expected 0 unread after mark-read, got %d", resp["unread"])
	}
}

func TestSessionStats(t *testing.T) {
	srv, _ := newTestServer(t)
	token := login(t, srv)

	rec := doRequest(srv, http.MethodGet, "/api/admin/sessions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["active_sessions"] != 1 {
		t.Fatalf("expected 1 active session, got %d", resp["active_sessions"])
	}
	if resp["online_users"] != 0 {
		t.Fatalf("expected 0 online users, got %d", resp["online_users"])
	}
}

func TestLoginRateLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	last := 0
	for i := 0; i < loginRequestsPerMinute+1; i++ {
		rec := doRequest(srv, http.MethodPost, "/api/login", "", loginRequest{Username: "emilio", Password: "wrong"})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d attempts, got %d", loginRequestsPerMinute+1, last)
	}
}

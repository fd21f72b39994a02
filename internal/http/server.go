package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"soldi/internal/auth"
	"soldi/internal/cache"
	"soldi/internal/core"
	"soldi/internal/realtime"
	"soldi/internal/session"
)

// Repository is the server's view of persistent storage.
type Repository interface {
	CreateRecurringPayment(ctx context.Context, p core.RecurringPayment) (int64, error)
	ListRecurringPayments(ctx context.Context, userID int64) ([]core.RecurringPayment, error)
	SetRecurringPaymentActive(ctx context.Context, id, userID int64, active bool) error
	DeleteRecurringPayment(ctx context.Context, id, userID int64) error

	ListNotifications(ctx context.Context, userID int64, limit int) ([]core.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int64, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) error
	DeleteNotification(ctx context.Context, id, userID int64) error
}

type Server struct {
	http.Server
	auth        *auth.Service
	repo        Repository
	sessions    session.Store
	hub         *realtime.Hub
	rateLimiter *rateLimiter

	// Unread badge counts are read on every page load; cache them briefly
	// and invalidate on any notification mutation.
	unreadCache *cache.LRUCache[int64]

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server. When a
// cache manager is given, the server's caches join its cleanup cycle.
func NewServer(addr string, authSvc *auth.Service, repo Repository, sessions session.Store, hub *realtime.Hub, caches *cache.Manager) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		auth:        authSvc,
		repo:        repo,
		sessions:    sessions,
		hub:         hub,
		rateLimiter: newRateLimiter(),
		unreadCache: cache.NewLRUCache[int64](500, 30*time.Second),
	}
	if caches != nil {
		caches.Register(s.unreadCache)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/login", s.withRequestLog(s.handleLogin))
	mux.HandleFunc("POST /api/logout", s.withRequestLog(s.requireAuth(s.handleLogout)))
	mux.HandleFunc("POST /api/logout-all", s.withRequestLog(s.requireAuth(s.handleLogoutAll)))
	mux.HandleFunc("GET /api/admin/sessions", s.withRequestLog(s.requireAuth(s.handleSessionStats)))

	mux.HandleFunc("GET /api/notifications", s.withRequestLog(s.requireAuth(s.handleListNotifications)))
	mux.HandleFunc("GET /api/notifications/unread-count", s.withRequestLog(s.requireAuth(s.handleUnreadCount)))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.withRequestLog(s.requireAuth(s.handleMarkNotificationRead)))
	mux.HandleFunc("DELETE /api/notifications/{id}", s.withRequestLog(s.requireAuth(s.handleDeleteNotification)))
	mux.HandleFunc("GET /api/notifications/stream", s.requireAuth(s.handleNotificationStream))

	mux.HandleFunc("POST /api/recurring-payments", s.withRequestLog(s.requireAuth(s.handleCreateRecurringPayment)))
	mux.HandleFunc("GET /api/recurring-payments", s.withRequestLog(s.requireAuth(s.handleListRecurringPayments)))
	mux.HandleFunc("PATCH /api/recurring-payments/{id}", s.withRequestLog(s.requireAuth(s.handleUpdateRecurringPayment)))
	mux.HandleFunc("DELETE /api/recurring-payments/{id}", s.withRequestLog(s.requireAuth(s.handleDeleteRecurringPayment)))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
	tokenKey     contextKey = "token"
)

// withRequestLog tags the request with an ID and logs start and completion.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP(r))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// requireAuth admits only requests carrying a bearer token that passes both
// the signature check and the session store check.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.auth.Verify(r.Context(), token)
		if err != nil {
			slog.DebugContext(r.Context(), "Token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid or revoked token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, tokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

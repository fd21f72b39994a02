package http

import (
	"errors"
	"log/slog"
	"net/http"

	"soldi/internal/auth"
	"soldi/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.rateLimiter.allow(ip) {
		slog.WarnContext(r.Context(), "Login rate limit exceeded", "client_ip", ip)
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = sanitizeInput(req.Username)

	token, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, session.ErrStoreUnavailable):
			slog.ErrorContext(r.Context(), "Session store unavailable during login", "error", err)
			writeError(w, http.StatusServiceUnavailable, "login temporarily unavailable")
		default:
			slog.ErrorContext(r.Context(), "Login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), requestToken(r)); err != nil {
		slog.ErrorContext(r.Context(), "Logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	revoked, err := s.auth.LogoutAll(r.Context(), requestUserID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Logout-all failed", "error", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": revoked})
}

// handleSessionStats reports live session and presence counts.
func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	active, err := s.sessions.CountActive(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to count sessions", "error", err)
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	online := 0
	if s.hub != nil {
		online = s.hub.OnlineCount()
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"active_sessions": active,
		"online_users":    online,
	})
}

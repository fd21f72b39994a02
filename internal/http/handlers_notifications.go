package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"soldi/internal/core"
	"soldi/internal/storage"
)

const defaultNotificationLimit = 50

type notificationResponse struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Read      bool      `json:"read"`
	RelatedID *int64    `json:"related_id,omitempty"`
	ActionURL string    `json:"action_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponse(n core.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Category:  n.Category,
		Title:     n.Title,
		Message:   n.Message,
		Severity:  string(n.Severity),
		Read:      n.Read,
		RelatedID: n.RelatedID,
		ActionURL: n.ActionURL,
		CreatedAt: n.CreatedAt,
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	items, err := s.repo.ListNotifications(r.Context(), userID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list notifications", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	key := unreadCacheKey(userID)

	if count, ok := s.unreadCache.Get(key); ok {
		writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
		return
	}

	count, err := s.repo.CountUnreadNotifications(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to count unread notifications", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}

	s.unreadCache.Set(key, count)
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.repo.MarkNotificationRead(r.Context(), id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to mark notification read", "notification_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}

	s.unreadCache.Delete(unreadCacheKey(userID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.repo.DeleteNotification(r.Context(), id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete notification", "notification_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}

	s.unreadCache.Delete(unreadCacheKey(userID))
	w.WriteHeader(http.StatusNoContent)
}

// handleNotificationStream is the live push channel: an SSE stream fed by
// the realtime hub. While the stream is open the user counts as online.
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "push channel disabled")
		return
	}

	userID := requestUserID(r)
	events, cancel := s.hub.Subscribe(userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.InfoContext(r.Context(), "Notification stream opened", "user_id", userID)

	// Periodic comments keep proxies from closing an idle stream
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.InfoContext(r.Context(), "Notification stream closed", "user_id", userID)
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()

			// A push means a new unread notification exists
			s.unreadCache.Delete(unreadCacheKey(userID))
		}
	}
}

func unreadCacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

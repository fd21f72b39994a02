package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"soldi/internal/core"
	"soldi/internal/storage"
)

type createPaymentRequest struct {
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	DayOfMonth int    `json:"day_of_month"`
	CategoryID *int64 `json:"category_id,omitempty"`
	AccountID  *int64 `json:"account_id,omitempty"`
}

type paymentResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Amount         string     `json:"amount"`
	AmountCents    int64      `json:"amount_cents"`
	DayOfMonth     int        `json:"day_of_month"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	AccountID      *int64     `json:"account_id,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}

func toPaymentResponse(p core.RecurringPayment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		Name:           p.Name,
		Amount:         p.Amount.Format(),
		AmountCents:    p.Amount.Cents,
		DayOfMonth:     p.DayOfMonth,
		CategoryID:     p.CategoryID,
		AccountID:      p.AccountID,
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		LastNotifiedAt: p.LastNotifiedAt,
	}
}

func (s *Server) handleCreateRecurringPayment(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req createPaymentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	p := core.RecurringPayment{
		UserID:     userID,
		Name:       sanitizeInput(req.Name),
		Amount:     core.Money{Cents: cents},
		DayOfMonth: req.DayOfMonth,
		CategoryID: req.CategoryID,
		AccountID:  req.AccountID,
		Active:     true,
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := s.repo.CreateRecurringPayment(r.Context(), p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create recurring payment", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create recurring payment")
		return
	}

	p.ID = id
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (s *Server) handleListRecurringPayments(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	items, err := s.repo.ListRecurringPayments(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list recurring payments", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list recurring payments")
		return
	}

	out := make([]paymentResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type updatePaymentRequest struct {
	Active *bool `json:"active"`
}

// handleUpdateRecurringPayment toggles the active flag. Pausing a payment
// stops its reminders without losing the configuration.
func (s *Server) handleUpdateRecurringPayment(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	var req updatePaymentRequest
	if err := readJSON(r, &req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "invalid request body: active flag required")
		return
	}

	if err := s.repo.SetRecurringPaymentActive(r.Context(), id, userID, *req.Active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recurring payment not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update recurring payment", "payment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update recurring payment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecurringPayment(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	if err := s.repo.DeleteRecurringPayment(r.Context(), id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recurring payment not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete recurring payment", "payment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete recurring payment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package core

import (
	"errors"
	"strings"
	"time"
)

// Severity levels for notifications, mirrored by the UI badge colors.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// CategoryPayment tags notifications produced by the recurring payment
// reminder sweep. Other producers use their own category tags.
const CategoryPayment = "Payment"

type (
	Severity string

	Money struct {
		Cents int64
	}

	// User is an account holder. Password verification happens in the auth
	// service; core only carries the stored hash.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	// RecurringPayment is a reminder template: once per calendar day, on the
	// configured day of the month, the notifier emits one reminder for it.
	// LastNotifiedAt is stamped by the notifier and by nobody else.
	RecurringPayment struct {
		ID             int64
		UserID         int64
		Name           string
		Amount         Money
		DayOfMonth     int
		CategoryID     *int64
		AccountID      *int64
		Active         bool
		CreatedAt      time.Time
		LastNotifiedAt *time.Time
	}

	// Notification is immutable once created except for the Read flag.
	Notification struct {
		ID        int64
		UserID    int64
		Category  string
		Title     string
		Message   string
		Severity  Severity
		Read      bool
		RelatedID *int64
		ActionURL string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrEmptyName         = errors.New("empty payment name")
	ErrEmptyTitle        = errors.New("empty notification title")
	ErrEmptyMessage      = errors.New("empty notification message")
	ErrInvalidSeverity   = errors.New("invalid severity")
)

func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return nil
	default:
		return ErrInvalidSeverity
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p RecurringPayment) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if len(p.Name) > 200 {
		return errors.New("payment name too long (max 200 characters)")
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}
	return nil
}

// NotifiedOn reports whether the payment was already reminded on the
// calendar date of t. Date-only precision: the stored timestamp's time of
// day is irrelevant.
func (p RecurringPayment) NotifiedOn(t time.Time) bool {
	if p.LastNotifiedAt == nil {
		return false
	}
	return SameDate(*p.LastNotifiedAt, t)
}

func (n Notification) Validate() error {
	if len(strings.TrimSpace(n.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(n.Title) > 200 {
		return errors.New("notification title too long (max 200 characters)")
	}
	if len(strings.TrimSpace(n.Message)) == 0 {
		return ErrEmptyMessage
	}
	if err := n.Severity.Validate(); err != nil {
		return err
	}
	return nil
}

// SameDate compares two instants at calendar-date precision in UTC.
func SameDate(a, b time.Time) bool {
	return a.UTC().Format("2006-01-02") == b.UTC().Format("2006-01-02")
}

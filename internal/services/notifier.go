package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"soldi/internal/core"
)

// PaymentSource is the notifier's view of the recurring payment repository.
type PaymentSource interface {
	// ListDuePayments returns active payments with day_of_month == day,
	// across all users.
	ListDuePayments(ctx context.Context, day int) ([]core.RecurringPayment, error)

	// MarkNotified stamps last_notified_at and reports whether the call
	// claimed today's reminder. The check and the write are one atomic
	// conditional update.
	MarkNotified(ctx context.Context, id int64, now time.Time) (bool, error)
}

// NotificationDispatcher creates and delivers a notification.
type NotificationDispatcher interface {
	CreateAndDispatch(ctx context.Context, userID int64, category, title, message string, severity core.Severity, relatedID *int64, actionURL string) (core.Notification, error)
}

// ReminderNotifierConfig holds configuration for the reminder notifier
type ReminderNotifierConfig struct {
	// Interval is how long to sleep between scan passes (default: 1h)
	Interval time.Duration
}

// DefaultReminderNotifierConfig returns sensible defaults
func DefaultReminderNotifierConfig() ReminderNotifierConfig {
	return ReminderNotifierConfig{
		Interval: time.Hour,
	}
}

// ReminderNotifier is the recurring payment reminder loop: once per
// interval it scans for payments due on today's day of month and emits at
// most one reminder per payment per calendar day. The claim is persisted
// before dispatch, so a restart mid-pass never re-sends what was already
// claimed that day.
type ReminderNotifier struct {
	payments   PaymentSource
	dispatcher NotificationDispatcher
	config     ReminderNotifierConfig
	now        func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReminderNotifier creates a new reminder notifier
func NewReminderNotifier(payments PaymentSource, dispatcher NotificationDispatcher, config ReminderNotifierConfig) *ReminderNotifier {
	if config.Interval <= 0 {
		config.Interval = DefaultReminderNotifierConfig().Interval
	}
	return &ReminderNotifier{
		payments:   payments,
		dispatcher: dispatcher,
		config:     config,
		now:        time.Now,
	}
}

// Start begins the reminder loop. Returns an error if already running.
func (n *ReminderNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("reminder notifier is already running")
	}
	n.running = true
	n.stopCh = make(chan struct{})
	n.doneCh = make(chan struct{})
	n.mu.Unlock()

	go n.runLoop(ctx)

	slog.InfoContext(ctx, "Reminder notifier started", "interval", n.config.Interval)
	return nil
}

// Stop gracefully stops the notifier. An in-flight pass is allowed to
// finish; Stop waits for it until ctx expires.
func (n *ReminderNotifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	close(n.stopCh)

	select {
	case <-n.doneCh:
		slog.InfoContext(ctx, "Reminder notifier stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder notifier stop timed out")
		return ctx.Err()
	}

	n.mu.Lock()
	n.running = false
	n.mu.Unlock()

	return nil
}

// IsRunning returns whether the notifier loop is currently running
func (n *ReminderNotifier) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// runLoop is the main scan loop. It only exits on cancellation; a failed
// pass is logged and the loop sleeps until the next tick as usual.
func (n *ReminderNotifier) runLoop(ctx context.Context) {
	defer close(n.doneCh)

	ticker := time.NewTicker(n.config.Interval)
	defer ticker.Stop()

	// Scan immediately on startup
	n.safePass(ctx)

	for {
		select {
		case <-n.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.safePass(ctx)
		}
	}
}

// safePass runs one pass and absorbs its error. Failures are isolated per
// pass: the next tick retries whatever was not claimed.
func (n *ReminderNotifier) safePass(ctx context.Context) {
	if _, err := n.RunPass(ctx, n.now()); err != nil {
		slog.ErrorContext(ctx, "Reminder pass failed", "error", err)
	}
}

// RunPass executes one scan-and-notify pass for the UTC calendar date of
// now and returns the number of reminders sent. Exported so the worker can
// run a startup pass and tests can drive the clock.
//
// Days 29-31 never match in months that lack them, so such payments skip
// those months entirely.
func (n *ReminderNotifier) RunPass(ctx context.Context, now time.Time) (int, error) {
	// The last-notified stamp and its date comparison are UTC, so the
	// due-day match must read the same clock. A local Day() here would
	// let two passes straddling UTC midnight claim the same payment
	// twice on one calendar day.
	now = now.UTC()
	day := now.Day()

	due, err := n.payments.ListDuePayments(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("list due payments: %w", err)
	}

	slog.DebugContext(ctx, "Scanning recurring payments",
		"day_of_month", day,
		"candidates", len(due))

	processed := 0
	for _, p := range due {
		// Cheap skip on the row we already fetched; the claim below
		// re-checks atomically.
		if p.NotifiedOn(now) {
			continue
		}

		claimed, err := n.payments.MarkNotified(ctx, p.ID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to claim reminder",
				"payment_id", p.ID,
				"error", err)
			continue
		}
		if !claimed {
			// Another pass or instance got here first today
			continue
		}

		title := fmt.Sprintf("Upcoming payment: %s", p.Name)
		message := fmt.Sprintf("%s (%s) is due today, day %d of the month.", p.Name, p.Amount.Format(), p.DayOfMonth)
		relatedID := p.ID

		_, err = n.dispatcher.CreateAndDispatch(ctx, p.UserID, core.CategoryPayment, title, message, core.SeverityInfo, &relatedID, "/recurring-payments")
		if err != nil {
			// The claim is already stamped, so this payment will not be
			// retried today: at-most-once, not exactly-once.
			slog.ErrorContext(ctx, "Failed to dispatch reminder",
				"payment_id", p.ID,
				"user_id", p.UserID,
				"payment_name", p.Name,
				"error", err)
			continue
		}

		processed++
	}

	if processed > 0 {
		slog.InfoContext(ctx, "Reminder pass complete",
			"day_of_month", day,
			"reminders_sent", processed,
			"candidates", len(due))
	}

	return processed, nil
}

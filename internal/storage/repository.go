package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"soldi/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is the TEXT format timestamps are stored in. It sorts
// lexicographically and works with sqlite's date() function, which the
// last-notified claim relies on.
const timeLayout = "2006-01-02 15:04:05"

var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", id, "username", username)
	return id, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username)

	var u core.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	u.CreatedAt = parseStoredTime(createdAt)

	return &u, nil
}

// --- recurring payments ---

func (r *SQLiteRepository) CreateRecurringPayment(ctx context.Context, p core.RecurringPayment) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("validate recurring payment: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_payments (user_id, name, amount_cents, day_of_month, category_id, account_id, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.Amount.Cents, p.DayOfMonth, p.CategoryID, p.AccountID, boolToInt(p.Active))
	if err != nil {
		return 0, fmt.Errorf("create recurring payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create recurring payment id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring payment created",
		"payment_id", id,
		"user_id", p.UserID,
		"payment_name", p.Name,
		"day_of_month", p.DayOfMonth)

	return id, nil
}

func (r *SQLiteRepository) ListRecurringPayments(ctx context.Context, userID int64) ([]core.RecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, amount_cents, day_of_month, category_id, account_id, active, created_at, last_notified_at
		 FROM recurring_payments WHERE user_id = ? ORDER BY day_of_month, name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring payments: %w", err)
	}
	defer rows.Close()

	return scanRecurringPayments(rows)
}

// ListDuePayments returns every active recurring payment whose configured
// day of month equals day, across all users. Days 29-31 simply never match
// in shorter months.
func (r *SQLiteRepository) ListDuePayments(ctx context.Context, day int) ([]core.RecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, amount_cents, day_of_month, category_id, account_id, active, created_at, last_notified_at
		 FROM recurring_payments WHERE active = 1 AND day_of_month = ?`,
		day)
	if err != nil {
		return nil, fmt.Errorf("list due payments: %w", err)
	}
	defer rows.Close()

	return scanRecurringPayments(rows)
}

// MarkNotified stamps last_notified_at in a single conditional update and
// reports whether this call claimed today's reminder. The date comparison
// happens inside the statement, so concurrent passes (or replicas sharing
// the database) cannot both claim the same payment on the same day.
func (r *SQLiteRepository) MarkNotified(ctx context.Context, id int64, now time.Time) (bool, error) {
	stamp := now.UTC().Format(timeLayout)
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_payments
		 SET last_notified_at = ?
		 WHERE id = ? AND (last_notified_at IS NULL OR date(last_notified_at) <> date(?))`,
		stamp, id, stamp)
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notified rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *SQLiteRepository) SetRecurringPaymentActive(ctx context.Context, id, userID int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_payments SET active = ? WHERE id = ? AND user_id = ?`,
		boolToInt(active), id, userID)
	if err != nil {
		return fmt.Errorf("set recurring payment active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteRecurringPayment(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_payments WHERE id = ? AND user_id = ?`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- notifications ---

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	if err := n.Validate(); err != nil {
		return core.Notification{}, fmt.Errorf("validate notification: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, category, title, message, severity, read, related_id, action_url, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		n.UserID, n.Category, n.Title, n.Message, string(n.Severity), n.RelatedID, n.ActionURL, now.Format(timeLayout))
	if err != nil {
		return core.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Notification{}, fmt.Errorf("create notification id: %w", err)
	}

	n.ID = id
	n.Read = false
	n.CreatedAt = now
	return n, nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID int64, limit int) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, title, message, severity, read, related_id, action_url, created_at
		 FROM notifications WHERE user_id = ?
		 ORDER BY read ASC, created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var severity, createdAt string
		var read int
		if err := rows.Scan(&n.ID, &n.UserID, &n.Category, &n.Title, &n.Message, &severity, &read, &n.RelatedID, &n.ActionURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Severity = core.Severity(severity)
		n.Read = read != 0
		n.CreatedAt = parseStoredTime(createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return out, nil
}

func (r *SQLiteRepository) CountUnreadNotifications(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteNotification(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- helpers ---

func scanRecurringPayments(rows *sql.Rows) ([]core.RecurringPayment, error) {
	var out []core.RecurringPayment
	for rows.Next() {
		var p core.RecurringPayment
		var active int
		var createdAt string
		var lastNotified sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Amount.Cents, &p.DayOfMonth, &p.CategoryID, &p.AccountID, &active, &createdAt, &lastNotified); err != nil {
			return nil, fmt.Errorf("scan recurring payment: %w", err)
		}
		p.Active = active != 0
		p.CreatedAt = parseStoredTime(createdAt)
		if lastNotified.Valid {
			t := parseStoredTime(lastNotified.String)
			p.LastNotifiedAt = &t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring payments: %w", err)
	}
	return out, nil
}

func parseStoredTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

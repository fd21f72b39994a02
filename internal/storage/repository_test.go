package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"soldi/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo *SQLiteRepository) int64 {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), "emilio", "not-a-real-hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func TestUserRoundTrip(t *testing.T) {
	repo := testRepo(t)
	id := createTestUser(t, repo)

	u, err := repo.GetUserByUsername(context.Background(), "emilio")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.ID != id || u.Username != "emilio" || u.PasswordHash != "not-a-real-hash" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := repo.GetUserByUsername(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkNotifiedClaimsOncePerDay(t *testing.T) {
	repo := testRepo(t)
	userID := createTestUser(t, repo)

	id, err := repo.CreateRecurringPayment(context.Background(), core.RecurringPayment{
		UserID:     userID,
		Name:       "Netflix",
		Amount:     core.Money{Cents: 12000},
		DayOfMonth: 15,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	claimed, err := repo.MarkNotified(context.Background(), id, now)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatalf("first claim of the day should succeed")
	}

	// Same calendar day, later hour: already claimed
	claimed, err = repo.MarkNotified(context.Background(), id, now.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatalf("second claim the same day must fail")
	}

	// Next matching day claims again
	claimed, err = repo.MarkNotified(context.Background(), id, now.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("next month claim: %v", err)
	}
	if !claimed {
		t.Fatalf("claim on a new day should succeed")
	}

	// The stamp is visible on reload
	payments, err := repo.ListRecurringPayments(context.Background(), userID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || payments[0].LastNotifiedAt == nil {
		t.Fatalf("expected stamped payment, got %+v", payments)
	}
	if !core.SameDate(*payments[0].LastNotifiedAt, now.AddDate(0, 1, 0)) {
		t.Fatalf("stamp should be the July date, got %v", payments[0].LastNotifiedAt)
	}
}

func TestListDuePaymentsFilters(t *testing.T) {
	repo := testRepo(t)
	userID := createTestUser(t, repo)
	ctx := context.Background()

	mk := func(name string, day int, active bool) {
		t.Helper()
		p := core.RecurringPayment{
			UserID:     userID,
			Name:       name,
			Amount:     core.Money{Cents: 1000},
			DayOfMonth: day,
			Active:     active,
		}
		id, err := repo.CreateRecurringPayment(ctx, p)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if !active {
			if err := repo.SetRecurringPaymentActive(ctx, id, userID, false); err != nil {
				t.Fatalf("deactivate %s: %v", name, err)
			}
		}
	}

	mk("Netflix", 15, true)
	mk("Rent", 1, true)
	mk("Old gym", 15, false)

	due, err := repo.ListDuePayments(ctx, 15)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].Name != "Netflix" {
		t.Fatalf("expected only Netflix due on day 15, got %+v", due)
	}

	due, err = repo.ListDuePayments(ctx, 31)
	if err != nil {
		t.Fatalf("list due 31: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected nothing due on day 31, got %+v", due)
	}
}

func TestCreateRecurringPaymentValidates(t *testing.T) {
	repo := testRepo(t)
	userID := createTestUser(t, repo)

	_, err := repo.CreateRecurringPayment(context.Background(), core.RecurringPayment{
		UserID:     userID,
		Name:       "Netflix",
		Amount:     core.Money{Cents: 12000},
		DayOfMonth: 32,
		Active:     true,
	})
	if !errors.Is(err, core.ErrInvalidDayOfMonth) {
		t.Fatalf("expected ErrInvalidDayOfMonth, got %v", err)
	}
}

func TestNotificationLifecycle(t *testing.T) {
	repo := testRepo(t)
	userID := createTestUser(t, repo)
	ctx := context.Background()

	created, err := repo.CreateNotification(ctx, core.Notification{
		UserID:   userID,
		Category: core.CategoryPayment,
		Title:    "Upcoming payment: Netflix",
		Message:  "Netflix (120,00) is due today, day 15 of the month.",
		Severity: core.SeverityInfo,
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if created.ID == 0 || created.Read {
		t.Fatalf("unexpected created notification: %+v", created)
	}

	count, err := repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread, got %d", count)
	}

	if err := repo.MarkNotificationRead(ctx, created.ID, userID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err = repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		t.Fatalf("count unread after read: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread, got %d", count)
	}

	items, err := repo.ListNotifications(ctx, userID, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(items) != 1 || !items[0].Read {
		t.Fatalf("expected one read notification, got %+v", items)
	}

	if err := repo.DeleteNotification(ctx, created.ID, userID); err != nil {
		t.Fatalf("delete notification: %v", err)
	}
	if err := repo.DeleteNotification(ctx, created.ID, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestNotificationValidationRejected(t *testing.T) {
	repo := testRepo(t)
	userID := createTestUser(t, repo)

	_, err := repo.CreateNotification(context.Background(), core.Notification{
		UserID:   userID,
		Category: core.CategoryPayment,
		Title:    "",
		Message:  "m",
		Severity: core.SeverityInfo,
	})
	if !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestNotificationOwnershipIsEnforced(t *testing.T) {
	repo := testRepo(t)
	userID := createTestUser(t, repo)
	ctx := context.Background()

	created, err := repo.CreateNotification(ctx, core.Notification{
		UserID:   userID,
		Category: core.CategoryPayment,
		Title:    "t",
		Message:  "m",
		Severity: core.SeverityInfo,
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}

	otherUser := userID + 1
	if err := repo.MarkNotificationRead(ctx, created.ID, otherUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign mark-read should be ErrNotFound, got %v", err)
	}
	if err := repo.DeleteNotification(ctx, created.ID, otherUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete should be ErrNotFound, got %v", err)
	}
}

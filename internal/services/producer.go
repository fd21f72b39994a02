package services

import (
	"context"
	"fmt"
	"log/slog"

	"soldi/internal/amqp"
	"soldi/internal/core"
	"soldi/internal/realtime"
)

// NotificationStore persists notification records.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
}

// PushPublisher delivers push messages to the realtime gateway.
type PushPublisher interface {
	PublishNotificationPush(ctx context.Context, msg *amqp.NotificationPushMessage) error
}

// NotificationProducer creates notification records and pushes them to any
// live client connection. Persistence is mandatory, push is best effort: a
// failed or skipped push never fails the dispatch.
type NotificationProducer struct {
	store     NotificationStore
	publisher PushPublisher     // nil disables push entirely
	presence  realtime.Presence // nil means "always push"
}

func NewNotificationProducer(store NotificationStore, publisher PushPublisher, presence realtime.Presence) *NotificationProducer {
	return &NotificationProducer{
		store:     store,
		publisher: publisher,
		presence:  presence,
	}
}

// CreateAndDispatch persists a notification for userID and publishes a push
// message when the user has a live connection.
func (p *NotificationProducer) CreateAndDispatch(
	ctx context.Context,
	userID int64,
	category, title, message string,
	severity core.Severity,
	relatedID *int64,
	actionURL string,
) (core.Notification, error) {
	n := core.Notification{
		UserID:    userID,
		Category:  category,
		Title:     title,
		Message:   message,
		Severity:  severity,
		RelatedID: relatedID,
		ActionURL: actionURL,
	}

	created, err := p.store.CreateNotification(ctx, n)
	if err != nil {
		return core.Notification{}, fmt.Errorf("store notification: %w", err)
	}

	p.push(ctx, created)
	return created, nil
}

func (p *NotificationProducer) push(ctx context.Context, n core.Notification) {
	if p.publisher == nil {
		return
	}
	if p.presence != nil && !p.presence.IsOnline(n.UserID) {
		slog.DebugContext(ctx, "User offline, skipping push",
			"user_id", n.UserID,
			"notification_id", n.ID)
		return
	}

	msg := amqp.NewNotificationPushMessage(n.ID, n.UserID, n.Title, string(n.Severity))
	if err := p.publisher.PublishNotificationPush(ctx, msg); err != nil {
		// Push failure must not fail the dispatch
		slog.WarnContext(ctx, "Failed to push notification",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"error", err)
	}
}

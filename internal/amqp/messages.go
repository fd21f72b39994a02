package amqp

import (
	"encoding/json"
	"time"
)

// NotificationPushMessage tells the realtime gateway that a notification was
// created for a user. It carries only what the live badge needs; clients
// fetch the full notification from the API.
type NotificationPushMessage struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Title          string    `json:"title"`
	Severity       string    `json:"severity"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewNotificationPushMessage creates a push message for a stored notification
func NewNotificationPushMessage(notificationID, userID int64, title, severity string) *NotificationPushMessage {
	return &NotificationPushMessage{
		NotificationID: notificationID,
		UserID:         userID,
		Title:          title,
		Severity:       severity,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NotificationPushMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationPushMessageFromJSON creates a message from JSON bytes
func NotificationPushMessageFromJSON(data []byte) (*NotificationPushMessage, error) {
	var msg NotificationPushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

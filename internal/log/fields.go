package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldPaymentID   = "payment_id"
	FieldPaymentName = "payment_name"
	FieldAmountCents = "amount_cents"
	FieldDayOfMonth  = "day_of_month"
	FieldNotifID     = "notification_id"
	FieldSeverity    = "severity"
	FieldTokenTTL    = "token_ttl"
	FieldSessions    = "active_sessions"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentAuth     = "auth"
	ComponentSession  = "session"
	ComponentNotifier = "notifier"
	ComponentProducer = "producer"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentRealtime = "realtime"
)

package logger

import (
	"context"
	"log/slog"
	"time"
)

// Security event types
const (
	EventTokenRejected     = "token_rejected"
	EventProfileMissing    = "profile_missing"
	EventAccountSuspended  = "account_suspended"
	EventWebSocketAccepted = "websocket_accepted"
)

// SecurityEvent is an access decision worth keeping in the log stream.
// Domain actions go to the audit collection instead.
type SecurityEvent struct {
	EventType string
	UserID    string
	IPAddress string
	Path      string
	Reason    string
}

// SecurityLogger writes access decisions as structured log records.
type SecurityLogger struct {
	logger *slog.Logger
}

func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger}
}

// LogDenied records a refused request at warn level.
func (sl *SecurityLogger) LogDenied(ctx context.Context, event SecurityEvent) {
	sl.logger.LogAttrs(ctx, slog.LevelWarn, "access denied", sl.attrs(event)...)
}

// LogGranted records a notable accepted request at info level.
func (sl *SecurityLogger) LogGranted(ctx context.Context, event SecurityEvent) {
	sl.logger.LogAttrs(ctx, slog.LevelInfo, "access granted", sl.attrs(event)...)
}

func (sl *SecurityLogger) attrs(event SecurityEvent) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("audit_type", "access"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	return attrs
}

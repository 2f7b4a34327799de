package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"sam@example.com", "s**@*******.com"},
		{"a@b.org", "a@*.org"},
		{"not-an-email", "[invalid-email]"},
		{"x@localhost", "x@localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizedEmail(tt.email))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("token=abc"))
	assert.True(t, SanitizeQueryString("a=1&PIN=XYZ123"))
	assert.False(t, SanitizeQueryString("status=pending&niveau=BAC1"))
	assert.False(t, SanitizeQueryString(""))
}

func TestMaskPIN(t *testing.T) {
	assert.Equal(t, "A*****", MaskPIN("A1B2C3"))
	assert.Equal(t, "*", MaskPIN("A"))
	assert.Equal(t, "", MaskPIN(""))
}

func TestSecurityLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	sl.LogDenied(context.Background(), SecurityEvent{
		EventType: EventAccountSuspended,
		UserID:    "u1",
		Path:      "/api/v1/inbox",
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "access denied", record["msg"])
	assert.Equal(t, EventAccountSuspended, record["event_type"])
	assert.Equal(t, "u1", record["user_id"])
	assert.NotContains(t, record, "ip_address")
}

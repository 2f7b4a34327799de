package inbox

import (
	"time"

	"github.com/BradenHooton/portal/internal/models"
)

// EffectiveTTL is the per-message duration when set, else the global one.
func EffectiveTTL(m *models.Message, globalDurationHours float64) float64 {
	if m.DurationHours != nil {
		return *m.DurationHours
	}
	return globalDurationHours
}

// IsExpired reports whether a message read by viewerID should have left the
// inbox at now. Unread messages never expire.
func IsExpired(m *models.Message, viewerID string, now time.Time, globalDurationHours float64) bool {
	if m == nil {
		return false
	}
	readAt, ok := m.ReadAt(viewerID)
	if !ok {
		return false
	}
	hoursSinceRead := now.Sub(readAt).Hours()
	return hoursSinceRead > EffectiveTTL(m, globalDurationHours)
}

// ExpiresAt is the instant after which IsExpired turns true for viewerID.
func ExpiresAt(m *models.Message, viewerID string, globalDurationHours float64) (time.Time, bool) {
	readAt, ok := m.ReadAt(viewerID)
	if !ok {
		return time.Time{}, false
	}
	ttl := time.Duration(EffectiveTTL(m, globalDurationHours) * float64(time.Hour))
	return readAt.Add(ttl), true
}

package inbox

import (
	"sort"
	"time"

	"github.com/BradenHooton/portal/internal/models"
)

// DefaultLimit is how many of the most recent messages an inbox considers.
const DefaultLimit = 50

type Item struct {
	Message   *models.Message
	Read      bool
	ExpiresAt *time.Time
}

type Inbox struct {
	Items       []Item
	UnreadCount int
}

// Build assembles the viewer's inbox from the latest messages: relevant,
// not expired, newest first.
func Build(messages []*models.Message, viewer models.Viewer, now time.Time, globalDurationHours float64) Inbox {
	sorted := make([]*models.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	box := Inbox{Items: make([]Item, 0, len(sorted))}
	for _, m := range sorted {
		if !IsRelevant(m, viewer.UID, viewer.Role, viewer.FiliereID) {
			continue
		}
		if IsExpired(m, viewer.UID, now, globalDurationHours) {
			continue
		}

		item := Item{Message: m, Read: m.IsReadBy(viewer.UID)}
		if at, ok := ExpiresAt(m, viewer.UID, globalDurationHours); ok {
			item.ExpiresAt = &at
		}
		if !item.Read {
			box.UnreadCount++
		}
		box.Items = append(box.Items, item)
	}
	return box
}

// NextExpiry returns the earliest instant at which an item of box leaves it.
func NextExpiry(box Inbox) (time.Time, bool) {
	var next time.Time
	found := false
	for _, item := range box.Items {
		if item.ExpiresAt == nil {
			continue
		}
		if !found || item.ExpiresAt.Before(next) {
			next = *item.ExpiresAt
			found = true
		}
	}
	return next, found
}

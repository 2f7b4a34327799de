package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// LogRepository handles the append-only audit trail
type LogRepository struct {
	store store.Store
}

func NewLogRepository(s store.Store) *LogRepository {
	return &LogRepository{store: s}
}

func logEntryFromDocument(doc store.Document) *models.LogEntry {
	return &models.LogEntry{
		ID:         doc.ID(),
		AdminID:    doc.String("adminId"),
		AdminName:  doc.String("adminName"),
		ActionType: doc.String("actionType"),
		TargetID:   doc.String("targetId"),
		Details:    doc.String("details"),
		Timestamp:  doc.Time("timestamp"),
	}
}

// Create appends an entry timestamped by the store.
func (r *LogRepository) Create(ctx context.Context, entry *models.LogEntry) error {
	_, err := r.store.Add(ctx, CollectionLogs, store.Document{
		"adminId":    entry.AdminID,
		"adminName":  entry.AdminName,
		"actionType": entry.ActionType,
		"targetId":   entry.TargetID,
		"details":    entry.Details,
		"timestamp":  store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to create log entry: %w", err)
	}
	return nil
}

func (r *LogRepository) ListRecent(ctx context.Context, limit int) ([]*models.LogEntry, error) {
	return r.query(ctx, limit)
}

func (r *LogRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]*models.LogEntry, error) {
	return r.query(ctx, limit, store.Eq("targetId", targetID))
}

func (r *LogRepository) query(ctx context.Context, limit int, filters ...store.Filter) ([]*models.LogEntry, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: CollectionLogs,
		Filters:    filters,
		OrderBy:    "timestamp",
		Desc:       true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}

	entries := make([]*models.LogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, logEntryFromDocument(doc))
	}
	return entries, nil
}

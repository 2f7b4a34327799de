package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/portal/internal/models"
)

// AuditLogRepository is the subset of LogRepository methods needed by AuditService.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.LogEntry) error
	ListRecent(ctx context.Context, limit int) ([]*models.LogEntry, error)
	ListByTarget(ctx context.Context, targetID string, limit int) ([]*models.LogEntry, error)
}

// AuditService handles audit logging with dual-write pattern (slog + store)
type AuditService struct {
	repo   AuditLogRepository
	logger *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

// Record appends one entry to the audit trail. Persistence failures are
// logged and never reach the caller: the primary operation already happened.
func (s *AuditService) Record(ctx context.Context, actor models.Viewer, action, targetID, details string) {
	s.logger.InfoContext(ctx, "audit event",
		slog.String("action", action),
		slog.String("actor_id", actor.UID),
		slog.String("target_id", targetID),
		slog.String("details", details),
	)

	entry := &models.LogEntry{
		AdminID:    actor.UID,
		AdminName:  actor.FullName,
		ActionType: action,
		TargetID:   targetID,
		Details:    details,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("action", action),
			slog.String("target_id", targetID),
			slog.Any("error", err),
		)
	}
}

// List returns the newest entries, or those for one target when targetID is set.
func (s *AuditService) List(ctx context.Context, viewer models.Viewer, targetID string, limit int) ([]*models.LogEntry, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	if targetID != "" {
		return s.repo.ListByTarget(ctx, targetID, limit)
	}
	return s.repo.ListRecent(ctx, limit)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// BackupRepository exports and imports whole collections.
type BackupRepository interface {
	Export(ctx context.Context) (map[string][]store.Document, error)
	Import(ctx context.Context, data map[string][]store.Document, progress store.ProgressFunc) (int, error)
}

type BackupService struct {
	repo   BackupRepository
	audit  *AuditService
	logger *slog.Logger
}

func NewBackupService(repo BackupRepository, audit *AuditService, logger *slog.Logger) *BackupService {
	return &BackupService{repo: repo, audit: audit, logger: logger}
}

func (s *BackupService) Export(ctx context.Context, viewer models.Viewer) (map[string][]store.Document, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return s.repo.Export(ctx)
}

// Import merges the documents into the store. Committed batches are kept
// when a later batch fails; the error is then a *store.BatchError.
func (s *BackupService) Import(ctx context.Context, viewer models.Viewer, data map[string][]store.Document) (int, error) {
	if !viewer.IsAdmin() {
		return 0, models.ErrForbidden
	}

	total, err := s.repo.Import(ctx, data, func(completed, total int) {
		s.logger.InfoContext(ctx, "import progress",
			slog.Int("completed", completed),
			slog.Int("total", total),
		)
	})

	details := fmt.Sprintf("documents=%d", total)
	var batchErr *store.BatchError
	if errors.As(err, &batchErr) {
		details = fmt.Sprintf("completed=%d total=%d", batchErr.Completed, batchErr.Total)
	}
	s.audit.Record(ctx, viewer, models.ActionImportData, "backup", details)

	return total, err
}

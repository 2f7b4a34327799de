package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// SystemConfigRepository is the subset of ConfigRepository methods needed by ConfigService.
type SystemConfigRepository interface {
	Get(ctx context.Context) (*models.SystemConfig, error)
	SetMessageDuration(ctx context.Context, hours float64, updatedBy string) error
	Watch(ctx context.Context) (<-chan store.ChangeEvent, error)
}

// ConfigService serves the system configuration document from a cache that
// is dropped whenever the document changes.
type ConfigService struct {
	repo   SystemConfigRepository
	audit  *AuditService
	logger *slog.Logger

	mu     sync.RWMutex
	cached *models.SystemConfig
}

func NewConfigService(repo SystemConfigRepository, audit *AuditService, logger *slog.Logger) *ConfigService {
	return &ConfigService{
		repo:   repo,
		audit:  audit,
		logger: logger,
	}
}

// Get returns the configuration with MessageDuration resolved to the
// effective value.
func (s *ConfigService) Get(ctx context.Context) (*models.SystemConfig, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		cfg := *cached
		return &cfg, nil
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	if !validDuration(cfg.MessageDuration) {
		cfg.MessageDuration = models.DefaultMessageDurationHours
	}

	s.mu.Lock()
	s.cached = cfg
	s.mu.Unlock()

	out := *cfg
	return &out, nil
}

// MessageDuration returns the global read-message lifetime in hours. A store
// failure degrades to the default instead of failing the inbox.
func (s *ConfigService) MessageDuration(ctx context.Context) float64 {
	cfg, err := s.Get(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "using default message duration", slog.Any("error", err))
		return models.DefaultMessageDurationHours
	}
	return cfg.MessageDuration
}

func (s *ConfigService) SetMessageDuration(ctx context.Context, viewer models.Viewer, hours float64) error {
	if !viewer.IsAdmin() {
		return models.ErrForbidden
	}
	if !validDuration(hours) || hours < 1 {
		return fmt.Errorf("%w: message duration must be at least 1 hour", models.ErrBadRequest)
	}

	if err := s.repo.SetMessageDuration(ctx, hours, viewer.UID); err != nil {
		return fmt.Errorf("failed to update system config: %w", err)
	}
	s.Invalidate()

	s.audit.Record(ctx, viewer, models.ActionUpdateConfig, "system/config",
		"messageDuration="+strconv.FormatFloat(hours, 'f', -1, 64))
	return nil
}

// Invalidate drops the cached document.
func (s *ConfigService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Run invalidates the cache on every change to the system collection and then
// calls onChange, until ctx is done.
func (s *ConfigService) Run(ctx context.Context, onChange func()) error {
	events, err := s.repo.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch system config: %w", err)
	}

	for range events {
		s.Invalidate()
		if onChange != nil {
			onChange()
		}
	}
	return nil
}

func validDuration(hours float64) bool {
	return hours > 0 && !math.IsNaN(hours) && !math.IsInf(hours, 0)
}

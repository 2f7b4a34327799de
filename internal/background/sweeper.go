package background

import (
	"context"
	"log/slog"
	"time"
)

// Refresher recomputes every open inbox.
type Refresher interface {
	RefreshAll()
	Connections() int
}

// SweepManager periodically refreshes open inboxes so that read messages
// leave them once expired, even when nothing is written.
type SweepManager struct {
	target   Refresher
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(target Refresher, logger *slog.Logger, interval time.Duration) *SweepManager {
	return &SweepManager{
		target:   target,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.runSweep()
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep() {
	n := sm.target.Connections()
	if n == 0 {
		return
	}
	sm.target.RefreshAll()
	sm.logger.Debug("inbox sweep", slog.Int("connections", n))
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}

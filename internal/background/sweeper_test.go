package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRefresher struct {
	connections int
	refreshes   atomic.Int32
}

func (c *countingRefresher) RefreshAll()      { c.refreshes.Add(1) }
func (c *countingRefresher) Connections() int { return c.connections }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepManager_RefreshesOnTick(t *testing.T) {
	target := &countingRefresher{connections: 2}
	sm := NewSweepManager(target, testLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sm.Start(ctx)

	assert.Eventually(t, func() bool { return target.refreshes.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSweepManager_SkipsWithoutConnections(t *testing.T) {
	target := &countingRefresher{}
	sm := NewSweepManager(target, testLogger(), 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sm.Start(ctx)

	assert.Equal(t, int32(0), target.refreshes.Load())
}

func TestSweepManager_Stop(t *testing.T) {
	sm := NewSweepManager(&countingRefresher{}, testLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		sm.Start(context.Background())
		close(done)
	}()

	sm.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

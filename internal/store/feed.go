package store

import (
	"context"
	"log/slog"
	"sync"
)

// Feed carries change events from the stores that commit writes to the
// subscribers that watch them.
type Feed interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	// Listen streams every published event until ctx is done.
	Listen(ctx context.Context) (<-chan ChangeEvent, error)
}

const listenerBuffer = 256

// LocalFeed fans events out to listeners of the current process.
// A listener that falls behind loses events rather than stalling writers.
type LocalFeed struct {
	mu        sync.RWMutex
	listeners map[int]chan ChangeEvent
	nextID    int
	logger    *slog.Logger
}

func NewLocalFeed(logger *slog.Logger) *LocalFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalFeed{
		listeners: make(map[int]chan ChangeEvent),
		logger:    logger,
	}
}

func (f *LocalFeed) Publish(_ context.Context, ev ChangeEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for id, ch := range f.listeners {
		select {
		case ch <- ev:
		default:
			f.logger.Warn("change listener lagging, event dropped",
				slog.Int("listener", id),
				slog.String("collection", ev.Collection),
				slog.String("id", ev.ID),
			)
		}
	}
	return nil
}

func (f *LocalFeed) Listen(ctx context.Context) (<-chan ChangeEvent, error) {
	ch := make(chan ChangeEvent, listenerBuffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.listeners, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch, nil
}

// Watch narrows a feed to the changes a query cares about. Removals are always
// delivered since the removed document can no longer be matched.
func Watch(ctx context.Context, feed Feed, q Query) (<-chan ChangeEvent, error) {
	src, err := feed.Listen(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan ChangeEvent, listenerBuffer)
	go func() {
		defer close(out)
		for ev := range src {
			if ev.Collection != q.Collection {
				continue
			}
			if ev.Type != ChangeRemoved && ev.Doc != nil && !Matches(ev.Doc, q.Filters) {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

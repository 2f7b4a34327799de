package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory. Batches are atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	feed        Feed
	now         func() time.Time
}

// NewMemoryStore creates an empty store publishing to feed, or to a private
// LocalFeed when feed is nil.
func NewMemoryStore(feed Feed) *MemoryStore {
	if feed == nil {
		feed = NewLocalFeed(nil)
	}
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		feed:        feed,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for ServerTimestamp.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return withID(doc, id), nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	s.mu.RLock()
	results := make([]Document, 0)
	for id, doc := range s.collections[q.Collection] {
		d := withID(doc, id)
		if Matches(d, q.Filters) {
			results = append(results, d)
		}
	}
	s.mu.RUnlock()

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = IDField
	}
	SortDocuments(results, orderBy, q.Desc)

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	stored := ResolveServerValues(doc, s.now())
	delete(stored, IDField)
	s.collection(collection)[id] = stored
	s.mu.Unlock()

	s.publish(ctx, ChangeEvent{Collection: collection, ID: id, Type: ChangeAdded, Doc: withID(stored, id)})
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc Document, merge bool) error {
	s.mu.Lock()
	ev := s.setLocked(collection, id, doc, merge)
	s.mu.Unlock()

	s.publish(ctx, ev)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch Patch, conditions ...Filter) error {
	s.mu.Lock()
	current, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if !Matches(withID(current, id), conditions) {
		s.mu.Unlock()
		return ErrConditionFailed
	}
	updated := ApplyPatch(current, patch, s.now())
	s.collection(collection)[id] = updated
	s.mu.Unlock()

	s.publish(ctx, ChangeEvent{Collection: collection, ID: id, Type: ChangeModified, Doc: withID(updated, id)})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	_, existed := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if existed {
		s.publish(ctx, ChangeEvent{Collection: collection, ID: id, Type: ChangeRemoved})
	}
	return nil
}

// BatchWrite validates every operation against a staged view before
// committing any of them.
func (s *MemoryStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	if len(ops) > MaxBatchSize {
		return ErrBatchTooLarge
	}

	type key struct{ collection, id string }
	staged := make(map[key]Document)
	order := make([]key, 0, len(ops))
	events := make([]ChangeEvent, 0, len(ops))

	s.mu.Lock()
	now := s.now()
	lookup := func(k key) (Document, bool) {
		if doc, ok := staged[k]; ok {
			return doc, doc != nil
		}
		doc, ok := s.collections[k.collection][k.id]
		return doc, ok
	}

	for i, op := range ops {
		k := key{op.Collection, op.ID}
		current, exists := lookup(k)

		var next Document
		ev := ChangeEvent{Collection: op.Collection, ID: op.ID, Type: ChangeModified}
		switch op.Kind {
		case WriteSet:
			next = ResolveServerValues(op.Doc, now)
		case WriteMerge:
			next = MergeDocuments(current, ResolveServerValues(op.Doc, now))
		case WriteUpdate:
			if !exists {
				s.mu.Unlock()
				return fmt.Errorf("batch op %d (%s/%s): %w", i, op.Collection, op.ID, ErrNotFound)
			}
			if !Matches(withID(current, op.ID), op.Conditions) {
				s.mu.Unlock()
				return fmt.Errorf("batch op %d (%s/%s): %w", i, op.Collection, op.ID, ErrConditionFailed)
			}
			next = ApplyPatch(current, op.Patch, now)
		case WriteDelete:
			ev.Type = ChangeRemoved
		default:
			s.mu.Unlock()
			return fmt.Errorf("batch op %d: unknown write kind %d", i, op.Kind)
		}
		if next != nil {
			delete(next, IDField)
			if !exists {
				ev.Type = ChangeAdded
			}
			ev.Doc = withID(next, op.ID)
		}

		if _, seen := staged[k]; !seen {
			order = append(order, k)
		}
		staged[k] = next
		events = append(events, ev)
	}

	for _, k := range order {
		if doc := staged[k]; doc != nil {
			s.collection(k.collection)[k.id] = doc
		} else {
			delete(s.collections[k.collection], k.id)
		}
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.publish(ctx, ev)
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (<-chan ChangeEvent, error) {
	return Watch(ctx, s.feed, q)
}

func (s *MemoryStore) setLocked(collection, id string, doc Document, merge bool) ChangeEvent {
	current, exists := s.collections[collection][id]
	next := ResolveServerValues(doc, s.now())
	if merge && exists {
		next = MergeDocuments(current, next)
	}
	delete(next, IDField)
	s.collection(collection)[id] = next

	ev := ChangeEvent{Collection: collection, ID: id, Type: ChangeModified, Doc: withID(next, id)}
	if !exists {
		ev.Type = ChangeAdded
	}
	return ev
}

func (s *MemoryStore) collection(name string) map[string]Document {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]Document)
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) publish(ctx context.Context, ev ChangeEvent) {
	_ = s.feed.Publish(ctx, ev)
}

func withID(doc Document, id string) Document {
	out := doc.Clone()
	out[IDField] = id
	return out
}

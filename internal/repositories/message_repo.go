package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

type MessageRepository struct {
	store store.Store
}

func NewMessageRepository(s store.Store) *MessageRepository {
	return &MessageRepository{store: s}
}

func messageFromDocument(doc store.Document) *models.Message {
	m := &models.Message{
		ID:                doc.ID(),
		Title:             doc.String("title"),
		Content:           doc.String("content"),
		Priority:          doc.String("priority"),
		Target:            doc.String("target"),
		TargetFiliereID:   doc.String("targetFiliereId"),
		IndividualUserIDs: doc.Strings("individualUserIds"),
		SenderID:          doc.String("senderId"),
		SenderName:        doc.String("senderName"),
		CreatedAt:         doc.Time("createdAt"),
		UpdatedAt:         doc.TimePtr("updatedAt"),
		ReadBy:            doc.Strings("readBy"),
		ReadByWithTime:    doc.TimeMap("readByWithTime"),
	}
	if hours, ok := doc.Float("durationHours"); ok {
		m.DurationHours = &hours
	}
	if m.Priority == "" {
		m.Priority = models.PriorityNormal
	}
	if m.Target == "" {
		m.Target = models.TargetAll
	}
	return m
}

func messageToDocument(m *models.Message) store.Document {
	doc := store.Document{
		"title":             m.Title,
		"content":           m.Content,
		"priority":          m.Priority,
		"target":            m.Target,
		"targetFiliereId":   m.TargetFiliereID,
		"individualUserIds": stringsOrEmpty(m.IndividualUserIDs),
		"senderId":          m.SenderID,
		"senderName":        m.SenderName,
		"createdAt":         store.ServerTimestamp,
		"readBy":            []string{},
		"readByWithTime":    map[string]any{},
	}
	if m.DurationHours != nil {
		doc["durationHours"] = *m.DurationHours
	}
	return doc
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	doc, err := r.store.Get(ctx, CollectionMessages, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return messageFromDocument(doc), nil
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	id, err := r.store.Add(ctx, CollectionMessages, messageToDocument(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return r.GetByID(ctx, id)
}

// ListRecent returns the newest messages first.
func (r *MessageRepository) ListRecent(ctx context.Context, limit int) ([]*models.Message, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: CollectionMessages,
		OrderBy:    "createdAt",
		Desc:       true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, messageFromDocument(doc))
	}
	return messages, nil
}

func (r *MessageRepository) Update(ctx context.Context, id string, patch store.Patch) error {
	patch["updatedAt"] = store.ServerTimestamp
	return mapStoreError(r.store.Update(ctx, CollectionMessages, id, patch))
}

// MarkRead records the store time at which uid read the message and adds uid
// to readBy. A message uid already read keeps its first read time.
func (r *MessageRepository) MarkRead(ctx context.Context, id, uid string) error {
	readAt := "readByWithTime." + uid
	patch := store.Patch{
		readAt:   store.ServerTimestamp,
		"readBy": store.ArrayUnion(uid),
	}
	err := r.store.Update(ctx, CollectionMessages, id, patch, store.Absent(readAt))
	if errors.Is(err, store.ErrConditionFailed) {
		return nil
	}
	return mapStoreError(err)
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	return mapStoreError(r.store.Delete(ctx, CollectionMessages, id))
}

// DeleteAll removes every message in bounded batches, reporting progress
// after each committed batch.
func (r *MessageRepository) DeleteAll(ctx context.Context, progress store.ProgressFunc) (int, error) {
	docs, err := r.store.Query(ctx, store.Query{Collection: CollectionMessages})
	if err != nil {
		return 0, fmt.Errorf("failed to list messages: %w", err)
	}

	ops := make([]store.WriteOp, 0, len(docs))
	for _, doc := range docs {
		ops = append(ops, store.DeleteOp(CollectionMessages, doc.ID()))
	}
	return len(ops), store.RunBatches(ctx, r.store, ops, store.MaxBatchSize, progress)
}

// Watch streams changes to the messages collection.
func (r *MessageRepository) Watch(ctx context.Context) (<-chan store.ChangeEvent, error) {
	return r.store.Subscribe(ctx, store.Query{Collection: CollectionMessages})
}

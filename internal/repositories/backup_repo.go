package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/portal/internal/store"
)

// BackupRepository moves whole collections in and out of the store as raw documents.
type BackupRepository struct {
	store store.Store
}

func NewBackupRepository(s store.Store) *BackupRepository {
	return &BackupRepository{store: s}
}

func (r *BackupRepository) Export(ctx context.Context) (map[string][]store.Document, error) {
	out := make(map[string][]store.Document, len(Collections))
	for _, collection := range Collections {
		docs, err := r.store.Query(ctx, store.Query{Collection: collection, OrderBy: store.IDField})
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", collection, err)
		}
		out[collection] = docs
	}
	return out, nil
}

// Import merges the documents into the store in bounded batches. Documents
// without an id and unknown collections are skipped.
func (r *BackupRepository) Import(ctx context.Context, data map[string][]store.Document, progress store.ProgressFunc) (int, error) {
	ops := make([]store.WriteOp, 0)
	for _, collection := range Collections {
		for _, doc := range data[collection] {
			id := doc.ID()
			if id == "" {
				continue
			}
			body := doc.Clone()
			delete(body, store.IDField)
			ops = append(ops, store.MergeOp(collection, id, body))
		}
	}
	return len(ops), store.RunBatches(ctx, r.store, ops, store.MaxBatchSize, progress)
}

package store

import (
	"context"
	"fmt"
)

// MaxBatchSize is the largest number of writes a single BatchWrite accepts.
const MaxBatchSize = 400

// ProgressFunc is called after each committed chunk.
type ProgressFunc func(completed, total int)

// BatchError reports a chunked write that stopped part way. Chunks committed
// before the failure stay committed.
type BatchError struct {
	Completed int
	Total     int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch stopped after %d of %d writes: %v", e.Completed, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// RunBatches commits ops sequentially in chunks of at most chunkSize writes.
// A chunk that has started is never cancelled; ctx is only checked between chunks.
func RunBatches(ctx context.Context, s Store, ops []WriteOp, chunkSize int, progress ProgressFunc) error {
	if chunkSize <= 0 || chunkSize > MaxBatchSize {
		chunkSize = MaxBatchSize
	}

	total := len(ops)
	completed := 0
	for completed < total {
		if err := ctx.Err(); err != nil {
			return &BatchError{Completed: completed, Total: total, Err: err}
		}

		end := min(completed+chunkSize, total)
		if err := s.BatchWrite(context.WithoutCancel(ctx), ops[completed:end]); err != nil {
			return &BatchError{Completed: completed, Total: total, Err: err}
		}
		completed = end

		if progress != nil {
			progress(completed, total)
		}
	}
	return nil
}

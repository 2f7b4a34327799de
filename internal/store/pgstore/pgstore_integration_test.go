//go:build integration

package pgstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/portal/internal/database"
	"github.com/BradenHooton/portal/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("portal"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := database.FromPool(pool, logger)

	goose.SetLogger(log.New(io.Discard, "", 0))
	require.NoError(t, Migrate(ctx, db))

	return New(db, nil, logger)
}

func TestStore_Integration(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	t.Run("add, get and query ordered", func(t *testing.T) {
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			_, err := s.Add(ctx, "messages", store.Document{
				"title":     fmt.Sprintf("m%d", i),
				"target":    "all",
				"createdAt": base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		docs, err := s.Query(ctx, store.Query{
			Collection: "messages",
			Filters:    []store.Filter{store.Eq("target", "all")},
			OrderBy:    "createdAt",
			Desc:       true,
			Limit:      2,
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "m2", docs[0].String("title"))
		assert.Equal(t, "m1", docs[1].String("title"))
	})

	t.Run("conditional update is first write wins", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "requests", "r1", store.Document{"status": "pending", "userId": "u1"}, false))

		err := s.Update(ctx, "requests", "r1", store.Patch{"status": "approved", "processedAt": store.ServerTimestamp},
			store.Eq("status", "pending"))
		require.NoError(t, err)

		err = s.Update(ctx, "requests", "r1", store.Patch{"status": "rejected"}, store.Eq("status", "pending"))
		assert.ErrorIs(t, err, store.ErrConditionFailed)

		doc, err := s.Get(ctx, "requests", "r1")
		require.NoError(t, err)
		assert.Equal(t, "approved", doc.String("status"))
		assert.False(t, doc.Time("processedAt").IsZero())
	})

	t.Run("in filter and array union", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "messages", "mx", store.Document{"readBy": []string{}}, false))
		require.NoError(t, s.Update(ctx, "messages", "mx", store.Patch{
			"readBy":            store.ArrayUnion("u1"),
			"readByWithTime.u1": store.ServerTimestamp,
		}))

		docs, err := s.Query(ctx, store.Query{
			Collection: "messages",
			Filters:    []store.Filter{store.ArrayContains("readBy", "u1")},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Contains(t, docs[0].TimeMap("readByWithTime"), "u1")

		active, err := s.Query(ctx, store.Query{
			Collection: "requests",
			Filters:    []store.Filter{store.Eq("userId", "u1"), store.In("status", "pending", "approved")},
		})
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("batch rolls back on missing document", func(t *testing.T) {
		err := s.BatchWrite(ctx, []store.WriteOp{
			store.SetOp("filieres", "f1", store.Document{"name": "BTS1"}),
			store.UpdateOp("filieres", "missing", store.Patch{"name": "x"}),
		})
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Get(ctx, "filieres", "f1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

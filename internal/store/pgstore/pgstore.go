// Package pgstore implements store.Store on a single PostgreSQL JSONB table.
package pgstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/portal/internal/database"
	"github.com/BradenHooton/portal/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Timestamps are stored as fixed-width UTC strings so that text ordering is
// chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db     *database.DB
	feed   store.Feed
	logger *slog.Logger
}

func New(db *database.DB, feed store.Feed, logger *slog.Logger) *Store {
	if feed == nil {
		feed = store.NewLocalFeed(logger)
	}
	return &Store{db: db, feed: feed, logger: logger}
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *database.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw []byte
	err := s.db.Pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return decodeDocument(raw, id)
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	sql, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		doc, err := decodeDocument(raw, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Collection, err)
	}
	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, doc store.Document) (string, error) {
	id := uuid.NewString()
	stored := store.ResolveServerValues(doc, now())

	data, err := encodeDocument(stored)
	if err != nil {
		return "", err
	}
	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, data,
	)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, mapPostgresError(err))
	}

	s.publish(ctx, store.ChangeEvent{Collection: collection, ID: id, Type: store.ChangeAdded, Doc: withID(stored, id)})
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc store.Document, merge bool) error {
	kind := store.WriteSet
	if merge {
		kind = store.WriteMerge
	}
	return s.BatchWrite(ctx, []store.WriteOp{{Kind: kind, Collection: collection, ID: id, Doc: doc}})
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Patch, conditions ...store.Filter) error {
	var ev store.ChangeEvent
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		ev, err = applyOp(ctx, tx, store.UpdateOp(collection, id, patch).When(conditions...))
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, ev)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() > 0 {
		s.publish(ctx, store.ChangeEvent{Collection: collection, ID: id, Type: store.ChangeRemoved})
	}
	return nil
}

// BatchWrite commits all operations in one transaction.
func (s *Store) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	if len(ops) > store.MaxBatchSize {
		return store.ErrBatchTooLarge
	}

	events := make([]store.ChangeEvent, 0, len(ops))
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for i, op := range ops {
			ev, err := applyOp(ctx, tx, op)
			if err != nil {
				return fmt.Errorf("batch op %d (%s/%s): %w", i, op.Collection, op.ID, err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ev := range events {
		s.publish(ctx, ev)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query) (<-chan store.ChangeEvent, error) {
	return store.Watch(ctx, s.feed, q)
}

// applyOp performs one write inside tx using the transaction clock for
// server timestamps.
func applyOp(ctx context.Context, tx pgx.Tx, op store.WriteOp) (store.ChangeEvent, error) {
	ev := store.ChangeEvent{Collection: op.Collection, ID: op.ID, Type: store.ChangeModified}

	if op.Kind == store.WriteDelete {
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, op.Collection, op.ID); err != nil {
			return ev, err
		}
		ev.Type = store.ChangeRemoved
		return ev, nil
	}

	var raw []byte
	var txNow time.Time
	err := tx.QueryRow(ctx,
		`SELECT data, now() FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		op.Collection, op.ID,
	).Scan(&raw, &txNow)
	exists := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return ev, err
	}
	if !exists {
		txNow = now()
	}

	var current store.Document
	if exists {
		if current, err = decodeDocument(raw, op.ID); err != nil {
			return ev, err
		}
	}

	var next store.Document
	switch op.Kind {
	case store.WriteSet:
		next = store.ResolveServerValues(op.Doc, txNow.UTC())
	case store.WriteMerge:
		next = store.MergeDocuments(current, store.ResolveServerValues(op.Doc, txNow.UTC()))
	case store.WriteUpdate:
		if !exists {
			return ev, store.ErrNotFound
		}
		if !store.Matches(current, op.Conditions) {
			return ev, store.ErrConditionFailed
		}
		next = store.ApplyPatch(current, op.Patch, txNow.UTC())
	default:
		return ev, fmt.Errorf("unknown write kind %d", op.Kind)
	}
	delete(next, store.IDField)

	data, err := encodeDocument(next)
	if err != nil {
		return ev, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		op.Collection, op.ID, data,
	)
	if err != nil {
		return ev, mapPostgresError(err)
	}

	if !exists {
		ev.Type = store.ChangeAdded
	}
	ev.Doc = withID(next, op.ID)
	return ev, nil
}

func buildQuery(q store.Query) (string, []any, error) {
	args := []any{q.Collection}
	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)

	for _, f := range q.Filters {
		clause, fargs, err := filterClause(f, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(clause)
		args = append(args, fargs...)
	}

	switch {
	case q.OrderBy == store.IDField:
		sb.WriteString(" ORDER BY id")
	case q.OrderBy != "":
		args = append(args, pq.Array(strings.Split(q.OrderBy, ".")))
		fmt.Fprintf(&sb, " ORDER BY data #>> $%d::text[]", len(args))
	}
	if q.OrderBy != "" && q.Desc {
		sb.WriteString(" DESC")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, nil
}

func filterClause(f store.Filter, n int) (string, []any, error) {
	switch f.Op {
	case store.OpEqual:
		if f.Field == store.IDField {
			return fmt.Sprintf("id = $%d", n), []any{fmt.Sprint(f.Value)}, nil
		}
		data, err := containment(f.Field, f.Value)
		return fmt.Sprintf("data @> $%d::jsonb", n), []any{data}, err
	case store.OpArrayContains:
		data, err := containment(f.Field, []any{f.Value})
		return fmt.Sprintf("data @> $%d::jsonb", n), []any{data}, err
	case store.OpIn:
		values, _ := f.Value.([]any)
		texts := make([]string, 0, len(values))
		for _, v := range values {
			texts = append(texts, textValue(v))
		}
		if f.Field == store.IDField {
			return fmt.Sprintf("id = ANY($%d::text[])", n), []any{pq.Array(texts)}, nil
		}
		return fmt.Sprintf("data #>> $%d::text[] = ANY($%d::text[])", n, n+1),
			[]any{pq.Array(strings.Split(f.Field, ".")), pq.Array(texts)}, nil
	case store.OpAbsent:
		return fmt.Sprintf("data #>> $%d::text[] IS NULL", n),
			[]any{pq.Array(strings.Split(f.Field, "."))}, nil
	}
	return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
}

// containment builds the JSON object {a: {b: value}} for the dotted path a.b.
func containment(path string, value any) (string, error) {
	var nested any = encodeValue(value)
	parts := strings.Split(path, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		nested = map[string]any{parts[i]: nested}
	}
	data, err := json.Marshal(nested)
	if err != nil {
		return "", fmt.Errorf("encode filter on %s: %w", path, err)
	}
	return string(data), nil
}

// textValue renders v the way the ->> and #>> operators render JSON scalars.
func textValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(timeLayout)
	}
	return fmt.Sprint(v)
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(timeLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(timeLayout)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = encodeValue(item)
		}
		return out
	case store.Document:
		return encodeValue(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item)
		}
		return out
	}
	return v
}

func encodeDocument(doc store.Document) (string, error) {
	data, err := json.Marshal(encodeValue(map[string]any(doc.Clone())))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(data), nil
}

func decodeDocument(raw []byte, id string) (store.Document, error) {
	doc := store.Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
	}
	doc[store.IDField] = id
	return doc, nil
}

func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("duplicate document: %w", err)
	}

	return err
}

func (s *Store) publish(ctx context.Context, ev store.ChangeEvent) {
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish change event",
			slog.String("collection", ev.Collection),
			slog.String("id", ev.ID),
			slog.Any("error", err),
		)
	}
}

func now() time.Time { return time.Now().UTC() }

func withID(doc store.Document, id string) store.Document {
	out := doc.Clone()
	out[store.IDField] = id
	return out
}

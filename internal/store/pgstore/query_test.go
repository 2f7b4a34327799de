package pgstore

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/BradenHooton/portal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery_FiltersOrderLimit(t *testing.T) {
	sql, args, err := buildQuery(store.Query{
		Collection: "requests",
		Filters: []store.Filter{
			store.Eq("userId", "u1"),
			store.In("status", "pending", "approved"),
		},
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   50,
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT id, data FROM documents WHERE collection = $1`+
			` AND data @> $2::jsonb`+
			` AND data #>> $3::text[] = ANY($4::text[])`+
			` ORDER BY data #>> $5::text[] DESC LIMIT $6`,
		sql)
	require.Len(t, args, 6)
	assert.Equal(t, "requests", args[0])
	assert.Equal(t, `{"userId":"u1"}`, args[1])
	assert.Equal(t, 50, args[5])

	statuses, err := args[3].(driver.Valuer).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"pending","approved"}`, statuses)
}

func TestBuildQuery_IDFilters(t *testing.T) {
	sql, args, err := buildQuery(store.Query{
		Collection: "users",
		Filters:    []store.Filter{store.In(store.IDField, "a", "b")},
		OrderBy:    store.IDField,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, data FROM documents WHERE collection = $1 AND id = ANY($2::text[]) ORDER BY id`, sql)
	assert.Len(t, args, 2)
}

func TestBuildQuery_AbsentField(t *testing.T) {
	sql, args, err := buildQuery(store.Query{
		Collection: "messages",
		Filters:    []store.Filter{store.Absent("readByWithTime.u1")},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, data FROM documents WHERE collection = $1 AND data #>> $2::text[] IS NULL`, sql)

	path, err := args[1].(driver.Valuer).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"readByWithTime","u1"}`, path)
}

func TestBuildQuery_UnknownOperator(t *testing.T) {
	_, _, err := buildQuery(store.Query{
		Collection: "users",
		Filters:    []store.Filter{{Field: "role", Op: "!=", Value: "admin"}},
	})
	assert.Error(t, err)
}

func TestContainment(t *testing.T) {
	data, err := containment("individualUserIds", []any{"u1"})
	require.NoError(t, err)
	assert.Equal(t, `{"individualUserIds":["u1"]}`, data)

	nested, err := containment("readByWithTime.u1", true)
	require.NoError(t, err)
	assert.Equal(t, `{"readByWithTime":{"u1":true}}`, nested)
}

func TestEncodeDecode_TimesAreFixedWidth(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	data, err := encodeDocument(store.Document{
		"createdAt":      at,
		"readByWithTime": map[string]any{"u1": at},
	})
	require.NoError(t, err)
	assert.Contains(t, data, `"createdAt":"2026-05-01T08:00:00.000000000Z"`)

	doc, err := decodeDocument([]byte(data), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", doc.ID())
	assert.True(t, doc.Time("createdAt").Equal(at))
	assert.True(t, doc.TimeMap("readByWithTime")["u1"].Equal(at))
}

func TestTextValue(t *testing.T) {
	assert.Equal(t, "true", textValue(true))
	assert.Equal(t, "24", textValue(24.0))
	assert.Equal(t, "1.5", textValue(1.5))
	assert.Equal(t, "student", textValue("student"))
}

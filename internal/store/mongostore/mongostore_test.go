package mongostore

import (
	"testing"
	"time"

	"github.com/BradenHooton/portal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTranslatePatch_MarkRead(t *testing.T) {
	update := translatePatch(store.Patch{
		"readByWithTime.u1": store.ServerTimestamp,
		"readBy":            store.ArrayUnion("u1"),
		"status":            "approved",
	})

	assert.Equal(t, bson.M{"readByWithTime.u1": true}, update["$currentDate"])
	assert.Equal(t, bson.M{"readBy": bson.M{"$each": []any{"u1"}}}, update["$addToSet"])
	assert.Equal(t, bson.M{"status": "approved"}, update["$set"])
}

func TestTranslatePatch_OmitsEmptyOperators(t *testing.T) {
	update := translatePatch(store.Patch{"title": "x"})
	_, hasCurrentDate := update["$currentDate"]
	_, hasAddToSet := update["$addToSet"]
	assert.False(t, hasCurrentDate)
	assert.False(t, hasAddToSet)
}

func TestBuildFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, buildFilter(nil))

	single := buildFilter([]store.Filter{store.Eq("status", "pending")})
	assert.Equal(t, bson.M{"status": "pending"}, single)

	combined := buildFilter([]store.Filter{
		store.Eq(store.IDField, "r1"),
		store.In("status", "pending", "approved"),
		store.ArrayContains("individualUserIds", "u1"),
	})
	clauses, ok := combined["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, clauses, 3)
	assert.Equal(t, bson.M{"_id": "r1"}, clauses[0])
	assert.Equal(t, bson.M{"status": bson.M{"$in": []any{"pending", "approved"}}}, clauses[1])
	assert.Equal(t, bson.M{"individualUserIds": "u1"}, clauses[2])
}

func TestIDFilter(t *testing.T) {
	assert.Equal(t, bson.M{"_id": "r1"}, idFilter("r1", nil))

	guarded := idFilter("r1", []store.Filter{store.Eq("status", "pending")})
	assert.Equal(t, bson.M{"$and": []bson.M{{"_id": "r1"}, {"status": "pending"}}}, guarded)
}

func TestFlatten_NestedMergeKeepsSiblings(t *testing.T) {
	set := flatten("", store.Document{
		"id":              "ignored",
		"messageDuration": 12,
		"readByWithTime":  map[string]any{"u1": "t"},
	})

	assert.Equal(t, bson.M{"messageDuration": 12, "readByWithTime.u1": "t"}, set)
}

func TestFromBSON_NormalisesDriverTypes(t *testing.T) {
	readAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	doc := fromBSON(bson.M{
		"_id":            "m1",
		"createdAt":      primitive.NewDateTimeFromTime(readAt),
		"readBy":         primitive.A{"u1", "u2"},
		"readByWithTime": primitive.D{{Key: "u1", Value: primitive.NewDateTimeFromTime(readAt)}},
	})

	assert.Equal(t, "m1", doc.ID())
	assert.True(t, doc.Time("createdAt").Equal(readAt))
	assert.Equal(t, []string{"u1", "u2"}, doc.Strings("readBy"))
	assert.True(t, doc.TimeMap("readByWithTime")["u1"].Equal(readAt))
}

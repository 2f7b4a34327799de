// Package mongostore implements store.Store on MongoDB. Document ids are kept
// in _id; every write is published to the change feed after it commits.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/portal/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	db     *mongo.Database
	feed   store.Feed
	logger *slog.Logger
}

func New(db *mongo.Database, feed store.Feed, logger *slog.Logger) *Store {
	if feed == nil {
		feed = store.NewLocalFeed(logger)
	}
	return &Store{db: db, feed: feed, logger: logger}
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: fieldName(q.OrderBy), Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, buildFilter(q.Filters), opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
	}

	docs := make([]store.Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, fromBSON(r))
	}
	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, doc store.Document) (string, error) {
	id := uuid.NewString()
	stored := toBSON(store.ResolveServerValues(doc, now()), id)

	if _, err := s.db.Collection(collection).InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("insert %s/%s: duplicate id", collection, id)
		}
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}

	s.publish(ctx, store.ChangeEvent{Collection: collection, ID: id, Type: store.ChangeAdded, Doc: fromBSON(stored)})
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc store.Document, merge bool) error {
	coll := s.db.Collection(collection)
	resolved := store.ResolveServerValues(doc, now())

	var err error
	if merge {
		set := flatten("", resolved)
		_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	} else {
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, toBSON(resolved, id), options.Replace().SetUpsert(true))
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	s.publishCurrent(ctx, collection, id)
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Patch, conditions ...store.Filter) error {
	coll := s.db.Collection(collection)

	var raw bson.M
	err := coll.FindOneAndUpdate(ctx, idFilter(id, conditions), translatePatch(patch),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, countErr := coll.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, countErr)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return store.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.publish(ctx, store.ChangeEvent{Collection: collection, ID: id, Type: store.ChangeModified, Doc: fromBSON(raw)})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount > 0 {
		s.publish(ctx, store.ChangeEvent{Collection: collection, ID: id, Type: store.ChangeRemoved})
	}
	return nil
}

// BatchWrite groups the operations by collection into ordered bulk writes.
// MongoDB commits each collection's bulk write separately. A guarded update
// that matches nothing surfaces as ErrConditionFailed after its collection's
// bulk write has run.
func (s *Store) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	if len(ops) > store.MaxBatchSize {
		return store.ErrBatchTooLarge
	}

	type bulk struct {
		models  []mongo.WriteModel
		events  []store.ChangeEvent
		writes  int64 // set, merge and update ops, each matching or upserting one document
		guarded bool
	}

	ts := now()
	grouped := make(map[string]*bulk)
	order := make([]string, 0)

	for _, op := range ops {
		var model mongo.WriteModel
		ev := store.ChangeEvent{Collection: op.Collection, ID: op.ID, Type: store.ChangeModified}

		b, ok := grouped[op.Collection]
		if !ok {
			b = &bulk{}
			grouped[op.Collection] = b
			order = append(order, op.Collection)
		}

		switch op.Kind {
		case store.WriteSet:
			model = mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": op.ID}).
				SetReplacement(toBSON(store.ResolveServerValues(op.Doc, ts), op.ID)).
				SetUpsert(true)
			b.writes++
		case store.WriteMerge:
			model = mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": op.ID}).
				SetUpdate(bson.M{"$set": flatten("", store.ResolveServerValues(op.Doc, ts))}).
				SetUpsert(true)
			b.writes++
		case store.WriteUpdate:
			model = mongo.NewUpdateOneModel().
				SetFilter(idFilter(op.ID, op.Conditions)).
				SetUpdate(translatePatch(op.Patch))
			b.writes++
			b.guarded = b.guarded || len(op.Conditions) > 0
		case store.WriteDelete:
			model = mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": op.ID})
			ev.Type = store.ChangeRemoved
		default:
			return fmt.Errorf("unknown write kind %d", op.Kind)
		}

		b.models = append(b.models, model)
		b.events = append(b.events, ev)
	}

	for _, collection := range order {
		b := grouped[collection]
		res, err := s.db.Collection(collection).BulkWrite(ctx, b.models, options.BulkWrite().SetOrdered(true))
		if err != nil {
			return fmt.Errorf("bulk write %s: %w", collection, err)
		}
		for _, ev := range b.events {
			s.publish(ctx, ev)
		}
		if res.MatchedCount+res.UpsertedCount < b.writes {
			if b.guarded {
				return fmt.Errorf("bulk write %s: %w", collection, store.ErrConditionFailed)
			}
			return fmt.Errorf("bulk write %s: %w", collection, store.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query) (<-chan store.ChangeEvent, error) {
	return store.Watch(ctx, s.feed, q)
}

func (s *Store) publishCurrent(ctx context.Context, collection, id string) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		s.publish(ctx, store.ChangeEvent{Collection: collection, ID: id, Type: store.ChangeModified})
		return
	}
	s.publish(ctx, store.ChangeEvent{Collection: collection, ID: id, Type: store.ChangeModified, Doc: doc})
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

func fieldName(f string) string {
	if f == store.IDField {
		return "_id"
	}
	return f
}

// idFilter selects one document, optionally only while it matches conditions.
func idFilter(id string, conditions []store.Filter) bson.M {
	if len(conditions) == 0 {
		return bson.M{"_id": id}
	}
	return bson.M{"$and": []bson.M{{"_id": id}, buildFilter(conditions)}}
}

func buildFilter(filters []store.Filter) bson.M {
	if len(filters) == 0 {
		return bson.M{}
	}

	clauses := make([]bson.M, 0, len(filters))
	for _, f := range filters {
		field := fieldName(f.Field)
		switch f.Op {
		case store.OpIn:
			values, _ := f.Value.([]any)
			clauses = append(clauses, bson.M{field: bson.M{"$in": values}})
		case store.OpAbsent:
			// null matches both a missing field and an explicit null
			clauses = append(clauses, bson.M{field: nil})
		default:
			// equality on an array field matches any element, which is array-contains
			clauses = append(clauses, bson.M{field: f.Value})
		}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return bson.M{"$and": clauses}
}

// translatePatch maps a store patch onto $set, $currentDate and $addToSet.
func translatePatch(patch store.Patch) bson.M {
	set := bson.M{}
	currentDate := bson.M{}
	addToSet := bson.M{}

	for path, value := range patch {
		switch v := value.(type) {
		case store.ArrayUnionValue:
			addToSet[path] = bson.M{"$each": []any(v)}
		default:
			if v == store.ServerTimestamp {
				currentDate[path] = true
				continue
			}
			set[path] = v
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(currentDate) > 0 {
		update["$currentDate"] = currentDate
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	return update
}

// flatten turns nested objects into dotted $set paths so a merge keeps
// sibling fields.
func flatten(prefix string, doc store.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if k == store.IDField {
			continue
		}
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			for nk, nv := range flatten(path, store.Document(nested)) {
				out[nk] = nv
			}
			continue
		}
		out[path] = v
	}
	return out
}

func toBSON(doc store.Document, id string) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if k == store.IDField {
			continue
		}
		out[k] = v
	}
	out["_id"] = id
	return out
}

func fromBSON(raw bson.M) store.Document {
	doc := store.Document{}
	for k, v := range raw {
		if k == "_id" {
			doc[store.IDField] = fmt.Sprint(v)
			continue
		}
		doc[k] = fromBSONValue(v)
	}
	return doc
}

func fromBSONValue(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromBSONValue(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = fromBSONValue(item)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	}
	return v
}

// Package store defines the document store the portal runs on: collections of
// schemaless documents addressed by id, with simple filtered queries, patch
// updates, bounded batches and change subscriptions.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrConditionFailed = errors.New("document does not match update condition")
	ErrBatchTooLarge   = errors.New("batch exceeds maximum size")
)

// Store is implemented by the memory, MongoDB and PostgreSQL backends.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Add inserts doc under a generated id and returns it.
	Add(ctx context.Context, collection string, doc Document) (string, error)
	// Set writes doc under id. With merge the fields are merged into the stored document.
	Set(ctx context.Context, collection, id string, doc Document, merge bool) error
	// Update applies patch to an existing document. When conditions are given the
	// update only happens if the stored document matches all of them, otherwise
	// ErrConditionFailed is returned and nothing is written.
	Update(ctx context.Context, collection, id string, patch Patch, conditions ...Filter) error
	Delete(ctx context.Context, collection, id string) error
	// BatchWrite commits at most MaxBatchSize operations. An update op whose
	// Conditions do not match fails the batch with ErrConditionFailed.
	BatchWrite(ctx context.Context, ops []WriteOp) error
	// Subscribe streams changes of documents in q.Collection matching q.Filters
	// until ctx is done.
	Subscribe(ctx context.Context, q Query) (<-chan ChangeEvent, error)
}

type Operator string

const (
	OpEqual         Operator = "=="
	OpIn            Operator = "in"
	OpArrayContains Operator = "array-contains"
	OpAbsent        Operator = "absent"
)

type Filter struct {
	Field string
	Op    Operator
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func In(field string, values ...any) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// Absent matches documents where field is missing or null.
func Absent(field string) Filter {
	return Filter{Field: field, Op: OpAbsent}
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Patch maps dotted field paths to new values. Values may be ServerTimestamp or
// the result of ArrayUnion.
type Patch map[string]any

type serverValue string

// ServerTimestamp is replaced by the store clock when the write is committed.
const ServerTimestamp serverValue = "server-timestamp"

// ArrayUnionValue appends its elements to an array field, skipping those already present.
type ArrayUnionValue []any

func ArrayUnion(values ...any) ArrayUnionValue {
	return ArrayUnionValue(values)
}

type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteMerge
	WriteUpdate
	WriteDelete
)

type WriteOp struct {
	Kind       WriteKind
	Collection string
	ID         string
	Doc        Document
	Patch      Patch
	// Conditions guard WriteUpdate ops the same way as Store.Update.
	Conditions []Filter
}

func SetOp(collection, id string, doc Document) WriteOp {
	return WriteOp{Kind: WriteSet, Collection: collection, ID: id, Doc: doc}
}

func MergeOp(collection, id string, doc Document) WriteOp {
	return WriteOp{Kind: WriteMerge, Collection: collection, ID: id, Doc: doc}
}

func UpdateOp(collection, id string, patch Patch) WriteOp {
	return WriteOp{Kind: WriteUpdate, Collection: collection, ID: id, Patch: patch}
}

func DeleteOp(collection, id string) WriteOp {
	return WriteOp{Kind: WriteDelete, Collection: collection, ID: id}
}

// When returns a copy of op that only applies while the stored document
// matches conditions.
func (op WriteOp) When(conditions ...Filter) WriteOp {
	op.Conditions = append(op.Conditions[:len(op.Conditions):len(op.Conditions)], conditions...)
	return op
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent describes one committed write. Doc is the document after the
// write; it may be nil when the backend does not read it back.
type ChangeEvent struct {
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	Doc        Document   `json:"doc,omitempty"`
}

package repositories

import (
	"errors"
	"time"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// Collection names in the document store
const (
	CollectionUsers    = "users"
	CollectionRequests = "requests"
	CollectionFilieres = "filieres"
	CollectionMessages = "messages"
	CollectionLogs     = "logs"
	CollectionSystem   = "system"
)

// Collections lists every collection covered by backup and restore.
var Collections = []string{
	CollectionUsers,
	CollectionRequests,
	CollectionFilieres,
	CollectionMessages,
	CollectionLogs,
	CollectionSystem,
}

// mapStoreError translates store failures into model errors.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return models.ErrNotFound
	case errors.Is(err, store.ErrConditionFailed):
		return models.ErrConflict
	}
	return err
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

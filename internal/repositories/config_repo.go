package repositories

import (
	"context"
	"errors"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

const systemConfigID = "config"

// ConfigRepository reads and writes the system/config document.
type ConfigRepository struct {
	store store.Store
}

func NewConfigRepository(s store.Store) *ConfigRepository {
	return &ConfigRepository{store: s}
}

// Get returns the stored configuration. MessageDuration is zero when the
// field is absent or not a number.
func (r *ConfigRepository) Get(ctx context.Context) (*models.SystemConfig, error) {
	doc, err := r.store.Get(ctx, CollectionSystem, systemConfigID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.SystemConfig{}, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &models.SystemConfig{
		UpdatedBy: doc.String("updatedBy"),
		UpdatedAt: doc.TimePtr("updatedAt"),
	}
	if hours, ok := doc.Float("messageDuration"); ok {
		cfg.MessageDuration = hours
	}
	return cfg, nil
}

func (r *ConfigRepository) SetMessageDuration(ctx context.Context, hours float64, updatedBy string) error {
	return r.store.Set(ctx, CollectionSystem, systemConfigID, store.Document{
		"messageDuration": hours,
		"updatedBy":       updatedBy,
		"updatedAt":       store.ServerTimestamp,
	}, true)
}

// Watch streams changes to the system collection.
func (r *ConfigRepository) Watch(ctx context.Context) (<-chan store.ChangeEvent, error) {
	return r.store.Subscribe(ctx, store.Query{Collection: CollectionSystem})
}

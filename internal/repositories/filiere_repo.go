package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

type FiliereRepository struct {
	store store.Store
}

func NewFiliereRepository(s store.Store) *FiliereRepository {
	return &FiliereRepository{store: s}
}

func filiereFromDocument(doc store.Document) *models.Filiere {
	return &models.Filiere{
		ID:           doc.ID(),
		Name:         doc.String("name"),
		Niveau:       doc.String("niveau"),
		Major:        doc.String("major"),
		DelegateID:   doc.String("delegateId"),
		WhatsappLink: doc.String("whatsappLink"),
		CreatedAt:    doc.Time("createdAt"),
		UpdatedAt:    doc.Time("updatedAt"),
	}
}

func (r *FiliereRepository) GetByID(ctx context.Context, id string) (*models.Filiere, error) {
	doc, err := r.store.Get(ctx, CollectionFilieres, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return filiereFromDocument(doc), nil
}

func (r *FiliereRepository) Create(ctx context.Context, f *models.Filiere) (*models.Filiere, error) {
	id, err := r.store.Add(ctx, CollectionFilieres, store.Document{
		"name":         f.Name,
		"niveau":       f.Niveau,
		"major":        f.Major,
		"delegateId":   f.DelegateID,
		"whatsappLink": f.WhatsappLink,
		"createdAt":    store.ServerTimestamp,
		"updatedAt":    store.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filiere: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *FiliereRepository) Update(ctx context.Context, id string, patch store.Patch) error {
	patch["updatedAt"] = store.ServerTimestamp
	return mapStoreError(r.store.Update(ctx, CollectionFilieres, id, patch))
}

func (r *FiliereRepository) Delete(ctx context.Context, id string) error {
	return mapStoreError(r.store.Delete(ctx, CollectionFilieres, id))
}

func (r *FiliereRepository) List(ctx context.Context) ([]*models.Filiere, error) {
	return r.query(ctx)
}

// ListByDelegate returns the filieres a delegate is assigned to, optionally
// restricted to one niveau.
func (r *FiliereRepository) ListByDelegate(ctx context.Context, delegateID, niveau string) ([]*models.Filiere, error) {
	filters := []store.Filter{store.Eq("delegateId", delegateID)}
	if niveau != "" {
		filters = append(filters, store.Eq("niveau", niveau))
	}
	return r.query(ctx, filters...)
}

func (r *FiliereRepository) query(ctx context.Context, filters ...store.Filter) ([]*models.Filiere, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: CollectionFilieres,
		Filters:    filters,
		OrderBy:    "name",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list filieres: %w", err)
	}

	filieres := make([]*models.Filiere, 0, len(docs))
	for _, doc := range docs {
		filieres = append(filieres, filiereFromDocument(doc))
	}
	return filieres, nil
}

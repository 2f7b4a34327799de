package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

type UserRepository struct {
	store store.Store
}

func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

// userFromDocument populates a User from a stored profile, defaulting
// fields older profiles do not carry.
func userFromDocument(doc store.Document) *models.User {
	user := &models.User{
		UID:              doc.ID(),
		Email:            doc.String("email"),
		FullName:         doc.String("fullName"),
		Phone:            doc.String("phone"),
		Role:             models.Role(doc.String("role")),
		Niveau:           doc.String("niveau"),
		Promo:            doc.String("promo"),
		Filiere:          doc.String("filiere"),
		FiliereID:        doc.String("filiereId"),
		Classe:           doc.String("classe"),
		IsApproved:       doc.Bool("isApproved"),
		IsSuspended:      doc.Bool("isSuspended"),
		Status:           doc.String("status"),
		MentorStatus:     models.MentorStatus(doc.String("mentorStatus")),
		ApprovedBy:       doc.String("approvedBy"),
		ApprovedAt:       doc.TimePtr("approvedAt"),
		SuspensionReason: doc.String("suspensionReason"),
		SuspendedBy:      doc.String("suspendedBy"),
		SuspendedAt:      doc.TimePtr("suspendedAt"),
		CreatedAt:        doc.Time("createdAt"),
		UpdatedAt:        doc.Time("updatedAt"),
	}

	if user.MentorStatus == "" {
		user.MentorStatus = models.MentorStatusNone
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	return user
}

func userToDocument(u *models.User) store.Document {
	return store.Document{
		"email":            u.Email,
		"fullName":         u.FullName,
		"phone":            u.Phone,
		"role":             string(u.Role),
		"niveau":           u.Niveau,
		"promo":            u.Promo,
		"filiere":          u.Filiere,
		"filiereId":        u.FiliereID,
		"classe":           u.Classe,
		"isApproved":       u.IsApproved,
		"isSuspended":      u.IsSuspended,
		"status":           u.Status,
		"mentorStatus":     string(u.MentorStatus),
		"approvedBy":       u.ApprovedBy,
		"approvedAt":       timeOrNil(u.ApprovedAt),
		"suspensionReason": u.SuspensionReason,
		"suspendedBy":      u.SuspendedBy,
		"suspendedAt":      timeOrNil(u.SuspendedAt),
		"createdAt":        store.ServerTimestamp,
		"updatedAt":        store.ServerTimestamp,
	}
}

func usersFromDocuments(docs []store.Document) []*models.User {
	users := make([]*models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, userFromDocument(doc))
	}
	return users
}

func (r *UserRepository) GetByID(ctx context.Context, uid string) (*models.User, error) {
	doc, err := r.store.Get(ctx, CollectionUsers, uid)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return userFromDocument(doc), nil
}

// Create stores a new profile under the user's uid.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, err := r.store.Get(ctx, CollectionUsers, user.UID); err == nil {
		return nil, models.ErrConflict
	}

	if err := r.store.Set(ctx, CollectionUsers, user.UID, userToDocument(user), false); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", mapStoreError(err))
	}
	return r.GetByID(ctx, user.UID)
}

// Update applies a partial update and stamps updatedAt.
func (r *UserRepository) Update(ctx context.Context, uid string, patch store.Patch) error {
	patch["updatedAt"] = store.ServerTimestamp
	if err := r.store.Update(ctx, CollectionUsers, uid, patch); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, nil)
}

func (r *UserRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	return r.query(ctx, []store.Filter{store.Eq("role", string(role))})
}

// ListPendingApproval returns accounts still waiting for validation.
func (r *UserRepository) ListPendingApproval(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, []store.Filter{store.Eq("isApproved", false)})
}

func (r *UserRepository) ListByFiliere(ctx context.Context, filiereID string) ([]*models.User, error) {
	return r.query(ctx, []store.Filter{store.Eq("filiereId", filiereID)})
}

// Watch streams changes to the users collection.
func (r *UserRepository) Watch(ctx context.Context) (<-chan store.ChangeEvent, error) {
	return r.store.Subscribe(ctx, store.Query{Collection: CollectionUsers})
}

func (r *UserRepository) query(ctx context.Context, filters []store.Filter) ([]*models.User, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: CollectionUsers,
		Filters:    filters,
		OrderBy:    "createdAt",
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return usersFromDocuments(docs), nil
}

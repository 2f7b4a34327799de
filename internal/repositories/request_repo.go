package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

type RequestRepository struct {
	store store.Store
}

func NewRequestRepository(s store.Store) *RequestRepository {
	return &RequestRepository{store: s}
}

func requestFromDocument(doc store.Document) *models.Request {
	req := &models.Request{
		ID:              doc.ID(),
		Type:            models.RequestType(doc.String("type")),
		UserID:          doc.String("userId"),
		UserName:        doc.String("userName"),
		UserEmail:       doc.String("userEmail"),
		UserPhone:       doc.String("userPhone"),
		UserRole:        models.Role(doc.String("userRole")),
		FiliereID:       doc.String("filiereId"),
		Niveau:          doc.String("niveau"),
		Motivation:      doc.String("motivation"),
		Status:          models.RequestStatus(doc.String("status")),
		DelegateComment: doc.String("delegateComment"),
		ProcessedBy:     doc.String("processedBy"),
		CreatedAt:       doc.Time("createdAt"),
		ProcessedAt:     doc.TimePtr("processedAt"),
		VerificationPIN: doc.String("verificationPin"),
		PINExpiresAt:    doc.TimePtr("pinExpiresAt"),
		IsVerified:      doc.Bool("isVerified"),
	}
	if req.Type == "" {
		req.Type = models.RequestTypeMembership
	}
	return req
}

func requestToDocument(r *models.Request) store.Document {
	return store.Document{
		"type":            string(r.Type),
		"userId":          r.UserID,
		"userName":        r.UserName,
		"userEmail":       r.UserEmail,
		"userPhone":       r.UserPhone,
		"userRole":        string(r.UserRole),
		"filiereId":       r.FiliereID,
		"niveau":          r.Niveau,
		"motivation":      r.Motivation,
		"status":          string(r.Status),
		"delegateComment": r.DelegateComment,
		"processedBy":     r.ProcessedBy,
		"createdAt":       store.ServerTimestamp,
		"processedAt":     timeOrNil(r.ProcessedAt),
	}
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	doc, err := r.store.Get(ctx, CollectionRequests, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return requestFromDocument(doc), nil
}

func (r *RequestRepository) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	id, err := r.store.Add(ctx, CollectionRequests, requestToDocument(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *RequestRepository) ListByUser(ctx context.Context, userID string) ([]*models.Request, error) {
	return r.query(ctx, store.Eq("userId", userID))
}

// ListActiveByUser returns the user's pending or approved requests of any type.
func (r *RequestRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.Request, error) {
	return r.query(ctx,
		store.Eq("userId", userID),
		store.In("status", string(models.RequestStatusPending), string(models.RequestStatusApproved)),
	)
}

func (r *RequestRepository) ListPendingByUser(ctx context.Context, userID string) ([]*models.Request, error) {
	return r.query(ctx,
		store.Eq("userId", userID),
		store.Eq("status", string(models.RequestStatusPending)),
	)
}

// ListByFiliere returns the filiere's requests, optionally restricted to one status.
func (r *RequestRepository) ListByFiliere(ctx context.Context, filiereID string, status models.RequestStatus) ([]*models.Request, error) {
	filters := []store.Filter{store.Eq("filiereId", filiereID)}
	if status != "" {
		filters = append(filters, store.Eq("status", string(status)))
	}
	return r.query(ctx, filters...)
}

func (r *RequestRepository) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.Request, error) {
	return r.query(ctx, store.Eq("status", string(status)))
}

// FindByPIN returns the user's newest request carrying pin. Codes are only
// unique per user.
func (r *RequestRepository) FindByPIN(ctx context.Context, userID, pin string) (*models.Request, error) {
	requests, err := r.query(ctx, store.Eq("userId", userID), store.Eq("verificationPin", pin))
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, models.ErrNotFound
	}
	return requests[0], nil
}

// Transition moves a pending request to a terminal status. The write only
// happens while the stored request is still pending, so of two concurrent
// deciders the first one wins and the second gets ErrInvalidTransition.
func (r *RequestRepository) Transition(ctx context.Context, id string, to models.RequestStatus, patch store.Patch) error {
	if !models.CanTransition(models.RequestStatusPending, to) {
		return models.ErrInvalidTransition
	}

	patch["status"] = string(to)
	err := r.store.Update(ctx, CollectionRequests, id, patch, store.Eq("status", string(models.RequestStatusPending)))
	if errors.Is(err, store.ErrConditionFailed) {
		return models.ErrInvalidTransition
	}
	return mapStoreError(err)
}

func (r *RequestRepository) Update(ctx context.Context, id string, patch store.Patch) error {
	return mapStoreError(r.store.Update(ctx, CollectionRequests, id, patch))
}

// ApproveMany approves those of ids that are still pending, in bounded
// batches, and returns how many it approved. A request decided since it was
// listed keeps its decision.
func (r *RequestRepository) ApproveMany(ctx context.Context, ids []string, processedBy string) (int, error) {
	pending := store.Eq("status", string(models.RequestStatusPending))
	ops := make([]store.WriteOp, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, store.UpdateOp(CollectionRequests, id, approvalPatch(processedBy)).When(pending))
	}

	err := store.RunBatches(ctx, r.store, ops, store.MaxBatchSize, nil)
	if err == nil {
		return len(ids), nil
	}

	var batchErr *store.BatchError
	if !errors.As(err, &batchErr) {
		return 0, err
	}
	if !errors.Is(err, store.ErrConditionFailed) {
		return batchErr.Completed, err
	}

	// Some request of the failed chunk was decided concurrently. Approve the
	// rest one at a time and skip the decided ones.
	approved := batchErr.Completed
	for _, id := range ids[batchErr.Completed:] {
		err := r.Transition(ctx, id, models.RequestStatusApproved, approvalPatch(processedBy))
		switch {
		case err == nil:
			approved++
		case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrNotFound):
		default:
			return approved, &store.BatchError{Completed: approved, Total: len(ids), Err: err}
		}
	}
	return approved, nil
}

func approvalPatch(processedBy string) store.Patch {
	return store.Patch{
		"status":      string(models.RequestStatusApproved),
		"processedBy": processedBy,
		"processedAt": store.ServerTimestamp,
	}
}

func (r *RequestRepository) query(ctx context.Context, filters ...store.Filter) ([]*models.Request, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: CollectionRequests,
		Filters:    filters,
		OrderBy:    "createdAt",
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	requests := make([]*models.Request, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, requestFromDocument(doc))
	}
	return requests, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// AccountRepository is the subset of repositories.UserRepository used for
// account validation.
type AccountRepository interface {
	GetByID(ctx context.Context, uid string) (*models.User, error)
	Update(ctx context.Context, uid string, patch store.Patch) error
	ListPendingApproval(ctx context.Context) ([]*models.User, error)
}

// PendingRequestRepository finds and bulk-approves a user's pending requests.
type PendingRequestRepository interface {
	ListPendingByUser(ctx context.Context, userID string) ([]*models.Request, error)
	ApproveMany(ctx context.Context, ids []string, processedBy string) (int, error)
}

// ApproveUserResult reports the primary effect and, when the request cascade
// failed, a warning for the caller.
type ApproveUserResult struct {
	User             *models.User
	ApprovedRequests int
	Warning          string
}

// ValidationService keeps User.isApproved and the user's pending requests
// consistent when an account is validated directly.
type ValidationService struct {
	users    AccountRepository
	requests PendingRequestRepository
	filieres FiliereReader
	audit    *AuditService
	logger   *slog.Logger
}

func NewValidationService(
	users AccountRepository,
	requests PendingRequestRepository,
	filieres FiliereReader,
	audit *AuditService,
	logger *slog.Logger,
) *ValidationService {
	return &ValidationService{
		users:    users,
		requests: requests,
		filieres: filieres,
		audit:    audit,
		logger:   logger,
	}
}

// ApproveUser validates the account, then best-effort approves the user's
// pending requests when role is student or delegate. A cascade failure is
// reported as a warning; the account stays approved.
func (s *ValidationService) ApproveUser(ctx context.Context, viewer models.Viewer, uid string, role models.Role) (*ApproveUserResult, error) {
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, viewer, user); err != nil {
		return nil, err
	}
	if role == "" {
		role = user.Role
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrBadRequest, role)
	}

	err = s.users.Update(ctx, uid, store.Patch{
		"isApproved": true,
		"approvedBy": viewer.UID,
		"approvedAt": store.ServerTimestamp,
		"status":     models.UserStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve user: %w", err)
	}

	result := &ApproveUserResult{}
	if role == models.RoleStudent || role == models.RoleDelegate {
		n, err := s.approvePendingRequests(ctx, viewer, uid)
		result.ApprovedRequests = n
		if err != nil {
			s.logger.WarnContext(ctx, "request cascade failed after user approval",
				slog.String("user_id", uid),
				slog.Any("error", err),
			)
			result.Warning = "account approved but pending requests could not be updated: " + err.Error()
		}
	}

	s.audit.Record(ctx, viewer, models.ActionUserApproved, uid, "role="+string(role))

	updated, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	result.User = updated
	return result, nil
}

// RejectUser suspends the account. Unlike ApproveUser it leaves the user's
// requests untouched.
func (s *ValidationService) RejectUser(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, viewer, user); err != nil {
		return nil, err
	}
	if uid == viewer.UID {
		return nil, fmt.Errorf("%w: cannot reject your own account", models.ErrBadRequest)
	}

	reason = strings.TrimSpace(reason)
	err = s.users.Update(ctx, uid, store.Patch{
		"isApproved":       false,
		"status":           models.UserStatusSuspended,
		"suspensionReason": reason,
		"suspendedBy":      viewer.UID,
		"suspendedAt":      store.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject user: %w", err)
	}

	s.audit.Record(ctx, viewer, models.ActionUserSuspended, uid, reason)
	return s.users.GetByID(ctx, uid)
}

// ListPendingAccounts returns accounts waiting for validation.
func (s *ValidationService) ListPendingAccounts(ctx context.Context, viewer models.Viewer) ([]*models.User, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}
	users, err := s.users.ListPendingApproval(ctx)
	if err != nil {
		return nil, err
	}

	// Rejected accounts are also unapproved; only those never decided are pending.
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.Status != models.UserStatusSuspended {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *ValidationService) approvePendingRequests(ctx context.Context, viewer models.Viewer, uid string) (int, error) {
	pending, err := s.requests.ListPendingByUser(ctx, uid)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.ID)
	}
	return s.requests.ApproveMany(ctx, ids, viewer.UID)
}

// authorize admits admins, and delegates for members of a filiere they delegate.
func (s *ValidationService) authorize(ctx context.Context, viewer models.Viewer, user *models.User) error {
	if viewer.IsAdmin() {
		return nil
	}
	if viewer.Role != models.RoleDelegate || user.FiliereID == "" {
		return models.ErrForbidden
	}

	filiere, err := s.filieres.GetByID(ctx, user.FiliereID)
	if err != nil || !CanDecide(viewer, filiere) {
		return models.ErrForbidden
	}
	return nil
}

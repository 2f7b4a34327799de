package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// UserRepository is the subset of repositories.UserRepository used by UserService.
type UserRepository interface {
	GetByID(ctx context.Context, uid string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, uid string, patch store.Patch) error
	List(ctx context.Context) ([]*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	ListByFiliere(ctx context.Context, filiereID string) ([]*models.User, error)
}

// FiliereAssigner reads filieres and records their delegate.
type FiliereAssigner interface {
	GetByID(ctx context.Context, id string) (*models.Filiere, error)
	Update(ctx context.Context, id string, patch store.Patch) error
}

// ProfileInput is what a user supplies when completing signup.
type ProfileInput struct {
	FullName  string
	Phone     string
	Role      models.Role
	Niveau    string
	Promo     string
	FiliereID string
	Classe    string
}

// UserService handles profile and moderation business logic
type UserService struct {
	users    UserRepository
	filieres FiliereAssigner
	requests RequestRepository
	audit    *AuditService
	logger   *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	users UserRepository,
	filieres FiliereAssigner,
	requests RequestRepository,
	audit *AuditService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		filieres: filieres,
		requests: requests,
		audit:    audit,
		logger:   logger,
	}
}

func (s *UserService) GetProfile(ctx context.Context, uid string) (*models.User, error) {
	return s.users.GetByID(ctx, uid)
}

// CreateProfile stores the profile of a freshly signed-up user. Only student
// and alumni can be chosen at signup; alumni wait for validation.
func (s *UserService) CreateProfile(ctx context.Context, uid, email string, input ProfileInput) (*models.User, error) {
	if input.Role != models.RoleStudent && input.Role != models.RoleAlumni {
		return nil, fmt.Errorf("%w: role must be student or alumni", models.ErrBadRequest)
	}

	user := &models.User{
		UID:          uid,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         input.Role,
		Niveau:       input.Niveau,
		Promo:        input.Promo,
		Classe:       input.Classe,
		IsApproved:   input.Role.ApprovedAtSignup(),
		Status:       models.UserStatusActive,
		MentorStatus: models.MentorStatusNone,
	}

	if input.FiliereID != "" {
		filiere, err := s.filieres.GetByID(ctx, input.FiliereID)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown filiere", models.ErrBadRequest)
		}
		user.FiliereID = filiere.ID
		user.Filiere = filiere.Name
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile created",
		slog.String("user_id", uid),
		slog.String("role", string(created.Role)),
		slog.Bool("approved", created.IsApproved),
	)
	return created, nil
}

// ListUsers returns every user, or one role. Delegates only see the members
// of their own filiere.
func (s *UserService) ListUsers(ctx context.Context, viewer models.Viewer, role models.Role) ([]*models.User, error) {
	switch viewer.Role {
	case models.RoleAdmin:
		if role != "" {
			return s.users.ListByRole(ctx, role)
		}
		return s.users.List(ctx)
	case models.RoleDelegate:
		if viewer.FiliereID == "" {
			return []*models.User{}, nil
		}
		return s.users.ListByFiliere(ctx, viewer.FiliereID)
	}
	return nil, models.ErrForbidden
}

func (s *UserService) Suspend(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if uid == viewer.UID {
		return nil, fmt.Errorf("%w: cannot suspend your own account", models.ErrBadRequest)
	}
	if _, err := s.users.GetByID(ctx, uid); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	err := s.users.Update(ctx, uid, store.Patch{
		"isSuspended":      true,
		"status":           models.UserStatusSuspended,
		"suspensionReason": reason,
		"suspendedBy":      viewer.UID,
		"suspendedAt":      store.ServerTimestamp,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, viewer, models.ActionSuspendUser, uid, reason)
	return s.users.GetByID(ctx, uid)
}

func (s *UserService) Unsuspend(ctx context.Context, viewer models.Viewer, uid string) (*models.User, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if _, err := s.users.GetByID(ctx, uid); err != nil {
		return nil, err
	}

	err := s.users.Update(ctx, uid, store.Patch{
		"isSuspended":      false,
		"status":           models.UserStatusActive,
		"suspensionReason": "",
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, viewer, models.ActionUnsuspendUser, uid, "")
	return s.users.GetByID(ctx, uid)
}

// PromoteToDelegate makes uid the delegate of the filiere.
func (s *UserService) PromoteToDelegate(ctx context.Context, viewer models.Viewer, uid, filiereID string) (*models.User, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}

	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAlumni {
		return nil, fmt.Errorf("%w: alumni cannot be delegates", models.ErrBadRequest)
	}
	filiere, err := s.filieres.GetByID(ctx, filiereID)
	if err != nil {
		return nil, err
	}

	patch := store.Patch{
		"filiereId": filiere.ID,
		"filiere":   filiere.Name,
	}
	if user.Role != models.RoleAdmin {
		patch["role"] = string(models.RoleDelegate)
	}
	if err := s.users.Update(ctx, uid, patch); err != nil {
		return nil, err
	}
	if err := s.filieres.Update(ctx, filiere.ID, store.Patch{"delegateId": uid}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, viewer, models.ActionPromoteToDelegate, uid, "filiere="+filiere.ID)
	return s.users.GetByID(ctx, uid)
}

// RequestMentorRole files a mentorship request for an approved alumni member.
func (s *UserService) RequestMentorRole(ctx context.Context, viewer models.Viewer, motivation string) (*models.Request, error) {
	user, err := s.users.GetByID(ctx, viewer.UID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAlumni || !user.IsApproved {
		return nil, models.ErrForbidden
	}
	if user.MentorStatus == models.MentorStatusPending || user.MentorStatus == models.MentorStatusApproved {
		return nil, models.ErrDuplicateRequest
	}

	active, err := s.requests.ListActiveByUser(ctx, user.UID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, models.ErrDuplicateRequest
	}

	req, err := s.requests.Create(ctx, &models.Request{
		Type:       models.RequestTypeMentor,
		UserID:     user.UID,
		UserName:   user.FullName,
		UserEmail:  user.Email,
		UserPhone:  user.Phone,
		UserRole:   user.Role,
		Niveau:     user.Niveau,
		Motivation: strings.TrimSpace(motivation),
		Status:     models.RequestStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user.UID, store.Patch{"mentorStatus": string(models.MentorStatusPending)}); err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveMentor approves a pending mentorship request and the requester's
// mentor status.
func (s *UserService) ApproveMentor(ctx context.Context, viewer models.Viewer, requestID string) (*models.User, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Type != models.RequestTypeMentor {
		return nil, fmt.Errorf("%w: not a mentorship request", models.ErrBadRequest)
	}

	err = s.requests.Transition(ctx, requestID, models.RequestStatusApproved, store.Patch{
		"processedBy": viewer.UID,
		"processedAt": store.ServerTimestamp,
	})
	if err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, req.UserID, store.Patch{"mentorStatus": string(models.MentorStatusApproved)}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, viewer, models.ActionApproveMentorRequest, req.UserID, "request="+requestID)
	return s.users.GetByID(ctx, req.UserID)
}

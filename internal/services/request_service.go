package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
)

// RequestRepository is the subset of repositories.RequestRepository used by the services.
type RequestRepository interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
	Create(ctx context.Context, req *models.Request) (*models.Request, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Request, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.Request, error)
	ListByFiliere(ctx context.Context, filiereID string, status models.RequestStatus) ([]*models.Request, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.Request, error)
	FindByPIN(ctx context.Context, userID, pin string) (*models.Request, error)
	Transition(ctx context.Context, id string, to models.RequestStatus, patch store.Patch) error
	Update(ctx context.Context, id string, patch store.Patch) error
}

// FiliereReader is the read side of the filiere collection.
type FiliereReader interface {
	GetByID(ctx context.Context, id string) (*models.Filiere, error)
	ListByDelegate(ctx context.Context, delegateID, niveau string) ([]*models.Filiere, error)
}

// ProfileReader loads stored user profiles.
type ProfileReader interface {
	GetByID(ctx context.Context, uid string) (*models.User, error)
}

// DecisionNotifier tells a requester that their request was decided.
type DecisionNotifier interface {
	NotifyDecision(ctx context.Context, req *models.Request, link *models.AccessLink) error
}

// SubmitRequestInput is the requester-supplied part of a membership request.
type SubmitRequestInput struct {
	FiliereID  string
	Niveau     string
	Motivation string
}

const pinAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RequestService runs the membership request lifecycle:
// pending → approved | rejected, with no transition out of a terminal state.
type RequestService struct {
	requests RequestRepository
	filieres FiliereReader
	users    ProfileReader
	audit    *AuditService
	notifier DecisionNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewRequestService(
	requests RequestRepository,
	filieres FiliereReader,
	users ProfileReader,
	audit *AuditService,
	notifier DecisionNotifier,
	logger *slog.Logger,
) *RequestService {
	return &RequestService{
		requests: requests,
		filieres: filieres,
		users:    users,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit creates a pending request for the viewer. A user holding a pending
// or approved request of any type gets ErrDuplicateRequest.
func (s *RequestService) Submit(ctx context.Context, viewer models.Viewer, input SubmitRequestInput) (*models.Request, error) {
	user, err := s.users.GetByID(ctx, viewer.UID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrProfileMissing
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if _, err := s.filieres.GetByID(ctx, input.FiliereID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown filiere", models.ErrBadRequest)
		}
		return nil, fmt.Errorf("failed to load filiere: %w", err)
	}

	active, err := s.requests.ListActiveByUser(ctx, viewer.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing requests: %w", err)
	}
	if len(active) > 0 {
		return nil, models.ErrDuplicateRequest
	}

	req, err := s.requests.Create(ctx, &models.Request{
		Type:       models.RequestTypeMembership,
		UserID:     user.UID,
		UserName:   user.FullName,
		UserEmail:  user.Email,
		UserPhone:  user.Phone,
		UserRole:   user.Role,
		FiliereID:  input.FiliereID,
		Niveau:     input.Niveau,
		Motivation: strings.TrimSpace(input.Motivation),
		Status:     models.RequestStatusPending,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request submitted",
		slog.String("request_id", req.ID),
		slog.String("user_id", req.UserID),
		slog.String("filiere_id", req.FiliereID),
	)
	return req, nil
}

// Approve moves a pending request to approved and issues the verification PIN.
// Of two concurrent decisions the first one wins; the second gets
// ErrInvalidTransition and has no side effect.
func (s *RequestService) Approve(ctx context.Context, viewer models.Viewer, id string) (*models.Request, error) {
	req, filiere, err := s.loadForDecision(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	pin, err := generatePIN()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	err = s.requests.Transition(ctx, id, models.RequestStatusApproved, store.Patch{
		"processedBy":     viewer.UID,
		"processedAt":     store.ServerTimestamp,
		"verificationPin": pin,
		"pinExpiresAt":    s.now().Add(models.PINValidity).UTC(),
		"isVerified":      false,
	})
	if err != nil {
		return nil, err
	}

	action := models.ActionApproveRequest
	if viewer.IsAdmin() {
		action = models.ActionAdminApproveRequest
	}
	s.audit.Record(ctx, viewer, action, id, "user="+req.UserID+" filiere="+req.FiliereID)

	return s.afterDecision(ctx, id, filiere)
}

// Reject moves a pending request to rejected. An empty reason stores the
// default comment.
func (s *RequestService) Reject(ctx context.Context, viewer models.Viewer, id, reason string) (*models.Request, error) {
	req, filiere, err := s.loadForDecision(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = models.DefaultRejectComment
	}

	err = s.requests.Transition(ctx, id, models.RequestStatusRejected, store.Patch{
		"processedBy":     viewer.UID,
		"processedAt":     store.ServerTimestamp,
		"delegateComment": reason,
	})
	if err != nil {
		return nil, err
	}

	action := models.ActionRejectRequest
	if viewer.IsAdmin() {
		action = models.ActionAdminRejectRequest
	}
	s.audit.Record(ctx, viewer, action, id, "user="+req.UserID+" reason="+reason)

	return s.afterDecision(ctx, id, filiere)
}

// AccessLink joins an approved request with its filiere at read time. A
// deleted filiere or an empty link yields Configured=false, never an error.
func (s *RequestService) AccessLink(ctx context.Context, viewer models.Viewer, id string) (*models.AccessLink, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.UserID != viewer.UID && !viewer.IsAdmin() {
		filiere := s.lookupFiliere(ctx, req.FiliereID)
		if !CanDecide(viewer, filiere) {
			return nil, models.ErrForbidden
		}
	}
	if req.Status != models.RequestStatusApproved {
		return nil, fmt.Errorf("%w: request is %s", models.ErrForbidden, req.Status)
	}

	return buildAccessLink(req, s.lookupFiliere(ctx, req.FiliereID)), nil
}

// VerifyPIN checks a verification code issued to the viewer and marks the
// request verified.
func (s *RequestService) VerifyPIN(ctx context.Context, viewer models.Viewer, pin string) (*models.AccessLink, error) {
	pin = strings.ToUpper(strings.TrimSpace(pin))
	if len(pin) != models.PINLength {
		return nil, models.ErrInvalidPIN
	}

	req, err := s.requests.FindByPIN(ctx, viewer.UID, pin)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidPIN
		}
		return nil, err
	}
	if req.UserID != viewer.UID || req.Status != models.RequestStatusApproved {
		return nil, models.ErrInvalidPIN
	}
	if req.PINExpiresAt == nil || s.now().After(*req.PINExpiresAt) {
		return nil, models.ErrPINExpired
	}

	link := buildAccessLink(req, s.lookupFiliere(ctx, req.FiliereID))
	if !link.Configured {
		return link, nil
	}

	if !req.IsVerified {
		if err := s.requests.Update(ctx, req.ID, store.Patch{"isVerified": true}); err != nil {
			return nil, err
		}
	}
	return link, nil
}

func (s *RequestService) ListMine(ctx context.Context, viewer models.Viewer) ([]*models.Request, error) {
	return s.requests.ListByUser(ctx, viewer.UID)
}

// ListForDelegate returns the requests of every filiere the viewer delegates,
// optionally restricted to one status.
func (s *RequestService) ListForDelegate(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error) {
	if viewer.Role != models.RoleDelegate && !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}

	filieres, err := s.filieres.ListByDelegate(ctx, viewer.UID, "")
	if err != nil {
		return nil, err
	}

	out := make([]*models.Request, 0)
	for _, f := range filieres {
		requests, err := s.requests.ListByFiliere(ctx, f.ID, status)
		if err != nil {
			return nil, err
		}
		out = append(out, requests...)
	}
	return out, nil
}

// ListByStatus is the admin queue.
func (s *RequestService) ListByStatus(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error) {
	if !viewer.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if status == "" {
		status = models.RequestStatusPending
	}
	return s.requests.ListByStatus(ctx, status)
}

// CanDecide reports whether viewer may approve or reject requests of the
// filiere. Admins always can; a delegate only for the filiere they are
// assigned to. A nil filiere (deleted after submission) is admin only.
func CanDecide(viewer models.Viewer, filiere *models.Filiere) bool {
	if viewer.IsAdmin() {
		return true
	}
	return viewer.Role == models.RoleDelegate && filiere != nil && filiere.DelegateID == viewer.UID
}

func (s *RequestService) loadForDecision(ctx context.Context, viewer models.Viewer, id string) (*models.Request, *models.Filiere, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	filiere := s.lookupFiliere(ctx, req.FiliereID)
	if !CanDecide(viewer, filiere) {
		return nil, nil, models.ErrForbidden
	}
	if req.Status != models.RequestStatusPending {
		return nil, nil, models.ErrInvalidTransition
	}
	return req, filiere, nil
}

// lookupFiliere returns nil when the filiere is gone or cannot be read.
func (s *RequestService) lookupFiliere(ctx context.Context, id string) *models.Filiere {
	if id == "" {
		return nil
	}
	f, err := s.filieres.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to load filiere", slog.String("filiere_id", id), slog.Any("error", err))
		}
		return nil
	}
	return f
}

func (s *RequestService) afterDecision(ctx context.Context, id string, filiere *models.Filiere) (*models.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		var link *models.AccessLink
		if req.Status == models.RequestStatusApproved {
			link = buildAccessLink(req, filiere)
		}
		if err := s.notifier.NotifyDecision(ctx, req, link); err != nil {
			s.logger.WarnContext(ctx, "failed to send decision email",
				slog.String("request_id", id),
				slog.Any("error", err),
			)
		}
	}
	return req, nil
}

func buildAccessLink(req *models.Request, filiere *models.Filiere) *models.AccessLink {
	link := &models.AccessLink{
		RequestID: req.ID,
		FiliereID: req.FiliereID,
	}
	if filiere != nil {
		link.FiliereName = filiere.Name
		link.WhatsappLink = filiere.WhatsappLink
		link.Configured = filiere.WhatsappLink != ""
	}
	return link
}

func generatePIN() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(pinAlphabet)))
	for i := 0; i < models.PINLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(pinAlphabet[n.Int64()])
	}
	return b.String(), nil
}

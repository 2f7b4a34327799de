package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the interface for profile and moderation logic
type UserService interface {
	GetProfile(ctx context.Context, uid string) (*models.User, error)
	CreateProfile(ctx context.Context, uid, email string, input services.ProfileInput) (*models.User, error)
	ListUsers(ctx context.Context, viewer models.Viewer, role models.Role) ([]*models.User, error)
	Suspend(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error)
	Unsuspend(ctx context.Context, viewer models.Viewer, uid string) (*models.User, error)
	PromoteToDelegate(ctx context.Context, viewer models.Viewer, uid, filiereID string) (*models.User, error)
	RequestMentorRole(ctx context.Context, viewer models.Viewer, motivation string) (*models.Request, error)
	ApproveMentor(ctx context.Context, viewer models.Viewer, requestID string) (*models.User, error)
}

// UserHandler handles profile, moderation and mentorship requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Request DTOs

// CreateProfileRequest is submitted once, right after signup with the auth provider
type CreateProfileRequest struct {
	FullName  string `json:"full_name" validate:"required,min=2,max=120"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Role      string `json:"role" validate:"required,oneof=student alumni"`
	Niveau    string `json:"niveau" validate:"required,max=64"`
	Promo     string `json:"promo" validate:"omitempty,max=32"`
	FiliereID string `json:"filiere_id" validate:"omitempty,max=128"`
	Classe    string `json:"classe" validate:"omitempty,max=64"`
}

// SuspendUserRequest carries the moderation reason
type SuspendUserRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// PromoteRequest names the filiere the new delegate takes over
type PromoteRequest struct {
	FiliereID string `json:"filiere_id" validate:"required"`
}

// MentorRequest is an alumni application to the mentorship program
type MentorRequest struct {
	Motivation string `json:"motivation" validate:"omitempty,max=2000"`
}

// GetProfile handles GET /profile. It only needs a verified token, so a
// client can tell whether signup still has to be completed.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	user, err := h.service.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeServiceError(w, r, models.ErrProfileMissing)
			return
		}
		writeServiceError(w, r, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// CreateProfile handles POST /profile
func (h *UserHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateProfileRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.CreateProfile(r.Context(), claims.Subject, claims.Email, services.ProfileInput{
		FullName:  req.FullName,
		Phone:     req.Phone,
		Role:      models.Role(req.Role),
		Niveau:    req.Niveau,
		Promo:     req.Promo,
		FiliereID: req.FiliereID,
		Classe:    req.Classe,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userToResponse(user))
}

// ListUsers handles GET /users?role=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		pkghttp.WriteBadRequest(w, "role must be one of: student delegate alumni admin")
		return
	}

	users, err := h.service.ListUsers(r.Context(), viewer, role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": usersToResponse(users),
		"total": len(users),
	})
}

// SuspendUser handles POST /users/{id}/suspend
func (h *UserHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req SuspendUserRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Suspend(r.Context(), viewer, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// UnsuspendUser handles POST /users/{id}/unsuspend
func (h *UserHandler) UnsuspendUser(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	user, err := h.service.Unsuspend(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// PromoteToDelegate handles POST /users/{id}/promote
func (h *UserHandler) PromoteToDelegate(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req PromoteRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.PromoteToDelegate(r.Context(), viewer, chi.URLParam(r, "id"), req.FiliereID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// RequestMentorRole handles POST /mentor-requests
func (h *UserHandler) RequestMentorRole(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req MentorRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.service.RequestMentorRole(r.Context(), viewer, req.Motivation)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, requestToResponse(created, viewer))
}

// ApproveMentor handles POST /mentor-requests/{id}/approve
func (h *UserHandler) ApproveMentor(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	user, err := h.service.ApproveMentor(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

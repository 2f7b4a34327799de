package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ValidationService defines account validation used by AccountHandler
type ValidationService interface {
	ApproveUser(ctx context.Context, viewer models.Viewer, uid string, role models.Role) (*services.ApproveUserResult, error)
	RejectUser(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error)
	ListPendingAccounts(ctx context.Context, viewer models.Viewer) ([]*models.User, error)
}

// AccountHandler exposes account validation to admins and delegates
type AccountHandler struct {
	service ValidationService
}

func NewAccountHandler(service ValidationService) *AccountHandler {
	return &AccountHandler{service: service}
}

// ApproveAccountRequest optionally overrides the role granted on approval
type ApproveAccountRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=student delegate alumni admin"`
}

// RejectAccountRequest carries the reason shown to the user
type RejectAccountRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ApproveAccountResponse reports the cascade outcome alongside the account.
// Warning is set when the account was approved but its pending requests were
// not all updated.
type ApproveAccountResponse struct {
	User             *UserResponse `json:"user"`
	ApprovedRequests int           `json:"approved_requests"`
	Warning          string        `json:"warning,omitempty"`
}

// ListPending handles GET /accounts/pending
func (h *AccountHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListPendingAccounts(r.Context(), viewer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": usersToResponse(users),
		"total": len(users),
	})
}

// Approve handles POST /accounts/{id}/approve
func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req ApproveAccountRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ApproveUser(r.Context(), viewer, chi.URLParam(r, "id"), models.Role(req.Role))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &ApproveAccountResponse{
		User:             userToResponse(result.User),
		ApprovedRequests: result.ApprovedRequests,
		Warning:          result.Warning,
	})
}

// Reject handles POST /accounts/{id}/reject
func (h *AccountHandler) Reject(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req RejectAccountRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.RejectUser(r.Context(), viewer, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

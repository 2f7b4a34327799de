package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RequestService defines the membership request lifecycle used by RequestHandler
type RequestService interface {
	Submit(ctx context.Context, viewer models.Viewer, input services.SubmitRequestInput) (*models.Request, error)
	Approve(ctx context.Context, viewer models.Viewer, id string) (*models.Request, error)
	Reject(ctx context.Context, viewer models.Viewer, id, reason string) (*models.Request, error)
	AccessLink(ctx context.Context, viewer models.Viewer, id string) (*models.AccessLink, error)
	VerifyPIN(ctx context.Context, viewer models.Viewer, pin string) (*models.AccessLink, error)
	ListMine(ctx context.Context, viewer models.Viewer) ([]*models.Request, error)
	ListForDelegate(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error)
	ListByStatus(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error)
}

// RequestHandler handles membership request HTTP requests
type RequestHandler struct {
	service RequestService
}

func NewRequestHandler(service RequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// SubmitRequest is the body of POST /requests
type SubmitRequest struct {
	FiliereID  string `json:"filiere_id" validate:"required,max=128"`
	Niveau     string `json:"niveau" validate:"omitempty,max=64"`
	Motivation string `json:"motivation" validate:"omitempty,max=2000"`
}

// RejectRequest is the body of POST /requests/{id}/reject
type RejectRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// VerifyPINRequest is the body of POST /requests/verify
type VerifyPINRequest struct {
	PIN string `json:"pin" validate:"required,max=16"`
}

// Submit handles POST /requests
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.service.Submit(r.Context(), viewer, services.SubmitRequestInput{
		FiliereID:  req.FiliereID,
		Niveau:     req.Niveau,
		Motivation: req.Motivation,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, requestToResponse(created, viewer))
}

// ListMine handles GET /requests/mine
func (h *RequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	reqs, err := h.service.ListMine(r.Context(), viewer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requestsToResponse(reqs, viewer),
	})
}

// List handles GET /requests?status=. Admins see every request in the
// status, delegates those of their filieres.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	status := models.RequestStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.RequestStatusPending, models.RequestStatusApproved, models.RequestStatusRejected:
	default:
		pkghttp.WriteBadRequest(w, "status must be one of: pending approved rejected")
		return
	}

	var (
		reqs []*models.Request
		err  error
	)
	if viewer.IsAdmin() && r.URL.Query().Get("scope") != "delegate" {
		reqs, err = h.service.ListByStatus(r.Context(), viewer, status)
	} else {
		reqs, err = h.service.ListForDelegate(r.Context(), viewer, status)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requestsToResponse(reqs, viewer),
		"total":    len(reqs),
	})
}

// Approve handles POST /requests/{id}/approve
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	req, err := h.service.Approve(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, requestToResponse(req, viewer))
}

// Reject handles POST /requests/{id}/reject. An empty reason gets the
// default comment.
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var body RejectRequest
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req, err := h.service.Reject(r.Context(), viewer, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, requestToResponse(req, viewer))
}

// AccessLink handles GET /requests/{id}/access-link
func (h *RequestHandler) AccessLink(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	link, err := h.service.AccessLink(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, accessLinkToResponse(link))
}

// VerifyPIN handles POST /requests/verify
func (h *RequestHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req VerifyPINRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	link, err := h.service.VerifyPIN(r.Context(), viewer, req.PIN)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, accessLinkToResponse(link))
}

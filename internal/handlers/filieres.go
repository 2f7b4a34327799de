package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/chi/v5"
)

// FiliereService defines class group management
type FiliereService interface {
	List(ctx context.Context) ([]*models.Filiere, error)
	Get(ctx context.Context, id string) (*models.Filiere, error)
	ListForDelegate(ctx context.Context, viewer models.Viewer, niveau string) ([]*models.Filiere, error)
	Create(ctx context.Context, viewer models.Viewer, input services.FiliereInput) (*models.Filiere, error)
	Update(ctx context.Context, viewer models.Viewer, id string, update services.FiliereUpdate) (*models.Filiere, error)
	Delete(ctx context.Context, viewer models.Viewer, id string) error
	AccessQRCode(ctx context.Context, viewer models.Viewer, id string) ([]byte, error)
}

type FiliereHandler struct {
	service FiliereService
}

func NewFiliereHandler(service FiliereService) *FiliereHandler {
	return &FiliereHandler{service: service}
}

// CreateFiliereRequest is the body of POST /filieres
type CreateFiliereRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Niveau       string `json:"niveau" validate:"required,max=64"`
	Major        string `json:"major" validate:"omitempty,max=120"`
	DelegateID   string `json:"delegate_id" validate:"omitempty,max=128"`
	WhatsappLink string `json:"whatsapp_link" validate:"omitempty,url,max=512"`
}

// UpdateFiliereRequest is the body of PATCH /filieres/{id}. An empty
// whatsapp_link clears the link.
type UpdateFiliereRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	Niveau       *string `json:"niveau" validate:"omitempty,min=1,max=64"`
	Major        *string `json:"major" validate:"omitempty,max=120"`
	DelegateID   *string `json:"delegate_id" validate:"omitempty,max=128"`
	WhatsappLink *string `json:"whatsapp_link" validate:"omitempty,max=512"`
}

// List handles GET /filieres
func (h *FiliereHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	filieres, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filieres": filieresToResponse(filieres, viewer),
	})
}

// ListMine handles GET /filieres/mine?niveau=
func (h *FiliereHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	filieres, err := h.service.ListForDelegate(r.Context(), viewer, r.URL.Query().Get("niveau"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filieres": filieresToResponse(filieres, viewer),
	})
}

// Get handles GET /filieres/{id}
func (h *FiliereHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	f, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, filiereToResponse(f, viewer))
}

// Create handles POST /filieres
func (h *FiliereHandler) Create(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req CreateFiliereRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	f, err := h.service.Create(r.Context(), viewer, services.FiliereInput{
		Name:         req.Name,
		Niveau:       req.Niveau,
		Major:        req.Major,
		DelegateID:   req.DelegateID,
		WhatsappLink: req.WhatsappLink,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, filiereToResponse(f, viewer))
}

// Update handles PATCH /filieres/{id}
func (h *FiliereHandler) Update(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req UpdateFiliereRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	f, err := h.service.Update(r.Context(), viewer, chi.URLParam(r, "id"), services.FiliereUpdate{
		Name:         req.Name,
		Niveau:       req.Niveau,
		Major:        req.Major,
		DelegateID:   req.DelegateID,
		WhatsappLink: req.WhatsappLink,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, filiereToResponse(f, viewer))
}

// Delete handles DELETE /filieres/{id}
func (h *FiliereHandler) Delete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), viewer, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QRCode handles GET /filieres/{id}/qr.png
func (h *FiliereHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	png, err := h.service.AccessQRCode(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

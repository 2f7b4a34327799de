package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/portal/internal/models"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
)

// ConfigService defines the system configuration operations
type ConfigService interface {
	Get(ctx context.Context) (*models.SystemConfig, error)
	SetMessageDuration(ctx context.Context, viewer models.Viewer, hours float64) error
}

type ConfigHandler struct {
	service ConfigService
}

func NewConfigHandler(service ConfigService) *ConfigHandler {
	return &ConfigHandler{service: service}
}

// ConfigResponse is the effective system configuration
type ConfigResponse struct {
	MessageDurationHours float64 `json:"message_duration_hours"`
	UpdatedBy            string  `json:"updated_by,omitempty"`
	UpdatedAt            *string `json:"updated_at,omitempty"`
}

// SetMessageDurationRequest is the body of PUT /config/message-duration
type SetMessageDurationRequest struct {
	Hours float64 `json:"hours" validate:"required,gte=1,lte=8760"`
}

// Get handles GET /config
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, &ConfigResponse{
		MessageDurationHours: cfg.MessageDuration,
		UpdatedBy:            cfg.UpdatedBy,
		UpdatedAt:            formatTimePtr(cfg.UpdatedAt),
	})
}

// SetMessageDuration handles PUT /config/message-duration
func (h *ConfigHandler) SetMessageDuration(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req SetMessageDurationRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.SetMessageDuration(r.Context(), viewer, req.Hours); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Get(w, r)
}

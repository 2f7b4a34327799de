package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
)

// AdminService defines the dashboard service contract.
type AdminService interface {
	GetDashboardStats(ctx context.Context, viewer models.Viewer) (*services.DashboardStatsResponse, error)
}

// AuditService lists the administrative audit trail.
type AuditService interface {
	List(ctx context.Context, viewer models.Viewer, targetID string, limit int) ([]*models.LogEntry, error)
}

// AdminHandler handles admin dashboard and audit trail requests.
type AdminHandler struct {
	service AdminService
	audit   AuditService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminService, audit AuditService) *AdminHandler {
	return &AdminHandler{service: service, audit: audit}
}

// GetDashboardStats handles GET /admin/stats
func (h *AdminHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetDashboardStats(r.Context(), viewer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// ListLogs handles GET /admin/logs?target=&limit=
// limit is 1-500, default 100.
func (h *AdminHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	entries, err := h.audit.List(r.Context(), viewer, r.URL.Query().Get("target"), queryLimit(r, 100, 500))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]*LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, logEntryToResponse(e))
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  out,
		"total": len(out),
	})
}

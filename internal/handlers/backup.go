package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
)

const maxBackupBytes = 32 << 20

// BackupService exports and restores every collection
type BackupService interface {
	Export(ctx context.Context, viewer models.Viewer) (map[string][]store.Document, error)
	Import(ctx context.Context, viewer models.Viewer, data map[string][]store.Document) (int, error)
}

type BackupHandler struct {
	service BackupService
}

func NewBackupHandler(service BackupService) *BackupHandler {
	return &BackupHandler{service: service}
}

// Export handles GET /backup. The dump is served as an attachment.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	data, err := h.service.Export(r.Context(), viewer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	name := fmt.Sprintf("portal-backup-%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	pkghttp.WriteJSON(w, http.StatusOK, data)
}

// Import handles POST /backup. Documents are upserted by id.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var data map[string][]store.Document
	r.Body = http.MaxBytesReader(w, r.Body, maxBackupBytes)
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		pkghttp.WriteBadRequest(w, "invalid backup file: "+err.Error())
		return
	}
	if len(data) == 0 {
		pkghttp.WriteBadRequest(w, "backup contains no collections")
		return
	}

	n, err := h.service.Import(r.Context(), viewer, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"imported": n})
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/portal/internal/inbox"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
	"github.com/BradenHooton/portal/internal/store"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/chi/v5"
)

// NotificationService defines messaging operations used by MessageHandler
type NotificationService interface {
	Send(ctx context.Context, viewer models.Viewer, draft services.MessageDraft) (*models.Message, error)
	MarkRead(ctx context.Context, viewer models.Viewer, id string) error
	Inbox(ctx context.Context, viewer models.Viewer) (*inbox.Inbox, error)
	List(ctx context.Context, viewer models.Viewer, limit int) ([]*models.Message, error)
	Edit(ctx context.Context, viewer models.Viewer, id string, edit services.MessageEdit) (*models.Message, error)
	Delete(ctx context.Context, viewer models.Viewer, id string) error
	DeleteAll(ctx context.Context, viewer models.Viewer, progress store.ProgressFunc) (int, error)
}

// MessageHandler handles message composition, inbox and moderation
type MessageHandler struct {
	service NotificationService
	logger  *slog.Logger
}

func NewMessageHandler(service NotificationService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{service: service, logger: logger}
}

// SendMessageRequest is the body of POST /messages
type SendMessageRequest struct {
	Title             string   `json:"title" validate:"required,max=200"`
	Content           string   `json:"content" validate:"required,max=5000"`
	Priority          string   `json:"priority" validate:"omitempty,oneof=normal high urgent"`
	Target            string   `json:"target" validate:"omitempty,oneof=all students alumni delegates admins filiere custom"`
	TargetFiliereID   string   `json:"target_filiere_id" validate:"omitempty,max=128"`
	IndividualUserIDs []string `json:"individual_user_ids" validate:"omitempty,max=500,dive,required,max=128"`
	DurationHours     *float64 `json:"duration_hours" validate:"omitempty,gt=0"`
}

// EditMessageRequest is the body of PATCH /messages/{id}
type EditMessageRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Content  *string `json:"content" validate:"omitempty,max=5000"`
	Priority *string `json:"priority" validate:"omitempty,oneof=normal high urgent"`
}

// Send handles POST /messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := h.service.Send(r.Context(), viewer, services.MessageDraft{
		Title:             req.Title,
		Content:           req.Content,
		Priority:          req.Priority,
		Target:            req.Target,
		TargetFiliereID:   req.TargetFiliereID,
		IndividualUserIDs: req.IndividualUserIDs,
		DurationHours:     req.DurationHours,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, messageToResponse(msg))
}

// Inbox handles GET /inbox
func (h *MessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	box, err := h.service.Inbox(r.Context(), viewer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, InboxToResponse(box))
}

// MarkRead handles POST /inbox/{id}/read. Repeating it is a no-op.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), viewer, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /messages?limit= (admin)
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	msgs, err := h.service.List(r.Context(), viewer, queryLimit(r, 100, 1000))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToResponse(m))
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": out,
		"total":    len(out),
	})
}

// Edit handles PATCH /messages/{id}
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := h.service.Edit(r.Context(), viewer, chi.URLParam(r, "id"), services.MessageEdit{
		Title:    req.Title,
		Content:  req.Content,
		Priority: req.Priority,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, messageToResponse(msg))
}

// Delete handles DELETE /messages/{id}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// DeleteAll handles DELETE /messages. A partial failure answers 500 with
// the number of deletions that were committed.
func (h *MessageHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	total, err := h.service.DeleteAll(r.Context(), viewer, func(completed, total int) {
		h.logger.InfoContext(r.Context(), "delete all messages progress",
			slog.Int("completed", completed),
			slog.Int("total", total),
		)
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"deleted": total})
}

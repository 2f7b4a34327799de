package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/portal/internal/models"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
)

// ChatService answers assistant messages. It never fails: backend errors
// come back as a fallback reply.
type ChatService interface {
	Reply(ctx context.Context, viewer models.Viewer, message string) string
}

type ChatHandler struct {
	service ChatService
}

func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

// Reply handles POST /chat
func (h *ChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &ChatResponse{
		Response: h.service.Reply(r.Context(), viewer, req.Message),
	})
}

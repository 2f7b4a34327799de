package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
)

// writeServiceError maps a service error onto the JSON error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var batchErr *store.BatchError
	switch {
	case errors.As(err, &batchErr):
		slog.ErrorContext(r.Context(), "batch write partially failed",
			slog.Int("completed", batchErr.Completed),
			slog.Int("total", batchErr.Total),
			slog.Any("error", batchErr.Err),
		)
		pkghttp.WriteErrorWithDetails(w, http.StatusInternalServerError, "partial_failure",
			"some writes were not applied", map[string]int{
				"completed": batchErr.Completed,
				"total":     batchErr.Total,
			})
	case errors.Is(err, models.ErrDuplicateRequest):
		pkghttp.WriteError(w, http.StatusConflict, "duplicate_request", err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		pkghttp.WriteError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, models.ErrInvalidPIN):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_pin", err.Error())
	case errors.Is(err, models.ErrPINExpired):
		pkghttp.WriteError(w, http.StatusGone, "pin_expired", err.Error())
	case errors.Is(err, models.ErrLinkNotConfigured):
		pkghttp.WriteError(w, http.StatusNotFound, "link_not_configured", err.Error())
	case errors.Is(err, models.ErrProfileMissing):
		pkghttp.WriteError(w, http.StatusNotFound, "profile_missing", err.Error())
	case errors.Is(err, models.ErrAccountSuspended):
		pkghttp.WriteError(w, http.StatusForbidden, "account_suspended", err.Error())
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, err.Error())
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, err.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		pkghttp.WriteInternalError(w, "internal server error")
	}
}

// requireViewer returns the session viewer or writes 401.
func requireViewer(w http.ResponseWriter, r *http.Request) (models.Viewer, bool) {
	viewer, ok := auth.GetViewer(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
	}
	return viewer, ok
}

// queryLimit parses ?limit=, falling back to def outside 1..upper.
func queryLimit(r *http.Request, def, upper int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= upper {
			return n
		}
	}
	return def
}

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/portal/internal/models"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/BradenHooton/portal/pkg/logger"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey holds the verified token claims
	ClaimsContextKey contextKey = "claims"
	// ViewerContextKey holds the models.Viewer built from the stored profile
	ViewerContextKey contextKey = "viewer"
)

// ProfileLoader fetches the stored profile of a verified uid.
type ProfileLoader interface {
	GetByID(ctx context.Context, uid string) (*models.User, error)
}

// Authenticator turns provider tokens into a per-request Viewer.
type Authenticator struct {
	tokens   *TokenManager
	profiles ProfileLoader
	security *logger.SecurityLogger
	ipConfig *pkghttp.IPConfig
}

func NewAuthenticator(tokens *TokenManager, profiles ProfileLoader, security *logger.SecurityLogger, ipConfig *pkghttp.IPConfig) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		profiles: profiles,
		security: security,
		ipConfig: ipConfig,
	}
}

// RequireToken validates the bearer token and stores its claims. It does not
// require a profile, so signup can complete one.
func (a *Authenticator) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, fromQuery, ok := extractToken(r)
		if !ok {
			pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
			return
		}

		claims, err := a.tokens.ValidateToken(tokenString)
		if err != nil {
			a.denied(r, logger.EventTokenRejected, "", err.Error())
			pkghttp.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		if fromQuery && a.security != nil {
			a.security.LogGranted(r.Context(), logger.SecurityEvent{
				EventType: logger.EventWebSocketAccepted,
				UserID:    claims.Subject,
				IPAddress: pkghttp.ExtractClientIP(r, a.ipConfig),
				Path:      r.URL.Path,
			})
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireViewer loads the caller's profile and refuses suspended accounts.
// Must run after RequireToken.
func (a *Authenticator) RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r)
		if claims == nil {
			pkghttp.WriteUnauthorized(w, "unauthorized")
			return
		}

		user, err := a.profiles.GetByID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				a.denied(r, logger.EventProfileMissing, claims.Subject, "")
				pkghttp.WriteError(w, http.StatusForbidden, "profile_missing", models.ErrProfileMissing.Error())
				return
			}
			slog.ErrorContext(r.Context(), "failed to load profile",
				slog.String("user_id", claims.Subject),
				slog.Any("error", err),
			)
			pkghttp.WriteInternalError(w, "internal server error")
			return
		}

		if user.Suspended() {
			a.denied(r, logger.EventAccountSuspended, user.UID, user.SuspensionReason)
			pkghttp.WriteError(w, http.StatusForbidden, "account_suspended", models.ErrAccountSuspended.Error())
			return
		}

		ctx := ContextWithViewer(r.Context(), models.ViewerFromUser(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole creates a middleware that admits only the given roles.
// Must run after RequireViewer.
func RequireRole(roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, ok := GetViewer(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}
			for _, role := range roles {
				if viewer.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			pkghttp.WriteForbidden(w, "forbidden: insufficient permissions")
		})
	}
}

// GetClaims extracts the verified token claims from the request context
func GetClaims(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetViewer extracts the session viewer from the request context
func GetViewer(r *http.Request) (models.Viewer, bool) {
	viewer, ok := r.Context().Value(ViewerContextKey).(models.Viewer)
	return viewer, ok
}

func ContextWithViewer(ctx context.Context, viewer models.Viewer) context.Context {
	return context.WithValue(ctx, ViewerContextKey, viewer)
}

// extractToken reads the bearer token. Browsers cannot set headers on a
// WebSocket handshake, so upgrades may pass it as the token query parameter.
func extractToken(r *http.Request) (token string, fromQuery, ok bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false, false
		}
		return parts[1], false, true
	}

	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if q := r.URL.Query().Get("token"); q != "" {
			return q, true, true
		}
	}
	return "", false, false
}

func (a *Authenticator) denied(r *http.Request, eventType, uid, reason string) {
	if a.security == nil {
		return
	}
	a.security.LogDenied(r.Context(), logger.SecurityEvent{
		EventType: eventType,
		UserID:    uid,
		IPAddress: pkghttp.ExtractClientIP(r, a.ipConfig),
		Path:      r.URL.Path,
		Reason:    reason,
	})
}

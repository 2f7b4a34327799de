package routes

import (
	"net/http"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/handlers"
	"github.com/BradenHooton/portal/internal/middleware"
	"github.com/BradenHooton/portal/internal/models"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups everything the route table dispatches to.
type Handlers struct {
	Users    *handlers.UserHandler
	Requests *handlers.RequestHandler
	Accounts *handlers.AccountHandler
	Messages *handlers.MessageHandler
	Config   *handlers.ConfigHandler
	Filieres *handlers.FiliereHandler
	Chat     *handlers.ChatHandler
	Backup   *handlers.BackupHandler
	Admin    *handlers.AdminHandler
	// Inbox serves the WebSocket push endpoint.
	Inbox http.HandlerFunc
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, authn *auth.Authenticator, ipConfig *pkghttp.IPConfig) {
	submitLimit := middleware.RateLimitByViewer(middleware.DefaultSubmissionRateLimit(ipConfig))
	chatLimit := middleware.RateLimitByViewer(middleware.DefaultChatRateLimit(ipConfig))

	router.Group(func(r chi.Router) {
		r.Use(authn.RequireToken)

		// Signup: a verified token without a stored profile
		r.Get("/profile", h.Users.GetProfile)
		r.Post("/profile", h.Users.CreateProfile)

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireViewer)

			// Any signed-in user
			r.Get("/ws/inbox", h.Inbox)
			r.Get("/inbox", h.Messages.Inbox)
			r.Post("/inbox/{id}/read", h.Messages.MarkRead)
			r.Get("/config", h.Config.Get)
			r.Get("/filieres", h.Filieres.List)
			r.Get("/filieres/{id}", h.Filieres.Get)
			r.Get("/requests/mine", h.Requests.ListMine)
			r.Get("/requests/{id}/access-link", h.Requests.AccessLink)
			r.With(submitLimit).Post("/requests", h.Requests.Submit)
			r.With(submitLimit).Post("/requests/verify", h.Requests.VerifyPIN)
			r.With(chatLimit).Post("/chat", h.Chat.Reply)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleAlumni))
				r.Post("/mentor-requests", h.Users.RequestMentorRole)
			})

			// Delegates and admins
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleDelegate, models.RoleAdmin))
				r.Get("/requests", h.Requests.List)
				r.Post("/requests/{id}/approve", h.Requests.Approve)
				r.Post("/requests/{id}/reject", h.Requests.Reject)
				r.Post("/messages", h.Messages.Send)
				r.Get("/filieres/mine", h.Filieres.ListMine)
				r.Get("/filieres/{id}/qr.png", h.Filieres.QRCode)
				r.Post("/accounts/{id}/approve", h.Accounts.Approve)
				r.Post("/accounts/{id}/reject", h.Accounts.Reject)
			})

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleAdmin))
				r.Get("/users", h.Users.ListUsers)
				r.Post("/users/{id}/suspend", h.Users.SuspendUser)
				r.Post("/users/{id}/unsuspend", h.Users.UnsuspendUser)
				r.Post("/users/{id}/promote", h.Users.PromoteToDelegate)
				r.Post("/mentor-requests/{id}/approve", h.Users.ApproveMentor)

				r.Get("/accounts/pending", h.Accounts.ListPending)

				r.Get("/messages", h.Messages.List)
				r.Patch("/messages/{id}", h.Messages.Edit)
				r.Delete("/messages/{id}", h.Messages.Delete)
				r.Delete("/messages", h.Messages.DeleteAll)

				r.Put("/config/message-duration", h.Config.SetMessageDuration)

				r.Post("/filieres", h.Filieres.Create)
				r.Patch("/filieres/{id}", h.Filieres.Update)
				r.Delete("/filieres/{id}", h.Filieres.Delete)

				r.Get("/admin/stats", h.Admin.GetDashboardStats)
				r.Get("/admin/logs", h.Admin.ListLogs)

				r.Get("/backup", h.Backup.Export)
				r.Post("/backup", h.Backup.Import)
			})
		})
	})
}

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/domyjob/domyjob/internal/auth"
	"github.com/domyjob/domyjob/internal/ratelimit"
	"github.com/domyjob/domyjob/internal/web/handlers"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	AuthHandler          *handlers.AuthHandler
	ContextHandler       *handlers.ContextHandler
	TaskHandler          *handlers.TaskHandler
	ConversationHandler  *handlers.ConversationHandler
	AIHandler            *handlers.AIHandler
	LearningHandler      *handlers.LearningHandler
	EmailHandler         *handlers.EmailHandler
	EmailResponseHandler *handlers.EmailResponseHandler
	ScreenshotHandler    *handlers.ScreenshotHandler
	AuthService          *auth.Service
	Limiter              *ratelimit.Limiter
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public auth routes (rate limited against credential stuffing)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter))

		r.Post("/api/auth/signup", deps.AuthHandler.HandleSignup)
		r.Post("/api/auth/login", deps.AuthHandler.HandleLogin)
	})

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.AuthService))
		r.Use(middleware.CSRF)

		r.Post("/api/auth/logout", deps.AuthHandler.HandleLogout)
		r.Get("/api/auth/me", deps.AuthHandler.HandleMe)
		r.Post("/api/auth/token", deps.AuthHandler.HandleIssueToken)

		r.Get("/api/contexts", deps.ContextHandler.HandleList)
		r.Post("/api/contexts", deps.ContextHandler.HandleCreate)
		r.Put("/api/contexts/{id}", deps.ContextHandler.HandleUpdate)
		r.Delete("/api/contexts/{id}", deps.ContextHandler.HandleDelete)
		r.Post("/api/upload", deps.ContextHandler.HandleUpload)

		r.Get("/api/tasks", deps.TaskHandler.HandleList)
		r.Post("/api/tasks", deps.TaskHandler.HandleCreate)
		r.Put("/api/tasks/{id}", deps.TaskHandler.HandleUpdate)

		r.Get("/api/conversations", deps.ConversationHandler.HandleList)
		r.Post("/api/conversations", deps.ConversationHandler.HandleCreate)
		r.Get("/api/conversations/{id}/messages", deps.ConversationHandler.HandleListMessages)
		r.Post("/api/conversations/{id}/messages", deps.ConversationHandler.HandlePostMessage)

		r.Get("/api/learning-progress", deps.LearningHandler.HandleList)
		r.Post("/api/learning-progress", deps.LearningHandler.HandleUpsert)

		r.Get("/api/email/settings", deps.EmailHandler.HandleGetSettings)
		r.Post("/api/email/settings", deps.EmailHandler.HandleSaveSettings)
		r.Get("/api/email/providers", deps.EmailHandler.HandleProviders)
		r.Post("/api/email/sync", deps.EmailHandler.HandleSync)
		r.Get("/api/email/inbox", deps.EmailHandler.HandleInbox)
		r.Get("/api/email/{id}", deps.EmailHandler.HandleGetEmail)
		r.Get("/api/email/{id}/responses", deps.EmailHandler.HandleListResponses)
		r.Post("/api/email/{id}/generate-response", deps.EmailHandler.HandleGenerateResponse)
		r.Put("/api/email/response/{id}", deps.EmailResponseHandler.HandleUpdate)
		r.Post("/api/email/response/{id}/send", deps.EmailResponseHandler.HandleSend)

		// AI helpers and screenshot analysis share the model budget; both
		// are rate limited.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter))

			r.Post("/api/ai/draft-email", deps.AIHandler.HandleDraftEmail)
			r.Post("/api/ai/summarize", deps.AIHandler.HandleSummarize)
			r.Post("/api/screenshot/process", deps.ScreenshotHandler.HandleProcess)
			r.Post("/api/screenshot/save-context", deps.ScreenshotHandler.HandleSaveContext)
		})
	})

	return r
}

package api

import (
	"net/http"
	"time"

	"github.com/andsome/alpo-core/internal/api/handler"
	custommiddleware "github.com/andsome/alpo-core/internal/api/middleware"
	"github.com/andsome/alpo-core/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps carries the constructed handlers into the router. Store selection and
// manager wiring happen in the composition root, not here.
type Deps struct {
	JWTManager *security.JWTManager
	Auth       *handler.AuthHandler
	Chat       *handler.ChatHandler
	News       *handler.NewsHandler
	Health     *handler.HealthHandler
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMiddleware := custommiddleware.NewAuthMiddleware(deps.JWTManager)

	r.Get("/health", deps.Health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", deps.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/auth/logout", deps.Auth.Logout)

			r.Route("/chat", func(r chi.Router) {
				r.Get("/messages", deps.Chat.ListMessages)
				r.Post("/messages", deps.Chat.SendMessage)
				r.Post("/retry", deps.Chat.RetryLast)
				r.Get("/session", deps.Chat.GetSession)
				r.Delete("/history", deps.Chat.ClearHistory)
			})

			r.Route("/news", func(r chi.Router) {
				r.Get("/", deps.News.List)
				r.Post("/refresh", deps.News.Refresh)
			})
		})
	})

	return r
}

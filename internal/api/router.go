package api

import (
	"log/slog"
	"net/http"
	"time"

	"tracking_cf/internal/api/handler"
	"tracking_cf/internal/api/middleware"
	"tracking_cf/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

type Handlers struct {
	Users       *handler.UserHandler
	Submissions *handler.SubmissionHandler
	Contests    *handler.ContestHandler
	Admin       *handler.AdminHandler
}

func NewRouter(h Handlers, allowedOrigins []string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Verifier only parses the bearer token; admin routes enforce it.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/users", h.Users.RegisterRoutes)
		v1.Route("/submissions", h.Submissions.RegisterRoutes)
		v1.Group(h.Contests.RegisterRoutes)
		v1.Route("/admin", h.Admin.RegisterRoutes)
	})

	return r
}

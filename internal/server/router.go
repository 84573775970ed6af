package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ssokit/ssoapi/internal/auth"
	ssomiddleware "github.com/ssokit/ssoapi/internal/middleware"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

// RouterOptions controls the construction of the HTTP router.
// The zero value is valid; sensible defaults are applied where fields are not set.
type RouterOptions struct {
	IAMService    iam.Service
	Provider      *auth.Provider
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://localhost:5174",
			"http://127.0.0.1:5174",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the API handlers mounted. The router can be tailored via RouterOptions for
// CLI usage, tests, or other entrypoints.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.IAMService != nil {
		r.Use(ssomiddleware.MultiAuthMiddleware(opts.IAMService))
	}

	// Apply custom middleware passed from the caller.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if opts.IAMService != nil {
		svc := opts.IAMService

		// Session lifecycle.
		r.Post("/auth/register", HandleRegister(svc))
		r.Post("/auth/login", HandleLogin(svc))
		r.Post("/auth/refresh", HandleRefresh(svc))
		r.With(ssomiddleware.RequireAuthenticated).Post("/auth/logout", HandleLogout(svc))

		// Self-service settings.
		r.Route("/settings", func(r chi.Router) {
			r.Use(ssomiddleware.RequireAuthenticated)
			r.Get("/info", HandleAccountInfo())
			r.Post("/change-password", HandleChangePassword(svc))
			r.Post("/change-email", HandleChangeEmail(svc))
		})

		// OAuth2 application management.
		r.Route("/oauth/applications", func(r chi.Router) {
			r.Use(ssomiddleware.RequireApplicationManager)
			r.Post("/", HandleCreateApplication(svc))
			r.Get("/", HandleListApplications(svc))
			r.Get("/{clientID}", HandleGetApplication(svc))
			r.Delete("/{clientID}", HandleDeleteApplication(svc))
		})

		// Admin user management.
		r.Route("/admin/users", func(r chi.Router) {
			r.Use(ssomiddleware.RequireAdmin)
			r.Get("/", HandleAdminListUsers(svc))
			r.Post("/", HandleAdminCreateUser(svc))
			r.Get("/{id}", HandleAdminGetUser(svc))
			r.Patch("/{id}", HandleAdminUpdateUser(svc))
		})
	}

	// OIDC provider endpoints and the authorization login form.
	if opts.Provider != nil {
		log.Println("Mounting OIDC provider router")
		if opts.IAMService != nil {
			r.Get("/oauth/login", HandleLoginForm())
			r.Post("/oauth/login", HandleLoginSubmit(opts.IAMService, opts.Provider.Storage))
		}
		r.Mount("/", opts.Provider.Handler())
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

// NewH2CHandler wraps the shared router with an h2c server to provide HTTP/2
// over cleartext during development.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router := NewRouter(opts)
	return h2c.NewHandler(router, &http2.Server{}), nil
}

package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/platformsec/rbacgate/internal/config"
)

// RouterOptions controls the construction of the gateway HTTP router.
// Sensible defaults are applied where fields are not set; Identity is
// required for the authenticated surface to function.
type RouterOptions struct {
	Cfg           *config.Config
	Identity      func(http.Handler) http.Handler
	Access        *AccessHandlers
	Management    *ManagementHandlers
	Status        *StatusHandler
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
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"x-rh-identity",
			"x-rh-rbac-psk",
			"x-rh-rbac-account",
			"x-rh-rbac-client-id",
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
// the gateway handlers mounted. The identity middleware runs before every
// route it guards, so handlers always observe a resolved principal and an
// active tenant scope.
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

	// Apply custom middleware passed from the caller.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if opts.Identity != nil {
		r.Use(opts.Identity)
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	prefix := "/api/rbac/v1"
	if opts.Cfg != nil && opts.Cfg.APIPathPrefix != "" {
		prefix = strings.TrimSuffix(opts.Cfg.APIPathPrefix, "/")
	}

	r.Route(prefix, func(api chi.Router) {
		if opts.Status != nil {
			api.Get("/status/", opts.Status.GetStatus)
			api.Get("/status", opts.Status.GetStatus)
		}
		if opts.Access != nil {
			api.Get("/access/", opts.Access.GetAccess)
			api.Get("/access", opts.Access.GetAccess)
		}
		if opts.Management != nil {
			opts.Management.Mount(api)
		}
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

// NewH2CHandler wraps the shared router with an h2c server to provide
// HTTP/2 over cleartext for in-cluster callers.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router := NewRouter(opts)
	return h2c.NewHandler(router, &http2.Server{}), nil
}

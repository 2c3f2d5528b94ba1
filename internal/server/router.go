package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	crmsmiddleware "github.com/ppandrangi/crms/internal/middleware"
	"github.com/ppandrangi/crms/internal/services/validation"
	"github.com/ppandrangi/crms/internal/telemetry"
)

// RouterOptions controls the construction of the CRMS HTTP router.
// Services left nil have their routes skipped.
type RouterOptions struct {
	IAM       iamService
	Incidents incidentService
	Evidence  evidenceService
	Validator validation.Validator

	// Tokens verifies bearer tokens for the Access Gate. Without it no route
	// is gated and mutating handlers answer 401.
	Tokens         crmsmiddleware.TokenVerifier
	ProtectedPaths []string

	ServerMetrics *telemetry.ServerMetrics
	AuthMetrics   *telemetry.AuthMetrics

	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the CORS policy for the given browser origins.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, the
// Access Gate and the CRMS handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions(nil)
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.ServerMetrics != nil {
		r.Use(opts.ServerMetrics.Middleware)
	}

	if opts.Tokens != nil {
		r.Use(crmsmiddleware.NewAccessGate(crmsmiddleware.AccessGateConfig{
			Verifier:       opts.Tokens,
			ProtectedPaths: opts.ProtectedPaths,
			Metrics:        opts.AuthMetrics,
		}))
	} else {
		log.Println("WARNING: Access Gate disabled - no token verifier configured")
	}

	// Apply custom middleware passed from the caller.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.IAM != nil {
		r.Post("/auth/login", HandleLogin(opts.IAM, opts.Validator))
		r.Get("/users", HandleListUsers(opts.IAM))
		r.Post("/users", HandleCreateUser(opts.IAM, opts.Validator))
	} else {
		log.Println("WARNING: Skipping /auth and /users routes - IAM service not available")
	}

	if opts.Incidents != nil {
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", HandleListIncidents(opts.Incidents))
			r.Post("/", HandleCreateIncident(opts.Incidents, opts.Validator))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", HandleGetIncident(opts.Incidents))
				r.Patch("/", HandleUpdateIncident(opts.Incidents, opts.Validator))
				r.Delete("/", HandleDeleteIncident(opts.Incidents))

				if opts.Evidence != nil {
					r.Get("/evidence", HandleListEvidence(opts.Evidence))
					r.Post("/evidence", HandleCreateEvidence(opts.Evidence, opts.Validator))
					r.Delete("/evidence/{evidenceId}", HandleDeleteEvidence(opts.Evidence))
				}
			})
		})
	} else {
		log.Println("WARNING: Skipping /incidents routes - incident service not available")
	}

	return r
}

// NewH2CHandler wraps the router with an h2c server to provide HTTP/2 over
// cleartext alongside HTTP/1.1.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}

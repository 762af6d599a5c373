// Package api exposes search, parsing, validation and review over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/convocatoriaspro/convocatorias/internal/auth"
	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/search"
	"github.com/convocatoriaspro/convocatorias/internal/store"
)

const (
	maxBodyBytes         = 1 << 20
	maxValidationRecords = 50
)

// SearchService runs and reads searches.
type SearchService interface {
	Search(ctx context.Context, userID string, q model.SearchQuery, strategy model.Strategy) (*search.Result, error)
	Get(ctx context.Context, runID string) (*search.Result, error)
	List(ctx context.Context, filter store.RunFilter) ([]model.SearchRun, error)
	Review(ctx context.Context, userID, resultID string, review model.ReviewState) (*model.ResultRecord, error)
	ParseText(ctx context.Context, text string) (model.ResultRecord, error)
}

// Validator checks records against their source pages.
type Validator interface {
	ValidateBatch(ctx context.Context, records []model.ResultRecord, concurrency int, timeout time.Duration) []model.ValidationOutcome
}

// ValidationStore persists validation outcomes.
type ValidationStore interface {
	SaveValidation(ctx context.Context, o model.ValidationOutcome) error
}

// Deps are the collaborators behind the handlers. Validations may be nil.
type Deps struct {
	Search      SearchService
	Validator   Validator
	Validations ValidationStore
	Verifier    *auth.Verifier
}

// Options tune the router.
type Options struct {
	// RateLimit is requests per second per client IP. 0 disables limiting.
	RateLimit      float64
	RateBurst      int
	CORSOrigins    []string
	RequestTimeout time.Duration
	// ValidateConcurrency and ValidateTimeout are used when a request omits them.
	ValidateConcurrency int
	ValidateTimeout     time.Duration
}

type handlers struct {
	deps Deps
	opts Options
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps, opts Options) http.Handler {
	h := &handlers{deps: deps, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.RateLimit > 0 {
		r.Use(newIPLimiter(opts.RateLimit, max(opts.RateBurst, 1)).middleware)
	}
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate(deps.Verifier))

		r.Post("/search", h.createSearch)
		r.Get("/search", h.listSearches)
		r.Get("/search/{id}", h.getSearch)
		r.Post("/parse", h.parseText)
		r.Post("/validate", h.validate)
		r.Patch("/results/{id}", h.review)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

package api

import (
	"net/http"
	"time"

	"github.com/bluecrab/gis-backend/internal/analytics"
	"github.com/bluecrab/gis-backend/internal/middleware"
	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ImportTTL is how long a validated upload waits for commit.
const ImportTTL = 30 * time.Minute

type Options struct {
	AllowedOrigins []string
	Limiter        *rate.Limiter
	Gatherer       prometheus.Gatherer
}

func New(store *survey.Store, agg *analytics.Aggregator, log *zap.Logger) *Handler {
	return &Handler{
		store:   store,
		agg:     agg,
		pending: newPendingImports(ImportTTL),
		log:     log.Named("api"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.listRecords)
		r.Post("/", h.createRecord)
		r.Delete("/", h.deleteAll)
		r.Post("/manual", h.createManual)
		r.Post("/batch", h.createBatch)
		r.Post("/delete", h.deleteSelected)
		r.Get("/{id}", h.getRecord)
		r.Put("/{id}", h.updateRecord)
		r.Delete("/{id}", h.deleteRecord)
	})

	r.Get("/observers", h.listObservers)
	r.Post("/observers", h.resolveObserver)
	r.Get("/locations", h.listLocations)
	r.Post("/locations/resolve", h.resolveLocation)

	r.Post("/imports", h.previewImport)
	r.Post("/imports/{token}/commit", h.commitImport)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/monthly", h.monthlyTotals)
		r.Get("/regional", h.regionalTotals)
		r.Get("/sex", h.sexDistribution)
		r.Get("/summary", h.summary)
		r.Get("/filters", h.filterOptions)
		r.Get("/distribution", h.distribution)
		r.Get("/map", h.mapMarkers)
	})

	return r
}

// NewRouter mounts the API under /api with the shared middleware stack and
// exposes /metrics when a gatherer is given.
func NewRouter(h *Handler, opts Options, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(middleware.RateLimit(opts.Limiter))
		}
		r.Mount("/api", h.Routes())
	})
	return r
}

package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/internal/provider"
	"github.com/pitabwire/pokerub/internal/search"
	"github.com/pitabwire/pokerub/model"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Catalogue *provider.CatalogueProvider
	Evolution *provider.EvolutionProvider
	Favorites *provider.FavoritesProvider

	// Search defaults to a backend over Catalogue.
	Search search.Backend

	HealthHandler  http.Handler
	ReadyHandler   http.Handler
	MetricsHandler http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints skip the
// handler timeout and request logging.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	if deps.Search == nil && deps.Catalogue != nil {
		deps.Search = search.NewProviderBackend(deps.Catalogue)
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.Method(http.MethodGet, "/healthz", orDefault(deps.HealthHandler, observability.HandleHealth()))
	r.Method(http.MethodGet, "/readyz", orDefault(deps.ReadyHandler, observability.HandleReady(observability.ReadinessChecks{})))
	metricsPath := deps.Config.Observability.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Method(http.MethodGet, metricsPath, orDefault(deps.MetricsHandler, observability.Handler()))

	r.Route("/v1", func(r chi.Router) {
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Get("/types", handleTypes)

		r.Route("/catalogue", func(r chi.Router) {
			r.Get("/", handleCataloguePage(deps.Catalogue))
			r.Get("/feed", handleFeed(deps.Catalogue))
			r.Post("/feed/next", handleFeedNext(deps.Catalogue))
			r.Get("/{ref}", handleDetail(deps.Catalogue))
			r.Get("/{ref}/id", handleIDByName(deps.Catalogue))
			r.Get("/{ref}/species", handleSpecies(deps.Catalogue))
			r.Get("/{ref}/evolution", handleEvolution(deps.Evolution))
		})

		r.Get("/search", handleSearch(deps.Catalogue, deps.Search, deps.Config.Search, deps.Metrics))

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", handleListFavorites(deps.Favorites))
			r.Post("/", handleAddFavorite(deps.Favorites))
			r.Delete("/", handleClearFavorites(deps.Favorites))
			r.Get("/{id}", handleIsFavorite(deps.Favorites))
			r.Delete("/{id}", handleRemoveFavorite(deps.Favorites))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, model.NewNotFoundError("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error": map[string]string{"code": "METHOD_NOT_ALLOWED", "message": "method not allowed"},
		})
	})

	return r
}

func orDefault(h, def http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return def
}

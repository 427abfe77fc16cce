package dashboard

import (
	"net/http"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMiddleware builds the dashboard handler. Paths are relative to the
// mount point; hosts strip their prefix before calling it. Nil options use
// DefaultOptions and nil routes use DefaultRoutes.
func NewMiddleware(storage jobs.Storage, options *Options, routes *RouteCollection) http.Handler {
	if options == nil {
		options = DefaultOptions()
	}
	if routes == nil {
		routes = DefaultRoutes()
	}

	o11y := options.observability()
	config := options.configuration()
	logger := o11y.Logger().With(observability.String("component", "dashboard"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(newStatsCollector(storage))
	var gatherer prometheus.Gatherer = registry
	if options.MetricsGatherer != nil {
		gatherer = prometheus.Gatherers{registry, options.MetricsGatherer}
	}

	dc := &Context{
		Storage:       storage,
		Options:       options,
		Configuration: config,
		Client:        jobs.NewClient(storage, o11y),
		Logger:        logger,
		metrics:       promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}

	requests := o11y.Metrics().Counter("dashboard_requests_total", "Dashboard requests by route and status.", "route", "status")

	router := chi.NewRouter()
	router.Use(authorize(options, logger))
	for _, route := range routes.Routes() {
		router.Method(route.Method, route.Pattern, serve(dc, route, requests))
	}
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), logger, w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), logger, w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

func authorize(options *Options, logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, filter := range options.Authorization {
				if filter.Authorize(r) {
					continue
				}
				if c, ok := filter.(Challenger); ok {
					c.Challenge(w)
				}
				logger.Warn(r.Context(), "dashboard request unauthorized",
					observability.String("remote_addr", r.RemoteAddr),
					observability.String("path", r.URL.Path),
				)
				writeError(r.Context(), logger, w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func serve(dc *Context, route Route, requests observability.Counter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route.Mutating && dc.Options.IsReadOnly {
			requests.Inc(r.Context(), observability.String("route", route.Pattern), observability.String("status", "403"))
			writeError(r.Context(), dc.Logger, w, http.StatusForbidden, "dashboard is read-only")
			return
		}

		requests.Inc(r.Context(), observability.String("route", route.Pattern), observability.String("status", "served"))
		route.Handler(w, r, dc)
	})
}

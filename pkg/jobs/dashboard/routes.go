package dashboard

import (
	"net/http"
	"sync"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

// Context carries what a route needs to serve one request.
type Context struct {
	Storage       jobs.Storage
	Options       *Options
	Configuration *jobs.GlobalConfiguration
	Client        *jobs.Client
	Logger        observability.Logger

	metrics http.Handler
}

// RouteHandler serves a dashboard route.
type RouteHandler func(w http.ResponseWriter, r *http.Request, dc *Context)

// Route is a single dashboard endpoint. Patterns use chi syntax.
type Route struct {
	Method   string
	Pattern  string
	Handler  RouteHandler
	Mutating bool
}

// RouteCollection is the set of routes a dashboard serves. It is safe for
// concurrent use.
type RouteCollection struct {
	mu     sync.RWMutex
	routes []Route
}

// NewRouteCollection creates an empty collection.
func NewRouteCollection() *RouteCollection {
	return &RouteCollection{}
}

// Add appends a route. Methods other than GET and HEAD are mutating.
func (c *RouteCollection) Add(method, pattern string, handler RouteHandler) *RouteCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, Route{
		Method:   method,
		Pattern:  pattern,
		Handler:  handler,
		Mutating: method != http.MethodGet && method != http.MethodHead,
	})
	return c
}

// Routes returns a copy of the routes in registration order.
func (c *RouteCollection) Routes() []Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Route(nil), c.routes...)
}

// Len returns the number of routes.
func (c *RouteCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes)
}

// DefaultRoutes returns the built-in API.
func DefaultRoutes() *RouteCollection {
	return NewRouteCollection().
		Add(http.MethodGet, "/", overview).
		Add(http.MethodGet, "/api/stats", stats).
		Add(http.MethodGet, "/api/jobs", listJobs).
		Add(http.MethodGet, "/api/jobs/{id}", getJob).
		Add(http.MethodPost, "/api/jobs/{id}/requeue", requeueJob).
		Add(http.MethodPost, "/api/jobs/{id}/delete", deleteJob).
		Add(http.MethodGet, "/api/servers", servers).
		Add(http.MethodGet, "/api/recurring", listRecurring).
		Add(http.MethodPost, "/api/recurring/{id}/trigger", triggerRecurring).
		Add(http.MethodGet, "/metrics", metrics)
}

package hosting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"github.com/go-chi/chi/v5"
)

// ApplicationBuilder is the surface that extensions use to plug into a host:
// the service container and path-scoped request routing.
type ApplicationBuilder interface {
	ApplicationServices() ServiceProvider

	// Map dispatches every request under pathMatch to handler.
	Map(pathMatch string, handler http.Handler) error
}

// Application is a chi based web host with a service container and
// lifecycle events.
type Application struct {
	settings settings
	router   *chi.Mux
	server   *http.Server
	services ServiceProvider
	lifetime *Lifetime
	logger   observability.Logger

	mu       sync.Mutex
	mounts   map[string]struct{}
	listener net.Listener
	serveErr chan error

	stopOnce sync.Once
	stopErr  error
}

var _ ApplicationBuilder = (*Application)(nil)

// New creates an application. The lifetime and the observability provider are
// registered into services before the provider is built, so extensions can
// resolve them.
func New(services *ServiceCollection, options ...Option) *Application {
	s := defaultSettings
	for _, option := range options {
		s = option(s)
	}

	if services == nil {
		services = NewServiceCollection()
	}

	o11y := s.observability
	if o11y == nil {
		o11y = noop.NewProvider()
	}
	logger := o11y.Logger().With(observability.String("component", "host"))

	lifetime := NewLifetime(logger)
	AddSingleton[ApplicationLifetime](services, lifetime)
	if !services.Contains(reflect.TypeFor[observability.Observability]()) {
		AddSingleton[observability.Observability](services, o11y)
	}

	router := chi.NewRouter()
	router.Use(RequestID, Recovery(logger))
	for _, m := range s.middlewares {
		router.Use(m)
	}

	return &Application{
		settings: s,
		router:   router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", s.port),
			Handler:           router,
			ReadTimeout:       s.readTimeout,
			WriteTimeout:      s.writeTimeout,
			IdleTimeout:       s.idleTimeout,
			ReadHeaderTimeout: s.readHeaderTimeout,
			MaxHeaderBytes:    s.maxHeaderBytes,
		},
		services: services.Build(),
		lifetime: lifetime,
		logger:   logger,
		mounts:   make(map[string]struct{}),
		serveErr: make(chan error, 1),
	}
}

// ApplicationServices returns the built service provider.
func (a *Application) ApplicationServices() ServiceProvider {
	return a.services
}

// Lifetime returns the application lifetime.
func (a *Application) Lifetime() *Lifetime {
	return a.lifetime
}

// Map mounts handler under pathMatch. pathMatch must start with "/" and be
// mapped only once.
func (a *Application) Map(pathMatch string, handler http.Handler) error {
	if handler == nil {
		return errors.New("hosting: handler cannot be nil")
	}
	if !strings.HasPrefix(pathMatch, "/") {
		return fmt.Errorf("hosting: path %q must start with '/'", pathMatch)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.mounts[pathMatch]; exists {
		return fmt.Errorf("hosting: %w: %s", ErrRouteConflict, pathMatch)
	}

	a.router.Mount(pathMatch, handler)
	a.mounts[pathMatch] = struct{}{}
	return nil
}

// Handle registers a single route on the root router.
func (a *Application) Handle(method, pattern string, handler http.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.router.Method(method, pattern, handler)
}

// MappedPaths returns the path prefixes registered with Map, sorted.
func (a *Application) MappedPaths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	paths := make([]string, 0, len(a.mounts))
	for p := range a.mounts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Routes exposes the chi routing tree.
func (a *Application) Routes() chi.Routes {
	return a.router
}

// ServeHTTP implements http.Handler for testing purposes.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Addr returns the bound address once started, or the configured one.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.server.Addr
}

// Start binds the listener, serves in the background and fires ApplicationStarted.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.listener != nil {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("hosting: failed to listen on %s: %w", a.server.Addr, err)
	}
	a.listener = ln
	a.mu.Unlock()

	go func() {
		err := a.server.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- nil
			return
		}
		a.serveErr <- err
	}()

	a.logger.Info(ctx, "application started", observability.String("addr", ln.Addr().String()))
	a.lifetime.NotifyStarted()
	return nil
}

// Stop fires ApplicationStopping, drains the HTTP server and fires
// ApplicationStopped. It is idempotent and returns the first result on every call.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.logger.Info(ctx, "application stopping")
		a.lifetime.StopApplication()

		a.mu.Lock()
		started := a.listener != nil
		a.mu.Unlock()

		if started {
			if err := a.server.Shutdown(ctx); err != nil {
				a.stopErr = fmt.Errorf("hosting: shutdown failed: %w", err)
			}
		}

		a.lifetime.NotifyStopped()
		a.logger.Info(ctx, "application stopped")
	})
	return a.stopErr
}

// Run starts the application and blocks until ctx is cancelled, a SIGINT or
// SIGTERM arrives, StopApplication is called or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		a.logger.Info(ctx, "received shutdown signal", observability.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info(ctx, "context cancelled")
	case <-a.lifetime.ApplicationStopping().Done():
	case serveErr = <-a.serveErr:
		if serveErr != nil {
			a.logger.Error(ctx, "server failed", observability.Error(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.shutdownTimeout)
	defer cancel()

	return errors.Join(serveErr, a.Stop(shutdownCtx))
}

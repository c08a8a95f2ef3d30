// Package fixture serves static test pages from a short-lived local HTTP
// server.
//
// A Server owns its listening socket. Start returns only once the socket is
// accepting connections and Stop releases the port before it returns, so the
// same port can be bound again straight away.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	DefaultHost = "127.0.0.1"

	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// Port 0 lets the OS pick a free port.
	Port      int                 `json:"port,omitempty" yaml:"port,omitempty"`
	Resources map[string]Resource `json:"resources,omitempty" yaml:"resources,omitempty"`
	// Dirs maps a route prefix to a directory served as-is.
	Dirs map[string]string `json:"dirs,omitempty" yaml:"dirs,omitempty"`
	// Handlers serves dynamic fixtures, e.g. a download that trickles in.
	Handlers map[string]http.Handler `json:"-" yaml:"-"`
}

// BindError is returned by Start when the address cannot be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Handle is a snapshot of a server's externally visible state.
type Handle struct {
	Port        int
	BaseURL     string
	IsListening bool
}

type Server struct {
	log     logrus.FieldLogger
	srv     *http.Server
	port    int
	baseURL string

	listening atomic.Bool
	served    chan struct{}
	serveErr  error

	stopOnce sync.Once
}

type Option func(*Server)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// Start binds the configured address and starts serving. The returned server
// must be stopped on every path, typically with a deferred Close.
func Start(ctx context.Context, cfg Config, opts ...Option) (*Server, error) {
	discard := logrus.New()
	discard.Out = io.Discard
	s := &Server{log: discard, served: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}

	resources, err := prepareResources(cfg.Resources)
	if err != nil {
		return nil, err
	}
	handler, err := s.routes(resources, cfg.Dirs, cfg.Handlers)
	if err != nil {
		return nil, err
	}

	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &BindError{Addr: addr, Err: err}
	}

	s.port = listener.Addr().(*net.TCPAddr).Port
	s.baseURL = "http://" + net.JoinHostPort(urlHost(host), strconv.Itoa(s.port))
	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listening.Store(true)

	go func() {
		defer close(s.served)
		if err := s.srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.serveErr = err
		}
	}()

	s.log.WithFields(logrus.Fields{
		"url":       s.baseURL,
		"resources": len(resources),
		"dirs":      len(cfg.Dirs),
	}).Info("Fixture server started")
	return s, nil
}

// urlHost maps wildcard listen addresses to something a browser can dial.
func urlHost(host string) string {
	switch host {
	case "0.0.0.0", "::", "[::]":
		return DefaultHost
	}
	return strings.Trim(host, "[]")
}

func (s *Server) Port() int       { return s.port }
func (s *Server) BaseURL() string { return s.baseURL }

// URL joins route onto the base URL.
func (s *Server) URL(route string) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return s.baseURL + route
}

func (s *Server) IsListening() bool {
	return s.listening.Load()
}

func (s *Server) Handle() Handle {
	return Handle{Port: s.port, BaseURL: s.baseURL, IsListening: s.IsListening()}
}

// Stop closes the listener, waits for in-flight requests and the serve loop
// to finish. Only the first call does any work; later calls return nil.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		err = s.shutdown(ctx)
	})
	return err
}

func (s *Server) shutdown(ctx context.Context) error {
	s.listening.Store(false)
	err := s.srv.Shutdown(ctx)
	if err != nil {
		// In-flight requests outlived ctx, drop them.
		_ = s.srv.Close()
		err = fmt.Errorf("fixture server shutdown: %w", err)
	}
	<-s.served
	if s.serveErr != nil {
		err = errors.Join(err, fmt.Errorf("fixture server: %w", s.serveErr))
	}
	s.log.WithField("url", s.baseURL).Info("Fixture server stopped")
	return err
}

// Close stops the server with a default timeout.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return s.Stop(ctx)
}

func (s *Server) routes(resources map[string]Resource, dirs map[string]string, handlers map[string]http.Handler) (handler http.Handler, err error) {
	// chi panics on conflicting mounts.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fixture routes: %v", r)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.MethodNotAllowed(http.NotFound)

	for route, res := range resources {
		r.Get(route, s.serveResource(route, res))
	}
	for route, h := range handlers {
		if err := validateRoute(route); err != nil {
			return nil, err
		}
		if _, dup := resources[route]; dup {
			return nil, fmt.Errorf("route %s is both a resource and a handler", route)
		}
		r.Handle(route, h)
	}
	for prefix, dir := range dirs {
		if err := validateRoute(prefix); err != nil {
			return nil, err
		}
		strip := strings.TrimSuffix(prefix, "/")
		for _, route := range []string{strip, strip + "/"} {
			if _, dup := resources[route]; dup {
				return nil, fmt.Errorf("route %s is both a resource and a directory", route)
			}
			if _, dup := handlers[route]; dup {
				return nil, fmt.Errorf("route %s is both a handler and a directory", route)
			}
		}
		r.Mount(prefix, http.StripPrefix(strip, http.FileServer(http.Dir(dir))))
	}
	// chi only builds its own middleware chain once a route exists.
	return requestLogger(s.log)(middleware.Recoverer(r)), nil
}

func (s *Server) serveResource(route string, res Resource) http.HandlerFunc {
	contentType := res.contentType(route)
	disposition := res.contentDisposition()
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := res.content()
		if err != nil {
			s.log.WithError(err).WithField("route", route).Error("Could not load fixture")
			http.Error(w, "Error loading "+route, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"method":   r.Method,
					"path":     r.URL.Path,
					"status":   ww.Status(),
					"bytes":    ww.BytesWritten(),
					"duration": time.Since(start),
				}).Debug("Served fixture request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func prepareResources(in map[string]Resource) (map[string]Resource, error) {
	out := make(map[string]Resource, len(in))
	for route, res := range in {
		if err := validateRoute(route); err != nil {
			return nil, err
		}
		if err := res.validate(route); err != nil {
			return nil, err
		}
		if len(res.Set) > 0 {
			body, err := applyOverrides(res.Body, res.Set)
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", route, err)
			}
			res.Body = body
			res.Set = nil
		}
		out[route] = res
	}
	return out, nil
}

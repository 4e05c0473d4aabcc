package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jekabolt/delivery-analytics/internal/auth"
	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/middleware"
	"github.com/jekabolt/delivery-analytics/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Config is the configuration for the http server
type Config struct {
	Port           string   `mapstructure:"port"`
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RequestTimeout string   `mapstructure:"request_timeout"`
}

// Deps are the services the API is served from. Files may be nil when
// snapshot storage is not configured.
type Deps struct {
	Analytics dependency.Analytics
	Auth      *auth.Auth
	Limiter   *ratelimit.LoginLimiter
	Files     dependency.FileStore
	Health    func(ctx context.Context) error
	Registry  *prometheus.Registry
}

// Server is the http server
type Server struct {
	hs      *http.Server
	c       *Config
	d       Deps
	timeout time.Duration
	done    chan struct{}
}

// New creates a new server
func New(config *Config, d Deps) (*Server, error) {
	timeout := 60 * time.Second
	if config.RequestTimeout != "" {
		var err error
		timeout, err = time.ParseDuration(config.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("bad request timeout: %w", err)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	return &Server{
		c:       config,
		d:       d,
		timeout: timeout,
		done:    make(chan struct{}),
	}, nil
}

// Done returns a channel that is closed when the http server exits
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler builds the router with every route of the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.ClientIdentifier,
		middleware.AccessLog,
		chimw.Recoverer,
		cors.Handler(cors.Options{
			AllowOriginFunc: func(_ *http.Request, origin string) bool {
				return isOriginAllowed(origin, s.c.AllowedOrigins)
			},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.d.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(s.timeout))
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(s.d.Auth.JwtAuth), jwtauth.Authenticator)

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/customers", s.customers)
				r.Get("/cohorts", s.cohorts)
				r.Get("/churn", s.churn)
				r.Get("/distribution", s.distribution)
				r.Get("/platforms", s.platforms)
				r.Post("/snapshots", s.snapshot)
			})
		})
	})
	return r
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	listenerAddr := fmt.Sprintf("%s:%s", s.c.Address, s.c.Port)
	s.hs = &http.Server{
		Addr:              listenerAddr,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Default().InfoContext(ctx, "delivery-analytics new listener", slog.String("addr", "http://"+listenerAddr))
		err := s.hs.ListenAndServe()
		if err == http.ErrServerClosed {
			slog.Default().InfoContext(ctx, "http server returned")
		} else {
			slog.Default().ErrorContext(ctx, "http server exited with an error", slog.String("err", err.Error()))
		}
		close(s.done)
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	return s.hs.Shutdown(ctx)
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	// Always allow localhost origins
	if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "https://localhost:") {
		return true
	}

	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin {
			return true
		}
	}
	return false
}

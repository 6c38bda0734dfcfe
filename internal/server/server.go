// Package server exposes the detection engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/detect"
	"github.com/sells-group/venue-locator/internal/dirsync"
	"github.com/sells-group/venue-locator/internal/engine"
	"github.com/sells-group/venue-locator/internal/location"
	"github.com/sells-group/venue-locator/internal/venue"
)

// Service is the part of engine.Engine the HTTP API uses.
type Service interface {
	Resolve(ctx context.Context, fix location.Fix) detect.Result
	SetManualVenue(ctx context.Context, id string) bool
	CurrentDetection() detect.Result
	AllVenues() []venue.Venue
	VenuesByRegion(region venue.Region) []venue.Venue
	VenueByID(id string) *venue.Venue
	SearchVenues(query string) []venue.Venue
	AddLocationListener(fn func(engine.Update)) uuid.UUID
	RemoveLocationListener(id uuid.UUID) bool
	SyncStatus() *dirsync.Status
	BreakerStates() map[string]string
}

var _ Service = (*engine.Engine)(nil)

// Config configures the HTTP server.
type Config struct {
	Port           int
	AllowedOrigins []string
	// Metrics, when set, is served at /metrics.
	Metrics prometheus.Gatherer
}

// Server serves the venue API.
type Server struct {
	srv *http.Server
}

// New builds a Server over svc.
func New(svc Service, cfg Config) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(svc, cfg),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// NewRouter returns the API routes with middleware applied.
func NewRouter(svc Service, cfg Config) chi.Router {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth(svc))
	r.Route("/venues", func(r chi.Router) {
		r.Get("/", handleListVenues(svc))
		r.Get("/{id}", handleGetVenue(svc))
	})
	r.Get("/current", handleGetCurrent(svc))
	r.Put("/current", handleSetCurrent(svc))
	r.Post("/resolve", handleResolve(svc))
	r.Get("/events", handleEvents(svc))
	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
	}
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return eris.Wrapf(err, "server: listen on %s", s.srv.Addr)
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.String("addr", s.srv.Addr))
	if err := s.srv.Serve(ln); err != nil && !eris.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: serve")
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			zap.L().Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"newsroom/app/internal/cms"
)

// Options configures the HTTP server wiring.
type Options struct {
	Articles       *cms.ArticleRepository
	Categories     *cms.CategoryRepository
	Members        *cms.MemberRepository
	Database       *gorm.DB
	Logger         *logrus.Logger
	SentryHub      *sentry.Hub
	RateLimiter    RateLimiterSettings
	MaxUploadBytes int64
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const defaultMaxUploadBytes = 5242800

// Server wires the JSON transport layer via Huma plus raw mux handlers for
// the multipart admin endpoints.
type Server struct {
	api            huma.API
	mux            *stdhttp.ServeMux
	articles       *cms.ArticleRepository
	categories     *cms.CategoryRepository
	members        *cms.MemberRepository
	db             *gorm.DB
	logger         *logrus.Logger
	sentry         *sentry.Hub
	rateLimiter    *RateLimiter
	maxUploadBytes int64
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Articles == nil {
		return nil, eris.New("article repository is required")
	}
	if opts.Categories == nil {
		return nil, eris.New("category repository is required")
	}
	if opts.Members == nil {
		return nil, eris.New("member repository is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Newsroom", "1.0.0")

	api := humago.New(mux, config)

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	srv := &Server{
		api:            api,
		mux:            mux,
		articles:       opts.Articles,
		categories:     opts.Categories,
		members:        opts.Members,
		db:             opts.Database,
		logger:         opts.Logger,
		sentry:         opts.SentryHub,
		maxUploadBytes: maxUpload,
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		settings.Burst = 20
	}
	if settings.RequestsPerSecond <= 0 {
		settings.RequestsPerSecond = 10
	}
	if settings.ClientTTL <= 0 {
		settings.ClientTTL = 10 * time.Minute
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerArticleRoutes()
	s.registerSearchRoute()
	s.registerCategoryRoutes()
	s.registerMemberRoutes()
	s.registerHealthRoute()
	s.registerAdminRoutes()
	s.registerUploadRoutes()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}

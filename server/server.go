// Package server exposes the token exchange over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-exchange/exchange"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	"github.com/jrsteele09/go-token-exchange/internal/metrics"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrsteele09/go-token-exchange/server"

// TokenExchanger evaluates token requests against the current time.
type TokenExchanger interface {
	Token(ctx context.Context, request oauth2.AccessTokenRequest) (*exchange.AccessTokenDetails, error)
}

// Dependencies holds the collaborators the Server is built from.
type Dependencies struct {
	Exchange TokenExchanger     // Token request evaluation
	Signer   token.Signer       // Published through discovery and JWKS
	Metrics  *metrics.Collector // Optional; a private collector is created when nil
}

type Server struct {
	env               string // Environment (e.g., "DEV", "PROD")
	mux               *http.ServeMux
	handler           http.Handler
	routes            []string
	config            config.Config
	exchange          TokenExchanger
	signer            token.Signer
	metrics           *metrics.Collector
	tracer            trace.Tracer
	accessTokenExpiry time.Duration
}

type Option func(*Server)

// WithTracer overrides the tracer taken from the global OpenTelemetry provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

func New(cfg config.Config, deps Dependencies, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if deps.Exchange == nil {
		return nil, errors.New("[server.New] exchange is required")
	}
	if deps.Signer == nil {
		return nil, errors.New("[server.New] signer is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}

	s := &Server{
		env:               cfg.GetEnv(),
		mux:               http.NewServeMux(),
		config:            cfg,
		exchange:          deps.Exchange,
		signer:            deps.Signer,
		metrics:           deps.Metrics,
		tracer:            otel.Tracer(tracerName),
		accessTokenExpiry: cfg.GetAccessTokenExpiry(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.handler = s.metrics.Middleware(s.mux)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}

// Package server implements the auth API the dashboard signs in against.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/server/users"
)

// shutdownTimeout bounds how long in-flight requests may take after the
// server is asked to stop
const shutdownTimeout = 5 * time.Second

// Options configure a Server
type Options struct {
	Addr     string
	Secret   []byte
	TokenTTL time.Duration
	Metrics  bool
	Logger   *logger.Logger

	// LoginRate is the number of login attempts allowed per client and
	// minute; zero disables the limit
	LoginRate int
}

// Server is the auth API
type Server struct {
	addr    string
	users   users.Repository
	tokens  *TokenIssuer
	metrics *metrics
	limiter *loginLimiter
	log     *logger.Logger
	engine  *gin.Engine
}

// New builds the server and its routes. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func New(repo users.Repository, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default().WithPrefix("server")
	}

	secret := opts.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		log.Warn("no jwt_secret configured, using a random secret for this run")
	}

	s := &Server{
		addr:   opts.Addr,
		users:  repo,
		tokens: NewTokenIssuer(secret, opts.TokenTTL),
		log:    log,
	}
	if opts.Metrics {
		s.metrics = newMetrics()
	}
	if opts.LoginRate > 0 {
		s.limiter = newLoginLimiter(opts.LoginRate)
	}

	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/", s.handleRoot)

	api := r.Group("/api")
	api.POST("/login", s.limitLogins(), s.handleLogin)
	api.GET("/me", s.requireToken(), s.handleMe)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	}
	return r
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

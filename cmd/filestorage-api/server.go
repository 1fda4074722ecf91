package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AmmannChristian/go-shellauth/httpserver"
	"github.com/AmmannChristian/go-shellauth/internal/config"
	"github.com/AmmannChristian/go-shellauth/internal/filestore"
	"github.com/AmmannChristian/go-shellauth/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type server struct {
	cfg     config.API
	logger  *slog.Logger
	api     *http.Server
	metrics *http.Server // nil when metrics share the API listener
	close   func()       // releases the validator
}

// newValidator picks token introspection when an introspection endpoint is
// configured and JWKS validation otherwise.
func newValidator(ctx context.Context, cfg config.API, logger httpserver.Logger) (httpserver.TokenValidator, func(), error) {
	if cfg.IntrospectionURL != "" {
		v, err := httpserver.NewIntrospectionValidator(cfg.IntrospectionURL, cfg.Issuer, cfg.Audience,
			cfg.IntrospectionClientID, cfg.IntrospectionClientSecret, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		return v, func() {}, nil
	}

	builder := httpserver.NewValidatorBuilder(cfg.Issuer).
		WithAudience(cfg.Audience).
		WithLogger(logger)
	if cfg.JWKSURL != "" {
		builder = builder.WithJWKSURL(cfg.JWKSURL)
	}
	if cfg.Discovery {
		builder = builder.WithDiscovery()
	}
	v, err := builder.Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return v, v.Close, nil
}

func newServer(ctx context.Context, cfg config.API, logger *slog.Logger) (*server, error) {
	printer := logging.Printf(logger, slog.LevelInfo)

	validator, closeValidator, err := newValidator(ctx, cfg, printer)
	if err != nil {
		return nil, err
	}

	store, err := filestore.NewStore(cfg.FilesDir, cfg.MaxFileSize)
	if err != nil {
		closeValidator()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := filestore.NewMetrics(reg)
	if err != nil {
		closeValidator()
		return nil, err
	}

	handler, err := filestore.NewHandler(store, validator,
		filestore.WithLogger(printer),
		filestore.WithMetrics(metrics),
		filestore.WithStaticDir(cfg.StaticDir),
		filestore.WithScopes(
			httpserver.ScopePolicy{Required: strings.Fields(cfg.ReadScopes)},
			httpserver.ScopePolicy{Required: strings.Fields(cfg.WriteScopes)},
		),
	)
	if err != nil {
		closeValidator()
		return nil, err
	}

	s := &server{cfg: cfg, logger: logger, close: closeValidator}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if cfg.MetricsAddr != "" {
		s.metrics = newHTTPServer(cfg.MetricsAddr, mux)
	} else {
		mux.Handle("/", handler)
		handler = mux
	}

	s.api = newHTTPServer(cfg.Addr, handler)
	tlsFiles := httpserver.TLSFiles{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile, ClientCAFile: cfg.TLSClientCAFile}
	if tlsFiles.Enabled() {
		if err := httpserver.ConfigureServer(s.api, tlsFiles); err != nil {
			closeValidator()
			return nil, err
		}
	}
	return s, nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// run serves until ctx is cancelled or a listener fails, then shuts down
// within the configured timeout.
func (s *server) run(ctx context.Context) error {
	defer s.close()

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("file storage API listening", "addr", s.api.Addr, "tls", s.api.TLSConfig != nil)
		var err error
		if s.api.TLSConfig != nil {
			err = s.api.ListenAndServeTLS("", "")
		} else {
			err = s.api.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()
	if s.metrics != nil {
		go func() {
			s.logger.Info("metrics listening", "addr", s.metrics.Addr)
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics listen: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.api.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("metrics shutdown: %w", err))
		}
	}

	s.logger.Info("server stopped")
	return runErr
}

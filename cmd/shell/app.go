package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/AmmannChristian/go-shellauth/filestorage"
	"github.com/AmmannChristian/go-shellauth/httpclient"
	"github.com/AmmannChristian/go-shellauth/internal/config"
	"github.com/AmmannChristian/go-shellauth/internal/logging"
	"github.com/AmmannChristian/go-shellauth/registry"
	"github.com/AmmannChristian/go-shellauth/remote"
	"github.com/AmmannChristian/go-shellauth/session"
	"github.com/AmmannChristian/go-shellauth/shell"
	"golang.org/x/oauth2"
)

// app wires the host, the registry and the file storage module for one
// command invocation.
type app struct {
	cfg     config.Shell
	logger  *slog.Logger
	printer *log.Logger
	host    *shell.Host
	module  *remote.Module
}

func newApp(cfg config.Shell, stderr io.Writer) (*app, error) {
	logger := logging.New(stderr, cfg.LogLevel)
	printer := logging.Printf(logger, slog.LevelDebug)

	host, err := shell.New(shell.Config{
		BaseURL:      cfg.APIBaseURL,
		Timeout:      cfg.APITimeout,
		RefreshAhead: cfg.RefreshAhead,
	}, registry.New[*httpclient.Client](), shell.WithLogger(printer))
	if err != nil {
		return nil, err
	}

	moduleOpts := []remote.Option{
		remote.WithRetry(cfg.ModuleAttempts, cfg.ModuleInterval),
		remote.WithLogger(printer),
	}
	if cfg.DevToken != "" {
		moduleOpts = append(moduleOpts, remote.WithStandalone(
			remote.Standalone(cfg.APIBaseURL, cfg.DevToken, cfg.APITimeout, httpclient.WithLoggerOption(printer)),
		))
	}
	module := filestorage.NewModule(moduleOpts...)
	host.Register(module)

	return &app{
		cfg:     cfg,
		logger:  logger,
		printer: printer,
		host:    host,
		module:  module,
	}, nil
}

// files starts the host and loads the file storage module concurrently. The
// module polls the registry while the host is still completing the session.
func (a *app) files(ctx context.Context) (*filestorage.Client, error) {
	type loaded struct {
		client *httpclient.Client
		err    error
	}
	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()

	done := make(chan loaded, 1)
	go func() {
		c, err := a.host.Load(loadCtx, filestorage.ModuleName)
		done <- loaded{client: c, err: err}
	}()

	_, runErr := a.host.Run(ctx, a.initSession, nil)
	if runErr != nil && a.cfg.DevToken == "" {
		// Nothing will be published and there is no standalone client to
		// fall back to.
		cancelLoad()
	}
	res := <-done

	if res.err != nil {
		if runErr != nil && ctx.Err() == nil && errors.Is(res.err, context.Canceled) {
			return nil, runErr
		}
		return nil, errors.Join(runErr, res.err)
	}
	if runErr != nil {
		a.logger.Warn("host did not start, module runs standalone", "error", runErr)
	}
	return filestorage.New(res.client)
}

// initSession completes the identity for the configured mode.
func (a *app) initSession(ctx context.Context) (session.Session, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := a.cfg.Identity()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("initializing identity", "mode", mode)

	switch mode {
	case config.IdentityDevToken:
		return session.NewStatic(a.cfg.DevToken), nil

	case config.IdentityClientCredentials:
		oc, err := session.Discover(ctx, a.cfg.OIDCIssuer, a.cfg.OIDCClientID, a.cfg.OIDCScopes)
		if err != nil {
			return nil, err
		}
		return session.NewClientCredentials(ctx, oc.Endpoint.TokenURL, a.cfg.OIDCClientID, a.cfg.OIDCClientSecret,
			a.cfg.OIDCScopes, session.WithLogger(a.printer))

	default:
		oc, err := session.Discover(ctx, a.cfg.OIDCIssuer, a.cfg.OIDCClientID, a.cfg.OIDCScopes)
		if err != nil {
			return nil, err
		}
		p, err := session.NewProvider(ctx, oc, &oauth2.Token{
			AccessToken:  a.cfg.AccessToken,
			RefreshToken: a.cfg.RefreshToken,
		}, session.WithLogger(a.printer), session.WithLoginFunc(func() {
			a.logger.Error("session expired, sign in again and update SHELL_REFRESH_TOKEN")
		}))
		if err != nil {
			return nil, err
		}
		if !p.Authenticated() {
			if _, err := p.UpdateToken(ctx, session.ForceRefresh); err != nil {
				return nil, fmt.Errorf("%w: %w", session.ErrAuthRefreshFailed, err)
			}
		}
		return p, nil
	}
}

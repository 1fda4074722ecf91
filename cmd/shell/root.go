package main

import (
	"time"

	"github.com/AmmannChristian/go-shellauth/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	apiURL   string
	timeout  time.Duration
	logLevel string
	devToken string

	app *app
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Host for the file storage module",
		Long: `shell signs in with the configured identity, publishes one authenticated
API client and hands it to the file storage module.

Identity is read from the environment: SHELL_REFRESH_TOKEN selects a user
session, SHELL_OIDC_CLIENT_SECRET a service identity and SHELL_DEV_TOKEN a
static development token.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadShell()
			if err != nil {
				return err
			}
			opts.apply(cmd, &cfg)

			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.app = a
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", "", "API gateway URL (overrides SHELL_API_BASE_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (overrides SHELL_API_TIMEOUT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides SHELL_LOG_LEVEL)")
	flags.StringVar(&opts.devToken, "dev-token", "", "Static bearer token for development (overrides SHELL_DEV_TOKEN)")

	cmd.AddCommand(newFilesCommand(opts), newModulesCommand(opts))
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (o *rootOptions) apply(cmd *cobra.Command, cfg *config.Shell) {
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = o.apiURL
	}
	if flags.Changed("timeout") {
		cfg.APITimeout = o.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("dev-token") {
		cfg.DevToken = o.devToken
	}
}

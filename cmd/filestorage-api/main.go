// Command filestorage-api serves the file storage REST API. Requests under
// /files need a bearer token issued by the configured OpenID Connect realm.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AmmannChristian/go-shellauth/internal/config"
	"github.com/AmmannChristian/go-shellauth/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "filestorage-api",
		Short: "Serve the file storage API",
		Long: `filestorage-api stores uploaded files on disk and serves them back to
clients presenting a valid access token.

Settings are read from the environment (FILESTORE_*, FILES_DIR, STATIC_FILES_DIR).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAPI()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
			srv, err := newServer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return srv.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides FILESTORE_ADDR)")
	return cmd
}

// Command shell is the host of the file storage module. It completes the
// identity session, publishes the shared API client and runs module commands
// against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AmmannChristian/go-shellauth/httpclient"
	"github.com/AmmannChristian/go-shellauth/session"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	// exitAuth means the session is gone and the user has to sign in again.
	exitAuth = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	if errors.Is(err, session.ErrAuthRefreshFailed) {
		return exitAuth
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		return exitAuth
	}
	return exitError
}

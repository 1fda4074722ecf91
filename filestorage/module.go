package filestorage

import (
	"context"

	"github.com/AmmannChristian/go-shellauth/httpclient"
	"github.com/AmmannChristian/go-shellauth/registry"
	"github.com/AmmannChristian/go-shellauth/remote"
)

// ModuleName is the name the file storage module registers under.
const ModuleName = "filestorage"

// DevToken is the bearer token the standalone development mode sends.
const DevToken = "mock-token-for-development"

// NewModule returns the remote module for the file storage view.
func NewModule(opts ...remote.Option) *remote.Module {
	return remote.NewModule(ModuleName, opts...)
}

// Open resolves the shared client for m and wraps it in a Client.
func Open(ctx context.Context, m *remote.Module, accessor registry.Accessor[*httpclient.Client]) (*Client, error) {
	api, err := m.Resolve(ctx, accessor)
	if err != nil {
		return nil, err
	}
	return New(api)
}

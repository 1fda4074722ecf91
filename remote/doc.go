// Package remote implements the module side of the client handoff.
//
// A Module may start before the host has published its client. Resolve
// therefore prefers a directly injected client, falls back to polling the
// host's registry.Accessor for a bounded time, and finally, when configured,
// builds a standalone client so the module can run on its own during
// development.
//
//	m := remote.NewModule("filestorage",
//	    remote.WithStandalone(remote.Standalone("http://localhost:8000", "mock-token-for-development", 10*time.Second)),
//	)
//	client, err := m.Resolve(ctx, reg.Accessor())
package remote

// Package shell implements the host side of the client handoff.
//
// A Host waits for the identity session, builds the one authenticated
// *httpclient.Client, publishes it into a registry.Registry and only then
// mounts its primary view. Remote modules registered with the host resolve
// the client through the registry's Accessor, possibly before the host has
// finished starting.
//
//	reg := registry.New[*httpclient.Client]()
//	host, err := shell.New(shell.Config{BaseURL: "https://api.example.com"}, reg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	host.Register(filestorage.NewModule())
//	client, err := host.Run(ctx, initSession, mountUI)
package shell

// Package registry provides the single-assignment slot through which a host
// shares one value, typically the authenticated *httpclient.Client, with
// independently loaded modules.
//
// The host publishes once; modules read through an Accessor. Because modules
// may start before the host has published, AcquireWithRetry and Retry poll for
// a bounded time, and Await offers a blocking future-style read.
//
//	reg := registry.New[*httpclient.Client]()
//	go mountModule(reg.Accessor())
//
//	client, _ := httpclient.Build(s, baseURL, 10*time.Second)
//	if err := reg.Publish(client); err != nil {
//	    log.Fatal(err)
//	}
//
// Publishing twice is an error: the first value stays in place and the second
// call returns ErrAlreadyPublished.
package registry

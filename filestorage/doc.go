// Package filestorage is the client side of the file storage service: typed
// list, upload, download and delete operations on top of the shared
// authenticated httpclient.Client, plus the remote module that obtains that
// client from the shell.
//
// Basic usage inside the shell:
//
//	m := filestorage.NewModule(
//	    remote.WithStandalone(remote.Standalone(apiURL, filestorage.DevToken, 10*time.Second)),
//	)
//	files, err := filestorage.Open(ctx, m, reg.Accessor())
//	if err != nil {
//	    return err
//	}
//	list, err := files.List(ctx)
package filestorage

// Package filestore implements the file storage API consumed by the
// filestorage module: a flat directory of uploaded files behind bearer-token
// authentication.
//
// Routes:
//
//	GET    /              welcome message (public)
//	GET    /health        {"status":"healthy"} (public)
//	GET    /files         list stored files
//	POST   /files         multipart upload, field "files", 201
//	GET    /files/{name}  download
//	DELETE /files/{name}  delete, 204
//
// Uploads are stored as "<uuid>_<original name>" and limited per file
// (DefaultMaxFileSize unless configured); oversized files get 413. Errors are
// JSON {"detail": "..."}.
package filestore

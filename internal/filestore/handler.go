package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/AmmannChristian/go-shellauth/httpserver"
)

// Logger is an interface for optional request logging.
type Logger interface {
	Printf(format string, args ...any)
}

// Handler serves the file storage API.
type Handler struct {
	store     *Store
	validator httpserver.TokenValidator
	logger    Logger
	metrics   *Metrics
	staticDir string

	read, write httpserver.ScopePolicy
}

// Option is a functional option for configuring Handler.
type Option func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(logger Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(h *Handler) {
		h.logger = log.Default()
	}
}

// WithMetrics records operations on m.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithScopes restricts listing and downloading to read and uploading and
// deleting to write. Empty policies allow any valid token.
func WithScopes(read, write httpserver.ScopePolicy) Option {
	return func(h *Handler) {
		h.read = read
		h.write = write
	}
}

// WithStaticDir serves dir under /static/ without authentication.
func WithStaticDir(dir string) Option {
	return func(h *Handler) {
		h.staticDir = dir
	}
}

// NewHandler returns the API handler. Everything under /files requires a
// bearer token accepted by validator; "/" and "/health" are public.
func NewHandler(store *Store, validator httpserver.TokenValidator, opts ...Option) (http.Handler, error) {
	if store == nil {
		return nil, errors.New("filestore: store is required")
	}
	if validator == nil {
		return nil, errors.New("filestore: token validator is required")
	}

	h := &Handler{store: store, validator: validator}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /files", httpserver.RequireScopes(h.read, http.HandlerFunc(h.list)))
	mux.Handle("POST /files", httpserver.RequireScopes(h.write, http.HandlerFunc(h.upload)))
	mux.Handle("GET /files/{name}", httpserver.RequireScopes(h.read, http.HandlerFunc(h.download)))
	mux.Handle("DELETE /files/{name}", httpserver.RequireScopes(h.write, http.HandlerFunc(h.delete)))
	if h.staticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.staticDir))))
	}

	mwOpts := []httpserver.MiddlewareOption{
		httpserver.WithExemptPaths("/", "/health"),
		httpserver.WithExemptPathPrefixes("/static/"),
	}
	if h.logger != nil {
		mwOpts = append(mwOpts, httpserver.WithMiddlewareLogger(h.logger))
	}
	return httpserver.Middleware(validator, mwOpts...)(mux), nil
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the File Storage Service."})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	files, err := h.store.List()
	if err != nil {
		h.logf("filestore: %v", err)
		h.fail(w, "list", http.StatusInternalServerError, "Could not list files.")
		return
	}
	h.metrics.observe("list", http.StatusOK)
	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	user := username(r)

	reader, err := r.MultipartReader()
	if err != nil {
		h.fail(w, "upload", http.StatusBadRequest, "No files provided for upload.")
		return
	}

	stored := []string{}
	seen := false
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.fail(w, "upload", http.StatusBadRequest, "Malformed multipart body.")
			return
		}
		if part.FormName() != "files" {
			part.Close()
			continue
		}
		seen = true

		name := part.FileName()
		if name == "" {
			h.logf("filestore: skipping uploaded part without a filename")
			part.Close()
			continue
		}

		counter := &countingReader{r: part}
		storedName, err := h.store.Save(name, counter)
		part.Close()
		if errors.Is(err, ErrTooLarge) {
			h.fail(w, "upload", http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File '%s' exceeds the maximum allowed size of %dMB.", name, h.store.MaxFileSize()>>20))
			return
		}
		if err != nil {
			h.logf("filestore: upload of %q failed: %v", name, err)
			h.fail(w, "upload", http.StatusInternalServerError, fmt.Sprintf("Could not upload file '%s'", name))
			return
		}

		h.metrics.uploaded(counter.n)
		h.logf("filestore: file %q uploaded as %q by %s", name, storedName, user)
		stored = append(stored, storedName)
	}

	if !seen {
		h.fail(w, "upload", http.StatusBadRequest, "No files provided for upload.")
		return
	}

	h.metrics.observe("upload", http.StatusCreated)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":        "Files uploaded successfully",
		"uploaded_files": stored,
	})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))

	f, info, err := h.store.Open(name)
	if errors.Is(err, ErrNotFound) {
		h.logf("filestore: %s requested missing file %q", username(r), name)
		h.fail(w, "download", http.StatusNotFound, fmt.Sprintf("File '%s' not found.", name))
		return
	}
	if err != nil {
		h.logf("filestore: %v", err)
		h.fail(w, "download", http.StatusInternalServerError, fmt.Sprintf("Could not read file '%s'.", name))
		return
	}
	defer f.Close()

	h.logf("filestore: serving %q to %s", info.Filename, username(r))
	h.metrics.observe("download", http.StatusOK)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Filename}))
	http.ServeContent(w, r, info.Filename, info.UploadedAt, f)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))

	err := h.store.Remove(name)
	if errors.Is(err, ErrNotFound) {
		h.fail(w, "delete", http.StatusNotFound, fmt.Sprintf("File '%s' not found.", name))
		return
	}
	if err != nil {
		h.logf("filestore: %v", err)
		h.fail(w, "delete", http.StatusInternalServerError, fmt.Sprintf("Could not delete file '%s' due to an internal error.", name))
		return
	}

	h.logf("filestore: file %q deleted by %s", name, username(r))
	h.metrics.observe("delete", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, operation string, status int, detail string) {
	h.metrics.observe(operation, status)
	httpserver.WriteDetail(w, status, detail)
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func username(r *http.Request) string {
	if claims, ok := httpserver.TokenClaimsFromContext(r.Context()); ok {
		return claims.Username()
	}
	return "N/A"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

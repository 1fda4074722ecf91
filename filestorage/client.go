package filestorage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/AmmannChristian/go-shellauth/httpclient"
)

// UploadField is the multipart form field carrying uploaded files.
const UploadField = "files"

// File describes a stored file.
type File struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadResult is the response to a successful upload.
type UploadResult struct {
	Message       string   `json:"message"`
	UploadedFiles []string `json:"uploaded_files"`
}

// Upload is a single file to send. Name is the client-side file name; the
// service stores it under a unique prefix.
type Upload struct {
	Name    string
	Content io.Reader
}

// Client calls the file storage API through the shared authenticated client.
type Client struct {
	api *httpclient.Client
}

// New creates a Client on top of api.
func New(api *httpclient.Client) (*Client, error) {
	if api == nil {
		return nil, errors.New("filestorage: API client is required")
	}
	return &Client{api: api}, nil
}

// Health reports whether the service answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.api.GetJSON(ctx, "/health", &body); err != nil {
		return fmt.Errorf("filestorage: health: %w", err)
	}
	if body.Status != "healthy" {
		return fmt.Errorf("filestorage: health: service reports %q", body.Status)
	}
	return nil
}

// List returns the stored files.
func (c *Client) List(ctx context.Context) ([]File, error) {
	var files []File
	if err := c.api.GetJSON(ctx, "/files", &files); err != nil {
		return nil, fmt.Errorf("filestorage: list: %w", err)
	}
	return files, nil
}

// Upload sends files in one multipart request. The body is buffered so the
// transport can replay it after a token refresh.
func (c *Client) Upload(ctx context.Context, files ...Upload) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, errors.New("filestorage: upload: no files")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(UploadField, f.Name)
		if err != nil {
			return nil, fmt.Errorf("filestorage: upload %q: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("filestorage: upload %q: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("filestorage: upload: %w", err)
	}

	req, err := c.api.NewRequest(ctx, http.MethodPost, "/files", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("filestorage: upload: %w", err)
	}
	defer resp.Body.Close()

	if err := httpclient.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("filestorage: upload: %w", err)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("filestorage: upload: %w", err)
	}
	return &result, nil
}

// Download writes the content of the stored file name to w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	resp, err := c.api.Get(ctx, filePath(name))
	if err != nil {
		return 0, fmt.Errorf("filestorage: download %q: %w", name, err)
	}
	defer resp.Body.Close()

	if err := httpclient.CheckResponse(resp); err != nil {
		return 0, fmt.Errorf("filestorage: download %q: %w", name, err)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("filestorage: download %q: %w", name, err)
	}
	return n, nil
}

// Delete removes the stored file name.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.api.Delete(ctx, filePath(name)); err != nil {
		return fmt.Errorf("filestorage: delete %q: %w", name, err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var se *httpclient.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func filePath(name string) string {
	return "/files/" + url.PathEscape(name)
}

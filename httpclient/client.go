package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client is an authenticated HTTP client bound to a base URL.
// It is immutable after construction and safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// StatusError is returned by the JSON helpers for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("httpclient: %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("httpclient: %s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// HTTPClient returns the underlying *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	if c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// Transport returns the SessionTransport of the client, or nil if the
// client was built around a different transport.
func (c *Client) Transport() *SessionTransport {
	t, _ := c.httpClient.Transport.(*SessionTransport)
	return t
}

// NewRequest creates a request for ref resolved against the base URL.
// Absolute URLs are used as is.
func (c *Client) NewRequest(ctx context.Context, method, ref string, body io.Reader) (*http.Request, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	return req, nil
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("httpclient: parse %q: %w", ref, err)
	}
	if u.IsAbs() || c.baseURL == nil {
		return u.String(), nil
	}

	// Joined on the escaped form and left uncleaned: "." and ".." segments and
	// escaped slashes in ref reach the server as written.
	resolved := *c.baseURL
	if rel := strings.TrimPrefix(u.EscapedPath(), "/"); rel != "" {
		escaped := strings.TrimSuffix(resolved.EscapedPath(), "/") + "/" + rel
		unescaped, err := url.PathUnescape(escaped)
		if err != nil {
			return "", fmt.Errorf("httpclient: parse %q: %w", ref, err)
		}
		resolved.Path = unescaped
		resolved.RawPath = escaped
	}
	resolved.RawQuery = u.RawQuery
	resolved.Fragment = u.Fragment
	return resolved.String(), nil
}

// Do sends req through the authenticated transport.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// Get issues a GET for ref.
func (c *Client) Get(ctx context.Context, ref string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Delete issues a DELETE for ref and fails on non-2xx responses.
func (c *Client) Delete(ctx context.Context, ref string) error {
	req, err := c.NewRequest(ctx, http.MethodDelete, ref, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return CheckResponse(resp)
}

// GetJSON issues a GET for ref and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, ref string, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

// PostJSON encodes in as JSON, posts it to ref and decodes the response into
// out. out may be nil.
func (c *Client) PostJSON(ctx context.Context, ref string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("httpclient: encode request: %w", err)
	}

	req, err := c.NewRequest(ctx, http.MethodPost, ref, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

// CheckResponse returns a *StatusError for non-2xx responses. The body is
// read only on failure.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	se := &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
	if resp.Request != nil {
		se.Method = resp.Request.Method
		se.URL = resp.Request.URL.Redacted()
	}
	return se
}

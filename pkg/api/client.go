// Package api is the HTTP+JSON client for the RiskSurface backend.
//
// The backend owns all analysis; this package only fetches. Every response
// that carries analysis data is wrapped in an Envelope echoing the project
// it belongs to, which callers must check before committing the payload
// (see pkg/state).
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/risksurface/surf/pkg/debug"
	"github.com/risksurface/surf/pkg/metrics"
)

// Failure taxonomy. Everything the backend can do wrong maps onto one of
// these so views can degrade without inspecting status codes themselves.
var (
	// ErrRateLimited is returned for HTTP 429. Transient, distinguishable
	// from a hard failure.
	ErrRateLimited = errors.New("backend rate limit exceeded")
	// ErrUnavailable covers network failures and any other non-2xx status.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNotModified is returned for HTTP 304 on conditional requests.
	ErrNotModified = errors.New("not modified")
)

// Client talks to the RiskSurface backend at a fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (used in tests and for
// custom timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get issues a GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// post issues a POST with an optional JSON body and decodes into out (if non-nil).
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		debug.Log("api: %s %s: %v", method, path, err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		debug.Log("api: %s %s: status %d", method, path, resp.StatusCode)
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}

// statusError maps an HTTP status onto the failure taxonomy.
func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusNotModified:
		return ErrNotModified
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}
}

// Status fetches the GitHub connection status.
func (c *Client) Status(ctx context.Context) (ConnectionStatus, error) {
	var status ConnectionStatus
	err := c.get(ctx, "/api/github/status", &status)
	return status, err
}

// Projects lists the connected account's repositories.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := c.get(ctx, "/api/projects", &projects)
	return projects, err
}

// SelectProject marks an already-analyzed project as the backend's current
// selection.
func (c *Client) SelectProject(ctx context.Context, fullName string) error {
	body := map[string]string{"fullName": fullName}
	return c.post(ctx, "/api/projects/selected", body, nil)
}

// Analyze triggers analysis of owner/repo. The backend also moves its
// selection pointer to the project.
func (c *Client) Analyze(ctx context.Context, owner, repo string) (AnalyzeResult, error) {
	var result AnalyzeResult
	path := fmt.Sprintf("/api/projects/%s/%s/analyze", url.PathEscape(owner), url.PathEscape(repo))
	err := c.post(ctx, path, nil, &result)
	return result, err
}

// Disconnect tears down the backend's GitHub connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.post(ctx, "/api/github/disconnect", nil, nil)
}

// Analysis fetches one tab's analysis slice for the backend's currently
// selected project. Callers must verify Envelope.Project.FullName against
// the project they expect before using the payload.
func (c *Client) Analysis(ctx context.Context, tab Tab) (Envelope, error) {
	var env Envelope
	if !tab.Valid() {
		return env, fmt.Errorf("unknown analysis tab %q", tab)
	}
	defer metrics.Timer(metrics.AnalysisFetch)()
	err := c.get(ctx, "/api/analysis/"+string(tab), &env)
	return env, err
}

// Interpretation fetches the AI Analyst narrative for one tab kind.
func (c *Client) Interpretation(ctx context.Context, kind Tab, project, provider string) (Interpretation, error) {
	var interp Interpretation
	q := url.Values{}
	q.Set("project", project)
	q.Set("provider", provider)
	path := fmt.Sprintf("/api/ai/%s-interpretation?%s", kind, q.Encode())
	err := c.get(ctx, path, &interp)
	return interp, err
}

// Predictions fetches the live-predictions slice using conditional GET.
// ifModifiedSince, when non-empty, is sent as If-Modified-Since; a 304
// answer surfaces as ErrNotModified with an empty result. The returned
// lastModified is the Last-Modified header of a 200 response, to be echoed
// on the next call.
func (c *Client) Predictions(ctx context.Context, ifModifiedSince string) (Predictions, string, error) {
	var preds Predictions
	defer metrics.Timer(metrics.PredictionsPoll)()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/analysis/predictions", nil)
	if err != nil {
		return preds, "", fmt.Errorf("building request: %w", err)
	}
	if ifModifiedSince != "" {
		req.Header.Set("If-Modified-Since", ifModifiedSince)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return preds, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return preds, "", err
	}

	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return preds, "", fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return preds, resp.Header.Get("Last-Modified"), nil
}

// Export streams a backend-generated report for tab/project in the given
// format. The caller owns closing the reader.
func (c *Client) Export(ctx context.Context, tab Tab, project string, format ExportFormat) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("tab", string(tab))
	q.Set("project", project)
	path := fmt.Sprintf("/api/export/%s?%s", format, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := statusError(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

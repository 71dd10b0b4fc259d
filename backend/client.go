// Package backend wraps the dashboard's consumed HTTP surface. The backend is
// an external collaborator; this package only speaks its REST contract.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSubmitRejected marks a job submission that returned without a usable
// job_id.
var ErrSubmitRejected = errors.New("job submission rejected")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the current bearer credential.
type TokenSource func() string

// Client talks to the dashboard backend.
type Client struct {
	baseURL string
	httpc   HTTPClient
	token   TokenSource
}

// NewClient creates a backend client with a default 30s-timeout transport.
func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		token:   token,
	}
}

// NewClientWithHTTP creates a backend client with a custom transport
// (useful for testing).
func NewClientWithHTTP(baseURL string, token TokenSource, httpc HTTPClient) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		token:   token,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doJSON(req *http.Request, dest interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed with status %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// VerifySession checks the current credential. It returns (false, nil) on an
// explicit rejection (non-200 or valid:false) and a non-nil error only for
// transport failures, so callers can distinguish AuthRejected from network
// trouble.
func (c *Client) VerifySession(ctx context.Context) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/verify_session", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// A mangled success response is a transport-class failure, not a
		// rejection.
		return false, fmt.Errorf("parse response: %w", err)
	}
	return out.Valid, nil
}

// Logout notifies the backend, best-effort. The response is ignored.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	resp.Body.Close()
	return nil
}

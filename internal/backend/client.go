// Package backend talks to the property-management REST API and converts its
// records into the calendar domain model.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "strcal/internal/log"
)

const dateLayout = "2006-01-02"

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// NotFound reports whether err is a 404 from the backend.
func NotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client is a thin JSON client with bearer-token auth.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListBookings returns raw bookings overlapping [from, to] (dates only).
func (c *Client) ListBookings(ctx context.Context, from, to time.Time) ([]BookingDTO, error) {
	q := url.Values{}
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))
	var out []BookingDTO
	if err := c.getList(ctx, "/bookings", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTasks returns raw vendor tasks scheduled within [from, to].
func (c *Client) ListTasks(ctx context.Context, from, to time.Time) ([]TaskDTO, error) {
	q := url.Values{}
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))
	var out []TaskDTO
	if err := c.getList(ctx, "/tasks", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProperties(ctx context.Context) ([]PropertyDTO, error) {
	var out []PropertyDTO
	if err := c.getList(ctx, "/properties", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getList decodes either a bare JSON array or a {"data": [...]} envelope.
func (c *Client) getList(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return fmt.Errorf("backend: decode %s: %w", path, err)
		}
		trimmed = env.Data
	}
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.baseURL == "" {
		return nil, errors.New("backend: base URL is not configured")
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("backend: read %s: %w", path, err)
	}
	appLog.Debug("backend request", "path", path, "status", resp.StatusCode, "took", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &APIError{Method: http.MethodGet, Path: path, Status: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

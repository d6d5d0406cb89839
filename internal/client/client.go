// Package client is a typed client for the dashboard REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// APIError is returned for non-2xx responses and for envelopes with status "error".
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d: %s", e.StatusCode, e.Message)
}

// Client talks to one dashboard backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the backend at baseURL, e.g. http://localhost:3000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{baseURL: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RawContainers returns containers keyed by their backend group.
func (c *Client) RawContainers(ctx context.Context) (map[string][]domain.Container, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/containers", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]struct {
		Containers []domain.Container `json:"containers"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode containers: %w", err)
	}
	out := make(map[string][]domain.Container, len(raw))
	for group, list := range raw {
		out[group] = list.Containers
	}
	return out, nil
}

// ListContainers flattens RawContainers, groups in name order.
func (c *Client) ListContainers(ctx context.Context) ([]domain.Container, error) {
	raw, err := c.RawContainers(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]string, 0, len(raw))
	for g := range raw {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	var out []domain.Container
	for _, g := range groups {
		out = append(out, raw[g]...)
	}
	return out, nil
}

func (c *Client) Groups(ctx context.Context) ([]domain.Group, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/groups", nil, nil)
	if err != nil {
		return nil, err
	}
	var groups []domain.Group
	if err := json.Unmarshal([]byte(gjson.GetBytes(body, "groups").Raw), &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return groups, nil
}

func (c *Client) ListCategories(ctx context.Context) (map[string]domain.Category, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil)
	if err != nil {
		return nil, err
	}
	categories := map[string]domain.Category{}
	if raw := gjson.GetBytes(body, "categories"); raw.Exists() && raw.Type != gjson.Null {
		if err := json.Unmarshal([]byte(raw.Raw), &categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
	}
	return categories, nil
}

// CreateCategory returns the id assigned by the backend.
func (c *Client) CreateCategory(ctx context.Context, cat domain.Category) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/categories", nil, cat)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "id").String(), nil
}

func (c *Client) UpdateCategory(ctx context.Context, cat domain.Category) error {
	_, err := c.do(ctx, http.MethodPut, "/api/categories", url.Values{"id": {cat.ID}}, cat)
	return err
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/categories", url.Values{"id": {id}}, nil)
	return err
}

// SaveOrder sends the complete {id: {position}} mapping in one request.
func (c *Client) SaveOrder(ctx context.Context, positions map[string]int) error {
	payload := make(map[string]domain.OrderEntry, len(positions))
	for id, pos := range positions {
		payload[id] = domain.OrderEntry{Position: pos}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/categories/order", nil, payload)
	return err
}

// Toggle starts or stops name and returns its new status.
func (c *Client) Toggle(ctx context.Context, name string) (domain.Status, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/toggle/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return domain.StatusUnknown, err
	}
	return domain.Status(gjson.GetBytes(body, "state").String()), nil
}

func (c *Client) Update(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/update/"+url.PathEscape(name), nil, nil)
	return err
}

func (c *Client) Restart(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/container/"+url.PathEscape(name)+"/restart", nil, nil)
	return err
}

// Install returns the id of the new container.
func (c *Client) Install(ctx context.Context, req domain.InstallRequest) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/install", nil, req)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "id").String(), nil
}

func (c *Client) GetConfig(ctx context.Context, name string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/container/"+url.PathEscape(name)+"/config", nil, nil)
	if err != nil {
		return "", err
	}
	cfg := gjson.GetBytes(body, "config")
	if !cfg.Exists() {
		return "", fmt.Errorf("response has no config")
	}
	return cfg.String(), nil
}

func (c *Client) SaveConfig(ctx context.Context, name, config string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/container/"+url.PathEscape(name)+"/config", nil, map[string]string{"config": config})
	return err
}

// Logs returns the last tail log lines of name.
func (c *Client) Logs(ctx context.Context, name string, tail int) (string, error) {
	q := url.Values{}
	if tail > 0 {
		q.Set("tail", strconv.Itoa(tail))
	}
	body, err := c.do(ctx, http.MethodGet, "/api/container/"+url.PathEscape(name)+"/logs", q, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	isJSON := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")
	status := ""
	if isJSON {
		status = gjson.GetBytes(body, "status").String()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || status == "error" {
		msg := ""
		if isJSON {
			msg = gjson.GetBytes(body, "message").String()
		} else {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}

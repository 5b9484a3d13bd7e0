package dailiessdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a minimal Dailies HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Asset represents the API asset model with derived turnaround fields.
type Asset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Vendor         string `json:"vendor"`
	Version        int    `json:"version"`
	Notes          string `json:"notes,omitempty"`
	LastReviewedAt string `json:"last_reviewed_at"`
	CalendarDays   int    `json:"calendar_days"`
	BusinessDays   int    `json:"business_days"`
	AlertLevel     string `json:"alert_level"`
	Message        string `json:"message,omitempty"`
}

// Settings represents the alert settings record.
type Settings struct {
	OrangeThreshold int    `json:"orange_threshold"`
	RedThreshold    int    `json:"red_threshold"`
	Rule            string `json:"rule"`
	UpdatedAt       string `json:"updated_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListOptions restrict and order an asset listing.
type ListOptions struct {
	Vendor string
	Search string
	Sort   string
	Desc   bool
	Alert  string
	Limit  int
}

// ListAssets returns assets with turnaround derived server-side.
func (c *Client) ListAssets(ctx context.Context, opts ListOptions) ([]Asset, error) {
	q := url.Values{}
	if opts.Vendor != "" {
		q.Set("vendor", opts.Vendor)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Desc {
		q.Set("desc", "true")
	}
	if opts.Alert != "" {
		q.Set("alert", opts.Alert)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "assets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp []Asset
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// CreateAsset starts tracking an asset.
func (c *Client) CreateAsset(ctx context.Context, name, vendor string, version int) (Asset, error) {
	body := map[string]any{
		"name":    name,
		"vendor":  vendor,
		"version": version,
	}
	var resp Asset
	err := c.do(ctx, http.MethodPost, "assets", body, &resp)
	return resp, err
}

// GetAsset fetches one asset.
func (c *Client) GetAsset(ctx context.Context, id string) (Asset, error) {
	var resp Asset
	err := c.do(ctx, http.MethodGet, "assets/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Review marks an asset reviewed. reviewedAt may be empty for "now".
func (c *Client) Review(ctx context.Context, id, reviewedAt string) (Asset, error) {
	body := map[string]any{}
	if reviewedAt != "" {
		body["reviewed_at"] = reviewedAt
	}
	var resp Asset
	err := c.do(ctx, http.MethodPost, "assets/"+url.PathEscape(id)+"/review", body, &resp)
	return resp, err
}

// GetSettings fetches the alert settings.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	var resp Settings
	err := c.do(ctx, http.MethodGet, "settings", nil, &resp)
	return resp, err
}

// UpdateSettings updates the alert thresholds and rule. Zero values are
// omitted and left unchanged server-side.
func (c *Client) UpdateSettings(ctx context.Context, orange, red int, rule string) (Settings, error) {
	body := map[string]any{}
	if orange > 0 {
		body["orange_threshold"] = orange
	}
	if red > 0 {
		body["red_threshold"] = red
	}
	if rule != "" {
		body["rule"] = rule
	}
	var resp Settings
	err := c.do(ctx, http.MethodPut, "settings", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	base := c.BaseURL
	if base == "" {
		base = "http://127.0.0.1:8080/v0"
	}
	u := base + "/" + path
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{StatusCode: res.StatusCode, Body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

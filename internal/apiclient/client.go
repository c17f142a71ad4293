package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/treyturner/ninjaone-e2e/internal/models"
)

// DefaultEndpoint is the address of the demo device API.
const DefaultEndpoint = "http://localhost:3000"

// Client is an HTTP client for the device inventory REST API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a Bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used to report failed mutations.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client targeting endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the base URL the client targets.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// doJSON performs the request and decodes a 2xx body into out when out is
// non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, path, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func newAPIError(method, path string, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	switch {
	case json.Unmarshal(raw, &payload) == nil && payload.Error != "":
		apiErr.Message = payload.Error
	case payload.Message != "":
		apiErr.Message = payload.Message
	default:
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// logFailure reports a failed mutation. The error is still returned to the
// caller.
func (c *Client) logFailure(ctx context.Context, msg string, err error) {
	attrs := []slog.Attr{slog.String("error", err.Error())}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			slog.Int("status", apiErr.StatusCode),
			slog.String("message", apiErr.Message),
		)
	}
	c.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// ListDevices returns every device the API reports. The full collection is
// expected in a single response.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var out []models.Device
	if err := c.doJSON(ctx, http.MethodGet, "/devices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDevice fetches a single device by ID. Returns nil, nil on 404.
func (c *Client) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var out models.Device
	err := c.doJSON(ctx, http.MethodGet, "/devices/"+url.PathEscape(id), nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByName returns the device whose system_name equals name exactly, or
// nil, nil when there is none.
func (c *Client) FindByName(ctx context.Context, name string) (*models.Device, error) {
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].SystemName == name {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// CreateDevice POSTs a new device and returns the server-assigned record.
func (c *Client) CreateDevice(ctx context.Context, d models.Device) (*models.Device, error) {
	var out models.Device
	if err := c.doJSON(ctx, http.MethodPost, "/devices", newDeviceBody(d), &out); err != nil {
		c.logFailure(ctx, "failed to create device via API", err)
		return nil, err
	}
	return &out, nil
}

// UpdateDevice PUTs a full replacement for the device with d.ID.
func (c *Client) UpdateDevice(ctx context.Context, d models.Device) (*models.Device, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("update device: id is required")
	}
	var out models.Device
	if err := c.doJSON(ctx, http.MethodPut, "/devices/"+url.PathEscape(d.ID), d, &out); err != nil {
		c.logFailure(ctx, "failed to update device via API", err)
		return nil, err
	}
	return &out, nil
}

// DeleteDevice removes the device with the given ID.
func (c *Client) DeleteDevice(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete device: id is required")
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/devices/"+url.PathEscape(id), nil, nil); err != nil {
		c.logFailure(ctx, "failed to delete device via API", err)
		return err
	}
	return nil
}

// newDevice is the create payload; the server assigns the id.
type newDevice struct {
	SystemName  string          `json:"system_name"`
	Type        models.Type     `json:"type"`
	HDDCapacity models.Capacity `json:"hdd_capacity"`
}

func newDeviceBody(d models.Device) newDevice {
	return newDevice{SystemName: d.SystemName, Type: d.Type, HDDCapacity: d.HDDCapacity}
}

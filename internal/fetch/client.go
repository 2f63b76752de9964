// Package fetch re-pulls resource snapshots from the REST API.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/schema"

	"github.com/syntrixbase/statussync/pkg/model"
)

// Config configures the API client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Timeout: 30 * time.Second,
	}
}

// DeploymentQuery filters the deployments listing.
type DeploymentQuery struct {
	ApplicationID int    `schema:"application_id,omitempty"`
	Status        string `schema:"status,omitempty"`
	Take          int    `schema:"take,omitempty"`
	Skip          int    `schema:"skip,omitempty"`
}

// Client talks to the REST API with a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	encoder    *schema.Encoder
}

// NewClient creates a new API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		token:   cfg.Token,
		encoder: schema.NewEncoder(),
	}, nil
}

func (c *Client) ListApplications(ctx context.Context) ([]model.Application, error) {
	var out []model.Application
	err := c.get(ctx, "/api/v1/applications", nil, &out)
	return out, err
}

func (c *Client) ListDatabases(ctx context.Context) ([]model.Database, error) {
	var out []model.Database
	err := c.get(ctx, "/api/v1/databases", nil, &out)
	return out, err
}

func (c *Client) ListServices(ctx context.Context) ([]model.Service, error) {
	var out []model.Service
	err := c.get(ctx, "/api/v1/services", nil, &out)
	return out, err
}

func (c *Client) ListServers(ctx context.Context) ([]model.Server, error) {
	var out []model.Server
	err := c.get(ctx, "/api/v1/servers", nil, &out)
	return out, err
}

// ListDeployments lists deployments matching q.
func (c *Client) ListDeployments(ctx context.Context, q DeploymentQuery) ([]model.Deployment, error) {
	params := url.Values{}
	if err := c.encoder.Encode(q, params); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	var out []model.Deployment
	err := c.get(ctx, "/api/v1/deployments", params, &out)
	return out, err
}

// GetDeployment fetches one deployment by uuid.
func (c *Client) GetDeployment(ctx context.Context, uuid string) (*model.Deployment, error) {
	if uuid == "" {
		return nil, fmt.Errorf("deployment uuid is required")
	}
	var out model.Deployment
	if err := c.get(ctx, "/api/v1/deployments/"+url.PathEscape(uuid), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}
	return c.doRequest(ctx, http.MethodGet, urlStr, result)
}

func (c *Client) doRequest(ctx context.Context, method, urlStr string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.WrapError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Is maps status codes onto the model errors.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case model.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case model.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// IsHTTPError checks if an error is an HTTPError.
func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

package reccheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/types"
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// get performs a GET request and decodes a JSON body into out when non-nil.
// The status code is returned even when decoding fails.
func (c *HTTPClient) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s: %w", path, err)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// Health probes /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	status, err := c.get(ctx, "/healthz", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	return nil
}

// Visitors lists every visitor.
func (c *HTTPClient) Visitors(ctx context.Context) ([]model.VisitorSummary, error) {
	var out []model.VisitorSummary
	status, err := c.get(ctx, "/visitors", &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list visitors failed with status: %d", status)
	}
	return out, nil
}

// Recommendations requests recommendations for badgeID.
func (c *HTTPClient) Recommendations(ctx context.Context, badgeID string, cfg *Config) (types.Result, int, error) {
	q := url.Values{}
	q.Set("min_score", strconv.FormatFloat(cfg.MinScore, 'f', -1, 64))
	if cfg.Max > 0 {
		q.Set("max", strconv.Itoa(cfg.Max))
	}
	q.Set("use_llm", strconv.FormatBool(cfg.UseLLM))

	var res types.Result
	status, err := c.get(ctx, "/visitors/"+url.PathEscape(badgeID)+"/recommendations?"+q.Encode(), &res)
	return res, status, err
}

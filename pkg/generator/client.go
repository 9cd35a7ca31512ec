// Package generator calls the external AI-generation services.
//
// Each function is served by one or more HTTP endpoints. A request is sent
// as POST {url}/functions/{function} with the canonical JSON parameters as
// body; a 2xx response body is the payload. Transport errors and 5xx
// responses fall through to the next endpoint of the function's route.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/config"
	"github.com/academy-ai/aicache/pkg/params"
)

var (
	// ErrNoEndpoints is returned when no endpoint can serve a function.
	ErrNoEndpoints = errors.New("generator: no endpoints configured")

	// ErrUpstream is returned when every endpoint failed.
	ErrUpstream = errors.New("generator: upstream failed")
)

// maxPayload bounds a response body. Larger bodies fail the attempt rather
// than being cut short.
const maxPayload = 8 << 20

var errPayloadTooLarge = errors.New("payload too large")

// Client generates AI content over HTTP.
type Client struct {
	router *Router
	http   *http.Client
	logger *zap.Logger
}

// New creates a Client. A nil logger discards output.
func New(cfg config.GeneratorConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		router: NewRouter(cfg),
		http:   &http.Client{Timeout: timeout},
		logger: logger.Named("generator"),
	}
}

// upstreamResult holds the response from a single upstream attempt.
type upstreamResult struct {
	statusCode int
	body       []byte
}

func (c *Client) doUpstreamRequest(ctx context.Context, ep config.EndpointConfig, functionName string, body []byte) (*upstreamResult, error) {
	base, err := url.Parse(ep.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	target := base.JoinPath("functions", functionName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(respBody) > maxPayload {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", errPayloadTooLarge, maxPayload)
	}
	return &upstreamResult{statusCode: resp.StatusCode, body: respBody}, nil
}

// isRetryable returns true if the error or status code warrants trying the next endpoint.
func isRetryable(err error, statusCode int) bool {
	if err != nil {
		return true
	}
	return statusCode >= 500
}

// Generate runs functionName with p and returns the payload.
func (c *Client) Generate(ctx context.Context, functionName string, p params.Value) ([]byte, error) {
	chain, err := c.router.Resolve(functionName)
	if err != nil {
		return nil, err
	}
	body, err := p.Canonical()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, ep := range chain {
		res, err := c.doUpstreamRequest(ctx, ep, functionName, body)
		status := 0
		if res != nil {
			status = res.statusCode
		}
		if isRetryable(err, status) {
			if err == nil {
				err = fmt.Errorf("%s returned %d", ep.Name, status)
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			c.logger.Warn("endpoint failed, trying next",
				zap.String("endpoint", ep.Name),
				zap.String("function", functionName),
				zap.Error(err),
			)
			continue
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, ep.Name, status, truncate(res.body, 256))
		}
		return res.body, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, functionName, lastErr)
}

// ComputeFunc binds Generate to one invocation for the cache and warmup.
func (c *Client) ComputeFunc(functionName string, p params.Value) cache.ComputeFunc {
	return func(ctx context.Context) ([]byte, error) {
		return c.Generate(ctx, functionName, p)
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

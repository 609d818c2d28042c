package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// DefaultTimeout bounds every gateway call when none is configured.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient creates the HTTP client shared by all adapters.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// client performs JSON calls against one gateway's API.
type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	gateway domain.Gateway
	metrics *metrics.Metrics
}

func newClient(httpClient *http.Client, g domain.Gateway, cfg Config, m *metrics.Metrics) *client {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}
	return &client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		gateway: g,
		metrics: m,
	}
}

// do sends in as JSON (when non-nil) and decodes the response into out.
// Transport failures, 401/403 and 5xx map to ErrGatewayUnavailable; other
// 4xx map to ErrInvalidRequest.
func (c *client) do(ctx context.Context, operation, method, path string, in, out any) error {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("gateway.name", string(c.gateway)),
		attribute.String("gateway.operation", operation),
	)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveGatewayCall(string(c.gateway), operation, "error", time.Since(start))
		span.SetAttributes(attribute.String("gateway.status", "error"))
		return fmt.Errorf("%w: %s %s: %v", ErrGatewayUnavailable, c.gateway, operation, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("gateway.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode >= 500:
		c.metrics.ObserveGatewayCall(string(c.gateway), operation, "unavailable", time.Since(start))
		return fmt.Errorf("%w: %s %s returned status %d", ErrGatewayUnavailable, c.gateway, operation, resp.StatusCode)
	case resp.StatusCode >= 400:
		c.metrics.ObserveGatewayCall(string(c.gateway), operation, "rejected", time.Since(start))
		return fmt.Errorf("%w: %s %s returned status %d", ErrInvalidRequest, c.gateway, operation, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.metrics.ObserveGatewayCall(string(c.gateway), operation, "error", time.Since(start))
			return fmt.Errorf("%w: %s %s: decode response: %v", ErrGatewayUnavailable, c.gateway, operation, err)
		}
	}

	c.metrics.ObserveGatewayCall(string(c.gateway), operation, "ok", time.Since(start))
	return nil
}

// decodeWebhook unmarshals a verified webhook payload.
func decodeWebhook(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: malformed webhook payload", ErrInvalidRequest)
	}
	return nil
}

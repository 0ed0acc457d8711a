// Package endpoints contains the typed endpoint contract layer. Each
// endpoint is a value object whose ProcessResponse is a pure function of
// (status code, body, headers); callers never branch on raw status codes.
package endpoints

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

// Endpoint describes one request/response contract. Path returns the full
// request URL (environment-specific hosts are baked in by the endpoint
// constructor, never read from globals).
type Endpoint[T any] interface {
	Path() string
	Method() string
	Headers() map[string]string
	Content() ([]byte, error)
	ProcessResponse(statusCode int, body []byte, headers map[string]string) (T, error)
}

type Client struct {
	adapter core.TransportAdapter
	logger  core.Logger
}

func NewClient(adapter core.TransportAdapter, logger core.Logger) (*Client, error) {
	if adapter == nil {
		return nil, fmt.Errorf("endpoints: transport adapter is required")
	}
	return &Client{adapter: adapter, logger: logger}, nil
}

// Send executes one endpoint round trip. The transport owns timeouts and
// never retries; recoverable conditions surface as core.ErrRetry or
// core.ErrRetryShort for the scheduling caller.
func Send[T any](ctx context.Context, client *Client, endpoint Endpoint[T]) (T, error) {
	var zero T
	if client == nil || client.adapter == nil {
		return zero, fmt.Errorf("endpoints: client is not configured")
	}
	if endpoint == nil {
		return zero, fmt.Errorf("endpoints: endpoint is required")
	}

	body, err := endpoint.Content()
	if err != nil {
		return zero, fmt.Errorf("%w: %v", core.ErrFailedToCreateRequest, err)
	}
	url := strings.TrimSpace(endpoint.Path())
	if url == "" {
		return zero, fmt.Errorf("%w: empty url", core.ErrFailedToCreateRequest)
	}
	method := strings.TrimSpace(strings.ToUpper(endpoint.Method()))
	if method == "" {
		return zero, fmt.Errorf("%w: empty method", core.ErrFailedToCreateRequest)
	}

	response, err := client.adapter.Do(ctx, core.TransportRequest{
		Method:  method,
		URL:     url,
		Headers: endpoint.Headers(),
		Body:    body,
	})
	if err != nil {
		return zero, err
	}

	return endpoint.ProcessResponse(response.StatusCode, response.Body, response.Headers)
}

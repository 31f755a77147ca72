// Package http_client provides nodes that fetch resources over HTTP. One
// pooled client is shared by every node of the module.
package http_client

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"resty.dev/v3"
)

// DefaultTimeout applies when Module.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for every request. When nil a client with Timeout is
	// created on Register.
	Client  *resty.Client
	Timeout time.Duration
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Register registers net.http_get and net.http_get_json.
func (m *Module) Register(b *registry.Builder) error {
	if m.Client == nil {
		timeout := m.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		m.Client = resty.New().SetTimeout(timeout)
	}
	if err := b.Register("net.http_get", "(string) -> string", registry.Func1(m.get), registry.Impure(),
		registry.WithDoc("Fetches a URL and returns the response body.")); err != nil {
		return err
	}
	return b.Register("net.http_get_json", "(string) -> any", registry.Func1(m.getJSON), registry.Impure(),
		registry.WithDoc("Fetches a URL and decodes the JSON response body."))
}

// Close releases idle connections of the shared client.
func (m *Module) Close() error {
	if m.Client == nil {
		return nil
	}
	return m.Client.Close()
}

func (m *Module) fetch(ctx context.Context, url string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx).With("url", url)
	logger.Info("Making HTTP request", "method", "GET")

	resp, err := m.Client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	logger.Info("Received HTTP response", "status", resp.Status())

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &StatusError{URL: url, Status: resp.Status(), Code: resp.StatusCode()}
	}
	return resp.Bytes(), nil
}

func (m *Module) get(ctx context.Context, url string) (string, error) {
	body, err := m.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (m *Module) getJSON(ctx context.Context, url string) (cty.Value, error) {
	body, err := m.fetch(ctx, url)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(body)
	if err != nil {
		return cty.NilVal, fmt.Errorf("response body is not JSON: %w", err)
	}
	return ctyjson.Unmarshal(body, ty)
}

// Package compileclient talks to a remote compilation server over HTTP.
package compileclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/specialistvlad/graphcraft/internal/artifact"
	"github.com/specialistvlad/graphcraft/internal/compilesrv"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"resty.dev/v3"
)

// DefaultTimeout bounds a whole request, including the remote compilation.
const DefaultTimeout = 60 * time.Second

// ErrTransport is matched by failures to reach the server or to read its
// reply. They are worth retrying; compile errors are not.
var ErrTransport = errors.New("compile server unreachable")

// TransportError wraps a network failure or an unexpected reply.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", ErrTransport, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// IsRetryable reports whether err is a transport failure or a server-side
// timeout.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, compilesrv.ErrTimeout)
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.http.SetTimeout(d) } }

// WithRequestID sets a fixed X-Request-ID on every request.
func WithRequestID(id string) Option { return func(c *Client) { c.requestID = id } }

// Client is a compilation server client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *resty.Client
	requestID string
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resty.New().SetTimeout(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() error { return c.http.Close() }

// Compile sends req to the server. Failures are *compilesrv.CompileError
// when the server answered with a compile outcome, *TransportError
// otherwise.
func (c *Client) Compile(ctx context.Context, req compilesrv.Request) (*compilesrv.Response, error) {
	logger := ctxlog.FromContext(ctx)
	url := c.baseURL + "/v1/compile"

	var out compilesrv.CompileResponse
	var failure compilesrv.ErrorResponse
	r := c.http.R().SetContext(ctx).
		SetBody(compilesrv.CompileRequest{Source: req.Source, Profile: req.Profile}).
		SetResult(&out).
		SetError(&failure)
	if c.requestID != "" {
		r.SetHeader(compilesrv.RequestIDHeader, c.requestID)
	}

	logger.Debug("Sending compile request.", "url", url, "profile", req.Profile, "source_bytes", len(req.Source))
	resp, err := r.Post(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		return nil, &TransportError{URL: url, Status: status, Err: err}
	}
	status := resp.StatusCode()
	logger.Debug("Compile request answered.", "status", status, "request_id", resp.Header().Get(compilesrv.RequestIDHeader))

	if status == http.StatusOK {
		if out.Key == "" {
			return nil, &TransportError{URL: url, Status: status, Err: fmt.Errorf("unexpected reply %q", snippet(resp.Bytes()))}
		}
		return toResponse(url, req, out)
	}

	if failure.Code == "" {
		return nil, &TransportError{URL: url, Status: status, Err: fmt.Errorf("unexpected reply %q", snippet(resp.Bytes()))}
	}
	kind := compilesrv.KindFromCode(failure.Code)
	if kind == compilesrv.KindInternal {
		return nil, &TransportError{URL: url, Status: status, Err: errors.New(failure.Error)}
	}
	return nil, &compilesrv.CompileError{Kind: kind, Message: failure.Error, Diagnostics: compilesrv.FromWire(failure.Diagnostics)}
}

func toResponse(url string, req compilesrv.Request, out compilesrv.CompileResponse) (*compilesrv.Response, error) {
	want := req.Profile
	if want == "" {
		want = out.Profile
	}
	key := artifact.Key(req.Source, want)
	if out.Key != key.String() {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("artifact key mismatch: got %s, want %s", out.Key, key)}
	}
	return &compilesrv.Response{
		Artifact: &artifact.Artifact{
			Key:         key,
			Profile:     out.Profile,
			Binary:      out.Artifact,
			Diagnostics: compilesrv.FromWire(out.Diagnostics),
		},
		CacheHit: out.CacheHit,
	}, nil
}

func snippet(b []byte) string {
	const max = 120
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

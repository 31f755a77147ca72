// Package socketio provides net.socketio_request, which connects to a
// Socket.IO namespace, optionally emits an event and waits for a reply event.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"github.com/zishang520/engine.io-client-go/transports"
	eiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultTimeout applies when the timeout argument cannot be parsed.
const DefaultTimeout = 10 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct {
	InsecureSkipVerify bool
}

// Request is the decoded argument list of net.socketio_request.
type Request struct {
	URL       string
	Namespace string
	EmitEvent string
	OnEvent   string
	Timeout   string
	EmitData  any
}

// opResult is a private struct to safely pass results through the done channel.
type opResult struct {
	value string
	err   error
}

// Register registers both overloads of net.socketio_request. The longer
// one carries a payload for the emitted event.
func (m *Module) Register(b *registry.Builder) error {
	base := "(string, string, string, string, string"
	if err := b.Register("net.socketio_request", base+") -> string", registry.Raw(m.onRun), registry.Impure()); err != nil {
		return err
	}
	return b.Register("net.socketio_request", base+", any) -> string", registry.Raw(m.onRun), registry.Impure())
}

func (m *Module) onRun(ctx context.Context, args []cty.Value, _ cty.Type) (cty.Value, error) {
	var req Request
	fields := []*string{&req.URL, &req.Namespace, &req.EmitEvent, &req.OnEvent, &req.Timeout}
	for i, f := range fields {
		if err := types.FromValue(args[i], f); err != nil {
			return cty.NilVal, fmt.Errorf("input %d: %w", i, err)
		}
	}
	if len(args) > len(fields) {
		data, err := toNative(args[len(fields)])
		if err != nil {
			return cty.NilVal, fmt.Errorf("failed to convert emit data: %w", err)
		}
		req.EmitData = data
	}

	resp, err := m.Request(ctx, req)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.StringVal(resp), nil
}

// Request performs one round trip and returns the first argument of the
// reply event encoded as JSON.
func (m *Module) Request(ctx context.Context, input Request) (string, error) {
	logger := ctxlog.FromContext(ctx).With("node", "net.socketio_request", "url", input.URL, "onEvent", input.OnEvent, "emitEvent", input.EmitEvent)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	if input.OnEvent == "" {
		return "", fmt.Errorf("on_event must not be empty")
	}

	var isConnected atomic.Bool

	timeout, err := time.ParseDuration(input.Timeout)
	if err != nil {
		logger.Warn("Failed to parse timeout, using default", "inputTimeout", input.Timeout, "default", DefaultTimeout, "error", err)
		timeout = DefaultTimeout
	}

	parsedURL, err := url.Parse(input.URL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL %q", input.URL)
	}

	done := make(chan opResult, 1)
	deliver := func(r opResult) {
		select {
		case done <- r:
		default:
		}
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if m.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(eiotypes.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(eiotypes.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Successfully connected", "namespace", input.Namespace, "sid", io.Id())
		if input.EmitEvent != "" {
			logger.Info("Emitting event", "event", input.EmitEvent)
			io.Emit(input.EmitEvent, input.EmitData)
		}
	})

	io.On(eiotypes.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connection failed")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = fmt.Errorf("connection failed: %w", e)
			}
		}
		deliver(opResult{err: err})
	})

	io.On(eiotypes.EventName(input.OnEvent), func(data ...any) {
		var responseData any
		if len(data) > 0 {
			responseData = data[0]
		}
		encoded, err := json.Marshal(responseData)
		if err != nil {
			deliver(opResult{err: fmt.Errorf("failed to encode response: %w", err)})
			return
		}
		deliver(opResult{value: string(encoded)})
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isConnected.Load() {
			return "", fmt.Errorf("timed out after connecting while waiting for event '%s'", input.OnEvent)
		}
		return "", fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		return res.value, res.err
	}
}

// toNative converts a value into plain Go data for the socket payload.
func toNative(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

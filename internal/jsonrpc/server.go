package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Server dispatches newline-delimited JSON-RPC 2.0 calls to a MethodRegistry.
type Server struct {
	registry *MethodRegistry
	logger   *slog.Logger
}

func NewServer(registry *MethodRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, logger: logger}
}

type transportKey struct{}

// TransportFrom returns the transport the current call arrived on. job.submit
// uses it to push progress notifications to the caller.
func TransportFrom(ctx context.Context) (*Transport, bool) {
	t, ok := ctx.Value(transportKey{}).(*Transport)
	return t, ok
}

// ServeStdio runs the server over a process's standard streams.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) {
	s.ServeTransport(ctx, NewTransport(stdin, stdout))
}

// ServeTransport handles calls one at a time, in arrival order, until ctx
// ends, the peer hangs up or a message cannot be parsed. A parse error is
// answered with a null id before the session closes.
func (s *Server) ServeTransport(ctx context.Context, t *Transport) {
	ctx = context.WithValue(ctx, transportKey{}, t)

	for ctx.Err() == nil {
		req, raw, err := t.ReadRequest()
		if errors.Is(err, io.EOF) || (err != nil && ctx.Err() != nil) {
			return
		}
		if err != nil {
			s.logger.Debug("rpc read failed", "error", err)
			s.reply(t, &Response{JSONRPC: Version, Error: ErrParseError(err.Error()), ID: json.RawMessage("null")})
			return
		}

		resp := s.dispatch(ctx, req)
		// a call without an "id" key is a notification and is never answered
		if !hasIDField(raw) {
			continue
		}
		if !s.reply(t, resp) {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	resp := &Response{JSONRPC: Version, ID: req.ID}
	if req.JSONRPC != Version {
		resp.Error = ErrInvalidRequest(`jsonrpc field must be "2.0"`)
		return resp
	}
	handler := s.registry.Lookup(req.Method)
	if handler == nil {
		resp.Error = ErrMethodNotFound(req.Method)
		return resp
	}

	start := time.Now()
	resp.Result, resp.Error = s.invoke(ctx, req.Method, handler, req.Params)
	if resp.Error != nil {
		resp.Result = nil
		s.logger.Debug("rpc call failed", "method", req.Method, "code", resp.Error.Code,
			"message", resp.Error.Message, "duration", time.Since(start))
	} else {
		s.logger.Debug("rpc call", "method", req.Method, "duration", time.Since(start))
	}
	return resp
}

// invoke runs handler and reports a panic as an internal error.
func (s *Server) invoke(ctx context.Context, method string, handler Handler, params json.RawMessage) (result any, rpcErr *Error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rpc handler panicked", "method", method, "panic", r)
			result, rpcErr = nil, ErrInternalError(fmt.Sprintf("%s: %v", method, r))
		}
	}()
	return handler(ctx, params)
}

func (s *Server) reply(t *Transport, resp *Response) bool {
	if err := t.WriteResponse(resp); err != nil {
		s.logger.Debug("rpc write failed", "error", err)
		return false
	}
	return true
}

// hasIDField reports whether the top-level object has an "id" key. An
// explicit null id still makes the message a request.
func hasIDField(raw []byte) bool {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return false
	}
	_, ok := fields["id"]
	return ok
}

package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxMessageSize bounds one newline-delimited message. Generation requests
// carry base64 screenshots, so the limit is well above bufio's default.
const MaxMessageSize = 16 << 20

// Transport exchanges newline-delimited JSON messages over a byte stream.
// Writes are serialized so progress notifications never interleave with
// responses.
type Transport struct {
	scanner *bufio.Scanner
	mu      sync.Mutex
	w       io.Writer
}

func NewTransport(r io.Reader, w io.Writer) *Transport {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxMessageSize)
	return &Transport{scanner: sc, w: w}
}

// ReadRequest decodes the next non-blank line. The raw bytes are returned
// alongside so the caller can tell notifications from requests. It returns
// io.EOF once the stream is drained.
func (t *Transport) ReadRequest() (*Request, []byte, error) {
	for t.scanner.Scan() {
		line := bytes.TrimSpace(t.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		raw := bytes.Clone(line)
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return &req, raw, nil
	}
	if err := t.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, nil, fmt.Errorf("message exceeds %d bytes", MaxMessageSize)
		}
		return nil, nil, err
	}
	return nil, nil, io.EOF
}

func (t *Transport) WriteResponse(resp *Response) error {
	return t.send(resp)
}

// WriteNotification may be called from any goroutine.
func (t *Transport) WriteNotification(n *Notification) error {
	return t.send(n)
}

func (t *Transport) send(msg any) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	buf = append(buf, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.w.Write(buf)
	return err
}

// TCPListener serves a Server to every TCP client, one transport per
// connection.
type TCPListener struct {
	ln     net.Listener
	server *Server
	conns  sync.WaitGroup
}

func NewTCPListener(addr string, server *Server) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &TCPListener{ln: ln, server: server}, nil
}

func (tl *TCPListener) Addr() net.Addr {
	return tl.ln.Addr()
}

// Serve accepts connections until ctx ends or Close is called, then waits
// for open connections to finish. Ending ctx also hangs up every client.
func (tl *TCPListener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = tl.ln.Close() })
	defer stop()
	defer tl.conns.Wait()

	for {
		conn, err := tl.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		tl.conns.Go(func() {
			defer conn.Close() //nolint:errcheck
			hangup := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer hangup()
			tl.server.ServeTransport(ctx, NewTransport(conn, conn))
		})
	}
}

// Close stops accepting connections. Closing twice returns net.ErrClosed.
func (tl *TCPListener) Close() error {
	return tl.ln.Close()
}

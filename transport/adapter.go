// Package transport wraps nhooyr.io/websocket behind a small façade: send,
// receiveString, close, isClosed. It owns no goroutines of its own — the
// connection drivers in the root package supply those.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"nhooyr.io/websocket"
)

// AcceptOptions configures Accept; it mirrors the fields of
// websocket.AcceptOptions that streamware's middleware needs to control.
type AcceptOptions struct {
	InsecureSkipVerify bool
}

// Accept upgrades an HTTP request to a WebSocket connection and wraps it in
// an Adapter.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions) (*Adapter, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: opts.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Adapter is a thin façade over one WebSocket connection.
//
// It exposes a pure send/receive/close contract; the pump goroutines and
// stream bookkeeping live in the connection drivers, which call Send
// directly from whichever goroutine produces an outbound event.
type Adapter struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

// New wraps an already-accepted *websocket.Conn.
func New(conn *websocket.Conn) *Adapter {
	return &Adapter{conn: conn}
}

// Send encodes text as UTF-8 and writes it as one complete text frame.
func (a *Adapter) Send(ctx context.Context, text string) error {
	if a.IsClosed() {
		return errClosed
	}
	err := a.conn.Write(ctx, websocket.MessageText, []byte(text))
	if err != nil {
		a.closed.Store(true)
		return err
	}
	return nil
}

// ReceiveString receives one logical text message, reassembling whatever
// continuation frames the transport delivers. nhooyr.io/websocket already
// reassembles fragmented frames into one Read call, so this is a direct
// pass-through.
//
// Cancellation or any transport failure is reported as ("", false); the
// demux pump treats that as EOF and exits its loop.
func (a *Adapter) ReceiveString(ctx context.Context) (string, bool) {
	if a.IsClosed() {
		return "", false
	}
	typ, data, err := a.conn.Read(ctx)
	if err != nil {
		a.closed.Store(true)
		return "", false
	}
	if typ != websocket.MessageText {
		return "", true // non-text frame: caller sees an empty, malformed message and drops it
	}
	return string(data), true
}

// Close initiates the close handshake with status and reason. Idempotent:
// a second call is a no-op.
func (a *Adapter) Close(status websocket.StatusCode, reason string) error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.conn.Close(status, reason)
}

// IsClosed reports whether the host reported a non-zero client close
// status or Close has been invoked locally.
func (a *Adapter) IsClosed() bool { return a.closed.Load() }

var errClosed = errors.New("transport: adapter closed")

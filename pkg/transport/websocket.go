package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
)

// WebSocketBridge is a reference Transport that frames each Exchange call
// as one binary WebSocket message round trip against a bridge endpoint —
// the shape real Ledger tooling uses to reach a device through an
// emulator (Speculos-style) or a browser-to-native bridge process.
//
// Unlike a JSON-RPC client multiplexing many in-flight calls over one
// socket, APDU exchange is strictly one-at-a-time, so this
// type carries no request-id bookkeeping — only a mutex serializing
// Exchange and a single reconnect after a fixed backoff, adapted from the
// teacher's WebSocketRPCClient.
type WebSocketBridge struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn

	dialTimeout      time.Duration
	reconnectBackoff time.Duration
	maxBackoff       time.Duration
}

// NewWebSocketBridge dials url immediately and returns a ready transport.
func NewWebSocketBridge(url string) (*WebSocketBridge, error) {
	b := &WebSocketBridge{
		url:              url,
		dialTimeout:      5 * time.Second,
		reconnectBackoff: 500 * time.Millisecond,
		maxBackoff:       10 * time.Second,
	}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *WebSocketBridge) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: b.dialTimeout}
	conn, _, err := dialer.Dial(b.url, nil)
	if err != nil {
		return cnerrors.Wrap(cnerrors.TransportError, "transport: websocket dial failed", err)
	}
	b.conn = conn
	return nil
}

// Exchange sends one binary frame and waits for the matching reply frame.
// On a write/read failure it reconnects once with backoff and retries the
// single exchange before giving up — this is transport-level connection
// recovery, not a retry of the logical APDU semantics the device client
// owns.
func (b *WebSocketBridge) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	if len(request) > MaxFrameSize {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "transport: request exceeds frame size")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	resp, err := b.exchangeOnce(ctx, request)
	if err == nil {
		return resp, nil
	}

	select {
	case <-ctx.Done():
		return nil, cnerrors.Wrap(cnerrors.TransportError, "transport: context cancelled", ctx.Err())
	case <-time.After(b.reconnectBackoff):
	}
	if rerr := b.connect(); rerr != nil {
		return nil, rerr
	}
	return b.exchangeOnce(ctx, request)
}

func (b *WebSocketBridge) exchangeOnce(ctx context.Context, request []byte) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.conn.SetWriteDeadline(deadline)
		_ = b.conn.SetReadDeadline(deadline)
	}

	if err := b.conn.WriteMessage(websocket.BinaryMessage, request); err != nil {
		return nil, wrapTransportErr(err)
	}

	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	return data, nil
}

// Close closes the underlying WebSocket connection.
func (b *WebSocketBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

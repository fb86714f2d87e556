// Package device implements the Ledger CryptoNote Device Client: one
// method per APDU command, input validation ahead of any transport I/O,
// and the observer/health/metrics/logging instrumentation that wraps every
// exchange.
package device

import (
	"context"
	"encoding/hex"
	"runtime"
	"sync"
	"time"

	"github.com/ledgerctl/cryptonote-core/pkg/apdu"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/ledgerctl/cryptonote-core/pkg/transport"
	"go.uber.org/zap"
)

// Client drives one CryptoNote Ledger application over a Transport.
// Exchanges are serialized: a Client must not send a new request until the
// previous response is consumed, enforced here with an
// exclusive lock around the transport round trip.
type Client struct {
	t transport.Transport

	exchangeMu sync.Mutex

	health  *healthTracker
	metrics *Metrics
	obs     *observerRegistry
	log     *zap.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver subscribes obs to every send/receive event at construction
// time, equivalent to calling Subscribe after New.
func WithObserver(obs Observer) Option {
	return func(c *Client) { c.obs.Subscribe(obs) }
}

// New builds a Client over t.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		t:       t,
		health:  newHealthTracker(),
		metrics: NewMetrics(),
		obs:     newObserverRegistry(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe adds obs to the send/receive observer registry.
func (c *Client) Subscribe(obs Observer) { c.obs.Subscribe(obs) }

// Close releases the underlying transport.
func (c *Client) Close() error { return c.t.Close() }

// Metrics returns the client's metrics recorder.
func (c *Client) Metrics() *Metrics { return c.metrics }

// Health returns a snapshot of the device session's circuit-breaker state.
func (c *Client) Health() HealthSnapshot { return c.health.snapshot() }

// exchange frames, sends, and decodes one APDU round trip. It is only ever
// called after a method-specific input validation pass has already
// succeeded — malformed input never reaches this function.
func (c *Client) exchange(ctx context.Context, ins byte, confirm bool, data []byte) (apdu.Response, error) {
	req := apdu.Request{INS: ins, Confirm: confirm, Data: data}
	encoded, err := req.Encode()
	if err != nil {
		return apdu.Response{}, err
	}

	cmd := commandName(ins)
	correlate := newCorrelationID()
	c.obs.publish(Event{Kind: "send", CommandID: ins, Correlate: correlate, HexPayload: hex.EncodeToString(encoded), At: time.Now()})

	c.exchangeMu.Lock()
	start := time.Now()
	raw, xerr := c.t.Exchange(ctx, encoded)
	elapsed := time.Since(start)
	c.exchangeMu.Unlock()

	if xerr != nil {
		c.health.recordFailure()
		c.metrics.Record(cmd, elapsed, false)
		c.log.Debug("apdu exchange failed", zap.String("command", cmd), zap.Bool("confirm", confirm), zap.Duration("elapsed", elapsed), zap.Error(xerr))
		if c.health.looksDisconnected() {
			return apdu.Response{}, cnerrors.Wrap(cnerrors.TransportError, "device appears disconnected", xerr)
		}
		return apdu.Response{}, xerr
	}

	c.obs.publish(Event{Kind: "receive", CommandID: ins, Correlate: correlate, HexPayload: hex.EncodeToString(raw), At: time.Now()})

	resp, decodeErr := apdu.Decode(raw)
	if decodeErr != nil {
		c.health.recordFailure()
		c.metrics.Record(cmd, elapsed, false)
		c.log.Debug("apdu response error", zap.String("command", cmd), zap.Error(decodeErr))
		return resp, decodeErr
	}

	c.health.recordSuccess()
	c.metrics.Record(cmd, elapsed, true)
	c.log.Debug("apdu exchange ok", zap.String("command", cmd), zap.Bool("confirm", confirm), zap.Duration("elapsed", elapsed))
	return resp, nil
}

// clearBytes zeros sensitive key material read off the wire, adapted from
// a standard ClearBytes helper.
func clearBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

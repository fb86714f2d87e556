// Package transport defines the opaque byte-exchange channel to a Ledger
// device and ships two reference implementations: a USB-presence-gated
// transport and a WebSocket bridge transport for emulator/proxy setups.
// The device client in pkg/device depends only on the Transport interface.
package transport

import (
	"context"

	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
)

// MaxFrameSize is the largest request/response the transport is asked to
// carry — matching the 512-byte APDU frame ceiling.
const MaxFrameSize = 512

// Transport is a bidirectional byte channel to the device. Implementations
// translate TransportError failures from whatever underlying medium they
// use (USB HID, a WebSocket bridge, an in-process test double).
type Transport interface {
	// Exchange sends request and returns the device's response. request
	// must be no larger than MaxFrameSize. Context cancellation must abort
	// the in-flight exchange and return ctx.Err() wrapped as TransportError.
	Exchange(ctx context.Context, request []byte) ([]byte, error)

	// Close releases any underlying connection.
	Close() error
}

// wrapTransportErr normalizes an underlying transport failure into the
// shared error taxonomy.
func wrapTransportErr(err error) error {
	if err == nil {
		return nil
	}
	return cnerrors.Wrap(cnerrors.TransportError, "transport: exchange failed", err)
}

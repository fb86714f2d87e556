package transport

import (
	"context"
	"sync"

	usbdrivedetector "github.com/SonarBeserk/gousbdrivedetector"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
)

// RawExchangeFunc performs one physical HID exchange with a connected
// device. The actual USB HID report framing is inherently platform- and
// cgo-specific, so it stays a caller-supplied function — USB only adds the
// device-presence gate and the exchange serialization required of the
// transport adapter.
type RawExchangeFunc func(ctx context.Context, request []byte) ([]byte, error)

// USB is a reference Transport that requires a detectable USB device
// before delegating to a raw exchange function, following the pattern of a
// gousbdrivedetector-based storage discovery.
type USB struct {
	raw     RawExchangeFunc
	detect  func() ([]string, error)
	mu      sync.Mutex
	checked bool
}

// NewUSB builds a USB transport. detect defaults to
// usbdrivedetector.Detect when nil (overridable for tests).
func NewUSB(raw RawExchangeFunc, detect func() ([]string, error)) *USB {
	if detect == nil {
		detect = usbdrivedetector.Detect
	}
	return &USB{raw: raw, detect: detect}
}

// Exchange gates the first call on device presence, then delegates. Only
// the first call pays the discovery cost — once a device has been seen,
// the session is assumed to persist for the life of the transport.
func (u *USB) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	if len(request) > MaxFrameSize {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "transport: request exceeds frame size")
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.checked {
		devices, err := u.detect()
		if err != nil {
			return nil, cnerrors.Wrap(cnerrors.TransportError, "transport: usb device detection failed", err)
		}
		if len(devices) == 0 {
			return nil, cnerrors.New(cnerrors.TransportError, "transport: no ledger device detected")
		}
		u.checked = true
	}

	select {
	case <-ctx.Done():
		return nil, cnerrors.Wrap(cnerrors.TransportError, "transport: context cancelled", ctx.Err())
	default:
	}

	resp, err := u.raw(ctx, request)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	return resp, nil
}

// Close is a no-op for USB; the raw exchange function owns the underlying
// HID handle lifecycle.
func (u *USB) Close() error { return nil }

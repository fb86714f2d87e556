// Package cnerrors defines the error taxonomy shared by every layer of the
// Ledger CryptoNote core: the APDU codec, the device client, the CryptoNote
// helper, and the transaction builder all return *Error, classified by Kind
// rather than wrapped ad hoc.
package cnerrors

import "fmt"

// Kind classifies an error by how the caller should react to it. Unlike a
// retry classification, none of these kinds are retried inside the core.
type Kind int

const (
	// InvalidArgument covers malformed hex, out-of-range integers, wrong
	// ring size, and oversized payloads, raised locally before any
	// transport I/O. Malformed device responses (a truncated body, a short
	// response, a ring-signature body of the wrong length) are reported
	// with this kind too, after the exchange.
	InvalidArgument Kind = iota

	// NotOurOutput means a scanning predicate failed to match. Not a true
	// error condition at the scan level — callers filter it out.
	NotOurOutput

	// NotSupported covers extraData, partial key images, and the
	// unimplemented builder methods out of scope for this device generation.
	NotSupported

	// Insufficient covers inputs < outputs, fee exceeding change, and
	// unmet fusion preconditions.
	Insufficient

	// PaymentIDConflict covers destinations that carry differing
	// integrated payment ids, or integrated vs. explicit disagreement.
	PaymentIDConflict

	// DeviceStateError means a TX_STATE read after a phase command did not
	// match the expected state.
	DeviceStateError

	// DeviceProtocolError means the device's status word was not OK.
	DeviceProtocolError

	// TransportError is propagated from the transport adapter.
	TransportError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotOurOutput:
		return "NotOurOutput"
	case NotSupported:
		return "NotSupported"
	case Insufficient:
		return "Insufficient"
	case PaymentIDConflict:
		return "PaymentIDConflict"
	case DeviceStateError:
		return "DeviceStateError"
	case DeviceProtocolError:
		return "DeviceProtocolError"
	case TransportError:
		return "TransportError"
	default:
		return "Unknown"
	}
}

// Error is the single error type surfaced by every package in this module.
type Error struct {
	Kind    Kind
	Message string
	Code    uint16 // populated only for DeviceProtocolError
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error of the given kind with no cause and no device code.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewDeviceProtocolError creates a DeviceProtocolError carrying the
// surfaced device status/error code.
func NewDeviceProtocolError(code uint16, message string) *Error {
	return &Error{Kind: DeviceProtocolError, Message: message, Code: code}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Package cryptonote implements the CryptoNote Helper: the host-side
// wrapper that combines a Device Client with a crypto provider and an
// address codec to perform key fetch-and-cache, output scanning,
// integrated address formation, offset arithmetic, fee calculation, and
// message signing via the device.
package cryptonote

import "github.com/ledgerctl/cryptonote-core/pkg/apdu"

// Hash, Scalar, and Point are all 32-byte values rendered as 64-hex-char
// lowercase strings; the distinction is semantic only.
type (
	Hash   = string
	Scalar = string
	Point  = string
)

// Signature is a 64-byte value rendered as a 128-hex-char lowercase
// string.
type Signature = string

// ValidateHashHex is exported so callers assembling their own requests can
// validate before calling into the Helper.
func ValidateHashHex(s string) error { return apdu.ValidateHex(s, apdu.HashHexLen) }

// ValidateSignatureHex mirrors ValidateHashHex for 64-byte signatures.
func ValidateSignatureHex(s string) error { return apdu.ValidateHex(s, apdu.SignatureHexLen) }

// KeyPair holds a public key and, when known, the private scalar that
// produces it.
type KeyPair struct {
	Public  Point
	Private Scalar // empty when not held locally (device-only secrets)
}

// Address is a CryptoNote wallet address: spend/view public keys, an
// optional embedded payment id, and the network prefix it was encoded
// with.
type Address struct {
	SpendPublic Point
	ViewPublic  Point
	PaymentID   string // 64-hex-char, empty when not integrated
	Prefix      uint64
}

// TransactionKeys records the transaction public key, the Diffie-Hellman
// derivation computed from it, and the output index a scanned output was
// matched at.
type TransactionKeys struct {
	TxPublic   Point
	Derivation Hash
	OutputIndex uint32
}

// Output is a transaction output observed during scanning.
type Output struct {
	Index       uint32
	Key         Point
	GlobalIndex uint64
	Amount      uint64

	// Populated only once isOurTransactionOutput has matched this output.
	Input    *TransactionKeys
	KeyImage Hash
}

// GeneratedOutput is a transient destination supplied to the builder:
// an amount to pay to an address.
type GeneratedOutput struct {
	Amount      uint64
	Destination Address
}

// RandomOutput is a decoy ring member drawn from a caller-supplied pool;
// its GlobalIndex must differ from the real input's.
type RandomOutput struct {
	Key         Point
	GlobalIndex uint64
}

// Session holds the Helper's write-once key cache. It is populated
// exactly once by fetchKeys and is read-only thereafter; see Helper's
// publish discipline in helper.go.
type Session struct {
	Spend   KeyPair
	View    KeyPair
	Address Address
	Ready   bool
}

// Package addresscodec is the default AddressCodec: a Base58 encoding
// (built on the same base58 alphabet the teacher already imports for its
// Tron address formatter) of a varint network prefix, spend/view public
// keys, an optional payment id, and a Keccak-derived checksum. The whole
// buffer is encoded in one pass; CryptoNote's block-wise Base58 variant
// (8-byte blocks to 11 characters) is not implemented, so the strings it
// produces and accepts are not interchangeable with CryptoNote node
// addresses.
package addresscodec

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote"
	"github.com/mr-tron/base58"
)

var _ cryptonote.AddressCodec = (*Codec)(nil)

// checksumSize is the number of leading checksum bytes CryptoNote
// addresses carry, derived from cn_fast_hash(prefix||keys[||paymentID])
// and appended before Base58 encoding.
const checksumSize = 4

// Codec is the default cryptonote.AddressCodec.
type Codec struct{}

// New builds a Codec.
func New() *Codec { return &Codec{} }

// Encode renders addr as a CryptoNote Base58 address: varint(prefix) ||
// spendPublic || viewPublic [|| paymentID] || checksum(4).
func (c *Codec) Encode(addr cryptonote.Address) (string, error) {
	spend, err := hex.DecodeString(addr.SpendPublic)
	if err != nil || len(spend) != 32 {
		return "", cnerrors.New(cnerrors.InvalidArgument, "addresscodec: malformed spend public key")
	}
	view, err := hex.DecodeString(addr.ViewPublic)
	if err != nil || len(view) != 32 {
		return "", cnerrors.New(cnerrors.InvalidArgument, "addresscodec: malformed view public key")
	}

	body := append([]byte{}, encodeVarint(addr.Prefix)...)
	body = append(body, spend...)
	body = append(body, view...)
	if addr.PaymentID != "" {
		pid, err := hex.DecodeString(addr.PaymentID)
		if err != nil || len(pid) != 32 {
			return "", cnerrors.New(cnerrors.InvalidArgument, "addresscodec: malformed payment id")
		}
		body = append(body, pid...)
	}

	checksum := crypto.Keccak256(body)[:checksumSize]
	full := append(body, checksum...)
	return base58.Encode(full), nil
}

// Decode parses encoded back into an Address, validating the trailing
// checksum.
func (c *Codec) Decode(encoded string) (cryptonote.Address, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return cryptonote.Address{}, cnerrors.Wrap(cnerrors.InvalidArgument, "addresscodec: malformed base58", err)
	}
	if len(raw) < checksumSize {
		return cryptonote.Address{}, cnerrors.New(cnerrors.InvalidArgument, "addresscodec: address too short")
	}

	body, checksum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	want := crypto.Keccak256(body)[:checksumSize]
	for i := range want {
		if want[i] != checksum[i] {
			return cryptonote.Address{}, cnerrors.New(cnerrors.InvalidArgument, "addresscodec: checksum mismatch")
		}
	}

	prefix, n := decodeVarint(body)
	if n == 0 {
		return cryptonote.Address{}, cnerrors.New(cnerrors.InvalidArgument, "addresscodec: malformed prefix")
	}
	body = body[n:]
	if len(body) != 64 && len(body) != 96 {
		return cryptonote.Address{}, cnerrors.New(cnerrors.InvalidArgument, "addresscodec: unexpected address body length")
	}

	spend := body[:32]
	view := body[32:64]
	addr := cryptonote.Address{
		SpendPublic: hex.EncodeToString(spend),
		ViewPublic:  hex.EncodeToString(view),
		Prefix:      prefix,
	}
	if len(body) == 96 {
		addr.PaymentID = hex.EncodeToString(body[64:96])
	}
	return addr, nil
}

func encodeVarint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func decodeVarint(b []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
		if shift >= 64 {
			return 0, 0
		}
	}
	return 0, 0
}

// Package txdecoder implements the Transaction binary decoder: enough of
// the CryptoNote transaction wire format to walk past the prefix's varint
// version/unlock-time fields and vin/vout arrays, isolate the serialized
// prefix from the ring-signature data appended after it, and recover a
// transaction's prefix hash and overall byte size — the two fields the
// Transaction Builder verifies against the device's TX_SIGN result.
package txdecoder

import (
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
)

// Transaction is the decoded result: the raw bytes as retrieved from the
// device, the cn_fast_hash of the serialized prefix, and the overall
// length.
type Transaction struct {
	Raw  []byte
	Hash string
	Size uint16
}

// vin tags.
const (
	vinTagGen   = 0xff // txin_gen: coinbase, varint height only
	vinTagToKey = 0x02 // txin_to_key: amount, key offsets, key image
)

// vout tag.
const voutTagToKey = 0x02 // txout_to_key: amount, public key

// From decodes raw into a Transaction. It walks the prefix structurally —
// varint version, varint unlock_time, the vin array, the vout array, and
// the varint-length-prefixed extra field — to find exactly where the
// prefix ends, then hashes only that span with cn_fast_hash. Bytes after
// the prefix (the device's appended ring signature data) are included in
// Size but excluded from the hash, matching how a real CryptoNote node
// computes a transaction's prefix hash.
func From(raw []byte) (Transaction, error) {
	if len(raw) == 0 {
		return Transaction{}, cnerrors.New(cnerrors.InvalidArgument, "txdecoder: empty transaction buffer")
	}
	if len(raw) > 1<<16-1 {
		return Transaction{}, cnerrors.New(cnerrors.InvalidArgument, "txdecoder: transaction larger than u16 size field")
	}

	prefixEnd, err := prefixLength(raw)
	if err != nil {
		return Transaction{}, err
	}

	digest := ethcrypto.Keccak256(raw[:prefixEnd])
	return Transaction{
		Raw:  append([]byte(nil), raw...),
		Hash: hex.EncodeToString(digest),
		Size: uint16(len(raw)),
	}, nil
}

// prefixLength walks version, unlock_time, vin, vout, and extra and
// returns the offset of the first byte after the prefix.
func prefixLength(raw []byte) (int, error) {
	r := &byteReader{buf: raw}

	if _, err := r.varint(); err != nil { // version
		return 0, wrapShort("version", err)
	}
	if _, err := r.varint(); err != nil { // unlock_time
		return 0, wrapShort("unlock_time", err)
	}

	vinCount, err := r.varint()
	if err != nil {
		return 0, wrapShort("vin count", err)
	}
	for i := uint64(0); i < vinCount; i++ {
		if err := r.skipVin(); err != nil {
			return 0, wrapShort("vin", err)
		}
	}

	voutCount, err := r.varint()
	if err != nil {
		return 0, wrapShort("vout count", err)
	}
	for i := uint64(0); i < voutCount; i++ {
		if err := r.skipVout(); err != nil {
			return 0, wrapShort("vout", err)
		}
	}

	extraSize, err := r.varint()
	if err != nil {
		return 0, wrapShort("extra size", err)
	}
	if err := r.skip(int(extraSize)); err != nil {
		return 0, wrapShort("extra", err)
	}

	return r.pos, nil
}

func wrapShort(field string, cause error) error {
	return cnerrors.Wrap(cnerrors.InvalidArgument, "txdecoder: truncated "+field, cause)
}

// byteReader is a forward-only cursor over a transaction buffer.
type byteReader struct {
	buf []byte
	pos int
}

var errTruncated = cnerrors.New(cnerrors.InvalidArgument, "txdecoder: unexpected end of buffer")

// varint reads a CryptoNote/LEB128-style unsigned varint: 7 payload bits
// per byte, high bit set on every byte but the last.
func (r *byteReader) varint() (uint64, error) {
	var out uint64
	var shift uint
	for {
		if r.pos >= len(r.buf) {
			return 0, errTruncated
		}
		b := r.buf[r.pos]
		r.pos++
		out |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return out, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, cnerrors.New(cnerrors.InvalidArgument, "txdecoder: varint overflow")
		}
	}
}

func (r *byteReader) skip(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return errTruncated
	}
	r.pos += n
	return nil
}

// skipVin consumes one vin entry: a tag byte, then tag-specific fields.
// Only txin_gen and txin_to_key are recognized — the only two vin kinds a
// CryptoNote transaction prefix carries.
func (r *byteReader) skipVin() error {
	if r.pos >= len(r.buf) {
		return errTruncated
	}
	tag := r.buf[r.pos]
	r.pos++

	switch tag {
	case vinTagGen:
		_, err := r.varint() // height
		return err
	case vinTagToKey:
		if _, err := r.varint(); err != nil { // amount
			return err
		}
		offsetCount, err := r.varint()
		if err != nil {
			return err
		}
		for i := uint64(0); i < offsetCount; i++ {
			if _, err := r.varint(); err != nil { // key offset
				return err
			}
		}
		return r.skip(32) // key image
	default:
		return cnerrors.New(cnerrors.InvalidArgument, "txdecoder: unrecognized vin tag")
	}
}

// skipVout consumes one vout entry: a varint amount, a tag byte, and a
// 32-byte output key (txout_to_key is the only vout kind this transaction
// format produces).
func (r *byteReader) skipVout() error {
	if _, err := r.varint(); err != nil { // amount
		return err
	}
	if r.pos >= len(r.buf) {
		return errTruncated
	}
	tag := r.buf[r.pos]
	r.pos++
	if tag != voutTagToKey {
		return cnerrors.New(cnerrors.InvalidArgument, "txdecoder: unrecognized vout tag")
	}
	return r.skip(32)
}

package apdu

import (
	"encoding/binary"
	"encoding/hex"
	"regexp"

	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]+$`)

// HashHexLen, SignatureHexLen are the exact hex-string lengths the wire format
// requires for 32-byte and 64-byte wire values respectively.
const (
	HashHexLen      = 64
	SignatureHexLen = 128
)

// ValidateHex checks that s is exactly wantLen lowercase hex characters.
func ValidateHex(s string, wantLen int) error {
	if len(s) != wantLen || !hexPattern.MatchString(s) {
		return cnerrors.New(cnerrors.InvalidArgument, "apdu: malformed hex value")
	}
	return nil
}

// DecodeHash32 validates and decodes a 64-hex-char hash/scalar/point.
func DecodeHash32(s string) ([]byte, error) {
	if err := ValidateHex(s, HashHexLen); err != nil {
		return nil, err
	}
	return hex.DecodeString(s)
}

// DecodeSignature64 validates and decodes a 128-hex-char signature.
func DecodeSignature64(s string) ([]byte, error) {
	if err := ValidateHex(s, SignatureHexLen); err != nil {
		return nil, err
	}
	return hex.DecodeString(s)
}

// EncodeHash32 renders 32 raw bytes as a lowercase hex string.
func EncodeHash32(b []byte) string { return hex.EncodeToString(b) }

// EncodeSignature64 renders 64 raw bytes as a lowercase hex string.
func EncodeSignature64(b []byte) string { return hex.EncodeToString(b) }

// Writer accumulates a request DATA body using the big-endian/raw-bytes
// encodings the wire format defines for primitives inside DATA.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
	return w
}

// Raw32 appends exactly 32 raw bytes (a hash/scalar/point). Panics if b is
// not 32 bytes — callers must validate/decode hex first.
func (w *Writer) Raw32(b []byte) *Writer {
	if len(b) != 32 {
		panic("apdu: Raw32 requires exactly 32 bytes")
	}
	w.buf = append(w.buf, b...)
	return w
}

// Raw64 appends exactly 64 raw bytes (a signature).
func (w *Writer) Raw64(b []byte) *Writer {
	if len(b) != 64 {
		panic("apdu: Raw64 requires exactly 64 bytes")
	}
	w.buf = append(w.buf, b...)
	return w
}

// Raw appends a raw byte slice verbatim (used for opaque/UTF-8 payloads).
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Reader walks a response body using the same primitive encodings.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) require(n int) error {
	if r.Remaining() < n {
		return cnerrors.New(cnerrors.InvalidArgument, "apdu: response body truncated")
	}
	return nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) Raw32() ([]byte, error) {
	if err := r.require(32); err != nil {
		return nil, err
	}
	v := append([]byte(nil), r.buf[r.pos:r.pos+32]...)
	r.pos += 32
	return v, nil
}

func (r *Reader) Raw64() ([]byte, error) {
	if err := r.require(64); err != nil {
		return nil, err
	}
	v := append([]byte(nil), r.buf[r.pos:r.pos+64]...)
	r.pos += 64
	return v, nil
}

// Rest returns every remaining byte in the body.
func (r *Reader) Rest() []byte {
	v := append([]byte(nil), r.buf[r.pos:]...)
	r.pos = len(r.buf)
	return v
}

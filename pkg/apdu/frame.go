// Package apdu implements the binary request/response framing spoken with
// the Ledger CryptoNote application: CLA/INS/P1/P2/LEN/DATA requests and
// BODY||SW responses, plus the primitive readers/writers the device client
// builds its command bodies from.
package apdu

import (
	"encoding/binary"

	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
)

// CLA is the protocol's fixed class byte.
const CLA = 0xE0

// maxRequestLen is the largest DATA payload this codec will frame, leaving
// room for the 6-byte header within a 512-byte transport frame.
const maxRequestLen = 512 - 6

// Request holds the fields of one outbound APDU before framing.
type Request struct {
	INS     byte
	Confirm bool // sets P1 = 0x01 when true, 0x00 otherwise
	Data    []byte
}

// Encode frames r into wire bytes: CLA | INS | P1 | P2 | LEN(u16be) | DATA.
// Returns InvalidArgument without allocating a frame if Data exceeds the
// local payload ceiling.
func (r Request) Encode() ([]byte, error) {
	if len(r.Data) > maxRequestLen {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "apdu: payload too large")
	}

	p1 := byte(0x00)
	if r.Confirm {
		p1 = 0x01
	}

	out := make([]byte, 6+len(r.Data))
	out[0] = CLA
	out[1] = r.INS
	out[2] = p1
	out[3] = 0x00
	binary.BigEndian.PutUint16(out[4:6], uint16(len(r.Data)))
	copy(out[6:], r.Data)
	return out, nil
}

// Response is a parsed APDU response: the body with the trailing status
// word removed, plus the resolved status/error code.
type Response struct {
	Body []byte
	Code uint16
}

// OK reports whether the response represents success.
func (r Response) OK() bool {
	return r.Code == cnerrors.CodeOK
}

// Decode splits raw transport bytes into a Response. raw must be at least
// 2 bytes (the status word); on success (SW == 0x9000) Code is 0x9000 and
// Body is everything before the status word. On failure, if Body is at
// least 2 bytes long, those leading two bytes (big-endian) replace SW as
// the surfaced Code — the device-specific-error-in-body quirk.
func Decode(raw []byte) (Response, error) {
	if len(raw) < 2 {
		return Response{}, cnerrors.New(cnerrors.InvalidArgument, "apdu: response shorter than status word")
	}

	body := raw[:len(raw)-2]
	sw := binary.BigEndian.Uint16(raw[len(raw)-2:])

	if sw == cnerrors.CodeOK {
		return Response{Body: body, Code: cnerrors.CodeOK}, nil
	}

	code := sw
	if len(body) >= 2 {
		code = binary.BigEndian.Uint16(body[:2])
	}
	return Response{Body: body, Code: code}, cnerrors.NewDeviceProtocolError(code, cnerrors.MessageForCode(code))
}

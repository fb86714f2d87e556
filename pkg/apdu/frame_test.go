package apdu

import (
	"testing"

	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestEncodeFraming(t *testing.T) {
	req := Request{INS: 0x01, Confirm: true, Data: nil}
	out, err := req.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 0x01, 0x01, 0x00, 0x00, 0x00}, out)
}

func TestRequestEncodePayloadTooLarge(t *testing.T) {
	req := Request{INS: 0x01, Data: make([]byte, maxRequestLen+1)}
	_, err := req.Encode()
	require.Error(t, err)
	assert.True(t, cnerrors.Is(err, cnerrors.InvalidArgument))
}

// Version round trip: send E0 01 01 00 0000, reply 01 02 03 9000.
func TestVersionScenarioS1(t *testing.T) {
	req := Request{INS: 0x01, Confirm: true}
	out, err := req.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 0x01, 0x01, 0x00, 0x00, 0x00}, out)

	resp, err := Decode([]byte{0x01, 0x02, 0x03, 0x90, 0x00})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, resp.Body)

	r := NewReader(resp.Body)
	major, err := r.U8()
	require.NoError(t, err)
	minor, err := r.U8()
	require.NoError(t, err)
	patch, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), major)
	assert.Equal(t, uint8(2), minor)
	assert.Equal(t, uint8(3), patch)
}

func TestDecodeDeviceProtocolErrorFromStatusWord(t *testing.T) {
	_, err := Decode([]byte{0x69, 0x85})
	require.Error(t, err)
	var cnErr *cnerrors.Error
	require.ErrorAs(t, err, &cnErr)
	assert.Equal(t, cnerrors.DeviceProtocolError, cnErr.Kind)
	assert.Equal(t, uint16(0x6985), cnErr.Code)
}

func TestDecodeBodyErrorCodeOverridesStatusWord(t *testing.T) {
	// Body carries a richer error code (0x9506) even though SW says 0x6985.
	raw := []byte{0x95, 0x06, 0x69, 0x85}
	_, err := Decode(raw)
	require.Error(t, err)
	var cnErr *cnerrors.Error
	require.ErrorAs(t, err, &cnErr)
	assert.Equal(t, uint16(0x9506), cnErr.Code)
}

func TestValidateHexRejectsBadLengthAndCharset(t *testing.T) {
	assert.Error(t, ValidateHex("ZZ", HashHexLen))
	assert.Error(t, ValidateHex("abc", HashHexLen))
	valid := ""
	for i := 0; i < HashHexLen; i++ {
		valid += "a"
	}
	assert.NoError(t, ValidateHex(valid, HashHexLen))
}

func TestWriterReaderRoundTrip(t *testing.T) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}
	sig := make([]byte, 64)
	for i := range sig {
		sig[i] = byte(255 - i)
	}

	w := NewWriter()
	w.U8(7).U16(1000).U32(100000).U64(1 << 40).Raw32(hash).Raw64(sig)

	r := NewReader(w.Bytes())
	u8, err := r.U8()
	require.NoError(t, err)
	u16, err := r.U16()
	require.NoError(t, err)
	u32, err := r.U32()
	require.NoError(t, err)
	u64, err := r.U64()
	require.NoError(t, err)
	gotHash, err := r.Raw32()
	require.NoError(t, err)
	gotSig, err := r.Raw64()
	require.NoError(t, err)

	assert.Equal(t, uint8(7), u8)
	assert.Equal(t, uint16(1000), u16)
	assert.Equal(t, uint32(100000), u32)
	assert.Equal(t, uint64(1<<40), u64)
	assert.Equal(t, hash, gotHash)
	assert.Equal(t, sig, gotSig)
	assert.Equal(t, 0, r.Remaining())
}

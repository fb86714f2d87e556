package device_test

import (
	"context"
	"testing"

	"github.com/ledgerctl/cryptonote-core/pkg/apdu"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/ledgerctl/cryptonote-core/pkg/device"
	"github.com/ledgerctl/cryptonote-core/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVersionRoundTrip exercises a successful VERSION
// exchange decodes major/minor/patch from the response body.
func TestVersionRoundTrip(t *testing.T) {
	want, err := apdu.Request{INS: 0x01, Confirm: true}.Encode()
	require.NoError(t, err)

	tr := transport.NewScripted(transport.Step{
		Want: want,
		Resp: []byte{0x01, 0x02, 0x03, 0x90, 0x00},
	})
	c := device.New(tr)

	info, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, device.VersionInfo{Major: 1, Minor: 2, Patch: 3}, info)
	assert.True(t, tr.Done())
}

// TestCheckKeyRejectsMalformedHexWithoutTransportIO confirms that
// an invalid hex argument must fail validation before any transport I/O is
// attempted, surfacing InvalidArgument.
func TestCheckKeyRejectsMalformedHexWithoutTransportIO(t *testing.T) {
	tr := transport.NewScripted() // no steps: any Exchange call fails the test
	c := device.New(tr)

	_, err := c.CheckKey(context.Background(), "not-hex")
	require.Error(t, err)
	assert.True(t, cnerrors.Is(err, cnerrors.InvalidArgument))
	assert.True(t, tr.Done(), "no transport exchange should have occurred")
}

func TestGenerateRingSignaturesRequiresAtLeastOneInputKey(t *testing.T) {
	tr := transport.NewScripted()
	c := device.New(tr)

	_, err := c.GenerateRingSignatures(context.Background(),
		"11"+repeat("11", 31),
		0,
		"22"+repeat("22", 31),
		"33"+repeat("33", 31),
		nil,
		0,
	)
	require.Error(t, err)
	assert.True(t, cnerrors.Is(err, cnerrors.InvalidArgument))
	assert.True(t, tr.Done())
}

func TestGenerateRingSignaturesRoundTrip(t *testing.T) {
	hash := func(b byte) string {
		h := make([]byte, 32)
		for i := range h {
			h[i] = b
		}
		return apdu.EncodeHash32(h)
	}

	txPub := hash(0x01)
	outKey := hash(0x02)
	prefixHash := hash(0x03)
	inputKey := hash(0x04)

	w := apdu.NewWriter()
	txPubB, _ := apdu.DecodeHash32(txPub)
	outKeyB, _ := apdu.DecodeHash32(outKey)
	prefixHashB, _ := apdu.DecodeHash32(prefixHash)
	inputKeyB, _ := apdu.DecodeHash32(inputKey)
	w.Raw32(txPubB).U32(0).Raw32(outKeyB).Raw32(prefixHashB).Raw32(inputKeyB).U32(0)
	want, err := apdu.Request{INS: 0x50, Confirm: false, Data: w.Bytes()}.Encode()
	require.NoError(t, err)

	sigBytes := make([]byte, 64)
	for i := range sigBytes {
		sigBytes[i] = 0xAB
	}
	resp := append(append([]byte{}, sigBytes...), 0x90, 0x00)

	tr := transport.NewScripted(transport.Step{Want: want, Resp: resp})
	c := device.New(tr)

	sigs, err := c.GenerateRingSignatures(context.Background(), txPub, 0, outKey, prefixHash, []string{inputKey}, 0)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, apdu.EncodeSignature64(sigBytes), sigs[0])
	assert.True(t, tr.Done())
}

func TestTxStartRejectsOutOfRangeCounts(t *testing.T) {
	tr := transport.NewScripted()
	c := device.New(tr)

	txPub := repeat("ab", 32)
	err := c.TxStart(context.Background(), 0, 91, 0, txPub, nil)
	require.Error(t, err)
	assert.True(t, cnerrors.Is(err, cnerrors.InvalidArgument))
	assert.True(t, tr.Done())
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

package txbuilder_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerctl/cryptonote-core/pkg/apdu"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/ledgerctl/cryptonote-core/pkg/config"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote"
	"github.com/ledgerctl/cryptonote-core/pkg/device"
	"github.com/ledgerctl/cryptonote-core/pkg/transport"
	"github.com/ledgerctl/cryptonote-core/pkg/txbuilder"
	"github.com/ledgerctl/cryptonote-core/pkg/txdecoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCrypto is a minimal cryptonote.CryptoProvider returning fixed
// values, sufficient for exercising the builder's control flow without
// real curve arithmetic.
type stubCrypto struct{}

func (stubCrypto) GenerateKeyDerivation(string, string) (string, error) { return hashOf('d'), nil }
func (stubCrypto) DerivePublicKey(string, uint32, string) (string, error) {
	return hashOf('e'), nil
}
func (stubCrypto) SecretKeyToPublicKey(string) (string, error)        { return hashOf('f'), nil }
func (stubCrypto) CnFastHash(string) (string, error)                  { return hashOf('0'), nil }
func (stubCrypto) CheckSignature(string, string, string) (bool, error) { return true, nil }

func hashOf(b byte) string { return strings.Repeat(string(b), 64) }

func req(inst byte, confirm bool, data []byte) []byte {
	r, err := apdu.Request{INS: inst, Confirm: confirm, Data: data}.Encode()
	if err != nil {
		panic(err)
	}
	return r
}

func ok(body []byte) []byte { return append(append([]byte{}, body...), 0x90, 0x00) }

// sampleTxBlob builds a minimal well-formed CryptoNote transaction prefix
// (varint version, unlock_time, one txin_to_key vin, one txout_to_key
// vout, an empty extra field) followed by bytes standing in for the ring
// signature data the device appends after the prefix. prefixLen marks
// where the prefix ends, so the test can assert the decoder hashes only
// the prefix rather than the whole retrieved buffer.
func sampleTxBlob() (raw []byte, prefixLen int) {
	var b []byte
	// version=1, unlock_time=0, vin_count=1
	b = append(b, 0x01, 0x00, 0x01)
	// vin[0]: txin_to_key tag, amount=0, 4 key offsets, 32-byte key image
	b = append(b, 0x02, 0x00, 0x04, 0x0a, 0x0a, 0x0a, 0x0a)
	b = append(b, bytes.Repeat([]byte{0x11}, 32)...)
	// vout_count=1
	b = append(b, 0x01)
	// vout[0]: amount=400, txout_to_key tag, 32-byte output key
	b = append(b, 0x90, 0x03, 0x02)
	b = append(b, bytes.Repeat([]byte{0x22}, 32)...)
	// extra_size=0
	b = append(b, 0x00)
	prefixLen = len(b)
	b = append(b, []byte("appended-ring-signature-bytes")...)
	return b, prefixLen
}

// TestBuildHappyPathStateMachine exercises the full TX_STATE sequence
// READY..COMPLETE observed in order, with TX_RESET issued on the
// successful exit path.
func TestBuildHappyPathStateMachine(t *testing.T) {
	realKey := hashOf('1')
	decoy1 := hashOf('2')
	decoy2 := hashOf('3')
	decoy3 := hashOf('4')
	txPub := hashOf('5')
	txPriv := hashOf('6')
	destSpend := hashOf('7')
	destView := hashOf('8')
	stealth := hashOf('e') // matches stubCrypto.DerivePublicKey

	rawTx, prefixLen := sampleTxBlob()
	decoded, err := txdecoder.From(rawTx)
	require.NoError(t, err)
	txHash := decoded.Hash
	txSize := uint16(len(rawTx))

	// The decoder must hash only the prefix, not the whole retrieved
	// buffer — confirm against an independently computed prefix hash.
	wantPrefixHash := hex.EncodeToString(ethcrypto.Keccak256(rawTx[:prefixLen]))
	require.Equal(t, wantPrefixHash, txHash)
	require.NotEqual(t, hex.EncodeToString(ethcrypto.Keccak256(rawTx)), txHash)

	var steps []transport.Step

	// RANDOM_KEY_PAIR
	steps = append(steps, transport.Step{
		Want: req(0x19, false, nil),
		Resp: ok(append(mustHex(t, txPub), mustHex(t, txPriv)...)),
	})

	// TX_START
	w := apdu.NewWriter().U64(0).U8(1).U8(1).Raw32(mustHex(t, txPub)).U8(0)
	steps = append(steps, transport.Step{Want: req(0x71, true, w.Bytes()), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateReady))

	// TX_START_INPUT_LOAD
	steps = append(steps, transport.Step{Want: req(0x72, false, nil), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateReceivingInputs))

	// TX_LOAD_INPUT: ring ascending by global index: real(10), decoy(20,30,40)
	// placed at realIdx=0 since real has the smallest global index here.
	inW := apdu.NewWriter().Raw32(mustHex(t, txPub)).U8(7 /* output index */).U64(500)
	for _, k := range []string{realKey, decoy1, decoy2, decoy3} {
		inW.Raw32(mustHex(t, k))
	}
	inW.U32(10).U32(10).U32(10).U32(10) // relative offsets from absolute [10,20,30,40]
	inW.U8(0)                           // realIdx
	steps = append(steps, transport.Step{Want: req(0x73, false, inW.Bytes()), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateInputsReceived))

	// TX_START_OUTPUT_LOAD
	steps = append(steps, transport.Step{Want: req(0x74, false, nil), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateReceivingOutputs))

	// TX_LOAD_OUTPUT
	outW := apdu.NewWriter().U64(400).Raw32(mustHex(t, stealth))
	steps = append(steps, transport.Step{Want: req(0x75, false, outW.Bytes()), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateOutputsReceived))

	// TX_FINALIZE_TX_PREFIX
	steps = append(steps, transport.Step{Want: req(0x76, false, nil), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStatePrefixReady))

	// TX_SIGN
	signResp := apdu.NewWriter().Raw32(mustHex(t, txHash)).U16(txSize).Bytes()
	steps = append(steps, transport.Step{Want: req(0x77, true, nil), Resp: ok(signResp)})
	steps = append(steps, txStateStep(t, device.TxStateComplete))

	// TX_DUMP loop: one chunk then empty
	steps = append(steps, transport.Step{Want: req(0x78, false, apdu.NewWriter().U16(0).Bytes()), Resp: ok(rawTx)})
	steps = append(steps, transport.Step{Want: req(0x78, false, apdu.NewWriter().U16(uint16(len(rawTx))).Bytes()), Resp: ok(nil)})

	// TX_RESET (deferred cleanup on success)
	steps = append(steps, transport.Step{Want: req(0x79, false, nil), Resp: ok(nil)})

	tr := transport.NewScripted(steps...)
	client := device.New(tr)
	cfg := config.Default()
	cfg.FeePerByte = 0
	helper := cryptonote.New(nil, stubCrypto{}, nil, cfg)
	builder := txbuilder.New(client, helper, stubCrypto{}, cfg, nil)

	buildReq := txbuilder.BuildRequest{
		UnlockTime: 0,
		Mixin:      3,
		FeeAmount:  100,
		Inputs: []txbuilder.RealInput{
			{
				Output: cryptonote.Output{
					Index:       7,
					Key:         realKey,
					GlobalIndex: 10,
					Amount:      500,
					Input:       &cryptonote.TransactionKeys{TxPublic: txPub},
					KeyImage:    hashOf('9'),
				},
				Pool: []cryptonote.RandomOutput{
					{Key: decoy1, GlobalIndex: 20},
					{Key: decoy2, GlobalIndex: 30},
					{Key: decoy3, GlobalIndex: 40},
				},
			},
		},
		Destinations: []cryptonote.GeneratedOutput{
			{Amount: 400, Destination: cryptonote.Address{SpendPublic: destSpend, ViewPublic: destView}},
		},
	}

	result, err := builder.Build(context.Background(), buildReq)
	require.NoError(t, err)
	assert.Equal(t, txHash, result.Hash)
	assert.Equal(t, txSize, result.Size)
	assert.True(t, tr.Done())
}

// TestBuildDeviceRefusalTriggersResetAndDeviceProtocolError exercises the
// device refusing TX_SIGN with 0x6985: the error must surface as
// DeviceProtocolError and TX_RESET must still be issued.
func TestBuildDeviceRefusalTriggersResetAndDeviceProtocolError(t *testing.T) {
	realKey := hashOf('1')
	decoy1 := hashOf('2')
	decoy2 := hashOf('3')
	decoy3 := hashOf('4')
	txPub := hashOf('5')
	txPriv := hashOf('6')
	destSpend := hashOf('7')
	destView := hashOf('8')

	var steps []transport.Step
	steps = append(steps, transport.Step{
		Want: req(0x19, false, nil),
		Resp: ok(append(mustHex(t, txPub), mustHex(t, txPriv)...)),
	})
	w := apdu.NewWriter().U64(0).U8(1).U8(1).Raw32(mustHex(t, txPub)).U8(0)
	steps = append(steps, transport.Step{Want: req(0x71, true, w.Bytes()), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateReady))
	steps = append(steps, transport.Step{Want: req(0x72, false, nil), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateReceivingInputs))

	inW := apdu.NewWriter().Raw32(mustHex(t, txPub)).U8(7).U64(500)
	for _, k := range []string{realKey, decoy1, decoy2, decoy3} {
		inW.Raw32(mustHex(t, k))
	}
	inW.U32(10).U32(10).U32(10).U32(10)
	inW.U8(0)
	steps = append(steps, transport.Step{Want: req(0x73, false, inW.Bytes()), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateInputsReceived))
	steps = append(steps, transport.Step{Want: req(0x74, false, nil), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateReceivingOutputs))
	outW := apdu.NewWriter().U64(400).Raw32(mustHex(t, hashOf('e')))
	steps = append(steps, transport.Step{Want: req(0x75, false, outW.Bytes()), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStateOutputsReceived))
	steps = append(steps, transport.Step{Want: req(0x76, false, nil), Resp: ok(nil)})
	steps = append(steps, txStateStep(t, device.TxStatePrefixReady))

	// TX_SIGN refused: SW = 0x6985 (not in the device code table; surfaces
	// as a DeviceProtocolError carrying code 0x6985)
	steps = append(steps, transport.Step{Want: req(0x77, true, nil), Resp: []byte{0x69, 0x85}})

	// TX_RESET must still be issued.
	steps = append(steps, transport.Step{Want: req(0x79, false, nil), Resp: ok(nil)})

	tr := transport.NewScripted(steps...)
	client := device.New(tr)
	cfg := config.Default()
	helper := cryptonote.New(nil, stubCrypto{}, nil, cfg)
	builder := txbuilder.New(client, helper, stubCrypto{}, cfg, nil)

	buildReq := txbuilder.BuildRequest{
		Mixin:     3,
		FeeAmount: 100,
		Inputs: []txbuilder.RealInput{
			{
				Output: cryptonote.Output{
					Index: 7, Key: realKey, GlobalIndex: 10, Amount: 500,
					Input:    &cryptonote.TransactionKeys{TxPublic: txPub},
					KeyImage: hashOf('9'),
				},
				Pool: []cryptonote.RandomOutput{
					{Key: decoy1, GlobalIndex: 20},
					{Key: decoy2, GlobalIndex: 30},
					{Key: decoy3, GlobalIndex: 40},
				},
			},
		},
		Destinations: []cryptonote.GeneratedOutput{
			{Amount: 400, Destination: cryptonote.Address{SpendPublic: destSpend, ViewPublic: destView}},
		},
	}

	_, err := builder.Build(context.Background(), buildReq)
	require.Error(t, err)
	assert.True(t, cnerrors.Is(err, cnerrors.DeviceProtocolError))
	assert.True(t, tr.Done())
}

func txStateStep(t *testing.T, state device.TxState) transport.Step {
	t.Helper()
	return transport.Step{Want: req(0x70, false, nil), Resp: ok([]byte{byte(state)})}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := apdu.DecodeHash32(s)
	require.NoError(t, err)
	return b
}

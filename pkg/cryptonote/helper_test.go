package cryptonote_test

import (
	"strings"
	"testing"

	"github.com/ledgerctl/cryptonote-core/pkg/config"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOffsetRoundTrip confirms absolute/relative offset conversion round-trips.
func TestOffsetRoundTrip(t *testing.T) {
	absolute := []uint64{5, 9, 14, 14, 20}
	rel := cryptonote.AbsoluteToRelativeOffsets(absolute)
	assert.Equal(t, []uint64{5, 4, 5, 0, 6}, rel)
	assert.Equal(t, absolute, cryptonote.RelativeToAbsoluteOffsets(rel))
}

// TestGenerateTransactionOutputsDecomposition confirms amount decomposition sums to the input.
func TestGenerateTransactionOutputsDecomposition(t *testing.T) {
	cfg := config.Default()
	cfg.MaximumOutputAmount = 100000
	h := cryptonote.New(nil, nil, nil, cfg)

	addr := cryptonote.Address{SpendPublic: "spend", ViewPublic: "view"}
	outs := h.GenerateTransactionOutputs(addr, 123)

	require.Len(t, outs, 3)
	var sum uint64
	amounts := make([]uint64, len(outs))
	for i, o := range outs {
		amounts[i] = o.Amount
		sum += o.Amount
	}
	assert.Equal(t, uint64(123), sum)
	assert.ElementsMatch(t, []uint64{3, 20, 100}, amounts)
}

func TestGenerateTransactionOutputsSplitsOversizedPieces(t *testing.T) {
	cfg := config.Default()
	cfg.MaximumOutputAmount = 5
	h := cryptonote.New(nil, nil, nil, cfg)

	addr := cryptonote.Address{SpendPublic: "spend", ViewPublic: "view"}
	// Decomposes to piece "9" at 10^1 place => 90, which exceeds max=5
	// and must split into chunks of 5.
	outs := h.GenerateTransactionOutputs(addr, 90)

	var sum uint64
	for _, o := range outs {
		assert.LessOrEqual(t, o.Amount, uint64(5))
		sum += o.Amount
	}
	assert.Equal(t, uint64(90), sum)
}

// TestCalculateMinimumTransactionFee confirms the fee formula.
func TestCalculateMinimumTransactionFee(t *testing.T) {
	cfg := config.Default()
	cfg.FeePerByteChunkSize = 256
	cfg.FeePerByte = 1.9
	h := cryptonote.New(nil, nil, nil, cfg)

	fee := h.CalculateMinimumTransactionFee(300)
	assert.InDelta(t, 972.8, fee, 1e-9)
}

// TestCheckPaymentIDConsistencyConflict confirms a conflicting payment id is rejected.
func TestCheckPaymentIDConsistencyConflict(t *testing.T) {
	h := cryptonote.New(nil, nil, nil, config.Default())

	pidA := strings.Repeat("1", 64)
	pidB := strings.Repeat("2", 64)

	destinations := []cryptonote.GeneratedOutput{
		{Amount: 1, Destination: cryptonote.Address{PaymentID: pidA}},
		{Amount: 2, Destination: cryptonote.Address{PaymentID: pidB}},
	}

	err := h.CheckPaymentIDConsistency(destinations, "")
	require.Error(t, err)
}

func TestValidateFusionPreconditionsRejectsBelowLiteralTwelve(t *testing.T) {
	cfg := config.Default()
	cfg.FusionMinInputCount = 3 // deliberately lower than the preserved literal 12
	h := cryptonote.New(nil, nil, nil, cfg)

	err := h.ValidateFusionPreconditions(5, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fusionMinInputCount")
}

func TestValidateFusionPreconditionsAcceptsTwelveOrMore(t *testing.T) {
	h := cryptonote.New(nil, nil, nil, config.Default())
	assert.NoError(t, h.ValidateFusionPreconditions(12, 1))
}

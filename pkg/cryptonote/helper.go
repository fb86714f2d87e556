package cryptonote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/ledgerctl/cryptonote-core/pkg/config"
	"github.com/ledgerctl/cryptonote-core/pkg/device"
	"golang.org/x/sync/semaphore"
)

// scanConcurrency bounds the worker set scanTransactionOutputs spawns.
const scanConcurrency = 8

// Helper is the host-side CryptoNote wrapper: it exclusively owns a
// Device Client and combines it with a CryptoProvider and an AddressCodec
// to perform key fetch-and-cache, output scanning, fee/offset policy
// glue, and message signing.
type Helper struct {
	client *device.Client
	crypto CryptoProvider
	codec  AddressCodec
	cfg    config.Config

	fetchOnce sync.Once
	fetchErr  error
	ready     atomic.Bool
	session   Session
	sessionMu sync.RWMutex
}

// New builds a Helper. The Device Client is exclusively owned by the
// returned Helper from this point on.
func New(client *device.Client, crypto CryptoProvider, codec AddressCodec, cfg config.Config) *Helper {
	return &Helper{client: client, crypto: crypto, codec: codec, cfg: cfg}
}

// fetchKeys is a one-time operation: obtain the spend/view public keys
// and the view private key from the device, derive the wallet address via
// the configured AddressCodec, and publish the populated Session with a
// single atomic flag write so no reader ever observes a half-populated
// session.
func (h *Helper) fetchKeys(ctx context.Context) error {
	h.fetchOnce.Do(func() {
		spendPub, viewPub, err := h.client.PublicKeys(ctx)
		if err != nil {
			h.fetchErr = err
			return
		}
		viewPriv, err := h.client.ViewSecretKey(ctx)
		if err != nil {
			h.fetchErr = err
			return
		}

		addr := Address{SpendPublic: spendPub, ViewPublic: viewPub, Prefix: h.cfg.AddressPrefix}
		encoded, err := h.codec.Encode(addr)
		if err != nil {
			h.fetchErr = err
			return
		}
		decoded, err := h.codec.Decode(encoded)
		if err != nil {
			h.fetchErr = err
			return
		}

		local := Session{
			Spend:   KeyPair{Public: spendPub},
			View:    KeyPair{Public: viewPub, Private: viewPriv},
			Address: decoded,
			Ready:   true,
		}

		h.sessionMu.Lock()
		h.session = local
		h.sessionMu.Unlock()
		h.ready.Store(true)
	})
	return h.fetchErr
}

// EnsureReady calls fetchKeys if the session has not yet been populated
// and returns the published Session.
func (h *Helper) EnsureReady(ctx context.Context) (Session, error) {
	if !h.ready.Load() {
		if err := h.fetchKeys(ctx); err != nil {
			return Session{}, err
		}
	}
	h.sessionMu.RLock()
	defer h.sessionMu.RUnlock()
	return h.session, nil
}

// isOurTransactionOutput matches a scanned output against the wallet's
// keys. On a match, it attaches the derivation/public-ephemeral record and
// requests the output's key image from the device. On no match, it
// returns a NotOurOutput error — scanTransactionOutputs treats this as
// "skip", not a failure.
func (h *Helper) isOurTransactionOutput(ctx context.Context, txPub Point, out Output) (Output, error) {
	sess, err := h.EnsureReady(ctx)
	if err != nil {
		return Output{}, err
	}

	derivation, err := h.crypto.GenerateKeyDerivation(txPub, sess.View.Private)
	if err != nil {
		return Output{}, err
	}
	derived, err := h.crypto.DerivePublicKey(derivation, out.Index, sess.Spend.Public)
	if err != nil {
		return Output{}, err
	}
	if derived != out.Key {
		return Output{}, cnerrors.New(cnerrors.NotOurOutput, "cryptonote: output does not belong to this wallet")
	}

	out.Input = &TransactionKeys{TxPublic: txPub, Derivation: derivation, OutputIndex: out.Index}

	keyImage, err := h.client.GenerateKeyImage(ctx, txPub, out.Index, out.Key)
	if err != nil {
		return Output{}, err
	}
	out.KeyImage = keyImage
	return out, nil
}

// scanTransactionOutputs evaluates every output concurrently against
// isOurTransactionOutput over a bounded worker set, collecting results
// positionally so the returned slice preserves the input order regardless
// of completion order. Outputs that are NotOurOutput are omitted, not
// propagated as an error.
func (h *Helper) scanTransactionOutputs(ctx context.Context, txPub Point, outputs []Output) ([]Output, error) {
	sem := semaphore.NewWeighted(scanConcurrency)
	matched := make([]*Output, len(outputs))
	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, out := range outputs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(i int, out Output) {
			defer wg.Done()
			defer sem.Release(1)

			result, err := h.isOurTransactionOutput(ctx, txPub, out)
			if err != nil {
				if cnerrors.Is(err, cnerrors.NotOurOutput) {
					return
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			matched[i] = &result
		}(i, out)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	out := make([]Output, 0, len(outputs))
	for _, m := range matched {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// ScanTransactionOutputs is the exported entry point for
// scanTransactionOutputs.
func (h *Helper) ScanTransactionOutputs(ctx context.Context, txPub Point, outputs []Output) ([]Output, error) {
	return h.scanTransactionOutputs(ctx, txPub, outputs)
}

// signMessage hashes message with cn_fast_hash (iterated per the
// configured keccakIterations) and asks the device to sign the digest.
func (h *Helper) signMessage(ctx context.Context, message string) (Signature, error) {
	digest, err := h.hashIterated(message)
	if err != nil {
		return "", err
	}
	return h.client.GenerateSignature(ctx, digest)
}

// SignMessage is the exported entry point for signMessage.
func (h *Helper) SignMessage(ctx context.Context, message string) (Signature, error) {
	return h.signMessage(ctx, message)
}

func (h *Helper) hashIterated(input string) (Hash, error) {
	iterations := h.cfg.KeccakIterations
	if iterations < 1 {
		iterations = 1
	}
	cur := input
	for i := 0; i < iterations; i++ {
		next, err := h.crypto.CnFastHash(cur)
		if err != nil {
			return "", err
		}
		cur = next
	}
	return cur, nil
}

// AbsoluteToRelativeOffsets converts an ascending sequence of absolute
// global-output offsets into the device's relative encoding: the first
// element is unchanged, each subsequent element is the delta from its
// predecessor.
func AbsoluteToRelativeOffsets(absolute []uint64) []uint64 {
	rel := make([]uint64, len(absolute))
	var prev uint64
	for i, a := range absolute {
		if i == 0 {
			rel[i] = a
		} else {
			rel[i] = a - prev
		}
		prev = a
	}
	return rel
}

// RelativeToAbsoluteOffsets is the inverse prefix sum of
// AbsoluteToRelativeOffsets.
func RelativeToAbsoluteOffsets(relative []uint64) []uint64 {
	abs := make([]uint64, len(relative))
	var running uint64
	for i, r := range relative {
		running += r
		abs[i] = running
	}
	return abs
}

// GenerateTransactionOutputs decomposes amount into canonical
// "digit * 10^k" pieces (reverse digit order, smallest place first) and,
// for any piece exceeding maximumOutputAmount, greedily splits that piece
// into chunks of maximumOutputAmount. Zero pieces are omitted. The
// destination address is carried on every produced GeneratedOutput.
func (h *Helper) GenerateTransactionOutputs(addr Address, amount uint64) []GeneratedOutput {
	var out []GeneratedOutput
	place := uint64(1)
	remaining := amount

	for remaining > 0 {
		digit := remaining % 10
		remaining /= 10
		if digit == 0 {
			place *= 10
			continue
		}
		piece := digit * place
		out = append(out, h.splitPiece(addr, piece)...)
		place *= 10
	}
	return out
}

func (h *Helper) splitPiece(addr Address, piece uint64) []GeneratedOutput {
	max := h.cfg.MaximumOutputAmount
	if max == 0 || piece <= max {
		return []GeneratedOutput{{Amount: piece, Destination: addr}}
	}
	var out []GeneratedOutput
	remaining := piece
	for remaining > max {
		out = append(out, GeneratedOutput{Amount: max, Destination: addr})
		remaining -= max
	}
	if remaining > 0 {
		out = append(out, GeneratedOutput{Amount: remaining, Destination: addr})
	}
	return out
}

// CalculateMinimumTransactionFee returns ceil(size / chunk) * chunk *
// feePerByte.
func (h *Helper) CalculateMinimumTransactionFee(size uint64) float64 {
	chunk := h.cfg.FeePerByteChunkSize
	if chunk <= 0 {
		chunk = 1
	}
	chunks := (size + uint64(chunk) - 1) / uint64(chunk)
	return float64(chunks) * float64(chunk) * h.cfg.FeePerByte
}

// CreateIntegratedAddress copies the already-decoded addr, stamps the given
// paymentId (and, if supplied, an alternate prefix) onto the copy, and
// encodes it with the configured AddressCodec. It takes an Address value,
// not a Base58 string, so no decoding happens here.
func (h *Helper) CreateIntegratedAddress(addr Address, paymentID string, prefix *uint64) (string, error) {
	if err := ValidateHashHex(paymentID); err != nil {
		return "", err
	}
	integrated := addr
	integrated.PaymentID = paymentID
	if prefix != nil {
		integrated.Prefix = *prefix
	}
	return h.codec.Encode(integrated)
}

// validateFusionPreconditions enforces the fusion (fee == 0) minimum
// input count and input/output ratio. The error message cites
// fusionMinInputCount but compares against the literal constant 12 —
// preserved as originally specified, not corrected to cfg.FusionMinInputCount.
func (h *Helper) validateFusionPreconditions(inputCount, outputCount int) error {
	const fusionLiteralMinimum = 12
	if inputCount < fusionLiteralMinimum {
		return cnerrors.New(cnerrors.Insufficient,
			fmt.Sprintf("fusion transaction requires at least fusionMinInputCount inputs, got %d", inputCount))
	}
	if h.cfg.FusionMinInOutCountRatio > 0 {
		ratio := float64(inputCount) / float64(outputCount)
		if ratio < h.cfg.FusionMinInOutCountRatio {
			return cnerrors.New(cnerrors.Insufficient, "fusion transaction does not meet the minimum input/output ratio")
		}
	}
	return nil
}

// ValidateFusionPreconditions is the exported entry point used by the
// transaction builder's validate step.
func (h *Helper) ValidateFusionPreconditions(inputCount, outputCount int) error {
	return h.validateFusionPreconditions(inputCount, outputCount)
}

// checkPaymentIDConsistency verifies every destination carrying an
// integrated payment id agrees with the others (and, if present, the
// explicit payment id supplied alongside the destinations). The
// message's concatenation has a spacing artifact ("destination address"+
// "conflicts with ..." with no space between "address" and "conflicts") —
// preserved as originally specified.
func (h *Helper) checkPaymentIDConsistency(destinations []GeneratedOutput, explicitPaymentID string) error {
	seen := explicitPaymentID
	for _, d := range destinations {
		pid := d.Destination.PaymentID
		if pid == "" {
			continue
		}
		if seen == "" {
			seen = pid
			continue
		}
		if seen != pid {
			return cnerrors.New(cnerrors.PaymentIDConflict,
				"destination address"+"conflicts with previously seen payment id "+seen)
		}
	}
	return nil
}

// CheckPaymentIDConsistency is the exported entry point used by the
// transaction builder's validate step.
func (h *Helper) CheckPaymentIDConsistency(destinations []GeneratedOutput, explicitPaymentID string) error {
	return h.checkPaymentIDConsistency(destinations, explicitPaymentID)
}

// unsupported builder-facing operations.

// CreateTransactionStructure always fails NotSupported.
func (h *Helper) CreateTransactionStructure(context.Context) error {
	return cnerrors.New(cnerrors.NotSupported, "createTransactionStructure is not supported")
}

// PrepareTransaction always fails NotSupported.
func (h *Helper) PrepareTransaction(context.Context) error {
	return cnerrors.New(cnerrors.NotSupported, "prepareTransaction is not supported")
}

// CompleteTransaction always fails NotSupported.
func (h *Helper) CompleteTransaction(context.Context) error {
	return cnerrors.New(cnerrors.NotSupported, "completeTransaction is not supported")
}

// RejectExtraData fails NotSupported whenever extraData is non-empty,
// extra data is rejected outright, checked against the configured size
// ceiling as a secondary guard.
func (h *Helper) RejectExtraData(extraData []byte) error {
	if len(extraData) == 0 {
		return nil
	}
	if h.cfg.MaximumExtraSize > 0 && len(extraData) > h.cfg.MaximumExtraSize {
		return cnerrors.New(cnerrors.NotSupported, "extraData exceeds maximumExtraSize")
	}
	return cnerrors.New(cnerrors.NotSupported, "extraData is not supported")
}

// GeneratePartial always fails NotSupported: the core never produces a
// partial key image or an unsigned prepared structure.
func (h *Helper) GeneratePartial(context.Context) error {
	return cnerrors.New(cnerrors.NotSupported, "generatePartial is not supported")
}

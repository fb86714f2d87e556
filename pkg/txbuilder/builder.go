// Package txbuilder drives the device through the full CryptoNote
// transaction construction state machine: precondition validation, ring
// and stealth-output preparation, the strict TX_* phase sequence with
// TX_STATE verification at every transition, final retrieval, and
// guaranteed TX_RESET cleanup on every exit path.
package txbuilder

import (
	"context"
	"sort"
	"time"

	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/ledgerctl/cryptonote-core/pkg/config"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote"
	"github.com/ledgerctl/cryptonote-core/pkg/device"
	"github.com/ledgerctl/cryptonote-core/pkg/txdecoder"
)

// Builder drives one Device Client through the transaction construction
// state machine. The device is a single-session resource: Builder
// serializes concurrent Build calls over the same Client with deviceSlot,
// a 1-buffered channel acting as a binary semaphore.
type Builder struct {
	client  *device.Client
	helper  *cryptonote.Helper
	crypto  cryptonote.CryptoProvider
	cfg     config.Config
	cache   BuildRecordStore
	deviceSlot chan struct{}
}

// New builds a Builder. cache may be nil — with no store configured, the
// builder's behavior is exactly the device's transaction state machine, with
// no idempotent-retrieval shortcut.
func New(client *device.Client, helper *cryptonote.Helper, crypto cryptonote.CryptoProvider, cfg config.Config, cache BuildRecordStore) *Builder {
	slot := make(chan struct{}, 1)
	slot <- struct{}{}
	return &Builder{client: client, helper: helper, crypto: crypto, cfg: cfg, cache: cache, deviceSlot: slot}
}

// Build runs the full six-step transaction construction state machine.
//
// Contract:
//   - MUST validate every precondition before touching the device.
//   - MUST issue TX_RESET on every exit path, success or failure.
//   - MUST verify TX_STATE after every phase transition.
//   - MUST verify the retrieved transaction's hash/size against TX_SIGN's result.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if req.RequestID != "" && b.cache != nil {
		if rec, err := b.cache.Get(req.RequestID); err == nil && rec != nil {
			return &BuildResult{Hash: rec.Hash, Size: rec.Size, RawTx: rec.RawTx}, nil
		}
	}

	if err := b.validate(req); err != nil {
		return nil, err
	}

	prepared, err := b.prepareInputs(req)
	if err != nil {
		return nil, err
	}

	select {
	case <-b.deviceSlot:
	case <-ctx.Done():
		return nil, cnerrors.Wrap(cnerrors.TransportError, "txbuilder: context cancelled waiting for device slot", ctx.Err())
	}
	defer func() { b.deviceSlot <- struct{}{} }()

	txPublic, txPrivate, err := b.client.RandomKeyPair(ctx)
	if err != nil {
		return nil, err
	}

	outputs, err := b.prepareOutputs(req, txPrivate)
	if err != nil {
		return nil, err
	}

	sortInputsByKeyImageDescending(prepared)

	result, err := b.drive(ctx, req, txPublic, prepared, outputs)
	if err != nil {
		return nil, err
	}

	if req.RequestID != "" && b.cache != nil {
		_ = b.cache.Set(req.RequestID, &BuildRecord{
			RequestID:   req.RequestID,
			Hash:        result.Hash,
			Size:        result.Size,
			RawTx:       result.RawTx,
			CompletedAt: time.Now(),
		})
	}

	return result, nil
}

// validate enforces fee/mixin/output bounds, payment-id consistency,
// sufficient funds (skipped entirely in fee-per-byte mode — bug-shaped
// behavior (iii), preserved as specified), and fusion preconditions when
// FeeAmount == 0.
func (b *Builder) validate(req BuildRequest) error {
	if len(req.Inputs) == 0 {
		return cnerrors.New(cnerrors.InvalidArgument, "txbuilder: at least one input is required")
	}
	// The device's ring size is fixed at 4 (TX_LOAD_INPUT always carries
	// exactly 4 keys/offsets), so the ring always holds 3 decoys plus the
	// real member.
	if req.Mixin != 3 {
		return cnerrors.New(cnerrors.InvalidArgument, "txbuilder: mixin must be 3 — the device ring size is fixed at 4")
	}
	if len(req.Destinations) == 0 {
		return cnerrors.New(cnerrors.InvalidArgument, "txbuilder: at least one destination is required")
	}
	if b.cfg.MaximumOutputsPerTransaction > 0 && len(req.Destinations) > b.cfg.MaximumOutputsPerTransaction {
		return cnerrors.New(cnerrors.InvalidArgument, "txbuilder: too many destinations for one transaction")
	}

	if err := b.helper.CheckPaymentIDConsistency(req.Destinations, req.ExplicitPaymentID); err != nil {
		return err
	}

	var totalIn, totalOut uint64
	for _, in := range req.Inputs {
		totalIn += in.Output.Amount
	}
	for _, d := range req.Destinations {
		if d.Amount == 0 || (b.cfg.MaximumOutputAmount > 0 && d.Amount > b.cfg.MaximumOutputAmount) {
			return cnerrors.New(cnerrors.InvalidArgument, "txbuilder: destination amount out of bounds")
		}
		totalOut += d.Amount
	}

	if len(req.Inputs) < len(req.Destinations) {
		return cnerrors.New(cnerrors.Insufficient, "txbuilder: fewer inputs than outputs")
	}

	// Bug-shaped behavior (iii): the "not enough funds" check is skipped
	// entirely when ActivateFeePerByteTransactions is true. Preserved as
	// originally specified, not corrected.
	if !b.cfg.ActivateFeePerByteTransactions {
		if totalIn < totalOut+req.FeeAmount {
			return cnerrors.New(cnerrors.Insufficient, "txbuilder: not enough funds to cover outputs and fee")
		}
	}

	if req.FeeAmount == 0 {
		if err := b.helper.ValidateFusionPreconditions(len(req.Inputs), len(req.Destinations)); err != nil {
			return err
		}
	}

	return nil
}

// prepareInputs assembles each real input's ring: mixin decoys whose
// GlobalIndex differs from the real output, the real member appended,
// then sorted ascending by Index with RealOutputIndex recorded.
func (b *Builder) prepareInputs(req BuildRequest) ([]PreparedInput, error) {
	out := make([]PreparedInput, 0, len(req.Inputs))

	for _, in := range req.Inputs {
		if in.Output.Input == nil || in.Output.KeyImage == "" {
			return nil, cnerrors.New(cnerrors.InvalidArgument, "txbuilder: input missing derivation/key image — scan it first")
		}

		decoys := make([]RingMember, 0, req.Mixin)
		for _, cand := range in.Pool {
			if len(decoys) >= req.Mixin {
				break
			}
			if cand.GlobalIndex == in.Output.GlobalIndex {
				continue
			}
			decoys = append(decoys, RingMember{Key: cand.Key, Index: cand.GlobalIndex})
		}
		if len(decoys) < req.Mixin {
			return nil, cnerrors.New(cnerrors.Insufficient, "txbuilder: decoy pool too small for requested mixin")
		}

		members := append(decoys, RingMember{Key: in.Output.Key, Index: in.Output.GlobalIndex})
		sort.Slice(members, func(i, j int) bool { return members[i].Index < members[j].Index })

		realIdx := -1
		for i, m := range members {
			if m.Index == in.Output.GlobalIndex {
				realIdx = i
				break
			}
		}

		out = append(out, PreparedInput{
			Amount:          in.Output.Amount,
			KeyImage:        in.Output.KeyImage,
			TxPublic:        in.Output.Input.TxPublic,
			OutputIndex:     in.Output.Index,
			Outputs:         members,
			RealOutputIndex: realIdx,
		})
	}

	return out, nil
}

// prepareOutputs sorts destinations ascending by amount and derives each
// destination's stealth output key from the fresh one-time tx private
// key the device issued via RANDOM_KEY_PAIR.
func (b *Builder) prepareOutputs(req BuildRequest, txPrivate string) ([]PreparedOutput, error) {
	destinations := append([]cryptonote.GeneratedOutput(nil), req.Destinations...)
	sort.Slice(destinations, func(i, j int) bool { return destinations[i].Amount < destinations[j].Amount })

	out := make([]PreparedOutput, 0, len(destinations))
	for i, d := range destinations {
		derivation, err := b.crypto.GenerateKeyDerivation(d.Destination.ViewPublic, txPrivate)
		if err != nil {
			return nil, err
		}
		stealth, err := b.crypto.DerivePublicKey(derivation, uint32(i), d.Destination.SpendPublic)
		if err != nil {
			return nil, err
		}
		out = append(out, PreparedOutput{Amount: d.Amount, Key: stealth})
	}
	return out, nil
}

// sortInputsByKeyImageDescending enforces the authoritative descending
// keyImage ordering the device requires before any TX_LOAD_INPUT.
// KeyImage hex strings are fixed-length (64 chars), so lexicographic
// string comparison is equivalent to comparing the underlying big integer.
func sortInputsByKeyImageDescending(inputs []PreparedInput) {
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].KeyImage > inputs[j].KeyImage })
}

// drive issues the strict TX_* command sequence, verifying TX_STATE after
// every transition, and always issues TX_RESET before returning —
// success, DeviceStateError, DeviceProtocolError, or context cancellation
// all take the same cleanup path.
func (b *Builder) drive(ctx context.Context, req BuildRequest, txPublic string, inputs []PreparedInput, outputs []PreparedOutput) (result *BuildResult, err error) {
	defer func() {
		_ = b.client.TxReset(ctx)
	}()

	var paymentID *string
	if req.ExplicitPaymentID != "" {
		paymentID = &req.ExplicitPaymentID
	}

	if err := b.client.TxStart(ctx, req.UnlockTime, uint8(len(inputs)), uint8(len(outputs)), txPublic, paymentID); err != nil {
		return nil, err
	}
	if err := b.expectState(ctx, device.TxStateReady); err != nil {
		return nil, err
	}

	if err := b.client.TxStartInputLoad(ctx); err != nil {
		return nil, err
	}
	if err := b.expectState(ctx, device.TxStateReceivingInputs); err != nil {
		return nil, err
	}

	for _, in := range inputs {
		absolute := make([]uint64, len(in.Outputs))
		keys := [4]string{}
		for i, m := range in.Outputs {
			absolute[i] = m.Index
			if i < 4 {
				keys[i] = m.Key
			}
		}
		relative := cryptonote.AbsoluteToRelativeOffsets(absolute)
		var offsets [4]uint32
		for i := 0; i < 4 && i < len(relative); i++ {
			offsets[i] = uint32(relative[i])
		}

		if err := b.client.TxLoadInput(ctx, in.TxPublic, uint8(in.OutputIndex), in.Amount, keys, offsets, uint8(in.RealOutputIndex)); err != nil {
			return nil, err
		}
	}
	if err := b.expectState(ctx, device.TxStateInputsReceived); err != nil {
		return nil, err
	}

	if err := b.client.TxStartOutputLoad(ctx); err != nil {
		return nil, err
	}
	if err := b.expectState(ctx, device.TxStateReceivingOutputs); err != nil {
		return nil, err
	}

	for _, out := range outputs {
		if err := b.client.TxLoadOutput(ctx, out.Amount, out.Key); err != nil {
			return nil, err
		}
	}
	if err := b.expectState(ctx, device.TxStateOutputsReceived); err != nil {
		return nil, err
	}

	if err := b.client.TxFinalizeTxPrefix(ctx); err != nil {
		return nil, err
	}
	if err := b.expectState(ctx, device.TxStatePrefixReady); err != nil {
		return nil, err
	}

	signResult, err := b.client.TxSign(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.expectState(ctx, device.TxStateComplete); err != nil {
		return nil, err
	}

	raw, err := b.retrieve(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := txdecoder.From(raw)
	if err != nil {
		return nil, err
	}
	if tx.Hash != signResult.Hash || tx.Size != signResult.Size {
		return nil, cnerrors.New(cnerrors.DeviceProtocolError, "txbuilder: retrieved transaction hash/size does not match TX_SIGN result")
	}

	return &BuildResult{Hash: tx.Hash, Size: tx.Size, RawTx: raw}, nil
}

// retrieve pulls the signed transaction via repeated TX_DUMP until the
// device returns an empty chunk or the accumulated length reaches the
// configured ceiling.
func (b *Builder) retrieve(ctx context.Context) ([]byte, error) {
	var raw []byte
	for {
		chunk, err := b.client.TxDump(ctx, uint16(len(raw)))
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		raw = append(raw, chunk...)
		if b.cfg.MaximumLedgerTransactionSize > 0 && len(raw) >= b.cfg.MaximumLedgerTransactionSize {
			break
		}
	}
	return raw, nil
}

// expectState reads TX_STATE and fails DeviceStateError on any mismatch
// from want.
func (b *Builder) expectState(ctx context.Context, want device.TxState) error {
	got, err := b.client.TxState(ctx)
	if err != nil {
		return err
	}
	if got != want {
		return cnerrors.New(cnerrors.DeviceStateError, "txbuilder: unexpected device state "+got.String()+", wanted "+want.String())
	}
	return nil
}

package txbuilder

import "github.com/ledgerctl/cryptonote-core/pkg/cryptonote"

// RingMember is one element of a prepared input's ring: a candidate
// output key at a known global chain index.
type RingMember struct {
	Key   cryptonote.Point
	Index uint64
}

// PreparedInput is a fully assembled ring ready to load onto the device:
// outputs sorted ascending by Index, with RealOutputIndex marking which
// element is the genuine spend.
type PreparedInput struct {
	Amount          uint64
	KeyImage        cryptonote.Hash
	TxPublic        cryptonote.Point
	OutputIndex     uint32 // this output's index within its owning transaction
	Outputs         []RingMember
	RealOutputIndex int
}

// PreparedOutput is a stealth-addressed destination ready to load onto
// the device.
type PreparedOutput struct {
	Amount uint64
	Key    cryptonote.Point
}

// RealInput is one of the wallet's own outputs being spent, together with
// the decoy pool available to build its ring.
type RealInput struct {
	Output cryptonote.Output
	Pool   []cryptonote.RandomOutput
}

// BuildRequest is everything the builder needs to construct, sign, and
// retrieve one transaction.
type BuildRequest struct {
	RequestID         string // optional; enables idempotent retrieval
	UnlockTime        uint64
	Mixin             int
	FeeAmount         uint64
	Inputs            []RealInput
	Destinations      []cryptonote.GeneratedOutput
	ExplicitPaymentID string // optional, 64-hex-char
}

// BuildResult is the transaction the device produced.
type BuildResult struct {
	Hash  string
	Size  uint16
	RawTx []byte
}

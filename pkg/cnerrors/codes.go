package cnerrors

// Device status/error codes. SW (the APDU status word) is superseded by the
// first two body bytes whenever the response body carries at least two
// bytes on a non-OK status — see pkg/apdu's response decoder.
const (
	CodeOK = 0x9000

	CodeOpNotPermitted  = 0x4000
	CodeOpUserRequired  = 0x4001
	CodeUnknownError    = 0x4444
	CodeVarintDataRange = 0x6000
	CodePrivateSpend    = 0x9400
	CodePrivateView     = 0x9401
	CodeResetKeys       = 0x9402
	CodeAddress         = 0x9450
	CodeKeyDerivation   = 0x9500
	CodeDerivePubkey    = 0x9501
	CodePubkeyMismatch  = 0x9502
	CodeDeriveSeckey    = 0x9503
	CodeKeccak          = 0x9504
	CodeCompleteRingSig = 0x9505
	CodeGenerateKeyImg  = 0x9506
	CodeSeckeyToPubkey  = 0x9507
)

var codeMessages = map[uint16]string{
	CodeOpNotPermitted:  "operation not permitted",
	CodeOpUserRequired:  "user confirmation required",
	CodeUnknownError:    "unknown device error",
	CodeVarintDataRange: "varint data out of range",
	CodePrivateSpend:    "private spend key error",
	CodePrivateView:     "private view key error",
	CodeResetKeys:       "reset keys error",
	CodeAddress:         "address derivation error",
	CodeKeyDerivation:   "key derivation error",
	CodeDerivePubkey:    "derive public key error",
	CodePubkeyMismatch:  "public key mismatch",
	CodeDeriveSeckey:    "derive secret key error",
	CodeKeccak:          "keccak hashing error",
	CodeCompleteRingSig: "complete ring signature error",
	CodeGenerateKeyImg:  "generate key image error",
	CodeSeckeyToPubkey:  "secret to public key error",
}

// MessageForCode returns a human-readable message for a known device
// status/error code, or a generic fallback for an unrecognized one.
func MessageForCode(code uint16) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "unrecognized device status"
}

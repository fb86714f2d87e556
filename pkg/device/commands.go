package device

// Command bytes (INS) for each supported APDU command.
const (
	insVersion                 = 0x01
	insDebug                   = 0x02
	insIdent                   = 0x05
	insPublicKeys              = 0x10
	insViewSecretKey           = 0x11
	insSpendESecretKey         = 0x12
	insCheckKey                = 0x16
	insCheckScalar             = 0x17
	insPrivateToPublic         = 0x18
	insRandomKeyPair           = 0x19
	insAddress                 = 0x30
	insGenerateKeyImage        = 0x40
	insGenerateRingSignatures  = 0x50
	insCompleteRingSignature   = 0x51
	insCheckRingSignatures     = 0x52
	insGenerateSignature       = 0x55
	insCheckSignature          = 0x56
	insGenerateKeyDerivation   = 0x60
	insDerivePublicKey         = 0x61
	insDeriveSecretKey         = 0x62
	insTxState                 = 0x70
	insTxStart                 = 0x71
	insTxStartInputLoad        = 0x72
	insTxLoadInput             = 0x73
	insTxStartOutputLoad       = 0x74
	insTxLoadOutput            = 0x75
	insTxFinalizeTxPrefix      = 0x76
	insTxSign                  = 0x77
	insTxDump                  = 0x78
	insTxReset                 = 0x79
	insResetKeys               = 0xFF
)

var commandNames = map[byte]string{
	insVersion:                "VERSION",
	insDebug:                  "DEBUG",
	insIdent:                  "IDENT",
	insPublicKeys:             "PUBLIC_KEYS",
	insViewSecretKey:          "VIEW_SECRET_KEY",
	insSpendESecretKey:        "SPEND_ESECRET_KEY",
	insCheckKey:               "CHECK_KEY",
	insCheckScalar:            "CHECK_SCALAR",
	insPrivateToPublic:        "PRIVATE_TO_PUBLIC",
	insRandomKeyPair:          "RANDOM_KEY_PAIR",
	insAddress:                "ADDRESS",
	insGenerateKeyImage:       "GENERATE_KEY_IMAGE",
	insGenerateRingSignatures: "GENERATE_RING_SIGNATURES",
	insCompleteRingSignature:  "COMPLETE_RING_SIGNATURE",
	insCheckRingSignatures:    "CHECK_RING_SIGNATURES",
	insGenerateSignature:      "GENERATE_SIGNATURE",
	insCheckSignature:         "CHECK_SIGNATURE",
	insGenerateKeyDerivation:  "GENERATE_KEY_DERIVATION",
	insDerivePublicKey:        "DERIVE_PUBLIC_KEY",
	insDeriveSecretKey:        "DERIVE_SECRET_KEY",
	insTxState:                "TX_STATE",
	insTxStart:                "TX_START",
	insTxStartInputLoad:       "TX_START_INPUT_LOAD",
	insTxLoadInput:            "TX_LOAD_INPUT",
	insTxStartOutputLoad:      "TX_START_OUTPUT_LOAD",
	insTxLoadOutput:           "TX_LOAD_OUTPUT",
	insTxFinalizeTxPrefix:     "TX_FINALIZE_TX_PREFIX",
	insTxSign:                 "TX_SIGN",
	insTxDump:                 "TX_DUMP",
	insTxReset:                "TX_RESET",
	insResetKeys:              "RESET_KEYS",
}

func commandName(ins byte) string {
	if name, ok := commandNames[ins]; ok {
		return name
	}
	return "UNKNOWN"
}

// TxState mirrors the device-observable DeviceTxState enum.
type TxState uint8

const (
	TxStateInactive TxState = iota
	TxStateReady
	TxStateReceivingInputs
	TxStateInputsReceived
	TxStateReceivingOutputs
	TxStateOutputsReceived
	TxStatePrefixReady
	TxStateComplete
)

func (s TxState) String() string {
	switch s {
	case TxStateInactive:
		return "INACTIVE"
	case TxStateReady:
		return "READY"
	case TxStateReceivingInputs:
		return "RECEIVING_INPUTS"
	case TxStateInputsReceived:
		return "INPUTS_RECEIVED"
	case TxStateReceivingOutputs:
		return "RECEIVING_OUTPUTS"
	case TxStateOutputsReceived:
		return "OUTPUTS_RECEIVED"
	case TxStatePrefixReady:
		return "PREFIX_READY"
	case TxStateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

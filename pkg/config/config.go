// Package config holds construction-time configuration for the CryptoNote
// core, loaded from a loosely-typed map and tolerant of unrecognized keys,
// following the conventions of a flat, construction-time configuration struct.
package config

// Config mirrors the configuration table: every value is resolved once at
// construction time and never re-read.
type Config struct {
	CoinUnitPlaces                 int
	AddressPrefix                  uint64
	KeccakIterations               int
	DefaultNetworkFee              uint64
	FusionMinInputCount            int
	FusionMinInOutCountRatio       float64
	MaximumOutputAmount            uint64
	MaximumOutputsPerTransaction   int
	MaximumExtraSize               int
	ActivateFeePerByteTransactions bool
	FeePerByte                     float64
	FeePerByteChunkSize            int
	MaximumLedgerTransactionSize   int
}

// Default returns the configuration table's default values.
func Default() Config {
	return Config{
		CoinUnitPlaces:                 2,
		AddressPrefix:                  0,
		KeccakIterations:               1,
		DefaultNetworkFee:              0,
		FusionMinInputCount:            12,
		FusionMinInOutCountRatio:       0,
		MaximumOutputAmount:            0,
		MaximumOutputsPerTransaction:   0,
		MaximumExtraSize:               0,
		ActivateFeePerByteTransactions: false,
		FeePerByte:                     0,
		FeePerByteChunkSize:            0,
		MaximumLedgerTransactionSize:   0,
	}
}

// FromMap overlays recognized keys from m onto the defaults. Unrecognized
// keys are ignored. Type mismatches on a recognized key are also ignored,
// leaving the default in place, rather than failing construction over one
// bad value.
func FromMap(m map[string]interface{}) Config {
	c := Default()

	if v, ok := intVal(m, "coinUnitPlaces"); ok {
		c.CoinUnitPlaces = v
	}
	if v, ok := uint64Val(m, "addressPrefix"); ok {
		c.AddressPrefix = v
	}
	if v, ok := intVal(m, "keccakIterations"); ok {
		c.KeccakIterations = v
	}
	if v, ok := uint64Val(m, "defaultNetworkFee"); ok {
		c.DefaultNetworkFee = v
	}
	if v, ok := intVal(m, "fusionMinInputCount"); ok {
		c.FusionMinInputCount = v
	}
	if v, ok := floatVal(m, "fusionMinInOutCountRatio"); ok {
		c.FusionMinInOutCountRatio = v
	}
	if v, ok := uint64Val(m, "maximumOutputAmount"); ok {
		c.MaximumOutputAmount = v
	}
	if v, ok := intVal(m, "maximumOutputsPerTransaction"); ok {
		c.MaximumOutputsPerTransaction = v
	}
	if v, ok := intVal(m, "maximumExtraSize"); ok {
		c.MaximumExtraSize = v
	}
	if v, ok := boolVal(m, "activateFeePerByteTransactions"); ok {
		c.ActivateFeePerByteTransactions = v
	}
	if v, ok := floatVal(m, "feePerByte"); ok {
		c.FeePerByte = v
	}
	if v, ok := intVal(m, "feePerByteChunkSize"); ok {
		c.FeePerByteChunkSize = v
	}
	if v, ok := intVal(m, "maximumLedgerTransactionSize"); ok {
		c.MaximumLedgerTransactionSize = v
	}

	return c
}

func intVal(m map[string]interface{}, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func uint64Val(m map[string]interface{}, key string) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case int:
		return uint64(n), true
	case float64:
		return uint64(n), true
	}
	return 0, false
}

func floatVal(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func boolVal(m map[string]interface{}, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

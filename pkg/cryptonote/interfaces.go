package cryptonote

// CryptoProvider exposes the pure CryptoNote primitives the Helper needs
// host-side, independent of the device (the device performs the
// equivalent operations over its own secret key material; the Helper
// needs these same operations over public data to scan outputs and
// verify signatures without round-tripping every comparison to silicon).
type CryptoProvider interface {
	GenerateKeyDerivation(txPublic Point, viewPrivate Scalar) (Hash, error)
	DerivePublicKey(derivation Hash, index uint32, base Point) (Point, error)
	SecretKeyToPublicKey(private Scalar) (Point, error)
	CnFastHash(hex string) (Hash, error)
	CheckSignature(digest Hash, public Point, sig Signature) (bool, error)
}

// AddressCodec parses and renders CryptoNote Base58 addresses, including
// the payment-id embedding used by integrated addresses.
type AddressCodec interface {
	Encode(addr Address) (string, error)
	Decode(encoded string) (Address, error)
}

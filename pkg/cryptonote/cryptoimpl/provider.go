// Package cryptoimpl is the default CryptoProvider: CryptoNote's
// Diffie-Hellman derivation and stealth-key arithmetic over
// edwards25519, and cn_fast_hash via Keccak-1600 (the same primitive the
// teacher already imports go-ethereum for on its Ethereum key source).
package cryptoimpl

import (
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
	"github.com/ledgerctl/cryptonote-core/pkg/cryptonote"
)

var _ cryptonote.CryptoProvider = (*Provider)(nil)

// Provider is the default cryptonote.CryptoProvider implementation.
type Provider struct {
	// Iterations controls how many times CnFastHash chains its own
	// output back through Keccak; 0 or 1 means a single pass. Mirrors
	// config.Config.KeccakIterations, duplicated here so Provider stays
	// usable standalone (outside the Helper's own iterating wrapper).
	Iterations int
}

// New builds a Provider with a single Keccak pass.
func New() *Provider { return &Provider{Iterations: 1} }

func decodeScalar(s string) (*edwards25519.Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "cryptoimpl: malformed scalar")
	}
	// edwards25519 scalars are little-endian and must already be
	// reduced mod L; CryptoNote secret keys are generated that way by
	// construction, so SetCanonicalBytes is the correct entry point.
	sc, err := edwards25519.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, cnerrors.Wrap(cnerrors.InvalidArgument, "cryptoimpl: scalar not canonical", err)
	}
	return sc, nil
}

func decodePoint(s string) (*edwards25519.Point, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "cryptoimpl: malformed point")
	}
	p, err := edwards25519.NewIdentityPoint().SetBytes(b)
	if err != nil {
		return nil, cnerrors.Wrap(cnerrors.InvalidArgument, "cryptoimpl: point not on curve", err)
	}
	return p, nil
}

func encodePoint(p *edwards25519.Point) string {
	return hex.EncodeToString(p.Bytes())
}

// GenerateKeyDerivation computes the CryptoNote Diffie-Hellman
// derivation D = 8 * priv * pub, cofactor-cleared per the reference
// implementation's convention of multiplying by the cofactor before
// exposing a derivation for downstream hashing.
func (p *Provider) GenerateKeyDerivation(txPublic, viewPrivate string) (string, error) {
	pub, err := decodePoint(txPublic)
	if err != nil {
		return "", err
	}
	priv, err := decodeScalar(viewPrivate)
	if err != nil {
		return "", err
	}

	shared := edwards25519.NewIdentityPoint().ScalarMult(priv, pub)
	// Clear the cofactor: multiply by 8.
	eight := edwards25519.NewScalar()
	eightBytes := make([]byte, 32)
	eightBytes[0] = 8
	if _, err := eight.SetCanonicalBytes(eightBytes); err != nil {
		return "", cnerrors.Wrap(cnerrors.InvalidArgument, "cryptoimpl: internal cofactor scalar", err)
	}
	cleared := edwards25519.NewIdentityPoint().ScalarMult(eight, shared)
	return encodePoint(cleared), nil
}

// derivationScalar computes Hs = cn_fast_hash(derivation || varint(index))
// reduced to a scalar, the per-output scalar CryptoNote derives stealth
// keys and key images from.
func (p *Provider) derivationScalar(derivation string, index uint32) (*edwards25519.Scalar, error) {
	derivationBytes, err := hex.DecodeString(derivation)
	if err != nil || len(derivationBytes) != 32 {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "cryptoimpl: malformed derivation")
	}
	buf := append(append([]byte(nil), derivationBytes...), encodeVarint(index)...)
	digest := ethcrypto.Keccak256(buf)
	sc, err := edwards25519.NewScalar().SetUniformBytes(extendTo64(digest))
	if err != nil {
		return nil, cnerrors.Wrap(cnerrors.InvalidArgument, "cryptoimpl: internal scalar reduction", err)
	}
	return sc, nil
}

// DerivePublicKey computes the stealth output key P = Hs*G + base.
func (p *Provider) DerivePublicKey(derivation string, index uint32, base string) (string, error) {
	hs, err := p.derivationScalar(derivation, index)
	if err != nil {
		return "", err
	}
	baseP, err := decodePoint(base)
	if err != nil {
		return "", err
	}
	hsG := edwards25519.NewIdentityPoint().ScalarBaseMult(hs)
	out := edwards25519.NewIdentityPoint().Add(hsG, baseP)
	return encodePoint(out), nil
}

// SecretKeyToPublicKey computes priv*G.
func (p *Provider) SecretKeyToPublicKey(private string) (string, error) {
	sc, err := decodeScalar(private)
	if err != nil {
		return "", err
	}
	pub := edwards25519.NewIdentityPoint().ScalarBaseMult(sc)
	return encodePoint(pub), nil
}

// CnFastHash computes CryptoNote's fast hash: Keccak-1600 over input's
// raw UTF-8 bytes, iterated Iterations times (output fed back as input),
// rendered as a 64-hex-char lowercase hash.
func (p *Provider) CnFastHash(input string) (string, error) {
	iterations := p.Iterations
	if iterations < 1 {
		iterations = 1
	}
	cur := []byte(input)
	var digest [32]byte
	for i := 0; i < iterations; i++ {
		copy(digest[:], ethcrypto.Keccak256(cur))
		cur = []byte(hex.EncodeToString(digest[:]))
	}
	return hex.EncodeToString(digest[:]), nil
}

// CheckSignature verifies a CryptoNote (Schnorr-style, over edwards25519)
// signature of digest under public, in the same {c, r} layout the device
// produces from GENERATE_SIGNATURE/COMPLETE_RING_SIGNATURE: sig = c||r
// (32 bytes each), verify c == Hs(digest || R || public) where
// R = r*G + c*public.
func (p *Provider) CheckSignature(digest, public, sig string) (bool, error) {
	digestBytes, err := hex.DecodeString(digest)
	if err != nil || len(digestBytes) != 32 {
		return false, cnerrors.New(cnerrors.InvalidArgument, "cryptoimpl: malformed digest")
	}
	sigBytes, err := hex.DecodeString(sig)
	if err != nil || len(sigBytes) != 64 {
		return false, cnerrors.New(cnerrors.InvalidArgument, "cryptoimpl: malformed signature")
	}
	pub, err := decodePoint(public)
	if err != nil {
		return false, err
	}

	c, err := edwards25519.NewScalar().SetCanonicalBytes(sigBytes[:32])
	if err != nil {
		return false, cnerrors.Wrap(cnerrors.InvalidArgument, "cryptoimpl: malformed signature challenge", err)
	}
	r, err := edwards25519.NewScalar().SetCanonicalBytes(sigBytes[32:])
	if err != nil {
		return false, cnerrors.Wrap(cnerrors.InvalidArgument, "cryptoimpl: malformed signature response", err)
	}

	rG := edwards25519.NewIdentityPoint().ScalarBaseMult(r)
	cPub := edwards25519.NewIdentityPoint().ScalarMult(c, pub)
	rPoint := edwards25519.NewIdentityPoint().Add(rG, cPub)

	buf := append(append(append([]byte(nil), digestBytes...), rPoint.Bytes()...), pub.Bytes()...)
	challengeDigest := ethcrypto.Keccak256(buf)
	expectedC, err := edwards25519.NewScalar().SetUniformBytes(extendTo64(challengeDigest))
	if err != nil {
		return false, cnerrors.Wrap(cnerrors.InvalidArgument, "cryptoimpl: internal challenge reduction", err)
	}

	return c.Equal(expectedC) == 1, nil
}

func encodeVarint(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

// extendTo64 right-pads a 32-byte digest to edwards25519's 64-byte
// uniform-reduction input, matching the reference implementation's
// sc_reduce32-over-a-half-filled-buffer convention.
func extendTo64(digest []byte) []byte {
	if len(digest) != 32 {
		panic(fmt.Sprintf("cryptoimpl: expected 32-byte digest, got %d", len(digest)))
	}
	out := make([]byte, 64)
	copy(out, digest)
	return out
}

package device

import (
	"context"
	"encoding/hex"

	"github.com/ledgerctl/cryptonote-core/pkg/apdu"
	"github.com/ledgerctl/cryptonote-core/pkg/cnerrors"
)

// VersionInfo is the result of Version.
type VersionInfo struct {
	Major, Minor, Patch uint8
}

// Version issues VERSION (0x01).
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	resp, err := c.exchange(ctx, insVersion, true, nil)
	if err != nil {
		return VersionInfo{}, err
	}
	r := apdu.NewReader(resp.Body)
	major, err := r.U8()
	if err != nil {
		return VersionInfo{}, err
	}
	minor, err := r.U8()
	if err != nil {
		return VersionInfo{}, err
	}
	patch, err := r.U8()
	if err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{Major: major, Minor: minor, Patch: patch}, nil
}

// Debug issues DEBUG (0x02), reporting whether the running app is a debug
// build.
func (c *Client) Debug(ctx context.Context) (bool, error) {
	resp, err := c.exchange(ctx, insDebug, false, nil)
	if err != nil {
		return false, err
	}
	v, err := apdu.NewReader(resp.Body).U8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Ident issues IDENT (0x05), returning the opaque identity bytes as hex.
func (c *Client) Ident(ctx context.Context) (string, error) {
	resp, err := c.exchange(ctx, insIdent, false, nil)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(resp.Body), nil
}

// PublicKeys issues PUBLIC_KEYS (0x10), returning spend and view public
// keys as hex.
func (c *Client) PublicKeys(ctx context.Context) (spend, view string, err error) {
	resp, err := c.exchange(ctx, insPublicKeys, false, nil)
	if err != nil {
		return "", "", err
	}
	r := apdu.NewReader(resp.Body)
	spendB, err := r.Raw32()
	if err != nil {
		return "", "", err
	}
	viewB, err := r.Raw32()
	if err != nil {
		return "", "", err
	}
	return apdu.EncodeHash32(spendB), apdu.EncodeHash32(viewB), nil
}

// ViewSecretKey issues VIEW_SECRET_KEY (0x11).
func (c *Client) ViewSecretKey(ctx context.Context) (string, error) {
	resp, err := c.exchange(ctx, insViewSecretKey, false, nil)
	if err != nil {
		return "", err
	}
	b, err := apdu.NewReader(resp.Body).Raw32()
	if err != nil {
		return "", err
	}
	return apdu.EncodeHash32(b), nil
}

// SpendESecretKey issues SPEND_ESECRET_KEY (0x12). The raw key bytes are
// zeroed immediately after hex-encoding, mirroring a ClearBytes
// convention for sensitive material.
func (c *Client) SpendESecretKey(ctx context.Context) (string, error) {
	resp, err := c.exchange(ctx, insSpendESecretKey, true, nil)
	if err != nil {
		return "", err
	}
	b, err := apdu.NewReader(resp.Body).Raw32()
	if err != nil {
		return "", err
	}
	s := apdu.EncodeHash32(b)
	clearBytes(b)
	return s, nil
}

// CheckKey issues CHECK_KEY (0x16).
func (c *Client) CheckKey(ctx context.Context, keyHex string) (bool, error) {
	b, err := apdu.DecodeHash32(keyHex)
	if err != nil {
		return false, err
	}
	resp, err := c.exchange(ctx, insCheckKey, false, apdu.NewWriter().Raw32(b).Bytes())
	if err != nil {
		return false, err
	}
	v, err := apdu.NewReader(resp.Body).U8()
	return v != 0, err
}

// CheckScalar issues CHECK_SCALAR (0x17).
func (c *Client) CheckScalar(ctx context.Context, scalarHex string) (bool, error) {
	b, err := apdu.DecodeHash32(scalarHex)
	if err != nil {
		return false, err
	}
	resp, err := c.exchange(ctx, insCheckScalar, false, apdu.NewWriter().Raw32(b).Bytes())
	if err != nil {
		return false, err
	}
	v, err := apdu.NewReader(resp.Body).U8()
	return v != 0, err
}

// PrivateToPublic issues PRIVATE_TO_PUBLIC (0x18).
func (c *Client) PrivateToPublic(ctx context.Context, privateHex string) (string, error) {
	b, err := apdu.DecodeHash32(privateHex)
	if err != nil {
		return "", err
	}
	resp, err := c.exchange(ctx, insPrivateToPublic, false, apdu.NewWriter().Raw32(b).Bytes())
	if err != nil {
		return "", err
	}
	out, err := apdu.NewReader(resp.Body).Raw32()
	if err != nil {
		return "", err
	}
	return apdu.EncodeHash32(out), nil
}

// RandomKeyPair issues RANDOM_KEY_PAIR (0x19).
func (c *Client) RandomKeyPair(ctx context.Context) (public, private string, err error) {
	resp, err := c.exchange(ctx, insRandomKeyPair, false, nil)
	if err != nil {
		return "", "", err
	}
	r := apdu.NewReader(resp.Body)
	pub, err := r.Raw32()
	if err != nil {
		return "", "", err
	}
	priv, err := r.Raw32()
	if err != nil {
		return "", "", err
	}
	return apdu.EncodeHash32(pub), apdu.EncodeHash32(priv), nil
}

// Address issues ADDRESS (0x30), returning the UTF-8 encoded address.
func (c *Client) Address(ctx context.Context) (string, error) {
	resp, err := c.exchange(ctx, insAddress, true, nil)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// GenerateKeyImage issues GENERATE_KEY_IMAGE (0x40).
func (c *Client) GenerateKeyImage(ctx context.Context, txPubHex string, outIdx uint32, outKeyHex string) (string, error) {
	txPub, err := apdu.DecodeHash32(txPubHex)
	if err != nil {
		return "", err
	}
	outKey, err := apdu.DecodeHash32(outKeyHex)
	if err != nil {
		return "", err
	}
	data := apdu.NewWriter().Raw32(txPub).U32(outIdx).Raw32(outKey).Bytes()
	resp, err := c.exchange(ctx, insGenerateKeyImage, false, data)
	if err != nil {
		return "", err
	}
	out, err := apdu.NewReader(resp.Body).Raw32()
	if err != nil {
		return "", err
	}
	return apdu.EncodeHash32(out), nil
}

// GenerateRingSignatures issues GENERATE_RING_SIGNATURES (0x50).
// inputKeysHex must contain at least one key; realIdx selects which ring
// member is the real input. The response body length must be a multiple
// of 64 bytes and must contain exactly len(inputKeysHex) signatures.
func (c *Client) GenerateRingSignatures(ctx context.Context, txPubHex string, outIdx uint32, outKeyHex, prefixHashHex string, inputKeysHex []string, realIdx uint32) ([]string, error) {
	if len(inputKeysHex) < 1 {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "device: GENERATE_RING_SIGNATURES requires at least one input key")
	}
	txPub, err := apdu.DecodeHash32(txPubHex)
	if err != nil {
		return nil, err
	}
	outKey, err := apdu.DecodeHash32(outKeyHex)
	if err != nil {
		return nil, err
	}
	prefixHash, err := apdu.DecodeHash32(prefixHashHex)
	if err != nil {
		return nil, err
	}

	w := apdu.NewWriter().Raw32(txPub).U32(outIdx).Raw32(outKey).Raw32(prefixHash)
	for _, keyHex := range inputKeysHex {
		keyB, err := apdu.DecodeHash32(keyHex)
		if err != nil {
			return nil, err
		}
		w.Raw32(keyB)
	}
	w.U32(realIdx)

	resp, err := c.exchange(ctx, insGenerateRingSignatures, false, w.Bytes())
	if err != nil {
		return nil, err
	}
	if len(resp.Body)%64 != 0 {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "device: ring signature response not a multiple of 64 bytes")
	}
	count := len(resp.Body) / 64
	if count != len(inputKeysHex) {
		return nil, cnerrors.New(cnerrors.InvalidArgument, "device: ring signature count mismatch")
	}

	r := apdu.NewReader(resp.Body)
	sigs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		sig, err := r.Raw64()
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, apdu.EncodeSignature64(sig))
	}
	return sigs, nil
}

// CompleteRingSignature issues COMPLETE_RING_SIGNATURE (0x51).
func (c *Client) CompleteRingSignature(ctx context.Context, txPubHex string, outIdx uint32, outKeyHex, kHex, partialSigHex string) (string, error) {
	txPub, err := apdu.DecodeHash32(txPubHex)
	if err != nil {
		return "", err
	}
	outKey, err := apdu.DecodeHash32(outKeyHex)
	if err != nil {
		return "", err
	}
	k, err := apdu.DecodeHash32(kHex)
	if err != nil {
		return "", err
	}
	partial, err := apdu.DecodeSignature64(partialSigHex)
	if err != nil {
		return "", err
	}
	data := apdu.NewWriter().Raw32(txPub).U32(outIdx).Raw32(outKey).Raw32(k).Raw64(partial).Bytes()
	resp, err := c.exchange(ctx, insCompleteRingSignature, false, data)
	if err != nil {
		return "", err
	}
	sig, err := apdu.NewReader(resp.Body).Raw64()
	if err != nil {
		return "", err
	}
	return apdu.EncodeSignature64(sig), nil
}

// CheckRingSignatures issues CHECK_RING_SIGNATURES (0x52). keysHex and
// sigsHex must have matching length.
func (c *Client) CheckRingSignatures(ctx context.Context, prefixHashHex, keyImageHex string, keysHex, sigsHex []string) (bool, error) {
	if len(keysHex) != len(sigsHex) {
		return false, cnerrors.New(cnerrors.InvalidArgument, "device: CHECK_RING_SIGNATURES keys/signatures length mismatch")
	}
	prefixHash, err := apdu.DecodeHash32(prefixHashHex)
	if err != nil {
		return false, err
	}
	keyImage, err := apdu.DecodeHash32(keyImageHex)
	if err != nil {
		return false, err
	}
	w := apdu.NewWriter().Raw32(prefixHash).Raw32(keyImage)
	for _, keyHex := range keysHex {
		keyB, err := apdu.DecodeHash32(keyHex)
		if err != nil {
			return false, err
		}
		w.Raw32(keyB)
	}
	for _, sigHex := range sigsHex {
		sigB, err := apdu.DecodeSignature64(sigHex)
		if err != nil {
			return false, err
		}
		w.Raw64(sigB)
	}

	resp, err := c.exchange(ctx, insCheckRingSignatures, false, w.Bytes())
	if err != nil {
		return false, err
	}
	v, err := apdu.NewReader(resp.Body).U8()
	return v != 0, err
}

// GenerateSignature issues GENERATE_SIGNATURE (0x55).
func (c *Client) GenerateSignature(ctx context.Context, digestHex string) (string, error) {
	digest, err := apdu.DecodeHash32(digestHex)
	if err != nil {
		return "", err
	}
	resp, err := c.exchange(ctx, insGenerateSignature, false, apdu.NewWriter().Raw32(digest).Bytes())
	if err != nil {
		return "", err
	}
	sig, err := apdu.NewReader(resp.Body).Raw64()
	if err != nil {
		return "", err
	}
	return apdu.EncodeSignature64(sig), nil
}

// CheckSignature issues CHECK_SIGNATURE (0x56).
func (c *Client) CheckSignature(ctx context.Context, digestHex, pubKeyHex, sigHex string) (bool, error) {
	digest, err := apdu.DecodeHash32(digestHex)
	if err != nil {
		return false, err
	}
	pubKey, err := apdu.DecodeHash32(pubKeyHex)
	if err != nil {
		return false, err
	}
	sig, err := apdu.DecodeSignature64(sigHex)
	if err != nil {
		return false, err
	}
	data := apdu.NewWriter().Raw32(digest).Raw32(pubKey).Raw64(sig).Bytes()
	resp, err := c.exchange(ctx, insCheckSignature, false, data)
	if err != nil {
		return false, err
	}
	v, err := apdu.NewReader(resp.Body).U8()
	return v != 0, err
}

// GenerateKeyDerivation issues GENERATE_KEY_DERIVATION (0x60).
func (c *Client) GenerateKeyDerivation(ctx context.Context, txPubHex string) (string, error) {
	txPub, err := apdu.DecodeHash32(txPubHex)
	if err != nil {
		return "", err
	}
	resp, err := c.exchange(ctx, insGenerateKeyDerivation, false, apdu.NewWriter().Raw32(txPub).Bytes())
	if err != nil {
		return "", err
	}
	out, err := apdu.NewReader(resp.Body).Raw32()
	if err != nil {
		return "", err
	}
	return apdu.EncodeHash32(out), nil
}

// DerivePublicKey issues DERIVE_PUBLIC_KEY (0x61).
func (c *Client) DerivePublicKey(ctx context.Context, derivationHex string, outIdx uint32) (string, error) {
	derivation, err := apdu.DecodeHash32(derivationHex)
	if err != nil {
		return "", err
	}
	data := apdu.NewWriter().Raw32(derivation).U32(outIdx).Bytes()
	resp, err := c.exchange(ctx, insDerivePublicKey, false, data)
	if err != nil {
		return "", err
	}
	out, err := apdu.NewReader(resp.Body).Raw32()
	if err != nil {
		return "", err
	}
	return apdu.EncodeHash32(out), nil
}

// DeriveSecretKey issues DERIVE_SECRET_KEY (0x62). Sensitive — zeroed
// after hex-encoding.
func (c *Client) DeriveSecretKey(ctx context.Context, derivationHex string, outIdx uint32) (string, error) {
	derivation, err := apdu.DecodeHash32(derivationHex)
	if err != nil {
		return "", err
	}
	data := apdu.NewWriter().Raw32(derivation).U32(outIdx).Bytes()
	resp, err := c.exchange(ctx, insDeriveSecretKey, true, data)
	if err != nil {
		return "", err
	}
	out, err := apdu.NewReader(resp.Body).Raw32()
	if err != nil {
		return "", err
	}
	s := apdu.EncodeHash32(out)
	clearBytes(out)
	return s, nil
}

// TxState issues TX_STATE (0x70).
func (c *Client) TxState(ctx context.Context) (TxState, error) {
	resp, err := c.exchange(ctx, insTxState, false, nil)
	if err != nil {
		return 0, err
	}
	v, err := apdu.NewReader(resp.Body).U8()
	if err != nil {
		return 0, err
	}
	return TxState(v), nil
}

// TxStart issues TX_START (0x71). inputCount/outputCount must each be in
// [0, 90]. paymentIDHex is optional (nil means no payment id attached).
func (c *Client) TxStart(ctx context.Context, unlockTime uint64, inputCount, outputCount uint8, txPubHex string, paymentIDHex *string) error {
	if inputCount > 90 || outputCount > 90 {
		return cnerrors.New(cnerrors.InvalidArgument, "device: TX_START input/output count must be in [0, 90]")
	}
	txPub, err := apdu.DecodeHash32(txPubHex)
	if err != nil {
		return err
	}

	w := apdu.NewWriter().U64(unlockTime).U8(inputCount).U8(outputCount).Raw32(txPub)
	if paymentIDHex != nil {
		pid, err := apdu.DecodeHash32(*paymentIDHex)
		if err != nil {
			return err
		}
		w.U8(1).Raw32(pid)
	} else {
		w.U8(0)
	}

	_, err = c.exchange(ctx, insTxStart, true, w.Bytes())
	return err
}

// TxStartInputLoad issues TX_START_INPUT_LOAD (0x72).
func (c *Client) TxStartInputLoad(ctx context.Context) error {
	_, err := c.exchange(ctx, insTxStartInputLoad, false, nil)
	return err
}

// TxLoadInput issues TX_LOAD_INPUT (0x73). Exactly 4 ring keys and 4
// relative offsets are required — the device's ring size is fixed at 4
// members (3 decoys plus the real output).
func (c *Client) TxLoadInput(ctx context.Context, inTxPubHex string, inOutIdx uint8, amount uint64, keysHex [4]string, offsets [4]uint32, realIdx uint8) error {
	inTxPub, err := apdu.DecodeHash32(inTxPubHex)
	if err != nil {
		return err
	}
	w := apdu.NewWriter().Raw32(inTxPub).U8(inOutIdx).U64(amount)
	for _, keyHex := range keysHex {
		keyB, err := apdu.DecodeHash32(keyHex)
		if err != nil {
			return err
		}
		w.Raw32(keyB)
	}
	for _, off := range offsets {
		w.U32(off)
	}
	w.U8(realIdx)

	_, err = c.exchange(ctx, insTxLoadInput, false, w.Bytes())
	return err
}

// TxStartOutputLoad issues TX_START_OUTPUT_LOAD (0x74).
func (c *Client) TxStartOutputLoad(ctx context.Context) error {
	_, err := c.exchange(ctx, insTxStartOutputLoad, false, nil)
	return err
}

// TxLoadOutput issues TX_LOAD_OUTPUT (0x75).
func (c *Client) TxLoadOutput(ctx context.Context, amount uint64, outKeyHex string) error {
	outKey, err := apdu.DecodeHash32(outKeyHex)
	if err != nil {
		return err
	}
	data := apdu.NewWriter().U64(amount).Raw32(outKey).Bytes()
	_, err = c.exchange(ctx, insTxLoadOutput, false, data)
	return err
}

// TxFinalizeTxPrefix issues TX_FINALIZE_TX_PREFIX (0x76).
func (c *Client) TxFinalizeTxPrefix(ctx context.Context) error {
	_, err := c.exchange(ctx, insTxFinalizeTxPrefix, false, nil)
	return err
}

// SignResult is the result of TxSign.
type SignResult struct {
	Hash string
	Size uint16
}

// TxSign issues TX_SIGN (0x77).
func (c *Client) TxSign(ctx context.Context) (SignResult, error) {
	resp, err := c.exchange(ctx, insTxSign, true, nil)
	if err != nil {
		return SignResult{}, err
	}
	r := apdu.NewReader(resp.Body)
	hashB, err := r.Raw32()
	if err != nil {
		return SignResult{}, err
	}
	size, err := r.U16()
	if err != nil {
		return SignResult{}, err
	}
	return SignResult{Hash: apdu.EncodeHash32(hashB), Size: size}, nil
}

// TxDump issues TX_DUMP (0x78) at the given byte offset, returning the
// opaque chunk (possibly empty when the device has nothing left to send).
func (c *Client) TxDump(ctx context.Context, offset uint16) ([]byte, error) {
	data := apdu.NewWriter().U16(offset).Bytes()
	resp, err := c.exchange(ctx, insTxDump, false, data)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// TxReset issues TX_RESET (0x79), returning the device to INACTIVE.
func (c *Client) TxReset(ctx context.Context) error {
	_, err := c.exchange(ctx, insTxReset, false, nil)
	return err
}

// ResetKeys issues RESET_KEYS (0xFF).
func (c *Client) ResetKeys(ctx context.Context) error {
	_, err := c.exchange(ctx, insResetKeys, true, nil)
	return err
}

package lnwire

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// Sig is a fixed-size 64-byte signature: a 32-byte R value concatenated
// with a 32-byte S value, BOLT #1's "signature" primitive. Using a fixed
// width instead of DER avoids a variable-length field on every signed
// message.
type Sig [64]byte

var (
	errSigTooShort = fmt.Errorf("too short to parse DER signature")
	errBadLength   = fmt.Errorf("bad signature length")
	errBadRLength  = fmt.Errorf("bad R length")
	errBadSLength  = fmt.Errorf("bad S length")
	errRTooLong    = fmt.Errorf("R is over 32 bytes long without padding")
	errSTooLong    = fmt.Errorf("S is over 32 bytes long without padding")
)

// NewSigFromSignature converts a *btcec.Signature into the fixed-size wire
// format, left-padding R and S to 32 bytes each.
func NewSigFromSignature(e *btcec.Signature) (Sig, error) {
	if e == nil {
		return Sig{}, fmt.Errorf("cannot create signature from nil " +
			"btcec signature")
	}

	var sig Sig

	rBytes := e.R.Bytes()
	if len(rBytes) > 32 {
		return sig, errRTooLong
	}
	copy(sig[32-len(rBytes):32], rBytes)

	sBytes := e.S.Bytes()
	if len(sBytes) > 32 {
		return sig, errSTooLong
	}
	copy(sig[64-len(sBytes):64], sBytes)

	return sig, nil
}

// NewSigFromRawSignature parses a DER-encoded ECDSA signature directly into
// the fixed-size wire format, without the extra round trip of fully
// constructing a *btcec.Signature first.
func NewSigFromRawSignature(rawSig []byte) (Sig, error) {
	var sig Sig

	if len(rawSig) < 8 {
		return sig, errSigTooShort
	}

	totalLen := int(rawSig[1])
	if totalLen+2 != len(rawSig) {
		return sig, errBadLength
	}

	rLen := int(rawSig[3])
	if rLen == 0 || rLen > 33 || 4+rLen+2 > len(rawSig) {
		return sig, errBadRLength
	}
	rBytes := rawSig[4 : 4+rLen]
	if len(rBytes) == 33 {
		if rBytes[0] != 0x00 {
			return sig, errRTooLong
		}
		rBytes = rBytes[1:]
	}
	if len(rBytes) > 32 {
		return sig, errRTooLong
	}
	copy(sig[32-len(rBytes):32], rBytes)

	sOff := 4 + rLen
	if sOff+2 > len(rawSig) {
		return sig, errBadSLength
	}
	sLen := int(rawSig[sOff+1])
	if sLen == 0 || sLen > 33 || sOff+2+sLen != len(rawSig) {
		return sig, errBadSLength
	}
	sBytes := rawSig[sOff+2 : sOff+2+sLen]
	if len(sBytes) == 33 {
		if sBytes[0] != 0x00 {
			return sig, errSTooLong
		}
		sBytes = sBytes[1:]
	}
	if len(sBytes) > 32 {
		return sig, errSTooLong
	}
	copy(sig[64-len(sBytes):64], sBytes)

	return sig, nil
}

// ToSignature parses the fixed-size wire signature back into a
// *btcec.Signature suitable for verification.
func (s Sig) ToSignature() (*btcec.Signature, error) {
	r := new(big.Int).SetBytes(s[0:32])
	sVal := new(big.Int).SetBytes(s[32:64])

	return &btcec.Signature{R: r, S: sVal}, nil
}

// RawBytes returns the 64 raw bytes of the signature, as written to the
// wire.
func (s Sig) RawBytes() []byte {
	return s[:]
}

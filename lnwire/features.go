package lnwire

import (
	"bytes"
	"io"
	"math/big"
)

// RawFeatureVector represents the set of feature bits defined in BOLT #9, a
// variable-length big-endian byte string where bit 0 is the least
// significant bit of the last byte.
type RawFeatureVector struct {
	features *big.Int
}

// NewRawFeatureVector creates a feature vector with the given bits set.
func NewRawFeatureVector(bits ...uint16) *RawFeatureVector {
	fv := &RawFeatureVector{features: new(big.Int)}
	for _, bit := range bits {
		fv.Set(bit)
	}
	return fv
}

// IsSet returns whether the given feature bit is set.
func (fv *RawFeatureVector) IsSet(bit uint16) bool {
	if fv.features == nil {
		return false
	}
	return fv.features.Bit(int(bit)) == 1
}

// Set marks the given feature bit as set.
func (fv *RawFeatureVector) Set(bit uint16) {
	if fv.features == nil {
		fv.features = new(big.Int)
	}
	fv.features.SetBit(fv.features, int(bit), 1)
}

// Merge sets every bit in fv that is set in other.
func (fv *RawFeatureVector) Merge(other *RawFeatureVector) {
	if other == nil || other.features == nil {
		return
	}
	if fv.features == nil {
		fv.features = new(big.Int)
	}
	fv.features.Or(fv.features, other.features)
}

// SerializeSize returns the number of bytes needed to encode the vector.
func (fv *RawFeatureVector) SerializeSize() int {
	if fv.features == nil {
		return 0
	}
	return (fv.features.BitLen() + 7) / 8
}

// Encode writes the big-endian, length-prefixed byte string for this
// feature vector into w.
func (fv *RawFeatureVector) Encode(w *bytes.Buffer) error {
	length := fv.SerializeSize()
	if err := WriteElement(w, uint16(length)); err != nil {
		return err
	}

	if length == 0 {
		return nil
	}

	raw := fv.features.Bytes()
	padded := make([]byte, length)
	copy(padded[length-len(raw):], raw)

	_, err := w.Write(padded)
	return err
}

// Decode reads a length-prefixed feature vector byte string from r.
func (fv *RawFeatureVector) Decode(r io.Reader) error {
	var length uint16
	if err := ReadElement(r, &length); err != nil {
		return err
	}

	fv.features = new(big.Int)
	if length == 0 {
		return nil
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return err
	}
	fv.features.SetBytes(raw)

	return nil
}

package shachain

import (
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Producer is an interface which serves as an abstraction over the
// secret-generating side of the shachain PRF: given an index it returns the
// corresponding 32-byte secret, without needing to have seen any secret
// before it.
type Producer interface {
	// AtIndex derives the secret associated with the given index. Each
	// call is independent; indexes may be requested in any order.
	AtIndex(uint64) (*chainhash.Hash, error)

	// Encode writes a binary serialization of the producer's seed to
	// the passed io.Writer.
	Encode(io.Writer) error
}

// RevocationProducer is the concrete implementation of the Producer
// interface. Every secret is derived from a single 32-byte seed by walking
// the same bit-flip-then-hash transform RevocationStore uses to re-derive
// ancestors, starting from the root at startIndex and deriving down toward
// the requested index.
type RevocationProducer struct {
	// root is the initial element from which the entire chain of
	// secrets is derived; it corresponds to startIndex.
	root element
}

// A compile time check to ensure RevocationProducer implements the Producer
// interface.
var _ Producer = (*RevocationProducer)(nil)

// NewRevocationProducer creates a new RevocationProducer which will produce
// every secret in the chain by deriving from the given seed.
func NewRevocationProducer(seed chainhash.Hash) *RevocationProducer {
	return &RevocationProducer{
		root: element{
			index: startIndex,
			hash:  seed,
		},
	}
}

// NewRevocationProducerFromBytes recreates a RevocationProducer from its
// binary-serialized seed.
func NewRevocationProducerFromBytes(data []byte) (*RevocationProducer, error) {
	var seed chainhash.Hash
	copy(seed[:], data)

	return NewRevocationProducer(seed), nil
}

// AtIndex derives the secret for the given index by walking the bit-flip
// transform from the root index down to it.
//
// NOTE: This function is part of the Producer interface.
func (p *RevocationProducer) AtIndex(v uint64) (*chainhash.Hash, error) {
	ind := newIndex(v)

	e, err := p.root.derive(ind)
	if err != nil {
		return nil, err
	}

	return &e.hash, nil
}

// Encode writes a binary serialization of the producer's seed to the passed
// io.Writer.
//
// NOTE: This function is part of the Producer interface.
func (p *RevocationProducer) Encode(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, p.root.hash)
}

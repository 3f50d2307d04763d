package lnwire

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// OutPoint mirrors wire.OutPoint but with a 16-bit output index, matching
// the funding_output_index field BOLT #2 carries in FundingCreated (a
// funding transaction is never expected to have more than 65535 outputs).
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint16
}

// ToWire converts this OutPoint to the standard library's wider wire.OutPoint.
func (o OutPoint) ToWire() wire.OutPoint {
	return wire.OutPoint{Hash: o.Hash, Index: uint32(o.Index)}
}

// NewOutPoint builds an OutPoint from a wire.OutPoint, truncating its index
// to 16 bits.
func NewOutPoint(op wire.OutPoint) OutPoint {
	return OutPoint{Hash: op.Hash, Index: uint16(op.Index)}
}

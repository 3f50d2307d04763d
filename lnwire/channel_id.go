package lnwire

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
)

// ChannelID is the unique identifier for a channel, derived by XORing the
// funding outpoint's txid with its output index. Until the funding
// transaction confirms, peers address the channel by a temporary channel id
// chosen by the funder; ChannelID is used for both, the state machine
// switches from one to the other once the real outpoint is known.
type ChannelID [32]byte

// ConnectionWideID is the all-zero ChannelID, used to address messages (for
// example, error) to an entire connection rather than a single channel.
var ConnectionWideID = ChannelID{}

// String returns the hex-encoded representation of the ChannelID.
func (c ChannelID) String() string {
	return hex.EncodeToString(c[:])
}

// NewChanIDFromOutPoint derives a ChannelID from the funding transaction's
// outpoint, as mandated by BOLT #2: the txid verbatim, with the low two
// bytes XORed against the big-endian output index.
func NewChanIDFromOutPoint(op wire.OutPoint) ChannelID {
	var cid ChannelID
	copy(cid[:], op.Hash[:])

	xorTxid(&cid, op.Index)

	return cid
}

// xorTxid XORs the big-endian encoding of idx into the final two bytes of
// the channel id in place.
func xorTxid(cid *ChannelID, idx uint32) {
	cid[30] ^= byte(idx >> 8)
	cid[31] ^= byte(idx)
}

// IsChanPoint returns true if this ChannelID was derived from the given
// outpoint.
func (c ChannelID) IsChanPoint(op *wire.OutPoint) bool {
	return c == NewChanIDFromOutPoint(*op)
}

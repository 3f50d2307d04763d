package lnwire

import (
	"bytes"
	"io"

	"github.com/22388o/lightning-kmp/lntypes"
)

// OnionPacketSize is the fixed size of the Sphinx onion routing packet
// every UpdateAddHTLC carries, regardless of the route's actual length.
const OnionPacketSize = 1366

// UpdateAddHTLC proposes adding a new HTLC to the commitment, identified on
// this connection by ID (assigned by the sender, monotonically increasing).
type UpdateAddHTLC struct {
	ChanID      ChannelID
	ID          uint64
	Amount      MilliSatoshi
	PaymentHash lntypes.Hash
	Expiry      uint32
	OnionBlob   [OnionPacketSize]byte

	ExtraData ExtraOpaqueData
}

// Decode deserializes an UpdateAddHTLC message from r.
func (msg *UpdateAddHTLC) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.ID,
		&msg.Amount,
		(*[32]byte)(&msg.PaymentHash),
		&msg.Expiry,
	); err != nil {
		return err
	}

	if _, err := io.ReadFull(r, msg.OnionBlob[:]); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes an UpdateAddHTLC message into w.
func (msg *UpdateAddHTLC) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.ID,
		msg.Amount,
		[32]byte(msg.PaymentHash),
		msg.Expiry,
	); err != nil {
		return err
	}

	if _, err := w.Write(msg.OnionBlob[:]); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *UpdateAddHTLC) MsgType() MessageType {
	return MsgUpdateAddHTLC
}

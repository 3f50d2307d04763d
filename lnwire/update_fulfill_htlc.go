package lnwire

import (
	"bytes"
	"io"

	"github.com/22388o/lightning-kmp/lntypes"
)

// UpdateFulfillHTLC settles a previously added HTLC by revealing the
// preimage that hashes to its payment hash.
type UpdateFulfillHTLC struct {
	ChanID          ChannelID
	ID              uint64
	PaymentPreimage lntypes.Preimage

	ExtraData ExtraOpaqueData
}

// Decode deserializes an UpdateFulfillHTLC message from r.
func (msg *UpdateFulfillHTLC) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.ID,
		(*[32]byte)(&msg.PaymentPreimage),
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes an UpdateFulfillHTLC message into w.
func (msg *UpdateFulfillHTLC) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.ID,
		[32]byte(msg.PaymentPreimage),
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *UpdateFulfillHTLC) MsgType() MessageType {
	return MsgUpdateFulfillHTLC
}

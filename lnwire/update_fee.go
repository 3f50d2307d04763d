package lnwire

import (
	"bytes"
	"io"
)

// UpdateFee is sent by the funder to update the feerate used on the
// commitment transaction; only the funder may send it, since only the
// funder pays on-chain fees.
type UpdateFee struct {
	ChanID      ChannelID
	FeePerKw    uint32

	ExtraData ExtraOpaqueData
}

// Decode deserializes an UpdateFee message from r.
func (msg *UpdateFee) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.FeePerKw,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes an UpdateFee message into w.
func (msg *UpdateFee) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.FeePerKw,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *UpdateFee) MsgType() MessageType {
	return MsgUpdateFee
}

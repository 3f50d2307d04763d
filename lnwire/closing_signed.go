package lnwire

import (
	"bytes"
	"io"
)

// ClosingSigned is sent during the cooperative close fee negotiation: each
// side proposes a fee in satoshis and signs the resulting closing
// transaction; agreement is reached once one side echoes the other's
// proposed fee.
type ClosingSigned struct {
	ChanID   ChannelID
	FeeSat   uint64
	Sig      Sig

	ExtraData ExtraOpaqueData
}

// Decode deserializes a ClosingSigned message from r.
func (msg *ClosingSigned) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.FeeSat,
		&msg.Sig,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a ClosingSigned message into w.
func (msg *ClosingSigned) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.FeeSat,
		msg.Sig,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *ClosingSigned) MsgType() MessageType {
	return MsgClosingSigned
}

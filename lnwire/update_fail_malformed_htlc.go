package lnwire

import (
	"bytes"
	"io"
)

// UpdateFailMalformedHTLC fails an HTLC whose onion packet this node could
// not even parse (bad version, bad ephemeral key, or a hash mismatch),
// and so cannot wrap into an onion-encrypted UpdateFailHTLC reason.
type UpdateFailMalformedHTLC struct {
	ChanID       ChannelID
	ID           uint64
	ShaOnionBlob [32]byte
	FailureCode  uint16

	ExtraData ExtraOpaqueData
}

// Decode deserializes an UpdateFailMalformedHTLC message from r.
func (msg *UpdateFailMalformedHTLC) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.ID,
		&msg.ShaOnionBlob,
		&msg.FailureCode,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes an UpdateFailMalformedHTLC message into w.
func (msg *UpdateFailMalformedHTLC) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.ID,
		msg.ShaOnionBlob,
		msg.FailureCode,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *UpdateFailMalformedHTLC) MsgType() MessageType {
	return MsgUpdateFailMalformedHTLC
}

package lnwire

import (
	"bytes"
	"io"
)

// maxOpaqueFailureDataLength bounds the encrypted failure reason blob,
// matching the largest payload the fixed-size onion error format allows.
const maxOpaqueFailureDataLength = 65536 - 2

// UpdateFailHTLC fails a previously added HTLC. Reason is an
// onion-encrypted blob opaque to every hop but the one that produced it.
type UpdateFailHTLC struct {
	ChanID ChannelID
	ID     uint64
	Reason []byte

	ExtraData ExtraOpaqueData
}

// Decode deserializes an UpdateFailHTLC message from r.
func (msg *UpdateFailHTLC) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.ID,
		&msg.Reason,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes an UpdateFailHTLC message into w.
func (msg *UpdateFailHTLC) Encode(w *bytes.Buffer) error {
	if len(msg.Reason) > maxOpaqueFailureDataLength {
		return ErrorPayloadTooLarge(len(msg.Reason))
	}

	if err := WriteElements(w,
		msg.ChanID,
		msg.ID,
		msg.Reason,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *UpdateFailHTLC) MsgType() MessageType {
	return MsgUpdateFailHTLC
}

package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// RevokeAndAck both reveals the per-commitment secret for the commitment
// state being superseded, and hands over the next per-commitment point so
// the counterparty can build the following commitment.
type RevokeAndAck struct {
	ChanID            ChannelID
	Revocation        [32]byte
	NextRevocationKey *btcec.PublicKey

	ExtraData ExtraOpaqueData
}

// Decode deserializes a RevokeAndAck message from r.
func (msg *RevokeAndAck) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.Revocation,
		&msg.NextRevocationKey,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a RevokeAndAck message into w.
func (msg *RevokeAndAck) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.Revocation,
		msg.NextRevocationKey,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *RevokeAndAck) MsgType() MessageType {
	return MsgRevokeAndAck
}

package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ChannelReady is sent by each side once it has observed the funding
// transaction reach the depth it requires, exchanging the second
// per-commitment point so steady-state operation may begin.
type ChannelReady struct {
	ChanID                 ChannelID
	NextPerCommitmentPoint *btcec.PublicKey

	ExtraData ExtraOpaqueData
}

// Decode deserializes a ChannelReady message from r.
func (msg *ChannelReady) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.NextPerCommitmentPoint,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a ChannelReady message into w.
func (msg *ChannelReady) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.NextPerCommitmentPoint,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *ChannelReady) MsgType() MessageType {
	return MsgChannelReady
}

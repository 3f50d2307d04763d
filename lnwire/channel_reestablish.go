package lnwire

import (
	"bytes"
	"io"
)

// ChannelReestablish is exchanged immediately after reconnecting to resync
// channel state, letting each side detect and recover from a missed
// message or a stale view without replaying the entire commitment history.
type ChannelReestablish struct {
	ChanID                     ChannelID
	NextLocalCommitHeight      uint64
	RemoteCommitTailHeight     uint64

	ExtraData ExtraOpaqueData
}

// Decode deserializes a ChannelReestablish message from r.
func (msg *ChannelReestablish) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.NextLocalCommitHeight,
		&msg.RemoteCommitTailHeight,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a ChannelReestablish message into w.
func (msg *ChannelReestablish) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.NextLocalCommitHeight,
		msg.RemoteCommitTailHeight,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *ChannelReestablish) MsgType() MessageType {
	return MsgChannelReestablish
}

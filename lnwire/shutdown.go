package lnwire

import (
	"bytes"
	"io"
)

// Shutdown begins the cooperative close flow: once sent, neither side may
// add new HTLCs, and the sender's upfront shutdown script (if any was
// committed to in OpenChannel/AcceptChannel) must match Address.
type Shutdown struct {
	ChanID  ChannelID
	Address PkScript

	ExtraData ExtraOpaqueData
}

// NewShutdown returns a new Shutdown message addressed to chanID, paying
// the cooperative close output to addr.
func NewShutdown(chanID ChannelID, addr PkScript) *Shutdown {
	return &Shutdown{ChanID: chanID, Address: addr}
}

// Decode deserializes a Shutdown message from r.
func (msg *Shutdown) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.Address,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a Shutdown message into w.
func (msg *Shutdown) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.Address,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *Shutdown) MsgType() MessageType {
	return MsgShutdown
}

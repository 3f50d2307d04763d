package lnwire

import (
	"bytes"
	"io"
)

// FundingSigned completes the funding flow: the non-funder's signature on
// the funder's version of the initial commitment transaction. Once the
// funder has this, the funding transaction may be broadcast.
type FundingSigned struct {
	ChanID    ChannelID
	CommitSig Sig

	ExtraData ExtraOpaqueData
}

// Decode deserializes a FundingSigned message from r.
func (msg *FundingSigned) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.CommitSig,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a FundingSigned message into w.
func (msg *FundingSigned) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.ChanID,
		msg.CommitSig,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *FundingSigned) MsgType() MessageType {
	return MsgFundingSigned
}

package lnwire

import (
	"bytes"
	"io"
)

// FundingCreated is sent by the funder once the funding transaction has
// been built (but not yet broadcast), handing over the outpoint and a
// signature on the counterparty's version of the initial commitment
// transaction so the non-funder can countersign.
type FundingCreated struct {
	PendingChannelID [32]byte
	FundingPoint     OutPoint
	CommitSig        Sig

	ExtraData ExtraOpaqueData
}

// Decode deserializes a FundingCreated message from r.
func (msg *FundingCreated) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.PendingChannelID,
		&msg.FundingPoint.Hash,
		&msg.FundingPoint.Index,
		&msg.CommitSig,
	); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a FundingCreated message into w.
func (msg *FundingCreated) Encode(w *bytes.Buffer) error {
	if err := WriteElements(w,
		msg.PendingChannelID,
		msg.FundingPoint.Hash,
		msg.FundingPoint.Index,
		msg.CommitSig,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *FundingCreated) MsgType() MessageType {
	return MsgFundingCreated
}

package lnwire

import (
	"bytes"
	"fmt"
	"io"
)

// CommitSig is sent to lock in a new commitment state: a signature on the
// counterparty's next commitment transaction, plus one signature per HTLC
// output on that same transaction, in the same order the HTLCs appear in
// the commitment's output list (by CLTV expiry, then payment hash).
type CommitSig struct {
	ChanID    ChannelID
	CommitSig Sig
	HtlcSigs  []Sig

	ExtraData ExtraOpaqueData
}

// NewCommitSig returns a new, empty CommitSig message.
func NewCommitSig() *CommitSig {
	return &CommitSig{}
}

// Decode deserializes a CommitSig message from r.
func (msg *CommitSig) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChanID,
		&msg.CommitSig,
	); err != nil {
		return err
	}

	var numSigs uint16
	if err := ReadElement(r, &numSigs); err != nil {
		return err
	}

	msg.HtlcSigs = make([]Sig, numSigs)
	for i := 0; i < int(numSigs); i++ {
		if err := ReadElement(r, &msg.HtlcSigs[i]); err != nil {
			return err
		}
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes a CommitSig message into w.
func (msg *CommitSig) Encode(w *bytes.Buffer) error {
	if len(msg.HtlcSigs) > 65535 {
		return fmt.Errorf("too many HTLC signatures: %d", len(msg.HtlcSigs))
	}

	if err := WriteElements(w,
		msg.ChanID,
		msg.CommitSig,
		uint16(len(msg.HtlcSigs)),
	); err != nil {
		return err
	}

	for _, sig := range msg.HtlcSigs {
		if err := WriteElement(w, sig); err != nil {
			return err
		}
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *CommitSig) MsgType() MessageType {
	return MsgCommitSig
}

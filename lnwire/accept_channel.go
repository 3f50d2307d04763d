package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// AcceptChannel is the funder's counterparty's response to OpenChannel,
// fixing the remaining channel parameters it requires and handing over the
// keys the funder needs to build the initial commitment transaction.
type AcceptChannel struct {
	PendingChannelID     [32]byte
	DustLimit            MilliSatoshi
	MaxValueInFlight     MilliSatoshi
	ChannelReserve       MilliSatoshi
	HtlcMinimum          MilliSatoshi
	MinAcceptDepth       uint32
	CsvDelay             uint16
	MaxAcceptedHTLCs     uint16
	FundingKey           *btcec.PublicKey
	RevocationPoint      *btcec.PublicKey
	PaymentPoint         *btcec.PublicKey
	DelayedPaymentPoint  *btcec.PublicKey
	HtlcPoint            *btcec.PublicKey
	FirstCommitmentPoint *btcec.PublicKey

	ChannelType *ChannelType

	ExtraData ExtraOpaqueData
}

// Decode deserializes an AcceptChannel message from r.
func (msg *AcceptChannel) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.PendingChannelID,
		&msg.DustLimit,
		&msg.MaxValueInFlight,
		&msg.ChannelReserve,
		&msg.HtlcMinimum,
		&msg.MinAcceptDepth,
		&msg.CsvDelay,
		&msg.MaxAcceptedHTLCs,
		&msg.FundingKey,
		&msg.RevocationPoint,
		&msg.PaymentPoint,
		&msg.DelayedPaymentPoint,
		&msg.HtlcPoint,
		&msg.FirstCommitmentPoint,
	); err != nil {
		return err
	}

	if err := msg.ExtraData.decode(r); err != nil {
		return err
	}

	var chanType ChannelType
	tlvMap, err := msg.ExtraData.ExtractRecords(&chanType)
	if err != nil {
		return err
	}
	if _, ok := tlvMap[ChannelTypeRecordType]; ok {
		msg.ChannelType = &chanType
	}

	return nil
}

// Encode serializes an AcceptChannel message into w.
func (msg *AcceptChannel) Encode(w *bytes.Buffer) error {
	if msg.ChannelType != nil {
		if err := msg.ExtraData.PackRecords(msg.ChannelType); err != nil {
			return err
		}
	}

	if err := WriteElements(w,
		msg.PendingChannelID,
		msg.DustLimit,
		msg.MaxValueInFlight,
		msg.ChannelReserve,
		msg.HtlcMinimum,
		msg.MinAcceptDepth,
		msg.CsvDelay,
		msg.MaxAcceptedHTLCs,
		msg.FundingKey,
		msg.RevocationPoint,
		msg.PaymentPoint,
		msg.DelayedPaymentPoint,
		msg.HtlcPoint,
		msg.FirstCommitmentPoint,
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *AcceptChannel) MsgType() MessageType {
	return MsgAcceptChannel
}

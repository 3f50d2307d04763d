package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/tlv"
)

// FundingFlag is the set of flags carried in the final byte of OpenChannel.
type FundingFlag uint8

// FFAnnounceChannel, when set, asks the receiver to co-sign a public
// channel announcement once the funding transaction confirms.
const FFAnnounceChannel FundingFlag = 1

// OpenChannel is sent by the funder to propose a new channel, fixing the
// funding amount, the initial balance split, and every channel parameter
// both sides will be bound by for the life of the channel.
type OpenChannel struct {
	ChainHash            chainhash.Hash
	PendingChannelID      [32]byte
	FundingAmount        MilliSatoshi
	PushAmount           MilliSatoshi
	DustLimit            MilliSatoshi
	MaxValueInFlight     MilliSatoshi
	ChannelReserve       MilliSatoshi
	HtlcMinimum          MilliSatoshi
	FeePerKiloWeight     uint32
	CsvDelay             uint16
	MaxAcceptedHTLCs     uint16
	FundingKey           *btcec.PublicKey
	RevocationPoint      *btcec.PublicKey
	PaymentPoint         *btcec.PublicKey
	DelayedPaymentPoint  *btcec.PublicKey
	HtlcPoint            *btcec.PublicKey
	FirstCommitmentPoint *btcec.PublicKey
	ChannelFlags         FundingFlag

	// ChannelType optionally pins the commitment format for this
	// channel; absent means the legacy default applies.
	ChannelType *ChannelType

	ExtraData ExtraOpaqueData
}

// Decode deserializes an OpenChannel message from r.
func (msg *OpenChannel) Decode(r io.Reader) error {
	if err := ReadElements(r,
		&msg.ChainHash,
		&msg.PendingChannelID,
		&msg.FundingAmount,
		&msg.PushAmount,
		&msg.DustLimit,
		&msg.MaxValueInFlight,
		&msg.ChannelReserve,
		&msg.HtlcMinimum,
		&msg.FeePerKiloWeight,
		&msg.CsvDelay,
		&msg.MaxAcceptedHTLCs,
		&msg.FundingKey,
		&msg.RevocationPoint,
		&msg.PaymentPoint,
		&msg.DelayedPaymentPoint,
		&msg.HtlcPoint,
		&msg.FirstCommitmentPoint,
		(*uint8)(&msg.ChannelFlags),
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

// Encode serializes an OpenChannel message into w.
func (msg *OpenChannel) Encode(w *bytes.Buffer) error {
	if msg.ChannelType != nil {
		if err := msg.ExtraData.PackRecords(msg.ChannelType); err != nil {
			return err
		}
	}

	if err := WriteElements(w,
		msg.ChainHash,
		msg.PendingChannelID,
		msg.FundingAmount,
		msg.PushAmount,
		msg.DustLimit,
		msg.MaxValueInFlight,
		msg.ChannelReserve,
		msg.HtlcMinimum,
		msg.FeePerKiloWeight,
		msg.CsvDelay,
		msg.MaxAcceptedHTLCs,
		msg.FundingKey,
		msg.RevocationPoint,
		msg.PaymentPoint,
		msg.DelayedPaymentPoint,
		msg.HtlcPoint,
		msg.FirstCommitmentPoint,
		uint8(msg.ChannelFlags),
	); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *OpenChannel) MsgType() MessageType {
	return MsgOpenChannel
}

var _ tlv.RecordProducer = (*ChannelType)(nil)

package lnwire

import (
	"bytes"
	"testing"

	"github.com/22388o/lightning-kmp/lntypes"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func randPubKey(t *testing.T) *btcec.PublicKey {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

// roundTrip writes msg to the wire and reads it back, asserting that the
// decoded message is identical to the original.
func roundTrip(t *testing.T, msg Message) Message {
	var buf bytes.Buffer
	_, err := WriteMessage(&buf, msg)
	require.NoError(t, err)

	out, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, msg.MsgType(), out.MsgType())

	return out
}

func TestUpdateAddHTLCRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0xaa}, 32))

	msg := &UpdateAddHTLC{
		ChanID:      chanID,
		ID:          7,
		Amount:      MilliSatoshi(42_000_000),
		PaymentHash: lntypes.Hash{1, 2, 3},
		Expiry:      500_000,
	}

	out := roundTrip(t, msg).(*UpdateAddHTLC)
	require.Equal(t, msg.ID, out.ID)
	require.Equal(t, msg.Amount, out.Amount)
	require.Equal(t, msg.PaymentHash, out.PaymentHash)
	require.Equal(t, msg.Expiry, out.Expiry)
}

func TestCommitSigRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0xbb}, 32))

	msg := &CommitSig{
		ChanID:    chanID,
		CommitSig: Sig{1, 2, 3},
		HtlcSigs: []Sig{
			{4, 5, 6},
			{7, 8, 9},
		},
	}

	out := roundTrip(t, msg).(*CommitSig)
	require.Equal(t, msg.CommitSig, out.CommitSig)
	require.Equal(t, msg.HtlcSigs, out.HtlcSigs)
}

func TestOpenChannelRoundTrip(t *testing.T) {
	var (
		chainHash chainhash.Hash
		pending   [32]byte
	)

	msg := &OpenChannel{
		ChainHash:            chainHash,
		PendingChannelID:     pending,
		FundingAmount:        MilliSatoshi(1_000_000_000),
		PushAmount:           0,
		DustLimit:            MilliSatoshi(354_000),
		MaxValueInFlight:     MaxMilliSatoshi,
		ChannelReserve:       MilliSatoshi(10_000_000),
		HtlcMinimum:          MilliSatoshi(1),
		FeePerKiloWeight:     253,
		CsvDelay:             144,
		MaxAcceptedHTLCs:     30,
		FundingKey:           randPubKey(t),
		RevocationPoint:      randPubKey(t),
		PaymentPoint:         randPubKey(t),
		DelayedPaymentPoint:  randPubKey(t),
		HtlcPoint:            randPubKey(t),
		FirstCommitmentPoint: randPubKey(t),
		ChannelFlags:         FFAnnounceChannel,
		ChannelType:          (*ChannelType)(NewRawFeatureVector(12)),
	}

	out := roundTrip(t, msg).(*OpenChannel)
	require.Equal(t, msg.FundingAmount, out.FundingAmount)
	require.Equal(t, msg.ChannelFlags, out.ChannelFlags)
	require.NotNil(t, out.ChannelType)
	require.True(t, (*RawFeatureVector)(out.ChannelType).IsSet(12))
}

func TestInitRoundTrip(t *testing.T) {
	msg := NewInitMessage(
		NewRawFeatureVector(),
		NewRawFeatureVector(0, 5, 17),
	)

	out := roundTrip(t, msg).(*Init)
	require.True(t, out.Features.IsSet(0))
	require.True(t, out.Features.IsSet(5))
	require.True(t, out.Features.IsSet(17))
	require.False(t, out.Features.IsSet(1))
}

func TestAcceptChannelRoundTrip(t *testing.T) {
	var pending [32]byte

	msg := &AcceptChannel{
		PendingChannelID:     pending,
		DustLimit:            MilliSatoshi(354_000),
		MaxValueInFlight:     MaxMilliSatoshi,
		ChannelReserve:       MilliSatoshi(10_000_000),
		HtlcMinimum:          MilliSatoshi(1),
		MinAcceptDepth:       3,
		CsvDelay:             144,
		MaxAcceptedHTLCs:     30,
		FundingKey:           randPubKey(t),
		RevocationPoint:      randPubKey(t),
		PaymentPoint:         randPubKey(t),
		DelayedPaymentPoint:  randPubKey(t),
		HtlcPoint:            randPubKey(t),
		FirstCommitmentPoint: randPubKey(t),
		ChannelType:          (*ChannelType)(NewRawFeatureVector(12)),
	}

	out := roundTrip(t, msg).(*AcceptChannel)
	require.Equal(t, msg.PendingChannelID, out.PendingChannelID)
	require.Equal(t, msg.DustLimit, out.DustLimit)
	require.Equal(t, msg.MinAcceptDepth, out.MinAcceptDepth)
	require.Equal(t, msg.CsvDelay, out.CsvDelay)
	require.True(t, msg.FundingKey.IsEqual(out.FundingKey))
	require.True(t, (*RawFeatureVector)(out.ChannelType).IsSet(12))
}

func TestFundingCreatedRoundTrip(t *testing.T) {
	var (
		pending [32]byte
		txid    chainhash.Hash
	)
	copy(txid[:], bytes.Repeat([]byte{0xcc}, 32))

	msg := &FundingCreated{
		PendingChannelID: pending,
		FundingPoint:     OutPoint{Hash: txid, Index: 1},
		CommitSig:        Sig{1, 2, 3},
	}

	out := roundTrip(t, msg).(*FundingCreated)
	require.Equal(t, msg.PendingChannelID, out.PendingChannelID)
	require.Equal(t, msg.FundingPoint, out.FundingPoint)
	require.Equal(t, msg.CommitSig, out.CommitSig)
}

func TestFundingSignedRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0xdd}, 32))

	msg := &FundingSigned{
		ChanID:    chanID,
		CommitSig: Sig{4, 5, 6},
	}

	out := roundTrip(t, msg).(*FundingSigned)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.Equal(t, msg.CommitSig, out.CommitSig)
}

func TestChannelReadyRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0xee}, 32))

	msg := &ChannelReady{
		ChanID:                 chanID,
		NextPerCommitmentPoint: randPubKey(t),
	}

	out := roundTrip(t, msg).(*ChannelReady)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.True(t, msg.NextPerCommitmentPoint.IsEqual(out.NextPerCommitmentPoint))
}

func TestShutdownRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0xff}, 32))

	msg := NewShutdown(chanID, PkScript(bytes.Repeat([]byte{0x01}, 22)))

	out := roundTrip(t, msg).(*Shutdown)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.Equal(t, msg.Address, out.Address)
}

func TestClosingSignedRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0x11}, 32))

	msg := &ClosingSigned{
		ChanID: chanID,
		FeeSat: 5_000,
		Sig:    Sig{9, 8, 7},
	}

	out := roundTrip(t, msg).(*ClosingSigned)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.Equal(t, msg.FeeSat, out.FeeSat)
	require.Equal(t, msg.Sig, out.Sig)
}

func TestUpdateFulfillHTLCRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0x22}, 32))

	msg := &UpdateFulfillHTLC{
		ChanID:          chanID,
		ID:              11,
		PaymentPreimage: lntypes.Preimage{9, 9, 9},
	}

	out := roundTrip(t, msg).(*UpdateFulfillHTLC)
	require.Equal(t, msg.ID, out.ID)
	require.Equal(t, msg.PaymentPreimage, out.PaymentPreimage)
}

func TestUpdateFailHTLCRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0x33}, 32))

	msg := &UpdateFailHTLC{
		ChanID: chanID,
		ID:     12,
		Reason: []byte("onion encrypted failure blob"),
	}

	out := roundTrip(t, msg).(*UpdateFailHTLC)
	require.Equal(t, msg.ID, out.ID)
	require.Equal(t, msg.Reason, out.Reason)
}

func TestUpdateFailMalformedHTLCRoundTrip(t *testing.T) {
	var (
		chanID  ChannelID
		shaBlob [32]byte
	)
	copy(chanID[:], bytes.Repeat([]byte{0x44}, 32))
	copy(shaBlob[:], bytes.Repeat([]byte{0x55}, 32))

	msg := &UpdateFailMalformedHTLC{
		ChanID:       chanID,
		ID:           13,
		ShaOnionBlob: shaBlob,
		FailureCode:  0x8001,
	}

	out := roundTrip(t, msg).(*UpdateFailMalformedHTLC)
	require.Equal(t, msg.ID, out.ID)
	require.Equal(t, msg.ShaOnionBlob, out.ShaOnionBlob)
	require.Equal(t, msg.FailureCode, out.FailureCode)
}

func TestRevokeAndAckRoundTrip(t *testing.T) {
	var (
		chanID     ChannelID
		revocation [32]byte
	)
	copy(chanID[:], bytes.Repeat([]byte{0x66}, 32))
	copy(revocation[:], bytes.Repeat([]byte{0x77}, 32))

	msg := &RevokeAndAck{
		ChanID:            chanID,
		Revocation:        revocation,
		NextRevocationKey: randPubKey(t),
	}

	out := roundTrip(t, msg).(*RevokeAndAck)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.Equal(t, msg.Revocation, out.Revocation)
	require.True(t, msg.NextRevocationKey.IsEqual(out.NextRevocationKey))
}

func TestUpdateFeeRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0x88}, 32))

	msg := &UpdateFee{
		ChanID:   chanID,
		FeePerKw: 253,
	}

	out := roundTrip(t, msg).(*UpdateFee)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.Equal(t, msg.FeePerKw, out.FeePerKw)
}

func TestChannelReestablishRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0x99}, 32))

	msg := &ChannelReestablish{
		ChanID:                 chanID,
		NextLocalCommitHeight:  7,
		RemoteCommitTailHeight: 6,
	}

	out := roundTrip(t, msg).(*ChannelReestablish)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.Equal(t, msg.NextLocalCommitHeight, out.NextLocalCommitHeight)
	require.Equal(t, msg.RemoteCommitTailHeight, out.RemoteCommitTailHeight)
}

func TestPingRoundTrip(t *testing.T) {
	msg := NewPing(32)
	msg.PaddingBytes = bytes.Repeat([]byte{0x00}, 32)

	out := roundTrip(t, msg).(*Ping)
	require.Equal(t, msg.NumPongBytes, out.NumPongBytes)
	require.Equal(t, msg.PaddingBytes, out.PaddingBytes)
}

func TestPongRoundTrip(t *testing.T) {
	msg := NewPong(bytes.Repeat([]byte{0x00}, 16))

	out := roundTrip(t, msg).(*Pong)
	require.Equal(t, msg.PaddingBytes, out.PaddingBytes)
}

func TestErrorRoundTrip(t *testing.T) {
	var chanID ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0xaa}, 32))

	msg := NewError(chanID, []byte("unknown channel"))

	out := roundTrip(t, msg).(*Error)
	require.Equal(t, msg.ChanID, out.ChanID)
	require.Equal(t, msg.Data, out.Data)
}

func TestUnknownMessageType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteElement(&buf, uint16(9999)))

	_, err := ReadMessage(&buf)
	require.Error(t, err)

	var unknown *UnknownMessage
	require.ErrorAs(t, err, &unknown)
}

package channelfsm

import (
	"github.com/22388o/lightning-kmp/lnchannel"
	"github.com/22388o/lightning-kmp/lntypes"
	"github.com/22388o/lightning-kmp/lnwire"
)

// Event is the closed set of inputs process advances a channel's State in
// response to. Every concrete type below implements Event; process's
// switch over concrete event types is exhaustive and any other type is a
// programmer error, not a runtime one.
type Event interface {
	eventMarker()
}

// MessageReceived carries a wire message read off the transport for this
// channel.
type MessageReceived struct {
	Msg lnwire.Message
}

func (MessageReceived) eventMarker() {}

// ExecuteCommand carries a host-initiated command: something the local
// caller asked this channel to do, as opposed to something the remote peer
// sent.
type ExecuteCommand struct {
	Cmd HostCommand
}

func (ExecuteCommand) eventMarker() {}

// WatchReceived carries an on-chain event the Watcher collaborator
// delivered for an outpoint this channel registered interest in.
type WatchReceived struct {
	Event WatchEvent
}

func (WatchReceived) eventMarker() {}

// NewBlock notifies the channel of a new chain tip. process has no case
// for NewBlock in any state.
type NewBlock struct {
	Height uint32
}

func (NewBlock) eventMarker() {}

// Connected signals the transport is up and both sides' init messages have
// been exchanged.
type Connected struct {
	LocalInit  *lnwire.Init
	RemoteInit *lnwire.Init
}

func (Connected) eventMarker() {}

// Disconnected signals the transport to the peer has dropped.
type Disconnected struct{}

func (Disconnected) eventMarker() {}

// Restore rehydrates a channel's State from a previously persisted
// snapshot, used when the peer process restarts.
type Restore struct {
	Persisted PersistedState
}

func (Restore) eventMarker() {}

// HostCommand is the fixed set of operations a local caller can request
// against a channel; each maps to the like-named lnchannel operation or to
// a lifecycle action (open, close) lnchannel does not itself model.
type HostCommand interface {
	hostCommandMarker()
}

// CmdInitFunder starts channel opening as the funder.
type CmdInitFunder struct {
	PendingChanID lnwire.ChannelID
	Params        lnchannel.ChannelParams
	FundingAmount lnwire.MilliSatoshi
	PushAmount    lnwire.MilliSatoshi
	FeePerKw      lnchannel.SatPerKWeight
}

func (CmdInitFunder) hostCommandMarker() {}

// CmdAddHTLC requests sending a new HTLC, mirroring lnchannel's SendAdd.
// Height is the current chain tip, used for the CLTV-delta sanity check.
type CmdAddHTLC struct {
	Amount      lnwire.MilliSatoshi
	PaymentHash lntypes.Hash
	Expiry      uint32
	Height      uint32
	Onion       [lnwire.OnionPacketSize]byte
	Origin      lnchannel.Origin
}

func (CmdAddHTLC) hostCommandMarker() {}

// CmdFulfillHTLC requests settling an HTLC this side received, mirroring
// lnchannel's SendFulfill.
type CmdFulfillHTLC struct {
	ID       uint64
	Preimage lntypes.Preimage
}

func (CmdFulfillHTLC) hostCommandMarker() {}

// CmdFailHTLC requests failing an HTLC this side received, mirroring
// lnchannel's SendFail.
type CmdFailHTLC struct {
	ID     uint64
	Reason []byte
}

func (CmdFailHTLC) hostCommandMarker() {}

// CmdUpdateFee requests a commitment feerate update, mirroring
// lnchannel's SendFee. Only meaningful for the funder.
type CmdUpdateFee struct {
	FeePerKw lnchannel.SatPerKWeight
}

func (CmdUpdateFee) hostCommandMarker() {}

// CmdSign requests signing a new commitment for the remote party,
// mirroring lnchannel's SendCommit. Self-issued by process after a
// RevokeAndAck if changes are still pending, and externally issued by a
// caller batching several adds before signing.
type CmdSign struct{}

func (CmdSign) hostCommandMarker() {}

// CmdClose requests a cooperative close, mirroring BOLT #2 shutdown.
type CmdClose struct {
	DeliveryScript lnwire.PkScript
}

func (CmdClose) hostCommandMarker() {}

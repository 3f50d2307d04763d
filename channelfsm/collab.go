package channelfsm

import (
	"context"

	"github.com/22388o/lightning-kmp/keychain"
	"github.com/22388o/lightning-kmp/lnchannel"
	"github.com/22388o/lightning-kmp/lntypes"
	"github.com/22388o/lightning-kmp/lnwire"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Transport is the collaborator contract this package consumes for wire
// I/O. A Machine never reads or writes bytes itself; every MessageReceived
// event arrives already decoded, and every SendMessage action is handed
// back to the driver to encode and flush through a Transport.
type Transport interface {
	// Send writes msg to the peer, flushing immediately if flush is
	// true.
	Send(ctx context.Context, msg lnwire.Message, flush bool) error

	// Close tears down the underlying connection.
	Close() error
}

// KeyManager is the signing collaborator channelfsm relies on, widening
// lnchannel.KeyManager with the funding-time operations the state machine
// needs before a Commitments value exists: this side's funding key, the
// transport's ECDH key, and building the funding output.
type KeyManager interface {
	lnchannel.KeyManager

	// FundingPubKey returns this channel's contribution to the 2-of-2
	// funding multisig script.
	FundingPubKey() (*btcec.PublicKey, error)

	// SingleKeyECDH returns the ECDH collaborator used to authenticate
	// the transport this channel is negotiated over, satisfying
	// SPEC_FULL §6's note that KeyManager is satisfied in spirit by
	// keychain.SingleKeyECDH.
	SingleKeyECDH() keychain.SingleKeyECDH

	// BuildFundingOutput constructs (but does not broadcast) the
	// funding transaction paying amount into the 2-of-2 multisig output
	// both sides' FundingPubKey derive, returning its outpoint. Assembly
	// of the transaction itself, change outputs, and coin selection are
	// the collaborator's job; this core only needs the resulting
	// outpoint to seed the initial commitment.
	BuildFundingOutput(amount lnwire.MilliSatoshi) (lnwire.OutPoint, error)
}

// Signer is adapted from keychain/signer.go's digest-signing pattern,
// narrowed to what channelfsm needs to authorize spending the funding
// output on a cooperative or forced close.
type Signer interface {
	PubKey() *btcec.PublicKey
	SignDigest(digest [32]byte) (*btcec.Signature, error)
}

// WatchEvent is the closed set of on-chain events the Watcher collaborator
// delivers.
type WatchEvent interface {
	watchEventMarker()
}

// WatchEventConfirmed reports that the watched outpoint's containing
// transaction reached its required confirmation depth.
type WatchEventConfirmed struct {
	Outpoint    lnwire.OutPoint
	BlockHeight uint32
}

func (WatchEventConfirmed) watchEventMarker() {}

// WatchEventSpent reports that the watched outpoint has been spent,
// whether by a cooperative close, a unilateral close, or (unexpectedly) a
// breach.
type WatchEventSpent struct {
	Outpoint   lnwire.OutPoint
	SpendingTx chainhash.Hash
}

func (WatchEventSpent) watchEventMarker() {}

// Watcher is the collaborator contract for on-chain awareness: it watches
// one outpoint at a time and reports confirmation or spend.
type Watcher interface {
	Watch(ctx context.Context, outpoint lnwire.OutPoint) (<-chan WatchEvent, error)
}

// PersistedState is the subset of a channel's State durable storage needs
// to recover across a restart: everything process needs to resume driving
// the channel, stripped of in-flight handles (watch subscriptions,
// transport sessions) that the driver re-establishes on restore.
type PersistedState struct {
	ChannelID   lnwire.ChannelID
	Kind        StateKind
	Commitments lnchannel.Commitments
	Funding     *fundingState
}

// ChannelsDb is the collaborator contract for channel persistence.
type ChannelsDb interface {
	AddOrUpdateChannel(PersistedState) error
	ListLocalChannels() ([]PersistedState, error)
	RemoveChannel(lnwire.ChannelID) error
}

// Action is the closed set of side effects process asks its driver to
// perform. process itself never performs I/O; it only describes what
// should happen.
type Action interface {
	actionMarker()
}

// SendMessage asks the driver to write Msg to the peer.
type SendMessage struct {
	Msg   lnwire.Message
	Flush bool
}

func (SendMessage) actionMarker() {}

// SendWatch asks the driver to register Outpoint with the Watcher
// collaborator.
type SendWatch struct {
	Outpoint lnwire.OutPoint
}

func (SendWatch) actionMarker() {}

// PublishTx asks the driver to broadcast the commitment transaction
// identified by CommitTxID. Transaction assembly is the KeyManager
// collaborator's job; this action only carries the intent and the
// identifying txid, consistent with lnchannel's choice to leave
// transaction construction out of this core.
type PublishTx struct {
	CommitTxID chainhash.Hash
	Reason     string
}

func (PublishTx) actionMarker() {}

// StoreState asks the driver to persist Persisted via the ChannelsDb
// collaborator before proceeding; per spec.md §7, the caller must not
// advance past a StoreState action until the collaborator acknowledges.
type StoreState struct {
	Persisted PersistedState
}

func (StoreState) actionMarker() {}

// ForgetChannel asks the driver to remove the channel from the ChannelsDb
// collaborator, issued once Closed is reached.
type ForgetChannel struct {
	ChannelID lnwire.ChannelID
}

func (ForgetChannel) actionMarker() {}

// ProcessCommand re-enters the event loop with Cmd, used for self-reentry
// (e.g. CmdSign issued automatically after a RevokeAndAck leaves changes
// still pending).
type ProcessCommand struct {
	Cmd HostCommand
}

func (ProcessCommand) actionMarker() {}

// ChannelIDSwitch asks the driver to re-key this channel's entry (in any
// external index keyed by channel id) from Old to New, issued once when
// the temporary channel id used during funding is replaced by the final
// funding-derived id.
type ChannelIDSwitch struct {
	Old, New lnwire.ChannelID
}

func (ChannelIDSwitch) actionMarker() {}

// ProcessAdd asks the driver to deliver a newly committed incoming HTLC
// upstream (to a switch, invoice subsystem, or equivalent).
type ProcessAdd struct {
	Add *lnwire.UpdateAddHTLC
}

func (ProcessAdd) actionMarker() {}

// ProcessFulfill asks the driver to deliver a settled HTLC's preimage
// upstream to whichever origin this channel recorded when the HTLC was
// added.
type ProcessFulfill struct {
	Origin   lnchannel.Origin
	Preimage lntypes.Preimage
}

func (ProcessFulfill) actionMarker() {}

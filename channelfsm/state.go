package channelfsm

import (
	"github.com/22388o/lightning-kmp/lnchannel"
	"github.com/22388o/lightning-kmp/lnwire"
	"github.com/btcsuite/btcd/btcec/v2"
)

// StateKind tags which variant of State a value holds. State is a
// tagged-variant type: Kind says which of the fields below are live, the
// same way lnwire.MessageType tags which concrete Message a decoded
// payload is.
type StateKind uint8

const (
	// WaitForInit is the initial state of every channel, before any
	// funding message has been sent or received.
	WaitForInit StateKind = iota

	// WaitForAcceptChannel is the funder's state after sending
	// open_channel, awaiting accept_channel.
	WaitForAcceptChannel

	// WaitForFundingCreated is the fundee's state after sending
	// accept_channel, awaiting funding_created.
	WaitForFundingCreated

	// WaitForFundingSigned is the funder's state after sending
	// funding_created, awaiting funding_signed.
	WaitForFundingSigned

	// WaitForFundingLocked is both sides' state once an initial signed
	// commitment exists, awaiting the funding transaction's
	// confirmation and the peer's channel_ready.
	WaitForFundingLocked

	// Normal is steady-state channel operation: HTLCs may be added,
	// settled, failed, and the commitment feerate updated.
	Normal

	// Shutdown is entered once either side has sent or received
	// shutdown, no new HTLCs may be added from here on.
	Shutdown

	// Negotiating is the closing-fee negotiation phase following
	// Shutdown, once no HTLCs remain outstanding.
	Negotiating

	// Closing is entered once a closing transaction (cooperative or
	// unilateral) has been published but not yet confirmed.
	Closing

	// ErrorInformationLeak names the protocol-violation state. process
	// never enters it: a protocol violation moves the channel straight
	// to Closing.
	ErrorInformationLeak

	// Closed is terminal: the channel's close transaction has
	// confirmed.
	Closed

	// Offline wraps whichever state the channel was in when the
	// transport disconnected. Prior holds that state; every other
	// field is unused while Kind is Offline.
	Offline
)

// String returns the human-readable name of a StateKind.
func (k StateKind) String() string {
	switch k {
	case WaitForInit:
		return "WaitForInit"
	case WaitForAcceptChannel:
		return "WaitForAcceptChannel"
	case WaitForFundingCreated:
		return "WaitForFundingCreated"
	case WaitForFundingSigned:
		return "WaitForFundingSigned"
	case WaitForFundingLocked:
		return "WaitForFundingLocked"
	case Normal:
		return "Normal"
	case Shutdown:
		return "Shutdown"
	case Negotiating:
		return "Negotiating"
	case Closing:
		return "Closing"
	case ErrorInformationLeak:
		return "ErrorInformationLeak"
	case Closed:
		return "Closed"
	case Offline:
		return "Offline"
	default:
		return "<unknown>"
	}
}

// fundingState holds the negotiation state collected while opening a
// channel, live from WaitForAcceptChannel through WaitForFundingLocked.
type fundingState struct {
	Params        lnchannel.ChannelParams
	RemoteParams  lnchannel.ChannelParams
	FundingAmount lnwire.MilliSatoshi
	PushAmount    lnwire.MilliSatoshi
	FeePerKw      lnchannel.SatPerKWeight
	IsFunder      bool

	FundingOutpoint lnwire.OutPoint

	// RemoteFirstPoint is the remote party's first per-commitment
	// point, learned from open_channel/accept_channel.
	RemoteFirstPoint *btcec.PublicKey

	// WeConfirmed is set once our own watch on the funding outpoint
	// reports the required confirmation depth.
	WeConfirmed bool

	// PeerReady is set once the remote party's channel_ready arrives.
	PeerReady bool

	// PeerNextPoint is the per-commitment point carried by the peer's
	// channel_ready, to seed RemoteNextCommitInfo once Normal begins.
	PeerNextPoint *btcec.PublicKey
}

// shutdownState holds the cooperative-close negotiation collected from
// Shutdown through Negotiating.
type shutdownState struct {
	LocalScript    lnwire.PkScript
	RemoteScript   lnwire.PkScript
	WeSent         bool
	PeerSent       bool
	LastFeeOffered uint64
}

// State is the full tagged-variant state of one channel's lifecycle.
// process takes a State by value and returns a new one. Funding, Closing
// and Prior are pointers, and process updates the Funding and Closing
// records in place, so the State passed in sees those updates too.
type State struct {
	Kind StateKind

	// ChannelID is the temporary (pre-funding) or final
	// (funding-txid-derived) channel id this state is keyed by.
	ChannelID lnwire.ChannelID

	// Commitments is live from WaitForFundingLocked onward.
	Commitments lnchannel.Commitments

	// Funding is live from WaitForAcceptChannel through
	// WaitForFundingLocked.
	Funding *fundingState

	// Closing is live from Shutdown through Negotiating.
	Closing *shutdownState

	// Prior is the state Offline wraps.
	Prior *State
}

// initial returns the State every new channel starts from.
func initial(chanID lnwire.ChannelID) State {
	return State{Kind: WaitForInit, ChannelID: chanID}
}

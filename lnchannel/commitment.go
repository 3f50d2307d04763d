package lnchannel

import (
	"github.com/22388o/lightning-kmp/lnwire"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ChannelParams holds the static, per-side parameters negotiated during
// channel opening. Both LocalParams and RemoteParams are instances of this
// same shape.
type ChannelParams struct {
	// DustLimit is the smallest output value this side will accept on
	// its own commitment transaction.
	DustLimit lnwire.MilliSatoshi

	// MaxHTLCValueInFlight is the maximum aggregate msat value this
	// side will allow in outstanding HTLCs at once.
	MaxHTLCValueInFlight lnwire.MilliSatoshi

	// ChannelReserve is the minimum balance, in msat, this side must
	// always keep on its own commitment.
	ChannelReserve lnwire.MilliSatoshi

	// HtlcMinimum is the smallest HTLC amount, in msat, this side will
	// accept.
	HtlcMinimum lnwire.MilliSatoshi

	// ToSelfDelay is the number of blocks this side's to-local output
	// must be delayed by on a unilateral close.
	ToSelfDelay uint16

	// MaxAcceptedHtlcs bounds the number of HTLCs this side will have
	// outstanding on its own commitment at once.
	MaxAcceptedHtlcs uint16

	// IsFunder is true if this side originated the channel and
	// therefore pays on-chain fees.
	IsFunder bool

	// FundingPubKey is this side's key in the 2-of-2 funding multisig
	// script.
	FundingPubKey *btcec.PublicKey

	// RevocationBasePoint, PaymentBasePoint, DelayedPaymentBasePoint,
	// and HtlcBasePoint are the four per-commitment-derived base points
	// this side contributes to every commitment transaction's output
	// scripts.
	RevocationBasePoint     *btcec.PublicKey
	PaymentBasePoint        *btcec.PublicKey
	DelayedPaymentBasePoint *btcec.PublicKey
	HtlcBasePoint           *btcec.PublicKey
}

// Htlc is a single HTLC carried by a CommitmentSpec, as seen from the
// point of view of the commitment's owner.
type Htlc struct {
	// Incoming is true if this HTLC was offered by the counterparty
	// (and thus this side may settle it by revealing a preimage).
	Incoming bool

	// Add is the original offer that created this HTLC.
	Add *lnwire.UpdateAddHTLC
}

// CommitmentSpec is a snapshot of one commitment transaction's economic
// content: which HTLCs it pays out, at what feerate, and the resulting
// balances. Balances are always non-negative and their sum, plus the sum
// of in-flight HTLC amounts, equals the channel capacity.
type CommitmentSpec struct {
	// Htlcs is the set of HTLCs this commitment pays out.
	Htlcs []Htlc

	// FeePerKw is the feerate this commitment transaction pays.
	FeePerKw SatPerKWeight

	// ToLocalMsat is the owner's balance on this commitment.
	ToLocalMsat lnwire.MilliSatoshi

	// ToRemoteMsat is the counterparty's balance on this commitment.
	ToRemoteMsat lnwire.MilliSatoshi
}

// htlcCount returns the number of HTLCs of the given direction carried by
// the spec, used by the max-accepted-htlcs checks.
func (s *CommitmentSpec) htlcCount(incoming bool) int {
	n := 0
	for _, h := range s.Htlcs {
		if h.Incoming == incoming {
			n++
		}
	}

	return n
}

// totalHtlcValue sums the msat amount of every HTLC in the spec.
func (s *CommitmentSpec) totalHtlcValue() lnwire.MilliSatoshi {
	var total lnwire.MilliSatoshi
	for _, h := range s.Htlcs {
		total += h.Add.Amount
	}

	return total
}

// LocalCommit is the commitment transaction the local party holds: it can
// broadcast this unilaterally, so it is signed by the remote party for
// local's HTLC outputs, and by local itself for the 2-of-2 multisig input.
type LocalCommit struct {
	// Index is this commitment's height in the local commitment chain,
	// starting at 0.
	Index uint64

	// Spec is the economic content of this commitment.
	Spec CommitmentSpec

	// CommitTx identifies the signed commitment transaction (by txid)
	// this commitment corresponds to.
	CommitTx chainhash.Hash

	// CommitSig is the counterparty's signature over CommitTx.
	CommitSig lnwire.Sig

	// HtlcSigs are the counterparty's signatures over each HTLC output
	// of CommitTx, in CLTV-expiry-then-payment-hash order.
	HtlcSigs []lnwire.Sig
}

// RemoteCommit is the commitment transaction the remote party holds.
// Local never sees its own signature on this transaction as a distinct
// value; only the fact that it produced one.
type RemoteCommit struct {
	// Index is this commitment's height in the remote commitment chain.
	Index uint64

	// Spec is the economic content of this commitment, as seen from
	// the remote party's point of view (Incoming is reversed relative
	// to LocalCommit.Spec).
	Spec CommitmentSpec

	// CommitTx identifies the remote commitment transaction by txid.
	CommitTx chainhash.Hash

	// RemotePerCommitmentPoint is the per-commitment point the remote
	// party used to derive this commitment's output scripts.
	RemotePerCommitmentPoint *btcec.PublicKey
}

// RemoteCommitInfo tracks what the local side knows about the next
// commitment it will ask the remote party to accept. Exactly one of
// Pending or Point is meaningful at a time: before SendCommit, Point
// holds the per-commitment point to build the next remote commitment
// with; after SendCommit and before the matching RevokeAndAck, Pending
// holds the RemoteCommit awaiting revocation.
type RemoteCommitInfo struct {
	Pending *RemoteCommit
	Point   *btcec.PublicKey
}

// pendingChange is one protocol message proposed by one side, tracked
// against both commitment chains independently: committedLocal is set
// once the change has been folded into LocalCommit.Spec (by
// ReceiveCommit); committedRemote is set once it has been folded into
// RemoteCommit.Spec (by ReceiveRevocation, mirroring when SendCommit's
// pending commitment is actually confirmed). A change is only safe to
// drop from the log once both are set -- exactly the two-height
// bookkeeping a mutable update log would use, applied to an immutable
// per-change record instead.
type pendingChange struct {
	msg             lnwire.Message
	committedLocal  bool
	committedRemote bool

	// pendingRemote is set once this change has been folded into a
	// sent-but-unrevoked remote commitment (by SendCommit) and cleared
	// once that commitment is revoked (by ReceiveRevocation, which at
	// that point also sets committedRemote). It lets SendCommit's
	// CannotSignWithoutChanges check tell a genuinely new change apart
	// from one already riding an outstanding, unrevoked commitment.
	pendingRemote bool
}

// HtlcChanges tracks one side's pending protocol messages: every change
// that side has proposed (Add, Fulfill, Fail, FailMalformed, or
// FeeUpdate) that has not yet been folded into both commitment chains
// and garbage collected.
type HtlcChanges struct {
	pending []pendingChange
}

// proposed returns the underlying wire messages not yet folded into the
// chain identified by local (true selects LocalCommit, false selects
// RemoteCommit).
func (c HtlcChanges) proposed(local bool) []lnwire.Message {
	out := make([]lnwire.Message, 0, len(c.pending))
	for _, p := range c.pending {
		committed := p.committedRemote
		if local {
			committed = p.committedLocal
		}
		if !committed {
			out = append(out, p.msg)
		}
	}

	return out
}

// append adds a freshly proposed change, uncommitted on either chain.
func (c HtlcChanges) append(msg lnwire.Message) HtlcChanges {
	next := HtlcChanges{pending: append([]pendingChange{}, c.pending...)}
	next.pending = append(next.pending, pendingChange{msg: msg})

	return next
}

// markCommitted flags every currently-uncommitted change as committed
// against the chain identified by local, then drops any change that is
// now committed against both chains.
func (c HtlcChanges) markCommitted(local bool) HtlcChanges {
	next := HtlcChanges{pending: make([]pendingChange, 0, len(c.pending))}

	for _, p := range c.pending {
		if local {
			p.committedLocal = true
		} else {
			p.committedRemote = true
		}

		if p.committedLocal && p.committedRemote {
			continue
		}

		next.pending = append(next.pending, p)
	}

	return next
}

// markPendingRemote flags every currently remote-uncommitted change as
// riding the commitment SendCommit is about to produce.
func (c HtlcChanges) markPendingRemote() HtlcChanges {
	next := HtlcChanges{pending: append([]pendingChange{}, c.pending...)}
	for i, p := range next.pending {
		if !p.committedRemote {
			p.pendingRemote = true
			next.pending[i] = p
		}
	}

	return next
}

// confirmPendingRemote promotes every change flagged pendingRemote to
// committedRemote, called once ReceiveRevocation confirms the
// commitment that carried them, then garbage collects any change now
// committed on both chains.
func (c HtlcChanges) confirmPendingRemote() HtlcChanges {
	next := HtlcChanges{pending: make([]pendingChange, 0, len(c.pending))}

	for _, p := range c.pending {
		if p.pendingRemote {
			p.pendingRemote = false
			p.committedRemote = true
		}

		if p.committedLocal && p.committedRemote {
			continue
		}

		next.pending = append(next.pending, p)
	}

	return next
}

// hasFreshRemote reports whether any change in this side's log has never
// ridden a sent commitment, i.e. is neither committedRemote nor already
// pendingRemote on an outstanding, unrevoked one.
func (c HtlcChanges) hasFreshRemote() bool {
	for _, p := range c.pending {
		if !p.committedRemote && !p.pendingRemote {
			return true
		}
	}

	return false
}

// all returns every change this side has ever proposed that has not yet
// been garbage collected, regardless of commit status.
func (c HtlcChanges) all() []lnwire.Message {
	out := make([]lnwire.Message, len(c.pending))
	for i, p := range c.pending {
		out[i] = p.msg
	}

	return out
}

// CommitInput identifies the funding transaction output the commitment
// transaction's single input spends.
type CommitInput struct {
	OutPoint lnwire.OutPoint
	Amount   lnwire.MilliSatoshi
}

// Origin records where a locally-added HTLC originated, so that a
// downstream failure or fulfillment can be routed back upstream. This
// core only stores the origin; routing it anywhere is a collaborator's
// job.
type Origin struct {
	ChanID lnwire.ChannelID
	HtlcID uint64
}

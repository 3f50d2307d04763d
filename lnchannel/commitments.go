package lnchannel

import (
	"errors"

	"github.com/22388o/lightning-kmp/lntypes"
	"github.com/22388o/lightning-kmp/lnwire"
	"github.com/22388o/lightning-kmp/shachain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// commitFeeDelta is the extra per-HTLC fee margin, expressed in units of
// one hypothetical HTLC's commit-tx fee, that a funder must additionally
// reserve on top of the fee for the commitment as it stands. It implements
// the "2x" multiplier of spec.md §4.3.1 step 3.
const commitFeeDelta = 2

// KeyManager is the signing collaborator a Commitments' SendCommit and
// ReceiveCommit rely on. It is deliberately narrow: this package models
// the commitment-update protocol as a pure data transformation and leaves
// transaction construction, output scripts, and key derivation to the
// collaborator that implements this interface.
type KeyManager interface {
	// NextPerCommitmentPoint returns the per-commitment point the local
	// side will use for the commitment at localCommitIndex+1, to be
	// handed to the remote party in the next RevokeAndAck.
	NextPerCommitmentPoint(localCommitIndex uint64) (*btcec.PublicKey, error)

	// RevokePerCommitmentSecret returns the per-commitment secret for
	// the local commitment at index, so it can be published to revoke
	// that commitment.
	RevokePerCommitmentSecret(index uint64) (*chainhash.Hash, error)

	// CommitTxID deterministically derives the transaction id of the
	// commitment transaction paying out spec, built against the given
	// funding input and keyed to remotePerCommitmentPoint.
	CommitTxID(input CommitInput, spec CommitmentSpec,
		remotePerCommitmentPoint *btcec.PublicKey) (chainhash.Hash, error)

	// SignCommitment signs the remote party's next commitment
	// transaction (txid) plus every one of its HTLC outputs, returning
	// the commitment signature and one HTLC signature per dust-trimmed
	// HTLC, in CLTV-expiry-then-payment-hash order.
	SignCommitment(txid chainhash.Hash, spec CommitmentSpec) (lnwire.Sig, []lnwire.Sig, error)

	// VerifyCommitmentSig verifies a signature the remote party sent
	// over the local party's next commitment transaction (txid) and
	// its HTLC outputs. If an HTLC signature specifically fails to
	// verify, the returned error must wrap ErrInvalidHtlcSig so
	// ReceiveCommit can tell it apart from a failure of the
	// commitment signature itself.
	VerifyCommitmentSig(txid chainhash.Hash, spec CommitmentSpec,
		sig lnwire.Sig, htlcSigs []lnwire.Sig) error
}

// Commitments is the full, pure-functional state of one side of a
// channel's commitment protocol. Every operation in this file takes a
// Commitments by value and returns a new one; the receiver never mutates
// the value it was called on.
type Commitments struct {
	ChannelID lnwire.ChannelID

	LocalParams  ChannelParams
	RemoteParams ChannelParams

	LocalCommit  LocalCommit
	RemoteCommit RemoteCommit

	LocalChanges  HtlcChanges
	RemoteChanges HtlcChanges

	LocalNextHtlcID  uint64
	RemoteNextHtlcID uint64

	// OriginMap maps a locally-assigned HTLC id to the upstream origin
	// it was relayed from, for HTLCs this side offered.
	OriginMap map[uint64]Origin

	RemoteNextCommitInfo RemoteCommitInfo

	CommitInput CommitInput

	// RemotePerCommitmentSecrets stores the per-commitment secrets the
	// remote party has revealed, indexed by commitment height, so they
	// can be looked up again in O(log N) space. Stored by value: a
	// shachain.RevocationStore is a fixed-size struct, so copying a
	// Commitments value copies this chain too.
	RemotePerCommitmentSecrets shachain.RevocationStore
}

// clone returns a copy of c whose OriginMap is independent of c's. The
// change logs and HTLC slices are not copied here: the HtlcChanges
// methods and reduce build fresh slices instead of modifying them.
func (c Commitments) clone() Commitments {
	c.OriginMap = cloneOriginMap(c.OriginMap)
	return c
}

func cloneOriginMap(m map[uint64]Origin) map[uint64]Origin {
	out := make(map[uint64]Origin, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// changeSet pairs an ordered list of pending protocol changes with the
// direction they flow relative to the spec being reduced: incoming is
// true when the changes were proposed by the party opposite the spec's
// owner.
type changeSet struct {
	msgs     []lnwire.Message
	incoming bool
}

// reduce replays an ordered sequence of changeSets onto base, returning
// the resulting CommitmentSpec. Adds insert a new Htlc and debit the
// offering side's balance; Fulfill/Fail/MalformedFail remove the Htlc
// they resolve (identified by id, within the *opposite* incoming
// direction of the set that carries the resolving message) and credit
// whichever side the outcome favors; FeeUpdate replaces FeePerKw.
func reduce(base CommitmentSpec, sets ...changeSet) CommitmentSpec {
	spec := base
	spec.Htlcs = append([]Htlc{}, base.Htlcs...)

	findAndRemove := func(incoming bool, id uint64) (Htlc, bool) {
		for i, h := range spec.Htlcs {
			if h.Incoming == incoming && h.Add.ID == id {
				htlc := h
				spec.Htlcs = append(spec.Htlcs[:i], spec.Htlcs[i+1:]...)
				return htlc, true
			}
		}

		return Htlc{}, false
	}

	for _, set := range sets {
		for _, msg := range set.msgs {
			switch m := msg.(type) {
			case *lnwire.UpdateAddHTLC:
				htlc := Htlc{Incoming: set.incoming, Add: m}
				spec.Htlcs = append(spec.Htlcs, htlc)

				if set.incoming {
					spec.ToRemoteMsat -= m.Amount
				} else {
					spec.ToLocalMsat -= m.Amount
				}

			case *lnwire.UpdateFulfillHTLC:
				htlc, ok := findAndRemove(!set.incoming, m.ID)
				if !ok {
					continue
				}

				if htlc.Incoming {
					spec.ToLocalMsat += htlc.Add.Amount
				} else {
					spec.ToRemoteMsat += htlc.Add.Amount
				}

			case *lnwire.UpdateFailHTLC:
				htlc, ok := findAndRemove(!set.incoming, m.ID)
				if !ok {
					continue
				}

				if htlc.Incoming {
					spec.ToRemoteMsat += htlc.Add.Amount
				} else {
					spec.ToLocalMsat += htlc.Add.Amount
				}

			case *lnwire.UpdateFailMalformedHTLC:
				htlc, ok := findAndRemove(!set.incoming, m.ID)
				if !ok {
					continue
				}

				if htlc.Incoming {
					spec.ToRemoteMsat += htlc.Add.Amount
				} else {
					spec.ToLocalMsat += htlc.Add.Amount
				}

			case *lnwire.UpdateFee:
				spec.FeePerKw = SatPerKWeight(m.FeePerKw)
			}
		}
	}

	return spec
}

// nextLocalSpec computes the CommitmentSpec the local side's next
// commitment would carry if the remote signed it right now: every
// change from either side that has not yet been folded into
// LocalCommit, regardless of which side proposed it or how far along it
// is toward being folded into RemoteCommit.
func (c *Commitments) nextLocalSpec() CommitmentSpec {
	return reduce(c.LocalCommit.Spec,
		changeSet{c.RemoteChanges.proposed(true), true},
		changeSet{c.LocalChanges.proposed(true), false},
	)
}

// nextRemoteSpec computes the CommitmentSpec the remote side's next
// commitment would carry if local signed it right now: every change
// from either side that has not yet been folded into RemoteCommit.
func (c *Commitments) nextRemoteSpec() CommitmentSpec {
	return reduce(c.RemoteCommit.Spec,
		changeSet{c.LocalChanges.proposed(false), true},
		changeSet{c.RemoteChanges.proposed(false), false},
	)
}

// availableBalanceForSend returns how many msat the local side could
// still add to a new outgoing HTLC without violating the channel reserve
// the remote side imposes, the remote side's max-value-in-flight limit,
// or -- if local is the funder -- the commit-tx fee for one more HTLC
// plus the extra fee reserve. It does not apply the dust limit, and the
// max-HTLCs-in-flight count is checked by SendAdd instead.
func (c *Commitments) availableBalanceForSend() lnwire.MilliSatoshi {
	spec := c.nextLocalSpec()

	available := spec.ToLocalMsat

	if c.LocalParams.IsFunder {
		fee := commitTxFee(spec.FeePerKw, len(spec.Htlcs), true)
		reserve := lnwire.MilliSatoshi(commitFeeDelta) * fee

		if available < fee+reserve {
			return 0
		}
		available -= fee + reserve
	}

	if available < c.RemoteParams.ChannelReserve {
		return 0
	}
	available -= c.RemoteParams.ChannelReserve

	if spec.totalHtlcValue()+available > c.RemoteParams.MaxHTLCValueInFlight {
		available = c.RemoteParams.MaxHTLCValueInFlight - spec.totalHtlcValue()
	}

	return available
}

// availableBalanceForReceive is the receive-side mirror of
// availableBalanceForSend: how many msat the remote side could still add
// to a new incoming HTLC.
func (c *Commitments) availableBalanceForReceive() lnwire.MilliSatoshi {
	spec := c.nextRemoteSpec()

	available := spec.ToLocalMsat

	if c.RemoteParams.IsFunder {
		fee := commitTxFee(spec.FeePerKw, len(spec.Htlcs), true)
		reserve := lnwire.MilliSatoshi(commitFeeDelta) * fee

		if available < fee+reserve {
			return 0
		}
		available -= fee + reserve
	}

	if available < c.LocalParams.ChannelReserve {
		return 0
	}
	available -= c.LocalParams.ChannelReserve

	if spec.totalHtlcValue()+available > c.LocalParams.MaxHTLCValueInFlight {
		available = c.LocalParams.MaxHTLCValueInFlight - spec.totalHtlcValue()
	}

	return available
}

// SendAdd proposes a new outgoing HTLC. origin records where the payment
// came from, for later upstream routing; height is the current block
// height, used to sanity-check expiry.
func (c Commitments) SendAdd(amount lnwire.MilliSatoshi, paymentHash lntypes.Hash,
	expiry, height uint32, origin Origin) (Commitments, *lnwire.UpdateAddHTLC, error) {

	if amount < c.RemoteParams.HtlcMinimum {
		return c, nil, newValidationErr(HtlcValueTooSmall,
			"%v msat below remote htlc minimum %v msat",
			amount, c.RemoteParams.HtlcMinimum)
	}

	if expiry > height+maxExpiryDelta {
		return c, nil, newValidationErr(ExpiryTooBig,
			"expiry %v exceeds max delta from height %v", expiry, height)
	}

	if next := c.nextLocalSpec(); next.htlcCount(false)+1 > int(c.RemoteParams.MaxAcceptedHtlcs) {
		return c, nil, newValidationErr(TooManyAcceptedHtlcs,
			"adding this htlc would exceed remote's max accepted htlcs of %v",
			c.RemoteParams.MaxAcceptedHtlcs)
	}

	if c.availableBalanceForSend() < amount {
		return c, nil, newValidationErr(InsufficientFunds,
			"cannot send %v msat, only %v available",
			amount, c.availableBalanceForSend())
	}

	add := &lnwire.UpdateAddHTLC{
		ChanID:      c.ChannelID,
		ID:          c.LocalNextHtlcID,
		Amount:      amount,
		PaymentHash: paymentHash,
		Expiry:      expiry,
	}

	next := c.clone()
	next.LocalChanges = next.LocalChanges.append(add)
	next.LocalNextHtlcID++
	next.OriginMap[add.ID] = origin

	return next, add, nil
}

// ReceiveAdd records an HTLC the remote side offered.
func (c Commitments) ReceiveAdd(add *lnwire.UpdateAddHTLC, height uint32) (Commitments, error) {
	if add.ID != c.RemoteNextHtlcID {
		return c, newValidationErr(UnknownHtlcId,
			"expected htlc id %v, got %v", c.RemoteNextHtlcID, add.ID)
	}

	if add.Amount < c.LocalParams.HtlcMinimum {
		return c, newValidationErr(HtlcValueTooSmall,
			"%v msat below local htlc minimum %v msat",
			add.Amount, c.LocalParams.HtlcMinimum)
	}

	if add.Expiry > height+maxExpiryDelta {
		return c, newValidationErr(ExpiryTooBig,
			"expiry %v exceeds max delta from height %v", add.Expiry, height)
	}

	if next := c.nextRemoteSpec(); next.htlcCount(false)+1 > int(c.LocalParams.MaxAcceptedHtlcs) {
		return c, newValidationErr(TooManyAcceptedHtlcs,
			"adding this htlc would exceed local max accepted htlcs of %v",
			c.LocalParams.MaxAcceptedHtlcs)
	}

	if c.availableBalanceForReceive() < add.Amount {
		return c, newValidationErr(InsufficientFunds,
			"remote cannot afford %v msat, only %v available",
			add.Amount, c.availableBalanceForReceive())
	}

	next := c.clone()
	next.RemoteChanges = next.RemoteChanges.append(add)
	next.RemoteNextHtlcID++

	return next, nil
}

// lookupHtlcAdd finds the original Add for id, whose namespace (local or
// remote-assigned ids) is selected by ownChanges. It first checks the
// still-pending change log, then falls back to the commitment specs
// directly: once an Add has been folded into both commitment chains, it
// is garbage collected from the change log, but the Htlc it created
// still carries a pointer to it.
func (c *Commitments) lookupHtlcAdd(ownChanges bool, id uint64) *lnwire.UpdateAddHTLC {
	changes := c.RemoteChanges
	if ownChanges {
		changes = c.LocalChanges
	}

	for _, msg := range changes.all() {
		if add, ok := msg.(*lnwire.UpdateAddHTLC); ok && add.ID == id {
			return add
		}
	}

	for _, h := range c.LocalCommit.Spec.Htlcs {
		if h.Incoming == !ownChanges && h.Add.ID == id {
			return h.Add
		}
	}

	for _, h := range c.RemoteCommit.Spec.Htlcs {
		if h.Incoming == ownChanges && h.Add.ID == id {
			return h.Add
		}
	}

	return nil
}

// SendFulfill settles an HTLC the remote side previously offered by
// revealing its preimage.
func (c Commitments) SendFulfill(id uint64, preimage lntypes.Preimage) (Commitments, *lnwire.UpdateFulfillHTLC, error) {
	add := c.lookupHtlcAdd(false, id)
	if add == nil {
		return c, nil, newValidationErr(UnknownHtlcId, "no such htlc id %v", id)
	}

	if !preimage.Matches(add.PaymentHash) {
		return c, nil, newValidationErr(InvalidHtlcPreimage,
			"preimage does not match payment hash for htlc %v", id)
	}

	fulfill := &lnwire.UpdateFulfillHTLC{
		ChanID:          c.ChannelID,
		ID:              id,
		PaymentPreimage: preimage,
	}

	next := c.clone()
	next.LocalChanges = next.LocalChanges.append(fulfill)

	return next, fulfill, nil
}

// ReceiveFulfill records the remote side settling an HTLC local
// previously offered.
func (c Commitments) ReceiveFulfill(fulfill *lnwire.UpdateFulfillHTLC) (Commitments, error) {
	add := c.lookupHtlcAdd(true, fulfill.ID)
	if add == nil {
		return c, newValidationErr(UnknownHtlcId, "no such htlc id %v", fulfill.ID)
	}

	if !fulfill.PaymentPreimage.Matches(add.PaymentHash) {
		return c, newValidationErr(InvalidHtlcPreimage,
			"preimage does not match payment hash for htlc %v", fulfill.ID)
	}

	next := c.clone()
	next.RemoteChanges = next.RemoteChanges.append(fulfill)

	return next, nil
}

// SendFail fails an HTLC the remote side previously offered.
func (c Commitments) SendFail(id uint64, reason []byte) (Commitments, *lnwire.UpdateFailHTLC, error) {
	if c.lookupHtlcAdd(false, id) == nil {
		return c, nil, newValidationErr(UnknownHtlcId, "no such htlc id %v", id)
	}

	fail := &lnwire.UpdateFailHTLC{
		ChanID: c.ChannelID,
		ID:     id,
		Reason: reason,
	}

	next := c.clone()
	next.LocalChanges = next.LocalChanges.append(fail)

	return next, fail, nil
}

// ReceiveFail records the remote side failing an HTLC local previously
// offered.
func (c Commitments) ReceiveFail(fail *lnwire.UpdateFailHTLC) (Commitments, error) {
	if c.lookupHtlcAdd(true, fail.ID) == nil {
		return c, newValidationErr(UnknownHtlcId, "no such htlc id %v", fail.ID)
	}

	next := c.clone()
	next.RemoteChanges = next.RemoteChanges.append(fail)

	return next, nil
}

// SendFee proposes a new feerate for the commitment transaction. Only the
// funder may do this.
func (c Commitments) SendFee(feePerKw SatPerKWeight) (Commitments, *lnwire.UpdateFee, error) {
	if !c.LocalParams.IsFunder {
		return c, nil, newValidationErr(FeeratePrecondition,
			"only the funder may update the commitment feerate")
	}

	spec := c.nextLocalSpec()
	spec.FeePerKw = feePerKw
	fee := commitTxFee(feePerKw, len(spec.Htlcs), false)

	if spec.ToLocalMsat < fee+c.RemoteParams.ChannelReserve {
		return c, nil, newValidationErr(CannotAffordFees,
			"cannot afford fee %v msat at feerate %v", fee, feePerKw)
	}

	feeUpdate := &lnwire.UpdateFee{
		ChanID:   c.ChannelID,
		FeePerKw: uint32(feePerKw),
	}

	next := c.clone()
	next.LocalChanges = next.LocalChanges.append(feeUpdate)

	return next, feeUpdate, nil
}

// ReceiveFee records a feerate update proposed by the remote funder.
func (c Commitments) ReceiveFee(feeUpdate *lnwire.UpdateFee) (Commitments, error) {
	if !c.RemoteParams.IsFunder {
		return c, newValidationErr(FeeratePrecondition,
			"feerate update received from a non-funder remote party")
	}

	feePerKw := SatPerKWeight(feeUpdate.FeePerKw)

	spec := c.nextRemoteSpec()
	spec.FeePerKw = feePerKw
	fee := commitTxFee(feePerKw, len(spec.Htlcs), false)

	if spec.ToLocalMsat < fee+c.LocalParams.ChannelReserve {
		return c, newValidationErr(CannotAffordFees,
			"remote cannot afford fee %v msat at feerate %v", fee, feePerKw)
	}

	next := c.clone()
	next.RemoteChanges = next.RemoteChanges.append(feeUpdate)

	return next, nil
}

// SendCommit signs the remote party's next commitment transaction,
// covering every change from either side not yet folded into
// RemoteCommit. It flags those changes as riding this not-yet-revoked
// commitment and advances RemoteNextCommitInfo to it.
func (c Commitments) SendCommit(km KeyManager) (Commitments, *lnwire.CommitSig, error) {
	if !c.LocalChanges.hasFreshRemote() && !c.RemoteChanges.hasFreshRemote() {
		return c, nil, newValidationErr(CannotSignWithoutChanges,
			"no new changes to sign")
	}

	if c.RemoteNextCommitInfo.Point == nil {
		return c, nil, newValidationErr(CannotSignWithoutChanges,
			"no remote per-commitment point available")
	}

	spec := c.nextRemoteSpec()

	txid, err := km.CommitTxID(c.CommitInput, spec, c.RemoteNextCommitInfo.Point)
	if err != nil {
		return c, nil, err
	}

	sig, htlcSigs, err := km.SignCommitment(txid, spec)
	if err != nil {
		return c, nil, err
	}

	next := c.clone()
	next.LocalChanges = next.LocalChanges.markPendingRemote()
	next.RemoteChanges = next.RemoteChanges.markPendingRemote()

	next.RemoteNextCommitInfo = RemoteCommitInfo{
		Pending: &RemoteCommit{
			Index:                    c.RemoteCommit.Index + 1,
			Spec:                     spec,
			CommitTx:                 txid,
			RemotePerCommitmentPoint: c.RemoteNextCommitInfo.Point,
		},
	}

	commitSig := &lnwire.CommitSig{
		ChanID:    c.ChannelID,
		CommitSig: sig,
		HtlcSigs:  htlcSigs,
	}

	return next, commitSig, nil
}

// ReceiveCommit verifies a CommitSig the remote party sent covering the
// local side's next commitment, advances LocalCommit to it, flags every
// change it just folded in as committed against the local chain, and
// returns the RevokeAndAck that releases the now-superseded local
// commitment's per-commitment secret.
func (c Commitments) ReceiveCommit(sig *lnwire.CommitSig, km KeyManager) (Commitments, *lnwire.RevokeAndAck, error) {
	spec := c.nextLocalSpec()

	txid, err := km.CommitTxID(c.CommitInput, spec, nil)
	if err != nil {
		return c, nil, err
	}

	if err := km.VerifyCommitmentSig(txid, spec, sig.CommitSig, sig.HtlcSigs); err != nil {
		if errors.Is(err, ErrInvalidHtlcSig) {
			return c, nil, ErrInvalidHtlcSig
		}

		return c, nil, ErrInvalidCommitSig
	}

	revokedIndex := c.LocalCommit.Index
	secret, err := km.RevokePerCommitmentSecret(revokedIndex)
	if err != nil {
		return c, nil, err
	}

	nextPoint, err := km.NextPerCommitmentPoint(c.LocalCommit.Index + 1)
	if err != nil {
		return c, nil, err
	}

	next := c.clone()
	next.LocalChanges = next.LocalChanges.markCommitted(true)
	next.RemoteChanges = next.RemoteChanges.markCommitted(true)

	next.LocalCommit = LocalCommit{
		Index:     c.LocalCommit.Index + 1,
		Spec:      spec,
		CommitTx:  txid,
		CommitSig: sig.CommitSig,
		HtlcSigs:  sig.HtlcSigs,
	}

	revoke := &lnwire.RevokeAndAck{
		ChanID:            c.ChannelID,
		Revocation:        *secret,
		NextRevocationKey: nextPoint,
	}

	return next, revoke, nil
}

// ReceiveRevocation processes a RevokeAndAck: it stores the revealed
// secret in RemotePerCommitmentSecrets, which rejects a secret that is
// inconsistent with the ones stored before it (the secret is not checked
// against the revoked commitment's per-commitment point), promotes the
// pending RemoteCommit,
// flags every change that commitment carried as committed against the
// remote chain (garbage collecting any now committed on both chains),
// and advances RemoteNextCommitInfo to the freshly announced point.
func (c Commitments) ReceiveRevocation(revoke *lnwire.RevokeAndAck) (Commitments, error) {
	pending := c.RemoteNextCommitInfo.Pending
	if pending == nil {
		return c, ErrCommitmentSyncError
	}

	next := c.clone()

	secretHash, err := chainhash.NewHash(revoke.Revocation[:])
	if err != nil {
		return c, ErrInvalidRevocation
	}

	if err := next.RemotePerCommitmentSecrets.AddNextEntry(secretHash); err != nil {
		return c, ErrInvalidRevocation
	}

	next.RemoteCommit = *pending
	next.RemoteNextCommitInfo = RemoteCommitInfo{Point: revoke.NextRevocationKey}

	next.LocalChanges = next.LocalChanges.confirmPendingRemote()
	next.RemoteChanges = next.RemoteChanges.confirmPendingRemote()

	return next, nil
}

// maxExpiryDelta bounds how far in the future, in blocks, an HTLC's CLTV
// expiry may lie relative to the current block height.
const maxExpiryDelta = 5000

package channelfsm

import (
	"github.com/22388o/lightning-kmp/lnchannel"
	"github.com/22388o/lightning-kmp/lnwire"
)

// process is the pure heart of a channel's lifecycle: given the current
// State and one Event, it returns the next State and the Actions the
// driver should perform, or an error if ev is illegal in state. process
// never blocks and never performs I/O; every side effect is described by
// an Action for Machine.Run to carry out.
func process(state State, km KeyManager, ev Event) (State, []Action, error) {
	switch e := ev.(type) {
	case Disconnected:
		if state.Kind == Offline {
			return state, nil, nil
		}
		prior := state
		return State{Kind: Offline, ChannelID: state.ChannelID, Prior: &prior}, nil, nil

	case Connected:
		return processConnected(state, e)

	case Restore:
		p := e.Persisted
		return State{
			Kind:        p.Kind,
			ChannelID:   p.ChannelID,
			Commitments: p.Commitments,
			Funding:     p.Funding,
		}, nil, nil
	}

	if state.Kind == Offline {
		return state, nil, newError(UnexpectedMessage, state.Kind,
			"channel is offline, only Connected/Disconnected/Restore accepted")
	}

	switch state.Kind {
	case WaitForInit:
		return processWaitForInit(state, km, ev)
	case WaitForAcceptChannel:
		return processWaitForAcceptChannel(state, km, ev)
	case WaitForFundingCreated:
		return processWaitForFundingCreated(state, km, ev)
	case WaitForFundingSigned:
		return processWaitForFundingSigned(state, km, ev)
	case WaitForFundingLocked:
		return processWaitForFundingLocked(state, km, ev)
	case Normal:
		return processNormal(state, km, ev)
	case Shutdown:
		return processShutdown(state, km, ev)
	case Negotiating:
		return processNegotiating(state, km, ev)
	case Closing:
		return processClosing(state, ev)
	case ErrorInformationLeak:
		return processErrorInformationLeak(state, ev)
	case Closed:
		return state, nil, newError(UnexpectedMessage, state.Kind, "channel already closed")
	default:
		return state, nil, newError(UnexpectedMessage, state.Kind, "unknown state kind")
	}
}

func processConnected(state State, e Connected) (State, []Action, error) {
	if state.Kind != Offline {
		// Redundant Connected while already up; nothing to do.
		return state, nil, nil
	}

	prior := *state.Prior
	if prior.Kind != Normal {
		return prior, nil, nil
	}

	reest := &lnwire.ChannelReestablish{
		ChanID:                 prior.ChannelID,
		NextLocalCommitHeight:  prior.Commitments.LocalCommit.Index + 1,
		RemoteCommitTailHeight: prior.Commitments.RemoteCommit.Index,
	}

	return prior, []Action{SendMessage{Msg: reest, Flush: true}}, nil
}

func protocolViolation(state State, reason string) (State, []Action, error) {
	errMsg := lnwire.NewError(state.ChannelID, []byte(reason))

	next := state
	next.Kind = Closing

	actions := []Action{
		SendMessage{Msg: errMsg, Flush: true},
	}
	if state.Commitments.ChannelID == state.ChannelID {
		actions = append(actions, PublishTx{
			CommitTxID: state.Commitments.LocalCommit.CommitTx,
			Reason:     "protocol violation: " + reason,
		})
	}

	return next, actions, newError(ProtocolViolation, state.Kind, reason)
}

// --- funding ---

func processWaitForInit(state State, km KeyManager, ev Event) (State, []Action, error) {
	switch e := ev.(type) {
	case ExecuteCommand:
		cmd, ok := e.Cmd.(CmdInitFunder)
		if !ok {
			return state, nil, newError(IllegalCommand, state.Kind,
				"only CmdInitFunder accepted before funding")
		}

		fundingKey, err := km.FundingPubKey()
		if err != nil {
			return state, nil, err
		}

		point, err := km.NextPerCommitmentPoint(0)
		if err != nil {
			return state, nil, err
		}

		open := &lnwire.OpenChannel{
			PendingChannelID:     [32]byte(cmd.PendingChanID),
			FundingAmount:        cmd.FundingAmount,
			PushAmount:           cmd.PushAmount,
			DustLimit:            cmd.Params.DustLimit,
			MaxValueInFlight:     cmd.Params.MaxHTLCValueInFlight,
			ChannelReserve:       cmd.Params.ChannelReserve,
			HtlcMinimum:          cmd.Params.HtlcMinimum,
			FeePerKiloWeight:     uint32(cmd.FeePerKw),
			CsvDelay:             cmd.Params.ToSelfDelay,
			MaxAcceptedHTLCs:     cmd.Params.MaxAcceptedHtlcs,
			FundingKey:           fundingKey,
			RevocationPoint:      cmd.Params.RevocationBasePoint,
			PaymentPoint:         cmd.Params.PaymentBasePoint,
			DelayedPaymentPoint:  cmd.Params.DelayedPaymentBasePoint,
			HtlcPoint:            cmd.Params.HtlcBasePoint,
			FirstCommitmentPoint: point,
		}

		next := state
		next.ChannelID = lnwire.ChannelID(cmd.PendingChanID)
		next.Kind = WaitForAcceptChannel
		next.Funding = &fundingState{
			Params:        cmd.Params,
			FundingAmount: cmd.FundingAmount,
			PushAmount:    cmd.PushAmount,
			FeePerKw:      cmd.FeePerKw,
			IsFunder:      true,
		}

		return next, []Action{SendMessage{Msg: open, Flush: true}}, nil

	case MessageReceived:
		open, ok := e.Msg.(*lnwire.OpenChannel)
		if !ok {
			return state, nil, newError(UnexpectedMessage, state.Kind,
				"expected open_channel before funding")
		}

		remoteParams := lnchannel.ChannelParams{
			DustLimit:               open.DustLimit,
			MaxHTLCValueInFlight:    open.MaxValueInFlight,
			ChannelReserve:          open.ChannelReserve,
			HtlcMinimum:             open.HtlcMinimum,
			ToSelfDelay:             open.CsvDelay,
			MaxAcceptedHtlcs:        open.MaxAcceptedHTLCs,
			IsFunder:                true,
			FundingPubKey:           open.FundingKey,
			RevocationBasePoint:     open.RevocationPoint,
			PaymentBasePoint:        open.PaymentPoint,
			DelayedPaymentBasePoint: open.DelayedPaymentPoint,
			HtlcBasePoint:           open.HtlcPoint,
		}

		fundingKey, err := km.FundingPubKey()
		if err != nil {
			return state, nil, err
		}

		point, err := km.NextPerCommitmentPoint(0)
		if err != nil {
			return state, nil, err
		}

		// Our own parameters mirror the funder's requested limits; a
		// full policy engine would let the caller override these per
		// open_channel, but that is outside this core's scope.
		ownParams := lnchannel.ChannelParams{
			DustLimit:               remoteParams.DustLimit,
			MaxHTLCValueInFlight:    remoteParams.MaxHTLCValueInFlight,
			ChannelReserve:          remoteParams.ChannelReserve,
			HtlcMinimum:             remoteParams.HtlcMinimum,
			ToSelfDelay:             remoteParams.ToSelfDelay,
			MaxAcceptedHtlcs:        remoteParams.MaxAcceptedHtlcs,
			IsFunder:                false,
			FundingPubKey:           fundingKey,
			RevocationBasePoint:     point,
			PaymentBasePoint:        point,
			DelayedPaymentBasePoint: point,
			HtlcBasePoint:           point,
		}

		accept := &lnwire.AcceptChannel{
			PendingChannelID:     open.PendingChannelID,
			DustLimit:            ownParams.DustLimit,
			MaxValueInFlight:     ownParams.MaxHTLCValueInFlight,
			ChannelReserve:       ownParams.ChannelReserve,
			HtlcMinimum:          ownParams.HtlcMinimum,
			CsvDelay:             ownParams.ToSelfDelay,
			MaxAcceptedHTLCs:     ownParams.MaxAcceptedHtlcs,
			FundingKey:           fundingKey,
			RevocationPoint:      point,
			PaymentPoint:         point,
			DelayedPaymentPoint:  point,
			HtlcPoint:            point,
			FirstCommitmentPoint: point,
		}

		next := state
		next.ChannelID = lnwire.ChannelID(open.PendingChannelID)
		next.Kind = WaitForFundingCreated
		next.Funding = &fundingState{
			Params:        ownParams,
			RemoteParams:  remoteParams,
			FundingAmount: open.FundingAmount,
			PushAmount:    open.PushAmount,
			FeePerKw:      lnchannel.SatPerKWeight(open.FeePerKiloWeight),
			IsFunder:      false,

			RemoteFirstPoint: open.FirstCommitmentPoint,
		}

		return next, []Action{SendMessage{Msg: accept, Flush: true}}, nil

	default:
		return state, nil, newError(UnexpectedMessage, state.Kind,
			"only CmdInitFunder or open_channel accepted")
	}
}

func processWaitForAcceptChannel(state State, km KeyManager, ev Event) (State, []Action, error) {
	msg, ok := ev.(MessageReceived)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "awaiting accept_channel")
	}

	accept, ok := msg.Msg.(*lnwire.AcceptChannel)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "expected accept_channel")
	}

	state.Funding.RemoteParams = lnchannel.ChannelParams{
		DustLimit:               accept.DustLimit,
		MaxHTLCValueInFlight:    accept.MaxValueInFlight,
		ChannelReserve:          accept.ChannelReserve,
		HtlcMinimum:             accept.HtlcMinimum,
		ToSelfDelay:             accept.CsvDelay,
		MaxAcceptedHtlcs:        accept.MaxAcceptedHTLCs,
		IsFunder:                false,
		FundingPubKey:           accept.FundingKey,
		RevocationBasePoint:     accept.RevocationPoint,
		PaymentBasePoint:        accept.PaymentPoint,
		DelayedPaymentBasePoint: accept.DelayedPaymentPoint,
		HtlcBasePoint:           accept.HtlcPoint,
	}
	state.Funding.RemoteFirstPoint = accept.FirstCommitmentPoint

	spec := lnchannel.CommitmentSpec{
		ToLocalMsat:  state.Funding.FundingAmount - state.Funding.PushAmount,
		ToRemoteMsat: state.Funding.PushAmount,
		FeePerKw:     state.Funding.FeePerKw,
	}

	commitTxID, err := km.CommitTxID(lnchannel.CommitInput{
		Amount: state.Funding.FundingAmount,
	}, spec, accept.FirstCommitmentPoint)
	if err != nil {
		return state, nil, err
	}

	sig, _, err := km.SignCommitment(commitTxID, spec)
	if err != nil {
		return state, nil, err
	}

	fundingPoint, err := km.BuildFundingOutput(state.Funding.FundingAmount)
	if err != nil {
		return state, nil, err
	}
	state.Funding.FundingOutpoint = fundingPoint

	created := &lnwire.FundingCreated{
		PendingChannelID: [32]byte(state.ChannelID),
		FundingPoint:     fundingPoint,
		CommitSig:        sig,
	}

	next := state
	next.Kind = WaitForFundingSigned

	return next, []Action{SendMessage{Msg: created, Flush: true}}, nil
}

func processWaitForFundingCreated(state State, km KeyManager, ev Event) (State, []Action, error) {
	msg, ok := ev.(MessageReceived)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "awaiting funding_created")
	}

	fc, ok := msg.Msg.(*lnwire.FundingCreated)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "expected funding_created")
	}

	state.Funding.FundingOutpoint = fc.FundingPoint

	spec := lnchannel.CommitmentSpec{
		ToLocalMsat:  state.Funding.PushAmount,
		ToRemoteMsat: state.Funding.FundingAmount - state.Funding.PushAmount,
		FeePerKw:     state.Funding.FeePerKw,
	}

	ourPoint, err := km.NextPerCommitmentPoint(0)
	if err != nil {
		return state, nil, err
	}

	commitTxID, err := km.CommitTxID(lnchannel.CommitInput{
		OutPoint: fc.FundingPoint,
		Amount:   state.Funding.FundingAmount,
	}, spec, ourPoint)
	if err != nil {
		return state, nil, err
	}

	if err := km.VerifyCommitmentSig(commitTxID, spec, fc.CommitSig, nil); err != nil {
		return protocolViolation(state, "invalid funding_created commit_sig")
	}

	ourSig, _, err := km.SignCommitment(commitTxID, spec)
	if err != nil {
		return state, nil, err
	}

	finalChanID := lnwire.NewChanIDFromOutPoint(fc.FundingPoint.ToWire())

	signed := &lnwire.FundingSigned{
		ChanID:    finalChanID,
		CommitSig: ourSig,
	}

	commitments := lnchannel.Commitments{
		ChannelID:    finalChanID,
		LocalParams:  state.Funding.Params,
		RemoteParams: state.Funding.RemoteParams,
		LocalCommit: lnchannel.LocalCommit{
			Spec:      spec,
			CommitTx:  commitTxID,
			CommitSig: fc.CommitSig,
		},
		RemoteCommit: lnchannel.RemoteCommit{
			Spec:                     invert(spec),
			RemotePerCommitmentPoint: state.Funding.RemoteFirstPoint,
		},
		OriginMap: make(map[uint64]lnchannel.Origin),
		CommitInput: lnchannel.CommitInput{
			OutPoint: fc.FundingPoint,
			Amount:   state.Funding.FundingAmount,
		},
	}

	next := state
	next.Kind = WaitForFundingLocked
	next.ChannelID = finalChanID
	next.Commitments = commitments

	return next, []Action{
		SendMessage{Msg: signed, Flush: true},
		SendWatch{Outpoint: fc.FundingPoint},
		ChannelIDSwitch{Old: lnwire.ChannelID(fc.PendingChannelID), New: finalChanID},
		StoreState{Persisted: persist(next)},
	}, nil
}

func processWaitForFundingSigned(state State, km KeyManager, ev Event) (State, []Action, error) {
	msg, ok := ev.(MessageReceived)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "awaiting funding_signed")
	}

	fs, ok := msg.Msg.(*lnwire.FundingSigned)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "expected funding_signed")
	}

	spec := lnchannel.CommitmentSpec{
		ToLocalMsat:  state.Funding.FundingAmount - state.Funding.PushAmount,
		ToRemoteMsat: state.Funding.PushAmount,
		FeePerKw:     state.Funding.FeePerKw,
	}

	ourPoint, err := km.NextPerCommitmentPoint(0)
	if err != nil {
		return state, nil, err
	}

	commitTxID, err := km.CommitTxID(state_commitInput(state), spec, ourPoint)
	if err != nil {
		return state, nil, err
	}

	if err := km.VerifyCommitmentSig(commitTxID, spec, fs.CommitSig, nil); err != nil {
		return protocolViolation(state, "invalid funding_signed commit_sig")
	}

	commitments := lnchannel.Commitments{
		ChannelID:    fs.ChanID,
		LocalParams:  state.Funding.Params,
		RemoteParams: state.Funding.RemoteParams,
		LocalCommit: lnchannel.LocalCommit{
			Spec:      spec,
			CommitTx:  commitTxID,
			CommitSig: fs.CommitSig,
		},
		RemoteCommit: lnchannel.RemoteCommit{
			Spec:                     invert(spec),
			RemotePerCommitmentPoint: state.Funding.RemoteFirstPoint,
		},
		OriginMap:   make(map[uint64]lnchannel.Origin),
		CommitInput: state_commitInput(state),
	}

	next := state
	next.Kind = WaitForFundingLocked
	next.ChannelID = fs.ChanID
	next.Commitments = commitments

	return next, []Action{
		SendWatch{Outpoint: state.Funding.FundingOutpoint},
		ChannelIDSwitch{Old: state.ChannelID, New: fs.ChanID},
		StoreState{Persisted: persist(next)},
	}, nil
}

func processWaitForFundingLocked(state State, km KeyManager, ev Event) (State, []Action, error) {
	switch e := ev.(type) {
	case WatchReceived:
		confirmed, ok := e.Event.(WatchEventConfirmed)
		if !ok {
			return state, nil, nil
		}

		state.Funding.WeConfirmed = true

		point, err := km.NextPerCommitmentPoint(1)
		if err != nil {
			return state, nil, err
		}

		ready := &lnwire.ChannelReady{
			ChanID:                 state.ChannelID,
			NextPerCommitmentPoint: point,
		}

		actions := []Action{SendMessage{Msg: ready, Flush: true}}
		return maybeEnterNormal(state, actions)

	case MessageReceived:
		ready, ok := e.Msg.(*lnwire.ChannelReady)
		if !ok {
			return state, nil, newError(UnexpectedMessage, state.Kind,
				"expected channel_ready")
		}

		state.Funding.PeerReady = true
		state.Funding.PeerNextPoint = ready.NextPerCommitmentPoint

		return maybeEnterNormal(state, nil)

	default:
		return state, nil, newError(UnexpectedMessage, state.Kind,
			"awaiting confirmation or channel_ready")
	}
}

func maybeEnterNormal(state State, actions []Action) (State, []Action, error) {
	if !state.Funding.WeConfirmed || !state.Funding.PeerReady {
		return state, actions, nil
	}

	next := state
	next.Kind = Normal
	next.Commitments.RemoteNextCommitInfo = lnchannel.RemoteCommitInfo{
		Point: state.Funding.PeerNextPoint,
	}
	next.Funding = nil

	actions = append(actions, StoreState{Persisted: persist(next)})
	return next, actions, nil
}

// state_commitInput reconstructs the CommitInput a funder-side
// WaitForFundingSigned state needs from the fields it was told about when
// it sent funding_created, mirroring the fundee's own bookkeeping.
func state_commitInput(state State) lnchannel.CommitInput {
	return lnchannel.CommitInput{
		OutPoint: state.Funding.FundingOutpoint,
		Amount:   state.Funding.FundingAmount,
	}
}

// invert flips a CommitmentSpec's Htlcs' Incoming direction and swaps its
// balances, producing the remote party's view of the same economic
// content local just computed.
func invert(spec lnchannel.CommitmentSpec) lnchannel.CommitmentSpec {
	out := lnchannel.CommitmentSpec{
		ToLocalMsat:  spec.ToRemoteMsat,
		ToRemoteMsat: spec.ToLocalMsat,
		FeePerKw:     spec.FeePerKw,
	}
	for _, h := range spec.Htlcs {
		out.Htlcs = append(out.Htlcs, lnchannel.Htlc{Incoming: !h.Incoming, Add: h.Add})
	}
	return out
}

func persist(state State) PersistedState {
	return PersistedState{
		ChannelID:   state.ChannelID,
		Kind:        state.Kind,
		Commitments: state.Commitments,
		Funding:     state.Funding,
	}
}

// --- steady state ---

func processNormal(state State, km KeyManager, ev Event) (State, []Action, error) {
	switch e := ev.(type) {
	case MessageReceived:
		return processNormalMessage(state, km, e.Msg)
	case ExecuteCommand:
		return processNormalCommand(state, km, e.Cmd)
	case WatchReceived:
		if _, ok := e.Event.(WatchEventSpent); ok {
			next := state
			next.Kind = Closing
			return next, []Action{PublishTx{
				CommitTxID: state.Commitments.LocalCommit.CommitTx,
				Reason:     "funding output spent unexpectedly",
			}}, nil
		}
		return state, nil, nil
	default:
		return state, nil, newError(UnexpectedMessage, state.Kind, "unsupported event in Normal")
	}
}

func processNormalMessage(state State, km KeyManager, msg lnwire.Message) (State, []Action, error) {
	c := state.Commitments

	switch m := msg.(type) {
	case *lnwire.UpdateAddHTLC:
		next, err := c.ReceiveAdd(m, 0)
		if err != nil {
			return protocolViolation(state, err.Error())
		}
		state.Commitments = next
		return state, nil, nil

	case *lnwire.UpdateFulfillHTLC:
		next, err := c.ReceiveFulfill(m)
		if err != nil {
			return protocolViolation(state, err.Error())
		}
		origin := c.OriginMap[m.ID]
		state.Commitments = next
		return state, []Action{ProcessFulfill{Origin: origin, Preimage: m.PaymentPreimage}}, nil

	case *lnwire.UpdateFailHTLC:
		next, err := c.ReceiveFail(m)
		if err != nil {
			return protocolViolation(state, err.Error())
		}
		state.Commitments = next
		return state, nil, nil

	case *lnwire.UpdateFee:
		next, err := c.ReceiveFee(m)
		if err != nil {
			return protocolViolation(state, err.Error())
		}
		state.Commitments = next
		return state, nil, nil

	case *lnwire.CommitSig:
		next, revoke, err := c.ReceiveCommit(m, km)
		if err != nil {
			return protocolViolation(state, err.Error())
		}
		state.Commitments = next
		return state, []Action{
			SendMessage{Msg: revoke, Flush: true},
			StoreState{Persisted: persist(state)},
		}, nil

	case *lnwire.RevokeAndAck:
		next, err := c.ReceiveRevocation(m)
		if err != nil {
			return protocolViolation(state, err.Error())
		}
		state.Commitments = next

		actions := []Action{StoreState{Persisted: persist(state)}}
		if len(next.LocalChanges.all()) > 0 {
			actions = append(actions, ProcessCommand{Cmd: CmdSign{}})
		}
		return state, actions, nil

	case *lnwire.Shutdown:
		next := state
		next.Kind = Shutdown
		next.Commitments = c
		cs := &shutdownState{RemoteScript: m.Address, PeerSent: true}

		our := lnwire.NewShutdown(state.ChannelID, nil)
		cs.WeSent = true

		return setClosing(next, cs), []Action{SendMessage{Msg: our, Flush: true}}, nil

	case *lnwire.Error:
		next := state
		next.Kind = Closing
		return next, []Action{PublishTx{
			CommitTxID: c.LocalCommit.CommitTx,
			Reason:     "remote sent error",
		}}, nil

	case *lnwire.ChannelReestablish:
		return resync(state, km, m)

	default:
		return state, nil, newError(UnexpectedMessage, state.Kind,
			"unhandled message type in Normal")
	}
}

func setClosing(state State, cs *shutdownState) State {
	state.Closing = cs
	return state
}

// resync reconciles a just-reconnected peer's channel_reestablish against
// our own view, resending whichever of our last revoke_and_ack or
// commit_sig the peer's message shows it never received.
func resync(state State, km KeyManager, reest *lnwire.ChannelReestablish) (State, []Action, error) {
	var actions []Action

	c := state.Commitments
	if reest.RemoteCommitTailHeight > c.LocalCommit.Index {
		return protocolViolation(state, "peer claims a local commitment height we never signed")
	}

	// If the peer's recorded tail is one behind our current local
	// commit height, our last revoke_and_ack for the superseded
	// commitment never reached it; rebuild and resend it.
	if c.LocalCommit.Index > 0 && reest.RemoteCommitTailHeight == c.LocalCommit.Index-1 {
		revokedIndex := c.LocalCommit.Index - 1

		secret, err := km.RevokePerCommitmentSecret(revokedIndex)
		if err != nil {
			return state, nil, err
		}

		nextPoint, err := km.NextPerCommitmentPoint(revokedIndex + 1)
		if err != nil {
			return state, nil, err
		}

		actions = append(actions, SendMessage{
			Msg: &lnwire.RevokeAndAck{
				ChanID:            state.ChannelID,
				Revocation:        *secret,
				NextRevocationKey: nextPoint,
			},
			Flush: true,
		})
	}

	if reest.NextLocalCommitHeight == c.RemoteCommit.Index {
		actions = append(actions, SendMessage{
			Msg: &lnwire.CommitSig{
				ChanID:    state.ChannelID,
				CommitSig: c.LocalCommit.CommitSig,
				HtlcSigs:  c.LocalCommit.HtlcSigs,
			},
			Flush: true,
		})
	}

	return state, actions, nil
}

func processNormalCommand(state State, km KeyManager, cmd HostCommand) (State, []Action, error) {
	c := state.Commitments

	switch v := cmd.(type) {
	case CmdAddHTLC:
		next, add, err := c.SendAdd(v.Amount, v.PaymentHash, v.Expiry, v.Height, v.Origin)
		if err != nil {
			return state, nil, err
		}
		add.OnionBlob = v.Onion
		state.Commitments = next
		return state, []Action{SendMessage{Msg: add, Flush: true}}, nil

	case CmdFulfillHTLC:
		next, fulfill, err := c.SendFulfill(v.ID, v.Preimage)
		if err != nil {
			return state, nil, err
		}
		state.Commitments = next
		return state, []Action{SendMessage{Msg: fulfill, Flush: true}}, nil

	case CmdFailHTLC:
		next, fail, err := c.SendFail(v.ID, v.Reason)
		if err != nil {
			return state, nil, err
		}
		state.Commitments = next
		return state, []Action{SendMessage{Msg: fail, Flush: true}}, nil

	case CmdUpdateFee:
		next, feeMsg, err := c.SendFee(v.FeePerKw)
		if err != nil {
			return state, nil, err
		}
		state.Commitments = next
		return state, []Action{SendMessage{Msg: feeMsg, Flush: true}}, nil

	case CmdSign:
		next, sig, err := c.SendCommit(km)
		if err != nil {
			if ve, ok := err.(*lnchannel.ValidationError); ok &&
				ve.Kind == lnchannel.CannotSignWithoutChanges {
				return state, nil, nil
			}
			return state, nil, err
		}
		state.Commitments = next
		return state, []Action{SendMessage{Msg: sig, Flush: true}}, nil

	case CmdClose:
		next := state
		next.Kind = Shutdown
		msg := lnwire.NewShutdown(state.ChannelID, v.DeliveryScript)
		return setClosing(next, &shutdownState{LocalScript: v.DeliveryScript, WeSent: true}),
			[]Action{SendMessage{Msg: msg, Flush: true}}, nil

	default:
		return state, nil, newError(IllegalCommand, state.Kind, "unsupported command in Normal")
	}
}

// --- cooperative close ---

func processShutdown(state State, km KeyManager, ev Event) (State, []Action, error) {
	msg, ok := ev.(MessageReceived)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "awaiting shutdown exchange")
	}

	sd, ok := msg.Msg.(*lnwire.Shutdown)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "expected shutdown")
	}

	state.Closing.RemoteScript = sd.Address
	state.Closing.PeerSent = true

	if len(state.Commitments.LocalChanges.all()) > 0 || len(state.Commitments.RemoteChanges.all()) > 0 {
		// HTLCs still outstanding; remain in Shutdown until they
		// drain through Normal's ordinary settle/fail path before
		// negotiating a close fee.
		return state, nil, nil
	}

	next := state
	next.Kind = Negotiating

	return next, nil, nil
}

func processNegotiating(state State, km KeyManager, ev Event) (State, []Action, error) {
	msg, ok := ev.(MessageReceived)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "awaiting closing_signed")
	}

	cs, ok := msg.Msg.(*lnwire.ClosingSigned)
	if !ok {
		return state, nil, newError(UnexpectedMessage, state.Kind, "expected closing_signed")
	}

	if state.Closing.LastFeeOffered != 0 && cs.FeeSat == state.Closing.LastFeeOffered {
		next := state
		next.Kind = Closing
		return next, []Action{PublishTx{
			CommitTxID: state.Commitments.LocalCommit.CommitTx,
			Reason:     "cooperative close",
		}}, nil
	}

	state.Closing.LastFeeOffered = cs.FeeSat
	counter := &lnwire.ClosingSigned{
		ChanID: state.ChannelID,
		FeeSat: cs.FeeSat,
		Sig:    cs.Sig,
	}

	return state, []Action{SendMessage{Msg: counter, Flush: true}}, nil
}

func processClosing(state State, ev Event) (State, []Action, error) {
	w, ok := ev.(WatchReceived)
	if !ok {
		return state, nil, nil
	}

	if _, ok := w.Event.(WatchEventConfirmed); !ok {
		return state, nil, nil
	}

	next := state
	next.Kind = Closed

	return next, []Action{ForgetChannel{ChannelID: state.ChannelID}}, nil
}

func processErrorInformationLeak(state State, ev Event) (State, []Action, error) {
	return processClosing(state, ev)
}

package lnchannel

import "fmt"

// ValidationKind enumerates the non-fatal local-precondition and protocol
// validation failures a Commitments operation can report. A
// ValidationError never indicates a corrupted or dishonest channel; the
// Commitments value it was raised against is always still usable.
type ValidationKind uint8

const (
	// InsufficientFunds is returned by SendAdd/ReceiveAdd when the
	// proposing side cannot afford the new HTLC without breaching its
	// channel reserve.
	InsufficientFunds ValidationKind = iota

	// HtlcValueTooSmall is returned when an HTLC's amount is below the
	// counterparty's advertised htlcMinimum.
	HtlcValueTooSmall

	// ExpiryTooBig is returned when an HTLC's CLTV expiry is
	// unreasonably far in the future.
	ExpiryTooBig

	// TooManyAcceptedHtlcs is returned when accepting an HTLC would
	// exceed maxAcceptedHtlcs in-flight on either commitment.
	TooManyAcceptedHtlcs

	// UnknownHtlcId is returned by SendFulfill/SendFail/ReceiveFulfill/
	// ReceiveFail when the referenced HTLC id has no matching Add.
	UnknownHtlcId

	// InvalidHtlcPreimage is returned when a Fulfill's preimage does not
	// hash to the payment hash of the HTLC it resolves.
	InvalidHtlcPreimage

	// CannotAffordFees is returned by SendFee/ReceiveFee when the
	// funder's to-local balance cannot cover the new feerate.
	CannotAffordFees

	// FeeratePrecondition is returned by SendFee when the local side
	// is not the funder, and by ReceiveFee when a feerate update comes
	// from a remote party that is not the funder. The feerate value
	// itself is not compared against any network feerate.
	FeeratePrecondition

	// CannotSignWithoutChanges is returned by SendCommit when there is
	// nothing new to sign; it is a benign precondition, not a channel
	// fault.
	CannotSignWithoutChanges
)

// String returns a human-readable name for the ValidationKind.
func (k ValidationKind) String() string {
	switch k {
	case InsufficientFunds:
		return "insufficient funds"
	case HtlcValueTooSmall:
		return "htlc value too small"
	case ExpiryTooBig:
		return "expiry too far in the future"
	case TooManyAcceptedHtlcs:
		return "too many accepted htlcs"
	case UnknownHtlcId:
		return "unknown htlc id"
	case InvalidHtlcPreimage:
		return "invalid htlc preimage"
	case CannotAffordFees:
		return "cannot afford fees"
	case FeeratePrecondition:
		return "feerate precondition violated"
	case CannotSignWithoutChanges:
		return "cannot sign commitment without new changes"
	default:
		return "unknown validation error"
	}
}

// ValidationError wraps a ValidationKind with the offending value, so
// callers inspecting err.Kind never need to parse the message string.
type ValidationError struct {
	Kind ValidationKind
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newValidationErr(kind ValidationKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Fatal cryptographic and synchronization faults. Unlike ValidationError,
// receiving one of these means the channel's state has diverged from the
// counterparty's and must be force-closed.
var (
	// ErrInvalidCommitSig is returned by ReceiveCommit when the
	// counterparty's signature does not verify against the next local
	// commitment transaction.
	ErrInvalidCommitSig = fmt.Errorf("invalid commitment signature")

	// ErrInvalidHtlcSig is returned by ReceiveCommit when one of the
	// per-HTLC signatures does not verify. A KeyManager signals this
	// specific failure by wrapping ErrInvalidHtlcSig in the error it
	// returns from VerifyCommitmentSig; any other non-nil error is
	// treated as a commitment-signature failure.
	ErrInvalidHtlcSig = fmt.Errorf("invalid htlc signature")

	// ErrInvalidRevocation is returned by ReceiveRevocation when the
	// revealed per-commitment secret cannot be parsed as a hash or is
	// rejected by RemotePerCommitmentSecrets as inconsistent with the
	// secrets stored before it.
	ErrInvalidRevocation = fmt.Errorf("invalid revocation secret")

	// ErrCommitmentSyncError is returned by ReceiveRevocation when no
	// commitment is currently pending a revoke.
	ErrCommitmentSyncError = fmt.Errorf("synchronization error: no pending remote commitment")
)

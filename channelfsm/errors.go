package channelfsm

import "fmt"

// ErrorKind enumerates the taxonomy of failures process itself can raise,
// independent of any ValidationError lnchannel already reports and
// propagates unchanged.
type ErrorKind uint8

const (
	// IllegalCommand is returned when a HostCommand is issued against a
	// State it makes no sense in, e.g. CmdAddHTLC before Normal.
	IllegalCommand ErrorKind = iota

	// UnexpectedMessage is returned when a wire message arrives that
	// the current State does not expect, short of an outright protocol
	// violation (e.g. a retransmitted funding_signed).
	UnexpectedMessage

	// ProtocolViolation is returned when the remote party's message
	// contradicts BOLT #2, forcing a unilateral close.
	ProtocolViolation
)

func (k ErrorKind) String() string {
	switch k {
	case IllegalCommand:
		return "illegal command for current state"
	case UnexpectedMessage:
		return "unexpected message for current state"
	case ProtocolViolation:
		return "protocol violation"
	default:
		return "unknown channelfsm error"
	}
}

// Error wraps an ErrorKind with the state it was raised against, letting a
// caller branch on Kind without parsing the message.
type Error struct {
	Kind  ErrorKind
	State StateKind
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (in %s): %s", e.Kind, e.State, e.Msg)
}

func newError(kind ErrorKind, state StateKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, State: state, Msg: fmt.Sprintf(format, args...)}
}

package lnwire

import (
	"bytes"
	"fmt"
	"io"
)

// Error is sent by either side to report a protocol violation, and is
// followed immediately by unilateral channel closure by the sender.
// ChanID may be ConnectionWideID, in which case the failure applies to the
// whole connection and every channel on it should be force-closed.
type Error struct {
	ChanID ChannelID
	Data   []byte
}

// NewError returns an Error addressed to the given channel carrying data as
// its human-readable payload.
func NewError(chanID ChannelID, data []byte) *Error {
	return &Error{ChanID: chanID, Data: data}
}

// Decode deserializes an Error message from r.
func (msg *Error) Decode(r io.Reader) error {
	return ReadElements(r,
		&msg.ChanID,
		&msg.Data,
	)
}

// Encode serializes an Error message into w.
func (msg *Error) Encode(w *bytes.Buffer) error {
	return WriteElements(w,
		msg.ChanID,
		msg.Data,
	)
}

// MsgType returns the message's unique type identifier.
func (msg *Error) MsgType() MessageType {
	return MsgError
}

// Error implements the error interface so an Error message can itself be
// returned as a Go error from the action layer.
func (msg *Error) Error() string {
	return fmt.Sprintf("chan_id=%v, err=%v", msg.ChanID, string(msg.Data))
}

// Warning carries the same payload as Error but does not mandate channel
// closure on receipt; a peer may simply log it.
type Warning struct {
	ChanID ChannelID
	Data   []byte
}

// NewWarning returns a Warning addressed to the given channel.
func NewWarning(chanID ChannelID, data []byte) *Warning {
	return &Warning{ChanID: chanID, Data: data}
}

// Decode deserializes a Warning message from r.
func (msg *Warning) Decode(r io.Reader) error {
	return ReadElements(r,
		&msg.ChanID,
		&msg.Data,
	)
}

// Encode serializes a Warning message into w.
func (msg *Warning) Encode(w *bytes.Buffer) error {
	return WriteElements(w,
		msg.ChanID,
		msg.Data,
	)
}

// MsgType returns the message's unique type identifier.
func (msg *Warning) MsgType() MessageType {
	return MsgWarning
}

// Error implements the error interface.
func (msg *Warning) Error() string {
	return fmt.Sprintf("chan_id=%v, warning=%v", msg.ChanID, string(msg.Data))
}

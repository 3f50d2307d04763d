package lnwire

import (
	"bytes"
	"io"
)

// pingMaxPayloadLength is the maximum number of padding bytes Encode
// accepts for a Ping or Pong: 65535 less the 2-byte message type and the
// 2-byte length prefix of the padding.
const pingMaxPayloadLength = 65531

// Ping is sent periodically to keep the connection alive and to request a
// correspondingly sized Pong, exercising the link's effective bandwidth.
type Ping struct {
	// NumPongBytes is the number of bytes the sender expects the
	// response Pong to carry as padding.
	NumPongBytes uint16

	// PaddingBytes is an opaque padding of no import, used only to
	// increase the size of this message on the wire.
	PaddingBytes []byte
}

// NewPing returns a new Ping message requesting numPongBytes of padding in
// the response.
func NewPing(numPongBytes uint16) *Ping {
	return &Ping{NumPongBytes: numPongBytes}
}

// Decode deserializes a Ping message from r.
func (msg *Ping) Decode(r io.Reader) error {
	return ReadElements(r,
		&msg.NumPongBytes,
		&msg.PaddingBytes,
	)
}

// Encode serializes a Ping message into w.
func (msg *Ping) Encode(w *bytes.Buffer) error {
	if len(msg.PaddingBytes) > pingMaxPayloadLength {
		return ErrorPayloadTooLarge(len(msg.PaddingBytes))
	}

	return WriteElements(w,
		msg.NumPongBytes,
		msg.PaddingBytes,
	)
}

// MsgType returns the message's unique type identifier.
func (msg *Ping) MsgType() MessageType {
	return MsgPing
}

// Pong is the response to a Ping, carrying PaddingBytes of opaque padding
// the requester asked for.
type Pong struct {
	// PaddingBytes is opaque padding whose only purpose is to let the
	// sender size the response.
	PaddingBytes []byte
}

// NewPong returns a new Pong carrying the requested amount of padding.
func NewPong(padding []byte) *Pong {
	return &Pong{PaddingBytes: padding}
}

// Decode deserializes a Pong message from r.
func (msg *Pong) Decode(r io.Reader) error {
	return ReadElement(r, &msg.PaddingBytes)
}

// Encode serializes a Pong message into w.
func (msg *Pong) Encode(w *bytes.Buffer) error {
	if len(msg.PaddingBytes) > pingMaxPayloadLength {
		return ErrorPayloadTooLarge(len(msg.PaddingBytes))
	}

	return WriteElement(w, msg.PaddingBytes)
}

// MsgType returns the message's unique type identifier.
func (msg *Pong) MsgType() MessageType {
	return MsgPong
}

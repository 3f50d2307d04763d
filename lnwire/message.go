// Copyright (C) 2015-2022 The Lightning Network Developers

package lnwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType is the unique 2-byte big-endian integer that indicates the
// type of message on the wire. All messages have a very simple header which
// consists simply of the 2-byte message type. There is no length field or
// checksum, since the Lightning protocol is carried inside a confidential
// and authenticated Noise session.
type MessageType uint16

// The message types this core understands, per BOLT #1/#2.
const (
	MsgInit                    MessageType = 16
	MsgError                   MessageType = 17
	MsgWarning                 MessageType = 1
	MsgPing                    MessageType = 18
	MsgPong                    MessageType = 19
	MsgOpenChannel             MessageType = 32
	MsgAcceptChannel           MessageType = 33
	MsgFundingCreated          MessageType = 34
	MsgFundingSigned           MessageType = 35
	MsgChannelReady            MessageType = 36
	MsgShutdown                MessageType = 38
	MsgClosingSigned           MessageType = 39
	MsgUpdateAddHTLC           MessageType = 128
	MsgUpdateFulfillHTLC       MessageType = 130
	MsgUpdateFailHTLC          MessageType = 131
	MsgCommitSig               MessageType = 132
	MsgRevokeAndAck            MessageType = 133
	MsgUpdateFee               MessageType = 134
	MsgUpdateFailMalformedHTLC MessageType = 135
	MsgChannelReestablish      MessageType = 136
)

// String returns the human readable name of a message type.
func (t MessageType) String() string {
	switch t {
	case MsgInit:
		return "Init"
	case MsgError:
		return "Error"
	case MsgWarning:
		return "Warning"
	case MsgPing:
		return "Ping"
	case MsgPong:
		return "Pong"
	case MsgOpenChannel:
		return "OpenChannel"
	case MsgAcceptChannel:
		return "AcceptChannel"
	case MsgFundingCreated:
		return "FundingCreated"
	case MsgFundingSigned:
		return "FundingSigned"
	case MsgChannelReady:
		return "ChannelReady"
	case MsgShutdown:
		return "Shutdown"
	case MsgClosingSigned:
		return "ClosingSigned"
	case MsgUpdateAddHTLC:
		return "UpdateAddHTLC"
	case MsgUpdateFulfillHTLC:
		return "UpdateFulfillHTLC"
	case MsgUpdateFailHTLC:
		return "UpdateFailHTLC"
	case MsgCommitSig:
		return "CommitSig"
	case MsgRevokeAndAck:
		return "RevokeAndAck"
	case MsgUpdateFee:
		return "UpdateFee"
	case MsgUpdateFailMalformedHTLC:
		return "UpdateFailMalformedHTLC"
	case MsgChannelReestablish:
		return "ChannelReestablish"
	default:
		return "<unknown>"
	}
}

// ErrorPayloadTooLarge is returned when an encoded field would exceed the
// maximum size its own length prefix can represent in this message.
func ErrorPayloadTooLarge(size int) error {
	return fmt.Errorf("payload of %d bytes exceeds the maximum allowed "+
		"for this field", size)
}

// UnknownMessage is returned when a message type outside the catalogue this
// core understands is read off the wire.
type UnknownMessage struct {
	messageType MessageType
}

// Error satisfies the error interface.
func (u *UnknownMessage) Error() string {
	return fmt.Sprintf("unable to parse message of unknown type: %v",
		u.messageType)
}

// Serializable is satisfied by any type that knows how to encode and decode
// itself to and from the wire.
type Serializable interface {
	Decode(io.Reader) error
	Encode(*bytes.Buffer) error
}

// Message is a single Lightning wire protocol message.
type Message interface {
	Serializable
	MsgType() MessageType
}

// makeEmptyMessage allocates the zero value of the concrete type a message
// type dispatches to.
func makeEmptyMessage(msgType MessageType) (Message, error) {
	var msg Message

	switch msgType {
	case MsgInit:
		msg = &Init{}
	case MsgError:
		msg = &Error{}
	case MsgWarning:
		msg = &Warning{}
	case MsgPing:
		msg = &Ping{}
	case MsgPong:
		msg = &Pong{}
	case MsgOpenChannel:
		msg = &OpenChannel{}
	case MsgAcceptChannel:
		msg = &AcceptChannel{}
	case MsgFundingCreated:
		msg = &FundingCreated{}
	case MsgFundingSigned:
		msg = &FundingSigned{}
	case MsgChannelReady:
		msg = &ChannelReady{}
	case MsgShutdown:
		msg = &Shutdown{}
	case MsgClosingSigned:
		msg = &ClosingSigned{}
	case MsgUpdateAddHTLC:
		msg = &UpdateAddHTLC{}
	case MsgUpdateFulfillHTLC:
		msg = &UpdateFulfillHTLC{}
	case MsgUpdateFailHTLC:
		msg = &UpdateFailHTLC{}
	case MsgCommitSig:
		msg = &CommitSig{}
	case MsgRevokeAndAck:
		msg = &RevokeAndAck{}
	case MsgUpdateFee:
		msg = &UpdateFee{}
	case MsgUpdateFailMalformedHTLC:
		msg = &UpdateFailMalformedHTLC{}
	case MsgChannelReestablish:
		msg = &ChannelReestablish{}
	default:
		return nil, &UnknownMessage{msgType}
	}

	return msg, nil
}

// WriteMessage serializes a Message, including its 2-byte type prefix, into
// buf. If encoding fails partway through, buf is truncated back to its
// original length so a caller never observes a partially written message.
//
// NOTE: not concurrent safe.
func WriteMessage(buf *bytes.Buffer, msg Message) (int, error) {
	oldLen := buf.Len()

	var mType [2]byte
	binary.BigEndian.PutUint16(mType[:], uint16(msg.MsgType()))
	if _, err := buf.Write(mType[:]); err != nil {
		buf.Truncate(oldLen)
		return 0, fmt.Errorf("failed to write message type: %w", err)
	}

	if err := msg.Encode(buf); err != nil {
		buf.Truncate(oldLen)
		return 0, fmt.Errorf("failed to encode message: %w", err)
	}

	payloadLen := buf.Len() - oldLen - len(mType)
	if payloadLen > MaxMsgBody {
		buf.Truncate(oldLen)
		return 0, fmt.Errorf("message payload of %d bytes exceeds "+
			"maximum of %d bytes", payloadLen, MaxMsgBody)
	}

	return buf.Len() - oldLen, nil
}

// ReadMessage reads, type-dispatches, and decodes the next message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var mType [2]byte
	if _, err := io.ReadFull(r, mType[:]); err != nil {
		return nil, err
	}

	msgType := MessageType(binary.BigEndian.Uint16(mType[:]))

	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}

	if err := msg.Decode(r); err != nil {
		return nil, err
	}

	return msg, nil
}

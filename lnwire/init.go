package lnwire

import (
	"bytes"
	"io"
)

// Init is the first message exchanged once the Noise handshake completes.
// Each side advertises two feature vectors: the legacy "global" bitfield
// and the current local one; a reader must treat every bit present in
// either as set.
type Init struct {
	// GlobalFeatures is the deprecated global feature vector, still sent
	// for backwards compatibility with pre-BOLT-9-merge peers.
	GlobalFeatures RawFeatureVector

	// Features is the feature vector advertised for this connection.
	Features RawFeatureVector

	// ExtraData is the set of bytes that are left over after parsing the
	// above fields, that are believed to be TLV data.
	ExtraData ExtraOpaqueData
}

// NewInitMessage returns a new Init message with the given feature vectors.
func NewInitMessage(gf, f *RawFeatureVector) *Init {
	return &Init{
		GlobalFeatures: *gf,
		Features:       *f,
	}
}

// Decode deserializes an Init message from r.
func (msg *Init) Decode(r io.Reader) error {
	if err := msg.GlobalFeatures.Decode(r); err != nil {
		return err
	}
	if err := msg.Features.Decode(r); err != nil {
		return err
	}

	return msg.ExtraData.decode(r)
}

// Encode serializes an Init message into w.
func (msg *Init) Encode(w *bytes.Buffer) error {
	if err := msg.GlobalFeatures.Encode(w); err != nil {
		return err
	}
	if err := msg.Features.Encode(w); err != nil {
		return err
	}

	return msg.ExtraData.encode(w)
}

// MsgType returns the message's unique type identifier.
func (msg *Init) MsgType() MessageType {
	return MsgInit
}

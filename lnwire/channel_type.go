package lnwire

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/lightningnetwork/lnd/tlv"
)

// ChannelTypeRecordType is the TLV type of the channel_type record carried
// in OpenChannel and AcceptChannel, as defined in BOLT #2.
const ChannelTypeRecordType tlv.Type = 1

// ChannelType is a feature vector, reusing the same bitfield encoding as
// Init's feature vectors, that pins down the exact commitment format and
// behavior the funder proposes for a channel.
type ChannelType RawFeatureVector

// Record returns the tlv.Record for a ChannelType, suitable for use in an
// ExtraOpaqueData TLV stream.
func (c *ChannelType) Record() tlv.Record {
	return tlv.MakeDynamicRecord(
		ChannelTypeRecordType, c, c.size, encodeChannelType,
		decodeChannelType,
	)
}

func (c *ChannelType) size() uint64 {
	return uint64((*RawFeatureVector)(c).SerializeSize())
}

func encodeChannelType(w io.Writer, val interface{}, buf *[8]byte) error {
	c, ok := val.(*ChannelType)
	if !ok {
		return fmt.Errorf("wrong type for ChannelType record: %T", val)
	}

	var b bytes.Buffer
	if err := (*RawFeatureVector)(c).Encode(&b); err != nil {
		return err
	}

	// The generic RawFeatureVector encoding carries its own 2-byte
	// length prefix; the TLV record already knows its length, so strip
	// it before writing the raw feature bytes.
	raw := b.Bytes()
	if len(raw) < 2 {
		return nil
	}

	_, err := w.Write(raw[2:])
	return err
}

func decodeChannelType(r io.Reader, val interface{}, buf *[8]byte, l uint64) error {
	c, ok := val.(*ChannelType)
	if !ok {
		return fmt.Errorf("wrong type for ChannelType record: %T", val)
	}

	raw := make([]byte, l)
	if _, err := io.ReadFull(r, raw); err != nil {
		return err
	}

	fv := RawFeatureVector{features: new(big.Int).SetBytes(raw)}
	*c = ChannelType(fv)

	return nil
}

package lnwire

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// ExtraOpaqueData is the set of bytes that follows a message's known,
// mandatory fields. BOLT #1 requires this tail itself be a well formed TLV
// stream in ascending, non-repeating tag order; unknown even types MUST be
// ignored by the reader rather than rejected, which is exactly what reading
// it as an opaque blob and only decoding the records a given message cares
// about achieves.
type ExtraOpaqueData []byte

// encode writes the extra data blob as-is, with no length prefix of its
// own: BOLT #1 messages have no overall length field, so "the rest of the
// message" is the tail, and decode reads it back to the end of the message.
func (e ExtraOpaqueData) encode(w *bytes.Buffer) error {
	_, err := w.Write(e)
	return err
}

// decode reads every remaining byte in r into the tail.
func (e *ExtraOpaqueData) decode(r io.Reader) error {
	tail, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if len(tail) == 0 {
		*e = nil
		return nil
	}

	*e = tail

	return nil
}

// ExtractRecords decodes the tail as a TLV stream and extracts the subset
// of records the caller passed in, leaving any unrecognized records (even
// or odd) untouched in the underlying stream's type map.
func (e ExtraOpaqueData) ExtractRecords(recordProducers ...tlv.RecordProducer) (tlv.TypeMap, error) {
	if len(e) == 0 {
		return make(tlv.TypeMap), nil
	}

	records := make([]tlv.Record, 0, len(recordProducers))
	for _, r := range recordProducers {
		records = append(records, r.Record())
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	return stream.DecodeWithParsedTypes(bytes.NewReader(e))
}

// PackRecords encodes the given records, in ascending tag order, as a TLV
// stream and packs them into the tail.
func (e *ExtraOpaqueData) PackRecords(recordProducers ...tlv.RecordProducer) error {
	records := make([]tlv.Record, 0, len(recordProducers))
	for _, r := range recordProducers {
		records = append(records, r.Record())
	}

	tlv.SortRecords(records)

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return err
	}

	*e = b.Bytes()

	return nil
}

package lnwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxMsgBody is the largest payload, not including the 2-byte type prefix,
// a single Lightning wire message may carry. The protocol relies on the
// underlying transport (the Noise session) to provide confidentiality and
// authentication, so no length field or checksum is carried at this layer.
const MaxMsgBody = 65535 - 2

// PkScript is a variable-length byte slice representing a raw public key
// script carried on the wire.
type PkScript []byte

// WriteElement serializes a single element into the given buffer using
// the big-endian, length-prefixed encoding rules of BOLT #1.
func WriteElement(w *bytes.Buffer, element interface{}) error {
	switch e := element.(type) {
	case bool:
		var b [1]byte
		if e {
			b[0] = 1
		}
		if _, err := w.Write(b[:]); err != nil {
			return err
		}

	case uint8:
		if _, err := w.Write([]byte{e}); err != nil {
			return err
		}

	case uint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}

	case uint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}

	case uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], e)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}

	case MilliSatoshi:
		return WriteElement(w, uint64(e))

	case [32]byte:
		if _, err := w.Write(e[:]); err != nil {
			return err
		}

	case [33]byte:
		if _, err := w.Write(e[:]); err != nil {
			return err
		}

	case chainhash.Hash:
		if _, err := w.Write(e[:]); err != nil {
			return err
		}

	case ChannelID:
		if _, err := w.Write(e[:]); err != nil {
			return err
		}

	case Sig:
		if _, err := w.Write(e[:]); err != nil {
			return err
		}

	case *btcec.PublicKey:
		if e == nil {
			return fmt.Errorf("cannot write nil public key")
		}
		var b [33]byte
		copy(b[:], e.SerializeCompressed())
		if _, err := w.Write(b[:]); err != nil {
			return err
		}

	case []byte:
		return wire(w, e)

	case PkScript:
		if len(e) > 10000 {
			return fmt.Errorf("pkscript too long: %d bytes", len(e))
		}
		return wire(w, e)

	case ExtraOpaqueData:
		return e.encode(w)

	default:
		return fmt.Errorf("unknown type %T in WriteElement", e)
	}

	return nil
}

// wire writes a 16-bit length prefix followed by the raw bytes, the common
// variable-length encoding BOLT #1 mandates for byte strings.
func wire(w *bytes.Buffer, b []byte) error {
	if len(b) > 65535 {
		return fmt.Errorf("byte slice of length %d is too long to encode",
			len(b))
	}
	if err := WriteElement(w, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// WriteElements serializes each of the given elements in order, short
// circuiting on the first encountered error.
func WriteElements(buf *bytes.Buffer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(buf, element); err != nil {
			return err
		}
	}
	return nil
}

// ReadElement deserializes a single element from the given reader using the
// mirror image of WriteElement's encoding.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *bool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0] != 0

	case *uint8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0]

	case *uint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint16(b[:])

	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint32(b[:])

	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint64(b[:])

	case *MilliSatoshi:
		var v uint64
		if err := ReadElement(r, &v); err != nil {
			return err
		}
		*e = MilliSatoshi(v)

	case *[32]byte:
		_, err := io.ReadFull(r, e[:])
		return err

	case *[33]byte:
		_, err := io.ReadFull(r, e[:])
		return err

	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err

	case *ChannelID:
		_, err := io.ReadFull(r, e[:])
		return err

	case *Sig:
		_, err := io.ReadFull(r, e[:])
		return err

	case **btcec.PublicKey:
		var b [33]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		pub, err := btcec.ParsePubKey(b[:])
		if err != nil {
			return err
		}
		*e = pub

	case *[]byte:
		b, err := unwire(r)
		if err != nil {
			return err
		}
		*e = b

	case *PkScript:
		b, err := unwire(r)
		if err != nil {
			return err
		}
		if len(b) > 10000 {
			return fmt.Errorf("pkscript too long: %d bytes", len(b))
		}
		*e = PkScript(b)

	default:
		return fmt.Errorf("unknown type %T in ReadElement", e)
	}

	return nil
}

// unwire is the mirror of wire: read a 16-bit length prefix then exactly
// that many bytes.
func unwire(r io.Reader) ([]byte, error) {
	var l uint16
	if err := ReadElement(r, &l); err != nil {
		return nil, err
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadElements deserializes each of the given elements in order, short
// circuiting on the first encountered error.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}
	return nil
}

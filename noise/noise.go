// Package noise implements the BOLT #8 Lightning handshake and message
// encryption protocol, Noise_XK_secp256k1_ChaChaPoly_SHA256. A successful
// handshake authenticates both peers' long-term static keys and derives a
// pair of rotating ChaCha20-Poly1305 keys used to encrypt every message
// exchanged over the connection afterwards.
package noise

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/22388o/lightning-kmp/keychain"
	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// protocolName is the precise instantiation of the Noise protocol
	// handshake at the center of BOLT #8. This value is used as part of
	// the prologue. If the initiator and responder aren't using the
	// exact same string for this value, along with prologue of
	// "lightning", then the initial handshake will fail.
	protocolName = "Noise_XK_secp256k1_ChaChaPoly_SHA256"

	// macSize is the length in bytes of the tags generated by poly1305.
	macSize = 16

	// lengthHeaderSize is the number of bytes used to prefix encode the
	// length of a message payload.
	lengthHeaderSize = 2

	// encHeaderSize is the size of the encrypted length header: the
	// plaintext length prefix plus its authenticating MAC.
	encHeaderSize = lengthHeaderSize + macSize

	// keyRotationInterval is the number of messages sent on a single
	// cipher direction before the associated key is rotated forward.
	keyRotationInterval = 1000

	// handshakeVersion is the expected version of the handshake protocol
	// encoded within each act. Any other version causes the handshake to
	// fail immediately, as we don't know how to decode the message.
	handshakeVersion = 0

	// ActOneSize is the size in bytes of the packet sent during act one
	// of the handshake: 1 byte version, 33 byte ephemeral public key, 16
	// byte poly1305 tag.
	ActOneSize = 50

	// ActTwoSize is the size of the packet sent during act two of the
	// handshake. It has an identical layout to the packet sent during
	// act one.
	ActTwoSize = 50

	// ActThreeSize is the size of the packet sent during the final act
	// of the handshake: 1 byte version, 33 byte encrypted public key, 16
	// byte tag, 16 byte tag of the zero-length payload.
	ActThreeSize = 66
)

// ErrMaxMessageLengthExceeded is returned when a caller attempts to write a
// message which is larger than the maximum message size allowed by the
// protocol.
var ErrMaxMessageLengthExceeded = fmt.Errorf(
	"the generated payload exceeds the max allowed message length of " +
		"(2^16)-1",
)

// cipherState encapsulates the state for the AEAD cipher that's used to
// encrypt and decrypt all messages exchanged once the handshake is complete.
type cipherState struct {
	// nonce is the nonce passed into the chacha20-poly1305 instance for
	// encryption and decryption. The nonce is a simple counter that's
	// incremented after each successful encryption/decryption, and
	// reset to zero every keyRotationInterval messages.
	nonce uint64

	// secretKey is the current key used by the AEAD cipher to
	// encrypt/decrypt messages.
	secretKey [32]byte

	// salt is used when rotating the secret key used for encryption and
	// decryption, in order to ensure that the new key cannot be guessed
	// from the old one.
	salt [32]byte

	// cipher is the AEAD instance created from secretKey.
	cipher cipher.AEAD
}

// Encrypt returns a ciphertext which is the encryption of the plaintext
// observing the passed associated data. The associated data isn't included
// in the final ciphertext, but is used in the derivation of the tag
// included at the tail of the ciphertext, which is used to ensure
// authenticity of the processed data.
func (c *cipherState) Encrypt(associatedData, cipherText, plainText []byte) []byte {
	defer c.incrementNonce()

	var nonce [12]byte
	binary.LittleEndian.PutUint64(nonce[4:], c.nonce)

	return c.cipher.Seal(cipherText, nonce[:], plainText, associatedData)
}

// Decrypt attempts to decrypt the passed ciphertext observing the specified
// associated data. In the case that the final MAC check fails, an error is
// returned.
func (c *cipherState) Decrypt(associatedData, plainText, cipherText []byte) (
	[]byte, error) {

	defer c.incrementNonce()

	var nonce [12]byte
	binary.LittleEndian.PutUint64(nonce[4:], c.nonce)

	return c.cipher.Open(plainText, nonce[:], cipherText, associatedData)
}

// incrementNonce increments the nonce, and performs a key rotation if the
// key has reached its rotation interval.
func (c *cipherState) incrementNonce() {
	c.nonce++

	if c.nonce == keyRotationInterval {
		c.rotateKey()
	}
}

// rotateKey rotates the current encryption/decryption key for this
// cipherState instance. Key rotation is performed according to the BOLT #8
// specification, which STATES that we should continually chain successive
// HKDF outputs from the old key in order to arrive at the new key.
func (c *cipherState) rotateKey() {
	var (
		info    []byte
		nextKey [32]byte
	)

	oldKey := c.secretKey
	h := hkdf.New(sha256.New, oldKey[:], c.salt[:], info)

	// hkdf(ck, k) -> newCk, newKey
	h.Read(c.salt[:])
	h.Read(nextKey[:])

	c.InitializeKeyWithSalt(c.salt, nextKey)
}

// InitializeKey initializes the secret key for this cipher state, resetting
// the nonce in the process.
func (c *cipherState) InitializeKey(key [32]byte) {
	c.secretKey = key
	c.nonce = 0

	// This cipher instance will be used for decryption and encryption
	// with ChaChaPoly1305, so both secret key and nonce can be
	// dynamically updated.
	c.cipher, _ = chacha20poly1305.New(c.secretKey[:])
}

// InitializeKeyWithSalt is identical to InitializeKey, however it also sets
// the salt of the cipherState, which is used for key rotation.
func (c *cipherState) InitializeKeyWithSalt(salt [32]byte, key [32]byte) {
	c.salt = salt
	c.InitializeKey(key)
}

// symmetricState encapsulates a cipherState object, along with the
// associated symmetric state used to derive new shared secrets during the
// handshake, and after the handshake completes.
type symmetricState struct {
	cipherState

	// chainingKey is used as the salt to the HKDF function used to
	// derive new keys during the course of the handshake.
	chainingKey [32]byte

	// handshakeDigest reflects the running SHA-256 digest of all the
	// handshake messages sent from both sides.
	handshakeDigest [32]byte
}

// mixKey implements a basic HKDF-based key ratchet. This method is called
// with the result of each ECDH output generated during the handshake
// process. The first 32 bytes extracted from the HKDF are used as the next
// chaining key, while the last 32 bytes are used as the next key for the
// symmetric cipher.
func (s *symmetricState) mixKey(input []byte) {
	var info []byte

	secret := input
	salt := s.chainingKey
	h := hkdf.New(sha256.New, secret, salt[:], info)

	// hkdf(ck, input) -> newCk, tempKey
	var tempKey [32]byte
	h.Read(s.chainingKey[:])
	h.Read(tempKey[:])

	s.InitializeKey(tempKey)
}

// mixHash hashes the passed input data into the cumulative handshake digest.
// The running result of this value is used as the associated data in all
// decryption/encryption operations.
func (s *symmetricState) mixHash(data []byte) {
	h := sha256.New()
	h.Write(s.handshakeDigest[:])
	h.Write(data)

	copy(s.handshakeDigest[:], h.Sum(nil))
}

// EncryptAndHash returns a ciphertext which is the encryption of the
// passed plaintext observing the current handshakeDigest, then mixes the
// ciphertext into the running handshakeDigest.
func (s *symmetricState) EncryptAndHash(plainText []byte) []byte {
	ciphertext := s.Encrypt(s.handshakeDigest[:], nil, plainText)
	s.mixHash(ciphertext)

	return ciphertext
}

// DecryptAndHash returns the authenticated decryption of the passed
// ciphertext observing the current handshakeDigest, then mixes the
// ciphertext into the running handshakeDigest.
func (s *symmetricState) DecryptAndHash(cipherText []byte) ([]byte, error) {
	plaintext, err := s.Decrypt(s.handshakeDigest[:], nil, cipherText)
	if err != nil {
		return nil, err
	}

	s.mixHash(cipherText)

	return plaintext, nil
}

// InitializeSymmetric initializes the symmetric state by setting the
// handshakeDigest to the SHA-256 of protocolName and the chainingKey to the
// same value. The prologue is mixed in afterwards by
// handshakeState.initialize.
func (s *symmetricState) InitializeSymmetric(protocolName []byte) {
	var empty [32]byte

	s.handshakeDigest = sha256.Sum256(protocolName)
	s.chainingKey = s.handshakeDigest

	s.InitializeKey(empty)
}

// handshakeState encapsulates the per-session state used throughout the
// duration of the handshake. Its fields are left in place once the
// handshake has been completed; split only derives the session ciphers.
type handshakeState struct {
	symmetricState

	initiator bool

	localStatic    keychain.SingleKeyECDH
	localEphemeral keychain.SingleKeyECDH

	remoteStatic    *btcec.PublicKey
	remoteEphemeral *btcec.PublicKey
}

// ecdhAndMixKey performs an ECDH operation between priv and pub, and then
// mixes the resulting shared secret into the current chaining key.
func (b *handshakeState) ecdhAndMixKey(priv keychain.SingleKeyECDH,
	pub *btcec.PublicKey) error {

	sharedSecret, err := priv.ECDH(pub)
	if err != nil {
		return err
	}

	b.mixKey(sharedSecret[:])

	return nil
}

// initialize sets up the per-handshake symmetric state, mixing in the
// chosen protocol name followed by the "lightning" prologue shared by both
// the initiator and responder.
func (b *handshakeState) initialize() {
	b.InitializeSymmetric([]byte(protocolName))
	b.mixHash([]byte("lightning"))

	// In BOLT #8, the initiator is expected to mix in the responder's
	// static public key, and vice versa, before any message is
	// exchanged.
	if b.initiator {
		b.mixHash(b.remoteStatic.SerializeCompressed())
	} else {
		b.mixHash(b.localStatic.PubKey().SerializeCompressed())
	}
}

// ephemeralGenerator generates a new ephemeral keypair for use within the
// handshake. By default this generates a new key from the system's CSPRNG
// source, but it may be substituted in order to inject deterministic keys
// for testing purposes.
type ephemeralGenerator func() (*btcec.PrivateKey, error)

func generateEphemeral() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// Machine is a state machine which implements the BOLT #8 handshake
// protocol. Once the handshake has been completed successfully, both sides
// will have a split pair of cipherState objects which are used to encrypt
// and decrypt messages sent and received over the connection.
type Machine struct {
	handshakeState

	// ephemeralGen produces the ephemeral keypairs used during the
	// handshake for both the initiator and responder.
	ephemeralGen ephemeralGenerator

	// sendCipher is the cipherState used to encrypt messages bound for
	// the remote peer.
	sendCipher cipherState

	// recvCipher is the cipherState used to decrypt messages received
	// from the remote peer.
	recvCipher cipherState

	// nextCipherHeader holds the remaining, not-yet-written bytes of the
	// next message's encrypted length header, used to resume a partial
	// write after a timeout. Empty once the header has been fully
	// flushed.
	nextCipherHeader []byte

	// nextCipherText holds the remaining, not-yet-written bytes of the
	// payload currently buffered for writing.
	nextCipherText []byte

	// nextPayloadLeft tracks how many of the bytes still pending in
	// nextCipherText belong to the plaintext payload rather than its
	// trailing MAC, so that Flush can report a byte count in terms of
	// the caller's original message even when a write straddles the
	// payload/MAC boundary.
	nextPayloadLeft int
}

// Option is a functional option which may be used to modify the behavior of
// a freshly created Machine, most commonly to inject a deterministic
// ephemeral key generator for testing.
type Option func(*Machine)

// EphemeralGenerator returns an Option which overrides the default
// CSPRNG-backed ephemeral key generation with the passed generator
// function.
func EphemeralGenerator(gen func() (*btcec.PrivateKey, error)) Option {
	return func(m *Machine) {
		m.ephemeralGen = gen
	}
}

// NewBrontideMachine creates a new instance of the brontide state-machine.
// If the initiator flag is true, then the machine is initialized with the
// necessary state to initiate the three act handshake. Otherwise, the
// machine is initialized to react to an initiation message from the
// initiator.
func NewBrontideMachine(initiator bool, localKey keychain.SingleKeyECDH,
	remotePub *btcec.PublicKey, options ...Option) *Machine {

	handshake := handshakeState{
		initiator:    initiator,
		localStatic:  localKey,
		remoteStatic: remotePub,
	}

	m := &Machine{
		handshakeState: handshake,
		ephemeralGen:   generateEphemeral,
	}

	for _, option := range options {
		option(m)
	}

	m.initialize()

	return m
}

// GenActOne generates the initial packet (act one) to be sent from
// initiator to responder. During act one, the initiator generates a fresh
// ephemeral key, hashes it into the handshake digest, and performs an ECDH
// between this fresh key and the responder's static key.
func (b *Machine) GenActOne() ([ActOneSize]byte, error) {
	var actOne [ActOneSize]byte

	// e
	localEphemeral, err := b.ephemeralGen()
	if err != nil {
		return actOne, err
	}
	b.localEphemeral = &keychain.PrivKeyECDH{PrivKey: localEphemeral}

	ephemeral := b.localEphemeral.PubKey().SerializeCompressed()
	b.mixHash(ephemeral)

	// es
	if err := b.ecdhAndMixKey(b.localEphemeral, b.remoteStatic); err != nil {
		return actOne, err
	}

	authPayload := b.EncryptAndHash([]byte{})

	actOne[0] = handshakeVersion
	copy(actOne[1:34], ephemeral)
	copy(actOne[34:], authPayload)

	return actOne, nil
}

// RecvActOne processes the act one packet sent by the initiator. The
// responder extracts the initiator's ephemeral key, verifies the
// authenticating tag, and performs an ECDH between the extracted ephemeral
// key and its own static key.
func (b *Machine) RecvActOne(actOne [ActOneSize]byte) error {
	var (
		e   [33]byte
		p   [16]byte
	)

	// Split the act one payload into its components.
	copy(e[:], actOne[1:34])
	copy(p[:], actOne[34:])

	if actOne[0] != handshakeVersion {
		return fmt.Errorf("act one: invalid handshake version: %v, "+
			"only "+"%v is valid, msg=%x", actOne[0],
			handshakeVersion, actOne[:])
	}

	remoteEphemeral, err := btcec.ParsePubKey(e[:])
	if err != nil {
		return err
	}
	b.remoteEphemeral = remoteEphemeral

	b.mixHash(b.remoteEphemeral.SerializeCompressed())

	// es
	if err := b.ecdhAndMixKey(b.localStatic, b.remoteEphemeral); err != nil {
		return err
	}

	_, err = b.DecryptAndHash(p[:])
	return err
}

// GenActTwo generates the second act of the handshake, sent by the
// responder back to the initiator. The responder generates a fresh
// ephemeral key, mixes it into the running digest, and performs an ECDH
// between this key and the initiator's ephemeral key from act one.
func (b *Machine) GenActTwo() ([ActTwoSize]byte, error) {
	var actTwo [ActTwoSize]byte

	// e
	localEphemeral, err := b.ephemeralGen()
	if err != nil {
		return actTwo, err
	}
	b.localEphemeral = &keychain.PrivKeyECDH{PrivKey: localEphemeral}

	ephemeral := b.localEphemeral.PubKey().SerializeCompressed()
	b.mixHash(ephemeral)

	// ee
	if err := b.ecdhAndMixKey(b.localEphemeral, b.remoteEphemeral); err != nil {
		return actTwo, err
	}

	authPayload := b.EncryptAndHash([]byte{})

	actTwo[0] = handshakeVersion
	copy(actTwo[1:34], ephemeral)
	copy(actTwo[34:], authPayload)

	return actTwo, nil
}

// RecvActTwo processes the second act of the handshake from the initiator's
// perspective. It extracts the responder's ephemeral key, verifies the
// authenticating tag, and performs the matching ECDH operation.
func (b *Machine) RecvActTwo(actTwo [ActTwoSize]byte) error {
	var (
		e [33]byte
		p [16]byte
	)

	copy(e[:], actTwo[1:34])
	copy(p[:], actTwo[34:])

	if actTwo[0] != handshakeVersion {
		return fmt.Errorf("act two: invalid handshake version: %v, "+
			"only %v is valid, msg=%x", actTwo[0],
			handshakeVersion, actTwo[:])
	}

	remoteEphemeral, err := btcec.ParsePubKey(e[:])
	if err != nil {
		return err
	}
	b.remoteEphemeral = remoteEphemeral

	b.mixHash(b.remoteEphemeral.SerializeCompressed())

	// ee
	if err := b.ecdhAndMixKey(b.localEphemeral, b.remoteEphemeral); err != nil {
		return err
	}

	_, err = b.DecryptAndHash(p[:])
	return err
}

// GenActThree generates the final act of the handshake, sent by the
// initiator. The initiator's static public key is encrypted and sent to the
// responder, authenticated against the current digest, followed by a final
// ECDH between the two static keys which seeds the final split into a pair
// of symmetric encryption keys.
func (b *Machine) GenActThree() ([ActThreeSize]byte, error) {
	var actThree [ActThreeSize]byte

	ourPubkey := b.localStatic.PubKey().SerializeCompressed()
	ciphertext := b.EncryptAndHash(ourPubkey)

	if err := b.ecdhAndMixKey(b.localStatic, b.remoteEphemeral); err != nil {
		return actThree, err
	}

	authPayload := b.EncryptAndHash([]byte{})

	actThree[0] = handshakeVersion
	copy(actThree[1:50], ciphertext)
	copy(actThree[50:], authPayload)

	b.split()

	return actThree, nil
}

// RecvActThree processes the final act of the handshake, sent by the
// initiator. The responder decrypts the initiator's static public key,
// completes the final ECDH, and verifies the closing authenticating tag.
func (b *Machine) RecvActThree(actThree [ActThreeSize]byte) error {
	var (
		s [33 + 16]byte
		p [16]byte
	)

	copy(s[:], actThree[1:50])
	copy(p[:], actThree[50:])

	if actThree[0] != handshakeVersion {
		return fmt.Errorf("act three: invalid handshake version: %v, "+
			"only %v is valid, msg=%x", actThree[0],
			handshakeVersion, actThree[:])
	}

	remotePub, err := b.DecryptAndHash(s[:])
	if err != nil {
		return err
	}
	remoteStatic, err := btcec.ParsePubKey(remotePub)
	if err != nil {
		return err
	}
	b.remoteStatic = remoteStatic

	if err := b.ecdhAndMixKey(b.localEphemeral, b.remoteStatic); err != nil {
		return err
	}

	if _, err := b.DecryptAndHash(p[:]); err != nil {
		return err
	}

	b.split()

	return nil
}

// split is the final wrap-up act, invoked once the handshake is complete,
// deriving the final pair of sending and receiving ciphers that will be
// used to encrypt and decrypt messages for the duration of the session.
func (b *Machine) split() {
	var (
		empty   []byte
		sendKey [32]byte
		recvKey [32]byte
	)

	h := hkdf.New(sha256.New, empty, b.chainingKey[:], empty)

	// If we're the initiator, the first 32 bytes are used as our
	// sending key, and the subsequent 32 bytes are used for the
	// receiving key. If we're the responder, it's the opposite.
	if b.initiator {
		h.Read(sendKey[:])
		h.Read(recvKey[:])
	} else {
		h.Read(recvKey[:])
		h.Read(sendKey[:])
	}

	b.sendCipher = cipherState{}
	b.sendCipher.InitializeKeyWithSalt(b.chainingKey, sendKey)

	b.recvCipher = cipherState{}
	b.recvCipher.InitializeKeyWithSalt(b.chainingKey, recvKey)
}

// WriteMessage encrypts and buffers the next message to write across the
// wire. Only one message may be buffered at a time: a caller must Flush the
// prior message before calling WriteMessage again.
func (b *Machine) WriteMessage(payload []byte) error {
	if len(payload) > math.MaxUint16 {
		return ErrMaxMessageLengthExceeded
	}

	if len(b.nextCipherText) != 0 {
		return fmt.Errorf("prior message not yet fully flushed")
	}

	var pktLen [2]byte
	binary.BigEndian.PutUint16(pktLen[:], uint16(len(payload)))

	b.nextCipherHeader = b.sendCipher.Encrypt(nil, nil, pktLen[:])
	b.nextCipherText = b.sendCipher.Encrypt(nil, nil, payload)
	b.nextPayloadLeft = len(payload)

	return nil
}

// Flush attempts to write the buffered encrypted message, if any, to the
// passed io.Writer. If a write deadline is hit mid-flush, Flush can be
// safely called again to resume writing the remainder of the message.
func (b *Machine) Flush(w io.Writer) (int, error) {
	// First, write out the header, which may have been partially
	// flushed on a prior call.
	if len(b.nextCipherHeader) != 0 {
		n, err := w.Write(b.nextCipherHeader)
		b.nextCipherHeader = b.nextCipherHeader[n:]
		if err != nil {
			return 0, err
		}
	}

	// The header hasn't been fully written; nothing further to do yet.
	if len(b.nextCipherHeader) != 0 {
		return 0, nil
	}

	if len(b.nextCipherText) == 0 {
		return 0, nil
	}

	n, err := w.Write(b.nextCipherText)
	b.nextCipherText = b.nextCipherText[n:]

	payloadWritten := n
	if payloadWritten > b.nextPayloadLeft {
		payloadWritten = b.nextPayloadLeft
	}
	b.nextPayloadLeft -= payloadWritten

	return payloadWritten, err
}

// ReadMessage attempts to read the next full message from the passed
// io.Reader. A full message consists of an encrypted 2-byte length header,
// followed by an encrypted payload of that length, terminated by the
// payload's own authentication tag.
func (b *Machine) ReadMessage(r io.Reader) ([]byte, error) {
	var pktLenHeader [lengthHeaderSize + macSize]byte
	if _, err := io.ReadFull(r, pktLenHeader[:]); err != nil {
		return nil, err
	}

	pktLenBytes, err := b.recvCipher.Decrypt(nil, nil, pktLenHeader[:])
	if err != nil {
		return nil, err
	}
	pktLen := binary.BigEndian.Uint16(pktLenBytes)

	cipherPayload := make([]byte, int(pktLen)+macSize)
	if _, err := io.ReadFull(r, cipherPayload); err != nil {
		return nil, err
	}

	return b.recvCipher.Decrypt(nil, nil, cipherPayload)
}

package noise

import (
	"io"
	"net"

	"github.com/22388o/lightning-kmp/keychain"
)

// BanFunc decides, given a remote address, whether a would-be peer should be
// refused a handshake outright, before any cryptographic work is performed.
type BanFunc func(addr net.Addr) (bool, error)

// DisabledBanClosure is a BanFunc that never bans a connecting peer.
func DisabledBanClosure(net.Addr) (bool, error) {
	return false, nil
}

// Listener is an implementation of net.Listener which executes an
// authenticated key exchange and message encryption protocol dubbed "Noise"
// after initial connection acceptance. See the Machine struct for additional
// details w.r.t the handshake and encryption scheme used within the
// connection.
type Listener struct {
	localStatic keychain.SingleKeyECDH

	tcp *net.TCPListener

	shouldBan BanFunc
}

// A compile-time assertion to ensure that Listener meets the net.Listener
// interface.
var _ net.Listener = (*Listener)(nil)

// NewListener returns a new net.Listener which enforces the noise scheme
// during both initial connection establishment and data transfer.
func NewListener(localStatic keychain.SingleKeyECDH, listenAddr string,
	shouldBan BanFunc) (*Listener, error) {

	addr, err := net.ResolveTCPAddr("tcp", listenAddr)
	if err != nil {
		return nil, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Listener{
		localStatic: localStatic,
		tcp:         l,
		shouldBan:   shouldBan,
	}, nil
}

// Accept waits for and returns the next connection to the listener. All
// incoming connections are authenticated via the three act noise
// key-exchange scheme. This function will fail with a non-nil error in the
// case that either the handshake breaks down, or the remote peer doesn't
// know our static public key.
//
// Part of the net.Listener interface.
func (l *Listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.tcp.Accept()
		if err != nil {
			return nil, err
		}

		banned, err := l.shouldBan(conn.RemoteAddr())
		if err != nil {
			conn.Close()
			return nil, err
		}
		if banned {
			conn.Close()
			continue
		}

		return l.handshake(conn)
	}
}

// handshake drives the responder side of the three-act noise handshake over
// the freshly accepted TCP connection.
func (l *Listener) handshake(conn net.Conn) (net.Conn, error) {
	noiseConn := &Conn{
		conn:  conn,
		noise: NewBrontideMachine(false, l.localStatic, nil),
	}

	// Attempt to carry out the first act of the handshake protocol. If
	// the connecting node doesn't know our long-term static public key,
	// then this portion will fail with a non-nil error.
	var actOne [ActOneSize]byte
	if _, err := io.ReadFull(conn, actOne[:]); err != nil {
		conn.Close()
		return nil, err
	}
	if err := noiseConn.noise.RecvActOne(actOne); err != nil {
		conn.Close()
		return nil, err
	}

	// Next, progress the handshake by sending over our ephemeral key for
	// the session along with an authenticating tag.
	actTwo, err := noiseConn.noise.GenActTwo()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(actTwo[:]); err != nil {
		conn.Close()
		return nil, err
	}

	// Finally, finish the handshake by reading and decrypting the
	// connecting peer's static public key. If this succeeds then both
	// sides have mutually authenticated each other.
	var actThree [ActThreeSize]byte
	if _, err := io.ReadFull(conn, actThree[:]); err != nil {
		conn.Close()
		return nil, err
	}
	if err := noiseConn.noise.RecvActThree(actThree); err != nil {
		conn.Close()
		return nil, err
	}

	return noiseConn, nil
}

// Close closes the listener.  Any blocked Accept operations will be
// unblocked and return errors.
//
// Part of the net.Listener interface.
func (l *Listener) Close() error {
	return l.tcp.Close()
}

// Addr returns the listener's network address.
//
// Part of the net.Listener interface.
func (l *Listener) Addr() net.Addr {
	return l.tcp.Addr()
}

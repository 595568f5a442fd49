package tlsutil

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"
)

// MuxListener accepts on one port and splits connections into TLS and
// plaintext streams by sniffing the first byte, so the server can
// answer both https and http clients on the same address.
type MuxListener struct {
	inner     net.Listener
	tlsConfig *tls.Config

	plainConns chan net.Conn
	tlsConns   chan net.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMuxListener wraps inner and starts routing accepted connections
func NewMuxListener(inner net.Listener, tlsConfig *tls.Config) *MuxListener {
	ml := &MuxListener{
		inner:      inner,
		tlsConfig:  tlsConfig,
		plainConns: make(chan net.Conn, 128),
		tlsConns:   make(chan net.Conn, 128),
		closed:     make(chan struct{}),
	}

	go ml.acceptLoop()

	return ml
}

func (ml *MuxListener) acceptLoop() {
	for {
		conn, err := ml.inner.Accept()
		if err != nil {
			select {
			case <-ml.closed:
				return
			default:
				continue
			}
		}
		go ml.route(conn)
	}
}

// route sniffs the first byte. A TLS ClientHello always starts with
// record type 0x16.
func (ml *MuxListener) route(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	first := make([]byte, 1)
	n, err := conn.Read(first)
	conn.SetReadDeadline(time.Time{})

	if err != nil || n == 0 {
		conn.Close()
		return
	}

	sniffed := &sniffedConn{Conn: conn, buffered: first[:n]}

	if first[0] == 0x16 {
		ml.deliver(ml.tlsConns, tls.Server(sniffed, ml.tlsConfig))
	} else {
		ml.deliver(ml.plainConns, sniffed)
	}
}

func (ml *MuxListener) deliver(target chan net.Conn, conn net.Conn) {
	select {
	case target <- conn:
	case <-ml.closed:
		conn.Close()
	}
}

// PlainListener returns the listener carrying plaintext connections
func (ml *MuxListener) PlainListener() net.Listener {
	return &streamListener{conns: ml.plainConns, closed: ml.closed, addr: ml.inner.Addr()}
}

// TLSListener returns the listener carrying TLS connections
func (ml *MuxListener) TLSListener() net.Listener {
	return &streamListener{conns: ml.tlsConns, closed: ml.closed, addr: ml.inner.Addr()}
}

// Close stops accepting and closes the underlying listener
func (ml *MuxListener) Close() error {
	ml.closeOnce.Do(func() {
		close(ml.closed)
	})
	return ml.inner.Close()
}

// Addr returns the underlying listener's address
func (ml *MuxListener) Addr() net.Addr {
	return ml.inner.Addr()
}

// sniffedConn replays the sniffed byte before the remaining stream
type sniffedConn struct {
	net.Conn
	buffered []byte
}

func (c *sniffedConn) Read(b []byte) (int, error) {
	if len(c.buffered) > 0 {
		n := copy(b, c.buffered)
		c.buffered = c.buffered[n:]
		return n, nil
	}
	return c.Conn.Read(b)
}

// streamListener exposes one side of the split as a net.Listener
type streamListener struct {
	conns  chan net.Conn
	closed chan struct{}
	addr   net.Addr
}

func (sl *streamListener) Accept() (net.Conn, error) {
	select {
	case conn := <-sl.conns:
		return conn, nil
	case <-sl.closed:
		return nil, io.EOF
	}
}

func (sl *streamListener) Close() error {
	// Lifecycle is owned by the MuxListener
	return nil
}

func (sl *streamListener) Addr() net.Addr {
	return sl.addr
}

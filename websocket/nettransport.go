package websocket

import (
	"bufio"
	"net"
	"sync"
)

const netTransportReadBufferSize = 4096

// NetTransport adapts a net.Conn to the Transport interface with a
// background read loop, mirroring the buffered-reader/writer split this
// codebase has always used for socket I/O, generalized from a blocking
// Read/Write pair into delegate callbacks.
//
// The read loop does not start until SetDataReceivedDelegate is first
// called, so bytes can never arrive before there is somewhere for them
// to go; a handshake method calls it (via bindTransport) before
// returning success.
type NetTransport struct {
	conn    net.Conn
	writer  *bufio.Writer
	pending *bufio.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	startOnce sync.Once
	closed    bool
	closeMu   sync.RWMutex

	onData   func(data []byte)
	onBroken func(graceful bool)
}

// NewNetTransport wraps conn for use as a fresh Transport with nothing
// read from it yet.
func NewNetTransport(conn net.Conn) *NetTransport {
	return newNetTransportOverReader(conn, bufio.NewReaderSize(conn, netTransportReadBufferSize))
}

// newNetTransportOverReader builds a NetTransport whose read loop
// continues from an existing bufio.Reader rather than reading straight
// off conn — used whenever some other code (the net/http server, or an
// http.Response parse on the client side) may have already buffered
// bytes belonging to the WebSocket stream.
func newNetTransportOverReader(conn net.Conn, pending *bufio.Reader) *NetTransport {
	return &NetTransport{
		conn:    conn,
		writer:  bufio.NewWriterSize(conn, netTransportReadBufferSize),
		pending: pending,
	}
}

func (t *NetTransport) readLoop() {
	buf := make([]byte, netTransportReadBufferSize)
	for {
		n, err := t.pending.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.closeMu.RLock()
			onData := t.onData
			t.closeMu.RUnlock()
			if onData != nil {
				onData(chunk)
			}
		}
		if err != nil {
			t.teardown(false)
			return
		}
	}
}

// SendData implements Transport.
func (t *NetTransport) SendData(data []byte) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return
	}
	_ = t.writer.Flush()
}

// SetDataReceivedDelegate implements Transport. The first call starts
// the background read loop.
func (t *NetTransport) SetDataReceivedDelegate(fn func(data []byte)) {
	t.closeMu.Lock()
	t.onData = fn
	t.closeMu.Unlock()
	t.startOnce.Do(func() { go t.readLoop() })
}

// SetBrokenDelegate implements Transport.
func (t *NetTransport) SetBrokenDelegate(fn func(graceful bool)) {
	t.closeMu.Lock()
	t.onBroken = fn
	t.closeMu.Unlock()
}

// Break implements Transport. When clean is true and the underlying
// conn supports it, the write side is shut down first (CloseWrite) so
// the peer observes an orderly TCP FIN; the conn is then fully closed
// by teardown either way.
func (t *NetTransport) Break(clean bool) {
	if clean {
		if halfCloser, ok := t.conn.(interface{ CloseWrite() error }); ok {
			_ = halfCloser.CloseWrite()
			t.teardown(true)
			return
		}
	}
	_ = t.conn.Close()
	t.teardown(clean)
}

// teardown runs at most once per transport. The broken delegate is
// always invoked on a new goroutine: Break can be called by the engine
// while it holds its own lock, and the delegate it's about to invoke
// needs that same lock back.
func (t *NetTransport) teardown(graceful bool) {
	t.closeOnce.Do(func() {
		t.closeMu.Lock()
		t.closed = true
		onBroken := t.onBroken
		t.closeMu.Unlock()
		_ = t.conn.Close()
		if onBroken != nil {
			go onBroken(graceful)
		}
	})
}

// GetPeerId implements Transport, returning the remote address.
func (t *NetTransport) GetPeerId() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

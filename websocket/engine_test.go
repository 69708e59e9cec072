package websocket

import (
	"bytes"
	"sync"
	"testing"
)

// pipeTransport is an in-memory Transport whose deliveries to a paired
// peer (both SendData and the broken notification) run through a single
// ordered inbox, mirroring two properties a real socket gives for free:
// a caller inside SendData never observes its own delegate invoked back
// on the same stack, and data sent before a Break is always delivered
// to the peer before that peer learns the transport broke (TCP
// preserves ordering between a payload and a later FIN). Without the
// shared inbox, SendData's and Break's independent goroutines could
// reorder and the peer could see "broken" before the bytes that
// preceded it.
type pipeTransport struct {
	mu       sync.Mutex
	peer     *pipeTransport
	onData   func([]byte)
	onBroken func(bool)
	broken   bool
	inbox    chan func()
}

func newPipe() (a, b *pipeTransport) {
	a = &pipeTransport{inbox: make(chan func(), 64)}
	b = &pipeTransport{inbox: make(chan func(), 64)}
	a.peer, b.peer = b, a
	go a.drain()
	go b.drain()
	return a, b
}

// drain runs the single goroutine that invokes this transport's own
// delegates, so everything queued for it (data, then later a broken
// notification) is delivered in the order it was queued.
func (t *pipeTransport) drain() {
	for fn := range t.inbox {
		fn()
	}
}

func (t *pipeTransport) SendData(data []byte) {
	t.mu.Lock()
	peer := t.peer
	t.mu.Unlock()
	if peer == nil {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	peer.inbox <- func() {
		peer.mu.Lock()
		onData := peer.onData
		peer.mu.Unlock()
		if onData != nil {
			onData(cp)
		}
	}
}

func (t *pipeTransport) SetDataReceivedDelegate(fn func([]byte)) {
	t.mu.Lock()
	t.onData = fn
	t.mu.Unlock()
}

func (t *pipeTransport) SetBrokenDelegate(fn func(bool)) {
	t.mu.Lock()
	t.onBroken = fn
	t.mu.Unlock()
}

// Break mirrors NetTransport's contract: the broken delegate always
// fires off-stack, since Break can be called by the engine while it
// holds the very lock that delegate needs back. The peer's notification
// goes through its inbox so it lands after any data queued ahead of it.
func (t *pipeTransport) Break(clean bool) {
	t.mu.Lock()
	if t.broken {
		t.mu.Unlock()
		return
	}
	t.broken = true
	onBroken := t.onBroken
	peer := t.peer
	t.mu.Unlock()
	if onBroken != nil {
		go onBroken(clean)
	}
	if peer != nil {
		peer.inbox <- func() {
			peer.mu.Lock()
			alreadyBroken := peer.broken
			peer.broken = true
			peerOnBroken := peer.onBroken
			peer.mu.Unlock()
			if !alreadyBroken && peerOnBroken != nil {
				peerOnBroken(clean)
			}
		}
	}
}

func (t *pipeTransport) GetPeerId() string { return "pipe" }

func newEnginePair() (client, server *Engine) {
	clientTransport, serverTransport := newPipe()
	client = New()
	server = New()
	client.mu.Lock()
	client.bindTransport(clientTransport, RoleClient)
	client.mu.Unlock()
	server.mu.Lock()
	server.bindTransport(serverTransport, RoleServer)
	server.mu.Unlock()
	return client, server
}

// TestEngine_SendTextUnfragmented checks a complete text message sent by
// one engine is delivered to the other's OnText delegate.
func TestEngine_SendTextUnfragmented(t *testing.T) {
	client, server := newEnginePair()

	var got string
	done := make(chan struct{})
	server.SetDelegates(Delegates{OnText: func(data []byte) { got = string(data); close(done) }})

	client.SendText([]byte("hello"), true)
	<-done

	if got != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}
}

// TestEngine_SendTextFragmented checks a message split across two
// SendText calls (last=false then last=true) reassembles correctly.
func TestEngine_SendTextFragmented(t *testing.T) {
	client, server := newEnginePair()

	var got string
	done := make(chan struct{})
	server.SetDelegates(Delegates{OnText: func(data []byte) { got = string(data); close(done) }})

	client.SendText([]byte("hello "), false)
	client.SendText([]byte("world"), true)
	<-done

	if got != "hello world" {
		t.Fatalf("expected 'hello world', got %q", got)
	}
}

// TestEngine_PingAutoPong checks a received Ping both fires OnPing and
// automatically sends a Pong echoing the payload (RFC 6455 Section 5.5.2).
func TestEngine_PingAutoPong(t *testing.T) {
	client, server := newEnginePair()

	var pingSeen []byte
	server.SetDelegates(Delegates{OnPing: func(data []byte) { pingSeen = data }})

	var pongSeen []byte
	var wg sync.WaitGroup
	wg.Add(1)
	client.SetDelegates(Delegates{OnPong: func(data []byte) { pongSeen = data; wg.Done() }})

	client.Ping([]byte("are you there"))
	wg.Wait()

	if string(pingSeen) != "are you there" {
		t.Errorf("expected server to observe ping payload, got %q", pingSeen)
	}
	if string(pongSeen) != "are you there" {
		t.Errorf("expected client to receive echoed pong, got %q", pongSeen)
	}
}

// TestEngine_CloseHandshake checks a locally initiated Close round-trips:
// both sides see a Close event and the transport is torn down.
func TestEngine_CloseHandshake(t *testing.T) {
	client, server := newEnginePair()

	var clientCode, serverCode CloseCode
	var wg sync.WaitGroup
	wg.Add(2)
	client.SetDelegates(Delegates{OnClose: func(code CloseCode, _ string) { clientCode = code; wg.Done() }})
	server.SetDelegates(Delegates{OnClose: func(code CloseCode, _ string) { serverCode = code; wg.Done() }})

	client.Close(CloseNormalClosure, "done")
	wg.Wait()

	if serverCode != CloseNormalClosure {
		t.Errorf("expected server to see CloseNormalClosure, got %d", serverCode)
	}
	if clientCode != CloseNormalClosure {
		t.Errorf("expected client to see its own close code echoed back, got %d", clientCode)
	}
}

// TestEngine_InvalidUTF8ClosesWithProtocolError checks a text message
// with invalid UTF-8 triggers a failure close with code 1007.
func TestEngine_InvalidUTF8ClosesWithProtocolError(t *testing.T) {
	client, server := newEnginePair()

	var serverCode CloseCode
	var wg sync.WaitGroup
	wg.Add(1)
	server.SetDelegates(Delegates{OnClose: func(code CloseCode, _ string) { serverCode = code; wg.Done() }})
	client.SetDelegates(Delegates{})

	raw, err := encodeFrame(opcodeText, true, []byte{0xFF, 0xFE}, RoleClient, zeroReader{})
	if err != nil {
		t.Fatalf("encodeFrame failed: %v", err)
	}
	client.transport.SendData(raw)
	wg.Wait()

	if serverCode != CloseInvalidFramePayloadData {
		t.Errorf("expected close 1007, got %d", serverCode)
	}
}

// TestEngine_MaxFrameSize checks a MaxFrameSize set through Configure
// before a transport is bound triggers a 1009 close once exceeded.
func TestEngine_MaxFrameSize(t *testing.T) {
	clientTransport, serverTransport := newPipe()
	client := New()
	server := New()
	server.Configure(Config{MaxFrameSize: 4})

	client.mu.Lock()
	client.bindTransport(clientTransport, RoleClient)
	client.mu.Unlock()
	server.mu.Lock()
	server.bindTransport(serverTransport, RoleServer)
	server.mu.Unlock()

	var serverCode CloseCode
	var wg sync.WaitGroup
	wg.Add(1)
	server.SetDelegates(Delegates{OnClose: func(code CloseCode, _ string) { serverCode = code; wg.Done() }})

	client.SendText(bytes.Repeat([]byte{'x'}, 64), true)
	wg.Wait()

	if serverCode != CloseMessageTooBig {
		t.Errorf("expected close 1009, got %d", serverCode)
	}
}

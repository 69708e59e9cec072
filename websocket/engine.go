package websocket

import (
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"weak"

	"github.com/eapache/queue"
)

// Config is the engine's mutable-before-Open configuration (spec's
// Configuration entity). MaxFrameSize bounds the Reassembly Buffer's
// accumulated bytes; 0 means unlimited.
type Config struct {
	MaxFrameSize int
}

// Engine is the WebSocket protocol engine (spec §2's Public Façade plus
// everything it sits on). It owns no socket of its own: a handshake
// method binds a Transport, after which byte deliveries drive Events out
// through installed Delegates, and façade calls drive framed bytes back
// out through the Transport.
//
// All EngineState access is guarded by mu, a single non-reentrant mutex.
// The one place re-entrancy would otherwise be required — a delegate
// calling back into the engine from inside a dispatch — is handled by
// never holding mu while a delegate runs (see events.go's dispatch).
type Engine struct {
	mu sync.Mutex

	role      Role
	roleSet   bool
	transport Transport
	open      bool
	torndown  bool

	cfg Config

	reassembler *reassembler
	closeM      closeState
	closeEvent  bool

	sending       dataKind
	receiving     dataKind
	messageBuffer []byte

	key string // client's Sec-WebSocket-Key, held for response validation

	events    *queue.Queue
	delegates *Delegates

	sink     Sink
	minLevel slog.Level

	rand io.Reader
}

// New returns an unbound engine. Call one of StartOpenAsClient /
// FinishOpenAsClient or OpenAsServer to bind it to a Transport before
// using the rest of the façade.
func New() *Engine {
	return &Engine{
		events: newEventQueue(),
		sink:   NopSink{},
		rand:   rand.Reader,
	}
}

// Configure replaces the configuration atomically. Per the spec, this is
// only meaningful before a transport is bound; once Open, the call is
// silently ignored rather than returning an error, consistent with the
// rest of the façade's defensive-not-punitive posture.
func (e *Engine) Configure(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transport != nil {
		return
	}
	e.cfg = cfg
}

// SetDelegates installs the application's callback table and drains any
// events that arrived before delegates were available.
func (e *Engine) SetDelegates(d Delegates) {
	e.mu.Lock()
	e.delegates = &d
	e.mu.Unlock()
	e.dispatch()
}

// SubscribeToDiagnostics installs a diagnostics sink. Only messages at
// minLevel or above are forwarded.
func (e *Engine) SubscribeToDiagnostics(sink Sink, minLevel slog.Level) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sink == nil {
		sink = NopSink{}
	}
	e.sink = sink
	e.minLevel = minLevel
}

// Ping sends a ping control frame. Per spec §4.7, it is a silent no-op if
// there is no open connection, the connection is closed, or the payload
// exceeds 125 bytes.
func (e *Engine) Ping(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendControl(opcodePing, data)
}

// Pong sends a pong control frame, same constraints as Ping.
func (e *Engine) Pong(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendControl(opcodePong, data)
}

func (e *Engine) sendControl(opcode byte, data []byte) {
	if !e.canSend() {
		return
	}
	if len(data) > maxControlPayload {
		e.diagnostic(slog.LevelDebug, "dropping oversize control frame", "opcode", opcode, "len", len(data))
		return
	}
	e.writeFrame(opcode, true, data)
}

// SendText sends (or continues) a text message. last marks the final
// fragment (FIN=1). Silently ignored if closed, unbound, or if a binary
// send is already in progress.
func (e *Engine) SendText(data []byte, last bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendData(dataText, data, last)
}

// SendBinary sends (or continues) a binary message, symmetric to SendText.
func (e *Engine) SendBinary(data []byte, last bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendData(dataBinary, data, last)
}

func (e *Engine) sendData(kind dataKind, data []byte, last bool) {
	if !e.canSend() {
		return
	}
	opposite := dataText
	if kind == dataText {
		opposite = dataBinary
	}
	if e.sending == opposite {
		return
	}

	opcode := e.sendOpcode(kind)
	e.writeFrame(opcode, last, data)

	if last {
		e.sending = dataNone
	} else {
		e.sending = kind
	}
}

func (e *Engine) canSend() bool {
	return e.open && !e.closeM.sent
}

func (e *Engine) writeFrame(opcode byte, fin bool, payload []byte) {
	raw, err := encodeFrame(opcode, fin, payload, e.role, e.rand)
	if err != nil {
		e.diagnostic(slog.LevelError, "failed to encode outbound frame", "err", err)
		return
	}
	e.transport.SendData(raw)
}

// Close requests a normal local close (spec §4.7's public variant,
// fail=false). Repeated calls after the first are no-ops.
func (e *Engine) Close(code CloseCode, reason string) {
	e.mu.Lock()
	e.localClose(code, reason, false)
	e.mu.Unlock()
	e.dispatch()
}

// localClose implements the close state machine's local-initiation path
// (spec §4.4). Callers must hold e.mu.
func (e *Engine) localClose(code CloseCode, reason string, fail bool) {
	if !e.open || e.closeM.sent {
		return
	}

	if code != CloseAbnormalClosure {
		e.writeFrame(opcodeClose, true, buildClosePayload(code, reason))
	}
	e.closeM.sent = true

	if fail {
		e.emitCloseEvent(code, reason)
		e.breakTransport(false)
		return
	}

	if e.closeM.received {
		e.breakTransport(true)
	}
	// Otherwise awaiting the peer's close frame; the Close event (with
	// the peer's code) is emitted from handleReceivedClose.
}

// handleReceivedClose processes an inbound close frame (spec §4.4).
// Callers must hold e.mu.
func (e *Engine) handleReceivedClose(payload []byte) {
	code, reason, err := parseClosePayload(payload)
	if err != nil {
		pe := err.(*protocolError)
		e.diagnostic(slog.LevelWarn, "protocol error", "reason", pe.reason, "code", pe.code)
		e.localClose(pe.code, pe.reason, true)
		return
	}

	alreadySent := e.closeM.sent
	e.closeM.received = true

	if !alreadySent {
		// Must still send our own close frame before tearing down; this
		// call observes closeM.received already true and so breaks the
		// transport gracefully itself.
		e.localClose(code, "", false)
	} else {
		e.breakTransport(true)
	}

	e.emitCloseEvent(code, reason)
}

func (e *Engine) emitCloseEvent(code CloseCode, reason string) {
	if e.closeEvent {
		return
	}
	e.closeEvent = true
	e.enqueue(Event{Kind: EventClose, Code: code, Reason: reason})
}

func (e *Engine) breakTransport(clean bool) {
	if e.torndown {
		return
	}
	e.torndown = true
	e.transport.Break(clean)
}

// onTransportData is the Transport's data-received callback. It decodes
// as many frames as the new bytes complete, updates EngineState, queues
// Events, and — on a protocol violation — drives a failure close. It
// never invokes a delegate directly.
func (e *Engine) onTransportData(data []byte) {
	e.mu.Lock()

	frames, decodeErr := e.reassembler.append(data, e.cfg.MaxFrameSize)
	for _, f := range frames {
		if e.closeEvent {
			// The Close event is always the last one delivered: frames
			// that follow it are not processed.
			break
		}
		e.handleFrame(f)
	}
	if decodeErr != nil {
		pe := decodeErr.(*protocolError)
		e.diagnostic(slog.LevelWarn, "protocol error", "reason", pe.reason, "code", pe.code)
		e.localClose(pe.code, pe.reason, true)
	}

	e.mu.Unlock()
	e.dispatch()
}

// handleFrame dispatches one already-decoded frame to the control-frame
// handling, close state machine, or message assembler. Callers must hold
// e.mu.
func (e *Engine) handleFrame(f *wireFrame) {
	switch f.opcode {
	case opcodePing:
		e.writeFrame(opcodePong, true, f.payload)
		e.enqueue(Event{Kind: EventPing, Data: cloneBytes(f.payload)})
	case opcodePong:
		e.enqueue(Event{Kind: EventPong, Data: cloneBytes(f.payload)})
	case opcodeClose:
		e.handleReceivedClose(f.payload)
	default:
		if err := e.processDataFrame(f); err != nil {
			pe := err.(*protocolError)
			e.diagnostic(slog.LevelWarn, "protocol error", "reason", pe.reason, "code", pe.code)
			e.localClose(pe.code, pe.reason, true)
		}
	}
}

// onTransportBroken is the Transport's broken-delegate callback.
func (e *Engine) onTransportBroken(graceful bool) {
	_ = graceful // the spec distinguishes only the Close event's code, not the callback's own flag
	e.mu.Lock()
	if e.torndown {
		e.mu.Unlock()
		return
	}
	e.torndown = true
	e.emitCloseEvent(CloseAbnormalClosure, "")
	e.mu.Unlock()
	e.dispatch()
}

// bindTransport finishes a successful handshake: it records the
// transport, registers weak callbacks so the transport cannot keep the
// engine alive past the application's own reference to it, and marks
// the engine open. Callers must hold e.mu.
func (e *Engine) bindTransport(t Transport, role Role) {
	e.role = role
	e.roleSet = true
	e.reassembler = newReassembler(role)
	e.transport = t
	e.open = true

	weakEngine := weak.Make(e)
	t.SetDataReceivedDelegate(func(data []byte) {
		if eng := weakEngine.Value(); eng != nil {
			eng.onTransportData(data)
		}
	})
	t.SetBrokenDelegate(func(graceful bool) {
		if eng := weakEngine.Value(); eng != nil {
			eng.onTransportBroken(graceful)
		}
	})
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

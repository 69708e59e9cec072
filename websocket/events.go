package websocket

import "github.com/eapache/queue"

// EventKind tags which variant an Event carries. Event is modelled as a
// tagged sum with payload per variant rather than an interface
// hierarchy, per the engine's design notes.
type EventKind int

const (
	EventText EventKind = iota
	EventBinary
	EventPing
	EventPong
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventBinary:
		return "binary"
	case EventPing:
		return "ping"
	case EventPong:
		return "pong"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one application-visible occurrence produced by the decoder.
// Data is populated for Text/Binary/Ping/Pong; Code and Reason are
// populated for Close. If a Close event is ever delivered, it is
// guaranteed to be the last event this engine delivers.
type Event struct {
	Kind   EventKind
	Data   []byte
	Code   CloseCode
	Reason string
}

// Delegates are the application's callbacks for each Event variant. A
// missing delegate for a variant causes matching events to be dropped
// silently by the dispatcher, never queued forever or retried.
type Delegates struct {
	OnText   func(data []byte)
	OnBinary func(data []byte)
	OnPing   func(data []byte)
	OnPong   func(data []byte)
	OnClose  func(code CloseCode, reason string)
}

// dispatchOne invokes the delegate matching ev.Kind, if installed.
func (d Delegates) dispatchOne(ev Event) {
	switch ev.Kind {
	case EventText:
		if d.OnText != nil {
			d.OnText(ev.Data)
		}
	case EventBinary:
		if d.OnBinary != nil {
			d.OnBinary(ev.Data)
		}
	case EventPing:
		if d.OnPing != nil {
			d.OnPing(ev.Data)
		}
	case EventPong:
		if d.OnPong != nil {
			d.OnPong(ev.Data)
		}
	case EventClose:
		if d.OnClose != nil {
			d.OnClose(ev.Code, ev.Reason)
		}
	}
}

// enqueue pushes ev onto the event queue. Callers must hold e.mu.
func (e *Engine) enqueue(ev Event) {
	e.events.Add(ev)
}

// dispatch drains the event queue to the installed delegates, in order.
//
// It never calls a delegate while holding e.mu: it takes the lock only
// long enough to check that delegates are installed, move the entire
// queue into a local slice, and copy the delegate table, then releases
// the lock before invoking anything. This is what makes it safe for a
// delegate to call back into the engine synchronously (see engine.go's
// concurrency notes) without the engine's mutex needing to be
// reentrant.
func (e *Engine) dispatch() {
	e.mu.Lock()
	if e.delegates == nil {
		e.mu.Unlock()
		return
	}

	local := make([]Event, 0, e.events.Length())
	for e.events.Length() > 0 {
		local = append(local, e.events.Remove().(Event))
	}
	delegates := *e.delegates
	e.mu.Unlock()

	for _, ev := range local {
		delegates.dispatchOne(ev)
	}
}

func newEventQueue() *queue.Queue {
	return queue.New()
}

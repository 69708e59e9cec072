package websocket

// Transport is the external collaborator that owns the actual byte
// stream. The engine assumes exclusive ownership of the data-received
// and broken delegate slots from the moment a handshake method binds
// the transport until the transport is torn down.
//
// SendData must be reliable and ordered (a buffered TCP-like transport).
// It is invoked directly from engine methods while e.mu is held — any
// blocking inside SendData is confined there, never inside the engine
// itself (see the engine's concurrency notes).
type Transport interface {
	// SendData writes bytes to the peer.
	SendData(data []byte)

	// SetDataReceivedDelegate registers the callback invoked whenever
	// bytes arrive. Exactly one callback is ever registered by the
	// engine; implementations need not support multiple subscribers.
	SetDataReceivedDelegate(fn func(data []byte))

	// SetBrokenDelegate registers the callback invoked once the
	// transport is no longer usable, either because the engine asked it
	// to Break or because the peer/network did. graceful distinguishes
	// a clean shutdown from an abrupt one.
	SetBrokenDelegate(fn func(graceful bool))

	// Break tears the transport down. clean requests an orderly
	// shutdown (e.g. TCP FIN) as opposed to an immediate abort (e.g.
	// RST); both eventually invoke the broken delegate.
	//
	// The broken delegate must never be invoked synchronously from
	// within the call to Break: the engine calls Break while holding its
	// own lock, and that lock is exactly what the broken delegate needs
	// to re-acquire. Implementations must hand the delegate invocation
	// off to another goroutine.
	Break(clean bool)

	// GetPeerId identifies the remote end for diagnostics only.
	GetPeerId() string
}

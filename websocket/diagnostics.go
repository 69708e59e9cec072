package websocket

import (
	"context"
	"log/slog"
)

// Sink is an injectable diagnostics collector, analogous to the
// slog-compatible Logger interface used elsewhere in this codebase's
// lineage, but scoped to a single severity-gated Log call so the engine
// never depends on a global logger. peerID is whatever the bound
// Transport's GetPeerId returns when the message is emitted (empty
// before a transport is bound), threaded through so
// multi-connection callers can tell messages apart.
type Sink interface {
	Log(level slog.Level, peerID string, msg string, args ...any)
}

// NopSink discards every diagnostic. It is the default until
// SubscribeToDiagnostics is called.
type NopSink struct{}

func (NopSink) Log(slog.Level, string, string, ...any) {}

// SlogSink adapts a *slog.Logger to the Sink interface.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Log(level slog.Level, peerID string, msg string, args ...any) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if peerID != "" {
		args = append(args, "peer", peerID)
	}
	logger.Log(context.Background(), level, msg, args...)
}

// diagnostic emits msg through the installed sink if minLevel admits it.
// Callers must hold e.mu (the sink and level are part of EngineState).
func (e *Engine) diagnostic(level slog.Level, msg string, args ...any) {
	if e.sink == nil || level < e.minLevel {
		return
	}
	peerID := ""
	if e.transport != nil {
		peerID = e.transport.GetPeerId()
	}
	e.sink.Log(level, peerID, msg, args...)
}

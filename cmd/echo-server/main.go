// Command echo-server runs a WebSocket server that echoes every text
// and binary message back to its sender.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coregx/wsengine/websocket"
)

func handleConn(w http.ResponseWriter, r *http.Request) {
	e := websocket.New()
	e.SetDelegates(websocket.Delegates{
		OnText:   func(data []byte) { e.SendText(data, true) },
		OnBinary: func(data []byte) { e.SendBinary(data, true) },
		OnPing:   func(data []byte) { e.Pong(data) },
		OnClose:  func(code websocket.CloseCode, reason string) { slog.Debug("closed", "code", code, "reason", reason) },
	})

	if err := websocket.ServeHTTPUpgrade(e, w, r); err != nil {
		slog.Error("upgrade failed", "error", err)
		return
	}
}

func main() {
	addr := ":8080"
	if v := os.Getenv("ECHO_SERVER_ADDR"); v != "" {
		addr = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handleConn)

	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("echo-server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("echo-server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		slog.Error("echo-server exited with error", "error", err)
		os.Exit(1)
	}
}

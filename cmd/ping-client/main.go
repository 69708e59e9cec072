// Command ping-client dials a WebSocket server and pings it at a fixed
// interval until interrupted, logging every pong it receives.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coregx/wsengine/websocket"
)

func main() {
	addr := "127.0.0.1:8080"
	if v := os.Getenv("PING_CLIENT_ADDR"); v != "" {
		addr = v
	}

	e, err := websocket.DialClient(addr, addr, "/ws", http.Header{})
	if err != nil {
		slog.Error("dial failed", "error", err)
		os.Exit(1)
	}

	closed := make(chan struct{})
	e.SetDelegates(websocket.Delegates{
		OnPong: func(data []byte) { slog.Info("pong received", "payload", string(data)) },
		OnClose: func(code websocket.CloseCode, reason string) {
			slog.Info("connection closed", "code", code, "reason", reason)
			close(closed)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Ping([]byte(time.Now().Format(time.RFC3339)))
			case <-gctx.Done():
				e.Close(websocket.CloseNormalClosure, "client shutting down")
				return nil
			case <-closed:
				return nil
			}
		}
	})

	if err := group.Wait(); err != nil {
		slog.Error("ping-client exited with error", "error", err)
		os.Exit(1)
	}
}

// Command chat-server runs a WebSocket broadcast server: any text
// message a client sends is relayed to every connected client, the
// sender included, framed as a binary message (websocket.Hub always
// broadcasts binary frames), demonstrating websocket.Hub end to end.
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

func newHandler(hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e := websocket.New()
		e.SetDelegates(websocket.Delegates{
			OnText: func(data []byte) { hub.BroadcastText(string(data)) },
			OnClose: func(websocket.CloseCode, string) {
				hub.Unregister(e)
			},
		})

		if err := websocket.ServeHTTPUpgrade(e, w, r); err != nil {
			slog.Error("upgrade failed", "error", err)
			return
		}
		hub.Register(e)
		slog.Info("client joined", "peer", r.RemoteAddr, "clients", hub.ClientCount())
	}
}

func main() {
	addr := ":8081"
	if v := os.Getenv("CHAT_SERVER_ADDR"); v != "" {
		addr = v
	}

	hub := websocket.NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", newHandler(hub))

	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("chat-server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("chat-server shutting down")
		err := srv.Shutdown(shutdownCtx)
		if closeErr := hub.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		return err
	})

	if err := group.Wait(); err != nil {
		slog.Error("chat-server exited with error", "error", err)
		os.Exit(1)
	}
}

package websocket

import (
	"encoding/json/v2"
	"sync"
)

// Hub fans a message out to many engines for broadcasting. An *Engine
// delivers no events of its own until SetDelegates is called, so a Hub's members are expected to already be open and have
// their own delegates installed; the Hub only ever writes to them.
//
// Example Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Close()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//	    e := websocket.New()
//	    e.SetDelegates(websocket.Delegates{
//	        OnClose: func(websocket.CloseCode, string) { hub.Unregister(e) },
//	    })
//	    if err := websocket.ServeHTTPUpgrade(e, w, r); err != nil {
//	        return
//	    }
//	    hub.Register(e)
//	})
type Hub struct {
	clients map[*Engine]bool

	register   chan *Engine
	unregister chan *Engine
	broadcast  chan []byte

	done   chan struct{}
	closed bool
	wg     sync.WaitGroup

	mu sync.RWMutex
}

// NewHub creates a new Hub. Call Run in a goroutine before using it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Engine]bool),
		register:   make(chan *Engine),
		unregister: make(chan *Engine),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's event loop. It blocks until Close is called.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close(CloseNormalClosure, "")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.SendBinary(message, true)
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Register adds an already-open engine to the Hub so it receives
// subsequent broadcasts. Thread-safe.
func (h *Hub) Register(client *Engine) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.register <- client
}

// Unregister removes an engine from the Hub and closes it. Safe to call
// multiple times for the same client; safe from multiple goroutines.
func (h *Hub) Unregister(client *Engine) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.unregister <- client
}

// Broadcast queues a binary message for delivery to every registered
// engine. Actual sends happen in the event loop; the call returns once
// the message is queued, and blocks only while the 256-message queue is
// full.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.broadcast <- message
}

// BroadcastText queues text for delivery. Note the Hub's worker always
// frames broadcasts as binary (see Run); use SendText on individual
// engines when text framing matters to the peer.
func (h *Hub) BroadcastText(text string) {
	h.Broadcast([]byte(text))
}

// BroadcastJSON marshals v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of currently registered engines.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the Hub and closes every registered engine. Safe to call
// multiple times.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()

	h.mu.Lock()
	for client := range h.clients {
		client.Close(CloseNormalClosure, "")
	}
	h.clients = make(map[*Engine]bool)
	h.mu.Unlock()

	close(h.register)
	close(h.unregister)
	close(h.broadcast)

	return nil
}

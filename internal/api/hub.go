// Package api exposes a read-only websocket feed of the events
// internal/core publishes: order accept/reject, epoch phase transitions,
// trades, and balance/reservation changes. It is deliberately one-way —
// nothing a client sends back ever reaches internal/core — matching
// spec.md's framing of the external surface as notification-only.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openibank/openmatch/internal/events"
	"github.com/openibank/openmatch/pkg/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSEvent is the JSON shape pushed to every subscribed client.
type WSEvent struct {
	Kind      string `json:"kind"`
	Epoch     uint64 `json:"epoch"`
	Phase     string `json:"phase,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsClient is one connected websocket client.
type wsClient struct {
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]bool
	mu            sync.RWMutex
	hub           *Hub
}

// Hub fans out events to every connected client and implements
// events.Sink so it can be registered directly on an events.Bus.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan WSEvent
	register   chan *wsClient
	unregister chan *wsClient
	log        *logging.Logger
	mu         sync.RWMutex
}

var _ events.Sink = (*Hub)(nil)

// NewHub creates a Hub. Call Run in its own goroutine before serving any
// connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan WSEvent, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		log:        logging.GetDefault().Component("api"),
	}
}

// Run drives the hub's event loop until the process exits; it never
// returns on its own.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("client disconnected", "clients", len(h.clients))

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("marshal event failed", "err", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				client.mu.RLock()
				subscribed := client.subscriptions[ev.Kind] || len(client.subscriptions) == 0
				client.mu.RUnlock()
				if !subscribed {
					continue
				}
				select {
				case client.send <- data:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish converts ev to a WSEvent and queues it for broadcast. Matching
// the core's fire-and-forget contract, a full broadcast channel drops
// the event rather than blocking the caller.
func (h *Hub) Publish(ev events.Event) {
	wsEv := WSEvent{
		Kind:      ev.Kind.String(),
		Epoch:     ev.Epoch,
		Timestamp: time.Now().Unix(),
		Payload:   payloadFor(ev),
	}
	if ev.Phase != 0 {
		wsEv.Phase = ev.Phase.String()
	}

	select {
	case h.broadcast <- wsEv:
	default:
		h.log.Warn("broadcast channel full, dropping event", "kind", wsEv.Kind)
	}
}

func payloadFor(ev events.Event) any {
	switch {
	case ev.Order != nil:
		return map[string]any{"order_id": ev.Order.ID.String(), "reject_reason": ev.RejectReason}
	case ev.Digest != nil:
		return map[string]any{"count": ev.Digest.Count, "sealer": ev.Digest.SealerNode.String()}
	case ev.Trade != nil:
		return map[string]any{
			"trade_id": ev.Trade.ID.String(),
			"price":    ev.Trade.Price.String(),
			"qty":      ev.Trade.Qty.String(),
		}
	case ev.Balance != nil:
		return map[string]any{"asset": string(ev.Balance.Asset), "available": ev.Balance.Available.String()}
	case !ev.ReservationID.IsNil():
		return map[string]any{"reservation_id": ev.ReservationID.String(), "state": ev.ReservationState.String()}
	default:
		return nil
	}
}

// ServeWS upgrades r to a websocket connection and registers it with the
// hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("upgrade failed", "err", err)
		return
	}

	client := &wsClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
		hub:           h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump is the client's only inbound channel, and a subscription
// filter is the only message this feed ever expects on it — there is no
// request/response or chat-style traffic to route. subscriptionReadLimit
// is sized for that one small JSON object, well under the general
// 4096-byte limit a bidirectional protocol would need, and anything that
// isn't a well-formed subscribe/unsubscribe is treated as a protocol
// violation and closes the connection rather than being silently
// dropped.
const subscriptionReadLimit = 512

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(subscriptionReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("read error", "err", err)
			}
			break
		}

		var sub subscriptionRequest
		if err := json.Unmarshal(message, &sub); err != nil || !sub.valid() {
			c.hub.log.Warn("closing client: not a valid subscription message")
			break
		}
		c.applySubscription(sub)
	}
}

// writePump coalesces queued broadcasts into as few websocket frames as
// the send buffer allows and keeps the connection alive with pings —
// outbound delivery plumbing that has nothing to do with what a message
// means, so unlike readPump it needs no OpenMatch-specific shape.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscriptionRequest lets a client narrow the kinds of event it wants
// pushed; an empty Kinds list means "everything". It is the only message
// shape this connection ever accepts from a client.
type subscriptionRequest struct {
	Action string   `json:"action"`
	Kinds  []string `json:"kinds"`
}

// knownEventKinds is every Kind string a Hub can ever broadcast. A
// subscription naming anything else can never match a real event, so it
// is rejected rather than silently stored as dead state on the client.
var knownEventKinds = func() map[string]bool {
	m := make(map[string]bool, 7)
	for k := events.KindOrderAccepted; k <= events.KindEpochAdvanced; k++ {
		m[k.String()] = true
	}
	return m
}()

func (sub subscriptionRequest) valid() bool {
	if sub.Action != "subscribe" && sub.Action != "unsubscribe" {
		return false
	}
	for _, kind := range sub.Kinds {
		if !knownEventKinds[kind] {
			return false
		}
	}
	return true
}

func (c *wsClient) applySubscription(sub subscriptionRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, kind := range sub.Kinds {
		switch sub.Action {
		case "subscribe":
			c.subscriptions[kind] = true
		case "unsubscribe":
			delete(c.subscriptions, kind)
		}
	}
}

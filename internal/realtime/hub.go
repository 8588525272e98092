// Package realtime pushes bid and auction updates to websocket subscribers.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vietddude/bidwatch/internal/auth"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/metrics"
)

// Event names on the wire.
const (
	EventSubscribe    = "subscribe_auction"
	EventUnsubscribe  = "unsubscribe_auction"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventBidPlaced    = "bid_placed"
	EventAuctionEnded = "auction_ended"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	DefaultSendBuffer = 32
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomRequest struct {
	AuctionID string `json:"auctionId"`
}

// AuctionEndedPayload is the data of an auction_ended frame.
type AuctionEndedPayload struct {
	AuctionID string               `json:"auctionId"`
	Status    domain.AuctionStatus `json:"status"`
}

// Authenticator admits websocket upgrades.
type Authenticator interface {
	VerifyRequest(r *http.Request) (auth.Claims, error)
}

// RoomName is the room joined by subscribers of an auction.
func RoomName(auctionID string) string {
	return "auction:" + auctionID
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]struct{}
}

// Hub tracks websocket clients and their auction rooms.
type Hub struct {
	authn      Authenticator
	upgrader   websocket.Upgrader
	sendBuffer int

	mu      sync.RWMutex
	clients map[*client]struct{}
	rooms   map[string]map[*client]struct{}

	log *slog.Logger
}

// NewHub creates a hub. sendBuffer bounds the frames queued per client; a
// client whose queue is full is dropped.
func NewHub(authn Authenticator, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		authn:      authn,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		sendBuffer: sendBuffer,
		clients:    make(map[*client]struct{}),
		rooms:      make(map[string]map[*client]struct{}),
		log:        slog.Default().With("component", "realtime"),
	}
}

// ServeHTTP authenticates and upgrades the connection, then serves it until
// the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authn.VerifyRequest(r)
	if err != nil {
		h.log.Debug("Rejected websocket connection", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan []byte, h.sendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.register(c)
	h.log.Debug("Client connected", "remote", r.RemoteAddr, "subject", claims.Subject)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.RealtimeClients.Set(float64(n))
}

// remove detaches a client from every room and stops its writer.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	n := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	metrics.RealtimeClients.Set(float64(n))
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(c *client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Client read failed", "error", err)
			}
			return
		}
		h.handle(c, msg)
	}
}

func (h *Hub) handle(c *client, msg Message) {
	switch msg.Event {
	case EventSubscribe, EventUnsubscribe:
	default:
		h.log.Debug("Ignoring client event", "event", msg.Event)
		return
	}

	var req roomRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.log.Debug("Malformed room request", "event", msg.Event, "error", err)
			return
		}
	}
	if req.AuctionID == "" {
		return
	}

	reply := EventSubscribed
	if msg.Event == EventSubscribe {
		h.join(c, RoomName(req.AuctionID))
	} else {
		h.leave(c, RoomName(req.AuctionID))
		reply = EventUnsubscribed
	}

	frame, err := encode(reply, req)
	if err != nil {
		return
	}
	h.mu.RLock()
	_, live := h.clients[c]
	ok := live && h.enqueue(c, frame)
	h.mu.RUnlock()
	if live && !ok {
		h.remove(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug("Client write failed", "error", err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// enqueue never blocks. It reports false when the client's queue is full.
// Callers hold h.mu so that send is not closed underneath them.
func (h *Hub) enqueue(c *client, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// BroadcastNewBid sends bid_placed to the auction's room.
func (h *Hub) BroadcastNewBid(auctionID string, bid *domain.Bid) {
	h.broadcast(RoomName(auctionID), EventBidPlaced, bid)
}

// BroadcastAuctionEnded sends auction_ended to the auction's room.
func (h *Hub) BroadcastAuctionEnded(auctionID string, status domain.AuctionStatus) {
	h.broadcast(RoomName(auctionID), EventAuctionEnded, AuctionEndedPayload{AuctionID: auctionID, Status: status})
}

func (h *Hub) broadcast(room, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		h.log.Error("Failed to encode broadcast", "event", event, "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[room] {
		if !h.enqueue(c, frame) {
			slow = append(slow, c)
		}
	}
	delivered := len(h.rooms[room]) - len(slow)
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("Dropping slow client", "room", room)
		h.remove(c)
	}
	h.log.Debug("Broadcast", "room", room, "event", event, "clients", delivered)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of subscribers of an auction.
func (h *Hub) RoomSize(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomName(auctionID)])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.remove(c)
	}
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

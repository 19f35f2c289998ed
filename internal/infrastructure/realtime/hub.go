// Package realtime keeps the registry of connected clients and pushes events to
// them by user or by room. Delivery is best effort: a client whose buffer is
// full misses the event.
package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultClientBuffer is the per-client channel capacity
const DefaultClientBuffer = 100

// ErrUnknownClient is returned by Join and Leave for an unregistered client
var ErrUnknownClient = errors.New("realtime: unknown client")

// Event is a message pushed to clients
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
}

// Client is one connected stream
type Client struct {
	ID     string
	UserID uuid.UUID

	send      chan Event
	rooms     map[string]struct{}
	closeOnce sync.Once
}

// Events returns the receive side of the client's buffer. It is closed when the
// client unsubscribes or the hub shuts down.
func (c *Client) Events() <-chan Event {
	return c.send
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub routes events to connected clients. With a Fanout configured, published
// events travel through it so every replica delivers to its own clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[uuid.UUID]map[string]*Client
	rooms   map[string]map[string]*Client
	closed  bool

	buffer  int
	fanout  Fanout
	logger  *zap.Logger
	dropped atomic.Int64
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithClientBuffer sets the per-client buffer size
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithFanout routes published events through a cross-replica fan-out
func WithFanout(f Fanout) HubOption {
	return func(h *Hub) {
		h.fanout = f
	}
}

// WithLogger sets the hub logger
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates an empty hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		byUser:  make(map[uuid.UUID]map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		buffer:  DefaultClientBuffer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a client for userID, joined to the given rooms. On a
// closed hub the returned client's channel is already closed.
func (h *Hub) Subscribe(userID uuid.UUID, rooms ...string) *Client {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		send:   make(chan Event, h.buffer),
		rooms:  make(map[string]struct{}, len(rooms)),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.close()
		return c
	}

	h.clients[c.ID] = c
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[string]*Client)
	}
	h.byUser[userID][c.ID] = c
	for _, room := range rooms {
		h.joinLocked(c, room)
	}

	h.logger.Debug("Realtime client subscribed",
		zap.String("client_id", c.ID),
		zap.String("user_id", userID.String()),
		zap.Strings("rooms", rooms))
	return c
}

// Unsubscribe removes the client and closes its channel
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, clientID)
	if users := h.byUser[c.UserID]; users != nil {
		delete(users, clientID)
		if len(users) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	c.close()
}

// Join adds the client to a room
func (h *Hub) Join(clientID, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return ErrUnknownClient
	}
	h.joinLocked(c, room)
	return nil
}

// Leave removes the client from a room
func (h *Hub) Leave(clientID, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return ErrUnknownClient
	}
	h.leaveLocked(c, room)
	return nil
}

func (h *Hub) joinLocked(c *Client, room string) {
	if room == "" {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members := h.rooms[room]; members != nil {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish sends an event to every connection of userID
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, ev Event) error {
	if h.fanout != nil {
		return h.fanoutOrLocal(ctx, Envelope{UserID: userID, Event: ev})
	}
	h.deliverToUser(userID, ev)
	return nil
}

// PublishToRoom sends an event to every member of a room
func (h *Hub) PublishToRoom(ctx context.Context, room string, ev Event) error {
	if h.fanout != nil {
		return h.fanoutOrLocal(ctx, Envelope{Room: room, Event: ev})
	}
	h.deliverToRoom(room, ev)
	return nil
}

// PushToUser wraps data in an Event and publishes it to userID
func (h *Hub) PushToUser(ctx context.Context, userID uuid.UUID, eventType string, data any) error {
	return h.Publish(ctx, userID, NewEvent(eventType, data))
}

// PushToOrder wraps data in an Event and publishes it to the order's room
func (h *Hub) PushToOrder(ctx context.Context, orderID uuid.UUID, eventType string, data any) error {
	return h.PublishToRoom(ctx, OrderRoom(orderID), NewEvent(eventType, data))
}

// fanoutOrLocal publishes through the fan-out. When that fails the event is at
// least delivered to local clients and the error is returned.
func (h *Hub) fanoutOrLocal(ctx context.Context, env Envelope) error {
	if err := h.fanout.Publish(ctx, env); err != nil {
		h.Deliver(env)
		return err
	}
	return nil
}

// Deliver hands an envelope received from the fan-out to local clients
func (h *Hub) Deliver(env Envelope) {
	if env.Room != "" {
		h.deliverToRoom(env.Room, env.Event)
		return
	}
	h.deliverToUser(env.UserID, env.Event)
}

func (h *Hub) deliverToUser(userID uuid.UUID, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byUser[userID] {
		h.trySend(c, ev)
	}
}

func (h *Hub) deliverToRoom(room string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		h.trySend(c, ev)
	}
}

// trySend must be called with at least the read lock held, which keeps the
// channel from being closed underneath it.
func (h *Hub) trySend(c *Client, ev Event) {
	select {
	case c.send <- ev:
	default:
		h.dropped.Add(1)
		h.logger.Debug("Realtime buffer full, dropping event",
			zap.String("client_id", c.ID),
			zap.String("event_type", ev.Type))
	}
}

// Run consumes the fan-out until ctx is cancelled. Without a fan-out it just
// waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.fanout == nil {
		<-ctx.Done()
		return nil
	}
	err := h.fanout.Subscribe(ctx, h.Deliver)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were discarded on full buffers
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client. Later Subscribe calls get closed clients and
// publishes reach nobody.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	h.byUser = make(map[uuid.UUID]map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
	h.mu.Unlock()

	if h.fanout != nil {
		return h.fanout.Close()
	}
	return nil
}

// OrderRoom returns the room name for an order's participants
func OrderRoom(orderID uuid.UUID) string {
	return "order_" + orderID.String()
}

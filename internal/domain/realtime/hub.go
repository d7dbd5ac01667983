package realtime

import (
	"context"
	"encoding/json"
	"expvar"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType for WebSocket messages
type EventType string

const EventThumbnailReady EventType = "thumbnail_ready"

// eventsChannel carries events between server instances
const eventsChannel = "photos:events"

var (
	wsConnectionsGauge   = expvar.NewInt("websocket_connections")
	wsEventsSentTotal    = expvar.NewInt("websocket_events_sent_total")
	wsEventsDroppedTotal = expvar.NewInt("websocket_events_dropped_total")
)

// Event is pushed to every connected browser.
// Only public facts are carried: ids, never captions or owners.
type Event struct {
	Type    EventType `json:"type"`
	PhotoID int64     `json:"photo_id"`
}

// Connection represents a WebSocket connection
type Connection struct {
	UserID string // empty for anonymous viewers
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans events out to local WebSocket connections.
// With Redis configured every event goes through Pub/Sub so all
// instances, including the publisher, deliver it exactly once.
type Hub struct {
	connections map[*Connection]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub; redisClient may be nil
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, eventsChannel)
	}

	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				delete(h.connections, conn)
				close(conn.Send)
				wsConnectionsGauge.Add(-1)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			wsConnectionsGauge.Add(1)
			log.Debug().Str("user_id", conn.UserID).Msg("Viewer connected to WebSocket")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.Send)
				wsConnectionsGauge.Add(-1)
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID).Msg("Viewer disconnected from WebSocket")
		}
	}
}

// runRedisSubscriber listens for events from Redis Pub/Sub
func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Msg("Dropping malformed realtime event")
				continue
			}
			h.broadcastLocal([]byte(msg.Payload))
		}
	}
}

// broadcastLocal sends data to clients connected to THIS server
func (h *Hub) broadcastLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		select {
		case conn.Send <- data:
			wsEventsSentTotal.Add(1)
		default:
			// Buffer full, skip this message
			wsEventsDroppedTotal.Add(1)
			log.Warn().Str("user_id", conn.UserID).Msg("WebSocket send buffer full")
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.ctx.Done():
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}

// Broadcast sends event to ALL viewers across ALL servers
func (h *Hub) Broadcast(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if h.redis != nil {
		if err := h.redis.Publish(ctx, eventsChannel, data).Err(); err != nil {
			log.Error().Err(err).Str("channel", eventsChannel).Msg("Redis publish failed")
			h.broadcastLocal(data)
			return err
		}
		return nil
	}

	h.broadcastLocal(data)
	return nil
}

// ThumbnailReady announces a freshly generated thumbnail
func (h *Hub) ThumbnailReady(ctx context.Context, photoID int64) error {
	return h.Broadcast(ctx, &Event{Type: EventThumbnailReady, PhotoID: photoID})
}

// GetConnectionCount returns number of local connections
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}

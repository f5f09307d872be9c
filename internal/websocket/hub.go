package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"research-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Frame is one realtime message pushed to a user's browser sessions.
// Type is one of "stream_token", "stream_done", "stream_error",
// "learning_progress", "event".
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// redisOutBuffer bounds pending cluster publishes; overflow is dropped
// so a Redis stall never backs up into the callers.
const redisOutBuffer = 256

type Hub struct {
	// Registered clients map: UserID -> List of Clients (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance delivery
	rdb *redis.Client

	// Pending cluster publishes, drained by publishToRedis so Send and
	// Broadcast never block on the network.
	redisOut chan []byte

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		redisOut:   make(chan []byte, redisOutBuffer),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
		go h.publishToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						// Sole owner of close: a client dropped here and
						// again by its readPump arrives twice, but only
						// the first pass still finds it in the list.
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send pushes a frame to every connection of one user, locally and via
// Redis for other instances.
func (h *Hub) Send(userID uuid.UUID, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal frame", map[string]interface{}{"error": err, "type": frame.Type})
		return
	}

	// Deliver while holding the read lock: close only happens under the
	// write lock, so a Send channel seen here cannot be closed yet.
	var dropped []*Client
	h.mu.RLock()
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			dropped = append(dropped, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range dropped {
		h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"user_id": userID})
		h.unregister <- client
	}

	// Always publish for multi-device support across instances.
	h.queueClusterPublish(userID.String(), data)
}

// Broadcast pushes a frame to ALL connected clients.
func (h *Hub) Broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	var dropped []*Client
	h.mu.RLock()
	for _, clients := range h.clients {
		for _, client := range clients {
			select {
			case client.Send <- data:
			default:
				dropped = append(dropped, client)
			}
		}
	}
	h.mu.RUnlock()

	// Unregister after releasing the read lock; the unregister handler
	// needs the write lock.
	for _, client := range dropped {
		h.unregister <- client
	}

	h.queueClusterPublish("*", data)
}

// queueClusterPublish hands a frame to the Redis publisher goroutine.
// The enqueue never blocks; when the buffer is full the cluster copy is
// dropped and local delivery stands.
func (h *Hub) queueClusterPublish(target string, data []byte) {
	if h.rdb == nil {
		return
	}

	payload := map[string]interface{}{
		"target_user_id": target,
		"message":        data,
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return
	}

	select {
	case h.redisOut <- jsonPayload:
	default:
		h.logger.Warn("Hub", "Redis publish buffer full, dropping cluster frame", map[string]interface{}{"target": target})
	}
}

// publishToRedis drains queued cluster frames. Runs for the life of the
// hub.
func (h *Hub) publishToRedis() {
	ctx := context.Background()
	for payload := range h.redisOut {
		if err := h.rdb.Publish(ctx, "cluster_events", payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// subscribeToRedis relays frames published by other instances. Every
// instance subscribes to "cluster_events" and delivers to the users it
// holds locally.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		if payload.TargetUserID == "*" {
			var dropped []*Client
			h.mu.RLock()
			for _, clients := range h.clients {
				for _, client := range clients {
					select {
					case client.Send <- payload.Message:
					default:
						dropped = append(dropped, client)
					}
				}
			}
			h.mu.RUnlock()
			for _, client := range dropped {
				h.unregister <- client
			}
			continue
		}

		uid, err := uuid.Parse(payload.TargetUserID)
		if err != nil {
			continue
		}

		var dropped []*Client
		h.mu.RLock()
		for _, client := range h.clients[uid] {
			select {
			case client.Send <- payload.Message:
			default:
				dropped = append(dropped, client)
			}
		}
		h.mu.RUnlock()
		for _, client := range dropped {
			h.unregister <- client
		}
	}
}

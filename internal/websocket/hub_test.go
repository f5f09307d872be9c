package websocket

import (
	"path/filepath"
	"testing"
	"time"

	"research-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, rdb *redis.Client) *Hub {
	t.Helper()
	return NewHub(rdb, logger.NewIsolatedLogger(filepath.Join(t.TempDir(), "hub.log")))
}

func (h *Hub) clientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func registerAndWait(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.register <- c
	require.Eventually(t, func() bool {
		return h.clientCount(c.UserID) > 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSendDropsSlowClientOnce(t *testing.T) {
	hub := newTestHub(t, nil)
	go hub.Run()

	userID := uuid.New()
	// No reader and no buffer, so the first frame hits the drop path.
	client := &Client{UserID: userID, Send: make(chan []byte)}
	registerAndWait(t, hub, client)

	hub.Send(userID, Frame{Type: "stream_token", Data: "x"})

	require.Eventually(t, func() bool {
		return hub.clientCount(userID) == 0
	}, 5*time.Second, 5*time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open)

	// The connection teardown path unregisters the same client again;
	// the hub must treat it as a no-op instead of closing twice.
	hub.unregister <- client
	hub.Send(userID, Frame{Type: "stream_token", Data: "y"})
	assert.Equal(t, 0, hub.clientCount(userID))
}

func TestBroadcastDropsOnlySlowClients(t *testing.T) {
	hub := newTestHub(t, nil)
	go hub.Run()

	slowUser := uuid.New()
	fastUser := uuid.New()
	slow := &Client{UserID: slowUser, Send: make(chan []byte)}
	fast := &Client{UserID: fastUser, Send: make(chan []byte, 8)}
	registerAndWait(t, hub, slow)
	registerAndWait(t, hub, fast)

	hub.Broadcast(Frame{Type: "event", Data: "maintenance"})

	require.Eventually(t, func() bool {
		return hub.clientCount(slowUser) == 0
	}, 5*time.Second, 5*time.Millisecond)

	select {
	case data := <-fast.Send:
		assert.Contains(t, string(data), "maintenance")
	case <-time.After(5 * time.Second):
		t.Fatal("fast client never received broadcast")
	}
	assert.Equal(t, 1, hub.clientCount(fastUser))
}

func TestSendQueuesClusterPublishWithoutBlocking(t *testing.T) {
	// Unreachable Redis plus no publisher goroutine (Run is never
	// called): Send must still return immediately, dropping overflow.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	hub := newTestHub(t, rdb)

	userID := uuid.New()
	start := time.Now()
	for i := 0; i < redisOutBuffer*2; i++ {
		hub.Send(userID, Frame{Type: "stream_token", Data: i})
	}

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, redisOutBuffer, len(hub.redisOut))
}

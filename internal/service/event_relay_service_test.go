package service

import (
	"context"
	"testing"
	"time"

	internalWS "research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(module, message string, details map[string]interface{}) {}
func (noopLogger) Info(module, message string, details map[string]interface{})  {}
func (noopLogger) Warn(module, message string, details map[string]interface{})  {}
func (noopLogger) Error(module, message string, details map[string]interface{}) {}
func (noopLogger) Sync() error                                                  { return nil }

type capturedFrame struct {
	userID uuid.UUID
	frame  internalWS.Frame
}

type fakeDelivery struct {
	frames []capturedFrame
}

func (d *fakeDelivery) Send(userID uuid.UUID, frame internalWS.Frame) {
	d.frames = append(d.frames, capturedFrame{userID: userID, frame: frame})
}

func TestEventRelayPushesToOwningUser(t *testing.T) {
	delivery := &fakeDelivery{}
	relay := NewEventRelayService(nil, delivery, noopLogger{})

	userId := uuid.New()
	evt := events.NewLearningSessionCompleted(userId, uuid.New(), uuid.New(), 12)

	require.NoError(t, relay.handleEvent(context.Background(), evt))
	require.Len(t, delivery.frames, 1)

	got := delivery.frames[0]
	assert.Equal(t, userId, got.userID)
	assert.Equal(t, "event", got.frame.Type)

	data, ok := got.frame.Data.(fiber.Map)
	require.True(t, ok)
	assert.Equal(t, "LEARNING_SESSION_COMPLETED", data["code"])
}

func TestEventRelayStripsSubjectPrefix(t *testing.T) {
	delivery := &fakeDelivery{}
	relay := NewEventRelayService(nil, delivery, noopLogger{})

	// Events re-read from the stream carry the subject as their type.
	evt := events.BaseEvent{
		Type:       "events.CONVERSATION_EXPORTED",
		Data:       map[string]interface{}{"user_id": uuid.New().String()},
		OccurredAt: time.Now(),
	}

	require.NoError(t, relay.handleEvent(context.Background(), evt))
	require.Len(t, delivery.frames, 1)

	data := delivery.frames[0].frame.Data.(fiber.Map)
	assert.Equal(t, "CONVERSATION_EXPORTED", data["code"])
}

func TestEventRelaySkipsEventsWithoutOwner(t *testing.T) {
	delivery := &fakeDelivery{}
	relay := NewEventRelayService(nil, delivery, noopLogger{})

	evt := events.BaseEvent{
		Type:       "SYSTEM_MAINTENANCE",
		Data:       map[string]interface{}{"window": "02:00"},
		OccurredAt: time.Now(),
	}

	require.NoError(t, relay.handleEvent(context.Background(), evt))
	assert.Empty(t, delivery.frames)
}

func TestEventOwner(t *testing.T) {
	userId := uuid.New()

	tests := []struct {
		name    string
		payload map[string]interface{}
		want    uuid.UUID
		ok      bool
	}{
		{"valid owner", map[string]interface{}{"user_id": userId.String()}, userId, true},
		{"missing owner", map[string]interface{}{}, uuid.Nil, false},
		{"malformed owner", map[string]interface{}{"user_id": "not-a-uuid"}, uuid.Nil, false},
		{"wrong type", map[string]interface{}{"user_id": 42}, uuid.Nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := eventOwner(events.BaseEvent{Type: "X", Data: tt.payload})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

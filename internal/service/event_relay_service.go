package service

import (
	"context"
	"strings"

	"research-assistant-be/internal/pkg/logger"
	internalWS "research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/events"
	pktNats "research-assistant-be/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// EventDelivery pushes realtime frames to a user's connections.
// Implemented by the websocket hub.
type EventDelivery interface {
	Send(userID uuid.UUID, frame internalWS.Frame)
}

// EventRelayService feeds cross-service events back to the browser:
// every event on the EVENTS stream that names an owning user is pushed
// to that user's websocket connections as an "event" frame. Covers
// completions raised by other instances of this service too, since the
// stream is shared.
type EventRelayService struct {
	subscriber *pktNats.Subscriber
	delivery   EventDelivery
	logger     logger.ILogger
}

func NewEventRelayService(sub *pktNats.Subscriber, delivery EventDelivery, log logger.ILogger) *EventRelayService {
	return &EventRelayService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus with a durable consumer.
func (s *EventRelayService) Start() {
	err := s.subscriber.Subscribe("events.>", "session-core-relay", s.handleEvent)
	if err != nil {
		s.logger.Error("EventRelayService", "Failed to start event subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("EventRelayService", "Event relay started, listening to events.>", nil)
}

func (s *EventRelayService) handleEvent(ctx context.Context, event events.Event) error {
	// The NATS subject carries the stream prefix; strip it back to the
	// event code.
	code := strings.TrimPrefix(event.EventType(), "events.")

	userId, ok := eventOwner(event)
	if !ok {
		s.logger.Info("EventRelayService", "Event without user_id, skipping", map[string]interface{}{"type": code})
		return nil
	}

	if s.delivery != nil {
		s.delivery.Send(userId, internalWS.Frame{Type: "event", Data: fiber.Map{
			"code":        code,
			"payload":     event.Payload(),
			"occurred_at": event.Timestamp(),
		}})
	}
	return nil
}

// eventOwner resolves the user a payload belongs to; events carry the
// owner as "user_id" by convention.
func eventOwner(event events.Event) (uuid.UUID, bool) {
	uidStr, ok := event.Payload()["user_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	uid, err := uuid.Parse(uidStr)
	if err != nil {
		return uuid.Nil, false
	}
	return uid, true
}

package service

import (
	"context"
	"fmt"
	"time"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	internalWS "research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/assistant"
	"research-assistant-be/pkg/events"
	pktNats "research-assistant-be/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAssistantService interface {
	ListThreads(ctx context.Context, userId uuid.UUID) ([]*dto.ThreadResponse, error)
	CreateThread(ctx context.Context, userId uuid.UUID, req *dto.CreateThreadRequest) (*dto.CreateThreadResponse, error)
	CloseThread(ctx context.Context, userId uuid.UUID, threadId string) error
	SetActiveThread(ctx context.Context, userId uuid.UUID, req *dto.SetActiveThreadRequest) error
	SetThreadProvider(ctx context.Context, userId uuid.UUID, req *dto.SetThreadProviderRequest) error
	SetThreadLocal(ctx context.Context, userId uuid.UUID, req *dto.SetThreadLocalRequest) error
	History(ctx context.Context, userId uuid.UUID, threadId string) (*dto.ThreadHistoryResponse, error)
	SendQuery(ctx context.Context, userId uuid.UUID, req *dto.SendQueryRequest) (*dto.SendQueryResponse, error)
	Abort(ctx context.Context, userId uuid.UUID, req *dto.AbortRequest) error
	ExportConversation(ctx context.Context, userId uuid.UUID, threadId string) (*dto.ExportConversationResponse, error)
	ImportConversation(ctx context.Context, userId uuid.UUID, req *dto.ImportConversationRequest) error
}

type assistantService struct {
	registry       ISessionRegistry
	uowFactory     unitofwork.RepositoryFactory
	hub            *internalWS.Hub
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewAssistantService(
	registry ISessionRegistry,
	uowFactory unitofwork.RepositoryFactory,
	hub *internalWS.Hub,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IAssistantService {
	return &assistantService{
		registry:       registry,
		uowFactory:     uowFactory,
		hub:            hub,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

// streamRelay forwards stream callbacks to the owning user's websocket
// connections. Callbacks arrive serialized per thread, so frame order
// on the wire matches token order.
type streamRelay struct {
	userId uuid.UUID
	hub    *internalWS.Hub
}

func (r *streamRelay) OnToken(threadID, fragment string) {
	r.hub.Send(r.userId, internalWS.Frame{Type: "stream_token", Data: fiber.Map{
		"thread_id": threadID,
		"fragment":  fragment,
	}})
}

func (r *streamRelay) OnDone(threadID, finalText string) {
	r.hub.Send(r.userId, internalWS.Frame{Type: "stream_done", Data: fiber.Map{
		"thread_id": threadID,
		"text":      finalText,
	}})
}

func (r *streamRelay) OnStreamError(threadID string, kind assistant.ErrorKind) {
	r.hub.Send(r.userId, internalWS.Frame{Type: "stream_error", Data: fiber.Map{
		"thread_id": threadID,
		"kind":      string(kind),
	}})
}

func (s *assistantService) threads(userId uuid.UUID) *assistant.Store {
	sc := s.registry.Resolve(userId)
	if s.hub != nil {
		sc.Threads.SetObserver(&streamRelay{userId: userId, hub: s.hub})
	}
	return sc.Threads
}

func (s *assistantService) ListThreads(ctx context.Context, userId uuid.UUID) ([]*dto.ThreadResponse, error) {
	ts := s.threads(userId)
	active := ts.ActiveThreadID()

	var out []*dto.ThreadResponse
	for _, t := range ts.Threads() {
		streaming := false
		if snap, ok := ts.StreamingSnapshot(t.ID); ok {
			streaming = snap.IsStreaming
		}
		out = append(out, &dto.ThreadResponse{
			ThreadId:  t.ID,
			Label:     t.Label,
			Provider:  string(t.Provider),
			Model:     t.Model,
			UseLocal:  t.UseLocal,
			IsActive:  t.ID == active,
			Streaming: streaming,
			Messages:  len(t.Messages),
		})
	}
	return out, nil
}

func (s *assistantService) CreateThread(ctx context.Context, userId uuid.UUID, req *dto.CreateThreadRequest) (*dto.CreateThreadResponse, error) {
	id, err := s.threads(userId).CreateThread(req.Label)
	if err != nil {
		return nil, err
	}
	return &dto.CreateThreadResponse{ThreadId: id}, nil
}

func (s *assistantService) CloseThread(ctx context.Context, userId uuid.UUID, threadId string) error {
	return s.threads(userId).CloseThread(threadId)
}

func (s *assistantService) SetActiveThread(ctx context.Context, userId uuid.UUID, req *dto.SetActiveThreadRequest) error {
	return s.threads(userId).SetActiveThread(req.ThreadId)
}

func (s *assistantService) SetThreadProvider(ctx context.Context, userId uuid.UUID, req *dto.SetThreadProviderRequest) error {
	return s.threads(userId).SetThreadProvider(req.ThreadId, assistant.Provider(req.Provider), req.Model)
}

func (s *assistantService) SetThreadLocal(ctx context.Context, userId uuid.UUID, req *dto.SetThreadLocalRequest) error {
	return s.threads(userId).SetThreadLocal(req.ThreadId, req.UseLocal)
}

func (s *assistantService) History(ctx context.Context, userId uuid.UUID, threadId string) (*dto.ThreadHistoryResponse, error) {
	ts := s.threads(userId)
	if threadId == "" {
		threadId = ts.ActiveThreadID()
	}
	t, ok := ts.Thread(threadId)
	if !ok {
		return nil, assistant.ErrThreadNotFound
	}

	messages := make([]dto.ThreadMessageResponse, 0, len(t.Messages))
	for _, m := range t.Messages {
		messages = append(messages, dto.ThreadMessageResponse{
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.Timestamp,
		})
	}

	res := &dto.ThreadHistoryResponse{
		ThreadId: t.ID,
		Label:    t.Label,
		Messages: messages,
	}
	if snap, ok := ts.StreamingSnapshot(threadId); ok {
		res.Streaming = snap.IsStreaming
		res.StreamingText = snap.Text
	}
	return res, nil
}

func (s *assistantService) SendQuery(ctx context.Context, userId uuid.UUID, req *dto.SendQueryRequest) (*dto.SendQueryResponse, error) {
	ts := s.threads(userId)
	manager := assistant.NewSessionManager(ts)

	// Resolve the omitted thread id now, so the response names the
	// thread the query actually landed on.
	threadId := req.ThreadId
	if threadId == "" {
		threadId = ts.ActiveThreadID()
	}

	if err := manager.SendQuery(ctx, req.Text, threadId); err != nil {
		return nil, err
	}

	s.logger.Info("AssistantService", "Query dispatched", map[string]interface{}{
		"user_id":   userId,
		"thread_id": threadId,
	})
	return &dto.SendQueryResponse{ThreadId: threadId}, nil
}

func (s *assistantService) Abort(ctx context.Context, userId uuid.UUID, req *dto.AbortRequest) error {
	manager := assistant.NewSessionManager(s.threads(userId))
	manager.Abort(req.ThreadId)
	return nil
}

func (s *assistantService) ExportConversation(ctx context.Context, userId uuid.UUID, threadId string) (*dto.ExportConversationResponse, error) {
	ts := s.threads(userId)
	if threadId == "" {
		threadId = ts.ActiveThreadID()
	}
	t, ok := ts.Thread(threadId)
	if !ok {
		return nil, assistant.ErrThreadNotFound
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	conversation := entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		ThreadKey: t.ID,
		Label:     t.Label,
		Provider:  string(t.Provider),
		Model:     t.Model,
		UseLocal:  t.UseLocal,
		CreatedAt: time.Now(),
	}
	if err := uow.ConversationRepository().Create(ctx, &conversation); err != nil {
		return nil, fmt.Errorf("export conversation: %w", err)
	}

	messages := make([]*entity.ConversationMessage, 0, len(t.Messages))
	for _, m := range t.Messages {
		messages = append(messages, &entity.ConversationMessage{
			Id:             uuid.New(),
			ConversationId: conversation.Id,
			Role:           string(m.Role),
			Content:        m.Content,
			CreatedAt:      m.Timestamp,
		})
	}
	if err := uow.ConversationMessageRepository().CreateBatch(ctx, messages); err != nil {
		return nil, fmt.Errorf("export conversation messages: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if err := ts.SetConversationID(threadId, conversation.Id); err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		evt := events.NewConversationExported(userId, conversation.Id, threadId, len(messages))
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("AssistantService", "Failed to publish CONVERSATION_EXPORTED event", map[string]interface{}{"error": err.Error()})
		}
	}

	return &dto.ExportConversationResponse{
		ConversationId: conversation.Id,
		ThreadId:       threadId,
		Messages:       len(messages),
	}, nil
}

func (s *assistantService) ImportConversation(ctx context.Context, userId uuid.UUID, req *dto.ImportConversationRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: req.ConversationId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fiber.NewError(fiber.StatusNotFound, "conversation not found")
	}

	records, err := uow.ConversationMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversation.Id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return err
	}

	messages := make([]assistant.Message, 0, len(records))
	for _, m := range records {
		messages = append(messages, assistant.Message{
			Role:      assistant.Role(m.Role),
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}

	return s.threads(userId).LoadConversation(req.ThreadId, conversation.Id, conversation.Label, messages)
}

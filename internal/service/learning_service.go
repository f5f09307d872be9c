package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	internalWS "research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/embedding"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/learning"
	pktNats "research-assistant-be/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ILearningService interface {
	CreateDocument(ctx context.Context, userId uuid.UUID, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error)
	ShowDocument(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowDocumentResponse, error)
	StartSession(ctx context.Context, userId uuid.UUID, req *dto.StartLearningRequest) (*dto.LearningSessionResponse, error)
	PauseSession(ctx context.Context, userId uuid.UUID) error
	ResumeSession(ctx context.Context, userId uuid.UUID) error
	StopSession(ctx context.Context, userId uuid.UUID) error
	GetSession(ctx context.Context, userId uuid.UUID) (*dto.LearningSessionResponse, error)
	ListInsights(ctx context.Context, userId uuid.UUID, documentId uuid.UUID) ([]*dto.InsightResponse, error)
	ListRuns(ctx context.Context, userId uuid.UUID, documentId uuid.UUID) ([]*dto.LearningRunResponse, error)
	SearchInsights(ctx context.Context, userId uuid.UUID, documentId uuid.UUID, query string, limit int) ([]*dto.InsightSearchResult, error)
}

type learningService struct {
	registry          ISessionRegistry
	uowFactory        unitofwork.RepositoryFactory
	hub               *internalWS.Hub
	eventPublisher    *pktNats.Publisher
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewLearningService(
	registry ISessionRegistry,
	uowFactory unitofwork.RepositoryFactory,
	hub *internalWS.Hub,
	eventPublisher *pktNats.Publisher,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) ILearningService {
	return &learningService{
		registry:          registry,
		uowFactory:        uowFactory,
		hub:               hub,
		eventPublisher:    eventPublisher,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (s *learningService) CreateDocument(ctx context.Context, userId uuid.UUID, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	document := entity.Document{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := uow.DocumentRepository().Create(ctx, &document); err != nil {
		return nil, err
	}
	return &dto.CreateDocumentResponse{Id: document.Id}, nil
}

func (s *learningService) ShowDocument(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowDocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "document not found")
	}
	return &dto.ShowDocumentResponse{
		Id:        document.Id,
		Title:     document.Title,
		Content:   document.Content,
		CreatedAt: document.CreatedAt,
		UpdatedAt: document.UpdatedAt,
	}, nil
}

func (s *learningService) StartSession(ctx context.Context, userId uuid.UUID, req *dto.StartLearningRequest) (*dto.LearningSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: req.DocumentId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "document not found")
	}

	sc := s.registry.Resolve(userId)
	sc.Learning.SetObserver(&learningRelay{
		userId:         userId,
		hub:            s.hub,
		uowFactory:     s.uowFactory,
		eventPublisher: s.eventPublisher,
		logger:         s.logger,
	})

	session, err := sc.Learning.Start(ctx, req.DocumentId, learning.Depth(req.Depth))
	if err != nil {
		return nil, err
	}

	run := entity.LearningRun{
		Id:            session.ID,
		DocumentId:    session.DocumentID,
		UserId:        userId,
		Depth:         string(session.Depth),
		Status:        string(session.Status),
		Iteration:     session.Iteration,
		MaxIterations: session.MaxIterations,
		StartedAt:     session.StartedAt,
	}
	if err := uow.LearningRunRepository().Create(ctx, &run); err != nil {
		s.logger.Error("LearningService", "Failed to record learning run", map[string]interface{}{"error": err.Error(), "run_id": session.ID})
	}

	s.logger.Info("LearningService", "Learning session started", map[string]interface{}{
		"user_id":     userId,
		"document_id": req.DocumentId,
		"depth":       req.Depth,
	})
	return sessionToDTO(&session), nil
}

func (s *learningService) PauseSession(ctx context.Context, userId uuid.UUID) error {
	return s.registry.Resolve(userId).Learning.Pause()
}

func (s *learningService) ResumeSession(ctx context.Context, userId uuid.UUID) error {
	return s.registry.Resolve(userId).Learning.Resume()
}

func (s *learningService) StopSession(ctx context.Context, userId uuid.UUID) error {
	return s.registry.Resolve(userId).Learning.Stop()
}

func (s *learningService) GetSession(ctx context.Context, userId uuid.UUID) (*dto.LearningSessionResponse, error) {
	session, ok := s.registry.Resolve(userId).Learning.Snapshot()
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "no learning session")
	}
	return sessionToDTO(&session), nil
}

func (s *learningService) ListInsights(ctx context.Context, userId uuid.UUID, documentId uuid.UUID) ([]*dto.InsightResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: documentId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "document not found")
	}

	insights, err := uow.InsightRepository().FindAll(ctx,
		specification.ByDocumentID{DocumentID: documentId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.InsightResponse, 0, len(insights))
	for _, in := range insights {
		out = append(out, &dto.InsightResponse{
			Id:        in.Id,
			RunId:     in.RunId,
			Iteration: in.Iteration,
			Step:      in.Step,
			Content:   in.Content,
			CreatedAt: in.CreatedAt,
		})
	}
	return out, nil
}

func (s *learningService) ListRuns(ctx context.Context, userId uuid.UUID, documentId uuid.UUID) ([]*dto.LearningRunResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	runs, err := uow.LearningRunRepository().FindAll(ctx,
		specification.ByDocumentID{DocumentID: documentId},
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "started_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.LearningRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, &dto.LearningRunResponse{
			Id:            run.Id,
			DocumentId:    run.DocumentId,
			Depth:         run.Depth,
			Status:        run.Status,
			Iteration:     run.Iteration,
			MaxIterations: run.MaxIterations,
			TotalInsights: run.TotalInsights,
			StartedAt:     run.StartedAt,
			FinishedAt:    run.FinishedAt,
		})
	}
	return out, nil
}

func (s *learningService) SearchInsights(ctx context.Context, userId uuid.UUID, documentId uuid.UUID, query string, limit int) ([]*dto.InsightSearchResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: documentId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "document not found")
	}

	res, err := s.embeddingProvider.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}

	scored, err := uow.InsightEmbeddingRepository().SearchSimilar(ctx,
		pgvector.NewVector(res.Embedding.Values), limit, documentId)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return []*dto.InsightSearchResult{}, nil
	}

	ids := make([]uuid.UUID, 0, len(scored))
	for _, sr := range scored {
		ids = append(ids, sr.Embedding.InsightId)
	}
	insights, err := uow.InsightRepository().FindAll(ctx, specification.ByIDs{IDs: ids})
	if err != nil {
		return nil, err
	}

	return buildSearchResults(scored, insights), nil
}

// buildSearchResults joins scored embeddings back onto their insight
// rows, preserving similarity order. Embeddings whose insight row is
// gone are dropped.
func buildSearchResults(scored []*contract.ScoredInsightEmbedding, insights []*entity.Insight) []*dto.InsightSearchResult {
	byId := make(map[uuid.UUID]*entity.Insight, len(insights))
	for _, in := range insights {
		byId[in.Id] = in
	}

	out := make([]*dto.InsightSearchResult, 0, len(scored))
	for _, sr := range scored {
		in, ok := byId[sr.Embedding.InsightId]
		if !ok {
			continue
		}
		out = append(out, &dto.InsightSearchResult{
			InsightId:  in.Id,
			Step:       in.Step,
			Iteration:  in.Iteration,
			Content:    in.Content,
			Similarity: sr.Similarity,
		})
	}
	return out
}

func sessionToDTO(session *learning.Session) *dto.LearningSessionResponse {
	steps := make([]dto.LearningStepDTO, 0, len(session.Steps))
	for _, step := range session.Steps {
		steps = append(steps, dto.LearningStepDTO{
			Kind:     string(step.Kind),
			Status:   string(step.Status),
			Insights: len(step.Insights),
			Error:    step.Error,
		})
	}
	return &dto.LearningSessionResponse{
		SessionId:          session.ID,
		DocumentId:         session.DocumentID,
		Status:             string(session.Status),
		Depth:              string(session.Depth),
		Iteration:          session.Iteration,
		MaxIterations:      session.MaxIterations,
		Progress:           session.Progress(),
		Steps:              steps,
		TotalInsights:      session.TotalInsights,
		TotalPagesCreated:  session.TotalPagesCreated,
		TotalBlocksCreated: session.TotalBlocksCreated,
		StartedAt:          session.StartedAt,
		FinishedAt:         session.FinishedAt,
	}
}

// learningRelay pushes progress frames over the websocket hub and, on
// the terminal transition, finalizes the audit row and emits the
// completion event.
type learningRelay struct {
	userId         uuid.UUID
	hub            *internalWS.Hub
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func (r *learningRelay) OnSessionUpdate(session learning.Session) {
	if r.hub != nil {
		r.hub.Send(r.userId, internalWS.Frame{Type: "learning_progress", Data: sessionToDTO(&session)})
	}

	if !session.Status.Terminal() {
		return
	}

	// Finalize off the orchestrator's goroutine.
	go r.finalize(session)
}

func (r *learningRelay) finalize(session learning.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uow := r.uowFactory.NewUnitOfWork(ctx)
	run := entity.LearningRun{
		Id:                 session.ID,
		DocumentId:         session.DocumentID,
		UserId:             r.userId,
		Depth:              string(session.Depth),
		Status:             string(session.Status),
		Iteration:          session.Iteration,
		MaxIterations:      session.MaxIterations,
		TotalInsights:      session.TotalInsights,
		TotalPagesCreated:  session.TotalPagesCreated,
		TotalBlocksCreated: session.TotalBlocksCreated,
		StartedAt:          session.StartedAt,
		FinishedAt:         session.FinishedAt,
	}
	if err := uow.LearningRunRepository().Update(ctx, &run); err != nil {
		r.logger.Error("LearningService", "Failed to finalize learning run", map[string]interface{}{"error": err.Error(), "run_id": session.ID})
	}

	if session.Status == learning.SessionCompleted && r.eventPublisher != nil {
		evt := events.NewLearningSessionCompleted(r.userId, session.DocumentID, session.ID, session.TotalInsights)
		if err := r.eventPublisher.Publish(ctx, evt); err != nil {
			r.logger.Warn("LearningService", "Failed to publish LEARNING_SESSION_COMPLETED event", map[string]interface{}{"error": err.Error()})
		}
	}
}

// documentLoader adapts the document repository to the orchestrator's
// snapshot contract.
type documentLoader struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewDocumentLoader(uowFactory unitofwork.RepositoryFactory) learning.SnapshotLoader {
	return &documentLoader{uowFactory: uowFactory}
}

func (l *documentLoader) LoadDocument(ctx context.Context, documentID uuid.UUID) (learning.DocumentSnapshot, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentID})
	if err != nil {
		return learning.DocumentSnapshot{}, err
	}
	if document == nil {
		return learning.DocumentSnapshot{}, learning.ErrDocumentNotFound
	}
	return learning.DocumentSnapshot{
		DocumentID: document.Id,
		Title:      document.Title,
		Content:    document.Content,
	}, nil
}

// insightSink persists a step's insights as rows plus document blocks
// and queues each insight for embedding.
type insightSink struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewInsightSink(uowFactory unitofwork.RepositoryFactory, publisherService IPublisherService, log logger.ILogger) learning.InsightSink {
	return &insightSink{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		logger:           log,
	}
}

func (s *insightSink) AppendInsights(ctx context.Context, documentID, runID uuid.UUID, iteration int, step learning.StepKind, insights []learning.Insight) (int, int, error) {
	if len(insights) == 0 {
		return 0, 0, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	nextIndex, err := uow.DocumentBlockRepository().MaxOrderIndex(ctx, documentID)
	if err != nil {
		return 0, 0, err
	}
	nextIndex++

	rows := make([]*entity.Insight, 0, len(insights))
	blocks := make([]*entity.DocumentBlock, 0, len(insights)+1)

	meta, _ := json.Marshal(map[string]interface{}{
		"iteration": iteration,
		"step":      string(step),
	})

	// One heading block per materialized step, then one block per
	// insight.
	blocks = append(blocks, &entity.DocumentBlock{
		Id:         uuid.New(),
		DocumentId: documentID,
		OrderIndex: nextIndex,
		Kind:       "heading",
		Content:    fmt.Sprintf("%s (pass %d)", step, iteration),
		CreatedAt:  time.Now(),
	})
	nextIndex++

	for _, in := range insights {
		insightId := in.ID
		rows = append(rows, &entity.Insight{
			Id:         insightId,
			DocumentId: documentID,
			RunId:      runID,
			Iteration:  iteration,
			Step:       string(step),
			Content:    in.Content,
			Metadata:   meta,
			CreatedAt:  in.CreatedAt,
		})
		blocks = append(blocks, &entity.DocumentBlock{
			Id:         uuid.New(),
			DocumentId: documentID,
			OrderIndex: nextIndex,
			Kind:       "insight",
			Content:    in.Content,
			InsightId:  &insightId,
			CreatedAt:  time.Now(),
		})
		nextIndex++
	}

	if err := uow.Begin(ctx); err != nil {
		return 0, 0, err
	}
	defer uow.Rollback()

	if err := uow.InsightRepository().CreateBatch(ctx, rows); err != nil {
		return 0, 0, fmt.Errorf("persist insights: %w", err)
	}
	if err := uow.DocumentBlockRepository().CreateBatch(ctx, blocks); err != nil {
		return 0, 0, fmt.Errorf("persist document blocks: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return 0, 0, err
	}

	// Queue embeddings after the commit so the consumer always finds
	// the rows.
	if s.publisherService != nil {
		for _, row := range rows {
			payload, err := json.Marshal(dto.PublishEmbedInsightMessage{InsightId: row.Id})
			if err != nil {
				continue
			}
			if err := s.publisherService.Publish(ctx, payload); err != nil {
				s.logger.Warn("LearningService", "Failed to queue insight embedding", map[string]interface{}{"error": err.Error(), "insight_id": row.Id})
			}
		}
	}

	return 1, len(blocks), nil
}

package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pgvector/pgvector-go"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedInsightMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	insights, err := uow.InsightRepository().FindAll(ctx, specification.ByID{ID: payload.InsightId})
	if err != nil {
		log.Printf("[ERROR] Failed to get insight %s: %v", payload.InsightId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if len(insights) == 0 {
		log.Printf("[ERROR] Insight not found: %s", payload.InsightId)
		msg.Ack() // Insight deleted? Ack.
		return
	}
	insight := insights[0]

	// Embed the step-qualified content so retrieval carries the
	// analytical stage that produced it.
	document := insight.Step + ": " + insight.Content

	res, err := cs.embeddingProvider.Generate(document, "RETRIEVAL_DOCUMENT")
	if err != nil {
		log.Printf("[ERROR] Failed to generate embedding for insight %s: %v", payload.InsightId, err)
		msg.Nack()
		return
	}

	record := &entity.InsightEmbedding{
		Document:       document,
		EmbeddingValue: pgvector.NewVector(res.Embedding.Values),
		InsightId:      insight.Id,
		CreatedAt:      time.Now(),
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	if err := uow.InsightEmbeddingRepository().DeleteByInsightId(ctx, insight.Id); err != nil {
		log.Printf("[ERROR] Failed to delete old embedding: %v", err)
		msg.Nack()
		return
	}
	if err := uow.InsightEmbeddingRepository().Create(ctx, record); err != nil {
		log.Printf("[ERROR] Failed to create embedding: %v", err)
		msg.Nack()
		return
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	log.Printf("[SUCCESS] Insight embedded: %s", payload.InsightId)
	msg.Ack()
}

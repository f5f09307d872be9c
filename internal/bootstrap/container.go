package bootstrap

import (
	"context"
	"log"

	"research-assistant-be/internal/config"
	"research-assistant-be/internal/constant"
	"research-assistant-be/internal/controller"
	"research-assistant-be/internal/handler"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/memory"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/internal/service"
	"research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/assistant"
	"research-assistant-be/pkg/embedding"
	"research-assistant-be/pkg/learning"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/llm/factory"

	pktNats "research-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AssistantController controller.IAssistantController
	LearningController  controller.ILearningController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub

	// Session state, exposed for graceful shutdown
	SessionRegistry service.ISessionRegistry
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	factoryCfg := factory.Config{
		OllamaBaseURL:  cfg.Ai.OllamaBaseURL,
		HuggingFaceKey: cfg.Keys.HuggingFace,
		GeminiKey:      cfg.Keys.GoogleGemini,
	}

	// Thread-level provider selection resolves here; useLocal routes to
	// Ollama regardless of the remote provider choice.
	resolver := assistant.ProviderResolver(func(provider assistant.Provider, model string, useLocal bool) (llm.StreamingProvider, error) {
		if useLocal {
			localModel := model
			if localModel == "" {
				localModel = cfg.Ai.OllamaChatModel
			}
			return factory.NewStreamingProvider("ollama", localModel, factoryCfg)
		}
		return factory.NewStreamingProvider(string(provider), model, factoryCfg)
	})

	defaults := assistant.Defaults{
		Provider:     assistant.Provider(cfg.Ai.LLMProvider),
		Model:        cfg.Ai.LLMModel,
		SystemPrompt: constant.AssistantSystemPromptV1,
	}

	// The learning runner uses the configured default provider for every
	// step regardless of per-thread overrides.
	stepProvider, err := factory.NewStreamingProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, factoryCfg)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Keys.EmbedInsightTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.EmbedInsightTopic,
		uowFactory,
		embeddingProvider,
	)

	contextRepo := memory.NewContextRepository()
	registry := service.NewSessionRegistry(
		contextRepo,
		resolver,
		defaults,
		learning.NewLLMStepRunner(stepProvider),
		service.NewDocumentLoader(uowFactory),
		service.NewInsightSink(uowFactory, publisherService, sysLogger),
	)

	if natsSub != nil {
		eventRelay := service.NewEventRelayService(natsSub, wsHub, wsLogger)
		go eventRelay.Start()
	}

	assistantService := service.NewAssistantService(registry, uowFactory, wsHub, natsPub, sysLogger)
	learningService := service.NewLearningService(registry, uowFactory, wsHub, natsPub, embeddingProvider, sysLogger)

	// 6. Handlers & Controllers
	streamHandler := handler.NewStreamHandler(wsHub, wsLogger)

	return &Container{
		AssistantController: controller.NewAssistantController(assistantService),
		LearningController:  controller.NewLearningController(learningService),
		ConsumerService:     consumerService,
		StreamHandler:       streamHandler,
		WebSocketHub:        wsHub,
		SessionRegistry:     registry,
	}
}

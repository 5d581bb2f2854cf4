package bootstrap

import (
	"log"

	"ai-animator-be/internal/config"
	"ai-animator-be/internal/controller"
	"ai-animator-be/internal/pkg/logger"
	"ai-animator-be/internal/repository/memory"
	"ai-animator-be/internal/service"
	"ai-animator-be/internal/websocket"
	"ai-animator-be/pkg/llm/factory"
	"ai-animator-be/pkg/renderer"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	ModelController   controller.IModelController

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Infrastructure
	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Ai.BaseURL,
		cfg.Ai.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)

	// Initialize In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository()

	// Render engine (manim CLI)
	engine := renderer.NewManimEngine(cfg.Render.ManimBinary, cfg.Render.MediaDir, cfg.Render.TimeoutSeconds)

	// 4. Services
	publisherService := service.NewPublisherService(service.SessionUpdatesTopic, pubSub)

	generationService := service.NewGenerationService(
		sessionRepo,
		llmProvider,
		publisherService,
		sysLogger,
		service.GenerationDefaults{
			Model:         cfg.Ai.Model,
			Temperature:   cfg.Ai.Temperature,
			MaxTokens:     cfg.Ai.MaxTokens,
			MaxIterations: cfg.Ai.MaxIterations,
		},
	)

	renderService := service.NewRenderService(
		sessionRepo,
		engine,
		publisherService,
		sysLogger,
		0, // engine owns the render timeout
	)

	modelService := service.NewModelService(cfg.Ai.Provider, cfg.Ai.Model)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(pubSub, service.SessionUpdatesTopic, sessionRepo, wsLogger)
	go wsHub.Run()

	// 5. Controllers
	sessionController := controller.NewSessionController(generationService, renderService, wsHub, sysLogger)
	modelController := controller.NewModelController(modelService)

	return &Container{
		SessionController: sessionController,
		ModelController:   modelController,
		WebSocketHub:      wsHub,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-animator-be/internal/constant"
	"ai-animator-be/internal/dto"
	"ai-animator-be/internal/pkg/logger"
	"ai-animator-be/internal/pkg/serverutils"
	"ai-animator-be/internal/repository/memory"
	"ai-animator-be/pkg/llm"
	"ai-animator-be/pkg/manim"
	"ai-animator-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

// Defaults applied when the request leaves a field empty.
type GenerationDefaults struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxIterations int
}

type IGenerationService interface {
	StartGeneration(ctx context.Context, req *dto.GenerateRequest) (*dto.GenerateResponse, error)
	GetSession(ctx context.Context, sessionID string) (*dto.SessionStatusResponse, error)
	ListSessions(ctx context.Context) (*dto.ListSessionsResponse, error)
	DeleteSession(ctx context.Context, sessionID string) error
	UpdateCode(ctx context.Context, sessionID string, req *dto.ManualCodeUpdateRequest) (*dto.ManualCodeUpdateResponse, error)
}

type generationService struct {
	sessionRepo memory.ISessionRepository
	llmProvider llm.LLMProvider
	publisher   IPublisherService
	logger      logger.ILogger
	defaults    GenerationDefaults

	// sessions with a live refinement loop; guards the single-writer rule
	// against manual updates racing the loop
	active sync.Map
}

func NewGenerationService(
	sessionRepo memory.ISessionRepository,
	llmProvider llm.LLMProvider,
	publisher IPublisherService,
	log logger.ILogger,
	defaults GenerationDefaults,
) IGenerationService {
	return &generationService{
		sessionRepo: sessionRepo,
		llmProvider: llmProvider,
		publisher:   publisher,
		logger:      log,
		defaults:    defaults,
	}
}

// StartGeneration registers the session and launches the refinement loop in
// the background; the session id returns immediately.
func (gs *generationService) StartGeneration(ctx context.Context, req *dto.GenerateRequest) (*dto.GenerateResponse, error) {
	params := memory.CreateParams{
		Prompt:        req.Prompt,
		Model:         req.Model,
		Temperature:   gs.defaults.Temperature,
		MaxTokens:     req.MaxTokens,
		MaxIterations: req.MaxIterations,
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if params.Model == "" {
		params.Model = gs.defaults.Model
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = gs.defaults.MaxTokens
	}
	if params.MaxIterations == 0 {
		params.MaxIterations = gs.defaults.MaxIterations
	}

	session := gs.sessionRepo.Create(params)

	gs.logger.Info("GenerationService", "Starting refinement loop", map[string]interface{}{
		"session_id":     session.ID,
		"model":          params.Model,
		"max_iterations": params.MaxIterations,
	})

	gs.publisher.PublishUpdate(store.EventGenerationStarted, session)

	gs.active.Store(session.ID, struct{}{})
	// The loop owns its own lifetime: it must reach a terminal phase whether
	// or not the caller keeps observing, so it detaches from the request ctx.
	go gs.runLoop(context.Background(), session.ID, params, req.APIKey)

	return &dto.GenerateResponse{
		SessionID:     session.ID,
		Status:        session.Status,
		MaxIterations: params.MaxIterations,
	}, nil
}

// runLoop is the refinement state machine: generate, validate, decide,
// repeat until success or the iteration ceiling.
func (gs *generationService) runLoop(ctx context.Context, sessionID string, params memory.CreateParams, apiKey string) {
	defer gs.active.Delete(sessionID)

	var lastCode string
	var lastIteration *store.CodeIteration

	for iterNum := 1; iterNum <= params.MaxIterations; iterNum++ {
		if iterNum > 1 {
			if _, err := gs.sessionRepo.SetStatus(sessionID, store.StatusGenerating); err != nil {
				// Session deleted between iterations; honor the cancellation here.
				gs.logger.Warn("GenerationService", "Loop stopped at iteration boundary", map[string]interface{}{
					"session_id": sessionID, "iteration": iterNum, "error": err.Error(),
				})
				return
			}
		}

		userPrompt := gs.buildPrompt(params.Prompt, lastIteration)

		opts := []llm.Option{
			llm.WithModel(params.Model),
			llm.WithTemperature(params.Temperature),
			llm.WithMaxTokens(params.MaxTokens),
		}
		if apiKey != "" {
			opts = append(opts, llm.WithAPIKey(apiKey))
		}

		start := time.Now()
		completion, err := gs.llmProvider.Complete(ctx, constant.SystemPromptManimV1, userPrompt, opts...)
		elapsed := time.Since(start).Seconds()

		var iter store.CodeIteration
		if err != nil {
			// A transport failure consumes one iteration slot and feeds the
			// same decision path as an invalid validation.
			gs.logger.Warn("GenerationService", "Completion gateway call failed", map[string]interface{}{
				"session_id": sessionID, "iteration": iterNum, "error": err.Error(),
			})
			iter = store.CodeIteration{
				IterationNumber: iterNum,
				GeneratedCode:   "",
				ValidationResult: store.ValidationResult{
					IsValid:  false,
					Errors:   []string{fmt.Sprintf("Transport error: completion gateway call failed: %v", err)},
					Warnings: []string{},
				},
				Metrics:   store.GenerationMetrics{TimeTaken: elapsed, Model: params.Model},
				Timestamp: time.Now().UTC(),
				Status:    store.StatusFailed,
			}
		} else {
			code := StripCodeFences(completion.Text)
			if _, err := gs.sessionRepo.SetStatus(sessionID, store.StatusValidating); err != nil {
				gs.logger.Warn("GenerationService", "Loop stopped at iteration boundary", map[string]interface{}{
					"session_id": sessionID, "iteration": iterNum, "error": err.Error(),
				})
				return
			}

			validation := manim.Validate(code)
			status := store.StatusFailed
			if validation.IsValid {
				status = store.StatusSuccess
			}
			iter = store.CodeIteration{
				IterationNumber:  iterNum,
				GeneratedCode:    code,
				ValidationResult: validation,
				Metrics: store.GenerationMetrics{
					TimeTaken:        elapsed,
					PromptTokens:     completion.PromptTokens,
					CompletionTokens: completion.CompletionTokens,
					TotalTokens:      completion.TotalTokens,
					Model:            completion.Model,
				},
				Timestamp: time.Now().UTC(),
				Status:    status,
			}
			lastCode = code
		}

		snapshot, err := gs.sessionRepo.AppendIteration(sessionID, iter)
		if err != nil {
			gs.logger.Warn("GenerationService", "Loop stopped at iteration boundary", map[string]interface{}{
				"session_id": sessionID, "iteration": iterNum, "error": err.Error(),
			})
			return
		}
		gs.publisher.PublishUpdate(store.EventIterationCompleted, snapshot)
		lastIteration = &iter

		// Decision point
		if iter.ValidationResult.IsValid {
			gs.finish(sessionID, store.StatusSuccess, iter.GeneratedCode, iterNum)
			return
		}
		if iterNum == params.MaxIterations {
			// Keep the last generated code even though invalid, so the user
			// can inspect and hand-edit it.
			gs.finish(sessionID, store.StatusMaxIterationsReached, lastCode, iterNum)
			return
		}

		if snapshot, err := gs.sessionRepo.SetStatus(sessionID, store.StatusRefining); err == nil {
			gs.publisher.PublishUpdate(store.EventIterationCompleted, snapshot)
		} else {
			gs.logger.Warn("GenerationService", "Loop stopped at iteration boundary", map[string]interface{}{
				"session_id": sessionID, "iteration": iterNum, "error": err.Error(),
			})
			return
		}
	}
}

func (gs *generationService) finish(sessionID, status, finalCode string, iteration int) {
	snapshot, err := gs.sessionRepo.SetTerminal(sessionID, status, finalCode)
	if err != nil {
		gs.logger.Error("GenerationService", "Failed to settle terminal phase", map[string]interface{}{
			"session_id": sessionID, "status": status, "error": err.Error(),
		})
		return
	}
	gs.logger.Info("GenerationService", "Refinement loop finished", map[string]interface{}{
		"session_id": sessionID, "status": status, "iterations": iteration,
	})
	gs.publisher.PublishUpdate(store.EventGenerationComplete, snapshot)
}

// buildPrompt returns the literal user prompt on the first attempt and the
// repair prompt embedding the previous code and findings afterwards.
func (gs *generationService) buildPrompt(originalPrompt string, last *store.CodeIteration) string {
	if last == nil {
		return originalPrompt
	}

	errorInfo := strings.Join(last.ValidationResult.Errors, "\n")
	warningsBlock := ""
	if len(last.ValidationResult.Warnings) > 0 {
		warningsBlock = "WARNINGS: " + strings.Join(last.ValidationResult.Warnings, "\n") + "\n"
	}

	return fmt.Sprintf(constant.RepairPromptTemplateV1, originalPrompt, last.GeneratedCode, errorInfo, warningsBlock)
}

func (gs *generationService) GetSession(ctx context.Context, sessionID string) (*dto.SessionStatusResponse, error) {
	session, err := gs.sessionRepo.Get(sessionID)
	if err != nil {
		return nil, serverutils.NotFoundError(fmt.Sprintf("Session %s not found", sessionID))
	}
	return sessionToStatusResponse(session), nil
}

func (gs *generationService) ListSessions(ctx context.Context) (*dto.ListSessionsResponse, error) {
	sessions := gs.sessionRepo.List()
	summaries := make([]*dto.SessionSummaryResponse, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, &dto.SessionSummaryResponse{
			SessionID:        s.ID,
			Prompt:           truncatePrompt(s.Prompt, 100),
			Status:           s.Status,
			CurrentIteration: s.CurrentIteration,
			MaxIterations:    s.MaxIterations,
			CreatedAt:        s.CreatedAt,
			UpdatedAt:        s.UpdatedAt,
		})
	}
	return &dto.ListSessionsResponse{Count: len(summaries), Sessions: summaries}, nil
}

func (gs *generationService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := gs.sessionRepo.Delete(sessionID); err != nil {
		return serverutils.NotFoundError(fmt.Sprintf("Session %s not found", sessionID))
	}
	return nil
}

// UpdateCode bypasses the refinement loop: validate hand-edited code, append
// a synthetic iteration, settle final code when valid.
func (gs *generationService) UpdateCode(ctx context.Context, sessionID string, req *dto.ManualCodeUpdateRequest) (*dto.ManualCodeUpdateResponse, error) {
	if _, running := gs.active.Load(sessionID); running {
		return nil, serverutils.ConflictError("Session generation is still in progress")
	}

	validation := manim.Validate(req.Code)
	status := store.StatusFailed
	if validation.IsValid {
		status = store.StatusSuccess
	}

	iter := store.CodeIteration{
		GeneratedCode:    req.Code,
		ValidationResult: validation,
		Timestamp:        time.Now().UTC(),
		Status:           status,
	}

	snapshot, err := gs.sessionRepo.ManualUpdate(sessionID, iter)
	if err != nil {
		switch {
		case errors.Is(err, memory.ErrSessionNotFound):
			return nil, serverutils.NotFoundError(fmt.Sprintf("Session %s not found", sessionID))
		case errors.Is(err, memory.ErrRenderInFlight):
			return nil, serverutils.ConflictError("A render is in progress for this session")
		default:
			return nil, serverutils.NewAppError(fiber.StatusInternalServerError, err.Error())
		}
	}
	gs.publisher.PublishUpdate(store.EventCodeUpdated, snapshot)

	message := "Code validated and accepted"
	if !validation.IsValid {
		message = "Code validation failed"
	}

	return &dto.ManualCodeUpdateResponse{
		SessionID:        sessionID,
		Code:             req.Code,
		ValidationResult: validation,
		IsValid:          validation.IsValid,
		Message:          message,
	}, nil
}

func sessionToStatusResponse(s *store.Session) *dto.SessionStatusResponse {
	return &dto.SessionStatusResponse{
		SessionID:        s.ID,
		Prompt:           s.Prompt,
		Model:            s.Model,
		Status:           s.Status,
		CurrentIteration: s.CurrentIteration,
		MaxIterations:    s.MaxIterations,
		Iterations:       s.Iterations,
		FinalCode:        s.FinalCode,
		Render:           s.Render,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func truncatePrompt(prompt string, max int) string {
	if len(prompt) <= max {
		return prompt
	}
	return prompt[:max] + "..."
}

// StripCodeFences removes markdown code fences the model wraps answers in,
// including stray fence lines mid-text.
func StripCodeFences(text string) string {
	code := strings.TrimSpace(text)

	if strings.HasPrefix(code, "```python") {
		code = strings.TrimSpace(code[len("```python"):])
	} else if strings.HasPrefix(code, "```") {
		code = strings.TrimSpace(code[3:])
	}

	if strings.HasSuffix(code, "```") {
		code = strings.TrimSpace(code[:len(code)-3])
	}

	lines := strings.Split(code, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		switch strings.TrimSpace(line) {
		case "```", "```python", "```py":
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-animator-be/internal/dto"
	"ai-animator-be/internal/pkg/logger"
	"ai-animator-be/internal/pkg/serverutils"
	"ai-animator-be/internal/repository/memory"
	"ai-animator-be/pkg/renderer"
	"ai-animator-be/pkg/store"
)

// ArtifactInfo is what the download path needs from a finished render.
type ArtifactInfo struct {
	Path        string
	ContentType string
	Filename    string
}

type IRenderService interface {
	StartRender(ctx context.Context, sessionID string, req *dto.RenderRequest) (*dto.RenderResponse, error)
	GetArtifact(ctx context.Context, sessionID string) (*ArtifactInfo, error)
}

type renderService struct {
	sessionRepo memory.ISessionRepository
	engine      renderer.Engine
	publisher   IPublisherService
	logger      logger.ILogger
	timeout     time.Duration
}

func NewRenderService(
	sessionRepo memory.ISessionRepository,
	engine renderer.Engine,
	publisher IPublisherService,
	log logger.ILogger,
	timeout time.Duration,
) IRenderService {
	return &renderService{
		sessionRepo: sessionRepo,
		engine:      engine,
		publisher:   publisher,
		logger:      log,
		timeout:     timeout,
	}
}

// StartRender gates the request against the session state, marks the render
// queued, and hands the actual work to a background goroutine.
func (rs *renderService) StartRender(ctx context.Context, sessionID string, req *dto.RenderRequest) (*dto.RenderResponse, error) {
	opts := renderer.RenderOptions{
		Format:          req.Format,
		Quality:         req.Quality,
		BackgroundColor: req.BackgroundColor,
	}
	if err := renderer.ValidateOptions(&opts); err != nil {
		return nil, serverutils.BadRequestError(err.Error())
	}

	snapshot, err := rs.sessionRepo.BeginRender(sessionID, opts.Format, opts.Quality)
	if err != nil {
		switch {
		case errors.Is(err, memory.ErrSessionNotFound):
			return nil, serverutils.NotFoundError(fmt.Sprintf("Session %s not found", sessionID))
		case errors.Is(err, memory.ErrGenerationActive):
			return nil, serverutils.ConflictError("Session generation has not finished yet")
		case errors.Is(err, memory.ErrNoFinalCode), errors.Is(err, memory.ErrInvalidFinalCode):
			return nil, serverutils.BadRequestError("Session has no validated code to render")
		case errors.Is(err, memory.ErrRenderInFlight):
			return nil, serverutils.ConflictError("A render is already in progress for this session")
		default:
			return nil, err
		}
	}

	rs.logger.Info("RenderService", "Render queued", map[string]interface{}{
		"session_id": sessionID,
		"format":     opts.Format,
		"quality":    opts.Quality,
	})
	rs.publisher.PublishUpdate(store.EventRenderQueued, snapshot)

	go rs.runRender(sessionID, snapshot.FinalCode, opts)

	return &dto.RenderResponse{
		SessionID: sessionID,
		Status:    store.RenderQueued,
		Format:    opts.Format,
		Quality:   opts.Quality,
		Message:   "Render job queued",
	}, nil
}

func (rs *renderService) runRender(sessionID, code string, opts renderer.RenderOptions) {
	ctx := context.Background()
	if rs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.timeout)
		defer cancel()
	}

	progress := func(stage, message string) {
		snapshot, err := rs.sessionRepo.UpdateRender(sessionID, store.RenderProgress{
			Status:  stage,
			Message: message,
		})
		if err != nil {
			rs.logger.Warn("RenderService", "Dropped render progress update", map[string]interface{}{
				"session_id": sessionID, "stage": stage, "error": err.Error(),
			})
			return
		}
		rs.publisher.PublishUpdate(store.EventRenderProgress, snapshot)
	}

	artifactPath, err := rs.engine.Render(ctx, code, opts, progress)

	var renderErr string
	if err != nil {
		renderErr = err.Error()
		rs.logger.Error("RenderService", "Render failed", map[string]interface{}{
			"session_id": sessionID, "error": renderErr,
		})
	} else {
		rs.logger.Info("RenderService", "Render completed", map[string]interface{}{
			"session_id": sessionID, "artifact": artifactPath,
		})
	}

	snapshot, cErr := rs.sessionRepo.CompleteRender(sessionID, artifactPath, renderErr)
	if cErr != nil {
		rs.logger.Warn("RenderService", "Could not settle render state", map[string]interface{}{
			"session_id": sessionID, "error": cErr.Error(),
		})
		return
	}
	rs.publisher.PublishUpdate(store.EventRenderComplete, snapshot)
}

// GetArtifact resolves the finished render's file for download.
func (rs *renderService) GetArtifact(ctx context.Context, sessionID string) (*ArtifactInfo, error) {
	session, err := rs.sessionRepo.Get(sessionID)
	if err != nil {
		return nil, serverutils.NotFoundError(fmt.Sprintf("Session %s not found", sessionID))
	}
	if session.Render == nil || session.Render.Status != store.RenderCompleted {
		return nil, serverutils.NotFoundError("No completed render available for this session")
	}

	contentType, ok := renderer.ContentType(session.Render.Format)
	if !ok {
		contentType = "application/octet-stream"
	}

	return &ArtifactInfo{
		Path:        session.Render.ArtifactPath,
		ContentType: contentType,
		Filename:    fmt.Sprintf("animation_%s.%s", sessionID, session.Render.Format),
	}, nil
}

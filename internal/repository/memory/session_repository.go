package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-animator-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionTerminal  = errors.New("session generation already terminal")
	ErrGenerationActive = errors.New("session generation still in progress")
	ErrNoFinalCode      = errors.New("session has no final code")
	ErrInvalidFinalCode = errors.New("session final code failed validation")
	ErrRenderInFlight   = errors.New("a render is already in progress for this session")
)

// CreateParams is the immutable input captured at session start.
type CreateParams struct {
	Prompt        string
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxIterations int
}

// ISessionRepository is the registry of live sessions. All mutation to one
// session is serialized; reads return point-in-time deep copies.
type ISessionRepository interface {
	Create(params CreateParams) *store.Session
	Get(sessionID string) (*store.Session, error)
	List() []*store.Session
	Delete(sessionID string) error

	SetStatus(sessionID, status string) (*store.Session, error)
	SetTerminal(sessionID, status, finalCode string) (*store.Session, error)
	AppendIteration(sessionID string, iter store.CodeIteration) (*store.Session, error)
	ManualUpdate(sessionID string, iter store.CodeIteration) (*store.Session, error)

	BeginRender(sessionID, format, quality string) (*store.Session, error)
	UpdateRender(sessionID string, progress store.RenderProgress) (*store.Session, error)
	CompleteRender(sessionID, artifactPath, renderErr string) (*store.Session, error)
}

// sessionEntry pairs a session with its exclusive section. The RWMutex gives
// single-writer-per-session while readers of other sessions never contend.
type sessionEntry struct {
	mu      sync.RWMutex
	session *store.Session
}

type SessionRepository struct {
	cache *cache.Cache
}

var _ ISessionRepository = &SessionRepository{}

func NewSessionRepository() *SessionRepository {
	// Sessions are ephemeral work orders: retire them after 24 hours, sweep
	// hourly. Matches the process-lifetime, no-persistence contract.
	c := cache.New(24*time.Hour, 1*time.Hour)
	return &SessionRepository{cache: c}
}

func (r *SessionRepository) Create(params CreateParams) *store.Session {
	now := time.Now().UTC()
	session := &store.Session{
		ID:            uuid.New().String(),
		Prompt:        params.Prompt,
		Model:         params.Model,
		Temperature:   params.Temperature,
		MaxTokens:     params.MaxTokens,
		MaxIterations: params.MaxIterations,
		Status:        store.StatusGenerating,
		Iterations:    []store.CodeIteration{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.cache.Set(session.ID, &sessionEntry{session: session}, cache.DefaultExpiration)
	return session.Clone()
}

func (r *SessionRepository) entry(sessionID string) (*sessionEntry, error) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*sessionEntry), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.session.Clone(), nil
}

func (r *SessionRepository) List() []*store.Session {
	items := r.cache.Items()
	sessions := make([]*store.Session, 0, len(items))
	for _, item := range items {
		entry := item.Object.(*sessionEntry)
		entry.mu.RLock()
		sessions = append(sessions, entry.session.Clone())
		entry.mu.RUnlock()
	}
	return sessions
}

func (r *SessionRepository) Delete(sessionID string) error {
	if _, found := r.cache.Get(sessionID); !found {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	r.cache.Delete(sessionID)
	return nil
}

// SetStatus moves the generation phase to a non-terminal value.
func (r *SessionRepository) SetStatus(sessionID, status string) (*store.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if store.IsTerminal(entry.session.Status) {
		return nil, fmt.Errorf("%w: %s", ErrSessionTerminal, sessionID)
	}
	entry.session.Status = status
	entry.session.UpdatedAt = time.Now().UTC()
	return entry.session.Clone(), nil
}

// SetTerminal settles the generation phase. finalCode may be empty when every
// attempt failed at the transport level.
func (r *SessionRepository) SetTerminal(sessionID, status, finalCode string) (*store.Session, error) {
	if !store.IsTerminal(status) {
		return nil, fmt.Errorf("status %q is not terminal", status)
	}
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if store.IsTerminal(entry.session.Status) {
		return nil, fmt.Errorf("%w: %s", ErrSessionTerminal, sessionID)
	}
	entry.session.Status = status
	entry.session.FinalCode = finalCode
	entry.session.UpdatedAt = time.Now().UTC()
	return entry.session.Clone(), nil
}

// AppendIteration records one attempt. Iteration numbers must stay dense and
// within the ceiling; appends after a terminal phase are rejected.
func (r *SessionRepository) AppendIteration(sessionID string, iter store.CodeIteration) (*store.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := entry.session
	if store.IsTerminal(s.Status) {
		return nil, fmt.Errorf("%w: %s", ErrSessionTerminal, sessionID)
	}
	if want := len(s.Iterations) + 1; iter.IterationNumber != want {
		return nil, fmt.Errorf("iteration number %d out of order, expected %d", iter.IterationNumber, want)
	}
	if iter.IterationNumber > s.MaxIterations {
		return nil, fmt.Errorf("iteration %d exceeds ceiling %d", iter.IterationNumber, s.MaxIterations)
	}

	s.Iterations = append(s.Iterations, iter)
	s.CurrentIteration = iter.IterationNumber
	s.UpdatedAt = time.Now().UTC()
	return s.Clone(), nil
}

// ManualUpdate appends a synthetic iteration for hand-edited code, bypassing
// the refinement loop. Unlike AppendIteration it is allowed on terminal
// sessions (hand-editing after exhaustion is its whole purpose). Valid code
// re-settles the phase to success with the new final code. Invalid code never
// discards an accepted result: the phase and final code stay as they are, and
// the session only settles failed when there is no final code to keep.
func (r *SessionRepository) ManualUpdate(sessionID string, iter store.CodeIteration) (*store.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := entry.session
	if s.Render != nil && !store.IsRenderTerminal(s.Render.Status) {
		return nil, fmt.Errorf("%w: %s", ErrRenderInFlight, sessionID)
	}

	iter.IterationNumber = len(s.Iterations) + 1
	s.Iterations = append(s.Iterations, iter)
	s.CurrentIteration = iter.IterationNumber
	if iter.ValidationResult.IsValid {
		s.Status = store.StatusSuccess
		s.FinalCode = iter.GeneratedCode
	} else if s.FinalCode == "" {
		s.Status = store.StatusFailed
	}
	s.UpdatedAt = time.Now().UTC()
	return s.Clone(), nil
}

// BeginRender gates the render sub-state. Rejected while generation is
// non-terminal, without validated final code, or with a render in flight.
func (r *SessionRepository) BeginRender(sessionID, format, quality string) (*store.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := entry.session
	if !store.IsTerminal(s.Status) {
		return nil, fmt.Errorf("%w: %s", ErrGenerationActive, sessionID)
	}
	if s.FinalCode == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoFinalCode, sessionID)
	}
	// Only the success phase carries validated final code: the loop settles
	// success solely on a valid attempt, and manual updates settle it solely
	// on valid hand-edited code. max_iterations_reached keeps the last
	// attempt for inspection, never for rendering.
	if s.Status != store.StatusSuccess {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFinalCode, sessionID)
	}
	if s.Render != nil && !store.IsRenderTerminal(s.Render.Status) {
		return nil, fmt.Errorf("%w: %s", ErrRenderInFlight, sessionID)
	}

	now := time.Now().UTC()
	s.Render = &store.RenderState{
		Status:  store.RenderQueued,
		Format:  format,
		Quality: quality,
		Progress: []store.RenderProgress{{
			Status:    store.RenderQueued,
			Message:   "Render queued",
			Timestamp: now,
		}},
		StartedAt: now,
	}
	s.UpdatedAt = now
	return s.Clone(), nil
}

func (r *SessionRepository) UpdateRender(sessionID string, progress store.RenderProgress) (*store.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := entry.session
	if s.Render == nil {
		return nil, fmt.Errorf("no render in progress for session %s", sessionID)
	}
	if store.IsRenderTerminal(s.Render.Status) {
		return nil, fmt.Errorf("render already terminal for session %s", sessionID)
	}
	if progress.Timestamp.IsZero() {
		progress.Timestamp = time.Now().UTC()
	}
	s.Render.Status = progress.Status
	s.Render.Progress = append(s.Render.Progress, progress)
	s.UpdatedAt = time.Now().UTC()
	return s.Clone(), nil
}

// CompleteRender settles the render sub-state with either an artifact or the
// engine's error description, verbatim.
func (r *SessionRepository) CompleteRender(sessionID, artifactPath, renderErr string) (*store.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := entry.session
	if s.Render == nil {
		return nil, fmt.Errorf("no render in progress for session %s", sessionID)
	}
	if store.IsRenderTerminal(s.Render.Status) {
		return nil, fmt.Errorf("render already terminal for session %s", sessionID)
	}

	now := time.Now().UTC()
	if renderErr != "" {
		s.Render.Status = store.RenderFailed
		s.Render.Error = renderErr
		s.Render.Progress = append(s.Render.Progress, store.RenderProgress{
			Status:    store.RenderFailed,
			Message:   "Render failed: " + renderErr,
			Timestamp: now,
			Error:     renderErr,
		})
	} else {
		s.Render.Status = store.RenderCompleted
		s.Render.ArtifactPath = artifactPath
		s.Render.Progress = append(s.Render.Progress, store.RenderProgress{
			Status:    store.RenderCompleted,
			Message:   "Video rendered successfully",
			Timestamp: now,
		})
	}
	s.Render.CompletedAt = &now
	s.UpdatedAt = now
	return s.Clone(), nil
}

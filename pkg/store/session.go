package store

import "time"

// Session phase for the generation loop.
const (
	StatusGenerating           = "generating"
	StatusValidating           = "validating"
	StatusRefining             = "refining"
	StatusSuccess              = "success"
	StatusFailed               = "failed"
	StatusMaxIterationsReached = "max_iterations_reached"
)

// Render phase for the render sub-state.
const (
	RenderQueued    = "queued"
	RenderPreparing = "preparing"
	RenderRendering = "rendering"
	RenderEncoding  = "encoding"
	RenderCompleted = "completed"
	RenderFailed    = "failed"
)

// IsTerminal reports whether a generation status admits no further iterations.
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed || status == StatusMaxIterationsReached
}

// IsRenderTerminal reports whether a render status is final.
func IsRenderTerminal(status string) bool {
	return status == RenderCompleted || status == RenderFailed
}

// ValidationResult is the outcome of validating one code candidate.
// Errors is non-empty iff IsValid is false; warnings are informational either way.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// GenerationMetrics captures gateway usage for one attempt.
type GenerationMetrics struct {
	TimeTaken        float64 `json:"time_taken"` // seconds
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Model            string  `json:"model"`
}

// CodeIteration is one generate-then-validate attempt. Immutable once appended;
// IterationNumber is 1-based and dense within a session.
type CodeIteration struct {
	IterationNumber  int               `json:"iteration_number"`
	GeneratedCode    string            `json:"generated_code"`
	ValidationResult ValidationResult  `json:"validation_result"`
	Metrics          GenerationMetrics `json:"generation_metrics"`
	Timestamp        time.Time         `json:"timestamp"`
	Status           string            `json:"status"` // success | failed | pending
}

// RenderProgress is one ordered progress message from the render engine.
type RenderProgress struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// RenderState is the render sub-state nested under a session. Created only
// after the generation loop is terminal with validated final code.
type RenderState struct {
	Status       string           `json:"status"`
	Format       string           `json:"format"`
	Quality      string           `json:"quality"`
	Progress     []RenderProgress `json:"progress"`
	ArtifactPath string           `json:"artifact_path,omitempty"`
	Error        string           `json:"error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// Session is the mutable aggregate held by the in-memory registry.
// All mutation is serialized per session by the repository; readers get copies.
type Session struct {
	ID               string          `json:"id"`
	Prompt           string          `json:"prompt"`
	Model            string          `json:"model"`
	Temperature      float64         `json:"temperature"`
	MaxTokens        int             `json:"max_tokens"`
	MaxIterations    int             `json:"max_iterations"`
	CurrentIteration int             `json:"current_iteration"`
	Status           string          `json:"status"`
	Iterations       []CodeIteration `json:"iterations"`
	FinalCode        string          `json:"final_code,omitempty"`
	Render           *RenderState    `json:"render,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FullyTerminal reports whether no further updates can occur: the generation
// loop finished and any requested render finished too.
func (s *Session) FullyTerminal() bool {
	if !IsTerminal(s.Status) {
		return false
	}
	if s.Render == nil {
		return true
	}
	return IsRenderTerminal(s.Render.Status)
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Iterations = make([]CodeIteration, len(s.Iterations))
	for i, it := range s.Iterations {
		cp.Iterations[i] = it.clone()
	}
	if s.Render != nil {
		r := *s.Render
		r.Progress = append([]RenderProgress(nil), s.Render.Progress...)
		if s.Render.CompletedAt != nil {
			t := *s.Render.CompletedAt
			r.CompletedAt = &t
		}
		cp.Render = &r
	}
	return &cp
}

func (it CodeIteration) clone() CodeIteration {
	cp := it
	cp.ValidationResult.Errors = append([]string(nil), it.ValidationResult.Errors...)
	cp.ValidationResult.Warnings = append([]string(nil), it.ValidationResult.Warnings...)
	return cp
}

// Update event types published to stream subscribers.
const (
	EventGenerationStarted  = "generation_started"
	EventIterationCompleted = "iteration_completed"
	EventGenerationComplete = "generation_complete"
	EventCodeUpdated        = "code_updated"
	EventRenderQueued       = "render_queued"
	EventRenderProgress     = "render_progress"
	EventRenderComplete     = "render_complete"
)

// UpdateEvent is one element of the ordered session update sequence.
// Snapshot is the full session state at the time of the event.
type UpdateEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Snapshot  *Session  `json:"session"`
	Timestamp time.Time `json:"timestamp"`
}

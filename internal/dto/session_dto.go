package dto

import (
	"time"

	"ai-animator-be/pkg/store"
)

type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model"`
	// Pointer so an explicit 0 is distinguishable from unset.
	Temperature   *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens     int      `json:"max_tokens" validate:"omitempty,gt=0"`
	MaxIterations int      `json:"max_iterations" validate:"omitempty,gte=1,lte=10"`
	APIKey        string   `json:"api_key"`
}

type GenerateResponse struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	MaxIterations int    `json:"max_iterations"`
}

type SessionStatusResponse struct {
	SessionID        string                `json:"session_id"`
	Prompt           string                `json:"prompt"`
	Model            string                `json:"model"`
	Status           string                `json:"status"`
	CurrentIteration int                   `json:"current_iteration"`
	MaxIterations    int                   `json:"max_iterations"`
	Iterations       []store.CodeIteration `json:"iterations_history"`
	FinalCode        string                `json:"final_code,omitempty"`
	Render           *store.RenderState    `json:"render,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

type SessionSummaryResponse struct {
	SessionID        string    `json:"session_id"`
	Prompt           string    `json:"prompt"`
	Status           string    `json:"status"`
	CurrentIteration int       `json:"current_iteration"`
	MaxIterations    int       `json:"max_iterations"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ListSessionsResponse struct {
	Count    int                       `json:"count"`
	Sessions []*SessionSummaryResponse `json:"sessions"`
}

type ManualCodeUpdateRequest struct {
	Code string `json:"code" validate:"required"`
}

type ManualCodeUpdateResponse struct {
	SessionID        string                 `json:"session_id"`
	Code             string                 `json:"code"`
	ValidationResult store.ValidationResult `json:"validation_result"`
	IsValid          bool                   `json:"is_valid"`
	Message          string                 `json:"message"`
}

type RenderRequest struct {
	Format          string `json:"format" validate:"omitempty,oneof=mp4 webm gif mov"`
	Quality         string `json:"quality" validate:"omitempty,oneof=low medium high 4k"`
	BackgroundColor string `json:"background_color"`
}

type RenderResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Format    string `json:"format"`
	Quality   string `json:"quality"`
	Message   string `json:"message"`
}

type ModelInfoResponse struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

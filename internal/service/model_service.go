package service

import (
	"context"

	"ai-animator-be/internal/dto"
)

type IModelService interface {
	ListModels(ctx context.Context) ([]*dto.ModelInfoResponse, error)
}

type modelService struct {
	defaultModel string
	provider     string
}

func NewModelService(provider, defaultModel string) IModelService {
	return &modelService{
		defaultModel: defaultModel,
		provider:     provider,
	}
}

// catalog lists the models known to work with the scene generation prompt.
// The configured default is flagged at request time so the catalog itself
// stays static.
var catalog = []dto.ModelInfoResponse{
	{Name: "gpt-4o", Provider: "openai", Description: "Strong general model, best animation quality"},
	{Name: "gpt-4o-mini", Provider: "openai", Description: "Faster and cheaper, good for simple scenes"},
	{Name: "qwen2.5-coder:14b", Provider: "ollama", Description: "Local code model, no API key required"},
	{Name: "llama3.1:8b", Provider: "ollama", Description: "Local general model, lower quality code"},
	{Name: "deepseek-coder-v2:16b", Provider: "ollama", Description: "Local code model, strong at repair prompts"},
}

func (ms *modelService) ListModels(ctx context.Context) ([]*dto.ModelInfoResponse, error) {
	models := make([]*dto.ModelInfoResponse, 0, len(catalog)+1)
	seen := false
	for _, m := range catalog {
		entry := m
		if entry.Name == ms.defaultModel {
			entry.Default = true
			seen = true
		}
		models = append(models, &entry)
	}
	if !seen && ms.defaultModel != "" {
		models = append(models, &dto.ModelInfoResponse{
			Name:        ms.defaultModel,
			Provider:    ms.provider,
			Description: "Configured default model",
			Default:     true,
		})
	}
	return models, nil
}

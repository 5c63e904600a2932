package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/models"
)

// LLM provider names accepted in LLM_PROVIDER
const (
	ProviderScripted = "scripted"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
)

// Request is a single completion call
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int

	// Role and Phase let offline backends answer in character
	Role  models.CaseRole
	Phase models.TrialPhase
}

// LLM generates a reply for a system and user prompt
type LLM interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// NewLLM returns the backend named by the config. A provider without
// an API key falls back to the scripted backend so the server still
// runs offline.
func NewLLM(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			zap.S().Warnw("OPENAI_API_KEY not set, using scripted agents", "provider", cfg.Provider)
			return NewScripted(), nil
		}
		return NewOpenAI(cfg), nil
	case ProviderGemini:
		if cfg.GeminiKey == "" {
			zap.S().Warnw("GEMINI_API_KEY not set, using scripted agents", "provider", cfg.Provider)
			return NewScripted(), nil
		}
		return NewGemini(ctx, cfg)
	case "", ProviderScripted:
		return NewScripted(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

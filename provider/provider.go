package provider

import (
	"context"
	"errors"

	"github.com/voiceline-ai/voiceline/config"
	openai_provider "github.com/voiceline-ai/voiceline/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Message is one turn of a chat-completion conversation.
type Message = openai_provider.Message

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Complete runs a chat completion with an optional system prompt prepended.
	Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, cfg config.OpenAiConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key not configured (providers.openai.api_key)")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.CompletionModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}

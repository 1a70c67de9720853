package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/nvale/orgchat/internal/models"
	"github.com/nvale/orgchat/internal/types"
)

// GeneratorConfig selects and configures a generation backend. Invalid
// combinations fail at construction, not mid-query.
type GeneratorConfig struct {
	Provider    string // "ollama" or "openai"
	Model       string
	BaseURL     string // Ollama server URL
	APIKey      string // OpenAI API key
	Temperature float64
	MaxTokens   int
}

// Generator answers assembled prompts through a langchaingo model. It is the
// concrete GenerationProvider for both Ollama and OpenAI backends.
type Generator struct {
	config GeneratorConfig
	model  llms.Model
}

func NewGeneratorWithConfig(config GeneratorConfig) (*Generator, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2, got %g", config.Temperature)
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative, got %d", config.MaxTokens)
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}

	var model llms.Model
	var err error
	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
	case "openai":
		if config.Model == "" {
			config.Model = "gpt-4"
		}
		if config.APIKey == "" {
			return nil, fmt.Errorf("openai generator requires an API key")
		}
		model, err = openai.New(
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model),
		)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s generator: %w", config.Provider, err)
	}

	return &Generator{config: config, model: model}, nil
}

// Generate produces an answer for the prompt. Backend failures surface as
// generation errors the orchestrator can classify as retryable.
func (g *Generator) Generate(ctx context.Context, prompt models.Prompt) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, prompt.System),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt.User),
	}

	resp, err := g.model.GenerateContent(ctx, content,
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: backend returned no choices", types.ErrGeneration)
	}
	return resp.Choices[0].Content, nil
}

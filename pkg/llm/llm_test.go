package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/nvale/orgchat/pkg/llm"
)

func TestNewEmbedderWithConfig_Defaults(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{})
	require.NoError(t, err)
	assert.Equal(t, 768, emb.Dimension())
}

func TestNewEmbedderWithConfig_UnknownProvider(t *testing.T) {
	_, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "cohere"})
	assert.Error(t, err)
}

func TestNewEmbedderWithConfig_OpenAIRequiresKey(t *testing.T) {
	_, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestEmbed_EmptyInput(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{})
	require.NoError(t, err)

	vectors, err := emb.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestNewGeneratorWithConfig(t *testing.T) {
	gen, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Model:       "mistral",
		Temperature: 0.5,
		MaxTokens:   1000,
		BaseURL:     "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

func TestNewGeneratorWithConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config llm.GeneratorConfig
	}{
		{"temperature too high", llm.GeneratorConfig{Temperature: 2.5}},
		{"negative temperature", llm.GeneratorConfig{Temperature: -0.1}},
		{"negative max tokens", llm.GeneratorConfig{MaxTokens: -1}},
		{"openai without key", llm.GeneratorConfig{Provider: "openai"}},
		{"unknown provider", llm.GeneratorConfig{Provider: "bedrock"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := llm.NewGeneratorWithConfig(tt.config)
			assert.Error(t, err)
		})
	}
}

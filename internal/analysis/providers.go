package analysis

import (
	"context"
	"fmt"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

// Provider defaults. perplexity and anthropic are reached through their
// OpenAI-compatible endpoints.
var providerDefaults = map[string]struct {
	baseURL string
	model   string
}{
	"gemini":     {"", "gemini-2.0-flash"},
	"openai":     {"https://api.openai.com/v1", "gpt-4o-mini"},
	"perplexity": {"https://api.perplexity.ai", "sonar"},
	"anthropic":  {"https://api.anthropic.com/v1/", "claude-3-5-haiku-latest"},
}

// ChatModelConfig selects and configures the chat model.
type ChatModelConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// ChatModelConfigFrom maps application config onto ChatModelConfig.
func ChatModelConfigFrom(c common.LLMConfig) ChatModelConfig {
	return ChatModelConfig{
		Provider:    c.Provider,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// NewChatModel builds the eino chat model for cfg.Provider.
func NewChatModel(ctx context.Context, cfg ChatModelConfig) (model.BaseChatModel, error) {
	def, ok := providerDefaults[cfg.Provider]
	if !ok {
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "API key is required for provider "+cfg.Provider, common.ErrDependency)
	}
	if cfg.Model == "" {
		cfg.Model = def.model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.baseURL
	}
	temp := cfg.Temperature

	if cfg.Provider == "gemini" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		return geminiModel.NewChatModel(ctx, &geminiModel.Config{
			Client:      client,
			Model:       cfg.Model,
			Temperature: &temp,
		})
	}

	return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: &temp,
		Timeout:     cfg.Timeout,
	})
}

// EmbedderConfig configures the optional embedding model used by Ask.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewEmbedder returns nil, nil when no embedding model is configured.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (embedding.Embedder, error) {
	if cfg.Model == "" || cfg.APIKey == "" {
		return nil, nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = providerDefaults["openai"].baseURL
	}
	return openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
}

// NewSearchModel returns nil, nil when no search key is configured. The model
// is reached through perplexity's OpenAI-compatible endpoint unless
// SearchBaseURL points elsewhere.
func NewSearchModel(ctx context.Context, c common.LLMConfig) (model.BaseChatModel, error) {
	if c.SearchKey == "" {
		return nil, nil
	}
	return NewChatModel(ctx, ChatModelConfig{
		Provider: "perplexity",
		APIKey:   c.SearchKey,
		BaseURL:  c.SearchBaseURL,
		Model:    c.SearchModel,
		Timeout:  c.Timeout,
	})
}

package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Document DocumentConfig
	Cache    CacheConfig
	History  HistoryConfig
	LLM      LLMConfig
	LogLevel string
}

// ServerConfig holds HTTP/gRPC listener and admission settings
type ServerConfig struct {
	HTTPAddr              string
	GRPCAddr              string
	MaxUploadBytes        int64
	MaxConcurrentRequests int64
	RequestTimeout        time.Duration
	RateLimitPerMinute    int
	RateLimitBurst        int
}

// DocumentConfig holds extraction settings
type DocumentConfig struct {
	Platform       string
	FeatureLimited bool
	Converter      string
	WorkDir        string
	RequireNative  bool
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// HistoryConfig holds analysis history storage settings
type HistoryConfig struct {
	Driver string // "sqlite" | "postgres"
	DSN    string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	Temperature    float32
	Timeout        time.Duration
	EmbeddingModel string
	EmbeddingKey   string

	// Web search model used by freshness checks; empty key disables it.
	SearchModel   string
	SearchKey     string
	SearchBaseURL string
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "gemini"))
	return &Config{
		Server: ServerConfig{
			HTTPAddr:              getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:              getEnv("GRPC_ADDR", ":8081"),
			MaxUploadBytes:        int64(getEnvAsInt("MAX_UPLOAD_MB", 50)) << 20,
			MaxConcurrentRequests: int64(getEnvAsInt("MAX_CONCURRENT_REQUESTS", 8)),
			RequestTimeout:        getEnvAsDuration("REQUEST_TIMEOUT", 2*time.Minute),
			RateLimitPerMinute:    getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
			RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Document: DocumentConfig{
			Platform:       strings.ToLower(getEnv("PLATFORM", "")),
			FeatureLimited: getEnvAsBool("HWP_FEATURE_LIMITED", false),
			Converter:      getEnv("HWP_CONVERTER", "hwp5html"),
			WorkDir:        getEnv("WORK_DIR", os.TempDir()),
			RequireNative:  getEnvAsBool("HWP_REQUIRE_NATIVE", false),
		},
		Cache: CacheConfig{
			TTL:           getEnvAsDuration("CACHE_TTL", time.Hour),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		History: HistoryConfig{
			Driver: strings.ToLower(getEnv("HISTORY_DRIVER", "sqlite")),
			DSN:    getEnv("HISTORY_DSN", "file:hwp-history.db"),
		},
		LLM: LLMConfig{
			Provider:       provider,
			Model:          getEnv("LLM_MODEL", ""),
			APIKey:         getEnv(providerKeyEnv(provider), ""),
			BaseURL:        getEnv("LLM_BASE_URL", ""),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.2),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
			EmbeddingKey:   getEnv("EMBEDDING_API_KEY", getEnv("OPENAI_API_KEY", "")),
			SearchModel:    getEnv("SEARCH_MODEL", "sonar"),
			SearchKey:      getEnv("SEARCH_API_KEY", getEnv("PERPLEXITY_API_KEY", "")),
			SearchBaseURL:  getEnv("SEARCH_BASE_URL", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func providerKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "perplexity":
		return "PERPLEXITY_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ForceFallback reports whether the environment pins the text-only extractor.
func (d DocumentConfig) ForceFallback() bool {
	return d.FeatureLimited || d.Platform == "linux"
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxConcurrentRequests <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_CONCURRENT_REQUESTS must be positive", ErrInvalidInput)
	}
	if c.Cache.TTL <= 0 {
		return NewAppError("CONFIG_ERROR", "CACHE_TTL must be positive", ErrInvalidInput)
	}
	switch c.History.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "HISTORY_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "perplexity", "anthropic":
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be one of gemini, openai, perplexity, anthropic", ErrInvalidInput)
	}
	return nil
}

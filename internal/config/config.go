package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LLM providers for the structure fallback.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"
)

// Persistence backends.
const (
	StorePathstore = "pathstore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
	StoreNone      = "none"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Structure fallback
	LLMProvider         string
	AnthropicAPIKey     string
	AnthropicModel      string
	OllamaModel         string
	FallbackPrefixChars int
	FallbackTimeout     time.Duration

	// Persistence
	StoreBackend    string
	PathstoreURL    string
	PathstoreAPIKey string
	DatabaseURL     string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentStore int

	// Upload limits
	MaxUploadBytes int64

	// Tokenizer
	TokenizerEncoding string
	PrewarmTokenizer  bool

	// Chunking defaults
	ChunkMaxTokens     int
	ChunkTargetTokens  int
	ChunkOverlapTokens int
	ChunkMinTokens     int

	// Quality gate
	QualityCharsPerPage     int
	QualityMinChunksPerPage float64
	QualityMinSections      int
	QualityMinCoverage      float64

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("NDACHUNK_API_KEY"),

		LLMProvider:         envOr("LLM_PROVIDER", ProviderAnthropic),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:      envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		OllamaModel:         envOr("OLLAMA_MODEL", "llama3.1"),
		FallbackPrefixChars: envInt("FALLBACK_PREFIX_CHARS", 30000),
		FallbackTimeout:     envDuration("FALLBACK_TIMEOUT", 90*time.Second),

		StoreBackend:    envOr("STORE_BACKEND", StoreNone),
		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentStore: envInt("MAX_CONCURRENT_STORE", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		TokenizerEncoding: envOr("TOKENIZER_ENCODING", "cl100k_base"),
		PrewarmTokenizer:  envBool("PREWARM_TOKENIZER", true),

		ChunkMaxTokens:     envInt("CHUNK_MAX_TOKENS", 512),
		ChunkTargetTokens:  envInt("CHUNK_TARGET_TOKENS", 400),
		ChunkOverlapTokens: envInt("CHUNK_OVERLAP_TOKENS", 50),
		ChunkMinTokens:     envInt("CHUNK_MIN_TOKENS", 50),

		QualityCharsPerPage:     envInt("QUALITY_CHARS_PER_PAGE", 3000),
		QualityMinChunksPerPage: envFloat("QUALITY_MIN_CHUNKS_PER_PAGE", 2.0),
		QualityMinSections:      envInt("QUALITY_MIN_SECTIONS", 3),
		QualityMinCoverage:      envFloat("QUALITY_MIN_COVERAGE", 0.8),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.FallbackPrefixChars <= 0 {
		cfg.FallbackPrefixChars = 30000
	}
	if cfg.ChunkMaxTokens <= 0 {
		cfg.ChunkMaxTokens = 512
	}
	if cfg.ChunkTargetTokens <= 0 || cfg.ChunkTargetTokens > cfg.ChunkMaxTokens {
		cfg.ChunkTargetTokens = min(400, cfg.ChunkMaxTokens)
	}
	if cfg.ChunkOverlapTokens < 0 {
		cfg.ChunkOverlapTokens = 50
	}
	if cfg.ChunkMinTokens < 0 {
		cfg.ChunkMinTokens = 50
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("NDACHUNK_API_KEY is required")
	}
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=%s", ProviderAnthropic)
		}
	case ProviderOllama:
		if c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required when LLM_PROVIDER=%s", ProviderOllama)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.StoreBackend {
	case StorePathstore:
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required when STORE_BACKEND=%s", StorePathstore)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StorePostgres)
		}
	case StoreMemory, StoreNone:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

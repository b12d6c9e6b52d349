package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Azure     AzureOpenAIConfig
	Embedding AzureOpenAIConfig
	Synthesis SynthesisConfig
	Retry     RetryConfig
	OCR       OCRConfig
	RAG       RAGConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	MaxUploadBytes int64
	RateLimitRPS   int
	RateLimitBurst int
}

type LogConfig struct {
	Level string
}

// AzureOpenAIConfig identifies one Azure OpenAI deployment.
type AzureOpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// Missing lists the env keys (built from prefix) whose values are empty.
func (c AzureOpenAIConfig) Missing(prefix string) []string {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, prefix+"_ENDPOINT")
	}
	if c.APIKey == "" {
		missing = append(missing, prefix+"_API_KEY")
	}
	if c.Deployment == "" {
		missing = append(missing, prefix+"_DEPLOYMENT")
	}
	if c.APIVersion == "" {
		missing = append(missing, prefix+"_API_VERSION")
	}
	return missing
}

type SynthesisConfig struct {
	Provider     string // "openai" or "anthropic"
	Model        string
	AnthropicKey string
	Temperature  float64
}

type RetryConfig struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

type OCRConfig struct {
	PdftoppmPath  string
	TesseractPath string
	Language      string
	DPI           int
	MaxPages      int
}

type RAGConfig struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	RerankTopN   int
	ResponseMode string // "tree_summarize" or "compact"
	VectorStore  string // "memory" or "pgvector"
	EmbedWorkers int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	temperature, err := strconv.ParseFloat(getEnv("SYNTH_TEMPERATURE", "0.5"), 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SYNTH_TEMPERATURE: %v", err))
	}

	azure := AzureOpenAIConfig{
		Endpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		APIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
		Deployment: getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
		APIVersion: getEnv("AZURE_OPENAI_API_VERSION", ""),
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           intVar("SERVER_PORT", 8080),
			MaxUploadBytes: int64(intVar("SERVER_MAX_UPLOAD_MB", 32)) << 20,
			RateLimitRPS:   intVar("RATE_LIMIT_RPS", 10),
			RateLimitBurst: intVar("RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Azure: azure,
		// The embedding deployment usually lives on its own resource; any key
		// left unset falls back to the chat deployment's value.
		Embedding: AzureOpenAIConfig{
			Endpoint:   getEnv("AZURE_OPENAI_EMBEDDING_ENDPOINT", azure.Endpoint),
			APIKey:     getEnv("AZURE_OPENAI_EMBEDDING_API_KEY", azure.APIKey),
			Deployment: getEnv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-3-large"),
			APIVersion: getEnv("AZURE_OPENAI_EMBEDDING_API_VERSION", azure.APIVersion),
		},
		Synthesis: SynthesisConfig{
			Provider:     getEnv("SYNTH_PROVIDER", "openai"),
			Model:        getEnv("SYNTH_MODEL", azure.Deployment),
			AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
			Temperature:  temperature,
		},
		Retry: RetryConfig{
			MaxAttempts: intVar("LLM_MAX_ATTEMPTS", 3),
			MinBackoff:  durVar("LLM_MIN_BACKOFF", 4*time.Second),
			MaxBackoff:  durVar("LLM_MAX_BACKOFF", 10*time.Second),
		},
		OCR: OCRConfig{
			PdftoppmPath:  getEnv("OCR_PDFTOPPM_PATH", "pdftoppm"),
			TesseractPath: getEnv("OCR_TESSERACT_PATH", "tesseract"),
			Language:      getEnv("OCR_LANGUAGE", "eng"),
			DPI:           intVar("OCR_DPI", 200),
			MaxPages:      intVar("OCR_MAX_PAGES", 0),
		},
		RAG: RAGConfig{
			ChunkSize:    intVar("RAG_CHUNK_SIZE", 512),
			ChunkOverlap: intVar("RAG_CHUNK_OVERLAP", 50),
			TopK:         intVar("RAG_TOP_K", 15),
			RerankTopN:   intVar("RAG_RERANK_TOP_N", 5),
			ResponseMode: getEnv("RAG_RESPONSE_MODE", "tree_summarize"),
			VectorStore:  getEnv("RAG_VECTOR_STORE", "memory"),
			EmbedWorkers: intVar("RAG_EMBED_WORKERS", 3),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 10),
			MinConns:       intVar("DB_MIN_CONNS", 1),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every missing or inconsistent key in a single error.
func (c *Config) Validate() error {
	missing := c.Azure.Missing("AZURE_OPENAI")
	missing = append(missing, c.Embedding.Missing("AZURE_OPENAI_EMBEDDING")...)

	if c.RAG.VectorStore == "pgvector" && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Synthesis.Provider == "anthropic" && c.Synthesis.AnthropicKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(dedupe(missing), ", "))
	}

	var invalid []string
	switch c.Synthesis.Provider {
	case "openai", "anthropic":
	default:
		invalid = append(invalid, fmt.Sprintf("SYNTH_PROVIDER=%q", c.Synthesis.Provider))
	}
	switch c.RAG.VectorStore {
	case "memory", "pgvector":
	default:
		invalid = append(invalid, fmt.Sprintf("RAG_VECTOR_STORE=%q", c.RAG.VectorStore))
	}
	switch c.RAG.ResponseMode {
	case "tree_summarize", "compact":
	default:
		invalid = append(invalid, fmt.Sprintf("RAG_RESPONSE_MODE=%q", c.RAG.ResponseMode))
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		invalid = append(invalid, "RAG_CHUNK_OVERLAP must be smaller than RAG_CHUNK_SIZE")
	}
	if c.Retry.MaxAttempts < 1 {
		invalid = append(invalid, "LLM_MAX_ATTEMPTS must be at least 1")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// SlogLevel translates LOG_LEVEL into a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

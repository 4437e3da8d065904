package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application's configuration, loaded from config.yaml
// (if present), then overridden by environment variables.
type Config struct {
	Port string `mapstructure:"PORT"`

	DBType    string `mapstructure:"DB_TYPE"`
	DBHost    string `mapstructure:"DB_HOST"`
	DBPort    int    `mapstructure:"DB_PORT"`
	DBUser    string `mapstructure:"DB_USER"`
	DBPass    string `mapstructure:"DB_PASSWORD"`
	DBName    string `mapstructure:"DB_NAME"`
	DBSSLMode string `mapstructure:"DB_SSLMODE"`

	VectorIndexBackend string `mapstructure:"VECTOR_INDEX_BACKEND"` // "", or "pgvector"
	VectorDimension    int    `mapstructure:"VECTOR_DIMENSION"`

	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTTTL       time.Duration `mapstructure:"JWT_TTL_HOURS"`

	ChunkSize    int `mapstructure:"CHUNK_SIZE"`
	ChunkOverlap int `mapstructure:"CHUNK_OVERLAP"`

	DocNum            int     `mapstructure:"DOC_NUM"`
	Similarity        float64 `mapstructure:"SIMILARITY"`
	FilteredDocNumber int     `mapstructure:"FILLTERED_DOC_NUMBER"`

	OllamaHost     string `mapstructure:"OLLAMA_HOST"`
	GroqAPIKey     string `mapstructure:"GROQ_API_KEY"`
	BaseURL        string `mapstructure:"BASE_URL"`
	DefaultLLMName string `mapstructure:"DEFAULT_LLMNAME"`

	// Per-backend default model names, used when a request names a backend
	// but no model.
	OllamaModel     string `mapstructure:"OLLAMA_MODEL"`
	CompletionModel string `mapstructure:"COMPLETION_MODEL"`
	GroqModel       string `mapstructure:"GROQ_MODEL"`

	EmbeddingHost       string `mapstructure:"EMBEDDING_HOST"`
	EmbeddingMaxWorkers int    `mapstructure:"EMBEDDING_MAX_WORKERS"`
	EmbeddingMaxTokens  int    `mapstructure:"EMBEDDING_MAX_TOKENS"`

	LLMMaxWorkers     int           `mapstructure:"LLM_MAX_WORKERS"`
	LLMConnectTimeout time.Duration `mapstructure:"LLM_CONNECT_TIMEOUT_SECONDS"`
	LLMReadTimeout    time.Duration `mapstructure:"LLM_READ_TIMEOUT_SECONDS"`

	DBMaxOpenConns int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int `mapstructure:"DB_MAX_IDLE_CONNS"`

	UploadMaxSizeMB int `mapstructure:"UPLOAD_MAX_SIZE_MB"`

	RateLimitMessagesPerMin int `mapstructure:"RATE_LIMIT_MESSAGES_PER_MIN"`
	RateLimitFilesPerHour   int `mapstructure:"RATE_LIMIT_FILES_PER_HOUR"`
	RateLimitBurstSize      int `mapstructure:"RATE_LIMIT_BURST_SIZE"`

	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	SystemMessagesDir string `mapstructure:"SYSTEM_MESSAGES_DIR"`
}

// Load reads config.yaml (if present), layers environment variables on top,
// and returns the fully-populated Config. Failure to unmarshal is fatal
// since the process cannot safely start with a malformed configuration.
func Load(logger *zap.Logger) *Config {
	var config Config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")

	viper.SetDefault("DB_TYPE", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "changeme")
	viper.SetDefault("DB_NAME", "docrag")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("VECTOR_INDEX_BACKEND", "")
	viper.SetDefault("VECTOR_DIMENSION", 768)

	viper.SetDefault("JWT_SECRET_KEY", "")
	viper.SetDefault("JWT_TTL_HOURS", 9)

	viper.SetDefault("CHUNK_SIZE", 2048)
	viper.SetDefault("CHUNK_OVERLAP", 200)

	viper.SetDefault("DOC_NUM", 5)
	viper.SetDefault("SIMILARITY", 0.5)
	viper.SetDefault("FILLTERED_DOC_NUMBER", 20)

	viper.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	viper.SetDefault("GROQ_API_KEY", "")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("DEFAULT_LLMNAME", "ollama")
	viper.SetDefault("OLLAMA_MODEL", "llama3.1")
	viper.SetDefault("COMPLETION_MODEL", "")
	viper.SetDefault("GROQ_MODEL", "llama-3.1-70b-versatile")

	viper.SetDefault("EMBEDDING_HOST", "http://localhost:8081")
	viper.SetDefault("EMBEDDING_MAX_WORKERS", 4)
	viper.SetDefault("EMBEDDING_MAX_TOKENS", 8192)

	viper.SetDefault("LLM_MAX_WORKERS", 5)
	viper.SetDefault("LLM_CONNECT_TIMEOUT_SECONDS", 10)
	viper.SetDefault("LLM_READ_TIMEOUT_SECONDS", 300)

	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 1)

	viper.SetDefault("UPLOAD_MAX_SIZE_MB", 50)

	viper.SetDefault("RATE_LIMIT_MESSAGES_PER_MIN", 20)
	viper.SetDefault("RATE_LIMIT_FILES_PER_HOUR", 10)
	viper.SetDefault("RATE_LIMIT_BURST_SIZE", 5)

	viper.SetDefault("ALLOWED_ORIGINS", []string{"*"})

	viper.SetDefault("SYSTEM_MESSAGES_DIR", "system_messages")

	if err := viper.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		if logger != nil {
			logger.Fatal("unable to decode config into struct", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: unable to decode config into struct: %v\n", err)
			os.Exit(1)
		}
	}

	config.JWTTTL = config.JWTTTL * time.Hour
	config.LLMConnectTimeout = config.LLMConnectTimeout * time.Second
	config.LLMReadTimeout = config.LLMReadTimeout * time.Second

	if config.JWTSecretKey == "" {
		if logger != nil {
			logger.Warn("JWT_SECRET_KEY is not set; falling back to an ephemeral secret, tokens will not survive a restart")
		}
		config.JWTSecretKey = uniqueFallbackSecret()
	}

	cleaned := make([]string, 0, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) > 0 {
		config.AllowedOrigins = cleaned
	}

	return &config
}

// uniqueFallbackSecret avoids a hardcoded dev secret leaking into prod by
// accident; still deterministic within a process lifetime.
func uniqueFallbackSecret() string {
	host, _ := os.Hostname()
	return "dev-only-" + host + "-" + fmt.Sprint(os.Getpid())
}

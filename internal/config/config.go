package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey        string
	GenerationModel     string
	EmbeddingsModel     string
	Port                string
	GinMode             string
	CORSOrigins         []string
	MaxFileSize         int64
	UploadScratchDir    string
	VectorIndexDir      string
	MaxChunkSize        int
	ChunkOverlap        int
	RetrievalTopK       int
	ScoreThreshold      float64
	LLMTimeout          int // seconds
	WebSearchTimeout    int // seconds
	WebSearchMaxResults int
	WebSearchEndpoint   string
	ScratchTTLMinutes   int
	MaintenanceInterval int // minutes
	RateLimitReqs       int
	RateLimitWindow     int // seconds
	OTLPEndpoint        string
	TracingEnabled      bool

	// Redis Configuration (rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GenerationModel:     getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel:     getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		Port:                getEnv("PORT", "8000"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		CORSOrigins:         strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		UploadScratchDir:    getEnv("UPLOAD_SCRATCH_DIR", "./uploads"),
		VectorIndexDir:      getEnv("VECTOR_INDEX_DIR", "./vector_index"),
		MaxChunkSize:        getEnvInt("MAX_CHUNK_SIZE", 1200),
		ChunkOverlap:        getEnvInt("CHUNK_OVERLAP", 400),
		RetrievalTopK:       getEnvInt("RETRIEVAL_TOP_K", 8),
		ScoreThreshold:      getEnvFloat64("SCORE_THRESHOLD", 2.0),
		LLMTimeout:          getEnvInt("LLM_TIMEOUT", 60),
		WebSearchTimeout:    getEnvInt("WEB_SEARCH_TIMEOUT", 10),
		WebSearchMaxResults: getEnvInt("WEB_SEARCH_MAX_RESULTS", 3),
		WebSearchEndpoint:   getEnv("WEB_SEARCH_ENDPOINT", "https://html.duckduckgo.com/html/"),
		ScratchTTLMinutes:   getEnvInt("SCRATCH_TTL_MINUTES", 60),
		MaintenanceInterval: getEnvInt("MAINTENANCE_INTERVAL_MINUTES", 15),
		RateLimitReqs:       getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:     getEnvInt("RATE_LIMIT_WINDOW", 60),
		OTLPEndpoint:        getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled:      getEnvBool("TRACING_ENABLED", false),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}

	// Sanity checks on retrieval parameters. GEMINI_API_KEY is deliberately
	// not required here: a missing key is logged at startup and surfaces when
	// the first AI call is made.
	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_SIZE must be positive")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE)")
	}
	if cfg.RetrievalTopK <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

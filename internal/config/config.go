package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string

	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int

	MaxUploadBytes int64

	ModelTimeoutSeconds int
	EmbedTimeoutSeconds int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ":memory:"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		ChunkSize:           getEnvAsInt("CHUNK_SIZE", 500),
		ChunkOverlap:        getEnvAsInt("CHUNK_OVERLAP", 0),
		RetrievalK:          getEnvAsInt("RETRIEVAL_K", 4),
		MaxUploadBytes:      int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		ModelTimeoutSeconds: getEnvAsInt("MODEL_TIMEOUT_SECONDS", 60),
		EmbedTimeoutSeconds: getEnvAsInt("EMBED_TIMEOUT_SECONDS", 30),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

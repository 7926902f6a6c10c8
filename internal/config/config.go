package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// LLM provider selection: "openai" (any OpenAI-compatible endpoint) or "gemini".
	Provider string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string

	ChatModel      string
	EmbeddingModel string

	// EmbeddingDim is the output dimensionality of the configured embedding
	// model. Every stored chunk vector must have exactly this length.
	EmbeddingDim int

	// TopK is the number of chunks retrieved as grounding context per query.
	TopK int

	MaxTokens      int
	Temperature    float64
	TimeoutSeconds int

	DatabaseURL string
	HTTPPort    string
	LogLevel    string
	JWTSecret   string
	AdminAPIKey string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		Provider:       getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		ChatModel:      getEnv("CHAT_MODEL", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
		EmbeddingDim:   getEnvAsInt("EMBEDDING_DIM", 384),
		TopK:           getEnvAsInt("RETRIEVAL_TOP_K", 3),
		MaxTokens:      getEnvAsInt("MAX_TOKENS", 200),
		Temperature:    getEnvAsFloat("TEMPERATURE", 0.7),
		TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
		DatabaseURL:    getEnv("DATABASE_URL", "ketamine_assistant.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AdminAPIKey:    getEnv("ADMIN_API_KEY", ""),
	}

	switch AppConfig.Provider {
	case "openai":
		if AppConfig.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required when LLM_PROVIDER=openai")
		}
	case "gemini":
		if AppConfig.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required when LLM_PROVIDER=gemini")
		}
	default:
		log.Fatalf("Unknown LLM_PROVIDER %q (expected \"openai\" or \"gemini\")", AppConfig.Provider)
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	if AppConfig.AdminAPIKey == "" {
		log.Fatal("ADMIN_API_KEY environment variable is required")
	}

	if AppConfig.EmbeddingDim <= 0 {
		log.Fatal("EMBEDDING_DIM must be a positive integer")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort          string
	GeminiAPIKey      string
	GeminiModelName   string
	GeminiTemperature float32
	GeminiMaxTokens   int32
	DataDir           string
	ModelPath         string
	FrontendURL       string
	LogLevel          string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModelName:   getEnv("GEMINI_MODEL_NAME", "gemini-1.5-flash-latest"),
		GeminiTemperature: float32(getEnvAsFloat("GEMINI_TEMPERATURE", 0.6)),
		GeminiMaxTokens:   int32(getEnvAsInt("GEMINI_MAX_TOKENS", 1024)),
		DataDir:           getEnv("DATA_DIR", "data"),
		ModelPath:         getEnv("MODEL_PATH", "models/price_model.json"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
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

package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Ai     AIConfig
	Render RenderConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
}

type AIConfig struct {
	Provider      string // "ollama" or "openai"
	Model         string
	BaseURL       string
	APIKey        string
	Temperature   float64
	MaxTokens     int
	MaxIterations int
}

type RenderConfig struct {
	ManimBinary    string
	MediaDir       string
	TimeoutSeconds int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Ai: AIConfig{
			Provider:      getEnv("LLM_PROVIDER", "ollama"),
			Model:         getEnv("LLM_MODEL", "llama3"),
			BaseURL:       getEnv("LLM_BASE_URL", ""),
			APIKey:        getEnv("LLM_API_KEY", ""),
			Temperature:   getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 2000),
			MaxIterations: getEnvAsInt("MAX_ITERATIONS", 5),
		},
		Render: RenderConfig{
			ManimBinary:    getEnv("MANIM_BINARY", "manim"),
			MediaDir:       getEnv("MEDIA_DIR", "media"),
			TimeoutSeconds: getEnvAsInt("RENDER_TIMEOUT_SECONDS", 600),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

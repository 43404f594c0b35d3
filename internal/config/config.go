package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Client ClientConfig
	Server ServerConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int

	AI AIConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
	LogLevel    string
}

type ClientConfig struct {
	BackendURL   string
	SettingsPath string
	HTTPTimeout  time.Duration
}

type ServerConfig struct {
	Addr                  string
	DBDSN                 string
	JWTSecret             string
	AuthRequired          bool
	SessionTTL            time.Duration
	ChatContextWindowSize int
	CorsAllowedOrigin     string
}

// AIConfig holds the server-side provider credentials. A bearer token sent
// by the client overrides the key for that request.
type AIConfig struct {
	GeminiAPIKey  string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OllamaBaseURL string
	OllamaModel   string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "guruji.log"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Client: ClientConfig{
			BackendURL:   getEnv("BACKEND_URL", "http://localhost:8000"),
			SettingsPath: getEnv("CLIENT_SETTINGS_PATH", ""),
			HTTPTimeout:  getEnvAsDuration("CLIENT_HTTP_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8000"),
			// DSN demo (mysql):
			// app:apppass@tcp(127.0.0.1:3306)/guruji?charset=utf8mb4&parseTime=true&loc=Local
			DBDSN:                 getEnv("DB_DSN", "file:guruji.db"),
			JWTSecret:             getEnv("JWT_SECRET", "dev-secret-change-me"),
			AuthRequired:          getEnvAsBool("AUTH_REQUIRED", false),
			SessionTTL:            getEnvAsDuration("SESSION_TTL", time.Hour),
			ChatContextWindowSize: getEnvAsInt("CHAT_CONTEXT_WINDOW_SIZE", 20),
			CorsAllowedOrigin:     getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		},

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getEnv("RABBIT_QUEUE", "kb_ingest"),
		WorkerConcurrency: clamp(getEnvAsInt("WORKER_CONCURRENCY", 2), 1, 50),

		AI: AIConfig{
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_MODEL", "llama3:latest"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

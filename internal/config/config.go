package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port       string
	CORSOrigin string

	// Database
	DBDriver string // "mysql" or "sqlite"
	DBDSN    string

	// Identity provider token verification
	JWTSecret string

	// Text generation (primary)
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// Text generation (fallback)
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// Sandbox execution
	SandboxBaseURL  string
	SandboxAPIKey   string
	SandboxTemplate string

	// Object storage
	StorageURL        string
	StorageServiceKey string
	StorageBucket     string

	// Transcription
	OpenAIAPIKey string

	// Redis (rate limiting)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ChatRatePerMin int

	// RabbitMQ (domain events)
	RabbitURL   string
	RabbitQueue string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "http://localhost:3000"
	}

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "mysql"
	}

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/datagent?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		if driver == "sqlite" {
			dsn = "file:datagent.db?cache=shared"
		} else {
			dsn = "app:apppass@tcp(127.0.0.1:3306)/datagent?charset=utf8mb4&parseTime=true&loc=Local"
		}
	}

	geminiBaseURL := os.Getenv("GEMINI_BASE_URL")
	if geminiBaseURL == "" {
		geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	geminiModel := os.Getenv("GEMINI_MODEL")
	if geminiModel == "" {
		geminiModel = "gemini-1.5-flash"
	}

	openRouterBaseURL := os.Getenv("OPENROUTER_BASE_URL")
	if openRouterBaseURL == "" {
		openRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	openRouterModel := os.Getenv("OPENROUTER_MODEL")
	if openRouterModel == "" {
		openRouterModel = "openai/gpt-4o-mini"
	}

	sandboxTemplate := os.Getenv("SANDBOX_TEMPLATE")
	if sandboxTemplate == "" {
		sandboxTemplate = "base"
	}

	bucket := os.Getenv("STORAGE_BUCKET")
	if bucket == "" {
		bucket = "data-files"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	ratePerMin := 30
	if v := os.Getenv("CHAT_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ratePerMin = n
		}
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "datagent_events"
	}

	return Config{
		Port:       port,
		CORSOrigin: corsOrigin,

		DBDriver: driver,
		DBDSN:    dsn,

		JWTSecret: os.Getenv("JWT_SECRET"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: geminiBaseURL,
		GeminiModel:   geminiModel,

		OpenRouterBaseURL: openRouterBaseURL,
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   openRouterModel,
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		SandboxBaseURL:  os.Getenv("SANDBOX_BASE_URL"),
		SandboxAPIKey:   os.Getenv("SANDBOX_API_KEY"),
		SandboxTemplate: sandboxTemplate,

		StorageURL:        os.Getenv("STORAGE_URL"),
		StorageServiceKey: os.Getenv("STORAGE_SERVICE_KEY"),
		StorageBucket:     bucket,

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		RedisAddr:      redisAddr,
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		ChatRatePerMin: ratePerMin,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,
	}
}

// Warnings lists required settings that are empty. Startup logs these and
// keeps going; the matching feature degrades at call time instead.
func (c Config) Warnings() []string {
	required := []struct {
		name  string
		value string
	}{
		{"GEMINI_API_KEY", c.GeminiAPIKey},
		{"SANDBOX_BASE_URL", c.SandboxBaseURL},
		{"STORAGE_URL", c.StorageURL},
		{"STORAGE_SERVICE_KEY", c.StorageServiceKey},
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"JWT_SECRET", c.JWTSecret},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// LLM providers
const (
	LLMOpenAI = "openai"
	LLMGemini = "gemini"
	LLMNone   = "none"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Store
	StoreBackend   string
	StoreFilePath  string
	RedisURL       string
	RedisKeyPrefix string
	MongoDBURL     string
	MongoDBName    string
	DatabaseURL    string
	TripsTable     string

	// Classification
	KeywordsFile         string
	MalformedStartPolicy string

	// LLM
	LLMProvider    string
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int
	GeminiAPIKey   string
	GeminiModel    string

	// Gmail
	GmailCredentialsFile string
	GmailTokenFile       string
	ScanDaysBack         int
	ScanMaxResults       int
	MaildirPath          string

	// Background scans
	ScanUsers       []string
	ScanIntervalMin int

	// Requests per minute on LLM-backed routes
	RateLimitPerMin int

	// JWT
	JWTSecret string

	// CORS
	AllowedOrigins []string

	// SMTP digest
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTo       []string
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Store
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", StoreFile)),
		StoreFilePath:  getEnv("STORE_FILE_PATH", "trips.json"),
		RedisURL:       getEnv("REDIS_URL", ""),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "travel:trips:"),
		MongoDBURL:     getEnv("MONGODB_URL", ""),
		MongoDBName:    getEnv("MONGODB_DATABASE", "travel"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		TripsTable:     getEnv("TRIPS_TABLE", "user_trips"),

		// Classification
		KeywordsFile:         getEnv("TRAVEL_KEYWORDS_FILE", ""),
		MalformedStartPolicy: strings.ToLower(getEnv("MALFORMED_START_POLICY", "now")),

		// LLM
		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", LLMOpenAI)),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		// Gmail
		GmailCredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", "credentials.json"),
		GmailTokenFile:       getEnv("GMAIL_TOKEN_FILE", "token.json"),
		ScanDaysBack:         getEnvInt("SCAN_DAYS_BACK", 90),
		ScanMaxResults:       getEnvInt("SCAN_MAX_RESULTS", 50),
		MaildirPath:          getEnv("MAILDIR_PATH", ""),

		ScanUsers:       getEnvSlice("SCAN_USERS", nil),
		ScanIntervalMin: getEnvInt("SCAN_INTERVAL_MIN", 0),

		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 30),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// SMTP
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPTo:       getEnvSlice("SMTP_TO", nil),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and backend prerequisites
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreFile:
		if c.StoreFilePath == "" {
			return fmt.Errorf("STORE_FILE_PATH is required for the file store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StoreMongo:
		if c.MongoDBURL == "" {
			return fmt.Errorf("MONGODB_URL is required for the mongo store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.LLMProvider {
	case LLMOpenAI, LLMGemini, LLMNone:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.MalformedStartPolicy {
	case "now", "past", "future":
	default:
		return fmt.Errorf("unknown MALFORMED_START_POLICY %q", c.MalformedStartPolicy)
	}
	return nil
}

// ScanInterval returns the background scan period; zero disables it
func (c *Config) ScanInterval() time.Duration {
	if c.ScanIntervalMin <= 0 || len(c.ScanUsers) == 0 {
		return 0
	}
	return time.Duration(c.ScanIntervalMin) * time.Minute
}

// LLMTimeout returns the per-call LLM deadline
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// SMTPEnabled reports whether digest mail can be sent
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && len(c.SMTPTo) > 0
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/models"
)

// AppName and Version identify the service
const (
	AppName = "JurySane"
	Version = "0.1.0"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Environment  string

	// SecretKey signs session seat tokens
	SecretKey   string
	CORSOrigins []string

	RequestTimeout   time.Duration
	SessionRetention time.Duration
	// AgentRateLimit is requests per second per client on agent routes
	AgentRateLimit int

	LLM LLMConfig
}

// LLMConfig selects and tunes the language model backend
type LLMConfig struct {
	Provider      string
	Model         string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
}

// New sets up all config related services
func New() *Config {
	env := getEnv("ENVIRONMENT", "development")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:              getEnv("DB_URI", "mongodb://127.0.0.1:27017"),
		DatabaseName:     getEnv("DB_NAME", "jurysane"),
		BaseURL:          getEnv("BASE_URL", "http://localhost"),
		Port:             getEnv("PORT", "8000"),
		Environment:      env,
		SecretKey:        getEnv("SECRET_KEY", "your-secret-key-change-in-production"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 90*time.Second),
		SessionRetention: getDuration("SESSION_RETENTION", 72*time.Hour),
		AgentRateLimit:   getInt("AGENT_RATE_LIMIT", 2),
		LLM: LLMConfig{
			Provider:      getEnv("LLM_PROVIDER", "scripted"),
			Model:         getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:   getFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:     getInt("LLM_MAX_TOKENS", 1000),
			Timeout:       getDuration("LLM_TIMEOUT", 60*time.Second),
			OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		},
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	zap.S().With("error", errText).Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{Message: message, Error: errText}})
	w.Write(b)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

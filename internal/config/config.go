package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database (optional, enables the access-grant audit log)
	DatabaseURL    string
	MigrationsPath string

	// Redis (optional, in-memory replay store otherwise)
	RedisURL string

	// JWT
	JWTSecret  string
	SessionTTL time.Duration

	// AI provider
	AIProvider       string
	AIModel          string
	AIMaxTokens      int
	AITemperature    float64
	AITimeout        time.Duration
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	ChatStripMarkup  bool
	ChatRatePerMin   int

	// Blockchain
	RPCURL              string
	RPCTimeout          time.Duration
	TokenContract       string
	TokenDecimals       int
	MinTokenBalance     string
	SignatureMaxAgeMins int

	// CORS
	AllowedOrigins []string
	DefaultOrigin  string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", ""),
		MigrationsPath:      getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		RedisURL:            getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:           mustGetEnv("JWT_SECRET"),
		SessionTTL:          getEnvAsDurationOrDefault("SESSION_TTL", 24*time.Hour),
		AIProvider:          strings.ToLower(getEnvOrDefault("AI_PROVIDER", "anthropic")),
		AIModel:             getEnvOrDefault("AI_MODEL", ""),
		AIMaxTokens:         getEnvAsIntOrDefault("AI_MAX_TOKENS", 1000),
		AITemperature:       getEnvAsFloatOrDefault("AI_TEMPERATURE", 0.3),
		AITimeout:           getEnvAsDurationOrDefault("AI_TIMEOUT", 30*time.Second),
		AnthropicAPIKey:     getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:    getEnvOrDefault("ANTHROPIC_BASE_URL", ""),
		OpenAIAPIKey:        getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnvOrDefault("OPENAI_BASE_URL", ""),
		GeminiAPIKey:        getEnvOrDefault("GEMINI_API_KEY", ""),
		ChatStripMarkup:     getEnvAsBoolOrDefault("CHAT_STRIP_MARKUP", true),
		ChatRatePerMin:      getEnvAsIntOrDefault("CHAT_RATE_LIMIT_PER_MINUTE", 20),
		RPCURL:              getEnvOrDefault("RPC_URL", ""),
		RPCTimeout:          getEnvAsDurationOrDefault("RPC_TIMEOUT", 10*time.Second),
		TokenContract:       getEnvOrDefault("TOKEN_CONTRACT_ADDRESS", ""),
		TokenDecimals:       getEnvAsIntOrDefault("TOKEN_DECIMALS", 18),
		MinTokenBalance:     getEnvOrDefault("MIN_TOKEN_BALANCE", "0"),
		SignatureMaxAgeMins: getEnvAsIntOrDefault("SIGNATURE_MAX_AGE_MINUTES", 10),
		DefaultOrigin:       getEnvOrDefault("DEFAULT_ORIGIN", "https://tokensite.io"),
	}

	cfg.AllowedOrigins = getEnvAsListOrDefault("ALLOWED_ORIGINS", []string{
		cfg.DefaultOrigin,
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
	})

	return cfg
}

// IsDevelopment reports whether internal error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// TokenGateEnabled reports whether wallet logins must pass the on-chain balance check.
func (c *Config) TokenGateEnabled() bool {
	return c.TokenContract != ""
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsDurationOrDefault accepts Go duration strings ("30s") or a bare number of seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

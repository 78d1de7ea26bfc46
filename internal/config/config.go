package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultMaxUploadBytes caps request bodies and individual files.
const DefaultMaxUploadBytes = 10 << 20

// Config holds all configuration for the application.
type Config struct {
	Port          string
	Env           string
	DatabaseURL   string
	MongoDatabase string
	SQLitePath    string
	RedisURL      string

	// Session verification
	JWTSecret string

	// Remote attachment storage; all three must be set to enable it
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Local attachment storage
	UploadsDir    string
	PublicBaseURL string // Overrides the request origin in attachment URLs; set it behind a proxy
	TrustProxy    bool   // Honour X-Forwarded-Proto when deriving the request origin

	MaxUploadBytes int64
	CORSOrigins    []string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MongoDatabase:       getEnv("MONGO_DATABASE", "chat"),
		SQLitePath:          getEnv("SQLITE_PATH", "./data/chat.db"),
		RedisURL:            os.Getenv("REDIS_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		UploadsDir:          getEnv("UPLOADS_DIR", "./public/uploads"),
		PublicBaseURL:       strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		TrustProxy:          getEnv("TRUST_PROXY", "false") == "true",
		MaxUploadBytes:      DefaultMaxUploadBytes,
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:5174,http://localhost:5175")),
		RateLimitWhitelist:  splitList(os.Getenv("RATE_LIMIT_WHITELIST")),
		AutoBlockEnabled:    getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		panic("JWT_SECRET is required in production")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-secret"
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RemoteStorageConfigured reports whether the full Cloudinary credential set
// is present.
func (c *Config) RemoteStorageConfigured() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

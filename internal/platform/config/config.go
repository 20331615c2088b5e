package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDeclarationFee     = 1000
	defaultCitizenUploadBytes = 2 << 20
	defaultAgentUploadBytes   = 5 << 20
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	StrictTransitions bool
	Log               Log
	Database          Database
	Redis             RedisConfig
	Session           Session
	Payment           Payment
	FileHost          FileHost
	Uploads           Uploads
	Stats             Stats
	Kafka             Kafka
	RateLimit         RateLimit
}

type Log struct {
	Level  string
	Format string
}

// Database is empty-URL tolerant: without a URL the service runs on in-memory stores.
type Database struct {
	URL               string
	MaxOpenConns      int
	MigrationsEnabled bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Session struct {
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

type Payment struct {
	BaseURL        string
	SecretKey      string
	SuccessURL     string
	CancelURL      string
	Currency       string
	WebhookSecret  string
	DeclarationFee int64
}

type FileHost struct {
	BaseURL      string
	CloudName    string
	APIKey       string
	UploadPreset string
}

type Uploads struct {
	CitizenMaxBytes int64
	AgentMaxBytes   int64
}

type Stats struct {
	CacheTTL   time.Duration
	CacheStale time.Duration
}

// RateLimit bounds the public auth endpoints per client IP.
type RateLimit struct {
	Enabled    bool
	AuthLimit  int
	AuthWindow time.Duration
}

type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:              getString("ETATCIVIL_ADDR", ":8080"),
		StrictTransitions: getString("STRICT_TRANSITIONS", "false") == "true",
		Log: Log{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "json"),
		},
		Database: Database{
			URL:               os.Getenv("DATABASE_URL"),
			MigrationsEnabled: getString("MIGRATIONS_ENABLED", "true") == "true",
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Session: Session{
			SigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:     getString("JWT_ISSUER", "etatcivil"),
		},
		Payment: Payment{
			BaseURL:       getString("PAYMENT_BASE_URL", "https://api.stripe.com"),
			SecretKey:     os.Getenv("PAYMENT_SECRET_KEY"),
			SuccessURL:    getString("PAYMENT_SUCCESS_URL", "http://localhost:3000/paiement/succes"),
			CancelURL:     getString("PAYMENT_CANCEL_URL", "http://localhost:3000/paiement/annule"),
			Currency:      getString("PAYMENT_CURRENCY", "xof"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		},
		FileHost: FileHost{
			BaseURL:      getString("FILEHOST_BASE_URL", "https://api.cloudinary.com/v1_1"),
			CloudName:    os.Getenv("FILEHOST_CLOUD_NAME"),
			APIKey:       os.Getenv("FILEHOST_API_KEY"),
			UploadPreset: os.Getenv("FILEHOST_UPLOAD_PRESET"),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getString("KAFKA_TOPIC", "etatcivil.requests"),
		},
		RateLimit: RateLimit{
			Enabled: getString("RATE_LIMIT_ENABLED", "true") == "true",
		},
	}

	if cfg.Session.SigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.Session.SigningKey = "dev-secret-key-change-in-production"
	}

	var err error
	if cfg.Database.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return Server{}, err
	}
	if cfg.Payment.DeclarationFee, err = getInt64("DECLARATION_FEE", defaultDeclarationFee); err != nil {
		return Server{}, err
	}
	if cfg.Uploads.CitizenMaxBytes, err = getInt64("CITIZEN_UPLOAD_MAX_BYTES", defaultCitizenUploadBytes); err != nil {
		return Server{}, err
	}
	if cfg.Uploads.AgentMaxBytes, err = getInt64("AGENT_UPLOAD_MAX_BYTES", defaultAgentUploadBytes); err != nil {
		return Server{}, err
	}
	if cfg.Session.TTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.Stats.CacheTTL, err = getDuration("STATS_CACHE_TTL", 30*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Stats.CacheStale, err = getDuration("STATS_CACHE_STALE", 5*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.AuthLimit, err = getInt("AUTH_RATE_LIMIT", 10); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.AuthWindow, err = getDuration("AUTH_RATE_WINDOW", time.Minute); err != nil {
		return Server{}, err
	}
	cfg.Redis.DialTimeout = 5 * time.Second
	cfg.Redis.ReadTimeout = 3 * time.Second
	cfg.Redis.WriteTimeout = 3 * time.Second

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// AppConfig is built once at process entry and passed into the components
// that need it; nothing reads the environment after Load returns.
type AppConfig struct {
	// APIKey is the Visual Crossing credential; the process refuses to start
	// without a real value.
	APIKey string `validate:"required"`

	Location  string `validate:"required"`
	UnitGroup string `validate:"oneof=metric us uk base"`

	// DatabaseDSN is the SQLite connection string.
	DatabaseDSN string `validate:"required"`

	HTTPTimeout time.Duration
	MaxAttempts int `validate:"gte=1"`

	// FetchInterval controls how often the server mode re-runs the job.
	FetchInterval time.Duration

	Port    string
	LogFile string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.APIKey = strings.TrimSpace(os.Getenv("VC_API_KEY"))
	if isPlaceholderKey(cfg.APIKey) {
		return nil, fmt.Errorf("invalid VC_API_KEY: put your Visual Crossing key in .env (VC_API_KEY=...)")
	}

	cfg.Location = strings.TrimSpace(getenvDefault("VC_LOCATION", "Kungsbacka"))
	cfg.UnitGroup = strings.TrimSpace(getenvDefault("VC_UNIT_GROUP", "metric"))
	cfg.DatabaseDSN = getenvDefault("DATABASE_DSN", "file:weather.db?_busy_timeout=30000")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.MaxAttempts = getenvInt("MAX_ATTEMPTS", 5)

	// Server mode interval: default 1 hour, matching the hourly data.
	intervalStr := getenvDefault("FETCH_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogFile = os.Getenv("LOG_FILE")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ExportConfig is the subset of configuration the export utility needs.
// It deliberately does not require an API credential: exporting reads only
// the local database.
type ExportConfig struct {
	DatabaseDSN string
	Location    string
}

// LoadExport reads export configuration from environment with defaults.
func LoadExport() *ExportConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return &ExportConfig{
		DatabaseDSN: getenvDefault("DATABASE_DSN", "file:weather.db?_busy_timeout=30000"),
		Location:    strings.TrimSpace(getenvDefault("VC_LOCATION", "Kungsbacka")),
	}
}

// SafeKey returns a masked form of the API key for log output.
func (c *AppConfig) SafeKey() string {
	if len(c.APIKey) <= 8 {
		return "(short)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// isPlaceholderKey catches keys copied verbatim from setup instructions
// ("DIN_NYCKEL", "YOUR_KEY_HERE", ...).
func isPlaceholderKey(key string) bool {
	upper := strings.ToUpper(key)
	return strings.HasPrefix(upper, "DIN_") || strings.HasPrefix(upper, "YOUR_")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr     string
	OTLPEndpoint string

	Backend BackendConfig

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// BackendConfig points the sync engine at one sales backend org.
type BackendConfig struct {
	BaseURL    string
	APIVersion string
	AuthToken  string

	PriceBookID            string
	BundleProductID        string
	BundlePriceBookEntryID string
	RelationshipTypeLabel  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "rampline"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Backend: BackendConfig{
			BaseURL:               strings.TrimSpace(getenv("BACKEND_BASE_URL", "")),
			APIVersion:            getenv("BACKEND_API_VERSION", "v65.0"),
			AuthToken:             strings.TrimSpace(getenv("BACKEND_AUTH_TOKEN", "")),
			PriceBookID:            strings.TrimSpace(getenv("BACKEND_PRICE_BOOK_ID", "")),
			BundleProductID:        strings.TrimSpace(getenv("BACKEND_BUNDLE_PRODUCT_ID", "")),
			BundlePriceBookEntryID: strings.TrimSpace(getenv("BACKEND_BUNDLE_PRICE_BOOK_ENTRY_ID", "")),
			RelationshipTypeLabel:  getenv("BACKEND_RELATIONSHIP_TYPE_LABEL", "Bundle to Bundle Component Relationship"),
		},
		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "rampline"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),
	}

	return cfg
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

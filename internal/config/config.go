package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/labread/labread/internal/domain/extraction"
	"github.com/labread/labread/internal/platform/middleware"
)

// Storage drivers.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	ExtractionStrategy string  `mapstructure:"EXTRACTION_STRATEGY"`
	FuzzyThreshold     float64 `mapstructure:"FUZZY_THRESHOLD"`
	CatalogPath        string  `mapstructure:"CATALOG_PATH"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	DBAppName   string `mapstructure:"DB_APPLICATION_NAME"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	MaxUploadSize  string        `mapstructure:"MAX_UPLOAD_SIZE"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	OCRTesseract   string `mapstructure:"OCR_TESSERACT"`
	OCRPdftoppm    string `mapstructure:"OCR_PDFTOPPM"`
	OCRLang        string `mapstructure:"OCR_LANG"`
	OCRTessdataDir string `mapstructure:"OCR_TESSDATA_DIR"`
	OCRDPI         int    `mapstructure:"OCR_DPI"`
	OCRMaxPages    int    `mapstructure:"OCR_MAX_PAGES"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var defaults = map[string]any{
	"PORT":                "8000",
	"ENV":                 "development",
	"LOG_LEVEL":           "info",
	"EXTRACTION_STRATEGY": string(extraction.StrategyLine),
	"FUZZY_THRESHOLD":     extraction.DefaultThreshold,
	"STORE_DRIVER":        StoreNone,
	"SQLITE_PATH":         "labread.db",
	"DB_MAX_CONNS":        10,
	"DB_MIN_CONNS":        2,
	"DB_APPLICATION_NAME": "labread",
	"CORS_ORIGINS":        "http://localhost:3000",
	"BODY_LIMIT":          "1M",
	"MAX_UPLOAD_SIZE":     "20M",
	"REQUEST_TIMEOUT":     "120s",
	"RATE_LIMIT_RPS":      1,
	"RATE_LIMIT_BURST":    5,
	"OCR_TESSERACT":       "tesseract",
	"OCR_PDFTOPPM":        "pdftoppm",
	"OCR_LANG":            "eng",
	"OCR_DPI":             300,
	"OCR_MAX_PAGES":       20,
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"EXTRACTION_STRATEGY", "FUZZY_THRESHOLD", "CATALOG_PATH",
	"STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_APPLICATION_NAME",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"CORS_ORIGINS", "BODY_LIMIT", "MAX_UPLOAD_SIZE", "REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"OCR_TESSERACT", "OCR_PDFTOPPM", "OCR_LANG", "OCR_TESSDATA_DIR", "OCR_DPI", "OCR_MAX_PAGES",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from the environment and an optional .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	origins := v.GetString("CORS_ORIGINS")
	cfg.CORSOrigins = nil
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthEnabled reports whether bearer tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.AuthSigningKey != ""
}

// Strategy returns the configured extraction strategy.
func (c *Config) Strategy() extraction.Strategy {
	s, err := extraction.ParseStrategy(c.ExtractionStrategy)
	if err != nil {
		return extraction.StrategyLine
	}
	return s
}

// Validate checks cross-field rules. It does not touch the network or disk.
func (c *Config) Validate() error {
	if _, err := extraction.ParseStrategy(c.ExtractionStrategy); err != nil {
		return fmt.Errorf("EXTRACTION_STRATEGY: %w", err)
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("FUZZY_THRESHOLD must be in (0, 1], got %v", c.FuzzyThreshold)
	}

	switch c.StoreDriver {
	case "", StoreNone:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is %q", StoreSQLite)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", StoreNone, StorePostgres, StoreSQLite, c.StoreDriver)
	}

	if c.IsProduction() && !c.AuthEnabled() {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	if c.AuthEnabled() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}

	if _, err := middleware.ParseSize(c.MaxUploadSize); err != nil {
		return fmt.Errorf("MAX_UPLOAD_SIZE: %w", err)
	}
	if _, err := middleware.ParseSize(c.BodyLimit); err != nil {
		return fmt.Errorf("BODY_LIMIT: %w", err)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.OCRDPI < 0 || c.OCRMaxPages < 0 {
		return fmt.Errorf("OCR_DPI and OCR_MAX_PAGES must not be negative")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

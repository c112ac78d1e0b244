package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the medbill binaries.
type Config struct {
	DSN       string `mapstructure:"DATABASE_URL"`
	LogFormat string `mapstructure:"LOG_FORMAT"` // "text" or "json"

	Port           string        `mapstructure:"PORT"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AITimeout      time.Duration `mapstructure:"AI_TIMEOUT"`
	MaxUploadBytes int64         `mapstructure:"MAX_UPLOAD_BYTES"`
	BillImagesDir  string        `mapstructure:"BILL_IMAGES_DIR"`

	ChatRateLimitPerMinute int `mapstructure:"CHAT_RATE_LIMIT_PER_MINUTE"`
	ChatRateLimitBurst     int `mapstructure:"CHAT_RATE_LIMIT_BURST"`

	GeminiAPIKey  string `mapstructure:"GEMINI_API_KEY"`
	GeminiBaseURL string `mapstructure:"GEMINI_BASE_URL"`
	GeminiModel   string `mapstructure:"GEMINI_MODEL"`

	ResendAPIKey  string `mapstructure:"RESEND_API_KEY"`
	ResendBaseURL string `mapstructure:"RESEND_BASE_URL"`
	EmailFrom     string `mapstructure:"EMAIL_FROM"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	PriceCacheTTL time.Duration `mapstructure:"PRICE_CACHE_TTL"`

	FeeTableFile          string `mapstructure:"FEE_TABLE_FILE"`
	HospitalDirectoryFile string `mapstructure:"HOSPITAL_DIRECTORY_FILE"`

	// Fee loader run options, set from command flags.
	FilePath     string `mapstructure:"-"`
	Activate     bool   `mapstructure:"-"`
	Force        bool   `mapstructure:"-"`
	KeepInactive bool   `mapstructure:"-"`
}

var keys = []string{
	"DATABASE_URL", "LOG_FORMAT", "PORT", "CORS_ORIGINS", "REQUEST_TIMEOUT", "AI_TIMEOUT",
	"MAX_UPLOAD_BYTES", "BILL_IMAGES_DIR", "CHAT_RATE_LIMIT_PER_MINUTE", "CHAT_RATE_LIMIT_BURST",
	"GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_MODEL",
	"RESEND_API_KEY", "RESEND_BASE_URL", "EMAIL_FROM",
	"REDIS_ADDR", "REDIS_PASSWORD", "PRICE_CACHE_TTL",
	"FEE_TABLE_FILE", "HOSPITAL_DIRECTORY_FILE",
}

// flagKeys maps persistent CLI flags onto config keys. A flag that was set
// explicitly wins over the environment.
var flagKeys = map[string]string{
	"dsn":        "DATABASE_URL",
	"log-format": "LOG_FORMAT",
	"port":       "PORT",
}

// Load resolves configuration from defaults, an optional .env file in the
// working directory, the environment, and any bound flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("PORT", "8000")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT", "90s")
	v.SetDefault("AI_TIMEOUT", "60s")
	v.SetDefault("MAX_UPLOAD_BYTES", 20<<20)
	v.SetDefault("BILL_IMAGES_DIR", "bill_images")
	v.SetDefault("CHAT_RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("CHAT_RATE_LIMIT_BURST", 10)
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	v.SetDefault("EMAIL_FROM", "MedBill Analyzer <onboarding@resend.dev>")
	v.SetDefault("PRICE_CACHE_TTL", "24h")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks the settings the HTTP service depends on.
func (c *Config) Validate() error {
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.ChatRateLimitPerMinute <= 0 || c.ChatRateLimitBurst <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT_PER_MINUTE and CHAT_RATE_LIMIT_BURST must be positive")
	}
	if c.RedisAddr != "" && c.PriceCacheTTL <= 0 {
		return fmt.Errorf("PRICE_CACHE_TTL must be positive when REDIS_ADDR is set")
	}
	return nil
}

// ValidateFile checks that the fee schedule file is set and readable.
func (c *Config) ValidateFile() error {
	if c.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	return nil
}

// ValidateLoad checks both the file and DSN fields.
func (c *Config) ValidateLoad() error {
	if err := c.ValidateFile(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

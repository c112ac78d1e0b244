package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "")
	t.Setenv("LOG_FORMAT", "")

	c, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8000" {
		t.Errorf("Port = %q, want 8000", c.Port)
	}
	if c.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", c.LogFormat)
	}
	if c.AITimeout != 60*time.Second {
		t.Errorf("AITimeout = %v", c.AITimeout)
	}
	if len(c.CORSOrigins) != 1 || c.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v", c.CORSOrigins)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9001")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("PRICE_CACHE_TTL", "5m")
	t.Setenv("GEMINI_API_KEY", "k")

	c, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "9001" {
		t.Errorf("Port = %q", c.Port)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v", c.CORSOrigins)
	}
	if c.PriceCacheTTL != 5*time.Minute {
		t.Errorf("PriceCacheTTL = %v", c.PriceCacheTTL)
	}
	if c.GeminiAPIKey != "k" {
		t.Errorf("GeminiAPIKey = %q", c.GeminiAPIKey)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("RESEND_API_KEY", "")
	t.Setenv("LOG_FORMAT", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RESEND_API_KEY=re_test\nLOG_FORMAT=JSON\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ResendAPIKey != "re_test" {
		t.Errorf("ResendAPIKey = %q", c.ResendAPIKey)
	}
	if c.LogFormat != "json" {
		t.Errorf("LogFormat = %q", c.LogFormat)
	}
}

func TestLoad_FlagWins(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("dsn", "", "")
	fs.String("log-format", "text", "")
	if err := fs.Parse([]string{"--dsn", "postgres://flag"}); err != nil {
		t.Fatal(err)
	}

	c, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DSN != "postgres://flag" {
		t.Errorf("DSN = %q, want flag value", c.DSN)
	}
}

func TestValidate_Rejects(t *testing.T) {
	base := Config{
		LogFormat: "text", Port: "8000", RequestTimeout: time.Second, AITimeout: time.Second,
		MaxUploadBytes: 1, ChatRateLimitPerMinute: 1, ChatRateLimitBurst: 1,
	}
	cases := map[string]func(*Config){
		"log format":   func(c *Config) { c.LogFormat = "xml" },
		"port":         func(c *Config) { c.Port = "" },
		"ai timeout":   func(c *Config) { c.AITimeout = 0 },
		"upload limit": func(c *Config) { c.MaxUploadBytes = 0 },
		"rate limit":   func(c *Config) { c.ChatRateLimitBurst = 0 },
		"cache ttl":    func(c *Config) { c.RedisAddr = "localhost:6379"; c.PriceCacheTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateLoad(t *testing.T) {
	var c Config
	if err := c.ValidateLoad(); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "fees.parquet")
	os.WriteFile(path, []byte("x"), 0644)
	c.FilePath = path
	if err := c.ValidateLoad(); err == nil {
		t.Fatal("expected error for missing DSN")
	}
	c.DSN = "postgres://localhost/db"
	if err := c.ValidateLoad(); err != nil {
		t.Fatalf("ValidateLoad: %v", err)
	}

	c.FilePath = "/nonexistent/fees.parquet"
	if err := c.ValidateFile(); err == nil {
		t.Fatal("expected error for inaccessible file")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

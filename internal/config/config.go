package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type AppConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	LiveAddr string `yaml:"live_addr"`

	StoreBackend string        `yaml:"store_backend"`
	RedisURL     string        `yaml:"redis_url"`
	SQLitePath   string        `yaml:"sqlite_path"`
	MatchTTL     time.Duration `yaml:"-"`
	MatchTTLSec  int           `yaml:"match_ttl_sec"`

	DatabaseURL string   `yaml:"database_url"`
	ExportDir   string   `yaml:"export_dir"`
	S3          S3Config `yaml:"s3"`

	AllowedOrigins []string `yaml:"allowed_origins"`
	MessagesDir    string   `yaml:"messages_dir"`

	ExportRetrySec int `yaml:"export_retry_sec"`
	SaveRetries    int `yaml:"save_retries"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// Enabled reports whether object export is configured.
func (c S3Config) Enabled() bool { return strings.TrimSpace(c.Bucket) != "" }

// ExportRetryInterval is zero when background export retry is disabled.
func (c *AppConfig) ExportRetryInterval() time.Duration {
	if c.ExportRetrySec <= 0 {
		return 0
	}
	return time.Duration(c.ExportRetrySec) * time.Second
}

func defaults() *AppConfig {
	return &AppConfig{
		HTTPAddr:       ":8000",
		LiveAddr:       ":8001",
		SQLitePath:     "padel.db",
		ExportDir:      "exports",
		S3:             S3Config{Region: "auto"},
		AllowedOrigins: []string{"*"},
		ExportRetrySec: 60,
		SaveRetries:    3,
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the environment.
// Later sources win.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.finish()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	setString(&c.HTTPAddr, "HTTP_ADDR")
	if v, ok := os.LookupEnv("LIVE_ADDR"); ok {
		// empty disables the live feed listener
		c.LiveAddr = strings.TrimSpace(v)
	}
	setString(&c.StoreBackend, "STORE_BACKEND")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.SQLitePath, "SQLITE_PATH")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.ExportDir, "EXPORT_DIR")
	setString(&c.MessagesDir, "MESSAGES_DIR")

	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&c.S3.Prefix, "S3_PREFIX")
	setString(&c.S3.PublicBaseURL, "S3_PUBLIC_BASE_URL")

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	for _, it := range []struct {
		key string
		dst *int
		min int
	}{
		{"MATCH_TTL_SEC", &c.MatchTTLSec, 0},
		{"EXPORT_RETRY_SEC", &c.ExportRetrySec, 0},
		{"SAVE_RETRIES", &c.SaveRetries, 1},
	} {
		v := strings.TrimSpace(os.Getenv(it.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < it.min {
			return fmt.Errorf("%s must be an integer >= %d, got %q", it.key, it.min, v)
		}
		*it.dst = n
	}
	return nil
}

func (c *AppConfig) finish() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if c.StoreBackend == "" {
		if c.RedisURL != "" {
			c.StoreBackend = BackendRedis
		} else {
			c.StoreBackend = BackendSQLite
		}
	}
	if c.MatchTTLSec > 0 {
		c.MatchTTL = time.Duration(c.MatchTTLSec) * time.Second
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

func (c *AppConfig) validate() error {
	switch c.StoreBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"` // public payments API + gateway callback
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MpesaConfig struct {
	Environment    string        `yaml:"environment"` // sandbox | production
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	Shortcode      string        `yaml:"shortcode"`
	Passkey        string        `yaml:"passkey"`
	CallbackURL    string        `yaml:"callback_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	InitiatePerPhone int           `yaml:"initiate_per_phone"`
	Window           time.Duration `yaml:"window"`
}

type WorkerConfig struct {
	ExpiryInterval       time.Duration `yaml:"expiry_interval"`
	StalePaymentInterval time.Duration `yaml:"stale_payment_interval"`
	StalePaymentAge      time.Duration `yaml:"stale_payment_age"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Mpesa     MpesaConfig     `yaml:"mpesa"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, then lets environment variables override
// secrets so they never have to live on disk. A local .env is honored when
// present.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // best effort; absence is normal outside dev

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("MPESA_CONSUMER_KEY"); v != "" {
		c.Mpesa.ConsumerKey = v
	}
	if v := os.Getenv("MPESA_CONSUMER_SECRET"); v != "" {
		c.Mpesa.ConsumerSecret = v
	}
	if v := os.Getenv("MPESA_PASSKEY"); v != "" {
		c.Mpesa.Passkey = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.Admin.APIKey = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8081
	}
	if c.Admin.SessionTTL <= 0 {
		c.Admin.SessionTTL = 30 * time.Minute
	}
	if c.Database.PoolSize <= 0 {
		c.Database.PoolSize = 10
	}
	if c.Mpesa.Environment == "" {
		c.Mpesa.Environment = "sandbox"
	}
	if c.Mpesa.Timeout <= 0 {
		c.Mpesa.Timeout = 30 * time.Second
	}
	if c.RateLimit.InitiatePerPhone <= 0 {
		c.RateLimit.InitiatePerPhone = 5
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Worker.ExpiryInterval <= 0 {
		c.Worker.ExpiryInterval = time.Hour
	}
	if c.Worker.StalePaymentInterval <= 0 {
		c.Worker.StalePaymentInterval = 10 * time.Minute
	}
	if c.Worker.StalePaymentAge <= 0 {
		c.Worker.StalePaymentAge = time.Hour
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	switch strings.ToLower(c.Mpesa.Environment) {
	case "sandbox", "production":
	default:
		return fmt.Errorf("mpesa.environment must be sandbox or production, got %q", c.Mpesa.Environment)
	}
	if c.Mpesa.ConsumerKey == "" || c.Mpesa.ConsumerSecret == "" {
		return errors.New("mpesa.consumer_key and mpesa.consumer_secret are required")
	}
	if c.Mpesa.Shortcode == "" || c.Mpesa.Passkey == "" {
		return errors.New("mpesa.shortcode and mpesa.passkey are required")
	}
	if c.Mpesa.CallbackURL == "" {
		return errors.New("mpesa.callback_url is required")
	}
	return nil
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
	Database  DatabaseConfig `yaml:"database"`
	Storage   StorageConfig  `yaml:"storage"`
	Model     ModelConfig    `yaml:"model"`
	Reminders ReminderConfig `yaml:"reminders"`
	Auth      AuthConfig     `yaml:"auth"`
	Push      PushConfig     `yaml:"push"`
	Timezone  string         `yaml:"timezone"`
	Workers   WorkersConfig  `yaml:"workers"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	EncryptionKey string `yaml:"encryption_key"`
}

// StorageConfig selects where the profile/stats/transcript blobs live.
// Push subscriptions and auth always stay in sqlite.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "redis"
	RedisURI string `yaml:"redis_uri"`
}

type ModelConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Name          string        `yaml:"name"`
	ImageName     string        `yaml:"image_name"`
	Temperature   float64       `yaml:"temperature"`
	HistoryWindow int           `yaml:"history_window"`
	Timeout       time.Duration `yaml:"timeout"`
}

type ReminderConfig struct {
	Interval          time.Duration `yaml:"interval"`
	Window            time.Duration `yaml:"window"`
	HydrationGap      time.Duration `yaml:"hydration_gap"`
	HydrationCooldown time.Duration `yaml:"hydration_cooldown"`
	AwakeOnly         bool          `yaml:"awake_only"`
	NotifyTimeout     time.Duration `yaml:"notify_timeout"`
}

type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	AccessTokenMinutes int    `yaml:"access_token_minutes"`
	RefreshTokenDays   int    `yaml:"refresh_token_days"`
	RememberDays       int    `yaml:"remember_days"`
	CookieSecure       bool   `yaml:"cookie_secure"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string `yaml:"subject"`
	TTL             int    `yaml:"ttl"`
}

type WorkersConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 3000, AllowedOrigins: []string{"http://localhost:5173"}},
		Log:      LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Database: DatabaseConfig{Path: "./data/dietcoach.db"},
		Storage:  StorageConfig{Driver: "sqlite", RedisURI: "redis://localhost:6379/0"},
		Model: ModelConfig{
			BaseURL:       "https://api.openai.com/v1",
			Name:          "gpt-4o-mini",
			ImageName:     "gpt-image-1",
			Temperature:   0.7,
			HistoryWindow: 15,
			Timeout:       60 * time.Second,
		},
		Reminders: ReminderConfig{
			Interval:          30 * time.Second,
			Window:            15 * time.Minute,
			HydrationGap:      90 * time.Minute,
			HydrationCooldown: 60 * time.Minute,
			NotifyTimeout:     10 * time.Second,
		},
		Auth:    AuthConfig{AccessTokenMinutes: 15, RefreshTokenDays: 7, RememberDays: 30, CookieSecure: true},
		Push:    PushConfig{TTL: 30},
		Workers: WorkersConfig{Enabled: true},
	}
}

// Load reads .env (if any), then the YAML file, then environment overrides.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	c := Default()

	paths := []string{"etc/dietcoach.yaml", "/etc/dietcoach/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if configFile != "" {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		break
	}

	envOverride(&c.Database.Path, "DB_PATH")
	envOverride(&c.Database.EncryptionKey, "DB_ENCRYPTION_KEY")
	envOverride(&c.Storage.Driver, "STORAGE_DRIVER")
	envOverride(&c.Storage.RedisURI, "REDIS_URI")
	envOverride(&c.Model.BaseURL, "MODEL_BASE_URL")
	envOverride(&c.Model.APIKey, "MODEL_API_KEY")
	envOverride(&c.Model.Name, "MODEL_NAME")
	envOverride(&c.Model.ImageName, "IMAGE_MODEL_NAME")
	envOverride(&c.Timezone, "TIMEZONE")
	envOverride(&c.Auth.JWTSecret, "JWT_SECRET")
	envOverride(&c.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	envOverride(&c.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	envOverride(&c.Push.Subject, "VAPID_SUBJECT")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideBool(&c.Workers.Enabled, "ENABLE_WORKERS")
	envOverrideBool(&c.Auth.CookieSecure, "COOKIE_SECURE")
	envOverrideList(&c.Server.AllowedOrigins, "ALLOWED_ORIGINS")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 characters (set JWT_SECRET)")
	}
	switch c.Storage.Driver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Reminders.Interval <= 0 {
		return fmt.Errorf("reminders.interval must be positive")
	}
	if c.Model.HistoryWindow <= 0 {
		c.Model.HistoryWindow = 15
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOverrideBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envOverrideList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

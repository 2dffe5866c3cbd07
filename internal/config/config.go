package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr        string         `yaml:"addr"`
	BaseURL     string         `yaml:"base_url"`
	InviteURL   string         `yaml:"invite_url"` // page that accepts ?token=, defaults to the API route
	DataDir     string         `yaml:"data_dir"`
	LogLevel    string         `yaml:"log_level"`
	CORSOrigins []string       `yaml:"cors_origins"`
	Database    DatabaseConfig `yaml:"database"`
	JWT         JWTConfig      `yaml:"jwt"`
	Email       EmailConfig    `yaml:"email"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql or postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type EmailConfig struct {
	FromEmail    string `yaml:"from_email"`
	ResendAPIKey string `yaml:"resend_api_key"`
	SMTPEnabled  bool   `yaml:"smtp_enabled"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPass     string `yaml:"smtp_pass"`
}

// Flags holds command line overrides. Empty values are ignored.
type Flags struct {
	ConfigPath string
	Addr       string
	BaseURL    string
	DataDir    string
}

func Default() Config {
	return Config{
		Addr:     ":8080",
		BaseURL:  "http://localhost:8080",
		DataDir:  "data",
		LogLevel: "info",
		Database: DatabaseConfig{Driver: "sqlite"},
		JWT:      JWTConfig{TTL: 24 * time.Hour},
		Email: EmailConfig{
			FromEmail: "Tracker <tracker@resend.dev>",
			SMTPPort:  "587",
		},
	}
}

// AcceptInvitationURL is the link mailed with invitations, without the
// token query.
func (c Config) AcceptInvitationURL() string {
	if c.InviteURL != "" {
		return c.InviteURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/api/projects/accept_invitation"
}

// UploadDir is where attachment blobs live.
func (c Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load resolves the configuration: defaults, then the YAML file, then
// environment (a .env file is loaded first when present), then flags.
func Load(flags Flags) (Config, error) {
	cfg := Default()

	if flags.ConfigPath != "" {
		b, err := os.ReadFile(flags.ConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg.Addr = getEnv("TRACKER_ADDR", cfg.Addr)
	cfg.BaseURL = getEnv("TRACKER_BASE_URL", cfg.BaseURL)
	cfg.InviteURL = getEnv("TRACKER_INVITE_URL", cfg.InviteURL)
	cfg.DataDir = getEnv("TRACKER_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DB_DSN", cfg.Database.DSN)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	if v := os.Getenv("JWT_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse JWT_TTL: %w", err)
		}
		cfg.JWT.TTL = ttl
	}

	cfg.Email.FromEmail = getEnv("TRACKER_FROM_EMAIL", cfg.Email.FromEmail)
	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)
	if v := os.Getenv("SMTP_ENABLED"); v != "" {
		cfg.Email.SMTPEnabled = strings.EqualFold(v, "true")
	}
	cfg.Email.SMTPHost = getEnv("SMTP_HOST", cfg.Email.SMTPHost)
	cfg.Email.SMTPPort = getEnv("SMTP_PORT", cfg.Email.SMTPPort)
	cfg.Email.SMTPUser = getEnv("SMTP_USER", cfg.Email.SMTPUser)
	cfg.Email.SMTPPass = getEnv("SMTP_PASS", cfg.Email.SMTPPass)

	if flags.Addr != "" {
		cfg.Addr = flags.Addr
	}
	if flags.BaseURL != "" {
		cfg.BaseURL = flags.BaseURL
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if cfg.JWT.Secret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	switch cfg.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver != "sqlite" && cfg.Database.DSN == "" {
		return Config{}, fmt.Errorf("DB_DSN is required for %s", cfg.Database.Driver)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	// Database
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// Redis
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	AuthRateLimit int           `env:"AUTH_RATE_LIMIT" envDefault:"10"`

	// Storage
	StoragePath string `env:"STORAGE_PATH" envDefault:"./uploads"`

	// Scheduling
	WorkerCount      int           `env:"WORKER_COUNT" envDefault:"4"`
	CheckHorizonDays int           `env:"CHECK_HORIZON_DAYS" envDefault:"30"`
	OverdueGrace     time.Duration `env:"OVERDUE_GRACE" envDefault:"2h"`

	// SMTP
	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"noreply@inspecta.local"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	// Bootstrap
	BootstrapDomain        string `env:"BOOTSTRAP_DOMAIN"`
	BootstrapDomainName    string `env:"BOOTSTRAP_DOMAIN_NAME"`
	BootstrapAdminUsername string `env:"BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads a .env file when present and then parses the process
// environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.WorkerCount < 1 {
		c.WorkerCount = 1
	}
	if c.CheckHorizonDays < 1 {
		c.CheckHorizonDays = 1
	}
	if c.AuthRateLimit < 1 {
		c.AuthRateLimit = 10
	}
	return nil
}

// HasBootstrap reports whether a first domain and admin should be ensured
// at startup.
func (c *Config) HasBootstrap() bool {
	return c.BootstrapDomain != "" && c.BootstrapAdminUsername != "" && c.BootstrapAdminPassword != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const Production = "production"

const (
	IngestModeInline = "inline"
	IngestModeQueue  = "queue"
)

type DatabaseOptions struct {
	Driver      string `env:"DB_DRIVER" envDefault:"mysql"`
	URL         string `env:"DATABASE_URL"`
	Host        string `env:"DB_HOST" envDefault:"localhost"`
	Port        string `env:"DB_PORT"`
	Name        string `env:"DB_DATABASE" envDefault:"ngo_tracker"`
	User        string `env:"DB_USERNAME" envDefault:"root"`
	Password    string `env:"DB_PASSWORD"`
	DebugSQL    bool   `env:"DEBUG_SQL" envDefault:"false"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// DSN builds the driver specific connection string. DATABASE_URL wins when set.
func (d DatabaseOptions) DSN() (string, error) {
	if d.URL != "" {
		return d.URL, nil
	}
	switch d.Driver {
	case "mysql":
		port := d.Port
		if port == "" {
			port = "3306"
		}
		cfg := mysqldriver.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, port)
		cfg.DBName = d.Name
		cfg.ParseTime = true
		cfg.Loc = time.Local
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		return cfg.FormatDSN(), nil
	case "postgres":
		port := d.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
			d.Host, port, d.User, d.Name, d.Password), nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q (want mysql or postgres)", d.Driver)
	}
}

type IngestOptions struct {
	Mode           string        `env:"INGEST_MODE" envDefault:"inline"`
	MaxUploadBytes int64         `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
	QueueKey       string        `env:"INGEST_QUEUE_KEY" envDefault:"ngo_reports:ingest"`
	PollTimeout    time.Duration `env:"INGEST_WORKER_POLL" envDefault:"5s"`
}

func (i *IngestOptions) Validate() error {
	if i.Mode != IngestModeInline && i.Mode != IngestModeQueue {
		return fmt.Errorf("INGEST_MODE must be '%s' or '%s', got '%s'", IngestModeInline, IngestModeQueue, i.Mode)
	}
	if i.MaxUploadBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", i.MaxUploadBytes)
	}
	return nil
}

type RedisOptions struct {
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

type CORSOptions struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	OriginPatterns []string `env:"CORS_ALLOWED_ORIGIN_PATTERNS" envSeparator:"," envDefault:"^https://.*\\.vercel\\.app$,^https://.*\\.netlify\\.app$"`
	FrontendURL    string   `env:"FRONTEND_URL"`
}

type RateLimitOptions struct {
	Enabled bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Rate    string `env:"RATE_LIMIT_RATE" envDefault:"120-M"`
	Storage string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if strings.TrimSpace(r.Rate) == "" {
		return fmt.Errorf("rate limit Rate is required when rate limiting is enabled")
	}
	return nil
}

type AuthOptions struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type MailOptions struct {
	Host          string   `env:"SMTP_HOST"`
	Port          int      `env:"SMTP_PORT" envDefault:"587"`
	User          string   `env:"SMTP_USER"`
	Pass          string   `env:"SMTP_PASS"`
	From          string   `env:"SMTP_FROM"` // e.g. "NGO Reports <no-reply@your.org>"
	SkipTLSVerify bool     `env:"SMTP_SKIP_TLS_VERIFY" envDefault:"false"`
	NotifyTo      []string `env:"JOB_NOTIFY_TO" envSeparator:","`
}

type MonitorOptions struct {
	LogsToken string `env:"LOGS_ACCESS_TOKEN"`
}

type Settings struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	GinMode     string `env:"GIN_MODE"`

	Database  DatabaseOptions
	Ingest    IngestOptions
	Redis     RedisOptions
	CORS      CORSOptions
	RateLimit RateLimitOptions
	Auth      AuthOptions
	Mail      MailOptions
	Monitor   MonitorOptions
}

func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, Production)
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files (if any) and parses the process environment into Settings.
func Load() (*Settings, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return Parse()
}

// Parse reads Settings from the current environment only.
func Parse() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := s.Database.DSN(); err != nil {
		return nil, err
	}
	if err := s.Ingest.Validate(); err != nil {
		return nil, err
	}
	if s.RateLimit.Enabled {
		if err := s.RateLimit.Validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	AppName string `env:"APP_NAME" env-default:"marketchat"`
	Env     string `env:"APP_ENV" env-default:"development"`

	Server Server
	Store  Store
	Auth   Auth
	WS     WS
	Chat   Chat
}

// Server holds HTTP server configuration.
type Server struct {
	Host         string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port         int           `env:"HTTP_PORT" env-default:"8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://localhost:5173"`
}

// Store selects and configures the persistence driver.
type Store struct {
	// Driver is "sqlite" or "postgres".
	Driver string `env:"STORE_DRIVER" env-default:"sqlite"`
	DSN    string `env:"STORE_DSN" env-default:"marketchat.db"`
}

// Auth configures the identity collaborator.
type Auth struct {
	JWTSecret string `env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" env-default:"24h"`
}

// WS configures the connection registry liveness sweep.
type WS struct {
	SweepInterval time.Duration `env:"WS_SWEEP_INTERVAL" env-default:"30s"`
	PongWait      time.Duration `env:"WS_PONG_WAIT" env-default:"75s"`
}

// Chat holds messaging policy knobs.
type Chat struct {
	BlockedTerms []string `env:"MODERATION_BLOCKLIST" env-separator:","`
	PageSize     int      `env:"HISTORY_PAGE_SIZE" env-default:"50"`
}

// Load reads configuration from the environment, with .env as a
// best-effort local override.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

package config

import (
	"log/slog"
	"time"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" validate:"required"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"20" validate:"min=1"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"10" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

type AppConfig struct {
	Port            uint16        `env:"APP_PORT" default:"8080" validate:"gt=0"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" default:"INFO"`
	LogJSON         bool          `env:"APP_LOG_JSON" default:"true"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" default:"15s" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" validate:"required,min=16"`
}

type RateLimitConfig struct {
	LaunchPerSecond float64 `env:"LAUNCH_RATE_PER_SECOND" default:"1" validate:"gt=0"`
	LaunchBurst     int     `env:"LAUNCH_RATE_BURST" default:"2" validate:"min=1"`
}

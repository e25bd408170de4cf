package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseDriver    string
	DatabaseURL       string
	RedisURL          string
	RedisChannel      string
	NATSURL           string
	JWTSecret         string
	LedgerRetryBudget uint
	BattleLockTTL     time.Duration
	BattleLockWait    time.Duration
	BroadcastBuffer   int
	OTelEndpoint      string
	SeedEnabled       bool
	SeedToken         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FORTRESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Fortress API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("redis.channel", "fortress")
	v.SetDefault("ledger.retry_budget", 5)
	v.SetDefault("battle.lock_ttl", "30s")
	v.SetDefault("battle.lock_wait", "5s")
	v.SetDefault("broadcast.buffer", 32)
	v.SetDefault("seed.enabled", false)

	lockTTL, err := durationValue(v, "battle.lock_ttl")
	if err != nil {
		return Config{}, err
	}
	lockWait, err := durationValue(v, "battle.lock_wait")
	if err != nil {
		return Config{}, err
	}

	budget := v.GetInt("ledger.retry_budget")
	if budget <= 0 {
		return Config{}, fmt.Errorf("ledger retry budget must be positive, got %d", budget)
	}

	buffer := v.GetInt("broadcast.buffer")
	if buffer <= 0 {
		buffer = 32
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		RedisChannel:      v.GetString("redis.channel"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		LedgerRetryBudget: uint(budget),
		BattleLockTTL:     lockTTL,
		BattleLockWait:    lockWait,
		BroadcastBuffer:   buffer,
		OTelEndpoint:      v.GetString("otel.endpoint"),
		SeedEnabled:       v.GetBool("seed.enabled"),
		SeedToken:         v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SeedEnabled && strings.TrimSpace(cfg.SeedToken) == "" {
		return Config{}, fmt.Errorf("seed token must be provided when seeding is enabled")
	}

	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	return cfg, nil
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return duration, nil
}

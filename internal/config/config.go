package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Providers ProvidersConfig
	Flags     FlagsConfig
	Webhooks  WebhookConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	MaxRequests       int
	WindowSec         int
	MaxPreviewsPerDay int
	MaxConcurrentJobs int
	SweepIntervalSec  int
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

type ProvidersConfig struct {
	Loudly   ProviderConfig
	Beatoven ProviderConfig
	MusicGen ProviderConfig
	PollSec  int
}

type FlagsConfig struct {
	StandaloneMode bool
	ElevenEnabled  bool
	AllowExplicit  bool
}

type WebhookConfig struct {
	TimeoutSec int
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSec) * time.Second
}

func (p ProvidersConfig) PollInterval() time.Duration {
	return time.Duration(p.PollSec) * time.Second
}

func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSec) * time.Second
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("postgres.dsn", "host=localhost user=crav password=crav dbname=crav port=5432 sslmode=disable")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.max_requests", 60)
	viper.SetDefault("ratelimit.window_sec", 60)
	viper.SetDefault("ratelimit.max_previews_per_day", 30)
	viper.SetDefault("ratelimit.max_concurrent_jobs", 3)
	viper.SetDefault("ratelimit.sweep_interval_sec", 60)
	viper.SetDefault("providers.loudly.base_url", "https://api.loudly.com/v1")
	viper.SetDefault("providers.loudly.api_key", "")
	viper.SetDefault("providers.beatoven.base_url", "https://api.beatoven.ai")
	viper.SetDefault("providers.beatoven.api_key", "")
	viper.SetDefault("providers.musicgen.base_url", "http://localhost:8085/api")
	viper.SetDefault("providers.poll_sec", 5)
	viper.SetDefault("flags.standalone_mode", false)
	viper.SetDefault("flags.eleven_enabled", false)
	viper.SetDefault("flags.allow_explicit", false)
	viper.SetDefault("webhooks.timeout_sec", 10)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Postgres: PostgresConfig{
			DSN: viper.GetString("postgres.dsn"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests:       viper.GetInt("ratelimit.max_requests"),
			WindowSec:         viper.GetInt("ratelimit.window_sec"),
			MaxPreviewsPerDay: viper.GetInt("ratelimit.max_previews_per_day"),
			MaxConcurrentJobs: viper.GetInt("ratelimit.max_concurrent_jobs"),
			SweepIntervalSec:  viper.GetInt("ratelimit.sweep_interval_sec"),
		},
		Providers: ProvidersConfig{
			Loudly: ProviderConfig{
				BaseURL: viper.GetString("providers.loudly.base_url"),
				APIKey:  viper.GetString("providers.loudly.api_key"),
			},
			Beatoven: ProviderConfig{
				BaseURL: viper.GetString("providers.beatoven.base_url"),
				APIKey:  viper.GetString("providers.beatoven.api_key"),
			},
			MusicGen: ProviderConfig{
				BaseURL: viper.GetString("providers.musicgen.base_url"),
			},
			PollSec: viper.GetInt("providers.poll_sec"),
		},
		Flags: FlagsConfig{
			StandaloneMode: viper.GetBool("flags.standalone_mode"),
			ElevenEnabled:  viper.GetBool("flags.eleven_enabled"),
			AllowExplicit:  viper.GetBool("flags.allow_explicit"),
		},
		Webhooks: WebhookConfig{
			TimeoutSec: viper.GetInt("webhooks.timeout_sec"),
		},
	}

	return cfg, nil
}

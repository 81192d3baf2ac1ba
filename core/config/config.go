package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		JWT       JWTConfig
		GoogleAPI GoogleAPIConfig
		Sync      SyncConfig
		Crypto    CryptoConfig
	}

	ServerConfig struct {
		Env     string
		Host    string
		Port    int
		BaseURL string
	}

	DatabaseConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
	}

	RedisConfig struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	JWTConfig struct {
		Secret string
	}

	GoogleAPIConfig struct {
		ClientID     string
		ClientSecret string
		RedirectURI  string
	}

	SyncConfig struct {
		RequestTimeout      time.Duration
		RefreshLeeway       time.Duration
		ConnectedCacheTTL   time.Duration
		StateTTL            time.Duration
		MaxBatchErrors      int
		DefaultTimezone     string
		AdoptOrphanedEvents bool
		WorkerConcurrency   int
	}

	CryptoConfig struct {
		TokenKey string
	}
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Init loads .env (if present) and the process environment into the global config.
func Init() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(viper.New())
	if err != nil {
		return nil, err
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()
	return cfg, nil
}

// Load builds a Config from v, applying defaults for anything unset.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Env:     v.GetString("APP_ENV"),
			Host:    v.GetString("SERVER_HOST"),
			Port:    v.GetInt("SERVER_PORT"),
			BaseURL: v.GetString("SERVER_BASE_URL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		GoogleAPI: GoogleAPIConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  v.GetString("GOOGLE_REDIRECT_URI"),
		},
		Sync: SyncConfig{
			RequestTimeout:      v.GetDuration("SYNC_REQUEST_TIMEOUT"),
			RefreshLeeway:       v.GetDuration("SYNC_REFRESH_LEEWAY"),
			ConnectedCacheTTL:   v.GetDuration("SYNC_CONNECTED_CACHE_TTL"),
			StateTTL:            v.GetDuration("SYNC_OAUTH_STATE_TTL"),
			MaxBatchErrors:      v.GetInt("SYNC_MAX_BATCH_ERRORS"),
			DefaultTimezone:     v.GetString("SYNC_DEFAULT_TIMEZONE"),
			AdoptOrphanedEvents: v.GetBool("SYNC_ADOPT_ORPHANED_EVENTS"),
			WorkerConcurrency:   v.GetInt("SYNC_WORKER_CONCURRENCY"),
		},
		Crypto: CryptoConfig{
			TokenKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 7070)
	v.SetDefault("SERVER_BASE_URL", "http://localhost:7070")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "calendar_sync")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SYNC_REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("SYNC_REFRESH_LEEWAY", 60*time.Second)
	v.SetDefault("SYNC_CONNECTED_CACHE_TTL", 60*time.Second)
	v.SetDefault("SYNC_OAUTH_STATE_TTL", 10*time.Minute)
	v.SetDefault("SYNC_MAX_BATCH_ERRORS", 10)
	v.SetDefault("SYNC_DEFAULT_TIMEZONE", "America/New_York")
	v.SetDefault("SYNC_ADOPT_ORPHANED_EVENTS", false)
	v.SetDefault("SYNC_WORKER_CONCURRENCY", 2)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be positive")
	}
	if c.Sync.RequestTimeout <= 0 {
		return fmt.Errorf("SYNC_REQUEST_TIMEOUT must be positive")
	}
	if c.Sync.MaxBatchErrors <= 0 {
		c.Sync.MaxBatchErrors = 10
	}
	if c.Sync.WorkerConcurrency <= 0 {
		c.Sync.WorkerConcurrency = 1
	}
	return nil
}

// RedisEnabled reports whether Redis backs the cache and the background queue.
// REDIS_ENABLED=false runs on the in-memory cache with batch syncs inline.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) != ""
}

// IsDevelopment reports whether the service runs with APP_ENV=development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Env, "development")
}

// Get returns the loaded config and panics if Init has not run.
func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config not initialized")
	}
	return cfg
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}

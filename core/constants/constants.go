package constants

import "time"

const (
	DefaultTimeout        = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	ShutdownTimeout       = 10 * time.Second

	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
	DatabaseSSLMode         = "disable"

	ContextUserID    = "user_id"
	ContextTokenData = "token_data"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Redis keys
const (
	RedisKeyOAuthState        = "calendar:oauth_state:%s"
	RedisKeyCalendarConnected = "calendar:connected:%s:%s"
)

// Calendar providers
const (
	ProviderGoogle    = "google"
	DefaultCalendarID = "primary"
)

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the agent.
type Config struct {
	App      AppConfig
	API      APIConfig
	Socket   SocketConfig
	Location LocationConfig
	Store    StoreConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Bridge   BridgeConfig
	Geocode  GeocodeConfig
	Notify   NotificationConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Role    string
	Version string
}

// APIConfig points at the discovery service REST API.
type APIConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// SocketConfig configures the realtime channel.
type SocketConfig struct {
	URL                     string
	HandshakeTimeoutSeconds int
	WriteTimeoutSeconds     int
	MaxReconnectAttempts    int
	ReconnectInitialMillis  int
	ReconnectMaxSeconds     int
}

// LocationConfig configures the position source.
type LocationConfig struct {
	FixedLatitude        float64
	FixedLongitude       float64
	HighAccuracy         bool
	FixTimeoutSeconds    int
	MaxCachedAgeSeconds  int
	DistanceFilterMeters float64
	WatchIntervalSeconds int
}

// StoreConfig selects the credential store and ledger backends.
type StoreConfig struct {
	CredentialBackend string
	LedgerBackend     string
	Passphrase        string
	Salt              string
}

// SQLiteConfig holds the on-device database location.
type SQLiteConfig struct {
	Path string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session parameters.
type AuthConfig struct {
	DefaultTokenTTLMinutes int
}

// BridgeConfig controls the loopback HTTP bridge used by the UI shell.
type BridgeConfig struct {
	Host                  string
	Port                  string
	RequestTimeoutSeconds int
}

// GeocodeConfig holds reverse geocoding credentials.
type GeocodeConfig struct {
	MapboxAccessToken string
	BaseURL           string
}

// NotificationConfig controls the user notice feed.
type NotificationConfig struct {
	Capacity   int
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "thelewala-agent"),
			Env:     getEnv("APP_ENV", "development"),
			Role:    strings.ToLower(os.Getenv("APP_ROLE")),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:               strings.TrimRight(getEnv("HOST_URL", "http://127.0.0.1:3000"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("API_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Socket: SocketConfig{
			URL:                     getEnv("SERVER_URL", "ws://127.0.0.1:3001/ws"),
			HandshakeTimeoutSeconds: getEnvAsInt("SOCKET_HANDSHAKE_TIMEOUT_SECONDS", 10),
			WriteTimeoutSeconds:     getEnvAsInt("SOCKET_WRITE_TIMEOUT_SECONDS", 5),
			MaxReconnectAttempts:    getEnvAsInt("SOCKET_MAX_RECONNECT_ATTEMPTS", 5),
			ReconnectInitialMillis:  getEnvAsInt("SOCKET_RECONNECT_INITIAL_MS", 500),
			ReconnectMaxSeconds:     getEnvAsInt("SOCKET_RECONNECT_MAX_SECONDS", 15),
		},
		Location: LocationConfig{
			FixedLatitude:        getEnvAsFloat("LOCATION_FIXED_LATITUDE", 0),
			FixedLongitude:       getEnvAsFloat("LOCATION_FIXED_LONGITUDE", 0),
			HighAccuracy:         getEnvAsBool("LOCATION_HIGH_ACCURACY", true),
			FixTimeoutSeconds:    getEnvAsInt("LOCATION_FIX_TIMEOUT_SECONDS", 15),
			MaxCachedAgeSeconds:  getEnvAsInt("LOCATION_MAX_CACHED_AGE_SECONDS", 10),
			DistanceFilterMeters: getEnvAsFloat("LOCATION_DISTANCE_FILTER_METERS", 10),
			WatchIntervalSeconds: getEnvAsInt("LOCATION_WATCH_INTERVAL_SECONDS", 5),
		},
		Store: StoreConfig{
			CredentialBackend: strings.ToLower(getEnv("CREDSTORE_BACKEND", "sqlite")),
			LedgerBackend:     strings.ToLower(getEnv("LEDGER_BACKEND", "sqlite")),
			Passphrase:        os.Getenv("CREDSTORE_PASSPHRASE"),
			Salt:              getEnv("CREDSTORE_SALT", "thelewala-device"),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "thelewala.db"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "thelewala:cred:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			DefaultTokenTTLMinutes: getEnvAsInt("AUTH_DEFAULT_TOKEN_TTL_MINUTES", 60),
		},
		Bridge: BridgeConfig{
			Host:                  getEnv("BRIDGE_HOST", "127.0.0.1"),
			Port:                  getEnv("BRIDGE_PORT", "8765"),
			RequestTimeoutSeconds: getEnvAsInt("BRIDGE_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Geocode: GeocodeConfig{
			MapboxAccessToken: os.Getenv("MAPBOX_ACCESS_TOKEN"),
			BaseURL:           strings.TrimRight(getEnv("MAPBOX_BASE_URL", "https://api.mapbox.com"), "/"),
		},
		Notify: NotificationConfig{
			Capacity:   getEnvAsInt("NOTICES_CAPACITY", 50),
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		},
	}

	if cfg.App.Role != "" && cfg.App.Role != "vendor" && cfg.App.Role != "customer" {
		return nil, fmt.Errorf("invalid APP_ROLE %q", cfg.App.Role)
	}

	return cfg, nil
}

// Addr returns the bridge bind address.
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%s", b.Host, b.Port)
}

// RequestTimeout returns the configured bridge request timeout duration.
func (b BridgeConfig) RequestTimeout() time.Duration {
	if b.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

// RequestTimeout returns the outbound REST timeout.
func (a APIConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DefaultTokenTTL is used when neither the server nor the token carries an expiry.
func (a AuthConfig) DefaultTokenTTL() time.Duration {
	if a.DefaultTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.DefaultTokenTTLMinutes) * time.Minute
}

// HasFixedPosition reports whether a static coordinate was configured.
func (l LocationConfig) HasFixedPosition() bool {
	return l.FixedLatitude != 0 || l.FixedLongitude != 0
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

package config

import (
	"strings"
	"time"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	// RelayPort is where cmd/relay serves /health and /metrics.
	RelayPort    string
	ReadTimeout  time.Duration
}

// BackendConfig describes the identity provider realm of the backend.
// URL is the provider base URL; the realm lives under /realms/<Realm>.
type BackendConfig struct {
	URL                string
	Realm              string
	ClientID           string
	ClientSecret       string
	DeviceID           string
	AllowInsecureToken bool
}

// Issuer returns the OIDC issuer URL for the configured realm.
func (b BackendConfig) Issuer() string {
	return strings.TrimRight(b.URL, "/") + "/realms/" + b.Realm
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	PublicURL string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// Required environment values. The process refuses to start without them.
var requiredKeys = []string{"BACKEND_URL", "MONGODB_URI"}

// LoadConfig loads configuration from environment variables and .env file.
// A missing required value is reported as a configuration error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8420")
	v.SetDefault("SERVER_HOST", "127.0.0.1")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("RELAY_PORT", "8421")
	v.SetDefault("KEYCLOAK_REALM", "auditdesk")
	v.SetDefault("KEYCLOAK_CLIENT_ID", "auditdesk-web")
	v.SetDefault("DEVICE_ID", "default")
	v.SetDefault("MONGODB_DATABASE", "auditdesk")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("MINIO_BUCKET", "audit-photos")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 0.2)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("LOG_LEVEL", "info")

	var missing []string
	for _, k := range requiredKeys {
		if strings.TrimSpace(v.GetString(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.New(apperrors.KindConfiguration,
			"missing required environment variables: "+strings.Join(missing, ", "))
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			RelayPort:    v.GetString("RELAY_PORT"),
			ReadTimeout:  30 * time.Second,
		},
		Backend: BackendConfig{
			URL:                v.GetString("BACKEND_URL"),
			Realm:              v.GetString("KEYCLOAK_REALM"),
			ClientID:           v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:       v.GetString("KEYCLOAK_CLIENT_SECRET"),
			DeviceID:           v.GetString("DEVICE_ID"),
			AllowInsecureToken: v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			PublicURL: v.GetString("MINIO_PUBLIC_URL"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	return cfg, nil
}

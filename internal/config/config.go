package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-based settings
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	YouTubeAPIKey string
	YouTubeAPIURL string

	JWTSecret    string
	SessionTTL   time.Duration
	AuthDevLogin bool

	MaxQueueLen      int
	MetadataTimeout  time.Duration
	MetadataCacheTTL time.Duration

	CORSAllowedOrigins []string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getenv("ENV", "development"),
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:     net.JoinHostPort(getenv("REDIS_HOST", "localhost"), getenv("REDIS_PORT", "6379")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "stream-queue-events"),

		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:    getenv("MQTT_CLIENT_ID", "stream-queue-server"),
		MQTTTopicPrefix: getenv("MQTT_TOPIC_PREFIX", "players"),

		YouTubeAPIKey: os.Getenv("YOUTUBE_API_KEY"),
		YouTubeAPIURL: os.Getenv("YOUTUBE_API_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	var err error
	if cfg.DatabaseURL, err = databaseURL(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AuthDevLogin, err = getBool("AUTH_DEV_LOGIN", false); err != nil {
		return nil, err
	}
	if cfg.MaxQueueLen, err = getInt("MAX_QUEUE_LEN", 20); err != nil {
		return nil, err
	}
	if cfg.MaxQueueLen <= 0 {
		return nil, fmt.Errorf("MAX_QUEUE_LEN must be positive")
	}
	if cfg.MetadataTimeout, err = getDuration("METADATA_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MetadataCacheTTL, err = getDuration("METADATA_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL and falls back to the MYSQL_* variables.
func databaseURL() (string, error) {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u, nil
	}

	host := os.Getenv("MYSQL_HOST")
	if host == "" {
		return "", fmt.Errorf("DATABASE_URL or MYSQL_HOST is required")
	}

	u := url.URL{
		Scheme: "mysql",
		User:   url.UserPassword(os.Getenv("MYSQL_USER"), os.Getenv("MYSQL_PASSWORD")),
		Host:   net.JoinHostPort(host, getenv("MYSQL_PORT", "3306")),
		Path:   "/" + os.Getenv("MYSQL_DATABASE"),
	}
	return u.String(), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

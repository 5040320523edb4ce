package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	EventsDriverNone     = "none"
	EventsDriverRabbitMQ = "rabbitmq"
	EventsDriverPubSub   = "pubsub"
)

type Config struct {
	ServerPort     int
	APIPrefix      string
	AllowedOrigins []string
	StoreDriver    string
	BcryptCost     int
	Database       DatabaseConfig
	Session        SessionConfig
	Log            LogConfig
	Events         EventsConfig
	RabbitMQ       RabbitMQConfig
	PubSub         PubSubConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// SessionConfig controls the session cookie and the server-side session table.
// CookieSecure defaults to true outside ENV=dev. Secret signs the cookie; when
// empty the server picks a random one at startup, so restarts sign everyone out.
type SessionConfig struct {
	CookieName      string
	TTL             time.Duration
	CookieSecure    bool
	CleanupInterval time.Duration
	Secret          string
}

type LogConfig struct {
	Level  string
	Format string
}

// EventsConfig selects the broker used for post lifecycle events.
type EventsConfig struct {
	Driver  string
	Channel string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	dev := os.Getenv("ENV") == "dev"
	if dev {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "quillpost"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "quillpost_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	sessionConfig := SessionConfig{
		CookieName:      getEnv("SESSION_COOKIE_NAME", "sid"),
		TTL:             getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:    getEnvBool("SESSION_COOKIE_SECURE", !dev),
		CleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour),
		Secret:          getEnv("SESSION_SECRET", ""),
	}

	return Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8000),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		BcryptCost:     getEnvInt("BCRYPT_COST", 12),
		Database:       dbConfig,
		Session:        sessionConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Events: EventsConfig{
			Driver:  strings.ToLower(getEnv("EVENTS_DRIVER", EventsDriverNone)),
			Channel: getEnv("EVENTS_CHANNEL", "post-events"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

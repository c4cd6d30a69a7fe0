package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	MQTT       MQTTConfig
	SLA        SLAConfig
	Assignment AssignmentConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// MQTTConfig points the engine at a broker. Alerts and assignments are
// published, escalations and ticket updates consumed. An empty BrokerURL
// disables both directions.
type MQTTConfig struct {
	BrokerURL          string
	ClientID           string
	AlertTopic         string
	AssignmentTopic    string
	EscalationTopic    string
	TicketStatusTopic  string
	FirstResponseTopic string
	AgentStatusTopic   string
	SessionDoneTopic   string
}

// SLAConfig controls target tables and the periodic scan.
type SLAConfig struct {
	TargetsFile    string
	ScanSchedule   string
	ScanBatchSize  int
	AlertDedupTTL  time.Duration
	FirstResponse  map[string]time.Duration
	Resolution     map[string]map[string]time.Duration
	QueuePageLimit int
}

// AssignmentConfig tunes agent scoring.
type AssignmentConfig struct {
	TagMatchWeight      float64
	CategoryMatchWeight float64
	LoadWeight          float64
	DefaultMaxSessions  int
	ReserveAttempts     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "cs-sla-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		MQTT: MQTTConfig{
			BrokerURL:          os.Getenv("MQTT_BROKER_URL"),
			ClientID:           getEnv("MQTT_CLIENT_ID", "cs-sla-engine"),
			AlertTopic:         getEnv("MQTT_ALERT_TOPIC", "cs/sla/alerts"),
			AssignmentTopic:    getEnv("MQTT_ASSIGNMENT_TOPIC", "cs/sessions/assigned"),
			EscalationTopic:    getEnv("MQTT_ESCALATION_TOPIC", "cs/sessions/escalated"),
			TicketStatusTopic:  getEnv("MQTT_TICKET_STATUS_TOPIC", "cs/tickets/status"),
			FirstResponseTopic: getEnv("MQTT_FIRST_RESPONSE_TOPIC", "cs/tickets/first_response"),
			AgentStatusTopic:   getEnv("MQTT_AGENT_STATUS_TOPIC", "cs/agents/status"),
			SessionDoneTopic:   getEnv("MQTT_SESSION_DONE_TOPIC", "cs/sessions/released"),
		},
		SLA: SLAConfig{
			TargetsFile:    os.Getenv("SLA_TARGETS_FILE"),
			ScanSchedule:   getEnv("SLA_SCAN_SCHEDULE", "@every 1m"),
			ScanBatchSize:  getEnvAsInt("SLA_SCAN_BATCH_SIZE", 500),
			AlertDedupTTL:  time.Duration(getEnvAsInt("SLA_ALERT_DEDUP_SECONDS", 900)) * time.Second,
			QueuePageLimit: getEnvAsInt("SLA_QUEUE_LIMIT", 200),
		},
		Assignment: AssignmentConfig{
			TagMatchWeight:      getEnvAsFloat("ASSIGN_TAG_WEIGHT", 10),
			CategoryMatchWeight: getEnvAsFloat("ASSIGN_CATEGORY_WEIGHT", 5),
			LoadWeight:          getEnvAsFloat("ASSIGN_LOAD_WEIGHT", 20),
			DefaultMaxSessions:  getEnvAsInt("ASSIGN_DEFAULT_MAX_SESSIONS", 5),
			ReserveAttempts:     getEnvAsInt("ASSIGN_RESERVE_ATTEMPTS", 3),
		},
	}

	if cfg.SLA.TargetsFile != "" {
		if err := loadSLAFile(cfg.SLA.TargetsFile, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
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

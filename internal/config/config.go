package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Deadline   DeadlineConfig
	Assignment AssignmentConfig
	Scheduler  SchedulerConfig
	Realtime   RealtimeConfig
	Kafka      KafkaConfig
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

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// DeadlineConfig holds priority multipliers applied to category resolution windows.
type DeadlineConfig struct {
	Multipliers map[string]float64
}

// AssignmentConfig holds workload capacity settings.
type AssignmentConfig struct {
	DefaultCapacity    float64
	DepartmentCapacity map[string]float64
}

// SchedulerConfig controls the escalation loop.
type SchedulerConfig struct {
	Enabled            bool
	IntervalSeconds    int
	LookaheadMinutes   int
	ItemTimeoutSeconds int
	Concurrency        int
	LockTTLSeconds     int
}

// RealtimeConfig controls notification fan-out.
type RealtimeConfig struct {
	RedisBus            bool
	RedisChannel        string
	WriteTimeoutSeconds int
}

// KafkaConfig enables the outbound event relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	multipliers, err := parseFloatMap(os.Getenv("DEADLINE_PRIORITY_MULTIPLIERS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEADLINE_PRIORITY_MULTIPLIERS: %w", err)
	}
	deptCapacity, err := parseFloatMap(os.Getenv("ASSIGNMENT_DEPARTMENT_CAPACITY"))
	if err != nil {
		return nil, fmt.Errorf("invalid ASSIGNMENT_DEPARTMENT_CAPACITY: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "complaint-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Deadline: DeadlineConfig{
			Multipliers: multipliers,
		},
		Assignment: AssignmentConfig{
			DefaultCapacity:    getEnvAsFloat("ASSIGNMENT_DEFAULT_CAPACITY", 20),
			DepartmentCapacity: deptCapacity,
		},
		Scheduler: SchedulerConfig{
			Enabled:            getEnvAsBool("SCHEDULER_ENABLED", true),
			IntervalSeconds:    getEnvAsInt("SCHEDULER_INTERVAL_SECONDS", 300),
			LookaheadMinutes:   getEnvAsInt("SCHEDULER_LOOKAHEAD_MINUTES", 120),
			ItemTimeoutSeconds: getEnvAsInt("SCHEDULER_ITEM_TIMEOUT_SECONDS", 10),
			Concurrency:        getEnvAsInt("SCHEDULER_CONCURRENCY", 4),
			LockTTLSeconds:     getEnvAsInt("SCHEDULER_LOCK_TTL_SECONDS", 240),
		},
		Realtime: RealtimeConfig{
			RedisBus:            getEnvAsBool("REALTIME_REDIS_BUS", false),
			RedisChannel:        getEnv("REALTIME_REDIS_CHANNEL", "complaints:notifications"),
			WriteTimeoutSeconds: getEnvAsInt("REALTIME_WRITE_TIMEOUT_SECONDS", 5),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_NOTIFICATIONS_TOPIC", "complaints.notifications"),
		},
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

// Interval returns the poll period, never shorter than one second.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Lookahead returns the at-risk window.
func (s SchedulerConfig) Lookahead() time.Duration {
	if s.LookaheadMinutes < 0 {
		return 0
	}
	return time.Duration(s.LookaheadMinutes) * time.Minute
}

// ItemTimeout bounds a single complaint's processing within a cycle.
func (s SchedulerConfig) ItemTimeout() time.Duration {
	if s.ItemTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.ItemTimeoutSeconds) * time.Second
}

// LockTTL is how long a distributed cycle lock is held at most.
func (s SchedulerConfig) LockTTL() time.Duration {
	if s.LockTTLSeconds <= 0 {
		return s.Interval()
	}
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// WriteTimeout bounds a single websocket write.
func (r RealtimeConfig) WriteTimeout() time.Duration {
	if r.WriteTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.WriteTimeoutSeconds) * time.Second
}

// CapacityFor returns the weighted capacity for a department.
func (a AssignmentConfig) CapacityFor(department string) float64 {
	if c, ok := a.DepartmentCapacity[department]; ok && c > 0 {
		return c
	}
	if a.DefaultCapacity > 0 {
		return a.DefaultCapacity
	}
	return 20
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

// parseFloatMap reads "key:value,key:value".
func parseFloatMap(raw string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, pair := range splitList(raw) {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("expected key:value, got %q", pair)
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[strings.TrimSpace(key)] = parsed
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

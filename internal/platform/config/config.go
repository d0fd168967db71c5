package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"outletdedup/internal/dedup/cluster"
	"outletdedup/internal/dedup/normalize"
	"outletdedup/internal/dedup/similarity"
	"outletdedup/internal/dedup/store"
	pstrings "outletdedup/pkg/platform/strings"
)

// Supported values of Database.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is the full runtime configuration of the dedupe binary.
type Config struct {
	Server   Server
	Database Database
	Tables   store.Tables
	Dedup    Dedup
	Redis    RedisConfig
	Kafka    KafkaConfig
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	ShutdownTimeout time.Duration
}

type Database struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Dedup holds the clustering parameters.
type Dedup struct {
	Threshold    float64
	MaxKeyLength int
	Metric       string
}

// RedisConfig configures the shared run lock. An empty URL selects the
// in-process lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig configures run summary events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type Log struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
// Malformed numbers and durations are reported rather than silently replaced.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		Server: Server{
			Addr:            envString("DEDUP_ADDR", ":8080"),
			AdminToken:      os.Getenv("DEDUP_ADMIN_TOKEN"),
			ShutdownTimeout: envDuration("DEDUP_SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		},
		Database: Database{
			Driver:          envString("DEDUP_DB_DRIVER", DriverPostgres),
			DSN:             os.Getenv("DEDUP_DB_DSN"),
			MaxOpenConns:    envInt("DEDUP_DB_MAX_OPEN_CONNS", 10, &errs),
			MaxIdleConns:    envInt("DEDUP_DB_MAX_IDLE_CONNS", 5, &errs),
			ConnMaxLifetime: envDuration("DEDUP_DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs),
		},
		Tables: tablesFromEnv(),
		Dedup: Dedup{
			Threshold:    envFloat("DEDUP_THRESHOLD", cluster.DefaultThreshold, &errs),
			MaxKeyLength: envInt("DEDUP_MAX_KEY_LENGTH", normalize.DefaultMaxLength, &errs),
			Metric:       envString("DEDUP_METRIC", similarity.MetricRatio),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("DEDUP_REDIS_URL"),
			PoolSize:     envInt("DEDUP_REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: envInt("DEDUP_REDIS_MIN_IDLE_CONNS", 1, &errs),
			DialTimeout:  envDuration("DEDUP_REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  envDuration("DEDUP_REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: envDuration("DEDUP_REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
			LockTTL:      envDuration("DEDUP_LOCK_TTL", 30*time.Minute, &errs),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.DedupeAndTrim(pstrings.SplitList(os.Getenv("DEDUP_KAFKA_BROKERS"))),
			Topic:   envString("DEDUP_KAFKA_TOPIC", "outletdedup.runs"),
		},
		Log: Log{
			Level:  envString("DEDUP_LOG_LEVEL", "info"),
			Format: envString("DEDUP_LOG_FORMAT", "text"),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func tablesFromEnv() store.Tables {
	def := store.DefaultTables()
	return store.Tables{
		Records:       envString("DEDUP_RECORDS_TABLE", def.Records),
		RecordID:      envString("DEDUP_RECORDS_ID_COLUMN", def.RecordID),
		RecordName:    envString("DEDUP_RECORDS_NAME_COLUMN", def.RecordName),
		RecordGroup:   envString("DEDUP_RECORDS_GROUP_COLUMN", def.RecordGroup),
		Canonical:     envString("DEDUP_CANONICAL_TABLE", def.Canonical),
		CanonicalID:   envString("DEDUP_CANONICAL_ID_COLUMN", def.CanonicalID),
		CanonicalName: envString("DEDUP_CANONICAL_NAME_COLUMN", def.CanonicalName),
	}
}

// Validate checks cross-field constraints after flags have been applied.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("DEDUP_DB_DSN is required for driver %q", c.Database.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if err := c.Tables.Validate(); err != nil {
		errs = append(errs, err)
	}
	if math.IsNaN(c.Dedup.Threshold) || c.Dedup.Threshold < 0 || c.Dedup.Threshold > 100 {
		errs = append(errs, fmt.Errorf("threshold %v outside [0, 100]", c.Dedup.Threshold))
	}
	if c.Dedup.MaxKeyLength <= 0 {
		errs = append(errs, fmt.Errorf("max key length must be positive, got %d", c.Dedup.MaxKeyLength))
	}
	if _, err := similarity.ByName(c.Dedup.Metric); err != nil {
		errs = append(errs, err)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("DEDUP_KAFKA_TOPIC must not be empty when brokers are set"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func envFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

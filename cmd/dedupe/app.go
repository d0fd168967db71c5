package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"outletdedup/internal/dedup/lock"
	dedupmetrics "outletdedup/internal/dedup/metrics"
	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/normalize"
	"outletdedup/internal/dedup/ports"
	"outletdedup/internal/dedup/publisher"
	"outletdedup/internal/dedup/service"
	"outletdedup/internal/dedup/similarity"
	"outletdedup/internal/dedup/store/memory"
	"outletdedup/internal/dedup/store/postgres"
	"outletdedup/internal/dedup/store/sqlite"
	"outletdedup/internal/platform/config"
	"outletdedup/internal/platform/database"
	"outletdedup/internal/platform/logger"
	platformmetrics "outletdedup/internal/platform/metrics"
	redisclient "outletdedup/internal/platform/redis"
	httptransport "outletdedup/internal/transport/http"
	"outletdedup/pkg/platform/circuit"
	txcontext "outletdedup/pkg/platform/tx"
)

// schemaStore is implemented by the SQL stores.
type schemaStore interface {
	ports.RecordStore
	ports.CanonicalStore
	EnsureSchema(ctx context.Context, maxNameLength int) error
}

// app holds every wired dependency of one process.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     ports.RecordStore
	canonical ports.CanonicalStore
	schema    schemaStore
	redis     *redisclient.Client
	kafka     *publisher.Kafka
	registry  *prometheus.Registry
	service   *service.Service
}

// commonFlags registers the flags every subcommand shares. They default to
// the environment configuration.
func commonFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Database.Driver, "driver", cfg.Database.Driver, "storage driver: postgres, sqlite or memory")
	fs.StringVar(&cfg.Database.DSN, "dsn", cfg.Database.DSN, "database connection string or SQLite file")
	fs.Float64Var(&cfg.Dedup.Threshold, "threshold", cfg.Dedup.Threshold, "similarity threshold in [0, 100]")
	fs.IntVar(&cfg.Dedup.MaxKeyLength, "max-key-length", cfg.Dedup.MaxKeyLength, "canonical name length in characters")
	fs.StringVar(&cfg.Dedup.Metric, "metric", cfg.Dedup.Metric, fmt.Sprintf("similarity metric %v", similarity.Names()))
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "text or json")
}

// loadConfig reads the environment, applies flags and validates the result.
func loadConfig(name string, args []string, extra func(*flag.FlagSet, *config.Config)) (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	commonFlags(fs, &cfg)
	if extra != nil {
		extra(fs, &cfg)
	}
	if err := fs.Parse(args); err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

type appOptions struct {
	// seedPath lists raw names, one per line, for the memory driver.
	seedPath string
	// withSideEffects wires the run lock and the summary publisher.
	withSideEffects bool
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg, logger: log, registry: platformmetrics.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.openStore(ctx, opts.seedPath); err != nil {
		return nil, err
	}

	scorer, err := similarity.ByName(cfg.Dedup.Metric)
	if err != nil {
		return nil, err
	}
	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(dedupmetrics.New(a.registry)),
		service.WithNormalizer(normalize.New(cfg.Dedup.MaxKeyLength)),
		service.WithScorer(cfg.Dedup.Metric, scorer),
		service.WithThreshold(cfg.Dedup.Threshold),
	}
	if a.db != nil {
		svcOpts = append(svcOpts, service.WithTransactor(txcontext.NewTransactor(a.db)))
	}

	if opts.withSideEffects {
		locker, err := a.openLocker(ctx)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, service.WithLocker(locker))

		if len(cfg.Kafka.Brokers) > 0 {
			a.kafka, err = publisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return nil, err
			}
			if err := a.kafka.EnsureTopic(ctx); err != nil {
				log.WarnContext(ctx, "could not ensure summary topic", "topic", a.kafka.Topic(), "error", err)
			}
			breaker := circuit.New("kafka-summary", circuit.WithFailureThreshold(3), circuit.WithCooldown(time.Minute))
			svcOpts = append(svcOpts, service.WithPublisher(publisher.NewGuarded(a.kafka, breaker, log)))
		}
	}

	a.service, err = service.New(a.store, a.canonical, svcOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, seedPath string) error {
	cfg := a.cfg.Database
	pool := database.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := database.Open(ctx, database.DriverNamePostgres, cfg.DSN, pool)
		if err != nil {
			return err
		}
		a.db = db
		a.schema = postgres.NewPostgres(db, a.cfg.Tables)
	case config.DriverSQLite:
		db, err := database.Open(ctx, database.DriverNameSQLite, cfg.DSN, pool)
		if err != nil {
			return err
		}
		a.db = db
		a.schema = sqlite.NewSQLite(db, a.cfg.Tables)
	case config.DriverMemory:
		records, err := readSeed(seedPath)
		if err != nil {
			return err
		}
		mem := memory.NewInMemory(records)
		a.store, a.canonical = mem, mem
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	a.store, a.canonical = a.schema, a.schema
	return nil
}

func (a *app) openLocker(ctx context.Context) (ports.Locker, error) {
	if a.cfg.Redis.URL == "" {
		return lock.NewInMemory(), nil
	}
	client, err := redisclient.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return lock.NewRedis(client.Client, lock.WithTTL(a.cfg.Redis.LockTTL)), nil
}

// healthChecks lists the dependencies /healthz probes.
func (a *app) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if a.db != nil {
		checks["database"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	return checks
}

func (a *app) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}

// readSeed loads one raw name per line; ids follow line order starting at 1.
func readSeed(path string) ([]models.Record, error) {
	if path == "" {
		return nil, errors.New("the memory driver needs -names with one raw name per line")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var records []models.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		records = append(records, models.Record{
			ID:      models.RecordID(len(records) + 1),
			RawName: scanner.Text(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return records, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"outletdedup/internal/dedup/cluster"
	"outletdedup/internal/dedup/metrics"
	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/normalize"
	"outletdedup/internal/dedup/ports"
	"outletdedup/internal/dedup/similarity"
	"outletdedup/pkg/platform/sentinel"
	"outletdedup/pkg/requestcontext"
)

const (
	// cancelCheckInterval is how many records are clustered between ctx checks.
	cancelCheckInterval = 1024
	// maxLoggedMisses caps the per-group warnings for canonical lookup misses.
	maxLoggedMisses = 20
)

// Service runs deduplication passes over the record store.
type Service struct {
	records    ports.RecordStore
	canonical  ports.CanonicalStore
	locker     ports.Locker
	publisher  ports.SummaryPublisher
	tx         ports.Transactor
	normalizer *normalize.Normalizer
	scorer     similarity.Scorer
	metricName string
	threshold  float64
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	mu   sync.RWMutex
	last *models.Summary
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker serialises runs through locker.
func WithLocker(locker ports.Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithTransactor makes the canonical rewrite and the record update one unit of
// work. Without it each store call commits on its own.
func WithTransactor(tx ports.Transactor) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithPublisher announces each completed run summary.
func WithPublisher(publisher ports.SummaryPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithNormalizer sets the normalizer, and with it the truncation length.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithScorer replaces the similarity metric; name is reported in summaries.
func WithScorer(name string, scorer similarity.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
			s.metricName = name
		}
	}
}

// WithThreshold sets the join threshold on the 0..100 scale.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New constructs a Service. Both stores are required.
func New(records ports.RecordStore, canonical ports.CanonicalStore, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if canonical == nil {
		return nil, errors.New("canonical store is required")
	}
	s := &Service{
		records:    records,
		canonical:  canonical,
		normalizer: normalize.New(normalize.DefaultMaxLength),
		scorer:     similarity.Ratio{},
		metricName: similarity.MetricRatio,
		threshold:  cluster.DefaultThreshold,
		logger:     slog.Default(),
		tracer:     otel.Tracer("outletdedup/internal/dedup/service"),
		tx:         noTx{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if math.IsNaN(s.threshold) || s.threshold < 0 || s.threshold > 100 {
		return nil, fmt.Errorf("threshold %v outside [0, 100]", s.threshold)
	}
	return s, nil
}

// Run performs one complete deduplication pass: read, cluster, persist the
// canonical table, read it back, resolve and update records.
//
// Storage failures abort the run and are returned. Canonical lookup misses are
// not errors; they are counted in the summary. Returns an error wrapping
// sentinel.ErrConflict when another run holds the lock.
func (s *Service) Run(ctx context.Context) (*models.Summary, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) && s.metrics != nil {
			s.metrics.RecordRejected()
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release run lock", "error", err)
		}
	}()

	runID := models.NewRunID()
	ctx, span := s.tracer.Start(ctx, "dedup.run", trace.WithAttributes(
		attribute.String("dedup.run_id", runID.String()),
		attribute.String("dedup.metric", s.metricName),
		attribute.Float64("dedup.threshold", s.threshold),
	))
	defer span.End()

	summary, err := s.run(ctx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.metrics != nil {
			s.metrics.RecordFailure()
		}
		s.logger.ErrorContext(ctx, "dedup run failed",
			"run_id", runID.String(),
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("dedup.records", summary.TotalRecords),
		attribute.Int("dedup.groups", summary.Groups),
		attribute.Int64("dedup.updated", summary.RecordsUpdated),
	)
	if s.metrics != nil {
		s.metrics.RecordSummary(*summary)
	}
	s.logger.InfoContext(ctx, "dedup run completed",
		"run_id", runID.String(),
		"total_records", summary.TotalRecords,
		"groups", summary.Groups,
		"largest_group", summary.LargestGroup,
		"records_updated", summary.RecordsUpdated,
		"unassigned", summary.Unassigned,
		"lookup_misses", summary.LookupMisses,
		"collisions", summary.Collisions,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	s.publish(ctx, *summary)
	return summary, nil
}

// LatestSummary returns the summary of the last run completed by this service.
func (s *Service) LatestSummary(_ context.Context) (*models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, sentinel.ErrNotFound
	}
	summary := *s.last
	return &summary, nil
}

func (s *Service) run(ctx context.Context, runID models.RunID) (*models.Summary, error) {
	startedAt := requestcontext.Now(ctx)
	start := time.Now()

	records, err := s.readRecords(ctx)
	if err != nil {
		return nil, err
	}

	acc, err := s.cluster(ctx, records)
	if err != nil {
		return nil, err
	}
	result := &cluster.Result{
		Groups:     acc.Groups(),
		Assignment: acc.Assignment(),
		Duplicates: acc.Duplicates(),
	}

	// Past this point the caller can no longer abort: the canonical table and
	// the record ids it is referenced by are rewritten together or not at all.
	var (
		resolution *cluster.Resolution
		updated    int64
	)
	err = s.tx.RunInTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		table, err := s.persistCanonical(ctx, result.Groups)
		if err != nil {
			return err
		}
		resolution = s.resolve(ctx, result, table)
		updated, err = s.assign(ctx, resolution.Assignments)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &models.Summary{
		RunID:             runID,
		StartedAt:         startedAt,
		Duration:          time.Since(start),
		Metric:            s.metricName,
		Threshold:         s.threshold,
		TotalRecords:      len(records),
		Groups:            acc.Len(),
		LargestGroup:      acc.LargestGroup(),
		RecordsUpdated:    updated,
		Unassigned:        len(resolution.Unassigned),
		LookupMisses:      len(resolution.Misses),
		Collisions:        resolution.Collisions,
		DuplicateRecordID: result.Duplicates,
	}, nil
}

func (s *Service) readRecords(ctx context.Context) ([]models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "dedup.read_records")
	defer span.End()
	defer s.observePhase("read", time.Now())

	records, err := s.records.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	span.SetAttributes(attribute.Int("dedup.records", len(records)))
	return records, nil
}

func (s *Service) cluster(ctx context.Context, records []models.Record) (*cluster.Accumulator, error) {
	_, span := s.tracer.Start(ctx, "dedup.cluster")
	defer span.End()
	defer s.observePhase("cluster", time.Now())

	acc := cluster.NewAccumulator(
		cluster.WithScorer(s.scorer),
		cluster.WithThreshold(s.threshold),
		cluster.WithNormalizer(s.normalizer),
	)
	for i, r := range records {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("cluster records: stopped after %d of %d: %w", i, len(records), err)
			}
		}
		acc.Add(r.ID, s.normalizer.Normalize(r.RawName))
	}
	span.SetAttributes(attribute.Int("dedup.groups", acc.Len()))
	return acc, nil
}

func (s *Service) persistCanonical(ctx context.Context, groups []*models.Group) ([]models.CanonicalName, error) {
	ctx, span := s.tracer.Start(ctx, "dedup.persist_canonical")
	defer span.End()
	defer s.observePhase("persist", time.Now())

	if err := s.canonical.PersistCanonical(ctx, cluster.Names(groups)); err != nil {
		return nil, fmt.Errorf("persist canonical names: %w", err)
	}
	table, err := s.canonical.ReadCanonical(ctx)
	if err != nil {
		return nil, fmt.Errorf("read canonical names: %w", err)
	}
	return table, nil
}

func (s *Service) resolve(ctx context.Context, result *cluster.Result, table []models.CanonicalName) *cluster.Resolution {
	defer s.observePhase("resolve", time.Now())

	resolution := cluster.Resolve(result, table, s.normalizer)
	for i, idx := range resolution.Misses {
		if i == maxLoggedMisses {
			s.logger.WarnContext(ctx, "further canonical lookup misses not logged",
				"remaining", len(resolution.Misses)-maxLoggedMisses,
			)
			break
		}
		g := result.Groups[idx]
		s.logger.WarnContext(ctx, "canonical lookup miss",
			"group", idx,
			"representative", g.Representative,
			"members", g.Size(),
		)
	}
	return resolution
}

func (s *Service) assign(ctx context.Context, assignments []models.Assignment) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "dedup.assign_groups")
	defer span.End()
	defer s.observePhase("update", time.Now())

	if len(assignments) == 0 {
		return 0, nil
	}
	updated, err := s.records.AssignGroups(ctx, assignments)
	if err != nil {
		return 0, fmt.Errorf("assign groups: %w", err)
	}
	return updated, nil
}

type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Service) acquire(ctx context.Context) (func(context.Context) error, error) {
	if s.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	return s.locker.Acquire(ctx)
}

func (s *Service) publish(ctx context.Context, summary models.Summary) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, summary); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementPublishFailures()
		}
		s.logger.WarnContext(ctx, "failed to publish run summary",
			"run_id", summary.RunID.String(),
			"error", err,
		)
	}
}

func (s *Service) observePhase(phase string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObservePhase(phase, start)
}

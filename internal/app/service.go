// Package service provides the ranking core behind the HTTP API: chart
// resolution under a pivot date, skill scoring, transactional total updates,
// the leaderboard index and background reconciliation of stale totals.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventqueue "github.com/okian/chartrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/chartrank/internal/adapters/mq/worker"
	repository "github.com/okian/chartrank/internal/adapters/repository"
	"github.com/okian/chartrank/internal/domain/chart"
	"github.com/okian/chartrank/internal/domain/dedupe"
	"github.com/okian/chartrank/internal/domain/pivot"
	"github.com/okian/chartrank/internal/domain/scoring"
	"github.com/okian/chartrank/internal/domain/skillset"
	"github.com/okian/chartrank/internal/validation"
	"github.com/okian/chartrank/pkg/logger"
	"github.com/okian/chartrank/pkg/metrics"
)

// Service implements the API dependencies for the ranking system.
type Service struct {
	mu sync.RWMutex
	// rankMu serializes index writes with the reads that feed them.
	rankMu sync.Mutex

	// Core components
	store     repository.Store
	scorer    scoring.Scorer
	agg       *skillset.Aggregator
	index     *repository.RankIndex
	validator *validation.Validator
	pending   dedupe.Deduper
	jobs      eventqueue.Queue
	pool      *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	pendingSize    int
	scoringPivot   pivot.Date
	pivots         pivot.Parser
	formatter      chart.Formatter
	order          chart.Order
	excludeLimited bool
	clock          func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of reconciliation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recompute job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithPendingSize bounds the set of users with a queued recompute.
func WithPendingSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pendingSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScorer replaces the skill calculator.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithScoringPivot sets the pivot in effect for scoring.
func WithScoringPivot(p pivot.Date) Option {
	return func(s *Service) { s.scoringPivot = p }
}

// WithDateLowLimit rejects pivots before low.
func WithDateLowLimit(low time.Time) Option {
	return func(s *Service) { s.pivots.Low = low }
}

// WithLevelFormat sets the printf format used for known levels.
func WithLevelFormat(format string) Option {
	return func(s *Service) {
		if format != "" {
			s.formatter.LevelFormat = format
		}
	}
}

// WithOrder sets the default ordering of active chart lists.
func WithOrder(o chart.Order) Option {
	return func(s *Service) {
		if o != "" {
			s.order = o
		}
	}
}

// WithExcludeLimited makes active chart lists drop limited charts unless a
// request asks otherwise.
func WithExcludeLimited(exclude bool) Option {
	return func(s *Service) { s.excludeLimited = exclude }
}

// WithClock overrides the time source. Times are normalized to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: 2,
		queueSize:   10_000,
		pendingSize: 50_000,
		formatter:   chart.Formatter{LevelFormat: chart.DefaultLevelFormat},
		order:       chart.OrderByEra,
		clock:       time.Now,
		index:       repository.NewRankIndex(),
		validator:   validation.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scorer == nil {
		s.scorer = scoring.NewCalculator()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.agg = skillset.New(s.scorer, skillset.WithScoringPivot(s.scoringPivot))
	s.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.pendingSize))
	s.jobs = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	return s
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// Start loads the leaderboard index from the store and starts the
// reconciliation workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting ranking service...")

	if err := s.rebuildIndex(ctx); err != nil {
		return fmt.Errorf("load leaderboard: %w", err)
	}

	s.pool = workerpool.NewPool(s.workerCount, s.jobs, s,
		workerpool.WithDeduper(s.pending),
		workerpool.WithLogger(s.logger.Named("reconciler")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("rankedUsers", s.index.Count()),
		logger.String("scoringPivot", s.scoringPivot.String()),
	)
	return nil
}

// Stop drains the workers. The store is owned by the caller.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping ranking service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "ranking service stopped")
	return err
}

func (s *Service) rebuildIndex(ctx context.Context) error {
	totals, err := s.store.ListTotals(ctx)
	if err != nil {
		return err
	}
	m := make(map[string]float64, len(totals))
	for _, t := range totals {
		m[t.UserID] = t.Points
	}
	s.index.Reset(m)
	return nil
}

// ParsePivot parses a request's pivot date and enforces the supported range.
func (s *Service) ParsePivot(raw string) (pivot.Date, error) {
	return s.pivots.Parse(raw)
}

// ScoringPivot returns the pivot used for scoring.
func (s *Service) ScoringPivot() pivot.Date { return s.scoringPivot }

// Tiers lists the tiers the calculator accepts, best first.
func (s *Service) Tiers() []string {
	if c, ok := s.scorer.(interface{ Tiers() []string }); ok {
		return c.Tiers()
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"pendingSize":  s.pendingSize,
		"rankedUsers":  s.index.Count(),
		"queueLength":  s.jobs.Len(),
		"pendingUsers": s.pending.Size(),
		"scoringPivot": s.scoringPivot.String(),
	}
	metrics.UpdateQueueSize(s.jobs.Len())
	metrics.UpdatePendingUsers(s.pending.Size())
	metrics.UpdateRankedUsers(s.index.Count())
	return stats
}

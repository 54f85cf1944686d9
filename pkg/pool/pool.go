// Package pool implements the bounded-concurrency dispatch pool: a fixed set
// of workers claiming work items FIFO from a shared queue, querying the
// status endpoint once per item, and recording exactly one outcome per item
// into the result arena.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/aegistools/statusq/pkg/loader"
	"github.com/aegistools/statusq/pkg/result"
)

// Prometheus metrics for pool operations.
var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusq_outcomes_total",
		Help: "Total work item outcomes by result",
	}, []string{"result"}) // "success", "failure"

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "statusq_batch_duration_seconds",
		Help:    "Wall-clock duration of whole batch runs",
		Buckets: []float64{1, 5, 15, 60, 300, 900},
	})
)

// Querier performs a single status lookup. Implementations must be safe for
// concurrent use; *client.Client satisfies this.
type Querier interface {
	Query(ctx context.Context, id string) (map[string]any, error)
}

// Config holds the dispatch pool configuration.
type Config struct {
	// Workers is the fixed worker count W. Input size does not change it.
	Workers int

	// RPS limits outgoing requests per second across all workers.
	// Zero disables rate limiting.
	RPS float64

	// Burst is the limiter burst size when RPS is set.
	Burst int

	// Progress, when non-nil, is invoked once per resolved work item.
	Progress func()
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 4,
	}
}

// Pool executes one batch of work items against a Querier.
// Each item gets exactly one query attempt; failures become failure outcomes
// and are never retried.
type Pool struct {
	querier Querier
	config  Config
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a dispatch pool.
func New(querier Querier, cfg Config) (*Pool, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Pool{
		querier: querier,
		config:  cfg,
		limiter: limiter,
		logger:  log.With().Str("component", "dispatch-pool").Logger(),
	}, nil
}

// Run dispatches all items across the worker pool and blocks until every
// item is resolved. The returned Final is frozen and ordered by input
// position regardless of completion order.
func (p *Pool) Run(ctx context.Context, items []loader.WorkItem) *result.Final {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	set := result.NewSet(len(items))

	// Pre-filled buffered channel: workers claim items in FIFO order.
	queue := make(chan loader.WorkItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	p.logger.Debug().
		Int("workers", p.config.Workers).
		Int("items", len(items)).
		Msg("Starting dispatch pool")

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, queue, set, &wg)
	}

	// Drain barrier: every worker idle, every item resolved.
	wg.Wait()

	final := set.Finalize()
	if final.Unresolved != 0 {
		p.logger.Warn().
			Int("unresolved", final.Unresolved).
			Msg("Batch drained with unresolved slots")
	}

	p.logger.Debug().
		Int("successes", len(final.Successes)).
		Int("failures", len(final.Failures)).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return final
}

// worker claims items until the queue is exhausted.
func (p *Pool) worker(ctx context.Context, id int, queue <-chan loader.WorkItem, set *result.Set, wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for item := range queue {
		outcome := p.process(ctx, item)

		if err := set.Record(item.Pos, outcome); err != nil {
			// Positions are unique per item, so this indicates a loader bug.
			p.logger.Error().
				Err(err).
				Int("worker_id", id).
				Int("pos", item.Pos).
				Msg("Failed to record outcome")
		}

		if p.config.Progress != nil {
			p.config.Progress()
		}
		processed++
	}

	p.logger.Debug().
		Int("worker_id", id).
		Int("items_processed", processed).
		Msg("Worker drained")
}

// process resolves one work item into exactly one outcome. Query failures
// are data, not pool failures: the worker records them and moves on.
func (p *Pool) process(ctx context.Context, item loader.WorkItem) result.Outcome {
	if item.Err != nil {
		outcomesTotal.WithLabelValues("failure").Inc()
		return result.Failure(item.Raw, item.Err.Error())
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			outcomesTotal.WithLabelValues("failure").Inc()
			return result.Failure(string(item.ID), err.Error())
		}
	}

	payload, err := p.querier.Query(ctx, string(item.ID))
	if err != nil {
		outcomesTotal.WithLabelValues("failure").Inc()
		return result.Failure(string(item.ID), err.Error())
	}

	outcomesTotal.WithLabelValues("success").Inc()
	return result.Success(string(item.ID), payload)
}

// Package pipeline orchestrates one warehouse run: fetch, land, deduplicate,
// reconcile, quality-check, aggregate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/domain"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/observability"
)

// Fetcher retrieves the current observation for one city.
type Fetcher interface {
	FetchCurrent(ctx context.Context, city string) (domain.Observation, error)
}

// Warehouse is the storage surface the pipeline writes through.
type Warehouse interface {
	LandObservations(ctx context.Context, observations []domain.Observation) (int64, error)
	RawObservations(ctx context.Context) ([]domain.Observation, error)
	ReconcileDimension(ctx context.Context, cities []string, decide func(current []domain.DimensionRecord) (domain.ChangeSet, error)) (domain.ChangeSet, error)
	ReplaceDailySummary(ctx context.Context, rows []domain.DailySummary) error
}

// ContractChecker evaluates the post-reconciliation data contracts.
type ContractChecker interface {
	Run(ctx context.Context) error
}

// Pipeline executes the periodic warehouse run. A failed run is not retried
// within the tick; the next scheduled invocation restates it wholesale, which
// the hash-based no-op rule makes safe.
type Pipeline struct {
	fetcher   Fetcher
	warehouse Warehouse
	checker   ContractChecker
	cities    []string
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline over the given stages.
func New(f Fetcher, w Warehouse, c ContractChecker, cities []string, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		warehouse: w,
		checker:   c,
		cities:    cities,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one run has completed
// successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no pipeline run has completed yet")
	}
	return nil
}

// Run executes one complete pipeline pass.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	p.metrics.RunActive.Set(1)
	defer p.metrics.RunActive.Set(0)

	err := p.run(ctx)

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return err
	}
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.ready.Store(true)
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	fetched, err := p.fetchAll(ctx)
	if err != nil {
		return err
	}

	landed, err := p.warehouse.LandObservations(ctx, fetched)
	if err != nil {
		return fmt.Errorf("land observations: %w", err)
	}
	p.metrics.ObservationsLanded.Add(float64(landed))

	raw, err := p.warehouse.RawObservations(ctx)
	if err != nil {
		return fmt.Errorf("read raw observations: %w", err)
	}

	deduped, rejected := domain.Deduplicate(raw)
	p.metrics.MalformedObservations.Add(float64(len(rejected)))
	for _, r := range rejected {
		p.logger.Warn("skipping malformed raw row", "error", r.Reason, "id", r.Observation.ID)
	}
	discarded := len(raw) - len(deduped) - len(rejected)
	p.metrics.DuplicatesDiscarded.Add(float64(discarded))

	p.logger.Info("deduplication complete",
		"raw", len(raw), "deduplicated", len(deduped), "discarded", discarded, "malformed", len(rejected))

	faults, err := p.reconcile(ctx, deduped)
	if err != nil {
		return err
	}

	if err := p.checker.Run(ctx); err != nil {
		return fmt.Errorf("quality checks: %w", err)
	}

	if err := p.warehouse.ReplaceDailySummary(ctx, domain.Aggregate(deduped)); err != nil {
		return fmt.Errorf("rebuild daily summary: %w", err)
	}

	if len(faults) > 0 {
		return fmt.Errorf("reconciliation skipped %d cities with integrity faults", len(faults))
	}
	return nil
}

// fetchAll collects one observation per configured city. Individual fetch
// failures degrade the batch rather than fail it; the run errors only when
// nothing at all could be fetched.
func (p *Pipeline) fetchAll(ctx context.Context) ([]domain.Observation, error) {
	observations := make([]domain.Observation, 0, len(p.cities))
	var fetchErrs []error

	for _, city := range p.cities {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fetchStart := time.Now()
		obs, err := p.fetcher.FetchCurrent(ctx, city)
		p.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			p.metrics.FetchRequests.WithLabelValues("error").Inc()
			p.logger.Error("fetch failed", "city", city, "error", err)
			fetchErrs = append(fetchErrs, fmt.Errorf("fetch %q: %w", city, err))
			continue
		}
		p.metrics.FetchRequests.WithLabelValues("success").Inc()
		observations = append(observations, obs)
	}
	p.metrics.ObservationsFetched.Add(float64(len(observations)))

	if len(observations) == 0 && len(fetchErrs) > 0 {
		return nil, errors.Join(fetchErrs...)
	}
	return observations, nil
}

// reconcile applies the dimension change set in one transaction per run. The
// open rows for the affected cities are locked for the duration, so two
// overlapping runs serialize per city instead of both closing and inserting.
func (p *Pipeline) reconcile(ctx context.Context, deduped []domain.Observation) ([]*domain.IntegrityError, error) {
	if len(deduped) == 0 {
		return nil, nil
	}

	var faults []*domain.IntegrityError
	cs, err := p.warehouse.ReconcileDimension(ctx, distinctCities(deduped), func(current []domain.DimensionRecord) (domain.ChangeSet, error) {
		var cs domain.ChangeSet
		cs, faults = domain.Reconcile(current, deduped)
		return cs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile dimension: %w", err)
	}

	for _, f := range faults {
		p.metrics.IntegrityFaults.Inc()
		p.logger.Error("dimension integrity fault, city skipped", "city", f.City, "current_rows", f.CurrentRows)
	}
	for _, r := range cs.Rejected {
		p.metrics.OutOfOrderReads.Inc()
		p.logger.Warn("out-of-order observation rejected", "city", r.Observation.City, "error", r.Reason)
	}

	p.metrics.DimensionInserts.Add(float64(len(cs.Inserts)))
	p.metrics.DimensionCloses.Add(float64(len(cs.Closes)))
	p.metrics.UnchangedReads.Add(float64(cs.Unchanged))

	p.logger.Info("reconciliation complete",
		"inserts", len(cs.Inserts), "closes", len(cs.Closes),
		"unchanged", cs.Unchanged, "rejected", len(cs.Rejected), "faulted_cities", len(faults))

	return faults, nil
}

func distinctCities(observations []domain.Observation) []string {
	seen := make(map[string]struct{}, len(observations))
	cities := make([]string, 0, len(observations))
	for _, o := range observations {
		if _, ok := seen[o.City]; ok {
			continue
		}
		seen[o.City] = struct{}{}
		cities = append(cities, o.City)
	}
	return cities
}

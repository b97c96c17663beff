// Package quality runs data-contract checks over the warehouse tables after
// each reconciliation. Violations are surfaced, never silently repaired.
package quality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/observability"
)

// Warehouse is the read-only view of the dimension the checks consume.
type Warehouse interface {
	DuplicateCurrentCities(ctx context.Context) (map[string]int, error)
	CountNullRequired(ctx context.Context) (int64, error)
	CountSentinelMismatch(ctx context.Context) (int64, error)
}

// ErrCheckFailed marks a contract violation found in the warehouse.
var ErrCheckFailed = errors.New("quality check failed")

// Checker evaluates the dimension contracts.
type Checker struct {
	store   Warehouse
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Checker.
func New(store Warehouse, logger *slog.Logger, metrics *observability.Metrics) *Checker {
	return &Checker{store: store, logger: logger, metrics: metrics}
}

// Run evaluates every check and returns the combined failures. A storage
// error aborts immediately; a failed check is recorded and the remaining
// checks still run, so one violation does not mask another.
func (c *Checker) Run(ctx context.Context) error {
	var failures []error

	dups, err := c.store.DuplicateCurrentCities(ctx)
	if err != nil {
		return fmt.Errorf("check single current row: %w", err)
	}
	if len(dups) > 0 {
		c.metrics.QualityFailures.WithLabelValues("single_current_row").Inc()
		for city, n := range dups {
			c.logger.Error("quality check failed: duplicate current rows", "check", "single_current_row", "city", city, "rows", n)
		}
		failures = append(failures, fmt.Errorf("%w: %d cities with duplicate current rows", ErrCheckFailed, len(dups)))
	}

	nulls, err := c.store.CountNullRequired(ctx)
	if err != nil {
		return fmt.Errorf("check required fields: %w", err)
	}
	if nulls > 0 {
		c.metrics.QualityFailures.WithLabelValues("required_fields").Inc()
		c.logger.Error("quality check failed: null required fields", "check", "required_fields", "rows", nulls)
		failures = append(failures, fmt.Errorf("%w: %d rows with null required fields", ErrCheckFailed, nulls))
	}

	mismatches, err := c.store.CountSentinelMismatch(ctx)
	if err != nil {
		return fmt.Errorf("check valid_to sentinel: %w", err)
	}
	if mismatches > 0 {
		c.metrics.QualityFailures.WithLabelValues("valid_to_sentinel").Inc()
		c.logger.Error("quality check failed: valid_to disagrees with is_current", "check", "valid_to_sentinel", "rows", mismatches)
		failures = append(failures, fmt.Errorf("%w: %d rows with mismatched valid_to sentinel", ErrCheckFailed, mismatches))
	}

	return errors.Join(failures...)
}

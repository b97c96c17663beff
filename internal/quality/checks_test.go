package quality

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/observability"
)

type mockWarehouse struct {
	dups       map[string]int
	nulls      int64
	mismatches int64
	err        error
}

func (m *mockWarehouse) DuplicateCurrentCities(context.Context) (map[string]int, error) {
	return m.dups, m.err
}

func (m *mockWarehouse) CountNullRequired(context.Context) (int64, error) {
	return m.nulls, m.err
}

func (m *mockWarehouse) CountSentinelMismatch(context.Context) (int64, error) {
	return m.mismatches, m.err
}

func newChecker(w Warehouse) *Checker {
	return New(w, slog.Default(), observability.NewMetricsForTesting())
}

func TestRun_AllChecksPass(t *testing.T) {
	err := newChecker(&mockWarehouse{}).Run(context.Background())
	assert.NoError(t, err)
}

func TestRun_DuplicateCurrentRows(t *testing.T) {
	err := newChecker(&mockWarehouse{dups: map[string]int{"Cairo": 2}}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, err.Error(), "duplicate current rows")
}

func TestRun_NullRequiredFields(t *testing.T) {
	err := newChecker(&mockWarehouse{nulls: 3}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, err.Error(), "null required fields")
}

func TestRun_SentinelMismatch(t *testing.T) {
	err := newChecker(&mockWarehouse{mismatches: 1}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, err.Error(), "valid_to sentinel")
}

func TestRun_MultipleFailuresReportedTogether(t *testing.T) {
	err := newChecker(&mockWarehouse{dups: map[string]int{"Cairo": 2}, nulls: 1}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate current rows")
	assert.Contains(t, err.Error(), "null required fields")
}

func TestRun_StorageErrorAborts(t *testing.T) {
	boom := errors.New("connection refused")
	err := newChecker(&mockWarehouse{err: boom}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCheckFailed)
}

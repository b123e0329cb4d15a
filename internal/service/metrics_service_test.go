package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserveDBQueryFeedsSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveDBQuery("dashboard_admin", 20*time.Millisecond)
	m.ObserveDBQuery("dashboard_user", 40*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.DBQueryCount)
	assert.InDelta(t, 30.0, snap.AverageDBQueryDurationMs, 0.01)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *MetricsService

	m.ObserveDBQuery("noop", time.Millisecond)
	snap := m.Snapshot()
	assert.Zero(t, snap.DBQueryCount)
}

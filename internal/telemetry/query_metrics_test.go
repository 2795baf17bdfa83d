package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryMetrics_RecentNewestFirst(t *testing.T) {
	m := NewQueryMetrics(4)
	for i := 1; i <= 3; i++ {
		m.Record(QueryRecord{Query: fmt.Sprintf("q%d", i), Duration: time.Millisecond})
	}

	recent := m.Recent(0)

	require.Len(t, recent, 3)
	assert.Equal(t, "q3", recent[0].Query)
	assert.Equal(t, "q1", recent[2].Query)
}

func TestQueryMetrics_RingWrapsAround(t *testing.T) {
	m := NewQueryMetrics(2)
	for i := 1; i <= 5; i++ {
		m.Record(QueryRecord{Query: fmt.Sprintf("q%d", i)})
	}

	recent := m.Recent(0)

	require.Len(t, recent, 2)
	assert.Equal(t, "q5", recent[0].Query)
	assert.Equal(t, "q4", recent[1].Query)

	count, _ := m.Totals()
	assert.Equal(t, int64(5), count)
}

func TestQueryMetrics_Totals(t *testing.T) {
	m := NewQueryMetrics(8)
	m.Record(QueryRecord{Duration: 10 * time.Millisecond})
	m.Record(QueryRecord{Duration: 30 * time.Millisecond})

	count, mean := m.Totals()

	assert.Equal(t, int64(2), count)
	assert.Equal(t, 20*time.Millisecond, mean)
}

func TestQueryMetrics_EmptyTotals(t *testing.T) {
	count, mean := NewQueryMetrics(0).Totals()
	assert.Zero(t, count)
	assert.Zero(t, mean)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(FragmentsCommitted.WithLabelValues("DataFrame"))
	FragmentsCommitted.WithLabelValues("DataFrame").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FragmentsCommitted.WithLabelValues("DataFrame")))

	splits := testutil.ToFloat64(CapSplits)
	CapSplits.Inc()
	assert.Equal(t, splits+1, testutil.ToFloat64(CapSplits))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("commit")
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
	assert.Equal(t, "commit", timer.Name())
}

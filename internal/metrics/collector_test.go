package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

// promauto registers on the default registerer, so every test gets its own
// namespace to avoid duplicate registration.
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("bftest_%d", seq)
}

func TestNewCollector(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, c)
	assert.NotNil(t, c.requestsSubmitted)
	assert.NotNil(t, c.requestsCompleted)
	assert.NotNil(t, c.requestsFailed)
	assert.NotNil(t, c.requestsExpired)
	assert.NotNil(t, c.batchesTotal)
	assert.NotNil(t, c.queueDepth)
}

func TestCollector_RecordCompletion(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordCompletion("backend-0", false)
	c.RecordCompletion("backend-0", false)
	c.RecordCompletion("backend-0", true)

	assert.InDelta(t, 2.0, testutil.ToFloat64(c.requestsCompleted.WithLabelValues("backend-0")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.requestsFailed.WithLabelValues("backend-0")), 1e-9)
}

func TestCollector_RecordBatchAndExpired(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordBatch(8, 250*time.Millisecond)
	c.RecordBatch(16, 100*time.Millisecond)
	c.RecordExpired(3)

	assert.InDelta(t, 2.0, testutil.ToFloat64(c.batchesTotal), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(c.requestsExpired), 1e-9)
}

func TestCollector_Gauges(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.SetQueueDepth(42)
	c.SetActiveBatches(3)

	assert.InDelta(t, 42.0, testutil.ToFloat64(c.queueDepth), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(c.activeBatches), 1e-9)

	c.SetQueueDepth(0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(c.queueDepth), 1e-9)
}

package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/batchflow/types"
)

func queueRequest(id string, priority types.Priority, deadline time.Time) *types.Request {
	return &types.Request{
		ID:       id,
		Priority: priority,
		Deadline: deadline,
		Reply:    make(chan types.Result, 1),
	}
}

func TestRequestQueue_PriorityOrder(t *testing.T) {
	t.Parallel()

	far := time.Now().Add(time.Minute)
	q := newRequestQueue(16)

	require.True(t, q.push(queueRequest("n1", types.PriorityNormal, far)))
	require.True(t, q.push(queueRequest("c1", types.PriorityCritical, far)))
	require.True(t, q.push(queueRequest("l1", types.PriorityLow, far)))
	require.True(t, q.push(queueRequest("h1", types.PriorityHigh, far)))
	require.True(t, q.push(queueRequest("n2", types.PriorityNormal, far)))

	drained := q.drainUpTo(5)
	ids := make([]string, len(drained))
	for i, r := range drained {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"c1", "h1", "n1", "n2", "l1"}, ids)
	assert.Equal(t, 0, q.len())
}

func TestRequestQueue_FIFOWithinTier(t *testing.T) {
	t.Parallel()

	far := time.Now().Add(time.Minute)
	q := newRequestQueue(64)
	for i := 0; i < 10; i++ {
		require.True(t, q.push(queueRequest(fmt.Sprintf("r%d", i), types.PriorityNormal, far)))
	}

	drained := q.drainUpTo(10)
	for i, r := range drained {
		assert.Equal(t, fmt.Sprintf("r%d", i), r.ID)
	}
}

func TestRequestQueue_DrainUpTo(t *testing.T) {
	t.Parallel()

	far := time.Now().Add(time.Minute)
	q := newRequestQueue(16)
	for i := 0; i < 5; i++ {
		require.True(t, q.push(queueRequest(fmt.Sprintf("r%d", i), types.PriorityNormal, far)))
	}

	assert.Len(t, q.drainUpTo(3), 3)
	assert.Equal(t, 2, q.len())
	// asking for more than available drains the remainder
	assert.Len(t, q.drainUpTo(10), 2)
	assert.Equal(t, 0, q.len())
	assert.Nil(t, q.drainUpTo(3))
	assert.Nil(t, q.drainUpTo(0))
}

func TestRequestQueue_Capacity(t *testing.T) {
	t.Parallel()

	far := time.Now().Add(time.Minute)
	q := newRequestQueue(2)
	assert.True(t, q.push(queueRequest("a", types.PriorityNormal, far)))
	assert.True(t, q.push(queueRequest("b", types.PriorityNormal, far)))
	assert.False(t, q.push(queueRequest("c", types.PriorityNormal, far)))
	assert.Equal(t, 2, q.len())
}

func TestRequestQueue_RemoveExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	q := newRequestQueue(16)
	require.True(t, q.push(queueRequest("live", types.PriorityNormal, now.Add(time.Minute))))
	require.True(t, q.push(queueRequest("dead1", types.PriorityHigh, now.Add(-time.Second))))
	require.True(t, q.push(queueRequest("dead2", types.PriorityLow, now)))

	expired := q.removeExpired(now)
	require.Len(t, expired, 2)
	ids := map[string]bool{expired[0].ID: true, expired[1].ID: true}
	assert.True(t, ids["dead1"])
	assert.True(t, ids["dead2"])

	assert.Equal(t, 1, q.len())
	assert.Equal(t, "live", q.drainUpTo(1)[0].ID)
}

func TestRequestQueue_UrgentCount(t *testing.T) {
	t.Parallel()

	now := time.Now()
	q := newRequestQueue(32)
	for i := 0; i < 20; i++ {
		require.True(t, q.push(queueRequest(fmt.Sprintf("slow%d", i), types.PriorityNormal, now.Add(10*time.Second))))
	}
	require.True(t, q.push(queueRequest("fast1", types.PriorityNormal, now.Add(2*time.Second))))
	require.True(t, q.push(queueRequest("fast2", types.PriorityNormal, now.Add(2*time.Second))))

	assert.Equal(t, 2, q.urgentCount(now, 5*time.Second))
	assert.Equal(t, 0, q.urgentCount(now, time.Second))
}

func TestRequestQueue_DrainAll(t *testing.T) {
	t.Parallel()

	far := time.Now().Add(time.Minute)
	q := newRequestQueue(16)
	for i := 0; i < 4; i++ {
		require.True(t, q.push(queueRequest(fmt.Sprintf("r%d", i), types.PriorityNormal, far)))
	}

	assert.Len(t, q.drainAll(), 4)
	assert.Equal(t, 0, q.len())
}

func TestRequestQueue_CloseRejectsPush(t *testing.T) {
	t.Parallel()

	far := time.Now().Add(time.Minute)
	q := newRequestQueue(16)
	require.True(t, q.push(queueRequest("a", types.PriorityNormal, far)))
	require.True(t, q.push(queueRequest("b", types.PriorityNormal, far)))

	drained := q.close()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, q.len())

	assert.False(t, q.push(queueRequest("late", types.PriorityNormal, far)))
	assert.Equal(t, 0, q.len())

	q.reopen()
	assert.True(t, q.push(queueRequest("fresh", types.PriorityNormal, far)))
	assert.Equal(t, 1, q.len())
}

func BenchmarkRequestQueue_PushDrain(b *testing.B) {
	far := time.Now().Add(time.Hour)
	q := newRequestQueue(1 << 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.push(queueRequest("r", types.Priority(i%4), far))
		if q.len() >= 64 {
			q.drainUpTo(64)
		}
	}
}

package buffer

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/canvaskit/errors"
)

func TestWriteReadOrder(t *testing.T) {
	buf, err := NewCircularBuffer[string](3)
	require.NoError(t, err)
	defer buf.Close()

	assert.True(t, buf.IsEmpty())
	assert.False(t, buf.IsFull())
	assert.Equal(t, 3, buf.Capacity())

	require.NoError(t, buf.Write("update:kpi.revenue"))
	require.NoError(t, buf.Write("update:kpi.orders"))
	require.NoError(t, buf.Write("update:kpi.refunds"))
	assert.True(t, buf.IsFull())
	assert.Equal(t, 3, buf.Size())

	peeked, ok := buf.Peek()
	require.True(t, ok)
	assert.Equal(t, "update:kpi.revenue", peeked)
	assert.Equal(t, 3, buf.Size(), "peek must not consume")

	first, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, "update:kpi.revenue", first)

	rest := buf.ReadBatch(10)
	assert.Equal(t, []string{"update:kpi.orders", "update:kpi.refunds"}, rest)
	assert.True(t, buf.IsEmpty())
}

func TestOverflowPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy OverflowPolicy
		want   []int
	}{
		{"DropOldest", DropOldest, []int{3, 4, 5}},
		{"DropNewest", DropNewest, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := NewCircularBuffer[int](3, WithOverflowPolicy[int](tt.policy))
			require.NoError(t, err)
			defer buf.Close()

			for i := 1; i <= 5; i++ {
				require.NoError(t, buf.Write(i))
			}
			assert.Equal(t, tt.want, buf.ReadBatch(5))
		})
	}
}

func TestOverflowPolicyString(t *testing.T) {
	assert.Equal(t, "DropOldest", DropOldest.String())
	assert.Equal(t, "DropNewest", DropNewest.String())
	assert.Equal(t, "Unknown", OverflowPolicy(42).String())
}

func TestCapacityFloor(t *testing.T) {
	for _, capacity := range []int{0, -5} {
		buf, err := NewCircularBuffer[int](capacity)
		require.NoError(t, err)
		assert.Equal(t, 1, buf.Capacity())
		buf.Close()
	}
}

func TestWrapAround(t *testing.T) {
	buf, err := NewCircularBuffer[int](3)
	require.NoError(t, err)
	defer buf.Close()

	for round := range 5 {
		for i := range 3 {
			require.NoError(t, buf.Write(round*10+i))
		}
		for i := range 3 {
			got, ok := buf.Read()
			require.True(t, ok)
			assert.Equal(t, round*10+i, got)
		}
	}
	assert.True(t, buf.IsEmpty())
}

func TestReadBatchEdges(t *testing.T) {
	buf, err := NewCircularBuffer[string](4)
	require.NoError(t, err)
	defer buf.Close()

	assert.Empty(t, buf.ReadBatch(5), "empty buffer yields no batch")

	require.NoError(t, buf.Write("refresh:orders"))
	assert.Empty(t, buf.ReadBatch(0), "non-positive max reads nothing")
	assert.Empty(t, buf.ReadBatch(-1))
	assert.Equal(t, 1, buf.Size())

	assert.Equal(t, []string{"refresh:orders"}, buf.ReadBatch(3))
}

func TestEmptyReads(t *testing.T) {
	buf, err := NewCircularBuffer[int](2)
	require.NoError(t, err)
	defer buf.Close()

	_, ok := buf.Read()
	assert.False(t, ok)
	_, ok = buf.Peek()
	assert.False(t, ok)
}

func TestStructItems(t *testing.T) {
	type refreshTask struct {
		CacheKey string
		Attempt  int
	}

	buf, err := NewCircularBuffer[refreshTask](2)
	require.NoError(t, err)
	defer buf.Close()

	require.NoError(t, buf.Write(refreshTask{CacheKey: "binding:kpi.total", Attempt: 1}))
	got, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, refreshTask{CacheKey: "binding:kpi.total", Attempt: 1}, got)
}

func TestDropCallbacks(t *testing.T) {
	newLoggedBuf := func(t *testing.T, capacity int, policy OverflowPolicy) (Buffer[int], *callbackLog) {
		log := &callbackLog{}
		buf, err := NewCircularBuffer[int](capacity,
			WithOverflowPolicy[int](policy),
			WithDropCallback[int](log.record),
		)
		require.NoError(t, err)
		return buf, log
	}

	t.Run("DropOldestReportsEvicted", func(t *testing.T) {
		buf, log := newLoggedBuf(t, 2, DropOldest)
		defer buf.Close()

		for i := 1; i <= 4; i++ {
			require.NoError(t, buf.Write(i))
		}
		assert.Equal(t, []int{1, 2}, log.items())
	})

	t.Run("DropNewestReportsRejected", func(t *testing.T) {
		buf, log := newLoggedBuf(t, 2, DropNewest)
		defer buf.Close()

		for i := 1; i <= 4; i++ {
			require.NoError(t, buf.Write(i))
		}
		assert.Equal(t, []int{3, 4}, log.items())

		kept, ok := buf.Read()
		require.True(t, ok)
		assert.Equal(t, 1, kept, "rejected writes leave contents intact")
	})

	t.Run("ClearReportsAllOldestFirst", func(t *testing.T) {
		buf, log := newLoggedBuf(t, 5, DropOldest)
		defer buf.Close()

		for i := 1; i <= 3; i++ {
			require.NoError(t, buf.Write(i))
		}
		buf.Clear()

		assert.Equal(t, []int{1, 2, 3}, log.items())
		assert.True(t, buf.IsEmpty())
	})
}

// The drop callback runs with the buffer lock released, so it may call
// back into the buffer without deadlocking.
func TestCallbackMayReenterBuffer(t *testing.T) {
	reentered := make(chan int, 1)

	var buf Buffer[int]
	var err error
	buf, err = NewCircularBuffer[int](1,
		WithOverflowPolicy[int](DropOldest),
		WithDropCallback[int](func(item int) {
			reentered <- buf.Size()
		}),
	)
	require.NoError(t, err)
	defer buf.Close()

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))

	select {
	case size := <-reentered:
		assert.Equal(t, 1, size)
	default:
		t.Fatal("drop callback did not run")
	}
}

func TestClosedBufferRejectsWrites(t *testing.T) {
	buf, err := NewCircularBuffer[string](2)
	require.NoError(t, err)

	require.NoError(t, buf.Write("update:layout.header"))
	require.NoError(t, buf.Close())

	err = buf.Write("update:layout.footer")
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrAlreadyStopped)

	var classified *errors.ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, errors.ErrorInvalid, classified.Class)
	assert.Equal(t, "buffer", classified.Component)
	assert.Equal(t, "Write", classified.Operation)

	// Remaining items stay readable so consumers can drain.
	got, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, "update:layout.header", got)
}

func TestStatisticsTracking(t *testing.T) {
	buf, err := NewCircularBuffer[string](2, WithOverflowPolicy[string](DropOldest))
	require.NoError(t, err)
	defer buf.Close()
	stats := buf.Stats()

	require.NoError(t, buf.Write("a"))
	require.NoError(t, buf.Write("b"))
	buf.Peek()
	buf.Read()
	require.NoError(t, buf.Write("c"))
	require.NoError(t, buf.Write("d")) // evicts "b"

	summary := buf.Stats().Summary()
	assert.Equal(t, int64(4), summary.Writes)
	assert.Equal(t, int64(1), summary.Reads)
	assert.Equal(t, int64(1), summary.Peeks)
	assert.Equal(t, int64(1), summary.Overflows)
	assert.Equal(t, int64(1), summary.Drops)
	assert.Equal(t, int64(2), summary.CurrentSize)
	assert.Equal(t, int64(2), summary.MaxSize)
	assert.Positive(t, summary.Uptime)

	assert.InDelta(t, 0.25, stats.DropRate(), 0.001)
	assert.InDelta(t, 0.25, stats.OverflowRate(), 0.001)
	assert.InDelta(t, 1.0, stats.Utilization(2), 0.001)
	assert.Positive(t, stats.Throughput())
	assert.Positive(t, stats.ReadThroughput())
}

func TestDropNewestDoesNotCountWrite(t *testing.T) {
	buf, err := NewCircularBuffer[int](1, WithOverflowPolicy[int](DropNewest))
	require.NoError(t, err)
	defer buf.Close()

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2)) // rejected

	stats := buf.Stats()
	assert.Equal(t, int64(1), stats.Writes())
	assert.Equal(t, int64(1), stats.Overflows())
	assert.Equal(t, int64(1), stats.Drops())
	assert.Equal(t, int64(1), stats.CurrentSize())
}

func TestStatisticsReset(t *testing.T) {
	stats := NewStatistics()
	stats.Write()
	stats.Read()
	stats.UpdateSize(5)

	stats.Reset()
	summary := stats.Summary()
	assert.Zero(t, summary.Writes)
	assert.Zero(t, summary.Reads)
	assert.Zero(t, summary.CurrentSize)
	assert.Zero(t, summary.MaxSize)
	assert.Zero(t, stats.Throughput())
}

func TestPeakSizeSurvivesDrain(t *testing.T) {
	buf, err := NewCircularBuffer[int](10)
	require.NoError(t, err)
	defer buf.Close()

	for i := range 7 {
		require.NoError(t, buf.Write(i))
	}
	buf.ReadBatch(7)

	assert.Equal(t, int64(0), buf.Stats().CurrentSize())
	assert.Equal(t, int64(7), buf.Stats().MaxSize())
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const (
		workers = 8
		perItem = 250
	)

	buf, err := NewCircularBuffer[int](64)
	require.NoError(t, err)
	defer buf.Close()

	var (
		wg        sync.WaitGroup
		readCount atomic.Int64
	)
	writersDone := make(chan struct{})

	for w := range workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range perItem {
				if err := buf.Write(worker*perItem + i); err != nil {
					t.Errorf("write failed: %v", err)
				}
			}
		}(w)
	}

	var readers sync.WaitGroup
	for range workers {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				if _, ok := buf.Read(); ok {
					readCount.Add(1)
					continue
				}
				select {
				case <-writersDone:
					if buf.IsEmpty() {
						return
					}
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(writersDone)
	readers.Wait()

	stats := buf.Stats()
	assert.Equal(t, int64(workers*perItem), stats.Writes())
	assert.Equal(t, stats.Writes(), readCount.Load()+stats.Drops(),
		"every written item is either read or dropped")
	assert.True(t, buf.IsEmpty())
}

// callbackLog collects dropped items across goroutines.
type callbackLog struct {
	mu   sync.Mutex
	seen []int
}

func (l *callbackLog) record(item int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, item)
}

func (l *callbackLog) items() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.seen...)
}

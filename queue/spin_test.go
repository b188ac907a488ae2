package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinQueue_EmptyIsNonBlocking(t *testing.T) {
	q := NewSpinQueue[int]()

	_, ok := q.TryDequeue()
	assert.False(t, ok)
	_, ok = q.TryPeek()
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Len())
}

func TestSpinQueue_FIFO(t *testing.T) {
	q := NewSpinQueue[string]()
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")
	require.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		peeked, ok := q.TryPeek()
		require.True(t, ok)
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, peeked, "peek must match the following dequeue")
		assert.Equal(t, want, got)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestSpinQueue_DrainLimit(t *testing.T) {
	q := NewSpinQueue[int]()
	for i := 0; i < 10; i++ {
		q.Enqueue(i)
	}

	var got []int
	n := q.Drain(4, func(v int) { got = append(got, v) })
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{0, 1, 2, 3}, got)

	n = q.Drain(0, func(v int) { got = append(got, v) })
	assert.Equal(t, 6, n)
	assert.Len(t, got, 10)
	assert.True(t, q.IsEmpty())
}

func TestSpinQueue_DequeueReleasesReference(t *testing.T) {
	q := NewSpinQueue[*int]()
	v := 7
	q.Enqueue(&v)

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Same(t, &v, got)
	assert.Nil(t, q.head.value, "stub node must not retain the dequeued item")
}

// TestSpinQueue_SingleProducerOrder runs one producer and one consumer concurrently
func TestSpinQueue_SingleProducerOrder(t *testing.T) {
	const total = 100000
	q := NewSpinQueue[int]()

	go func() {
		for i := 0; i < total; i++ {
			q.Enqueue(i)
		}
	}()

	expected := 0
	for expected < total {
		v, ok := q.TryDequeue()
		if !ok {
			continue
		}
		if v != expected {
			t.Fatalf("out of order: expected %d, got %d", expected, v)
		}
		expected++
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "no duplicates after full consumption")
}

// TestSpinQueue_MultiProducerPerProducerOrder checks loss, duplication and per-producer order
func TestSpinQueue_MultiProducerPerProducerOrder(t *testing.T) {
	const producers = 8
	const perProducer = 10000

	type item struct{ producer, seq int }
	q := NewSpinQueue[item]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(item{producer: p, seq: i})
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	next := make([]int, producers)
	received := 0
	for received < producers*perProducer {
		it, ok := q.TryDequeue()
		if !ok {
			select {
			case <-done:
				// Producers finished; remaining items must be linked now
				if q.IsEmpty() && received < producers*perProducer {
					t.Fatalf("lost items: received %d of %d", received, producers*perProducer)
				}
			default:
			}
			continue
		}
		if it.seq != next[it.producer] {
			t.Fatalf("producer %d: expected seq %d, got %d", it.producer, next[it.producer], it.seq)
		}
		next[it.producer]++
		received++
	}

	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer, next[p])
	}
	assert.Equal(t, 0, q.Len())
}

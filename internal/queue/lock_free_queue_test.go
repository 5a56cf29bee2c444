package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noiseItem struct {
	addr uint32
	data []byte
}

func TestLockFreeQueue(t *testing.T) {
	t.Run("Empty Queue", func(t *testing.T) {
		q := NewLockFreeQueue[*noiseItem]()

		assert.True(t, q.IsEmpty())
		assert.Equal(t, 0, q.Length())

		item, ok := q.Dequeue()
		assert.False(t, ok)
		assert.Nil(t, item)

		_, ok = q.Peek()
		assert.False(t, ok)
	})

	t.Run("FIFO order", func(t *testing.T) {
		q := NewLockFreeQueue[*noiseItem]()

		item1 := &noiseItem{addr: 0x7E8, data: []byte{0x01}}
		item2 := &noiseItem{addr: 0x123, data: []byte{0x02}}
		q.Enqueue(item1)
		q.Enqueue(item2)
		assert.Equal(t, 2, q.Length())

		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Same(t, item1, got)

		got, ok = q.Dequeue()
		require.True(t, ok)
		assert.Same(t, item2, got)

		assert.True(t, q.IsEmpty())
	})

	t.Run("Peek does not consume", func(t *testing.T) {
		q := NewLockFreeQueue[int]()
		q.Enqueue(7)
		q.Enqueue(8)

		v, ok := q.Peek()
		require.True(t, ok)
		assert.Equal(t, 7, v)
		assert.Equal(t, 2, q.Length())

		_, _ = q.Dequeue()
		v, _ = q.Peek()
		assert.Equal(t, 8, v)
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewLockFreeQueue[int]()
		q.Enqueue(1)
		q.Enqueue(2)
		q.Reset()

		assert.True(t, q.IsEmpty())
		_, ok := q.Dequeue()
		assert.False(t, ok)
	})

	t.Run("Concurrency", func(t *testing.T) {
		q := NewLockFreeQueue[int]()

		var wg sync.WaitGroup
		for i := 0; i < 1000; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				q.Enqueue(i)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1000, q.Length())

		seen := make([]bool, 1000)
		var mu sync.Mutex
		for i := 0; i < 1000; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.True(t, q.IsEmpty())
		for i, s := range seen {
			assert.True(t, s, "item %d was lost", i)
		}
	})
}

func BenchmarkLockFreeQueue(b *testing.B) {
	q := NewLockFreeQueue[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(i)
		_, _ = q.Dequeue()
	}
}

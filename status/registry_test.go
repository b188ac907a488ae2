package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricMap_GetReturnsCachedPointer(t *testing.T) {
	r := NewRegistry()
	a := r.Ints.Get("packets.replayed")
	b := r.Ints.Get("packets.replayed")
	assert.Same(t, a, b)
	assert.True(t, r.Ints.Has("packets.replayed"))
	assert.False(t, r.Ints.Has("packets.faulted"))
}

func TestMetricMap_ConcurrentGet(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.Ints.Get("render.completed").Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), r.Ints.Get("render.completed").Load())
	assert.Equal(t, 1, r.Ints.Count())
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	r.Ints.Get("host.frames").Store(3)
	r.Floats.Get("host.tick_ms").Set(1.5)
	r.Bools.Get("render.initialized").Store(true)
	r.Strings.Get("render.phase").Store("draining")

	snap := r.Snapshot()
	assert.Equal(t, int64(3), snap["host.frames"])
	assert.Equal(t, 1.5, snap["host.tick_ms"])
	assert.Equal(t, true, snap["render.initialized"])
	assert.Equal(t, "draining", snap["render.phase"])
	assert.Equal(t, 4, r.TotalCount())
}

func TestRegistry_SnapshotPrefix(t *testing.T) {
	r := NewRegistry()
	r.Ints.Get(PacketsReplayed).Store(7)
	r.Ints.Get(PacketsFaulted).Store(1)
	r.Ints.Get(RenderSwaps).Store(2)
	r.Strings.Get(RenderPhase).Store("draining")

	snap := r.SnapshotPrefix(PrefixPackets)
	assert.Equal(t, map[string]any{PacketsReplayed: int64(7), PacketsFaulted: int64(1)}, snap)
	assert.Len(t, r.SnapshotPrefix(PrefixRender), 2)
	assert.Empty(t, r.SnapshotPrefix(PrefixSim))
	assert.Len(t, r.Snapshot(), 4)
}

func TestMetricMap_RangeAllowsRegistration(t *testing.T) {
	m := NewMetricMap[AtomicFloat]()
	m.Get("host.tick_ms")
	m.Get("assets.budget_ms")

	var keys []string
	m.Range("", func(k string, _ *AtomicFloat) {
		keys = append(keys, k)
		m.Get(k + ".copy")
	})
	assert.Equal(t, []string{"assets.budget_ms", "host.tick_ms"}, keys)
	assert.Equal(t, 4, m.Count())
	assert.Equal(t, []string{"host.tick_ms", "host.tick_ms.copy"}, m.Keys(PrefixHost))
}

func TestAtomicFloat_StoreMax(t *testing.T) {
	var f AtomicFloat
	assert.True(t, f.StoreMax(2.5))
	assert.False(t, f.StoreMax(1))
	assert.True(t, f.StoreMax(4))
	assert.Equal(t, 4.0, f.Get())
}

func TestAtomicString_Truncates(t *testing.T) {
	var s AtomicString
	assert.Equal(t, "", s.Load())
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	s.Store(long)
	assert.Equal(t, long[:MaxStringLen], s.Load())
}

func TestAtomicFloat_Add(t *testing.T) {
	var f AtomicFloat
	f.Set(1.25)
	assert.Equal(t, 2.0, f.Add(0.75))
	assert.Equal(t, 2.0, f.Get())
}

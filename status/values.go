package status

import (
	"math"
	"sync/atomic"
)

// MaxStringLen caps string metrics; they carry short state names such as a phase
const MaxStringLen = 32

// AtomicFloat is a float64 metric stored as its bit pattern
// The zero value reads as 0
type AtomicFloat struct {
	bits atomic.Uint64
}

// Set stores val
func (f *AtomicFloat) Set(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Get loads the current value
func (f *AtomicFloat) Get() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Add adds delta and returns the new value
func (f *AtomicFloat) Add(delta float64) float64 {
	for {
		old := f.bits.Load()
		next := math.Float64frombits(old) + delta
		if f.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// StoreMax raises the value to val if val is larger; reports whether it did
// Used for peak gauges such as the longest host tick
func (f *AtomicFloat) StoreMax(val float64) bool {
	for {
		old := f.bits.Load()
		if math.Float64frombits(old) >= val {
			return false
		}
		if f.bits.CompareAndSwap(old, math.Float64bits(val)) {
			return true
		}
	}
}

// AtomicString is a short string metric, truncated to MaxStringLen bytes
// The zero value reads as ""
type AtomicString struct {
	ptr atomic.Pointer[string]
}

// Store sets val, truncated
func (s *AtomicString) Store(val string) {
	if len(val) > MaxStringLen {
		val = val[:MaxStringLen]
	}
	s.ptr.Store(&val)
}

// Load returns the current value
func (s *AtomicString) Load() string {
	if p := s.ptr.Load(); p != nil {
		return *p
	}
	return ""
}

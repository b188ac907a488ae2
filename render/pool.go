package render

import (
	"image"
	"sync"
)

// TargetPool recycles render targets by size
// Acquire and Release may be called from any goroutine
type TargetPool struct {
	mu      sync.Mutex
	free    map[image.Point][]*image.RGBA
	perSize int

	hits, misses int64
}

// NewTargetPool creates a pool keeping at most perSize idle targets per dimension
func NewTargetPool(perSize int) *TargetPool {
	return &TargetPool{
		free:    make(map[image.Point][]*image.RGBA),
		perSize: max(0, perSize),
	}
}

// Acquire returns a target of the requested size; contents are undefined
func (p *TargetPool) Acquire(size image.Point) *image.RGBA {
	p.mu.Lock()
	if list := p.free[size]; len(list) > 0 {
		img := list[len(list)-1]
		list[len(list)-1] = nil
		p.free[size] = list[:len(list)-1]
		p.hits++
		p.mu.Unlock()
		return img
	}
	p.misses++
	p.mu.Unlock()
	return image.NewRGBA(image.Rectangle{Max: size})
}

// Release returns a target to the pool; nil is ignored
func (p *TargetPool) Release(img *image.RGBA) {
	if img == nil {
		return
	}
	size := img.Bounds().Size()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free[size]) < p.perSize {
		p.free[size] = append(p.free[size], img)
	}
}

// Idle returns the number of pooled targets
func (p *TargetPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.free {
		n += len(l)
	}
	return n
}

// Stats returns acquire hit and miss counts
func (p *TargetPool) Stats() (hits, misses int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

// Reset drops every idle target
func (p *TargetPool) Reset() {
	p.mu.Lock()
	p.free = make(map[image.Point][]*image.RGBA)
	p.mu.Unlock()
}

package render

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lixenwraith/thundagun/status"
)

var (
	// ErrNotInitialized is returned when rendering before Init
	ErrNotInitialized = errors.New("render context not initialized")

	// ErrClosed is returned by every call after Close
	ErrClosed = errors.New("render context closed")

	// ErrRenderPanic wraps a panic recovered while producing a render task
	ErrRenderPanic = errors.New("render panicked")
)

const (
	stateNew int32 = iota
	stateReady
	stateClosed
)

// TextureSet indexes live textures by owner ID
// Render thread only
type TextureSet struct {
	byID map[uuid.UUID]*Texture
}

func newTextureSet() *TextureSet {
	return &TextureSet{byID: make(map[uuid.UUID]*Texture)}
}

// Put registers or replaces the texture of owner
func (t *TextureSet) Put(owner uuid.UUID, tex *Texture) {
	t.byID[owner] = tex
}

// Get returns the texture of owner
func (t *TextureSet) Get(owner uuid.UUID) (*Texture, bool) {
	tex, ok := t.byID[owner]
	return tex, ok
}

// Delete drops the texture of owner
func (t *TextureSet) Delete(owner uuid.UUID) {
	delete(t.byID, owner)
}

// Len returns the number of registered textures
func (t *TextureSet) Len() int {
	return len(t.byID)
}

// Context owns the render-thread state: scene, textures, targets and the software camera
// Created explicitly and torn down with Close; there is no process-wide instance
type Context struct {
	state atomic.Int32
	once  sync.Once

	scene    *Scene
	textures *TextureSet
	raster   *Rasterizer
	pool     *TargetPool
	poolSize int

	log        *slog.Logger
	beforeDraw func(Settings)

	statRendered *atomic.Int64
	statWide     *atomic.Int64
	statFaulted  *atomic.Int64
}

// ContextOption configures a Context
type ContextOption func(*Context)

// WithContextLogger sets the logger
func WithContextLogger(l *slog.Logger) ContextOption {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithContextRegistry binds render metrics to a status registry
func WithContextRegistry(reg *status.Registry) ContextOption {
	return func(c *Context) {
		if reg != nil {
			c.bindMetrics(reg)
		}
	}
}

// WithPoolSize sets the idle target count kept per dimension
func WithPoolSize(n int) ContextOption {
	return func(c *Context) {
		c.poolSize = n
	}
}

// WithBeforeDraw installs a hook that runs inside every render, after layer overrides apply
// Used by tools and tests to inspect or fault a render mid-flight
func WithBeforeDraw(fn func(Settings)) ContextOption {
	return func(c *Context) {
		c.beforeDraw = fn
	}
}

// NewContext creates an uninitialized render context
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		log:      slog.Default(),
		poolSize: 4,
	}
	c.bindMetrics(status.NewRegistry())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) bindMetrics(reg *status.Registry) {
	c.statRendered = reg.Ints.Get(status.RenderImmediate)
	c.statWide = reg.Ints.Get(status.RenderWide)
	c.statFaulted = reg.Ints.Get(status.RenderImmediateFaulted)
}

// Init allocates the scene, target pool and rasterizer; repeated calls are no-ops
func (c *Context) Init() error {
	if c.state.Load() == stateClosed {
		return ErrClosed
	}
	c.once.Do(func() {
		c.scene = NewScene()
		c.textures = newTextureSet()
		c.raster = NewRasterizer()
		c.pool = NewTargetPool(c.poolSize)
		c.state.CompareAndSwap(stateNew, stateReady)
		c.log.Debug("render context initialized", "pool_size", c.poolSize)
	})
	if c.state.Load() == stateClosed {
		return ErrClosed
	}
	return nil
}

// Close releases pooled targets and the scene; later calls fail with ErrClosed
func (c *Context) Close() error {
	if c.state.Swap(stateClosed) == stateClosed {
		return ErrClosed
	}
	if c.pool != nil {
		c.pool.Reset()
	}
	if c.scene != nil {
		c.scene.Clear()
	}
	c.log.Debug("render context closed")
	return nil
}

// Ready reports whether the context is initialized and open
func (c *Context) Ready() bool {
	return c.state.Load() == stateReady
}

// Scene returns the render-thread scene, nil before Init
func (c *Context) Scene() *Scene {
	return c.scene
}

// Textures returns the render-thread texture set, nil before Init
func (c *Context) Textures() *TextureSet {
	return c.textures
}

// Pool returns the render target pool, nil before Init
func (c *Context) Pool() *TargetPool {
	return c.pool
}

// RenderImmediate renders settings to a byte buffer on the calling (render) thread
// Layer overrides and pooled targets are always released, including on panic
func (c *Context) RenderImmediate(s Settings) (data []byte, err error) {
	switch c.state.Load() {
	case stateNew:
		return nil, ErrNotInitialized
	case stateClosed:
		return nil, ErrClosed
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			c.statFaulted.Add(1)
			c.log.Error("render panicked", "panic", r, "stack", string(debug.Stack()))
			data, err = nil, fmt.Errorf("%w: %v", ErrRenderPanic, r)
		}
	}()

	target := c.pool.Acquire(s.Size)
	defer c.pool.Release(target)

	restore := applyTaskLayers(c.scene, s)
	defer restore()

	if c.beforeDraw != nil {
		c.beforeDraw(s)
	}

	mask := CullingMask(s, ExclusionMask(s.RenderPrivateUI))
	c.raster.Clear(target, s.ClearColor)
	if s.Wide() {
		c.statWide.Add(1)
		renderEquirect(c.raster, c.pool, c.scene, s, mask, target)
	} else {
		c.raster.Draw(c.scene, ViewMatrix(s.Position, s.Rotation), Projection(s), mask, target)
	}

	data, err = Readback(target, s.Format)
	if err == nil {
		c.statRendered.Add(1)
	}
	return data, err
}

package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/status"
)

// ErrQueueClosed faults tasks enqueued after, or still queued at, Close
var ErrQueueClosed = errors.New("render task queue closed")

// ImmediateRenderer executes one render task synchronously on the render thread
type ImmediateRenderer interface {
	RenderImmediate(s Settings) ([]byte, error)
}

// Phase is the double-buffer state observed by the simulation side
type Phase int32

const (
	// PhaseDraining: the render thread works on, or idles on, the active buffer
	PhaseDraining Phase = iota
	// PhaseSwapping: inside the swap critical section
	PhaseSwapping
	// PhaseAccepting: a batch was handed over and has not started draining yet
	PhaseAccepting
)

func (p Phase) String() string {
	switch p {
	case PhaseDraining:
		return "draining"
	case PhaseSwapping:
		return "swapping"
	case PhaseAccepting:
		return "accepting"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// task binds captured settings to the future the caller holds
type task struct {
	settings Settings
	future   *core.Future[[]byte]
}

// TaskQueue double-buffers render requests between the simulation and render threads
// Simulation side writes the pending buffer; the render thread drains the active buffer
// Buffers swap only once active is fully drained and the engine marked its frame complete
// Thread-Safety:
//   - Enqueue/Render/MarkEngineCompleted/AwaitSwap/Phase/Pending: any thread
//   - Process/Abandon: render thread only
type TaskQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	// Guarded by mu
	pending    []*task
	engineDone bool
	closed     bool
	generation uint64

	// Render thread exclusive; swapped with pending under mu
	active []*task
	head   int

	activeLeft atomic.Int64
	phase      atomic.Int32

	renderer ImmediateRenderer
	clock    core.TimeProvider
	log      *slog.Logger

	statEnqueued  *atomic.Int64
	statCompleted *atomic.Int64
	statFaulted   *atomic.Int64
	statSwaps     *atomic.Int64
	statPhase     *status.AtomicString
}

// TaskOption configures a TaskQueue
type TaskOption func(*TaskQueue)

// WithTaskClock sets the time source for the per-call budget
func WithTaskClock(c core.TimeProvider) TaskOption {
	return func(q *TaskQueue) {
		if c != nil {
			q.clock = c
		}
	}
}

// WithTaskLogger sets the logger
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(q *TaskQueue) {
		if l != nil {
			q.log = l
		}
	}
}

// WithTaskRegistry binds queue metrics to a status registry
func WithTaskRegistry(reg *status.Registry) TaskOption {
	return func(q *TaskQueue) {
		if reg != nil {
			q.bindMetrics(reg)
		}
	}
}

// NewTaskQueue creates a task queue executing through renderer
func NewTaskQueue(renderer ImmediateRenderer, opts ...TaskOption) *TaskQueue {
	q := &TaskQueue{
		renderer: renderer,
		clock:    core.SystemTime{},
		log:      slog.Default(),
	}
	q.cond = sync.NewCond(&q.mu)
	q.bindMetrics(status.NewRegistry())
	for _, opt := range opts {
		opt(q)
	}
	q.setPhase(PhaseDraining)
	return q
}

func (q *TaskQueue) bindMetrics(reg *status.Registry) {
	q.statEnqueued = reg.Ints.Get(status.RenderEnqueued)
	q.statCompleted = reg.Ints.Get(status.RenderCompleted)
	q.statFaulted = reg.Ints.Get(status.RenderFaulted)
	q.statSwaps = reg.Ints.Get(status.RenderSwaps)
	q.statPhase = reg.Strings.Get(status.RenderPhase)
	q.statPhase.Store(Phase(q.phase.Load()).String())
}

func (q *TaskQueue) setPhase(p Phase) {
	q.phase.Store(int32(p))
	q.statPhase.Store(p.String())
}

// Enqueue captures settings into the pending buffer and returns the result future
// Never blocks beyond the buffer lock; the task is invisible to the render thread until the next swap
func (q *TaskQueue) Enqueue(s Settings) *core.Future[[]byte] {
	f := core.NewFuture[[]byte]()
	t := &task{settings: cloneSettings(s), future: f}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		f.Fault(ErrQueueClosed)
		return f
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	q.statEnqueued.Add(1)
	return f
}

// Render is Enqueue
func (q *TaskQueue) Render(s Settings) *core.Future[[]byte] {
	return q.Enqueue(s)
}

// MarkEngineCompleted signals the simulation frame is done producing tasks
// The next Process call that finds the active buffer empty performs the swap
func (q *TaskQueue) MarkEngineCompleted() {
	q.mu.Lock()
	q.engineDone = true
	q.mu.Unlock()
}

// Process drains the active buffer within budget, then swaps if allowed
// At least one task runs per call when any is active; budget <= 0 drains without limit
// Returns the number of tasks executed
func (q *TaskQueue) Process(budget time.Duration) int {
	if Phase(q.phase.Load()) == PhaseAccepting {
		q.setPhase(PhaseDraining)
	}

	start := q.clock.Now()
	done := 0
	for q.head < len(q.active) {
		if done > 0 && budget > 0 && q.clock.Now().Sub(start) >= budget {
			break
		}
		t := q.active[q.head]
		q.active[q.head] = nil
		q.head++
		q.activeLeft.Add(-1)
		q.execute(t)
		done++
	}

	if q.head < len(q.active) {
		return done
	}
	q.active = q.active[:0]
	q.head = 0

	q.mu.Lock()
	if q.engineDone && !q.closed {
		q.setPhase(PhaseSwapping)
		q.active, q.pending = q.pending, q.active
		q.engineDone = false
		q.generation++
		q.activeLeft.Store(int64(len(q.active)))
		q.statSwaps.Add(1)
		q.setPhase(PhaseAccepting)
		q.cond.Broadcast()
	}
	q.mu.Unlock()
	return done
}

// execute runs one task and settles its future; panics fault only this task
func (q *TaskQueue) execute(t *task) {
	data, err := q.renderSafe(t.settings)
	if err != nil {
		q.statFaulted.Add(1)
		q.log.Warn("render task failed", "size", t.settings.Size, "format", t.settings.Format, "err", err)
		t.future.Fault(err)
		return
	}
	q.statCompleted.Add(1)
	t.future.Resolve(data)
}

func (q *TaskQueue) renderSafe(s Settings) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: %v", ErrRenderPanic, r)
		}
	}()
	if q.renderer == nil {
		return nil, ErrNotInitialized
	}
	return q.renderer.RenderImmediate(s)
}

// AwaitSwap blocks until the next buffer swap, the queue closes, or ctx ends
func (q *TaskQueue) AwaitSwap(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	gen := q.generation
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	for q.generation == gen && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	switch {
	case q.generation != gen:
		return nil
	case q.closed:
		return ErrQueueClosed
	default:
		return ctx.Err()
	}
}

// Phase returns the current double-buffer phase
func (q *TaskQueue) Phase() Phase {
	return Phase(q.phase.Load())
}

// Generation returns the number of swaps performed
func (q *TaskQueue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}

// Pending returns task counts in the pending and active buffers
func (q *TaskQueue) Pending() (pending, active int) {
	q.mu.Lock()
	pending = len(q.pending)
	q.mu.Unlock()
	return pending, int(q.activeLeft.Load())
}

// Close faults every pending task and wakes swap waiters
// Tasks already swapped into the active buffer still run on the next Process,
// or are faulted by Abandon when no Process follows
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, t := range dropped {
		t.future.Fault(ErrQueueClosed)
	}
	if len(dropped) > 0 {
		q.log.Debug("render task queue closed", "dropped", len(dropped))
	}
}

// Abandon closes the queue and faults every task left in the active buffer
// Call on the render thread once it will no longer Process
func (q *TaskQueue) Abandon() {
	q.Close()

	left := q.active[q.head:]
	for i, t := range left {
		left[i] = nil
		t.future.Fault(ErrQueueClosed)
	}
	if len(left) > 0 {
		q.log.Debug("render task queue abandoned", "dropped", len(left))
	}
	q.active = q.active[:0]
	q.head = 0
	q.activeLeft.Store(0)
}

// cloneSettings detaches caller-owned slices from the queued task
func cloneSettings(s Settings) Settings {
	if s.RenderObjects != nil {
		s.RenderObjects = append(s.RenderObjects[:0:0], s.RenderObjects...)
	}
	if s.ExcludeObjects != nil {
		s.ExcludeObjects = append(s.ExcludeObjects[:0:0], s.ExcludeObjects...)
	}
	return s
}

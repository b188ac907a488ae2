// Package asset schedules GPU-affecting integration work on the render thread.
//
// Work arrives from any thread into two priority lanes plus an unconditional
// task list. The render thread calls ProcessQueue once per tick with a time
// budget: tasks always run, then high-priority work drains before any
// normal-priority work starts, one step at a time, until the budget is spent.
package asset

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/queue"
	"github.com/lixenwraith/thundagun/status"
)

// ErrPanic wraps a panic recovered from an integration step
var ErrPanic = errors.New("asset step panicked")

// Notifier receives the processed count after every ProcessQueue call
// The simulation side uses it to account integration progress per frame
type Notifier interface {
	AssetsUpdated(count int)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(count int)

// AssetsUpdated implements Notifier
func (f NotifierFunc) AssetsUpdated(count int) {
	f(count)
}

// entry is one queued integration item
type entry struct {
	label string
	steps Stepper
}

// lane is a FIFO with at most one in-flight multi-step item at its head
type lane struct {
	name    string
	items   *queue.SpinQueue[*entry]
	current *entry // Render-thread exclusive

	statPending *atomic.Int64
}

// next returns the head item, promoting the next queued item if nothing is in flight
func (l *lane) next() *entry {
	if l.current == nil {
		e, ok := l.items.TryDequeue()
		if !ok {
			return nil
		}
		l.current = e
	}
	return l.current
}

// IntegrationQueue is the render-thread asset work scheduler
// Thread-Safety:
//   - EnqueueProcessing/EnqueueSteps/EnqueueTask: any thread, non-blocking
//   - ProcessQueue: render thread only
type IntegrationQueue struct {
	tasks  *queue.SpinQueue[func()]
	high   *lane
	normal *lane

	clock    core.TimeProvider
	log      *slog.Logger
	notifier Notifier

	// Cached metric pointers
	statProcessed *atomic.Int64
	statFaulted   *atomic.Int64
	statTasks     *atomic.Int64
}

// Option configures an IntegrationQueue
type Option func(*IntegrationQueue)

// WithClock sets the time source used for budget accounting
func WithClock(c core.TimeProvider) Option {
	return func(q *IntegrationQueue) {
		if c != nil {
			q.clock = c
		}
	}
}

// WithLogger sets the logger for step faults
func WithLogger(l *slog.Logger) Option {
	return func(q *IntegrationQueue) {
		if l != nil {
			q.log = l
		}
	}
}

// WithRegistry binds metrics to a status registry
func WithRegistry(reg *status.Registry) Option {
	return func(q *IntegrationQueue) {
		if reg != nil {
			q.bindMetrics(reg)
		}
	}
}

// WithNotifier sets the per-call processed-count receiver
func WithNotifier(n Notifier) Option {
	return func(q *IntegrationQueue) {
		q.notifier = n
	}
}

// NewIntegrationQueue creates an empty integration queue
func NewIntegrationQueue(opts ...Option) *IntegrationQueue {
	q := &IntegrationQueue{
		tasks:  queue.NewSpinQueue[func()](),
		high:   &lane{name: "high", items: queue.NewSpinQueue[*entry]()},
		normal: &lane{name: "normal", items: queue.NewSpinQueue[*entry]()},
		clock:  core.SystemTime{},
		log:    slog.Default(),
	}
	q.bindMetrics(status.NewRegistry())
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *IntegrationQueue) bindMetrics(reg *status.Registry) {
	q.statProcessed = reg.Ints.Get(status.AssetsProcessed)
	q.statFaulted = reg.Ints.Get(status.AssetsFaulted)
	q.statTasks = reg.Ints.Get(status.AssetsTasks)
	q.high.statPending = reg.Ints.Get(status.AssetsPendingHigh)
	q.normal.statPending = reg.Ints.Get(status.AssetsPendingNormal)
}

// EnqueueProcessing queues a one-shot integration action
func (q *IntegrationQueue) EnqueueProcessing(label string, action func() error, highPriority bool) {
	if action == nil {
		return
	}
	q.EnqueueSteps(label, Once(action), highPriority)
}

// EnqueueSteps queues a resumable operation that may span several ticks
func (q *IntegrationQueue) EnqueueSteps(label string, s Stepper, highPriority bool) {
	if s == nil {
		return
	}
	l := q.normal
	if highPriority {
		l = q.high
	}
	l.items.Enqueue(&entry{label: label, steps: s})
	l.statPending.Add(1)
}

// EnqueueTask queues a deferred action that runs on the next ProcessQueue regardless of budget
func (q *IntegrationQueue) EnqueueTask(action func()) {
	if action == nil {
		return
	}
	q.tasks.Enqueue(action)
}

// Pending returns queued-or-in-flight counts per lane
func (q *IntegrationQueue) Pending() (high, normal int) {
	return int(q.high.statPending.Load()), int(q.normal.statPending.Load())
}

// ProcessQueue runs one tick of integration work and returns the processed count
//  1. Drain the task list completely, unconditionally
//  2. Run steps, high lane first, until both lanes are empty or budget is spent
//
// A budget <= 0 starts no new item; it only advances an already in-flight item by one step
func (q *IntegrationQueue) ProcessQueue(budget time.Duration) int {
	start := q.clock.Now()
	processed := q.runTasks()

	if budget <= 0 {
		if l := q.inFlight(); l != nil {
			q.step(l)
			processed++
		}
	} else {
		for q.clock.Now().Sub(start) < budget {
			l := q.nextLane()
			if l == nil {
				break
			}
			q.step(l)
			processed++
		}
	}

	q.statProcessed.Add(int64(processed))
	if q.notifier != nil {
		q.notifier.AssetsUpdated(processed)
	}
	return processed
}

// runTasks drains the task list, snapshotting its length so re-enqueued tasks wait a tick
func (q *IntegrationQueue) runTasks() int {
	n := q.tasks.Drain(q.tasks.Len(), func(task func()) {
		if err := q.protect(func() error { task(); return nil }); err != nil {
			q.statFaulted.Add(1)
			q.log.Warn("asset task failed", "err", err)
		}
	})
	q.statTasks.Add(int64(n))
	return n
}

// inFlight returns the lane holding a started multi-step item, high first
func (q *IntegrationQueue) inFlight() *lane {
	if q.high.current != nil {
		return q.high
	}
	if q.normal.current != nil {
		return q.normal
	}
	return nil
}

// nextLane returns the lane whose head runs next; high always drains first
func (q *IntegrationQueue) nextLane() *lane {
	if q.high.next() != nil {
		return q.high
	}
	if q.normal.next() != nil {
		return q.normal
	}
	return nil
}

// step runs one step of the lane head, retiring it when exhausted or faulted
func (q *IntegrationQueue) step(l *lane) {
	e := l.current
	var done bool
	err := q.protect(func() error {
		var stepErr error
		done, stepErr = e.steps.Step()
		return stepErr
	})

	if err != nil {
		q.statFaulted.Add(1)
		q.log.Warn("asset integration failed", "label", e.label, "lane", l.name, "err", err)
		done = true
	}

	if done {
		l.current = nil
		l.statPending.Add(-1)
	}
}

// protect converts a panic into ErrPanic
func (q *IntegrationQueue) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

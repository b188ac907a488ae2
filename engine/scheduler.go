package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/status"
)

// Simulation is the engine-side update run once per simulation tick
// It feeds connectors; it must not touch render-owned state
type Simulation interface {
	Update(frame uint64) error
}

// SimulationFunc adapts a function to Simulation
type SimulationFunc func(frame uint64) error

// Update implements Simulation
func (f SimulationFunc) Update(frame uint64) error { return f(frame) }

// EngineMarker receives the end-of-update signal; render.TaskQueue implements it
type EngineMarker interface {
	MarkEngineCompleted()
}

// Scheduler runs the simulation on a fixed tick on its own goroutine
// After every update it marks the engine completed so the render task queue can swap
type Scheduler struct {
	sim    Simulation
	marker EngineMarker
	log    *slog.Logger

	interval atomic.Int64 // time.Duration
	isPaused atomic.Bool

	nextTickDeadline time.Time // Scheduler goroutine only

	tickCount atomic.Uint64
	faults    atomic.Uint64

	// Control channels
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool

	// Frame synchronization channels
	frameReady <-chan struct{} // Receive signal that a render frame finished
	updateDone chan<- struct{} // Send signal that an update is complete

	// Cached metric pointers
	statTicks  *atomic.Int64
	statFaults *atomic.Int64
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger for update faults
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSchedulerRegistry binds tick metrics into reg
func WithSchedulerRegistry(reg *status.Registry) SchedulerOption {
	return func(s *Scheduler) {
		if reg != nil {
			s.statTicks = reg.Ints.Get(status.SimTicks)
			s.statFaults = reg.Ints.Get(status.SimFaults)
		}
	}
}

// NewScheduler creates a scheduler ticking every interval
// Receives the frameReady channel and returns the updateDone channel
// A nil frameReady runs the simulation without waiting for render frames
func NewScheduler(
	sim Simulation,
	marker EngineMarker,
	interval time.Duration,
	frameReady <-chan struct{},
	opts ...SchedulerOption,
) (*Scheduler, <-chan struct{}) {
	updateDone := make(chan struct{}, 1)

	s := &Scheduler{
		sim:        sim,
		marker:     marker,
		log:        slog.Default(),
		frameReady: frameReady,
		updateDone: updateDone,
		stopChan:   make(chan struct{}),
		statTicks:  new(atomic.Int64),
		statFaults: new(atomic.Int64),
	}
	s.interval.Store(int64(interval))
	for _, opt := range opts {
		opt(s)
	}
	return s, updateDone
}

// Interval returns the current tick interval
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the tick interval from the next tick
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval.Store(int64(d))
	}
}

// SetPaused stops updates without stopping the loop
func (s *Scheduler) SetPaused(paused bool) {
	s.isPaused.Store(paused)
}

// Ticks returns the number of completed updates
func (s *Scheduler) Ticks() uint64 {
	return s.tickCount.Load()
}

// Faults returns the number of updates that failed or panicked
func (s *Scheduler) Faults() uint64 {
	return s.faults.Load()
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	if s.running.CompareAndSwap(false, true) {
		s.wg.Add(1)
		// Use core.Go for centralized crash handling
		core.Go(s.schedulerLoop)
	}
}

// Stop halts the scheduler loop and waits for the current update to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.running.CompareAndSwap(true, false) {
			close(s.stopChan)
			s.wg.Wait()
		}
	})
}

// schedulerLoop runs the main scheduling loop with pause awareness
func (s *Scheduler) schedulerLoop() {
	defer s.wg.Done()

	s.nextTickDeadline = time.Now().Add(s.Interval())

	timer := time.NewTimer(0)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		var sleepDuration time.Duration
		interval := s.Interval()

		if s.isPaused.Load() {
			// Longer sleep while paused to save CPU
			sleepDuration = interval * 2
			s.nextTickDeadline = time.Now().Add(interval)
		} else {
			now := time.Now()
			if !now.Before(s.nextTickDeadline) {
				if s.frameReady != nil {
					select {
					case <-s.frameReady:
					case <-time.After(interval * 2):
					case <-s.stopChan:
						return
					}
				}

				s.processTick()

				s.nextTickDeadline = s.nextTickDeadline.Add(interval)
				maxBehind := interval * 2
				if now.Sub(s.nextTickDeadline) > maxBehind {
					s.nextTickDeadline = now.Add(interval)
				}

				select {
				case s.updateDone <- struct{}{}:
				default:
				}

				sleepDuration = max(time.Until(s.nextTickDeadline), 0)
			} else {
				sleepDuration = s.nextTickDeadline.Sub(now)
			}
		}

		if sleepDuration > 0 {
			timer.Reset(sleepDuration)
			select {
			case <-timer.C:
			case <-s.stopChan:
				return
			}
		}
	}
}

// processTick runs one update and always marks the engine completed
// A failed update still ends the frame so render tasks are not held back
func (s *Scheduler) processTick() {
	frame := s.tickCount.Load() + 1
	if err := s.update(frame); err != nil {
		s.faults.Add(1)
		s.statFaults.Add(1)
		s.log.Warn("simulation update failed", "frame", frame, "err", err)
	}
	if s.marker != nil {
		s.marker.MarkEngineCompleted()
	}
	s.tickCount.Store(frame)
	s.statTicks.Store(int64(frame))
}

func (s *Scheduler) update(frame uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.sim.Update(frame)
}

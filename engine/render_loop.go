package engine

import (
	"context"
	"time"
)

// PresentFunc receives each finished frame on the render thread
// A non-nil error ends the render loop
type PresentFunc func(TickStats) error

// RenderLoop drives host.Tick at render.max_tick_rate on the calling goroutine
// The caller should hold the OS thread (runtime.LockOSThread) for the render context
// frameReady is signalled after every frame without blocking; updateDone signals are consumed
// Returns nil when ctx ends, or the first error from present
func RenderLoop(ctx context.Context, host *Host, frameReady chan<- struct{}, updateDone <-chan struct{}, present PresentFunc) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		// Updates that finished since last frame are already visible through the engine flag
		for drained := false; !drained; {
			select {
			case <-updateDone:
			default:
				drained = true
			}
		}

		start := time.Now()
		stats := host.Tick()
		if present != nil {
			if err := present(stats); err != nil {
				return err
			}
		}

		if frameReady != nil {
			select {
			case frameReady <- struct{}{}:
			default:
			}
		}

		timer.Reset(max(host.Config().FrameInterval()-time.Since(start), 0))
	}
}

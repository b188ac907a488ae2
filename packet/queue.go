package packet

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lixenwraith/thundagun/queue"
	"github.com/lixenwraith/thundagun/status"
)

// DrainStats reports the result of one Drain call
type DrainStats struct {
	Replayed  int // Packets whose Update ran, including faulted ones
	Faulted   int // Packets whose Update returned an error or panicked
	Remaining int // Packets left for the next tick (enqueued during the drain)
}

// RetireWindow is how many drains a destroyed owner stays marked retired
// Stale packets for an owner arrive within a few ticks of its destroy packet
const RetireWindow = 16

// retiredOwner records the drain in which an owner was retired
type retiredOwner struct {
	id    uuid.UUID
	drain uint64
}

// Queue is the process-wide packet buffer
// Thread-Safety:
//   - QueuePacket: any thread, non-blocking
//   - Drain: render thread only, once per tick
type Queue struct {
	packets *queue.SpinQueue[Packet]
	log     *slog.Logger

	// Retired owners, oldest first in retiredOrder; entries expire after RetireWindow drains
	retiredMu    sync.Mutex
	retired      map[uuid.UUID]uint64
	retiredOrder []retiredOwner
	drains       uint64

	// Cached metric pointers
	statQueued       *atomic.Int64
	statReplayed     *atomic.Int64
	statFaulted      *atomic.Int64
	statPending      *atomic.Int64
	statAfterDestroy *atomic.Int64
}

// Option configures a Queue
type Option func(*Queue)

// WithLogger sets the logger used for replay faults
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// WithRegistry binds queue metrics to a status registry
func WithRegistry(reg *status.Registry) Option {
	return func(q *Queue) {
		if reg != nil {
			q.bindMetrics(reg)
		}
	}
}

// NewQueue creates an empty packet queue
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		packets: queue.NewSpinQueue[Packet](),
		log:     slog.Default(),
		retired: make(map[uuid.UUID]uint64),
	}
	q.bindMetrics(status.NewRegistry())
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) bindMetrics(reg *status.Registry) {
	q.statQueued = reg.Ints.Get(status.PacketsQueued)
	q.statReplayed = reg.Ints.Get(status.PacketsReplayed)
	q.statFaulted = reg.Ints.Get(status.PacketsFaulted)
	q.statPending = reg.Ints.Get(status.PacketsPending)
	q.statAfterDestroy = reg.Ints.Get(status.PacketsAfterDestroy)
}

// QueuePacket appends a packet; safe from any thread
// The packet is owned by the queue until replayed
func (q *Queue) QueuePacket(p Packet) {
	if p == nil {
		return
	}
	q.packets.Enqueue(p)
	q.statQueued.Add(1)
}

// Len returns the approximate number of queued packets
func (q *Queue) Len() int {
	return q.packets.Len()
}

// Drain replays the packets queued before the call, in FIFO order
// Packets enqueued while draining are left for the next tick so a busy producer cannot stall the frame
// A faulting packet is logged and dropped; the drain continues with the next packet
func (q *Queue) Drain() DrainStats {
	var stats DrainStats
	q.retiredMu.Lock()
	q.drains++
	q.retiredMu.Unlock()

	snapshot := q.packets.Len()
	for stats.Replayed < snapshot {
		p, ok := q.packets.TryDequeue()
		if !ok {
			// Producer mid-link; the rest arrives next tick
			break
		}
		stats.Replayed++

		if err := q.replay(p); err != nil {
			stats.Faulted++
			q.log.Warn("packet replay failed",
				"owner", p.Owner(),
				"label", labelOf(p),
				"err", err,
			)
		}
	}

	stats.Remaining = q.packets.Len()
	q.expireRetired()
	q.statReplayed.Add(int64(stats.Replayed))
	q.statFaulted.Add(int64(stats.Faulted))
	q.statPending.Store(int64(stats.Remaining))
	return stats
}

// replay runs one packet with panic isolation
func (q *Queue) replay(p Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("packet panic: %v", r)
		}
	}()

	owner := p.Owner()
	if q.IsRetired(owner) {
		q.statAfterDestroy.Add(1)
	}

	err = p.Update()

	if rp, ok := p.(Retiring); ok && rp.Retires() {
		q.Retire(owner)
	}
	return err
}

// Retire marks owner destroyed; later packets for it are counted in packets.after_destroy
// The mark lasts RetireWindow drains
func (q *Queue) Retire(owner uuid.UUID) {
	q.retiredMu.Lock()
	q.retired[owner] = q.drains
	q.retiredOrder = append(q.retiredOrder, retiredOwner{id: owner, drain: q.drains})
	q.retiredMu.Unlock()
}

// IsRetired reports whether a destroy packet for owner has replayed
func (q *Queue) IsRetired(owner uuid.UUID) bool {
	q.retiredMu.Lock()
	defer q.retiredMu.Unlock()
	_, ok := q.retired[owner]
	return ok
}

// Retired returns the number of owners currently marked retired
func (q *Queue) Retired() int {
	q.retiredMu.Lock()
	defer q.retiredMu.Unlock()
	return len(q.retired)
}

// expireRetired drops marks older than RetireWindow drains
func (q *Queue) expireRetired() {
	q.retiredMu.Lock()
	defer q.retiredMu.Unlock()

	n := 0
	for _, r := range q.retiredOrder {
		if r.drain+RetireWindow > q.drains {
			break
		}
		// A re-retired owner keeps its newer mark
		if q.retired[r.id] == r.drain {
			delete(q.retired, r.id)
		}
		n++
	}
	if n == 0 {
		return
	}
	clear(q.retiredOrder[:n])
	q.retiredOrder = q.retiredOrder[n:]
	if len(q.retiredOrder) == 0 {
		q.retiredOrder = nil
	}
}

func labelOf(p Packet) string {
	if l, ok := p.(Labeled); ok {
		return l.Label()
	}
	return fmt.Sprintf("%T", p)
}

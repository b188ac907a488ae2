// Package packet records simulation-side changes as update packets and replays
// them on the render thread once per tick.
//
// A packet is built on the simulation thread: it captures the values it needs
// at construction and never reads live simulation state afterwards. It is
// replayed exactly once on the render thread, in the order its owner queued it.
package packet

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// ErrCapture is returned from Update when the state snapshot failed at construction
var ErrCapture = errors.New("packet state capture failed")

// Packet is a captured-state-plus-deferred-action record
// Construction happens on the simulation thread, Update on the render thread
type Packet interface {
	// Owner identifies the connector the packet mutates; per-owner order is preserved
	Owner() uuid.UUID

	// Update applies the captured state to render-thread-owned objects
	Update() error
}

// Labeled is implemented by packets that carry a diagnostic label
type Labeled interface {
	Label() string
}

// Retiring is implemented by destroy packets; the queue marks the owner retired after replay
type Retiring interface {
	Retires() bool
}

// Func is a packet built from a captured value and an apply function
type Func[S any] struct {
	owner   uuid.UUID
	label   string
	state   S
	apply   func(S) error
	retires bool
	err     error
}

// New snapshots state with a deep copy and binds it to apply
// Reference fields (slices, maps, pointers) are copied so later simulation writes stay invisible
func New[S any](owner uuid.UUID, label string, state S, apply func(S) error) *Func[S] {
	p := &Func[S]{owner: owner, label: label, apply: apply}
	switch reflect.TypeFor[S]().Kind() {
	case reflect.Struct, reflect.Slice, reflect.Map:
		if err := copier.CopyWithOption(&p.state, &state, copier.Option{DeepCopy: true}); err != nil {
			p.err = fmt.Errorf("%w: %s: %v", ErrCapture, label, err)
		}
	default:
		// Scalars, strings and arrays copy by assignment; pointer state is shared
		p.state = state
	}
	return p
}

// NewDestroy builds a packet that retires its owner once replayed
func NewDestroy[S any](owner uuid.UUID, label string, state S, apply func(S) error) *Func[S] {
	p := New(owner, label, state, apply)
	p.retires = true
	return p
}

// Owner implements Packet
func (p *Func[S]) Owner() uuid.UUID {
	return p.owner
}

// Label implements Labeled
func (p *Func[S]) Label() string {
	return p.label
}

// Retires implements Retiring
func (p *Func[S]) Retires() bool {
	return p.retires
}

// State returns the captured snapshot
func (p *Func[S]) State() S {
	return p.state
}

// Update implements Packet
func (p *Func[S]) Update() error {
	if p.err != nil {
		return p.err
	}
	if p.apply == nil {
		return nil
	}
	return p.apply(p.state)
}

package connector

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/lixenwraith/thundagun/packet"
	"github.com/lixenwraith/thundagun/render"
)

// slotState is the value captured into every slot packet
// Parent is an ID; the node is looked up when the packet replays
type slotState struct {
	ID       uuid.UUID
	Parent   uuid.UUID
	Name     string
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Layer    render.Layer
	Active   bool
}

// Slot mirrors one simulation object into a render scene node
// Simulation thread only; the render side sees it through replayed packets
type Slot struct {
	p     *Pipeline
	state slotState

	initialized bool
	destroyed   bool
}

// NewSlot creates a slot handle; nothing reaches the render thread until Initialize
// parent may be uuid.Nil for a scene root
func NewSlot(p *Pipeline, name string, parent uuid.UUID) *Slot {
	return &Slot{
		p: p,
		state: slotState{
			ID:       uuid.New(),
			Parent:   parent,
			Name:     name,
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{1, 1, 1},
			Active:   true,
		},
	}
}

// ID implements Connector
func (s *Slot) ID() uuid.UUID { return s.state.ID }

// Kind implements Connector
func (s *Slot) Kind() Kind { return KindSlot }

// Name returns the slot name
func (s *Slot) Name() string { return s.state.Name }

// Parent returns the parent slot ID
func (s *Slot) Parent() uuid.UUID { return s.state.Parent }

// Position returns the simulation-side position
func (s *Slot) Position() mgl32.Vec3 { return s.state.Position }

func (s *Slot) check() error {
	switch {
	case s.destroyed:
		return ErrDestroyed
	case !s.initialized:
		return ErrNotInitialized
	}
	return nil
}

func (s *Slot) queue(label string, apply func(slotState) error) {
	s.p.Packets.QueuePacket(packet.New(s.state.ID, label, s.state, apply))
}

// Initialize queues creation of the scene node with the current state
func (s *Slot) Initialize() error {
	if s.destroyed {
		return ErrDestroyed
	}
	if s.initialized {
		return nil
	}
	s.initialized = true
	s.queue("slot.init", func(st slotState) error {
		scene, err := s.p.scene()
		if err != nil {
			return err
		}
		n := scene.Create(st.ID, st.Parent)
		n.Name = st.Name
		applyTransform(n, st)
		n.Layer = st.Layer
		n.Active = st.Active
		return nil
	})
	return nil
}

// SetTransform updates the local transform
func (s *Slot) SetTransform(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) error {
	if err := s.check(); err != nil {
		return err
	}
	s.state.Position, s.state.Rotation, s.state.Scale = pos, rot, scale
	s.queue("slot.transform", func(st slotState) error {
		n, err := s.p.node(st.ID)
		if err != nil {
			return err
		}
		applyTransform(n, st)
		return nil
	})
	return nil
}

// SetParent re-parents the slot; uuid.Nil moves it to the scene root
func (s *Slot) SetParent(parent uuid.UUID) error {
	if err := s.check(); err != nil {
		return err
	}
	s.state.Parent = parent
	s.queue("slot.parent", func(st slotState) error {
		scene, err := s.p.scene()
		if err != nil {
			return err
		}
		if !scene.SetParent(st.ID, st.Parent) {
			return ErrMissingNode
		}
		return nil
	})
	return nil
}

// SetLayer moves the node to a render layer
func (s *Slot) SetLayer(layer render.Layer) error {
	if err := s.check(); err != nil {
		return err
	}
	s.state.Layer = layer
	s.queue("slot.layer", func(st slotState) error {
		n, err := s.p.node(st.ID)
		if err != nil {
			return err
		}
		n.Layer = st.Layer
		return nil
	})
	return nil
}

// SetActive toggles the node and, through the hierarchy, its descendants
func (s *Slot) SetActive(active bool) error {
	if err := s.check(); err != nil {
		return err
	}
	s.state.Active = active
	s.queue("slot.active", func(st slotState) error {
		n, err := s.p.node(st.ID)
		if err != nil {
			return err
		}
		n.Active = st.Active
		return nil
	})
	return nil
}

// Destroy queues removal of the node and its subtree; the handle is unusable afterwards
func (s *Slot) Destroy() error {
	if s.destroyed {
		return ErrDestroyed
	}
	s.destroyed = true
	if !s.initialized {
		return nil
	}
	s.p.Packets.QueuePacket(packet.NewDestroy(s.state.ID, "slot.destroy", s.state.ID, func(id uuid.UUID) error {
		scene, err := s.p.scene()
		if err != nil {
			return err
		}
		scene.Remove(id)
		return nil
	}))
	return nil
}

func applyTransform(n *render.Node, st slotState) {
	n.Position = st.Position
	n.Rotation = st.Rotation
	n.Scale = st.Scale
}

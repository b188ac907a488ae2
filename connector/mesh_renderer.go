package connector

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/lixenwraith/thundagun/packet"
	"github.com/lixenwraith/thundagun/render"
)

type meshState struct {
	Slot     uuid.UUID
	Vertices []mgl32.Vec3
	Indices  []uint32
	Color    color.RGBA
	Clear    bool
}

// MeshRenderer attaches geometry to a slot's node
type MeshRenderer struct {
	id   uuid.UUID
	p    *Pipeline
	slot *Slot
}

// NewMeshRenderer creates a renderer bound to slot
func NewMeshRenderer(p *Pipeline, slot *Slot) *MeshRenderer {
	return &MeshRenderer{id: uuid.New(), p: p, slot: slot}
}

// ID implements Connector
func (m *MeshRenderer) ID() uuid.UUID { return m.id }

// Kind implements Connector
func (m *MeshRenderer) Kind() Kind { return KindMeshRenderer }

// SetMesh queues the mesh and colour; the vertex data is copied now
func (m *MeshRenderer) SetMesh(mesh *render.Mesh, c color.RGBA) error {
	if err := m.slot.check(); err != nil {
		return err
	}
	st := meshState{Slot: m.slot.ID(), Color: c}
	if mesh != nil {
		st.Vertices, st.Indices = mesh.Vertices, mesh.Indices
	} else {
		st.Clear = true
	}
	m.p.Packets.QueuePacket(packet.New(m.id, "mesh.set", st, m.apply))
	return nil
}

// Clear detaches the mesh from the node
func (m *MeshRenderer) Clear() error {
	return m.SetMesh(nil, color.RGBA{})
}

func (m *MeshRenderer) apply(st meshState) error {
	n, err := m.p.node(st.Slot)
	if err != nil {
		return err
	}
	if st.Clear {
		n.Mesh = nil
		return nil
	}
	n.Mesh = &render.Mesh{Vertices: st.Vertices, Indices: st.Indices}
	n.Color = st.Color
	return nil
}

package render

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Mesh is an indexed triangle list in local space
type Mesh struct {
	Vertices []mgl32.Vec3
	Indices  []uint32 // Three per triangle
}

// TriangleCount returns the number of complete triangles
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 3
}

// Node is a render-thread-owned object in the scene hierarchy
// Only replayed packets and drained asset actions mutate nodes
type Node struct {
	ID     uuid.UUID
	Name   string
	Layer  Layer
	Active bool

	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	Mesh  *Mesh
	Color color.RGBA

	parent   *Node
	children []*Node
}

// Parent returns the parent node, nil for scene roots
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the direct children; callers must not modify the slice
func (n *Node) Children() []*Node {
	return n.children
}

// LocalMatrix returns the TRS matrix relative to the parent
func (n *Node) LocalMatrix() mgl32.Mat4 {
	return mgl32.Translate3D(n.Position.X(), n.Position.Y(), n.Position.Z()).
		Mul4(n.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(n.Scale.X(), n.Scale.Y(), n.Scale.Z()))
}

// WorldMatrix composes local matrices up to the scene root
func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

// ActiveInHierarchy reports whether the node and all its ancestors are active
func (n *Node) ActiveInHierarchy() bool {
	for c := n; c != nil; c = c.parent {
		if !c.Active {
			return false
		}
	}
	return true
}

// walk visits n and its descendants depth-first
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

func (n *Node) detach() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// Scene is the render-thread node hierarchy
// Not thread-safe: owned by the render thread
type Scene struct {
	nodes map[uuid.UUID]*Node
	roots []*Node

	// Children whose parent has not been created yet, keyed by parent ID
	waiting map[uuid.UUID][]*Node
}

// NewScene creates an empty scene
func NewScene() *Scene {
	return &Scene{
		nodes:   make(map[uuid.UUID]*Node),
		waiting: make(map[uuid.UUID][]*Node),
	}
}

// Len returns the number of live nodes
func (s *Scene) Len() int {
	return len(s.nodes)
}

// Lookup finds a node by ID
func (s *Scene) Lookup(id uuid.UUID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Create adds a node under parent, uuid.Nil for a root
// A parent that does not exist yet is resolved when it is created; until then the node is a root
// Creating an existing ID returns the existing node
func (s *Scene) Create(id, parent uuid.UUID) *Node {
	if n, ok := s.nodes[id]; ok {
		return n
	}

	n := &Node{
		ID:       id,
		Active:   true,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Color:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
	s.nodes[id] = n
	s.attach(n, parent)

	// Adopt children that arrived before this node
	if pending, ok := s.waiting[id]; ok {
		delete(s.waiting, id)
		for _, c := range pending {
			s.removeRoot(c)
			c.parent = n
			n.children = append(n.children, c)
		}
	}
	return n
}

// SetParent re-parents a node, uuid.Nil moves it to the root
func (s *Scene) SetParent(id, parent uuid.UUID) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	s.unlinkWaiting(n)
	if n.parent != nil {
		n.detach()
	} else {
		s.removeRoot(n)
	}
	s.attach(n, parent)
	return true
}

// Remove deletes a node and its subtree
func (s *Scene) Remove(id uuid.UUID) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	s.unlinkWaiting(n)
	if n.parent != nil {
		n.detach()
	} else {
		s.removeRoot(n)
	}
	n.walk(func(d *Node) {
		delete(s.nodes, d.ID)
		delete(s.waiting, d.ID)
	})
	return true
}

// Walk visits every node depth-first from the roots
func (s *Scene) Walk(fn func(*Node)) {
	for _, r := range s.roots {
		r.walk(fn)
	}
}

// Clear removes every node
func (s *Scene) Clear() {
	s.nodes = make(map[uuid.UUID]*Node)
	s.waiting = make(map[uuid.UUID][]*Node)
	s.roots = nil
}

func (s *Scene) attach(n *Node, parent uuid.UUID) {
	if parent != uuid.Nil && parent != n.ID {
		if p, ok := s.nodes[parent]; ok && !isAncestor(n, p) {
			n.parent = p
			p.children = append(p.children, n)
			return
		}
		if _, exists := s.nodes[parent]; !exists {
			s.waiting[parent] = append(s.waiting[parent], n)
		}
	}
	s.roots = append(s.roots, n)
}

func (s *Scene) removeRoot(n *Node) {
	for i, r := range s.roots {
		if r == n {
			s.roots = append(s.roots[:i], s.roots[i+1:]...)
			return
		}
	}
}

// unlinkWaiting drops n from any pending-parent list
func (s *Scene) unlinkWaiting(n *Node) {
	for pid, list := range s.waiting {
		for i, c := range list {
			if c == n {
				list = append(list[:i], list[i+1:]...)
				if len(list) == 0 {
					delete(s.waiting, pid)
				} else {
					s.waiting[pid] = list
				}
				return
			}
		}
	}
}

// isAncestor reports whether a is p or one of p's ancestors
func isAncestor(a, p *Node) bool {
	for c := p; c != nil; c = c.parent {
		if c == a {
			return true
		}
	}
	return false
}

// CubeMesh returns a unit cube centred on the origin
func CubeMesh() *Mesh {
	v := []mgl32.Vec3{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	idx := []uint32{
		0, 2, 1, 0, 3, 2, // back
		4, 5, 6, 4, 6, 7, // front
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
		3, 7, 6, 3, 6, 2, // top
		0, 1, 5, 0, 5, 4, // bottom
	}
	return &Mesh{Vertices: v, Indices: idx}
}

// QuadMesh returns a unit quad in the XY plane facing +Z
func QuadMesh() *Mesh {
	return &Mesh{
		Vertices: []mgl32.Vec3{{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {0.5, 0.5, 0}, {-0.5, 0.5, 0}},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
}

package render

import (
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScene_ParentResolvedWhenCreatedLater(t *testing.T) {
	s := NewScene()
	parentID, childID := uuid.New(), uuid.New()

	child := s.Create(childID, parentID)
	assert.Nil(t, child.Parent(), "parent missing: child waits as a root")

	parent := s.Create(parentID, uuid.Nil)
	assert.Same(t, parent, child.Parent())
	assert.Equal(t, []*Node{child}, parent.Children())

	var order []uuid.UUID
	s.Walk(func(n *Node) { order = append(order, n.ID) })
	assert.Equal(t, []uuid.UUID{parentID, childID}, order)
}

func TestScene_RemoveIsRecursive(t *testing.T) {
	s := NewScene()
	root := s.Create(uuid.New(), uuid.Nil)
	mid := s.Create(uuid.New(), root.ID)
	leaf := s.Create(uuid.New(), mid.ID)
	require.Equal(t, 3, s.Len())

	assert.True(t, s.Remove(mid.ID))
	assert.Equal(t, 1, s.Len())
	_, ok := s.Lookup(leaf.ID)
	assert.False(t, ok)
	assert.Empty(t, root.Children())
	assert.False(t, s.Remove(mid.ID))
}

func TestScene_SetParentRejectsCycles(t *testing.T) {
	s := NewScene()
	a := s.Create(uuid.New(), uuid.Nil)
	b := s.Create(uuid.New(), a.ID)

	require.True(t, s.SetParent(a.ID, b.ID))
	assert.Nil(t, a.Parent(), "cycle refused, node stays at root")
	assert.Same(t, a, b.Parent())

	require.True(t, s.SetParent(b.ID, uuid.Nil))
	assert.Nil(t, b.Parent())
	assert.Empty(t, a.Children())
	assert.False(t, s.SetParent(uuid.New(), a.ID))
}

func TestNode_WorldMatrixComposes(t *testing.T) {
	s := NewScene()
	parent := s.Create(uuid.New(), uuid.Nil)
	parent.Position = mgl32.Vec3{1, 0, 0}
	parent.Scale = mgl32.Vec3{2, 2, 2}
	child := s.Create(uuid.New(), parent.ID)
	child.Position = mgl32.Vec3{0, 1, 0}

	p := child.WorldMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 1, p.X(), 1e-5)
	assert.InDelta(t, 2, p.Y(), 1e-5)
	assert.InDelta(t, 0, p.Z(), 1e-5)
}

func TestCullingMask(t *testing.T) {
	excl := ExclusionMask(false)
	assert.True(t, excl.Has(LayerOverlay))
	assert.True(t, excl.Has(LayerHidden))
	assert.True(t, excl.Has(LayerPrivate))
	assert.False(t, ExclusionMask(true).Has(LayerPrivate))

	s := DefaultSettings(1, 1)
	m := CullingMask(s, excl)
	assert.True(t, m.Has(LayerDefault))
	assert.False(t, m.Has(LayerTemp))
	assert.False(t, m.Has(LayerHidden))

	s.RenderObjects = []uuid.UUID{uuid.New()}
	s.ExcludeObjects = []uuid.UUID{uuid.New()}
	assert.Equal(t, MaskOf(LayerTemp), CullingMask(s, excl))
}

func TestOverrideLayers_OverlappingSubtrees(t *testing.T) {
	s := NewScene()
	root := s.Create(uuid.New(), uuid.Nil)
	root.Layer = 3
	child := s.Create(uuid.New(), root.ID)
	child.Layer = 7

	restore := OverrideLayers(s, []uuid.UUID{child.ID, root.ID, uuid.New()}, LayerTemp, 0)
	assert.Equal(t, LayerTemp, root.Layer)
	assert.Equal(t, LayerTemp, child.Layer)

	restore()
	assert.Equal(t, Layer(3), root.Layer)
	assert.Equal(t, Layer(7), child.Layer)
}

func TestOverrideLayers_KeepsMaskedLayers(t *testing.T) {
	s := NewScene()
	root := s.Create(uuid.New(), uuid.Nil)
	ui := s.Create(uuid.New(), root.ID)
	ui.Layer = LayerPrivate
	leaf := s.Create(uuid.New(), ui.ID)

	restore := OverrideLayers(s, []uuid.UUID{root.ID}, LayerTemp, ExclusionMask(false))
	assert.Equal(t, LayerTemp, root.Layer)
	assert.Equal(t, LayerPrivate, ui.Layer)
	assert.Equal(t, LayerTemp, leaf.Layer)

	restore()
	assert.Equal(t, LayerDefault, root.Layer)
	assert.Equal(t, LayerPrivate, ui.Layer)
	assert.Equal(t, LayerDefault, leaf.Layer)
}

func TestTexture_MipChain(t *testing.T) {
	tex, err := NewTexture(image.Pt(4, 2), FormatRGBA32, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, tex.Levels())
	assert.Equal(t, image.Pt(1, 1), tex.MipSize(2))
	assert.False(t, tex.Complete())

	require.NoError(t, tex.UploadMip(0, make([]byte, 4*2*4)))
	require.NoError(t, tex.UploadMip(1, make([]byte, 2*1*4)))
	assert.Error(t, tex.UploadMip(2, make([]byte, 3)))
	assert.Error(t, tex.UploadMip(3, make([]byte, 4)))
	require.NoError(t, tex.UploadMip(2, make([]byte, 4)))
	assert.True(t, tex.Complete())
	assert.Equal(t, uint64(3), tex.Version())

	_, err = NewTexture(image.Pt(0, 1), FormatRGBA32, 0)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestTargetPool_Reuse(t *testing.T) {
	p := NewTargetPool(1)
	a := p.Acquire(image.Pt(4, 4))
	p.Release(a)
	assert.Same(t, a, p.Acquire(image.Pt(4, 4)))

	b := p.Acquire(image.Pt(4, 4))
	p.Release(a)
	p.Release(b)
	assert.Equal(t, 1, p.Idle(), "per-size cap")

	hits, misses := p.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

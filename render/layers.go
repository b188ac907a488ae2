package render

import (
	"github.com/google/uuid"
)

// Layer is a render layer index in [0, 31]
type Layer uint8

// Reserved layers; everything below LayerOverlay is free for content
const (
	LayerDefault Layer = 0
	LayerOverlay Layer = 28 // Screen-space overlays, never captured by render tasks
	LayerPrivate Layer = 29 // Private UI, captured only on request
	LayerHidden  Layer = 30 // Excluded objects during a render task
	LayerTemp    Layer = 31 // Included objects during a render task
)

// LayerMask is a bit set of layers
type LayerMask uint32

// MaskAll selects every layer
const MaskAll LayerMask = ^LayerMask(0)

// MaskOf builds a mask from layers
func MaskOf(layers ...Layer) LayerMask {
	var m LayerMask
	for _, l := range layers {
		m |= 1 << l
	}
	return m
}

// Has reports whether the mask selects l
func (m LayerMask) Has(l Layer) bool {
	return m&(1<<l) != 0
}

// ExclusionMask returns the global mask of layers render tasks never see
func ExclusionMask(renderPrivateUI bool) LayerMask {
	m := MaskOf(LayerOverlay, LayerHidden)
	if !renderPrivateUI {
		m |= MaskOf(LayerPrivate)
	}
	return m
}

// CullingMask computes the camera mask for a render task
// Inclusion wins when both lists are non-empty: only LayerTemp is drawn and the
// exclusion list is ignored. Otherwise excluded objects are moved to LayerHidden,
// which the exclusion mask already removes
// Nodes on globally excluded layers never reach LayerTemp, see applyTaskLayers
func CullingMask(s Settings, exclusion LayerMask) LayerMask {
	if len(s.RenderObjects) > 0 {
		return MaskOf(LayerTemp)
	}
	return MaskAll &^ exclusion &^ MaskOf(LayerTemp)
}

// layerOverride records the layers replaced during one render task
type layerOverride struct {
	node  *Node
	layer Layer
}

// OverrideLayers moves the listed nodes and their descendants to layer
// Nodes whose current layer is in keep stay where they are
// The returned restore function puts every touched node back; it must always run
// Unknown IDs are skipped
func OverrideLayers(scene *Scene, ids []uuid.UUID, layer Layer, keep LayerMask) (restore func()) {
	var saved []layerOverride
	seen := make(map[*Node]struct{})

	for _, id := range ids {
		root, ok := scene.Lookup(id)
		if !ok {
			continue
		}
		root.walk(func(n *Node) {
			if _, dup := seen[n]; dup {
				return
			}
			seen[n] = struct{}{}
			if keep.Has(n.Layer) {
				return
			}
			saved = append(saved, layerOverride{node: n, layer: n.Layer})
			n.Layer = layer
		})
	}

	return func() {
		// Reverse order so overlapping subtrees end with their original layer
		for i := len(saved) - 1; i >= 0; i-- {
			saved[i].node.Layer = saved[i].layer
		}
	}
}

// applyTaskLayers performs the per-task layer reassignment matching CullingMask
func applyTaskLayers(scene *Scene, s Settings) (restore func()) {
	switch {
	case len(s.RenderObjects) > 0:
		return OverrideLayers(scene, s.RenderObjects, LayerTemp, ExclusionMask(s.RenderPrivateUI))
	case len(s.ExcludeObjects) > 0:
		return OverrideLayers(scene, s.ExcludeObjects, LayerHidden, 0)
	default:
		return func() {}
	}
}

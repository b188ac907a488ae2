// Package connector holds the simulation-side handles that mirror objects into
// the render thread.
//
// A connector never touches render-owned state directly. Every change is
// captured into an update packet, an asset integration step or a render task,
// and applied later on the render thread through the Pipeline.
package connector

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lixenwraith/thundagun/asset"
	"github.com/lixenwraith/thundagun/packet"
	"github.com/lixenwraith/thundagun/render"
)

var (
	// ErrNotInitialized is returned by slot operations before Initialize
	ErrNotInitialized = errors.New("connector not initialized")

	// ErrDestroyed is returned by every operation after Destroy
	ErrDestroyed = errors.New("connector destroyed")

	// ErrMissingNode is returned at replay when the target scene node does not exist
	ErrMissingNode = errors.New("scene node missing")
)

// Kind is the closed set of connector types
type Kind uint8

const (
	KindSlot Kind = iota
	KindMeshRenderer
	KindTexture
	KindRenderTexture
	KindAudioClip
)

func (k Kind) String() string {
	switch k {
	case KindSlot:
		return "slot"
	case KindMeshRenderer:
		return "mesh_renderer"
	case KindTexture:
		return "texture"
	case KindRenderTexture:
		return "render_texture"
	case KindAudioClip:
		return "audio_clip"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Connector is the identity every simulation-side handle carries
type Connector interface {
	ID() uuid.UUID
	Kind() Kind
}

// TextureProvider is the capability of connectors that own a GPU texture
// GPUTexture is render-thread only and returns nil until the first upload integrates
type TextureProvider interface {
	Connector
	GPUTexture() *render.Texture
}

// Pipeline bundles the queues connectors feed
// Packets, Assets and Tasks accept work from any thread; Render is touched only inside replayed work
type Pipeline struct {
	Packets *packet.Queue
	Assets  *asset.IntegrationQueue
	Tasks   *render.TaskQueue
	Render  *render.Context
}

// NewPipeline wires a render context to fresh queues with default options
func NewPipeline(ctx *render.Context) *Pipeline {
	return &Pipeline{
		Packets: packet.NewQueue(),
		Assets:  asset.NewIntegrationQueue(),
		Tasks:   render.NewTaskQueue(ctx),
		Render:  ctx,
	}
}

// scene resolves the render scene at replay time
func (p *Pipeline) scene() (*render.Scene, error) {
	s := p.Render.Scene()
	if s == nil {
		return nil, render.ErrNotInitialized
	}
	return s, nil
}

// node resolves a scene node at replay time
func (p *Pipeline) node(id uuid.UUID) (*render.Node, error) {
	s, err := p.scene()
	if err != nil {
		return nil, err
	}
	n, ok := s.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingNode, id)
	}
	return n, nil
}

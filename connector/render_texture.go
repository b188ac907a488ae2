package connector

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/packet"
	"github.com/lixenwraith/thundagun/render"
)

// RenderTexture captures the scene through a render task and uploads the result into its texture
type RenderTexture struct {
	id     uuid.UUID
	p      *Pipeline
	size   image.Point
	format render.Format

	tex      *render.Texture // Render thread only
	uploaded atomic.Int64
}

// NewRenderTexture creates a render texture of fixed size and format
func NewRenderTexture(p *Pipeline, size image.Point, format render.Format) *RenderTexture {
	return &RenderTexture{id: uuid.New(), p: p, size: size, format: format}
}

// ID implements Connector
func (r *RenderTexture) ID() uuid.UUID { return r.id }

// Kind implements Connector
func (r *RenderTexture) Kind() Kind { return KindRenderTexture }

// GPUTexture implements TextureProvider
func (r *RenderTexture) GPUTexture() *render.Texture { return r.tex }

// Size returns the texture dimensions
func (r *RenderTexture) Size() image.Point { return r.size }

// Uploads returns the number of readbacks integrated so far
func (r *RenderTexture) Uploads() int64 { return r.uploaded.Load() }

// Refresh queues a render of camera into this texture
// Size and format come from the texture; the readback integrates as a high-priority asset action
func (r *RenderTexture) Refresh(camera render.Settings) *core.Future[[]byte] {
	camera.Size = r.size
	camera.Format = r.format

	f := r.p.Tasks.Render(camera)
	f.OnComplete(func(data []byte, err error) {
		if err != nil {
			return
		}
		r.p.Assets.EnqueueProcessing(fmt.Sprintf("render_texture.upload %s", r.id), func() error {
			if r.tex == nil {
				tex, err := render.NewTexture(r.size, r.format, 1)
				if err != nil {
					return err
				}
				r.tex = tex
				if textures := r.p.Render.Textures(); textures != nil {
					textures.Put(r.id, tex)
				}
			}
			if err := r.tex.UploadMip(0, data); err != nil {
				return err
			}
			r.uploaded.Add(1)
			return nil
		}, true)
	})
	return f
}

// Destroy queues removal of the texture from the render context
func (r *RenderTexture) Destroy() {
	r.p.Packets.QueuePacket(packet.NewDestroy(r.id, "render_texture.destroy", r.id, func(id uuid.UUID) error {
		if textures := r.p.Render.Textures(); textures != nil {
			textures.Delete(id)
		}
		r.tex = nil
		return nil
	}))
}

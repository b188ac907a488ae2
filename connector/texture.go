package connector

import (
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/lixenwraith/thundagun/asset"
	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/packet"
	"github.com/lixenwraith/thundagun/render"
)

// Texture uploads pixel data into a render texture as a multi-step asset operation
type Texture struct {
	id uuid.UUID
	p  *Pipeline

	tex *render.Texture // Render thread only
}

// NewTexture creates a texture handle
func NewTexture(p *Pipeline) *Texture {
	return &Texture{id: uuid.New(), p: p}
}

// ID implements Connector
func (t *Texture) ID() uuid.UUID { return t.id }

// Kind implements Connector
func (t *Texture) Kind() Kind { return KindTexture }

// GPUTexture implements TextureProvider
func (t *Texture) GPUTexture() *render.Texture { return t.tex }

// Upload queues the mip chain, one level per integration step
// Mip data is copied before returning; the future resolves with the texture version on the render thread
func (t *Texture) Upload(size image.Point, format render.Format, mips [][]byte, highPriority bool) *core.Future[uint64] {
	f := core.NewFuture[uint64]()
	if len(mips) == 0 {
		f.Fault(fmt.Errorf("%w: no mip data", render.ErrInvalidSettings))
		return f
	}

	data := make([][]byte, len(mips))
	for i, m := range mips {
		data[i] = append([]byte(nil), m...)
	}

	var tex *render.Texture
	steps := make([]func() error, len(data))
	for i := range data {
		level := i
		steps[i] = func() error {
			if level == 0 {
				var err error
				if tex, err = render.NewTexture(size, format, len(data)); err != nil {
					return err
				}
			}
			if err := tex.UploadMip(level, data[level]); err != nil {
				return err
			}
			data[level] = nil
			if level == len(data)-1 {
				t.tex = tex
				if textures := t.p.Render.Textures(); textures != nil {
					textures.Put(t.id, tex)
				}
				f.Resolve(tex.Version())
			}
			return nil
		}
	}

	label := fmt.Sprintf("texture.upload %dx%d %v", size.X, size.Y, format)
	t.p.Assets.EnqueueSteps(label, asset.StepFunc(t.failInto(f, asset.Steps(steps...))), highPriority)
	return f
}

// failInto faults f when the wrapped steps fail, so callers do not wait forever
func (t *Texture) failInto(f *core.Future[uint64], s asset.Stepper) func() (bool, error) {
	return func() (done bool, err error) {
		defer func() {
			if r := recover(); r != nil {
				f.Fault(fmt.Errorf("%w: %v", asset.ErrPanic, r))
				panic(r)
			}
		}()
		done, err = s.Step()
		if err != nil {
			f.Fault(err)
		}
		return done, err
	}
}

// Destroy queues removal of the texture from the render context
func (t *Texture) Destroy() {
	t.p.Packets.QueuePacket(packet.NewDestroy(t.id, "texture.destroy", t.id, func(id uuid.UUID) error {
		if textures := t.p.Render.Textures(); textures != nil {
			textures.Delete(id)
		}
		t.tex = nil
		return nil
	}))
}

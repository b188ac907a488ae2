package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gopxl/beep"

	"github.com/lixenwraith/thundagun/connector"
	"github.com/lixenwraith/thundagun/render"
)

var cubeColors = []color.RGBA{
	{R: 230, G: 80, B: 60, A: 255},
	{R: 80, G: 200, B: 90, A: 255},
	{R: 70, G: 120, B: 240, A: 255},
}

// demoScene is the simulation side: orbiting cubes seen by a camera render texture
type demoScene struct {
	p        *connector.Pipeline
	log      *slog.Logger
	tickRate uint64

	root   *connector.Slot
	cubes  []*connector.Slot
	meshes []*connector.MeshRenderer
	camera *connector.RenderTexture
	check  *connector.Texture
	chime  *connector.AudioClip

	latest  atomic.Pointer[[]byte]
	version atomic.Uint64
}

func newDemoScene(p *connector.Pipeline, cameraSize image.Point, tickRate int, log *slog.Logger) *demoScene {
	return &demoScene{
		p:        p,
		log:      log,
		tickRate: uint64(max(1, tickRate)),
		camera:   connector.NewRenderTexture(p, cameraSize, render.FormatRGBA32),
		check:    connector.NewTexture(p),
		chime:    connector.NewAudioClip(p, connector.DefaultAudioChunk),
	}
}

// Setup queues the initial scene; runs on the simulation side before the scheduler starts
func (d *demoScene) Setup() error {
	d.root = connector.NewSlot(d.p, "orbit", uuid.Nil)
	if err := d.root.Initialize(); err != nil {
		return err
	}
	if err := d.root.SetTransform(mgl32.Vec3{0, 0, -6}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1}); err != nil {
		return err
	}

	for i, c := range cubeColors {
		slot := connector.NewSlot(d.p, fmt.Sprintf("cube-%d", i), d.root.ID())
		if err := slot.Initialize(); err != nil {
			return err
		}
		mr := connector.NewMeshRenderer(d.p, slot)
		if err := mr.SetMesh(render.CubeMesh(), c); err != nil {
			return err
		}
		d.cubes = append(d.cubes, slot)
		d.meshes = append(d.meshes, mr)
	}

	size := image.Pt(64, 64)
	d.check.Upload(size, render.FormatRGBA32, checkerMips(size), false).OnComplete(func(v uint64, err error) {
		if err != nil {
			d.log.Warn("checker upload failed", "err", err)
			return
		}
		d.log.Debug("checker uploaded", "version", v)
	})

	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	clip := connector.Fade(connector.Tone(440, 2*time.Second, connector.WaveSine, format.SampleRate),
		2*time.Second, 50*time.Millisecond, 400*time.Millisecond, format.SampleRate)
	d.chime.LoadStream(connector.Gain(clip, 0.5), format, false).OnComplete(func(n int, err error) {
		if err != nil {
			d.log.Warn("chime load failed", "err", err)
			return
		}
		d.log.Debug("chime buffered", "samples", n, "duration", d.chime.Duration())
	})
	return nil
}

// Update moves the cubes and refreshes the camera once per simulation second
func (d *demoScene) Update(frame uint64) error {
	t := float64(frame) / float64(d.tickRate)
	for i, slot := range d.cubes {
		a := t + float64(i)*2*math.Pi/float64(len(d.cubes))
		pos := mgl32.Vec3{float32(2 * math.Cos(a)), float32(0.5 * math.Sin(2*a)), float32(2 * math.Sin(a))}
		rot := mgl32.QuatRotate(float32(t*1.5), mgl32.Vec3{0.3, 1, 0}.Normalize())
		if err := slot.SetTransform(pos, rot, mgl32.Vec3{0.8, 0.8, 0.8}); err != nil {
			return err
		}
	}

	if frame%d.tickRate == 1 || d.tickRate == 1 {
		cam := render.DefaultSettings(1, 1)
		cam.ClearColor = color.RGBA{R: 12, G: 12, B: 20, A: 255}
		d.camera.Refresh(cam).OnComplete(func(data []byte, err error) {
			if err != nil {
				d.log.Warn("camera refresh failed", "err", err)
				return
			}
			d.latest.Store(&data)
			d.version.Add(1)
		})
	}
	return nil
}

// Latest returns the newest camera frame and its version; nil before the first refresh
func (d *demoScene) Latest() ([]byte, uint64) {
	p := d.latest.Load()
	if p == nil {
		return nil, 0
	}
	return *p, d.version.Load()
}

// checkerMips builds a full RGBA32 mip chain of an 8-cell checkerboard
func checkerMips(size image.Point) [][]byte {
	levels := render.MipLevels(size)
	mips := make([][]byte, levels)
	w, h := size.X, size.Y
	for l := range mips {
		cell := max(1, w/8)
		data := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := byte(40)
				if (x/cell+y/cell)%2 == 0 {
					v = 220
				}
				o := (y*w + x) * 4
				data[o], data[o+1], data[o+2], data[o+3] = v, v, v, 255
			}
		}
		mips[l] = data
		w, h = max(1, w/2), max(1, h/2)
	}
	return mips
}

package connector

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/thundagun/render"
)

var (
	_ TextureProvider = (*Texture)(nil)
	_ TextureProvider = (*RenderTexture)(nil)
	_ Connector       = (*Slot)(nil)
	_ Connector       = (*MeshRenderer)(nil)
	_ Connector       = (*AudioClip)(nil)
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	ctx := render.NewContext()
	require.NoError(t, ctx.Init())
	t.Cleanup(func() { _ = ctx.Close() })
	return NewPipeline(ctx)
}

// tick runs one render-thread frame in host order
func tick(p *Pipeline) {
	p.Packets.Drain()
	p.Assets.ProcessQueue(time.Hour)
	p.Tasks.Process(0)
}

func TestSlot_Lifecycle(t *testing.T) {
	p := newPipeline(t)
	s := NewSlot(p, "body", uuid.Nil)

	assert.ErrorIs(t, s.SetActive(false), ErrNotInitialized)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.SetTransform(mgl32.Vec3{1, 2, 3}, mgl32.QuatIdent(), mgl32.Vec3{2, 2, 2}))
	require.NoError(t, s.SetLayer(4))

	// Nothing reaches the scene before the drain
	_, ok := p.Render.Scene().Lookup(s.ID())
	assert.False(t, ok)

	tick(p)
	n, ok := p.Render.Scene().Lookup(s.ID())
	require.True(t, ok)
	assert.Equal(t, "body", n.Name)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, n.Position)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, n.Scale)
	assert.Equal(t, render.Layer(4), n.Layer)

	require.NoError(t, s.SetActive(false))
	require.NoError(t, s.Destroy())
	assert.ErrorIs(t, s.SetLayer(1), ErrDestroyed)
	assert.ErrorIs(t, s.Destroy(), ErrDestroyed)

	stats := p.Packets.Drain()
	assert.Equal(t, 2, stats.Replayed)
	assert.Zero(t, stats.Faulted)
	_, ok = p.Render.Scene().Lookup(s.ID())
	assert.False(t, ok)
	assert.True(t, p.Packets.IsRetired(s.ID()))
}

func TestSlot_ChildInitialisedBeforeParent(t *testing.T) {
	p := newPipeline(t)
	parent := NewSlot(p, "parent", uuid.Nil)
	child := NewSlot(p, "child", parent.ID())

	require.NoError(t, child.Initialize())
	require.NoError(t, parent.Initialize())
	tick(p)

	cn, ok := p.Render.Scene().Lookup(child.ID())
	require.True(t, ok)
	pn, ok := p.Render.Scene().Lookup(parent.ID())
	require.True(t, ok)
	assert.Same(t, pn, cn.Parent())
}

func TestSlot_ReparentResolvesAtReplay(t *testing.T) {
	p := newPipeline(t)
	a := NewSlot(p, "a", uuid.Nil)
	b := NewSlot(p, "b", uuid.Nil)
	require.NoError(t, a.Initialize())
	require.NoError(t, a.SetParent(b.ID()))
	require.NoError(t, b.Initialize())

	stats := p.Packets.Drain()
	assert.Equal(t, 3, stats.Replayed)
	assert.Zero(t, stats.Faulted)

	an, _ := p.Render.Scene().Lookup(a.ID())
	bn, _ := p.Render.Scene().Lookup(b.ID())
	assert.Same(t, bn, an.Parent(), "waiting child adopted once parent exists")
}

func TestSlot_MissingNodeFaultsOnlyThatPacket(t *testing.T) {
	p := newPipeline(t)
	s := NewSlot(p, "gone", uuid.Nil)
	other := NewSlot(p, "other", uuid.Nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, other.Initialize())
	tick(p)

	// Render side removed the node out of band
	p.Render.Scene().Remove(s.ID())
	require.NoError(t, s.SetLayer(2))
	require.NoError(t, other.SetLayer(3))

	stats := p.Packets.Drain()
	assert.Equal(t, 2, stats.Replayed)
	assert.Equal(t, 1, stats.Faulted)
	on, _ := p.Render.Scene().Lookup(other.ID())
	assert.Equal(t, render.Layer(3), on.Layer)
}

func TestMeshRenderer_CapturesGeometry(t *testing.T) {
	p := newPipeline(t)
	s := NewSlot(p, "cube", uuid.Nil)
	mr := NewMeshRenderer(p, s)

	assert.ErrorIs(t, mr.SetMesh(render.CubeMesh(), color.RGBA{}), ErrNotInitialized)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.SetTransform(mgl32.Vec3{0, 0, -3}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1}))
	mesh := render.CubeMesh()
	require.NoError(t, mr.SetMesh(mesh, color.RGBA{R: 255, A: 255}))
	mesh.Vertices[0] = mgl32.Vec3{100, 100, 100}
	tick(p)

	n, _ := p.Render.Scene().Lookup(s.ID())
	require.NotNil(t, n.Mesh)
	assert.Equal(t, mgl32.Vec3{-0.5, -0.5, -0.5}, n.Mesh.Vertices[0])

	data, err := p.Render.RenderImmediate(render.DefaultSettings(8, 8))
	require.NoError(t, err)
	centre := (4*8 + 4) * 4
	assert.Greater(t, data[centre], byte(0))

	require.NoError(t, mr.Clear())
	tick(p)
	assert.Nil(t, n.Mesh)
}

func TestTexture_UploadOneStepPerMip(t *testing.T) {
	p := newPipeline(t)
	tex := NewTexture(p)

	mips := [][]byte{make([]byte, 4*4*4), make([]byte, 2*2*4), make([]byte, 1*1*4)}
	f := tex.Upload(image.Pt(4, 4), render.FormatRGBA32, mips, false)
	mips[0][0] = 99 // Caller reuses its buffer

	assert.Equal(t, 3, p.Assets.ProcessQueue(time.Hour))

	version, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)

	gpu := tex.GPUTexture()
	require.NotNil(t, gpu)
	assert.True(t, gpu.Complete())
	assert.Equal(t, byte(0), gpu.Mip(0)[0])
	got, ok := p.Render.Textures().Get(tex.ID())
	require.True(t, ok)
	assert.Same(t, gpu, got)

	tex.Destroy()
	p.Packets.Drain()
	assert.Nil(t, tex.GPUTexture())
	assert.Zero(t, p.Render.Textures().Len())
}

func TestTexture_BadMipFaultsFuture(t *testing.T) {
	p := newPipeline(t)
	tex := NewTexture(p)

	f := tex.Upload(image.Pt(2, 2), render.FormatRGBA32, [][]byte{make([]byte, 16), make([]byte, 3)}, true)
	p.Assets.ProcessQueue(time.Hour)
	_, err := f.Wait(context.Background())
	assert.Error(t, err)
	assert.Nil(t, tex.GPUTexture())

	_, err = tex.Upload(image.Pt(2, 2), render.FormatRGBA32, nil, false).Wait(context.Background())
	assert.ErrorIs(t, err, render.ErrInvalidSettings)
}

func TestRenderTexture_RefreshUploadsReadback(t *testing.T) {
	p := newPipeline(t)
	rt := NewRenderTexture(p, image.Pt(6, 4), render.FormatRGB24)

	f := rt.Refresh(render.DefaultSettings(1, 1))
	p.Tasks.MarkEngineCompleted()

	tick(p) // swap
	tick(p) // render, upload queued
	data, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, data, 6*4*3)
	assert.Zero(t, rt.Uploads())

	tick(p) // upload integrates
	assert.Equal(t, int64(1), rt.Uploads())
	gpu := rt.GPUTexture()
	require.NotNil(t, gpu)
	assert.Equal(t, image.Pt(6, 4), gpu.Size())
	assert.True(t, gpu.Complete())
}

var testFormat = beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}

func TestAudioClip_StreamsInChunks(t *testing.T) {
	p := newPipeline(t)
	clip := NewAudioClip(p, 100*time.Millisecond)

	f := clip.LoadStream(Tone(440, time.Second, WaveSine, testFormat.SampleRate), testFormat, false)
	_, ok := clip.Streamer()
	assert.False(t, ok)

	// Ten full chunks plus the short final read
	assert.Equal(t, 11, p.Assets.ProcessQueue(time.Hour))

	n, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8000, n)
	assert.True(t, clip.Ready())
	assert.Equal(t, time.Second, clip.Duration())

	s, ok := clip.Streamer()
	require.True(t, ok)
	assert.Equal(t, 8000, s.Len())

	// Busy only while a load is in flight; the old buffer stays playable
	reload := clip.LoadStream(Tone(440, 500*time.Millisecond, WaveSine, testFormat.SampleRate), testFormat, false)
	_, err = clip.LoadStream(Tone(440, time.Second, WaveSine, testFormat.SampleRate), testFormat, false).Wait(context.Background())
	assert.ErrorIs(t, err, ErrAudioBusy)
	assert.Equal(t, time.Second, clip.Duration())

	p.Assets.ProcessQueue(time.Hour)
	n, err = reload.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4000, n)
	assert.Equal(t, 500*time.Millisecond, clip.Duration())
}

// failingStreamer yields nothing and reports err
type failingStreamer struct{ err error }

func (s failingStreamer) Stream([][2]float64) (int, bool) { return 0, false }
func (s failingStreamer) Err() error                      { return s.err }

func TestAudioClip_ReloadAfterFailure(t *testing.T) {
	p := newPipeline(t)
	clip := NewAudioClip(p, 0)
	boom := errors.New("boom")

	f := clip.LoadStream(failingStreamer{err: boom}, testFormat, false)
	p.Assets.ProcessQueue(time.Hour)
	_, err := f.Wait(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, clip.Ready())

	f = clip.LoadStream(beep.Silence(100), testFormat, false)
	p.Assets.ProcessQueue(time.Hour)
	n, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.True(t, clip.Ready())
}

func TestAudioClip_LoadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	src := Gain(Fade(Tone(220, 500*time.Millisecond, WaveSquare, testFormat.SampleRate),
		500*time.Millisecond, 50*time.Millisecond, 50*time.Millisecond, testFormat.SampleRate), 0.5)
	require.NoError(t, wav.Encode(out, src, testFormat))
	require.NoError(t, out.Close())

	in, err := os.Open(path)
	require.NoError(t, err)

	p := newPipeline(t)
	clip := NewAudioClip(p, 0)
	f := clip.LoadWAV(in, true)
	p.Assets.ProcessQueue(time.Hour)

	n, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4000, n)
	assert.Equal(t, 500*time.Millisecond, clip.Duration())
}

func TestAudioClip_BadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file"), 0o644))
	in, err := os.Open(path)
	require.NoError(t, err)

	clip := NewAudioClip(newPipeline(t), 0)
	_, err = clip.LoadWAV(in, false).Wait(context.Background())
	assert.Error(t, err)
}

func TestTone_Shapes(t *testing.T) {
	for _, w := range []Wave{WaveSine, WaveSquare, WaveSaw, WaveNoise} {
		buf := make([][2]float64, 100)
		n, ok := Tone(1000, 10*time.Millisecond, w, 8000).Stream(buf)
		require.True(t, ok)
		assert.Equal(t, 80, n)
		for _, s := range buf[:n] {
			assert.LessOrEqual(t, s[0], 1.0)
			assert.GreaterOrEqual(t, s[0], -1.0)
			assert.Equal(t, s[0], s[1])
		}
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "slot", KindSlot.String())
	assert.Equal(t, "render_texture", (&RenderTexture{}).Kind().String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

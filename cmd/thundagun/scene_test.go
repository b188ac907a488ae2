package main

import (
	"image"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/thundagun/config"
	"github.com/lixenwraith/thundagun/engine"
	"github.com/lixenwraith/thundagun/render"
)

func TestCheckerMips(t *testing.T) {
	mips := checkerMips(image.Pt(16, 8))
	require.Len(t, mips, render.MipLevels(image.Pt(16, 8)))
	assert.Len(t, mips[0], 16*8*4)
	assert.Len(t, mips[len(mips)-1], 4)
	assert.Equal(t, byte(220), mips[0][0])
	assert.Equal(t, byte(40), mips[0][2*4], "second cell is dark")
}

func TestDemoScene_RendersCamera(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.TickRate = 2
	cfg.Assets.BudgetMS = 1000
	h, err := engine.NewHost(cfg)
	require.NoError(t, err)
	require.NoError(t, h.Init())
	defer h.Stop()

	size := image.Pt(16, 8)
	scene := newDemoScene(h.Pipeline(), size, cfg.Simulation.TickRate, slog.Default())
	require.NoError(t, scene.Setup())

	// Frame 1 refreshes the camera; three render ticks swap, render and integrate
	require.NoError(t, scene.Update(1))
	h.Tasks().MarkEngineCompleted()
	for range 4 {
		h.Tick()
	}

	data, version := scene.Latest()
	require.NotNil(t, data)
	assert.Equal(t, uint64(1), version)
	assert.Len(t, data, size.X*size.Y*4)
	assert.Equal(t, int64(1), scene.camera.Uploads())
	assert.True(t, scene.chime.Ready())
	assert.NotNil(t, scene.check.GPUTexture())

	// Frame 2 is mid-second: no refresh
	require.NoError(t, scene.Update(2))
	h.Tasks().MarkEngineCompleted()
	h.Tick()
	h.Tick()
	_, version = scene.Latest()
	assert.Equal(t, uint64(1), version)
}

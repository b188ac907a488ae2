package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second/30, cfg.RenderBudget())
	assert.Equal(t, 4*time.Millisecond, cfg.AssetBudget())
	assert.Equal(t, time.Second/60, cfg.FrameInterval())
	assert.Equal(t, time.Second/60, cfg.SimulationInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.TelemetryInterval())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[render]
min_tick_rate = 20

[assets]
budget_ms = 2.5

[telemetry]
addr = "127.0.0.1:9090"
`))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Render.MinTickRate)
	assert.Equal(t, 60, cfg.Render.MaxTickRate, "untouched keys keep defaults")
	assert.Equal(t, time.Second/20, cfg.RenderBudget())
	assert.Equal(t, 2500*time.Microsecond, cfg.AssetBudget())
	assert.Equal(t, "127.0.0.1:9090", cfg.Telemetry.Addr)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "[render\nmin_tick_rate = 1"},
		{"unknown key", "[render]\nmin_tickrate = 10"},
		{"zero min tick rate", "[render]\nmin_tick_rate = 0"},
		{"max below min", "[render]\nmin_tick_rate = 50\nmax_tick_rate = 40"},
		{"negative budget", "[assets]\nbudget_ms = -1"},
		{"zero sim rate", "[simulation]\ntick_rate = 0"},
		{"bad level", "[logging]\nlevel = \"loud\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Render.MinTickRate = 24
	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_ReloadsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thundagun.toml")
	require.NoError(t, os.WriteFile(path, []byte("[render]\nmin_tick_rate = 30\n"), 0o644))

	logs := &lockedBuffer{}
	log := slog.New(slog.NewTextHandler(logs, nil))
	got := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { got <- c }, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, os.WriteFile(path, []byte("[render]\nmin_tick_rate = 15\n"), 0o644))
	select {
	case cfg := <-got:
		assert.Equal(t, 15, cfg.Render.MinTickRate)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}

	// Invalid content is rejected and not delivered
	require.NoError(t, os.WriteFile(path, []byte("[render]\nmin_tick_rate = -1\n"), 0o644))
	select {
	case cfg := <-got:
		t.Fatalf("invalid config delivered: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Contains(t, logs.String(), "config reload rejected")
}

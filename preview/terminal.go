// Package preview shows readback frames in a terminal using half-block cells.
package preview

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/render"
)

// HalfBlock paints the upper pixel as foreground and the lower as background
const HalfBlock = '▀'

// ErrClosed is returned by Present after Stop
var ErrClosed = errors.New("preview: terminal closed")

// Terminal owns a tcell screen; each cell shows two vertically stacked pixels
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	log    *slog.Logger
	onQuit func()
	closed bool
	shown  int
}

// NewTerminal wraps screen; nil screen opens the real terminal on Init
// onQuit runs once when the user presses Esc, Ctrl-C or q
func NewTerminal(screen tcell.Screen, onQuit func(), log *slog.Logger) *Terminal {
	if log == nil {
		log = slog.Default()
	}
	return &Terminal{screen: screen, onQuit: onQuit, log: log}
}

// Name implements service.Service
func (t *Terminal) Name() string { return "preview" }

// Dependencies implements service.Service
func (t *Terminal) Dependencies() []string { return nil }

// Init opens and initializes the screen
func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		t.screen = s
	}
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack))
	t.screen.Clear()
	return nil
}

// Start polls input until the screen is finalized or ctx ends
func (t *Terminal) Start(ctx context.Context) error {
	t.mu.Lock()
	screen := t.screen
	t.mu.Unlock()
	if screen == nil {
		return errors.New("preview: not initialized")
	}

	var quit sync.Once
	core.Go(func() {
		for {
			ev := screen.PollEvent()
			switch ev := ev.(type) {
			case nil:
				return
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					if t.onQuit != nil {
						quit.Do(func() {
							t.log.Debug("preview quit requested", "key", ev.Name())
							t.onQuit()
						})
					}
				}
			}
		}
	})
	context.AfterFunc(ctx, func() { _ = t.Stop() })
	return nil
}

// Stop restores the terminal
func (t *Terminal) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.screen == nil {
		t.closed = true
		return nil
	}
	t.closed = true
	t.screen.Fini()
	return nil
}

// Frames returns the number of frames presented
func (t *Terminal) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shown
}

// Present draws a tightly packed top-down frame scaled to fit the screen
func (t *Terminal) Present(frame []byte, size image.Point, format render.Format) error {
	bpp := render.BytesPerPixel(format)
	if bpp == 0 {
		return fmt.Errorf("%w: %v", render.ErrUnknownFormat, format)
	}
	if size.X <= 0 || size.Y <= 0 || len(frame) < size.X*size.Y*bpp {
		return fmt.Errorf("preview: frame of %d bytes does not hold %dx%d", len(frame), size.X, size.Y)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.screen == nil {
		return ErrClosed
	}

	cols, rows := t.screen.Size()
	if cols <= 0 || rows <= 0 {
		return nil
	}
	w, h := fit(size, cols, rows*2)

	t.screen.Clear()
	for cy := 0; cy < (h+1)/2; cy++ {
		for cx := 0; cx < w; cx++ {
			sx := cx * size.X / w
			top := pixelAt(frame, size, format, sx, (cy*2)*size.Y/h)
			style := tcell.StyleDefault.Foreground(top)
			if cy*2+1 < h {
				style = style.Background(pixelAt(frame, size, format, sx, (cy*2+1)*size.Y/h))
			} else {
				style = style.Background(tcell.ColorBlack)
			}
			t.screen.SetContent(cx, cy, HalfBlock, nil, style)
		}
	}
	t.screen.Show()
	t.shown++
	return nil
}

// fit scales size into cols x pixelRows, keeping aspect ratio
func fit(size image.Point, cols, pixelRows int) (int, int) {
	w, h := size.X, size.Y
	if w > cols {
		h = max(1, h*cols/w)
		w = cols
	}
	if h > pixelRows {
		w = max(1, w*pixelRows/h)
		h = pixelRows
	}
	return w, h
}

func pixelAt(frame []byte, size image.Point, format render.Format, x, y int) tcell.Color {
	bpp := render.BytesPerPixel(format)
	p := frame[(y*size.X+x)*bpp:]
	var r, g, b byte
	switch format {
	case render.FormatRGBA32, render.FormatRGB24:
		r, g, b = p[0], p[1], p[2]
	case render.FormatARGB32:
		r, g, b = p[1], p[2], p[3]
	case render.FormatBGRA32:
		r, g, b = p[2], p[1], p[0]
	case render.FormatR8, render.FormatAlpha8:
		r, g, b = p[0], p[0], p[0]
	case render.FormatRGBAFloat:
		var c [3]byte
		for i := range c {
			f := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
			c[i] = byte(math.Round(float64(min(max(f, 0), 1)) * 255))
		}
		r, g, b = c[0], c[1], c[2]
	}
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// Close finalizes the screen; same as Stop
func (t *Terminal) Close() error {
	return t.Stop()
}

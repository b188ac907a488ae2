package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
)

// ConsoleHandler writes one human-readable line per record
// Level names are coloured when the writer is a colour-capable terminal
type ConsoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	out   *termenv.Output
	level slog.Leveler

	prefix string // Pre-rendered WithAttrs output
	group  string // Dotted group path for later attrs
}

// NewConsoleHandler creates a handler; extra termenv options override terminal detection
func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions, outOpts ...termenv.OutputOption) *ConsoleHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &ConsoleHandler{
		mu:    &sync.Mutex{},
		w:     w,
		out:   termenv.NewOutput(w, outOpts...),
		level: level,
	}
}

// Enabled implements slog.Handler
func (h *ConsoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle implements slog.Handler
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	b.WriteString(h.levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	c := *h
	c.prefix += b.String()
	return &c
}

// WithGroup implements slog.Handler
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = joinKey(h.group, name)
	return &c
}

func (h *ConsoleHandler) levelTag(l slog.Level) string {
	tag := fmt.Sprintf("%-5s", l.String())
	var color string
	switch {
	case l >= slog.LevelError:
		color = "1"
	case l >= slog.LevelWarn:
		color = "3"
	case l >= slog.LevelInfo:
		color = "2"
	default:
		color = "8"
	}
	return h.out.String(tag).Foreground(h.out.Color(color)).String()
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		g := group
		if a.Key != "" {
			g = joinKey(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, g, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(joinKey(group, a.Key))
	b.WriteByte('=')
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if s == "" || strings.ContainsAny(s, " =\"") {
			fmt.Fprintf(b, "%q", s)
		} else {
			b.WriteString(s)
		}
	case slog.KindDuration:
		b.WriteString(a.Value.Duration().Round(time.Microsecond).String())
	default:
		b.WriteString(a.Value.String())
	}
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	// ErrInvalidSettings is returned for render settings that cannot produce an image
	ErrInvalidSettings = errors.New("invalid render settings")

	// ErrUnknownFormat is returned for texture formats without a readback path
	ErrUnknownFormat = errors.New("unknown texture format")
)

// Format is a texture pixel format
type Format uint8

const (
	FormatRGBA32 Format = iota
	FormatARGB32
	FormatBGRA32
	FormatRGB24
	FormatR8
	FormatAlpha8
	FormatRGBAFloat
)

var formatNames = [...]string{
	FormatRGBA32:    "RGBA32",
	FormatARGB32:    "ARGB32",
	FormatBGRA32:    "BGRA32",
	FormatRGB24:     "RGB24",
	FormatR8:        "R8",
	FormatAlpha8:    "Alpha8",
	FormatRGBAFloat: "RGBAFloat",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", f)
}

// BytesPerPixel returns the readback size of one pixel, 0 for unknown formats
func BytesPerPixel(f Format) int {
	switch f {
	case FormatRGBA32, FormatARGB32, FormatBGRA32:
		return 4
	case FormatRGB24:
		return 3
	case FormatR8, FormatAlpha8:
		return 1
	case FormatRGBAFloat:
		return 16
	default:
		return 0
	}
}

// MaxTextureSize bounds each dimension of render targets and textures
const MaxTextureSize = 8192

// WideFieldOfView is the FOV in degrees from which a render task switches to the 360° path
const WideFieldOfView = 180

// Settings describes one render-to-texture request
// Captured by value on the simulation thread; object lists are IDs resolved at render time
type Settings struct {
	Position    mgl32.Vec3
	Rotation    mgl32.Quat
	FieldOfView float32 // Vertical, degrees
	Near, Far   float32
	Size        image.Point
	Format      Format
	ClearColor  color.RGBA

	RenderObjects   []uuid.UUID // Non-empty: draw only these subtrees
	ExcludeObjects  []uuid.UUID // Ignored when RenderObjects is non-empty
	RenderPrivateUI bool
}

// DefaultSettings returns a 60° RGBA32 camera at the origin looking down -Z
func DefaultSettings(width, height int) Settings {
	return Settings{
		Rotation:    mgl32.QuatIdent(),
		FieldOfView: 60,
		Near:        0.05,
		Far:         1000,
		Size:        image.Pt(width, height),
		Format:      FormatRGBA32,
		ClearColor:  color.RGBA{A: 255},
	}
}

// Validate reports settings that cannot render
func (s Settings) Validate() error {
	if s.Size.X <= 0 || s.Size.Y <= 0 || s.Size.X > MaxTextureSize || s.Size.Y > MaxTextureSize {
		return fmt.Errorf("%w: size %v", ErrInvalidSettings, s.Size)
	}
	if BytesPerPixel(s.Format) == 0 {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, s.Format)
	}
	if s.FieldOfView <= 0 {
		return fmt.Errorf("%w: field of view %v", ErrInvalidSettings, s.FieldOfView)
	}
	if s.Near <= 0 || s.Far <= s.Near {
		return fmt.Errorf("%w: clip planes %v..%v", ErrInvalidSettings, s.Near, s.Far)
	}
	return nil
}

// ByteSize returns the readback length for these settings
func (s Settings) ByteSize() int {
	return s.Size.X * s.Size.Y * BytesPerPixel(s.Format)
}

// Wide reports whether the request takes the 360° cubemap path
func (s Settings) Wide() bool {
	return s.FieldOfView >= WideFieldOfView
}

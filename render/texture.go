package render

import (
	"fmt"
	"image"
)

// Texture is a render-thread-owned GPU texture with a mip chain
// Owned by exactly one connector; mutated only inside replayed packets or asset steps
type Texture struct {
	format  Format
	size    image.Point
	mips    [][]byte
	version uint64
}

// NewTexture allocates the mip chain layout for size and format
// levels <= 0 allocates the full chain down to 1x1
func NewTexture(size image.Point, format Format, levels int) (*Texture, error) {
	if size.X <= 0 || size.Y <= 0 || size.X > MaxTextureSize || size.Y > MaxTextureSize {
		return nil, fmt.Errorf("%w: texture size %v", ErrInvalidSettings, size)
	}
	if BytesPerPixel(format) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
	full := MipLevels(size)
	if levels <= 0 || levels > full {
		levels = full
	}
	return &Texture{format: format, size: size, mips: make([][]byte, levels)}, nil
}

// MipLevels returns the full chain length for size
func MipLevels(size image.Point) int {
	n := 1
	for w, h := size.X, size.Y; w > 1 || h > 1; n++ {
		w = max(1, w/2)
		h = max(1, h/2)
	}
	return n
}

// MipSize returns the dimensions of a mip level
func (t *Texture) MipSize(level int) image.Point {
	w, h := t.size.X, t.size.Y
	for i := 0; i < level; i++ {
		w = max(1, w/2)
		h = max(1, h/2)
	}
	return image.Pt(w, h)
}

// UploadMip stores pixel data for one level
func (t *Texture) UploadMip(level int, data []byte) error {
	if level < 0 || level >= len(t.mips) {
		return fmt.Errorf("mip level %d out of range [0,%d)", level, len(t.mips))
	}
	sz := t.MipSize(level)
	if want := sz.X * sz.Y * BytesPerPixel(t.format); len(data) != want {
		return fmt.Errorf("mip %d: got %d bytes, want %d", level, len(data), want)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	t.mips[level] = buf
	t.version++
	return nil
}

// Format returns the pixel format
func (t *Texture) Format() Format { return t.format }

// Size returns the base level dimensions
func (t *Texture) Size() image.Point { return t.size }

// Levels returns the mip chain length
func (t *Texture) Levels() int { return len(t.mips) }

// Version increments on every upload
func (t *Texture) Version() uint64 { return t.version }

// Mip returns the data of a level, nil if not uploaded
func (t *Texture) Mip(level int) []byte {
	if level < 0 || level >= len(t.mips) {
		return nil
	}
	return t.mips[level]
}

// Complete reports whether every level has been uploaded
func (t *Texture) Complete() bool {
	for _, m := range t.mips {
		if m == nil {
			return false
		}
	}
	return true
}

package render

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
)

// Readback converts the target into tightly packed rows, top row first
func Readback(img *image.RGBA, format Format) ([]byte, error) {
	bpp := BytesPerPixel(format)
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*bpp)

	if format == FormatRGBA32 {
		for y := 0; y < h; y++ {
			row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(out[y*w*4:(y+1)*w*4], row[:w*4])
		}
		return out, nil
	}

	o := 0
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			r, g, bl, a := row[x*4], row[x*4+1], row[x*4+2], row[x*4+3]
			switch format {
			case FormatARGB32:
				out[o], out[o+1], out[o+2], out[o+3] = a, r, g, bl
			case FormatBGRA32:
				out[o], out[o+1], out[o+2], out[o+3] = bl, g, r, a
			case FormatRGB24:
				out[o], out[o+1], out[o+2] = r, g, bl
			case FormatR8:
				out[o] = r
			case FormatAlpha8:
				out[o] = a
			case FormatRGBAFloat:
				for i, c := range [4]byte{r, g, bl, a} {
					binary.LittleEndian.PutUint32(out[o+i*4:], math.Float32bits(float32(c)/255))
				}
			}
			o += bpp
		}
	}
	return out, nil
}

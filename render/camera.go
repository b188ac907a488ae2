package render

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ViewMatrix returns the world-to-camera transform; the camera looks down -Z
func ViewMatrix(pos mgl32.Vec3, rot mgl32.Quat) mgl32.Mat4 {
	world := mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()).Mul4(rot.Normalize().Mat4())
	return world.Inv()
}

// Projection returns the perspective projection for settings
func Projection(s Settings) mgl32.Mat4 {
	aspect := float32(s.Size.X) / float32(s.Size.Y)
	return mgl32.Perspective(mgl32.DegToRad(s.FieldOfView), aspect, s.Near, s.Far)
}

// cubeFace is one 90° face of the wide-angle capture, in camera space
type cubeFace struct {
	forward, right, up mgl32.Vec3
}

func newCubeFace(forward, up mgl32.Vec3) cubeFace {
	right := forward.Cross(up).Normalize()
	return cubeFace{forward: forward, right: right, up: right.Cross(forward)}
}

var cubeFaces = [6]cubeFace{
	newCubeFace(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}),
	newCubeFace(mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}),
	newCubeFace(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}),
	newCubeFace(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}),
	newCubeFace(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}),
	newCubeFace(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}),
}

// view returns the face view matrix composed onto the camera view
func (f cubeFace) view(camera mgl32.Mat4) mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3{}, f.forward, f.up).Mul4(camera)
}

// faceSize picks the cubemap resolution for an equirectangular target
func faceSize(target image.Point) int {
	return min(1024, max(8, target.X/4, target.Y/2))
}

// renderEquirect draws the scene into six 90° faces and resamples them into target
// Face images come from the pool and are released before returning
func renderEquirect(r *Rasterizer, pool *TargetPool, scene *Scene, s Settings, mask LayerMask, target *image.RGBA) {
	size := faceSize(s.Size)
	camera := ViewMatrix(s.Position, s.Rotation)
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, s.Near, s.Far)

	var faces [6]*image.RGBA
	for i, f := range cubeFaces {
		img := pool.Acquire(image.Pt(size, size))
		defer pool.Release(img)
		r.Clear(img, s.ClearColor)
		r.Draw(scene, f.view(camera), proj, mask, img)
		faces[i] = img
	}

	b := target.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		lat := math.Pi/2 - (float64(y)+0.5)/float64(h)*math.Pi
		sinLat, cosLat := math.Sincos(lat)
		for x := 0; x < w; x++ {
			lon := (float64(x)+0.5)/float64(w)*2*math.Pi - math.Pi
			sinLon, cosLon := math.Sincos(lon)
			// Longitude 0 is the camera's forward axis
			dir := mgl32.Vec3{float32(cosLat * sinLon), float32(sinLat), float32(-cosLat * cosLon)}
			i, u, v := sampleCube(dir, size)
			target.SetRGBA(b.Min.X+x, b.Min.Y+y, faces[i].RGBAAt(u, v))
		}
	}
}

// sampleCube maps a camera-space direction to a face index and pixel
func sampleCube(dir mgl32.Vec3, size int) (face, px, py int) {
	best := float32(-2)
	for i, f := range cubeFaces {
		if d := dir.Dot(f.forward); d > best {
			best, face = d, i
		}
	}
	f := cubeFaces[face]
	u := dir.Dot(f.right) / best
	v := dir.Dot(f.up) / best
	px = clampInt(int((u*0.5+0.5)*float32(size)), 0, size-1)
	py = clampInt(int((0.5-v*0.5)*float32(size)), 0, size-1)
	return face, px, py
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

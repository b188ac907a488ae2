package render

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/vector"
)

// lightDir is the fixed directional light used for flat shading
var lightDir = mgl32.Vec3{0.3, 0.8, 0.5}.Normalize()

// projected is one screen-space triangle awaiting fill
type projected struct {
	pts   [3]mgl32.Vec2
	depth float32
	fill  color.RGBA
}

// Rasterizer is the software camera: it projects scene meshes and fills them back to front
// Not thread-safe: one per render context, used on the render thread
type Rasterizer struct {
	z       *vector.Rasterizer
	scratch []projected
	drawn   int
}

// NewRasterizer creates a rasterizer
func NewRasterizer() *Rasterizer {
	return &Rasterizer{z: vector.NewRasterizer(1, 1)}
}

// Drawn returns the triangle count of the last Draw
func (r *Rasterizer) Drawn() int {
	return r.drawn
}

// Clear fills target with c
func (r *Rasterizer) Clear(target *image.RGBA, c color.RGBA) {
	draw.Draw(target, target.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Draw renders every active node whose layer is in mask
func (r *Rasterizer) Draw(scene *Scene, view, proj mgl32.Mat4, mask LayerMask, target *image.RGBA) {
	bounds := target.Bounds()
	w, h := float32(bounds.Dx()), float32(bounds.Dy())
	viewProj := proj.Mul4(view)
	r.scratch = r.scratch[:0]

	scene.Walk(func(n *Node) {
		if n.Mesh == nil || !mask.Has(n.Layer) || !n.ActiveInHierarchy() {
			return
		}
		world := n.WorldMatrix()
		mvp := viewProj.Mul4(world)
		verts := n.Mesh.Vertices

		for i := 0; i+2 < len(n.Mesh.Indices); i += 3 {
			ia, ib, ic := n.Mesh.Indices[i], n.Mesh.Indices[i+1], n.Mesh.Indices[i+2]
			if int(ia) >= len(verts) || int(ib) >= len(verts) || int(ic) >= len(verts) {
				continue
			}
			tri := [3]mgl32.Vec3{verts[ia], verts[ib], verts[ic]}

			var p projected
			visible := true
			for k, v := range tri {
				clip := mvp.Mul4x1(v.Vec4(1))
				if clip.W() <= 1e-5 {
					// Behind or on the camera plane; no near clipping
					visible = false
					break
				}
				ndc := clip.Vec3().Mul(1 / clip.W())
				if ndc.Z() < -1 || ndc.Z() > 1 {
					visible = false
					break
				}
				p.pts[k] = mgl32.Vec2{
					(ndc.X()*0.5 + 0.5) * w,
					(0.5 - ndc.Y()*0.5) * h,
				}
				p.depth += ndc.Z()
			}
			if !visible {
				continue
			}

			p.fill = shade(n.Color, world, tri)
			r.scratch = append(r.scratch, p)
		}
	})

	// Painter's order: farthest first
	sort.SliceStable(r.scratch, func(i, j int) bool {
		return r.scratch[i].depth > r.scratch[j].depth
	})

	for _, p := range r.scratch {
		r.z.Reset(bounds.Dx(), bounds.Dy())
		r.z.MoveTo(p.pts[0].X(), p.pts[0].Y())
		r.z.LineTo(p.pts[1].X(), p.pts[1].Y())
		r.z.LineTo(p.pts[2].X(), p.pts[2].Y())
		r.z.ClosePath()
		r.z.Draw(target, bounds, image.NewUniform(p.fill), image.Point{})
	}
	r.drawn = len(r.scratch)
}

// shade applies flat Lambert lighting to the base colour
func shade(base color.RGBA, world mgl32.Mat4, tri [3]mgl32.Vec3) color.RGBA {
	a := world.Mul4x1(tri[0].Vec4(1)).Vec3()
	b := world.Mul4x1(tri[1].Vec4(1)).Vec3()
	c := world.Mul4x1(tri[2].Vec4(1)).Vec3()
	normal := b.Sub(a).Cross(c.Sub(a))
	if normal.Len() == 0 {
		return base
	}
	ndl := normal.Normalize().Dot(lightDir)
	if ndl < 0 {
		ndl = -ndl // Two-sided
	}
	k := 0.35 + 0.65*ndl
	return color.RGBA{
		R: uint8(float32(base.R) * k),
		G: uint8(float32(base.G) * k),
		B: uint8(float32(base.B) * k),
		A: base.A,
	}
}

package compositor

import (
	"image"
	"image/color"

	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/geometry"
	"github.com/df07/render-bridge-server/pkg/renderer"
)

// EncodeLabel evaluates the label compositor graph of spec.md §4.4: a flat
// unlit color per pixel, the hit triangle's diffuse color for objects in
// the "ClientObjects" collection, and backgroundColor for everything else
// (base-scene meshes, and misses standing in for the world background).
func EncodeLabel(buf *renderer.HitBuffer, backgroundColor core.Vec3) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	background := colorToRGBA8(backgroundColor)

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			hit := buf.At(x, y)
			pixel := background
			if hit != nil {
				if tri, ok := hit.Shape.(*geometry.Triangle); ok && tri.ClientMesh {
					pixel = colorToRGBA8(tri.Material.DiffuseColor)
				}
			}
			img.SetRGBA(x, y, pixel)
		}
	}

	return img
}

func colorToRGBA8(c core.Vec3) color.RGBA {
	clamped := c.Clamp(0, 1)
	return color.RGBA{
		R: uint8(clamped.X*255 + 0.5),
		G: uint8(clamped.Y*255 + 0.5),
		B: uint8(clamped.Z*255 + 0.5),
		A: 255,
	}
}

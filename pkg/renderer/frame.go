package renderer

import (
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/geometry"
	"github.com/df07/render-bridge-server/pkg/scene"
)

// HitBuffer is the renderer's single-sample-per-pixel raw output: one ray
// cast per pixel, with no anti-aliasing (spec.md §4.3's
// disable_antialiasing precondition for the depth and label passes holds
// for every image type here, since this renderer never multisamples).
type HitBuffer struct {
	Width, Height int
	Hits          []*core.HitRecord
}

// At returns the hit record for pixel (x, y), or nil on a miss.
func (b *HitBuffer) At(x, y int) *core.HitRecord {
	return b.Hits[y*b.Width+x]
}

// RenderHits casts one ray per pixel against the scene, in parallel across
// row bands. This generalizes the teacher's tile-based WorkerPool
// (pkg/renderer/worker_pool.go) from progressive-sample accumulation to a
// single deterministic pass: each worker owns disjoint rows, so there is
// no shared-state synchronization beyond the WaitGroup.
func RenderHits(sc *scene.Scene, camera *Camera, width, height int, tMin, tMax float64, numWorkers int) *HitBuffer {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	buf := &HitBuffer{Width: width, Height: height, Hits: make([]*core.HitRecord, width*height)}

	rowsPerWorker := (height + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := min(startY+rowsPerWorker, height)
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				for x := 0; x < width; x++ {
					ray := camera.GetRay(x, y)
					if hit, ok := sc.Hit(ray, tMin, tMax); ok {
						buf.Hits[y*width+x] = hit
					}
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return buf
}

// hitTriangle recovers the geometry.Triangle behind a hit record. Every
// shape this renderer casts against is a *geometry.Triangle (triangle
// meshes are built entirely out of them), so this always succeeds for a
// non-nil hit produced by this package.
func hitTriangle(hit *core.HitRecord) (*geometry.Triangle, bool) {
	if hit == nil {
		return nil, false
	}
	tri, ok := hit.Shape.(*geometry.Triangle)
	return tri, ok
}

// RenderColor shades a hit buffer into an 8-bit RGBA image using simple
// Lambertian shading against every light in the scene (spec.md §4.5's
// color branch: RGBA, 8 bits, no compositor graph). Misses are painted
// with backgroundColor.
func RenderColor(buf *HitBuffer, sc *scene.Scene, backgroundColor core.Vec3) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			hit := buf.At(x, y)
			color := backgroundColor
			if tri, ok := hitTriangle(hit); ok {
				color = shadePoint(tri, hit, sc)
			}
			setRGBA8(img, x, y, color)
		}
	}

	return img
}

func shadePoint(tri *geometry.Triangle, hit *core.HitRecord, sc *scene.Scene) core.Vec3 {
	if len(sc.Lights) == 0 {
		return tri.Material.DiffuseColor
	}

	var accum core.Vec3
	for _, light := range sc.Lights {
		toLight := light.Position.Subtract(hit.Point)
		dist := toLight.Length()
		if dist == 0 {
			continue
		}
		toLight = toLight.Multiply(1 / dist)
		falloff := light.Energy / (4 * 3.14159265358979 * dist * dist)
		lightColor := core.NewVec3(1, 1, 1).Multiply(min(1, falloff))
		accum = accum.Add(tri.Material.Shade(hit.Normal, toLight, lightColor))
	}
	return accum.Clamp(0, 1)
}

func setRGBA8(img *image.RGBA, x, y int, c core.Vec3) {
	clamped := c.Clamp(0, 1)
	img.SetRGBA(x, y, color.RGBA{
		R: uint8(clamped.X*255 + 0.5),
		G: uint8(clamped.Y*255 + 0.5),
		B: uint8(clamped.Z*255 + 0.5),
		A: 255,
	})
}

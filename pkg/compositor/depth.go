// Package compositor implements the depth and label node graphs of
// spec.md §4.3–§4.4 as small, directly testable functions over a renderer
// hit buffer — the "compositor graph as data" design note, realized here
// as a sequence of named transform steps rather than a literal node-graph
// data structure, since every node in both graphs is a pure scalar or
// per-pixel function with a single consumer.
package compositor

import (
	"image"
	"image/color"

	"github.com/df07/render-bridge-server/pkg/renderer"
)

// u16Max is the maximum value of a 16-bit unsigned pixel channel.
const u16Max = 65535

// EncodeDepth evaluates the depth compositor graph of spec.md §4.3 over a
// hit buffer and returns a 16-bit grayscale image whose pixel values are
// depth in millimeters, with too-close pixels saturated to 0 and
// too-far/no-hit pixels saturated to 65535.
//
// This implements the graph's five named nodes in sequence for each pixel:
// too_far, far_saturator, too_close, close_saturator, map_value.
func EncodeDepth(buf *renderer.HitBuffer, minDepth, maxDepth float64) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, buf.Width, buf.Height))

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			hit := buf.At(x, y)
			var value uint16
			if hit == nil {
				// A miss is indistinguishable from "too far" in the real
				// renderer's depth buffer, where a miss reads back as the
				// camera's clip-end value (spec.md §4.3's noted
				// clip_end/depth_far coupling); this renderer has no
				// analogous background depth buffer, so a miss maps
				// directly to the too-far sentinel.
				value = u16Max
			} else {
				value = encodeDepthPixel(hit.T, minDepth, maxDepth)
			}
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	return img
}

func encodeDepthPixel(depthMeters, minDepth, maxDepth float64) uint16 {
	tooFar := 0.0
	if depthMeters > maxDepth {
		tooFar = 1
	}
	farSaturator := tooFar*((u16Max+1)/1000.0) + depthMeters

	tooClose := 0.0
	if farSaturator < minDepth {
		tooClose = 1
	}
	closeSaturator := tooClose*(-2*minDepth) + farSaturator

	mapValue := closeSaturator * (1000.0 / u16Max)
	mapValue = max(0, min(1, mapValue))

	return uint16(mapValue*u16Max + 0.5)
}

// Package material describes the flat, unlit-or-diffuse surface colors the
// render backend needs: a single direct-lit color pass, a 16-bit depth
// pass, and a flat-color label pass. There is no BRDF or light-transport
// model here — the spec's renderer performs a single offline render per
// request, not progressive path tracing.
package material

import (
	"github.com/df07/render-bridge-server/pkg/core"
)

// Material is the flat surface description attached to a Shape.
type Material struct {
	// DiffuseColor is the color mode shading this surface reflects and the
	// label mode color this surface emits when it belongs to the client's
	// imported collection.
	DiffuseColor core.Vec3
}

// NewMaterial creates a material with the given diffuse/label color.
func NewMaterial(diffuseColor core.Vec3) Material {
	return Material{DiffuseColor: diffuseColor}
}

// Shade returns this material's color mode contribution for a surface
// point lit by a single point light, using simple Lambertian (N·L)
// shading plus a small ambient term so unlit faces are not pure black.
func (m Material) Shade(normal, toLight core.Vec3, lightColor core.Vec3) core.Vec3 {
	const ambient = 0.12
	diffuse := max(0, normal.Dot(toLight))
	intensity := ambient + (1-ambient)*diffuse
	return m.DiffuseColor.MultiplyVec(lightColor).Multiply(intensity)
}

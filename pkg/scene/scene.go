// Package scene holds the renderer's state container: the set of shapes
// currently loaded (client-imported and, optionally, base-scene geometry),
// the scene's lights, and the acceleration structure built over them. This
// is the RendererState of spec.md §3 — a process-wide singleton the
// Pipeline Orchestrator mutates once per request.
package scene

import (
	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/geometry"
)

// PointLight is a single omnidirectional light source. The renderer's
// color pass uses it for simple Lambertian shading; it has no role in the
// depth or label passes.
type PointLight struct {
	Position core.Vec3
	Energy   float64
}

// DefaultPointLight is the light add_default_point_light installs when no
// base scene is configured: spec.md §4.2 fixes its position and energy.
func DefaultPointLight() PointLight {
	return PointLight{Position: core.NewVec3(0, 0, 5), Energy: 100}
}

// Scene is the RendererState: every shape currently loaded, split into
// client-imported and base-scene groups so the label compositor (spec.md
// §4.4) can tell them apart, plus the lights and acceleration structure
// used by the renderer.
type Scene struct {
	ClientMeshes []*geometry.TriangleMesh
	BaseMeshes   []*geometry.TriangleMesh
	Lights       []PointLight

	shapes []geometry.Shape
	bvh    *geometry.BVH

	// HasCameraNode records whether the most recently imported glTF
	// contained a node named "Camera Node", per the client contract of
	// spec.md §6. configure_camera fails with RenderFailed when false.
	HasCameraNode bool
}

// New returns an empty scene, as reset_world() leaves it.
func New() *Scene {
	return &Scene{}
}

// Reset clears all shapes and lights, equivalent to reset_world() followed
// by object deletion.
func (s *Scene) Reset() {
	s.ClientMeshes = nil
	s.BaseMeshes = nil
	s.Lights = nil
	s.shapes = nil
	s.bvh = nil
	s.HasCameraNode = false
}

// AddDefaultPointLight installs the single fixed-position point light
// add_default_point_light() describes.
func (s *Scene) AddDefaultPointLight() {
	s.Lights = append(s.Lights, DefaultPointLight())
}

// SetBaseMeshes replaces the scene's base-scene geometry (open_base_scene),
// none of which belongs to the "ClientObjects" collection.
func (s *Scene) SetBaseMeshes(meshes []*geometry.TriangleMesh) {
	s.BaseMeshes = meshes
}

// SetClientMeshes records the meshes imported from the request's glTF
// (import_gltf), linking them into the "ClientObjects" collection.
func (s *Scene) SetClientMeshes(meshes []*geometry.TriangleMesh) {
	s.ClientMeshes = meshes
}

// RotateClientMeshes replaces the client meshes with a copy rotated by
// angle radians about the X axis, implementing
// apply_post_import_correction().
func (s *Scene) RotateClientMeshes(angle float64) {
	rotated := make([]*geometry.TriangleMesh, len(s.ClientMeshes))
	for i, m := range s.ClientMeshes {
		rotated[i] = m.Rotate(angle)
	}
	s.ClientMeshes = rotated
}

// Build rebuilds the acceleration structure over every currently loaded
// shape. Must be called after the meshes for a request are finalized and
// before any Hit query.
func (s *Scene) Build() {
	shapes := make([]geometry.Shape, 0, len(s.ClientMeshes)+len(s.BaseMeshes))
	for _, m := range s.ClientMeshes {
		shapes = append(shapes, m)
	}
	for _, m := range s.BaseMeshes {
		shapes = append(shapes, m)
	}
	s.shapes = shapes
	s.bvh = geometry.NewBVH(shapes)
}

// Hit casts a ray against every shape in the scene via the acceleration
// structure built by Build.
func (s *Scene) Hit(ray core.Ray, tMin, tMax float64) (*core.HitRecord, bool) {
	if s.bvh == nil {
		return nil, false
	}
	return s.bvh.Hit(ray, tMin, tMax)
}

// ObjectCount returns the total number of top-level mesh objects currently
// loaded (client + base), used by the Orchestrator's import reality-check
// (spec.md §4.5 step 3).
func (s *Scene) ObjectCount() int {
	return len(s.ClientMeshes) + len(s.BaseMeshes)
}

package geometry

import (
	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/material"
)

// Triangle is a single triangle defined by three vertices. ClientMesh
// marks triangles that came from the request's glTF import (the
// "ClientObjects" collection of spec.md §4.2) as opposed to a base scene.
type Triangle struct {
	V0, V1, V2 core.Vec3
	Material   material.Material
	ObjectName string // the imported node name, for label/debug purposes
	ClientMesh bool   // true for triangles imported from the request's glTF

	normal core.Vec3
	bbox   core.AABB
}

// NewTriangle creates a triangle from three vertices, computing its flat
// face normal and bounding box.
func NewTriangle(v0, v1, v2 core.Vec3, mat material.Material) *Triangle {
	t := &Triangle{V0: v0, V1: v1, V2: v2, Material: mat}
	t.normal = v1.Subtract(v0).Cross(v2.Subtract(v0)).Normalize()
	t.bbox = core.NewAABBFromPoints(v0, v1, v2)
	return t
}

// Hit intersects ray with the triangle using the Möller-Trumbore algorithm.
func (t *Triangle) Hit(ray core.Ray, tMin, tMax float64) (*core.HitRecord, bool) {
	const epsilon = 1e-8

	edge1 := t.V1.Subtract(t.V0)
	edge2 := t.V2.Subtract(t.V0)

	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)
	if a > -epsilon && a < epsilon {
		return nil, false // ray parallel to the triangle's plane
	}

	f := 1.0 / a
	s := ray.Origin.Subtract(t.V0)
	u := f * s.Dot(h)
	if u < 0.0 || u > 1.0 {
		return nil, false
	}

	q := s.Cross(edge1)
	v := f * ray.Direction.Dot(q)
	if v < 0.0 || u+v > 1.0 {
		return nil, false
	}

	tParam := f * edge2.Dot(q)
	if tParam < tMin || tParam > tMax {
		return nil, false
	}

	hit := &core.HitRecord{T: tParam, Point: ray.At(tParam), Shape: t}
	hit.SetFaceNormal(ray, t.normal)
	return hit, true
}

// BoundingBox returns the triangle's axis-aligned bounding box.
func (t *Triangle) BoundingBox() core.AABB {
	return t.bbox
}

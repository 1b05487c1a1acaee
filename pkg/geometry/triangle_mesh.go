package geometry

import (
	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/material"
)

// TriangleMesh is a collection of triangles sharing one object name and
// material, accelerated with its own BVH. One TriangleMesh corresponds to
// one top-level glTF node (or one base-scene primitive).
type TriangleMesh struct {
	triangles  []Shape
	bvh        *BVH
	bbox       core.AABB
	ObjectName string
	ClientMesh bool
}

// NewTriangleMesh builds a mesh from a flat vertex buffer and triangle
// index list (every three indices form one triangle).
func NewTriangleMesh(vertices []core.Vec3, indices []int, mat material.Material, objectName string, clientMesh bool) *TriangleMesh {
	if len(indices)%3 != 0 {
		panic("geometry: triangle indices must be a multiple of 3")
	}

	numTriangles := len(indices) / 3
	triangles := make([]Shape, numTriangles)
	for i := 0; i < numTriangles; i++ {
		i0, i1, i2 := indices[i*3], indices[i*3+1], indices[i*3+2]
		tri := NewTriangle(vertices[i0], vertices[i1], vertices[i2], mat)
		tri.ObjectName = objectName
		tri.ClientMesh = clientMesh
		triangles[i] = tri
	}

	return newMesh(triangles, objectName, clientMesh)
}

func newMesh(triangles []Shape, objectName string, clientMesh bool) *TriangleMesh {
	bvh := NewBVH(triangles)

	var bbox core.AABB
	if len(triangles) > 0 {
		bbox = triangles[0].BoundingBox()
		for i := 1; i < len(triangles); i++ {
			bbox = bbox.Union(triangles[i].BoundingBox())
		}
	}

	return &TriangleMesh{
		triangles:  triangles,
		bvh:        bvh,
		bbox:       bbox,
		ObjectName: objectName,
		ClientMesh: clientMesh,
	}
}

// Hit delegates to the mesh's internal BVH.
func (tm *TriangleMesh) Hit(ray core.Ray, tMin, tMax float64) (*core.HitRecord, bool) {
	return tm.bvh.Hit(ray, tMin, tMax)
}

// BoundingBox returns the mesh's overall bounding box.
func (tm *TriangleMesh) BoundingBox() core.AABB {
	return tm.bbox
}

// TriangleCount returns the number of triangles in the mesh.
func (tm *TriangleMesh) TriangleCount() int {
	return len(tm.triangles)
}

// Rotate returns a new mesh with every vertex rotated by angle radians
// about the X axis, pivoting around the origin. This implements the
// post-import axis correction of spec.md §4.2, which counterbalances the
// glTF importer's up-axis convention before triangles are handed to the
// renderer.
func (tm *TriangleMesh) Rotate(angle float64) *TriangleMesh {
	seen := make(map[core.Vec3]core.Vec3, len(tm.triangles)*3)
	newTriangles := make([]Shape, len(tm.triangles))

	for i, shape := range tm.triangles {
		tri := shape.(*Triangle)
		r0 := rotatedVertex(tri.V0, angle, seen)
		r1 := rotatedVertex(tri.V1, angle, seen)
		r2 := rotatedVertex(tri.V2, angle, seen)
		newTri := NewTriangle(r0, r1, r2, tri.Material)
		newTri.ObjectName = tri.ObjectName
		newTri.ClientMesh = tri.ClientMesh
		newTriangles[i] = newTri
	}

	return newMesh(newTriangles, tm.ObjectName, tm.ClientMesh)
}

func rotatedVertex(v core.Vec3, angle float64, cache map[core.Vec3]core.Vec3) core.Vec3 {
	if r, ok := cache[v]; ok {
		return r
	}
	r := v.RotateX(angle)
	cache[v] = r
	return r
}

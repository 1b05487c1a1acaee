// Package geometry provides the shapes the render backend can cast rays
// against: triangle meshes, imported from a client's glTF or built from an
// optional base scene's trianglemesh shapes.
package geometry

import "github.com/df07/render-bridge-server/pkg/core"

// Shape is an alias for core.Shape, kept local so geometry types read
// naturally (geometry.Shape) without every file importing core just for
// the interface name.
type Shape = core.Shape

// HitRecord is an alias for core.HitRecord.
type HitRecord = core.HitRecord

// AABB is an alias for core.AABB.
type AABB = core.AABB

// BVH is an alias for core.BVH.
type BVH = core.BVH

// NewBVH is a forwarding constructor for core.NewBVH.
func NewBVH(shapes []Shape) *BVH {
	return core.NewBVH(shapes)
}

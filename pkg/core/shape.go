package core

// HitRecord describes a ray/shape intersection.
type HitRecord struct {
	Point     Vec3    // World-space point of intersection
	Normal    Vec3    // Surface normal at the intersection (faces the ray origin)
	T         float64 // Ray parameter at the intersection
	FrontFace bool    // Whether the ray hit the front face of the surface
	Shape     Shape   // The shape that was hit
}

// SetFaceNormal orients Normal against the incoming ray and records which
// face was hit.
func (h *HitRecord) SetFaceNormal(ray Ray, outwardNormal Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Negate()
	}
}

// Shape is anything the renderer can cast a ray against: scene geometry
// imported from a client's glTF, or geometry inherited from an optional
// base scene.
type Shape interface {
	Hit(ray Ray, tMin, tMax float64) (*HitRecord, bool)
	BoundingBox() AABB
}

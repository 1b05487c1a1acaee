package core

// BVHNode is a node in the bounding volume hierarchy.
type BVHNode struct {
	BoundingBox AABB
	Left        *BVHNode
	Right       *BVHNode
	Shapes      []Shape // set on leaf nodes only
}

// BVH accelerates nearest-hit queries over a scene's shapes. Every image
// type (color, depth, label) issues exactly one BVH.Hit per pixel.
type BVH struct {
	Root *BVHNode
}

// NewBVH builds a BVH over shapes by splitting each node at the spatial
// midpoint of the longest axis of its bounds.
func NewBVH(shapes []Shape) *BVH {
	if len(shapes) == 0 {
		return &BVH{Root: nil}
	}
	shapesCopy := make([]Shape, len(shapes))
	copy(shapesCopy, shapes)
	return &BVH{Root: buildBVH(shapesCopy, 0)}
}

const leafThreshold = 8

func buildBVH(shapes []Shape, depth int) *BVHNode {
	var boundingBox AABB
	if len(shapes) > 0 {
		boundingBox = shapes[0].BoundingBox()
		for i := 1; i < len(shapes); i++ {
			boundingBox = boundingBox.Union(shapes[i].BoundingBox())
		}
	}

	if len(shapes) <= leafThreshold {
		return &BVHNode{BoundingBox: boundingBox, Shapes: shapes}
	}

	axis, splitPos := findBestSplit(shapes, boundingBox)
	if axis == -1 {
		return &BVHNode{BoundingBox: boundingBox, Shapes: shapes}
	}

	left, right := partitionShapes(shapes, axis, splitPos)
	if len(left) == 0 || len(right) == 0 {
		return &BVHNode{BoundingBox: boundingBox, Shapes: shapes}
	}

	return &BVHNode{
		BoundingBox: boundingBox,
		Left:        buildBVH(left, depth+1),
		Right:       buildBVH(right, depth+1),
	}
}

func findBestSplit(shapes []Shape, boundingBox AABB) (axis int, splitPos float64) {
	axis = boundingBox.LongestAxis()

	var minVal, maxVal float64
	switch axis {
	case 0:
		minVal, maxVal = boundingBox.Min.X, boundingBox.Max.X
	case 1:
		minVal, maxVal = boundingBox.Min.Y, boundingBox.Max.Y
	case 2:
		minVal, maxVal = boundingBox.Min.Z, boundingBox.Max.Z
	}

	if maxVal <= minVal {
		return -1, 0
	}
	return axis, (minVal + maxVal) * 0.5
}

func partitionShapes(shapes []Shape, axis int, splitPos float64) ([]Shape, []Shape) {
	var left, right []Shape
	for _, shape := range shapes {
		center := shape.BoundingBox().Center()
		var centerVal float64
		switch axis {
		case 0:
			centerVal = center.X
		case 1:
			centerVal = center.Y
		case 2:
			centerVal = center.Z
		}
		if centerVal < splitPos {
			left = append(left, shape)
		} else {
			right = append(right, shape)
		}
	}
	return left, right
}

// Hit returns the closest shape intersection along ray within [tMin, tMax].
func (bvh *BVH) Hit(ray Ray, tMin, tMax float64) (*HitRecord, bool) {
	if bvh.Root == nil {
		return nil, false
	}
	return bvh.hitNode(bvh.Root, ray, tMin, tMax)
}

func (bvh *BVH) hitNode(node *BVHNode, ray Ray, tMin, tMax float64) (*HitRecord, bool) {
	if !node.BoundingBox.Hit(ray, tMin, tMax) {
		return nil, false
	}

	if node.Shapes != nil {
		var closestHit *HitRecord
		hitAnything := false
		closestSoFar := tMax
		for _, shape := range node.Shapes {
			if hit, isHit := shape.Hit(ray, tMin, closestSoFar); isHit {
				hitAnything = true
				closestSoFar = hit.T
				closestHit = hit
			}
		}
		return closestHit, hitAnything
	}

	var closestHit *HitRecord
	hitAnything := false
	closestSoFar := tMax

	if node.Left != nil {
		if hit, isHit := bvh.hitNode(node.Left, ray, tMin, closestSoFar); isHit {
			hitAnything = true
			closestSoFar = hit.T
			closestHit = hit
		}
	}
	if node.Right != nil {
		if hit, isHit := bvh.hitNode(node.Right, ray, tMin, closestSoFar); isHit {
			hitAnything = true
			closestSoFar = hit.T
			closestHit = hit
		}
	}

	return closestHit, hitAnything
}

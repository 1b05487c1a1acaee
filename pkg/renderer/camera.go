package renderer

import "github.com/df07/render-bridge-server/pkg/core"

// Camera is a pinhole camera driven directly by intrinsics, replacing the
// teacher's viewport-corner camera (pkg/renderer/camera.go in the
// teacher): a client supplies focal length and principal point in pixels,
// not a viewport height and look-direction. Its pose is the "Camera Node"
// glTF node's world transform (spec.md §4.2/§4.5's configure_camera
// targets that node by name; this is the position and orientation it
// carries into the scene).
type Camera struct {
	origin   core.Vec3
	rotation core.Quat
	focalX   float64
	focalY   float64
	centerX  float64
	centerY  float64
}

// NewCamera builds a pinhole camera with focal lengths and principal point
// supplied in pixel units (spec.md
// §3's focal_x/focal_y/center_x/center_y fields), posed at origin/rotation
// (the "Camera Node"'s world transform). The camera looks down local -Z
// with local +Y up, the glTF/OpenGL convention.
func NewCamera(origin core.Vec3, rotation core.Quat, focalX, focalY, centerX, centerY float64) *Camera {
	return &Camera{
		origin:   origin,
		rotation: rotation,
		focalX:   focalX,
		focalY:   focalY,
		centerX:  centerX,
		centerY:  centerY,
	}
}

// GetRay returns the camera ray through the center of pixel (px, py), with
// (0, 0) the top-left pixel. The direction is not normalized: its local Z
// component is -1, so a hit's ray parameter T is the hit's depth along the
// camera's viewing axis, and clip start/end bound that same depth.
func (c *Camera) GetRay(px, py int) core.Ray {
	x := (float64(px) + 0.5 - c.centerX) / c.focalX
	y := (float64(py) + 0.5 - c.centerY) / c.focalY

	// Image Y grows downward; camera space Y grows upward.
	localDir := core.NewVec3(x, -y, -1)
	worldDir := c.rotation.RotateVec3(localDir)
	return core.NewRay(c.origin, worldDir)
}

// ShiftX is Blender/OpenCV-convention horizontal lens shift, computed the
// way the Orchestrator's configure_camera step does (spec.md §4.5 step 5):
// both axes divide by width, not height.
func ShiftX(centerX float64, width int) float64 {
	return -(centerX/float64(width) - 0.5)
}

// ShiftY is the corresponding vertical lens shift.
func ShiftY(centerY float64, height, width int) float64 {
	return (centerY - 0.5*float64(height)) / float64(width)
}

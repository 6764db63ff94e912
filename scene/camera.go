package scene

import (
	"fmt"

	"github.com/achilleasa/restir/types"
)

// Stores the ray directions at the four corners of our camera frustrum. It is
// used as a shortcut for generating per pixel rays via interpolation of the
// corner rays.
type Frustrum [4]types.Vec4

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// Camera movement directions.
type CameraDirection uint8

const (
	Forward CameraDirection = iota
	Backward
	Left
	Right
	Up
	Down
)

// The camera type controls the scene camera.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3
	Pitch    float32
	Yaw      float32

	ViewMat  types.Mat4
	ProjMat  types.Mat4
	Frustrum Frustrum

	// Camera FOV in degrees.
	FOV float32

	// Adjust the frustrum so that Y is inverted
	InvertY bool

	// View-projection matrix captured by the last BeginFrame call.
	prevViewProjMat types.Mat4
	hasPrev         bool
}

func NewCamera(fov float32) *Camera {
	return &Camera{
		ViewMat:  types.Ident4(),
		ProjMat:  types.Ident4(),
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, -1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
	}
}

// Setup camera projection matrix.
func (c *Camera) SetupProjection(aspect float32) {
	c.ProjMat = types.Perspective4(c.FOV, aspect, 0.1, 1000)
	c.Update()
}

// Update camera.
func (c *Camera) Update() {
	dir := c.LookAt.Sub(c.Position).Normalize()
	if c.Pitch != 0 || c.Yaw != 0 {
		pitchAxis := dir.Cross(c.Up)
		pitchQuat := types.QuatFromAxisAngle(pitchAxis, c.Pitch)
		yawQuat := types.QuatFromAxisAngle(c.Up, c.Yaw)

		orientQuat := pitchQuat.Mul(yawQuat).Normalize()
		dir = orientQuat.Rotate(dir)
		c.LookAt = c.Position.Add(dir)
		c.Pitch, c.Yaw = 0, 0
	}

	c.ViewMat = types.LookAtV(c.Position, c.LookAt, c.Up)
	c.updateFrustrum()
}

// Snapshot the current view-projection matrix so that motion vectors can
// be computed after the camera moves. Must be called once per frame before
// any camera updates for that frame.
func (c *Camera) BeginFrame() {
	c.prevViewProjMat = c.ViewProjMat()
	c.hasPrev = true
}

// Get the combined view-projection matrix.
func (c *Camera) ViewProjMat() types.Mat4 {
	return c.ProjMat.Mul4(c.ViewMat)
}

// Get the inverse view-projection matrix.
func (c *Camera) InvViewProjMat() types.Mat4 {
	return c.ViewProjMat().Inv()
}

// Get the view-projection matrix of the previous frame. If BeginFrame was
// never called the current matrix is returned.
func (c *Camera) PrevViewProjMat() types.Mat4 {
	if !c.hasPrev {
		return c.ViewProjMat()
	}
	return c.prevViewProjMat
}

// Get the normalized view direction.
func (c *Camera) Forward() types.Vec3 {
	return c.LookAt.Sub(c.Position).Normalize()
}

// Move camera along the given direction.
func (c *Camera) Move(dir CameraDirection, amount float32) {
	forward := c.Forward()
	right := forward.Cross(c.Up).Normalize()

	var delta types.Vec3
	switch dir {
	case Forward:
		delta = forward.Mul(amount)
	case Backward:
		delta = forward.Mul(-amount)
	case Left:
		delta = right.Mul(-amount)
	case Right:
		delta = right.Mul(amount)
	case Up:
		delta = c.Up.Mul(amount)
	case Down:
		delta = c.Up.Mul(-amount)
	}

	c.Position = c.Position.Add(delta)
	c.LookAt = c.LookAt.Add(delta)
	c.Update()
}

// Rotate camera position around the look-at point and the up axis.
func (c *Camera) Orbit(angle float32) {
	q := types.QuatFromAxisAngle(c.Up, angle)
	c.Position = c.LookAt.Add(q.Rotate(c.Position.Sub(c.LookAt)))
	c.Update()
}

// Generate the primary ray through the center of pixel (x, y).
func (c *Camera) PrimaryRay(x, y, frameW, frameH uint32) Ray {
	tx := (float32(x) + 0.5) / float32(frameW)
	ty := (float32(y) + 0.5) / float32(frameH)
	lVec := c.Frustrum[0].Mul(1.0 - ty).Vec3().Add(c.Frustrum[2].Mul(ty).Vec3())
	rVec := c.Frustrum[1].Mul(1.0 - ty).Vec3().Add(c.Frustrum[3].Mul(ty).Vec3())
	return Ray{
		Origin: c.Position,
		Dir:    lVec.Mul(1.0 - tx).Add(rVec.Mul(tx)).Normalize(),
	}
}

// Project a world-space point to normalized screen coordinates ([0,1]^2
// with y pointing down). The second return value is false if the point
// lies behind the camera.
func (c *Camera) Project(p types.Vec3) (types.Vec2, bool) {
	return c.project(c.ViewProjMat(), p)
}

// Project a world-space point using the previous frame view-projection matrix.
func (c *Camera) ProjectPrev(p types.Vec3) (types.Vec2, bool) {
	return c.project(c.PrevViewProjMat(), p)
}

func (c *Camera) project(viewProj types.Mat4, p types.Vec3) (types.Vec2, bool) {
	clip := viewProj.Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return types.Vec2{}, false
	}
	ndcX := clip[0] / clip[3]
	ndcY := clip[1] / clip[3]
	if c.InvertY {
		ndcY = -ndcY
	}
	return types.Vec2{(ndcX + 1) * 0.5, (1 - ndcY) * 0.5}, true
}

// Get the linear view depth of a world-space point.
func (c *Camera) ViewDepth(p types.Vec3) float32 {
	return p.Sub(c.Position).Dot(c.Forward())
}

// Transform a world-space normal to view space.
func (c *Camera) ViewNormal(n types.Vec3) types.Vec3 {
	return c.ViewMat.Mat3().Mul3x1(n).Normalize()
}

// Generate a ray vector for each corner of the camera frustrum by
// multiplying clip space vectors for each corner with the inv proj/view
// matrix, applying perspective and subtracting the camera eye position.
func (c *Camera) updateFrustrum() {
	var v types.Vec4
	invProjViewMat := c.InvViewProjMat()

	var yUp float32 = 1.0
	if c.InvertY {
		yUp = -1.0
	}

	v = invProjViewMat.Mul4x1(types.XYZW(-1, yUp, -1, 1))
	c.Frustrum[0] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(1, yUp, -1, 1))
	c.Frustrum[1] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(-1, -yUp, -1, 1))
	c.Frustrum[2] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(1, -yUp, -1, 1))
	c.Frustrum[3] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)
}

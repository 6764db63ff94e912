package vbuffer

import (
	"errors"

	"github.com/achilleasa/restir/log"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/tracer"
	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

// Primitive id stored for pixels whose primary ray escapes the scene.
const InvalidID = ^uint32(0)

// Distance used to reproject background pixels.
const backgroundDistance float32 = 1e4

var (
	ErrNoCamera = errors.New("vbuffer: scene has no camera")
)

// A visibility buffer texel: the primitive hit by the primary ray and the
// barycentric coordinates of the hit.
type Texel struct {
	PrimID uint32
	Bary   types.Vec2
}

// Returns true if the texel references a primitive.
func (t Texel) IsValid() bool {
	return t.PrimID != InvalidID
}

// The buffers produced by a visibility pass. All buffers are stored in
// row-major order.
type Buffers struct {
	Width  uint32
	Height uint32

	VBuffer []Texel

	// Screen-space motion (prevUV - uv) in normalized [0,1] units. Set to
	// nil when motion vectors are disabled.
	MotionVectors []types.Vec2

	// View-space shading normals facing the camera.
	Normals []types.Vec3

	// Linear view depth; zero for background pixels.
	Depth []float32
}

// Allocate buffers for a w x h frame.
func NewBuffers(w, h uint32, withMotionVectors bool) *Buffers {
	n := int(w * h)
	b := &Buffers{
		Width:   w,
		Height:  h,
		VBuffer: make([]Texel, n),
		Normals: make([]types.Vec3, n),
		Depth:   make([]float32, n),
	}
	if withMotionVectors {
		b.MotionVectors = make([]types.Vec2, n)
	}
	return b
}

// The Pass type traces primary rays for every pixel and fills a Buffers
// instance.
type Pass struct {
	logger log.Logger
	pool   *tracer.Pool

	// Skip motion vector generation.
	DisableMotionVectors bool
}

// Create a new visibility pass that runs on the given pool.
func NewPass(pool *tracer.Pool) *Pass {
	return &Pass{
		logger: log.New("vbuffer"),
		pool:   pool,
	}
}

// Trace primary rays for a w x h frame. The camera projection must
// already be set up for the frame aspect ratio.
func (p *Pass) Render(sc *scene.Scene, w, h uint32) (*Buffers, error) {
	if sc.Camera == nil {
		return nil, ErrNoCamera
	}

	buf := NewBuffers(w, h, !p.DisableMotionVectors)
	cam := sc.Camera
	err := p.pool.Run(tracer.PixelKernel(func(x, y uint32) error {
		index := y*w + x
		ray := cam.PrimaryRay(x, y, w, h)
		uv := types.Vec2{(float32(x) + 0.5) / float32(w), (float32(y) + 0.5) / float32(h)}

		hit, found := sc.Intersect(ray, math32.MaxFloat32)
		if !found {
			buf.VBuffer[index] = Texel{PrimID: InvalidID}
			buf.Normals[index] = types.Vec3{}
			buf.Depth[index] = 0
			if buf.MotionVectors != nil {
				buf.MotionVectors[index] = motionVector(cam, ray.At(backgroundDistance), uv)
			}
			return nil
		}

		pos, normal, _, _ := sc.Surface(hit.PrimID, hit.Bary)
		if normal.Dot(ray.Dir) > 0 {
			normal = normal.Neg()
		}

		buf.VBuffer[index] = Texel{PrimID: hit.PrimID, Bary: hit.Bary}
		buf.Normals[index] = cam.ViewNormal(normal)
		buf.Depth[index] = cam.ViewDepth(pos)
		if buf.MotionVectors != nil {
			buf.MotionVectors[index] = motionVector(cam, pos, uv)
		}
		return nil
	}), w, h)
	if err != nil {
		return nil, err
	}

	return buf, nil
}

// Motion vectors for points that were behind the previous camera are NaN
// so that consumers treat them as disoccluded.
func motionVector(cam *scene.Camera, pos types.Vec3, uv types.Vec2) types.Vec2 {
	prevUV, ok := cam.ProjectPrev(pos)
	if !ok {
		return types.Vec2{math32.NaN(), math32.NaN()}
	}
	return prevUV.Sub(uv)
}

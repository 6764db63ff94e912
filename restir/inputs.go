package restir

import (
	"fmt"

	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/tracer/vbuffer"
	"github.com/achilleasa/restir/types"
)

// The per-frame buffers consumed by the pipeline. All buffers are stored
// in row-major order and must hold Width * Height entries.
type FrameInputs struct {
	Width  uint32
	Height uint32

	// Monotonically increasing frame index.
	Frame uint32

	// Required buffers.
	VBuffer []vbuffer.Texel
	Normals []types.Vec3
	Depth   []float32

	// Optional screen-space motion (prevUV - uv). If nil every pixel is
	// treated as disoccluded.
	MotionVectors []types.Vec2

	// Optional externally computed direct lighting. When present, light
	// candidates are skipped and the buffer is added to the output.
	DirectLighting []types.Vec3

	// The camera used to render the visibility buffer.
	Camera *scene.Camera
}

// Wrap the output of a visibility pass.
func InputsFromBuffers(buf *vbuffer.Buffers, camera *scene.Camera, frame uint32) *FrameInputs {
	return &FrameInputs{
		Width:         buf.Width,
		Height:        buf.Height,
		Frame:         frame,
		VBuffer:       buf.VBuffer,
		Normals:       buf.Normals,
		Depth:         buf.Depth,
		MotionVectors: buf.MotionVectors,
		Camera:        camera,
	}
}

func (in *FrameInputs) pixelCount() int {
	return int(in.Width) * int(in.Height)
}

// Check that all required inputs are present and correctly sized.
func (in *FrameInputs) validate() error {
	if in.Width == 0 || in.Height == 0 {
		return fmt.Errorf("%w: frame is %dx%d", ErrInputSize, in.Width, in.Height)
	}
	if in.Camera == nil {
		return fmt.Errorf("%w: camera", ErrMissingInput)
	}

	n := in.pixelCount()
	required := []struct {
		name string
		len  int
		nil  bool
	}{
		{"vbuffer", len(in.VBuffer), in.VBuffer == nil},
		{"normals", len(in.Normals), in.Normals == nil},
		{"depth", len(in.Depth), in.Depth == nil},
	}
	for _, buf := range required {
		if buf.nil {
			return fmt.Errorf("%w: %s", ErrMissingInput, buf.name)
		}
		if buf.len != n {
			return fmt.Errorf("%w: %s has %d entries; expected %d", ErrInputSize, buf.name, buf.len, n)
		}
	}

	if in.MotionVectors != nil && len(in.MotionVectors) != n {
		return fmt.Errorf("%w: motion vectors have %d entries; expected %d", ErrInputSize, len(in.MotionVectors), n)
	}
	if in.DirectLighting != nil && len(in.DirectLighting) != n {
		return fmt.Errorf("%w: direct lighting has %d entries; expected %d", ErrInputSize, len(in.DirectLighting), n)
	}
	return nil
}

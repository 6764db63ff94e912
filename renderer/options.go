package renderer

import (
	"strings"

	"github.com/achilleasa/restir/restir"
	"github.com/achilleasa/restir/tracer"
)

// Camera animation applied between frames.
type CameraMotion uint8

const (
	MotionNone CameraMotion = iota
	MotionOrbit
	MotionStrafe
	MotionDolly
)

var cameraMotionNames = []string{"none", "orbit", "strafe", "dolly"}

func (m CameraMotion) String() string {
	if int(m) < len(cameraMotionNames) {
		return cameraMotionNames[m]
	}
	return "unknown"
}

// Parse a camera motion name.
func ParseCameraMotion(name string) (CameraMotion, error) {
	for index, candidate := range cameraMotionNames {
		if strings.EqualFold(candidate, name) {
			return CameraMotion(index), nil
		}
	}
	return MotionNone, ErrUnknownMotion
}

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Number of frames to render.
	NumFrames uint32

	// Camera animation and its per-frame step (radians for orbit, world
	// units otherwise).
	Motion      CameraMotion
	MotionSpeed float32

	// Resampling and output pass options.
	Config restir.Config

	// Number of cpu tracers and the scheduler used to split rows between them.
	Workers   int
	Scheduler tracer.BlockScheduler

	// Skip motion vector generation; temporal reuse then degrades to
	// disocclusion for every pixel.
	DisableMotionVectors bool
}

package renderer

import (
	"image"

	"github.com/achilleasa/restir/restir"
	"github.com/achilleasa/restir/types"
)

type Renderer interface {
	// Render next frame.
	Render() (*Frame, error)

	// Shutdown renderer and any attached tracer.
	Close()

	// Get render statistics for the last frame.
	Stats() FrameStats

	// Get the sanitized resampling configuration and any warnings raised
	// while sanitizing it.
	Config() restir.Config
	Warnings() []restir.Warning
}

// A rendered frame.
type Frame struct {
	Index  uint32
	Width  uint32
	Height uint32

	// HDR color after accumulation.
	Color []types.Vec3

	// Auxiliary buffers produced by the resampling pipeline.
	Albedo []types.Vec3
	Normal []types.Vec3

	// Tone-mapped sRGB image.
	Image *image.RGBA
}

package renderer

import (
	"time"

	"github.com/achilleasa/restir/restir"
	"github.com/achilleasa/restir/tracer"
)

type FrameStats struct {
	Frame uint32

	// Individual tracer stats.
	Tracers []tracer.TracerStat

	// Counters and phase timings reported by the resampling pipeline.
	Pipeline restir.FrameStats

	// Host side stages (vbuffer, restir, accumulate, tonemap, post-process).
	Stages []restir.PhaseTiming

	// Frames merged by the accumulation pass and the exposure used for
	// tone-mapping.
	AccumulatedFrames uint32
	Exposure          float32

	// Total render time for entire frame.
	RenderTime time.Duration
}

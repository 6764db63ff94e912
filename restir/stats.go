package restir

import (
	"sync/atomic"
	"time"
)

// Time spent in a pipeline phase.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// Counters collected while executing a frame.
type FrameStats struct {
	Frame uint32

	// Candidate samples generated and the ones dropped for having an
	// invalid resampling weight.
	Candidates     uint64
	DroppedSamples uint64

	// Spatial neighbors rejected by bounds or geometric similarity tests.
	RejectedNeighbors uint64

	// Reuse attempts rejected because of an out of range or back-facing
	// reconnection jacobian.
	RejectedJacobians uint64

	// Pixels whose history was discarded.
	Disocclusions uint64

	// History samples dropped for exceeding the max sample age.
	StaleSamples uint64

	// Rays traced to validate reused or final samples.
	VisibilityRays uint64

	// Shadow rays traced while generating candidates.
	ShadowRays uint64

	// Selected samples found occluded by the final validation ray.
	InvalidatedSamples uint64

	// World-space grid occupancy and maintenance.
	GridCells     int
	GridOverflows uint64
	EvictedCells  int

	Phases []PhaseTiming
	Total  time.Duration
}

// Frame counters updated concurrently by the phase kernels. Each block
// accumulates locally and flushes once.
type counters struct {
	candidates        uint64
	dropped           uint64
	rejectedNeighbors uint64
	rejectedJacobians uint64
	disocclusions     uint64
	staleSamples      uint64
	visibilityRays    uint64
	shadowRays        uint64
	invalidated       uint64
	gridOverflows     uint64
}

func (c *counters) flush(dst *counters) {
	atomic.AddUint64(&dst.candidates, c.candidates)
	atomic.AddUint64(&dst.dropped, c.dropped)
	atomic.AddUint64(&dst.rejectedNeighbors, c.rejectedNeighbors)
	atomic.AddUint64(&dst.rejectedJacobians, c.rejectedJacobians)
	atomic.AddUint64(&dst.disocclusions, c.disocclusions)
	atomic.AddUint64(&dst.staleSamples, c.staleSamples)
	atomic.AddUint64(&dst.visibilityRays, c.visibilityRays)
	atomic.AddUint64(&dst.shadowRays, c.shadowRays)
	atomic.AddUint64(&dst.invalidated, c.invalidated)
	atomic.AddUint64(&dst.gridOverflows, c.gridOverflows)
}

func (c *counters) apply(stats *FrameStats) {
	stats.Candidates = c.candidates
	stats.DroppedSamples = c.dropped
	stats.RejectedNeighbors = c.rejectedNeighbors
	stats.RejectedJacobians = c.rejectedJacobians
	stats.Disocclusions = c.disocclusions
	stats.StaleSamples = c.staleSamples
	stats.VisibilityRays = c.visibilityRays
	stats.ShadowRays = c.shadowRays
	stats.InvalidatedSamples = c.invalidated
	stats.GridOverflows = c.gridOverflows
}

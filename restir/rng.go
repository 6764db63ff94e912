package restir

import (
	"golang.org/x/exp/rand"

	"github.com/achilleasa/restir/types"
)

// Identifies the pipeline phase drawing random numbers so that each phase
// gets an independent stream per pixel.
type phase uint64

const (
	phaseCandidates phase = iota + 1
	phaseSpatial
	phaseTemporal
	phaseCellMerge
	phaseCellResample
)

// A per-pixel random stream. Streams are derived from the configured seed,
// the frame index, the pixel (or cell) id and the phase so results do not
// depend on how pixels are scheduled across workers.
type sampler struct {
	src rand.PCGSource
}

func newSampler(seed uint64, frame uint32, id uint64, ph phase) sampler {
	var s sampler
	s.src.Seed(splitMix64(seed ^ splitMix64(uint64(frame)<<8|uint64(ph)) ^ splitMix64(id+0x632be59bd9b4e019)))
	return s
}

// Get a uniform value in [0, 1).
func (s *sampler) Float32() float32 {
	return float32(s.src.Uint64()>>40) * (1.0 / (1 << 24))
}

// Get a pair of uniform values in [0, 1).
func (s *sampler) Vec2() types.Vec2 {
	return types.Vec2{s.Float32(), s.Float32()}
}

func splitMix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

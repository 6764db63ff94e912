package renderer

import (
	"github.com/achilleasa/restir/restir"
	"github.com/achilleasa/restir/types"
)

// AccumulatePass averages frames rendered from the same viewpoint. Sums are
// kept in the selected precision; compensated mode uses Kahan summation on
// float32 sums.
type AccumulatePass struct {
	precision restir.PrecisionMode
	frames    uint32

	sum32 []types.Vec3
	comp  []types.Vec3
	sum64 [][3]float64

	out []types.Vec3
}

// Create an accumulation pass with the given precision.
func NewAccumulatePass(precision restir.PrecisionMode) *AccumulatePass {
	return &AccumulatePass{precision: precision}
}

// Get the number of frames accumulated since the last reset.
func (a *AccumulatePass) Frames() uint32 {
	return a.frames
}

// Discard accumulated frames.
func (a *AccumulatePass) Reset() {
	a.frames = 0
}

func (a *AccumulatePass) resize(n int) {
	if len(a.out) == n {
		return
	}
	a.out = make([]types.Vec3, n)
	a.frames = 0
	switch a.precision {
	case restir.PrecisionSingle:
		a.sum32 = make([]types.Vec3, n)
	case restir.PrecisionCompensated:
		a.sum32 = make([]types.Vec3, n)
		a.comp = make([]types.Vec3, n)
	default:
		a.sum64 = make([][3]float64, n)
	}
}

// Add a frame and return the running average. The returned slice is owned
// by the pass and is overwritten by the next call.
func (a *AccumulatePass) Accumulate(color []types.Vec3) []types.Vec3 {
	a.resize(len(color))
	if a.frames == 0 {
		a.clear()
	}
	a.frames++
	scale := 1.0 / float64(a.frames)

	switch a.precision {
	case restir.PrecisionSingle:
		for i, c := range color {
			a.sum32[i] = a.sum32[i].Add(c)
			a.out[i] = a.sum32[i].Mul(float32(scale))
		}
	case restir.PrecisionCompensated:
		for i, c := range color {
			for ch := 0; ch < 3; ch++ {
				y := c[ch] - a.comp[i][ch]
				t := a.sum32[i][ch] + y
				a.comp[i][ch] = (t - a.sum32[i][ch]) - y
				a.sum32[i][ch] = t
			}
			a.out[i] = a.sum32[i].Mul(float32(scale))
		}
	default:
		for i, c := range color {
			for ch := 0; ch < 3; ch++ {
				a.sum64[i][ch] += float64(c[ch])
				a.out[i][ch] = float32(a.sum64[i][ch] * scale)
			}
		}
	}
	return a.out
}

func (a *AccumulatePass) clear() {
	for i := range a.sum32 {
		a.sum32[i] = types.Vec3{}
	}
	for i := range a.comp {
		a.comp[i] = types.Vec3{}
	}
	for i := range a.sum64 {
		a.sum64[i] = [3]float64{}
	}
}

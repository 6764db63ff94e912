package reservoir

import (
	"math"

	"github.com/achilleasa/restir/types"
)

// The kind of reconnection vertex stored in a sample.
type Kind uint8

const (
	// A surface point found by tracing an indirect bounce ray.
	Bounce Kind = iota

	// A point light selected by light sampling.
	Light

	// A bounce ray that escaped the scene; Dir holds its direction.
	Escaped
)

func (k Kind) String() string {
	switch k {
	case Bounce:
		return "bounce"
	case Light:
		return "light"
	case Escaped:
		return "escaped"
	}
	return "unknown"
}

// A candidate sample: a path reconnecting the visible point x1 with a
// sample point x2.
type Sample struct {
	Kind Kind

	// The visible point and normal the sample was generated for.
	VisiblePos    types.Vec3
	VisibleNormal types.Vec3

	// The reconnection vertex and its normal. For light samples Pos is the
	// light position and Normal is zero.
	Pos    types.Vec3
	Normal types.Vec3

	// Escape direction for Escaped samples.
	Dir types.Vec3

	// Outgoing radiance at x2 towards x1. For light samples this holds the
	// light intensity.
	Radiance types.Vec3

	// Index of the sampled light or -1.
	LightIndex int32

	// Frames elapsed since the sample was generated.
	Age uint32
}

// Direction and squared distance from p to the sample point. Escaped
// samples report a unit distance.
func (s *Sample) DirectionFrom(p types.Vec3) (types.Vec3, float32) {
	if s.Kind == Escaped {
		return s.Dir, 1
	}
	delta := s.Pos.Sub(p)
	distSq := delta.LenSq()
	if distSq == 0 {
		return types.Vec3{}, 0
	}
	return delta.Normalize(), distSq
}

// The lifecycle state of a reservoir within a frame.
type State uint8

const (
	Empty State = iota
	Populated
	Reused
	Shaded
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Populated:
		return "populated"
	case Reused:
		return "reused"
	case Shaded:
		return "shaded"
	}
	return "unknown"
}

// A weighted reservoir holding one selected sample out of a stream of
// candidates.
type Reservoir struct {
	Sample Sample

	// Sum of all accepted resampling weights. Kept in float64 so that
	// large streams of float32 weights cannot overflow.
	WeightSum float64

	// Number of candidates seen, including dropped ones.
	M uint32

	// Unbiased contribution weight of the selected sample, set by Finalize.
	W float32

	// Target function value of the selected sample at the owning pixel.
	TargetPdf float32

	// Number of consecutive frames this reservoir has carried history.
	Age uint32

	State State
}

// Clear the reservoir.
func (r *Reservoir) Reset() {
	*r = Reservoir{}
}

// Returns true if the reservoir holds a selected sample.
func (r *Reservoir) HasSample() bool {
	return r.State != Empty && r.WeightSum > 0
}

// Stream a candidate with the given resampling weight into the reservoir
// using the uniform random value u in [0, 1). Weights that are zero,
// negative or not finite are dropped but still count towards M. Returns
// true if the candidate became the selected sample.
func (r *Reservoir) Update(sample Sample, targetPdf, weight float32, u float32) bool {
	r.M = SaturatingAdd(r.M, 1)
	if !ValidWeight(weight) {
		return false
	}

	r.WeightSum += float64(weight)
	if r.State == Empty {
		r.State = Populated
	}

	if float64(u)*r.WeightSum < float64(weight) {
		r.Sample = sample
		r.TargetPdf = targetPdf
		return true
	}
	return false
}

// Merge a reservoir built over the same target domain. The weight sums and
// candidate counts add up and other's sample is selected with probability
// other.WeightSum / (r.WeightSum + other.WeightSum).
func (r *Reservoir) Merge(other *Reservoir, u float32) bool {
	return r.combine(other, other.TargetPdf, other.WeightSum, u)
}

// Resample the selected sample of a reservoir defined over a different
// domain. The caller supplies the sample's target function value at this
// reservoir's owner and the resampling weight (typically targetPdf * W * M
// * jacobian, optionally scaled by a MIS weight).
func (r *Reservoir) Combine(other *Reservoir, targetPdf, weight float32, u float32) bool {
	if !ValidWeight(weight) {
		weight = 0
	}
	return r.combine(other, targetPdf, float64(weight), u)
}

func (r *Reservoir) combine(other *Reservoir, targetPdf float32, weight float64, u float32) bool {
	if other.M == 0 {
		return false
	}

	r.M = SaturatingAdd(r.M, other.M)
	r.State = Reused

	if !(weight > 0) || math.IsInf(weight, 0) || other.State == Empty {
		return false
	}

	r.WeightSum += weight
	if float64(u)*r.WeightSum < weight {
		r.Sample = other.Sample
		r.TargetPdf = targetPdf
		return true
	}
	return false
}

// Compute the unbiased contribution weight W = WeightSum / (normalization *
// TargetPdf). Reservoirs with no valid selection get W = 0.
func (r *Reservoir) Finalize(normalization float64) {
	if r.WeightSum <= 0 || r.TargetPdf <= 0 || !(normalization > 0) {
		r.W = 0
		return
	}

	w := r.WeightSum / (normalization * float64(r.TargetPdf))
	if math.IsNaN(w) || math.IsInf(w, 0) || w > math.MaxFloat32 {
		r.W = 0
		return
	}
	r.W = float32(w)
}

// Clamp M to limit, scaling the weight sum by the same factor so that the
// contribution weight is preserved.
func (r *Reservoir) CapM(limit uint32) {
	if limit == 0 || r.M <= limit {
		return
	}
	r.WeightSum *= float64(limit) / float64(r.M)
	r.M = limit
}

// Add two candidate counts, clamping the result to math.MaxUint32.
func SaturatingAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(sum)
}

// Multiply two candidate counts, clamping the result to math.MaxUint32.
func SaturatingMul(a, b uint32) uint32 {
	prod := uint64(a) * uint64(b)
	if prod > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(prod)
}

// Returns true if w can be used as a resampling weight.
func ValidWeight(w float32) bool {
	return w > 0 && types.IsFinite(w)
}

package restir

import (
	"math"
	"testing"

	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/types"
)

// Build n participants that all hold the same light sample. The normal of
// participant i tilts further towards the light as i grows so each domain
// has a different target value. If facingAway is set the last participant
// faces away from the light and cannot produce the sample.
func sharedSampleParticipants(n int, facingAway bool) []participant {
	y := reservoir.Sample{
		Kind:       reservoir.Light,
		Pos:        types.Vec3{0, 5, 0},
		Radiance:   types.Splat3(10),
		LightIndex: 0,
	}

	parts := make([]participant, n)
	for i := range parts {
		rec := &PixelRecord{
			Valid:  true,
			Pos:    types.Vec3{float32(i) * 0.5, 0, 0},
			Normal: types.Vec3{-0.1 * float32(i), 1, 0}.Normalize(),
			Albedo: types.Splat3(0.5),
		}
		if facingAway && i == n-1 {
			rec.Normal = types.Vec3{0, -1, 0}
		}

		res := &reservoir.Reservoir{M: uint32(3 * (i + 1))}
		sample := y
		sample.VisiblePos = rec.Pos
		sample.VisibleNormal = rec.Normal
		if _, targetPdf := evalTarget(rec, &sample); targetPdf > 0 {
			res.Update(sample, targetPdf, targetPdf, 0)
			res.M = uint32(3 * (i + 1))
			res.Finalize(float64(res.M))
		}
		parts[i] = participant{rec: rec, res: res}
	}
	return parts
}

func TestMisWeightsSumToOne(t *testing.T) {
	type spec struct {
		mis        MisKind
		n          int
		facingAway bool
	}
	specs := []spec{
		{MisTalbot, 2, false},
		{MisTalbot, 6, true},
		{MisPairwise, 1, false},
		{MisPairwise, 2, false},
		{MisPairwise, 6, false},
		{MisPairwise, 6, true},
	}

	cfg := DefaultConfig()
	cfg.Unbiased = false
	p := &Pipeline{cfg: cfg}

	for index, s := range specs {
		parts := sharedSampleParticipants(s.n, s.facingAway)

		var sum float64
		var c counters
		for i := range parts {
			if !parts[i].res.HasSample() {
				continue
			}
			var w float32
			switch s.mis {
			case MisTalbot:
				w = p.talbotWeight(parts, i, &c)
			default:
				w = p.pairwiseWeight(parts, i, &c)
			}
			if w < 0 || w > 1+1e-6 {
				t.Fatalf("[spec %d] expected weight of participant %d to be in [0, 1]; got %f", index, i, w)
			}
			sum += float64(w)
		}

		if math.Abs(sum-1) > 1e-5 {
			t.Fatalf("[spec %d] expected %s weights to sum to 1; got %f", index, s.mis, sum)
		}
	}
}

func TestPairwiseVisibilityRaysAreLinear(t *testing.T) {
	sc, err := scene.LoadBuiltin("occluder")
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Unbiased = true
	p := &Pipeline{cfg: cfg, scene: sc}

	type spec struct {
		mis     MisKind
		expRays func(n uint64) uint64
	}
	specs := []spec{
		{MisPairwise, func(n uint64) uint64 { return 2 * (n - 1) }},
		{MisTalbot, func(n uint64) uint64 { return n * (n - 1) }},
	}

	for index, s := range specs {
		for _, n := range []int{2, 5, 9} {
			parts := sharedSampleParticipants(n, false)

			var c counters
			for i := range parts {
				if s.mis == MisPairwise {
					p.pairwiseWeight(parts, i, &c)
				} else {
					p.talbotWeight(parts, i, &c)
				}
			}

			if exp := s.expRays(uint64(n)); c.visibilityRays != exp {
				t.Fatalf("[spec %d] expected %s weights for %d participants to trace %d visibility rays; got %d", index, s.mis, n, exp, c.visibilityRays)
			}
		}
	}
}

func TestReconnectionJacobian(t *testing.T) {
	// A bounce vertex one unit above the point it was generated for,
	// facing down.
	s := reservoir.Sample{
		Kind:       reservoir.Bounce,
		VisiblePos: types.Vec3{0, 0, 0},
		Pos:        types.Vec3{0, 1, 0},
		Normal:     types.Vec3{0, -1, 0},
	}
	backFacingSrc := s
	backFacingSrc.VisiblePos = types.Vec3{0, 2, 0}
	light := reservoir.Sample{Kind: reservoir.Light, Pos: types.Vec3{0, 1, 0}}

	type spec struct {
		sample      reservoir.Sample
		dst         types.Vec3
		maxJacobian float32
		expOk       bool
		expJacobian float32
	}
	specs := []spec{
		{s, types.Vec3{0, 0, 0}, 10, true, 1},
		{s, types.Vec3{0, -2, 0}, 10, true, 1.0 / 9},
		// Below 1/maxJacobian.
		{s, types.Vec3{0, -3, 0}, 10, false, 0},
		// Above maxJacobian.
		{s, types.Vec3{0, 0.8, 0}, 10, false, 0},
		{s, types.Vec3{0, 0.8, 0}, 100, true, 25},
		// The destination is behind the reconnection vertex.
		{s, types.Vec3{0, 2, 0}, 10, false, 0},
		{backFacingSrc, types.Vec3{0, 0, 0}, 10, false, 0},
		{light, types.Vec3{0, -3, 0}, 10, true, 1},
	}

	for index, sp := range specs {
		jacobian, ok := reconnectionJacobian(&sp.sample, sp.dst, sp.maxJacobian)
		if ok != sp.expOk {
			t.Fatalf("[spec %d] expected ok = %t; got %t", index, sp.expOk, ok)
		}
		if math.Abs(float64(jacobian-sp.expJacobian)) > 1e-4*math.Max(1, float64(sp.expJacobian)) {
			t.Fatalf("[spec %d] expected jacobian %f; got %f", index, sp.expJacobian, jacobian)
		}
	}
}

func TestShiftedTargetCountsRejectedJacobians(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unbiased = false
	cfg.MaxJacobian = 10
	p := &Pipeline{cfg: cfg}

	dst := &PixelRecord{
		Valid:  true,
		Pos:    types.Vec3{0, 0, 0},
		Normal: types.Vec3{0, 1, 0},
		Albedo: types.Splat3(0.5),
	}
	neighborRec := &PixelRecord{
		Valid:  true,
		Pos:    types.Vec3{0, 0.8, 0},
		Normal: types.Vec3{0, 1, 0},
		Albedo: types.Splat3(0.5),
	}

	type spec struct {
		vertex        types.Vec3
		normal        types.Vec3
		expRejections uint64
	}
	specs := []spec{
		// Distance 0.5 from both points: the jacobian is 1.
		{types.Vec3{0.3, 0.4, 0}, types.Vec3{-1, 0, 0}, 0},
		// Much closer to the neighbor than to dst.
		{types.Vec3{0, 1, 0}, types.Vec3{0, -1, 0}, 1},
		// Faces away from both points.
		{types.Vec3{0, 1, 0}, types.Vec3{0, 1, 0}, 1},
	}

	for index, s := range specs {
		neighbor := &reservoir.Reservoir{}
		sample := reservoir.Sample{
			Kind:          reservoir.Bounce,
			VisiblePos:    neighborRec.Pos,
			VisibleNormal: neighborRec.Normal,
			Pos:           s.vertex,
			Normal:        s.normal,
			Radiance:      types.Splat3(1),
		}
		neighbor.Update(sample, 1, 1, 0)
		neighbor.Finalize(1)

		parts := []participant{
			{rec: dst, res: &reservoir.Reservoir{}},
			{rec: neighborRec, res: neighbor},
		}

		var c counters
		targetPdf, jacobian := p.shiftedTarget(dst, parts, 1, &c)
		if c.rejectedJacobians != s.expRejections {
			t.Fatalf("[spec %d] expected %d rejected jacobians; got %d", index, s.expRejections, c.rejectedJacobians)
		}
		if s.expRejections != 0 && (targetPdf != 0 || jacobian != 0) {
			t.Fatalf("[spec %d] expected a rejected shift to have zero weight; got target %f, jacobian %f", index, targetPdf, jacobian)
		}
	}
}

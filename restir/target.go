package restir

import (
	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

const invPi = 1.0 / math32.Pi

// Evaluate the unshadowed contribution of sample s at the visible point of
// rec together with the scalar target function p̂ (its luminance).
func evalTarget(rec *PixelRecord, s *reservoir.Sample) (types.Vec3, float32) {
	if !rec.Valid {
		return types.Vec3{}, 0
	}

	dir, distSq := s.DirectionFrom(rec.Pos)
	if distSq == 0 {
		return types.Vec3{}, 0
	}
	cos := rec.Normal.Dot(dir)
	if cos <= 0 {
		return types.Vec3{}, 0
	}

	scale := cos * invPi
	if s.Kind == reservoir.Light {
		scale /= distSq
	}

	contrib := rec.Albedo.MulVec(s.Radiance).Mul(scale)
	pdf := contrib.Luminance()
	if !types.IsFinite(pdf) || pdf <= 0 {
		return types.Vec3{}, 0
	}
	return contrib, pdf
}

// Get the solid angle to area measure conversion factor |cos θ2| / d² at
// the reconnection vertex as seen from p. Light and escaped samples do not
// depend on the visible point and always return 1. The second return value
// is false if the reconnection is back-facing.
func geometryTerm(s *reservoir.Sample, p types.Vec3) (float32, bool) {
	if s.Kind != reservoir.Bounce {
		return 1, true
	}
	toVisible := p.Sub(s.Pos)
	distSq := toVisible.LenSq()
	if distSq == 0 {
		return 0, false
	}
	cos := s.Normal.Dot(toVisible) / math32.Sqrt(distSq)
	if cos <= 0 {
		return 0, false
	}
	return cos / distSq, true
}

// Get the reconnection jacobian dω_dst/dω_src for moving sample s from the
// point it was generated for to dst. Jacobians outside [1/maxJacobian,
// maxJacobian] and back-facing reconnections are rejected.
func reconnectionJacobian(s *reservoir.Sample, dst types.Vec3, maxJacobian float32) (float32, bool) {
	if s.Kind != reservoir.Bounce {
		return 1, true
	}
	gSrc, ok := geometryTerm(s, s.VisiblePos)
	if !ok {
		return 0, false
	}
	gDst, ok := geometryTerm(s, dst)
	if !ok {
		return 0, false
	}

	jacobian := gDst / gSrc
	if !types.IsFinite(jacobian) || jacobian > maxJacobian || jacobian < 1.0/maxJacobian {
		return 0, false
	}
	return jacobian, true
}

// Returns true if the sample point is visible from the record's visible point.
func sampleVisible(sc *scene.Scene, rec *PixelRecord, s *reservoir.Sample) bool {
	origin := offsetOrigin(rec.Pos, rec.Normal)
	switch s.Kind {
	case reservoir.Escaped:
		_, hit := sc.Intersect(scene.Ray{Origin: origin, Dir: s.Dir}, math32.MaxFloat32)
		return !hit
	case reservoir.Light:
		return !sc.Occluded(origin, s.Pos)
	default:
		return !sc.Occluded(origin, offsetOrigin(s.Pos, s.Normal))
	}
}

func offsetOrigin(p, n types.Vec3) types.Vec3 {
	return p.Add(n.Mul(scene.RayEpsilon))
}

// Sample a direction on the hemisphere around n. Returns the direction and
// its solid angle pdf.
func sampleHemisphere(n types.Vec3, u types.Vec2, cosine bool) (types.Vec3, float32) {
	var local types.Vec3
	var pdf float32
	phi := 2 * math32.Pi * u[1]
	sinPhi, cosPhi := math32.Sincos(phi)
	if cosine {
		r := math32.Sqrt(u[0])
		z := math32.Sqrt(math32.Max(0, 1-u[0]))
		local = types.Vec3{r * cosPhi, r * sinPhi, z}
		pdf = z * invPi
	} else {
		z := u[0]
		r := math32.Sqrt(math32.Max(0, 1-z*z))
		local = types.Vec3{r * cosPhi, r * sinPhi, z}
		pdf = 0.5 * invPi
	}

	t, b := types.OrthonormalBasis(n)
	dir := t.Mul(local[0]).Add(b.Mul(local[1])).Add(n.Mul(local[2])).Normalize()
	return dir, pdf
}

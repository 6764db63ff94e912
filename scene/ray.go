package scene

import "github.com/achilleasa/restir/types"

// Offset applied to ray origins to avoid self-intersections.
const RayEpsilon float32 = 1e-3

// A ray with a normalized direction.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3
}

// Get the point along the ray at distance t.
func (r Ray) At(t float32) types.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Describes a ray-primitive intersection.
type Hit struct {
	// Distance along the ray.
	T float32

	// Index of the intersected primitive.
	PrimID uint32

	// Barycentric coordinates of the hit relative to vertices 1 and 2.
	Bary types.Vec2
}

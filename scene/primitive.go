package scene

import (
	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

// A triangle primitive. Vertices are specified in counter-clockwise order
// when looking at the front face.
type Primitive struct {
	Vertices [3]types.Vec3

	// Precomputed edges (v1-v0, v2-v0) and the geometric normal.
	edge   [2]types.Vec3
	normal types.Vec3
	area   float32

	// Index into the scene material list.
	MaterialIndex uint32
}

// Create new triangle primitive.
func NewTriangle(vertices [3]types.Vec3, materialIndex uint32) *Primitive {
	prim := &Primitive{
		Vertices:      vertices,
		MaterialIndex: materialIndex,
	}
	prim.edge[0] = vertices[1].Sub(vertices[0])
	prim.edge[1] = vertices[2].Sub(vertices[0])
	cross := prim.edge[0].Cross(prim.edge[1])
	prim.area = 0.5 * cross.Len()
	prim.normal = cross.Normalize()
	return prim
}

// Get the geometric normal.
func (p *Primitive) Normal() types.Vec3 {
	return p.normal
}

// Get the surface area.
func (p *Primitive) Area() float32 {
	return p.area
}

// Get the primitive bounding box.
func (p *Primitive) BBox() [2]types.Vec3 {
	min := types.MinVec3(p.Vertices[0], types.MinVec3(p.Vertices[1], p.Vertices[2]))
	max := types.MaxVec3(p.Vertices[0], types.MaxVec3(p.Vertices[1], p.Vertices[2]))
	return [2]types.Vec3{min, max}
}

// Get the primitive centroid.
func (p *Primitive) Center() types.Vec3 {
	return p.Vertices[0].Add(p.Vertices[1]).Add(p.Vertices[2]).Mul(1.0 / 3.0)
}

// Get the world-space point for the given barycentric coordinates.
func (p *Primitive) PointAt(bary types.Vec2) types.Vec3 {
	return p.Vertices[0].Add(p.edge[0].Mul(bary[0])).Add(p.edge[1].Mul(bary[1]))
}

// Intersect a ray with the triangle using the Moller-Trumbore algorithm.
// Returns the hit distance and barycentrics if the ray hits the triangle
// within (tMin, tMax).
func (p *Primitive) Intersect(r Ray, tMin, tMax float32) (float32, types.Vec2, bool) {
	pvec := r.Dir.Cross(p.edge[1])
	det := p.edge[0].Dot(pvec)
	if math32.Abs(det) < 1e-9 {
		return 0, types.Vec2{}, false
	}
	invDet := 1.0 / det

	tvec := r.Origin.Sub(p.Vertices[0])
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, types.Vec2{}, false
	}

	qvec := tvec.Cross(p.edge[0])
	v := r.Dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, types.Vec2{}, false
	}

	t := p.edge[1].Dot(qvec) * invDet
	if t <= tMin || t >= tMax {
		return 0, types.Vec2{}, false
	}
	return t, types.Vec2{u, v}, true
}

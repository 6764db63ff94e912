package scene

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/achilleasa/restir/types"
	"github.com/olekukonko/tablewriter"
)

// Max number of primitives per BVH leaf.
const minLeafPrimitives = 4

type Scene struct {
	Name   string
	Camera *Camera

	Materials  []*Material
	Primitives []*Primitive
	Lights     []*PointLight

	// Radiance returned by rays that escape the scene.
	Background types.Vec3

	// Compiled acceleration structure.
	bvhNodes   []BvhNode
	primIndex  []uint32
	lightCdf   []float32
	totalPower float32
	compiled   bool
}

func NewScene(name string) *Scene {
	return &Scene{
		Name:       name,
		Materials:  make([]*Material, 0),
		Primitives: make([]*Primitive, 0),
		Lights:     make([]*PointLight, 0),
	}
}

// Attach a camera to the scene.
func (s *Scene) SetCamera(camera *Camera) {
	s.Camera = camera
}

// Add a material to the scene and return its index.
func (s *Scene) AddMaterial(material *Material) (uint32, error) {
	for _, mat := range s.Materials {
		if mat == material {
			return 0, ErrDuplicateMaterial
		}
	}
	s.Materials = append(s.Materials, material)
	s.compiled = false
	return uint32(len(s.Materials) - 1), nil
}

// Add a primitive to the scene.
func (s *Scene) AddPrimitive(primitive *Primitive) error {
	if int(primitive.MaterialIndex) >= len(s.Materials) {
		return ErrUnknownMaterial
	}
	if primitive.Area() == 0 {
		return ErrDegeneratePrimitive
	}
	s.Primitives = append(s.Primitives, primitive)
	s.compiled = false
	return nil
}

// Add an axis-aligned quad defined by an origin corner and two edge vectors.
// The quad front face points along edgeU x edgeV.
func (s *Scene) AddQuad(origin, edgeU, edgeV types.Vec3, materialIndex uint32) error {
	v0 := origin
	v1 := origin.Add(edgeU)
	v2 := origin.Add(edgeU).Add(edgeV)
	v3 := origin.Add(edgeV)
	if err := s.AddPrimitive(NewTriangle([3]types.Vec3{v0, v1, v2}, materialIndex)); err != nil {
		return err
	}
	return s.AddPrimitive(NewTriangle([3]types.Vec3{v0, v2, v3}, materialIndex))
}

// Add an axis-aligned box with outward facing quads.
func (s *Scene) AddBox(min, max types.Vec3, materialIndex uint32) error {
	d := max.Sub(min)
	dx, dy, dz := types.Vec3{d[0], 0, 0}, types.Vec3{0, d[1], 0}, types.Vec3{0, 0, d[2]}
	quads := [][3]types.Vec3{
		{min, dz, dy},         // -x
		{min.Add(dx), dy, dz}, // +x
		{min, dx, dz},         // -y
		{min.Add(dy), dz, dx}, // +y
		{min, dy, dx},         // -z
		{min.Add(dz), dx, dy}, // +z
	}
	for _, q := range quads {
		if err := s.AddQuad(q[0], q[1], q[2], materialIndex); err != nil {
			return err
		}
	}
	return nil
}

// Add a point light.
func (s *Scene) AddLight(light *PointLight) error {
	if light.Power() <= 0 {
		return ErrInvalidLight
	}
	s.Lights = append(s.Lights, light)
	s.compiled = false
	return nil
}

// Build the BVH and the light selection CDF.
func (s *Scene) Compile() error {
	if len(s.Primitives) == 0 {
		return ErrEmptyScene
	}

	workList := make([]BoundedVolume, len(s.Primitives))
	lookup := make(map[*Primitive]uint32, len(s.Primitives))
	for idx, prim := range s.Primitives {
		workList[idx] = prim
		lookup[prim] = uint32(idx)
	}

	s.primIndex = make([]uint32, 0, len(s.Primitives))
	s.bvhNodes = BuildBVH(workList, minLeafPrimitives, func(leaf *BvhNode, itemList []BoundedVolume) {
		leaf.SetPrimitives(uint32(len(s.primIndex)), uint32(len(itemList)))
		for _, item := range itemList {
			s.primIndex = append(s.primIndex, lookup[item.(*Primitive)])
		}
	}, SurfaceAreaHeuristic)

	s.lightCdf = make([]float32, len(s.Lights))
	s.totalPower = 0
	for idx, light := range s.Lights {
		s.totalPower += light.Power()
		s.lightCdf[idx] = s.totalPower
	}

	s.compiled = true
	return nil
}

// Returns true if the scene has been compiled.
func (s *Scene) IsCompiled() bool {
	return s.compiled
}

// Find the closest intersection along the ray within (RayEpsilon, tMax).
func (s *Scene) Intersect(r Ray, tMax float32) (Hit, bool) {
	return s.traverse(r, tMax, false)
}

// Returns true if the segment between from and to is blocked.
func (s *Scene) Occluded(from, to types.Vec3) bool {
	delta := to.Sub(from)
	dist := delta.Len()
	if dist <= 2*RayEpsilon {
		return false
	}
	_, hit := s.traverse(Ray{Origin: from, Dir: delta.Mul(1.0 / dist)}, dist-RayEpsilon, true)
	return hit
}

func (s *Scene) traverse(r Ray, tMax float32, anyHit bool) (Hit, bool) {
	var (
		hit   Hit
		found bool
		stack [maxStackDepth]int32
		sp    int
	)

	if len(s.bvhNodes) == 0 {
		return hit, false
	}

	invDir := invDirection(r.Dir)
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		node := &s.bvhNodes[stack[sp]]
		if !node.hitBBox(r.Origin, invDir, tMax) {
			continue
		}

		if !node.IsLeaf() {
			stack[sp] = node.LData
			stack[sp+1] = node.RData
			sp += 2
			continue
		}

		first, count := node.GetPrimitives()
		for i := first; i < first+count; i++ {
			primID := s.primIndex[i]
			t, bary, ok := s.Primitives[primID].Intersect(r, RayEpsilon, tMax)
			if !ok {
				continue
			}
			hit = Hit{T: t, PrimID: primID, Bary: bary}
			found = true
			if anyHit {
				return hit, true
			}
			tMax = t
		}
	}

	return hit, found
}

// Reconstruct surface attributes for a primitive hit.
func (s *Scene) Surface(primID uint32, bary types.Vec2) (pos, normal types.Vec3, materialIndex uint32, ok bool) {
	if int(primID) >= len(s.Primitives) {
		return pos, normal, 0, false
	}
	prim := s.Primitives[primID]
	return prim.PointAt(bary), prim.Normal(), prim.MaterialIndex, true
}

// Get material by index.
func (s *Scene) Material(index uint32) *Material {
	return s.Materials[index]
}

// Get the list of point lights.
func (s *Scene) PointLights() []*PointLight {
	return s.Lights
}

// Get the radiance of rays escaping the scene.
func (s *Scene) BackgroundRadiance() types.Vec3 {
	return s.Background
}

// Select a light proportionally to its power using the random value u in
// [0, 1). Returns the light index and its selection probability.
func (s *Scene) SampleLight(u float32) (int, float32) {
	if len(s.lightCdf) == 0 || s.totalPower <= 0 {
		return -1, 0
	}
	target := u * s.totalPower
	idx := sort.Search(len(s.lightCdf), func(i int) bool { return s.lightCdf[i] > target })
	if idx >= len(s.lightCdf) {
		idx = len(s.lightCdf) - 1
	}
	return idx, s.Lights[idx].Power() / s.totalPower
}

// Get the selection probability of a light.
func (s *Scene) LightPdf(index int) float32 {
	if index < 0 || index >= len(s.Lights) || s.totalPower <= 0 {
		return 0
	}
	return s.Lights[index].Power() / s.totalPower
}

// Get scene bounding box.
func (s *Scene) BBox() [2]types.Vec3 {
	if len(s.bvhNodes) != 0 {
		return [2]types.Vec3{s.bvhNodes[0].Min, s.bvhNodes[0].Max}
	}
	bbox := [2]types.Vec3{types.Splat3(math.MaxFloat32), types.Splat3(-math.MaxFloat32)}
	for _, prim := range s.Primitives {
		pb := prim.BBox()
		bbox[0] = types.MinVec3(bbox[0], pb[0])
		bbox[1] = types.MaxVec3(bbox[1], pb[1])
	}
	return bbox
}

// Generate a table with scene statistics.
func (s *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Asset type", "Count", "Notes"})

	bbox := s.BBox()
	emissive := 0
	for _, mat := range s.Materials {
		if mat.IsEmissive() {
			emissive++
		}
	}

	table.Append([]string{"Primitives", fmt.Sprint(len(s.Primitives)), fmt.Sprintf("bbox (%.2f, %.2f, %.2f) - (%.2f, %.2f, %.2f)", bbox[0][0], bbox[0][1], bbox[0][2], bbox[1][0], bbox[1][1], bbox[1][2])})
	table.Append([]string{"BVH nodes", fmt.Sprint(len(s.bvhNodes)), ""})
	table.Append([]string{"Materials", fmt.Sprint(len(s.Materials)), fmt.Sprintf("%d emissive", emissive)})
	table.Append([]string{"Point lights", fmt.Sprint(len(s.Lights)), fmt.Sprintf("total power %.2f", s.totalPower)})
	table.Render()

	return buf.String()
}

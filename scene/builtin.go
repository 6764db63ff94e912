package scene

import (
	"fmt"
	"sort"

	"github.com/achilleasa/restir/types"
)

type builtinScene struct {
	description string
	build       func() (*Scene, error)
}

var builtinScenes = map[string]builtinScene{
	"occluder": {
		description: "ground plane shadowed by a floating occluder; single point light, black background",
		build:       buildOccluderScene,
	},
	"cornell": {
		description: "cornell box with two blocks, a point light and an emissive ceiling patch",
		build:       buildCornellScene,
	},
	"corridor": {
		description: "long corridor with pillars lit by a row of point lights",
		build:       buildCorridorScene,
	},
}

// Get the sorted list of built-in scene names.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinScenes))
	for name := range builtinScenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get the description of a built-in scene.
func BuiltinDescription(name string) string {
	return builtinScenes[name].description
}

// Build and compile a built-in scene.
func LoadBuiltin(name string) (*Scene, error) {
	def, exists := builtinScenes[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}

	sc, err := def.build()
	if err != nil {
		return nil, fmt.Errorf("scene: could not build %q: %w", name, err)
	}

	if err = sc.Compile(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Collects the first error raised while assembling a scene.
type sceneBuilder struct {
	sc  *Scene
	err error
}

func (b *sceneBuilder) material(name string, albedo, emission types.Vec3) uint32 {
	if b.err != nil {
		return 0
	}
	var index uint32
	index, b.err = b.sc.AddMaterial(&Material{Name: name, Albedo: albedo, Emission: emission})
	return index
}

func (b *sceneBuilder) quad(origin, edgeU, edgeV types.Vec3, mat uint32) {
	if b.err == nil {
		b.err = b.sc.AddQuad(origin, edgeU, edgeV, mat)
	}
}

func (b *sceneBuilder) box(min, max types.Vec3, mat uint32) {
	if b.err == nil {
		b.err = b.sc.AddBox(min, max, mat)
	}
}

func (b *sceneBuilder) light(pos, intensity types.Vec3) {
	if b.err == nil {
		b.err = b.sc.AddLight(&PointLight{Position: pos, Intensity: intensity})
	}
}

func buildOccluderScene() (*Scene, error) {
	b := &sceneBuilder{sc: NewScene("occluder")}

	ground := b.material("ground", types.Splat3(0.8), types.Vec3{})
	occluder := b.material("occluder", types.Splat3(0.5), types.Vec3{})

	b.quad(types.Vec3{-6, 0, -6}, types.Vec3{0, 0, 12}, types.Vec3{12, 0, 0}, ground)
	b.quad(types.Vec3{-1, 1.5, -1}, types.Vec3{0, 0, 2}, types.Vec3{2, 0, 0}, occluder)
	b.light(types.Vec3{-3, 4, 0}, types.Splat3(20))

	cam := NewCamera(60)
	cam.Position = types.Vec3{0, 8, 0}
	cam.LookAt = types.Vec3{0, 0, 0}
	cam.Up = types.Vec3{0, 0, -1}
	b.sc.SetCamera(cam)

	return b.sc, b.err
}

func buildCornellScene() (*Scene, error) {
	const size = 5.5
	b := &sceneBuilder{sc: NewScene("cornell")}

	white := b.material("white", types.Splat3(0.73), types.Vec3{})
	red := b.material("red", types.Vec3{0.65, 0.05, 0.05}, types.Vec3{})
	green := b.material("green", types.Vec3{0.12, 0.45, 0.15}, types.Vec3{})
	lamp := b.material("lamp", types.Splat3(0.78), types.Splat3(6))

	b.quad(types.Vec3{0, 0, 0}, types.Vec3{0, 0, size}, types.Vec3{size, 0, 0}, white)    // floor
	b.quad(types.Vec3{0, size, 0}, types.Vec3{size, 0, 0}, types.Vec3{0, 0, size}, white) // ceiling
	b.quad(types.Vec3{0, 0, size}, types.Vec3{0, size, 0}, types.Vec3{size, 0, 0}, white) // back
	b.quad(types.Vec3{0, 0, 0}, types.Vec3{0, size, 0}, types.Vec3{0, 0, size}, red)      // left
	b.quad(types.Vec3{size, 0, 0}, types.Vec3{0, 0, size}, types.Vec3{0, size, 0}, green) // right
	b.quad(types.Vec3{2.0, size - 0.01, 2.0}, types.Vec3{1.5, 0, 0}, types.Vec3{0, 0, 1.5}, lamp)

	b.box(types.Vec3{1.0, 0, 2.5}, types.Vec3{2.5, 3.3, 4.0}, white)
	b.box(types.Vec3{3.0, 0, 1.0}, types.Vec3{4.5, 1.65, 2.5}, white)

	b.light(types.Vec3{2.75, 5.0, 2.75}, types.Splat3(30))

	cam := NewCamera(40)
	cam.Position = types.Vec3{size / 2, size / 2, -7.5}
	cam.LookAt = types.Vec3{size / 2, size / 2, size / 2}
	b.sc.SetCamera(cam)

	return b.sc, b.err
}

func buildCorridorScene() (*Scene, error) {
	const (
		width  = 3.0
		height = 3.0
		length = 30.0
	)
	b := &sceneBuilder{sc: NewScene("corridor")}

	wall := b.material("wall", types.Splat3(0.7), types.Vec3{})
	floor := b.material("floor", types.Vec3{0.55, 0.45, 0.35}, types.Vec3{})
	pillar := b.material("pillar", types.Splat3(0.6), types.Vec3{})

	b.quad(types.Vec3{0, 0, 0}, types.Vec3{0, 0, length}, types.Vec3{width, 0, 0}, floor)
	b.quad(types.Vec3{0, height, 0}, types.Vec3{width, 0, 0}, types.Vec3{0, 0, length}, wall)
	b.quad(types.Vec3{0, 0, 0}, types.Vec3{0, height, 0}, types.Vec3{0, 0, length}, wall)
	b.quad(types.Vec3{width, 0, 0}, types.Vec3{0, 0, length}, types.Vec3{0, height, 0}, wall)
	b.quad(types.Vec3{0, 0, length}, types.Vec3{0, height, 0}, types.Vec3{width, 0, 0}, wall)

	for z := float32(4); z < length; z += 6 {
		b.box(types.Vec3{0, 0, z}, types.Vec3{0.4, height, z + 0.4}, pillar)
		b.box(types.Vec3{width - 0.4, 0, z + 3}, types.Vec3{width, height, z + 3.4}, pillar)

		tint := types.Vec3{1.0, 0.85, 0.6}
		if int(z)%12 == 10 {
			tint = types.Vec3{0.6, 0.8, 1.0}
		}
		b.light(types.Vec3{width / 2, height - 0.3, z + 1}, tint.Mul(4))
	}

	cam := NewCamera(70)
	cam.Position = types.Vec3{width / 2, 1.6, 1}
	cam.LookAt = types.Vec3{width / 2, 1.4, length}
	b.sc.SetCamera(cam)

	return b.sc, b.err
}

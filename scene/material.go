package scene

import "github.com/achilleasa/restir/types"

// Defines a Lambertian scene material with an optional emissive component.
type Material struct {
	Name string

	// Diffuse reflectance.
	Albedo types.Vec3

	// Emitted radiance (if material is a light).
	Emission types.Vec3
}

// Returns true if the material emits light.
func (m *Material) IsEmissive() bool {
	return !m.Emission.IsZero()
}

package scene

import (
	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

// An isotropic point light.
type PointLight struct {
	Position types.Vec3

	// Radiant intensity (W/sr) per color channel.
	Intensity types.Vec3
}

// Get the scalar power estimate used for light selection.
func (l *PointLight) Power() float32 {
	return l.Intensity.Luminance()
}

// Get the incident irradiance contributed by the light at point p with
// normal n, ignoring visibility.
func (l *PointLight) Irradiance(p, n types.Vec3) types.Vec3 {
	toLight := l.Position.Sub(p)
	distSq := toLight.LenSq()
	if distSq == 0 {
		return types.Vec3{}
	}
	cos := n.Dot(toLight.Mul(1.0 / math32.Sqrt(distSq)))
	if cos <= 0 {
		return types.Vec3{}
	}
	return l.Intensity.Mul(cos / distSq)
}

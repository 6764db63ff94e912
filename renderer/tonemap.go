package renderer

import (
	"image"
	"image/color"

	"github.com/achilleasa/restir/restir"
	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

// Middle gray key used by auto exposure.
const autoExposureKey = 0.18

// ToneMapper converts HDR radiance into 8-bit sRGB.
type ToneMapper struct {
	Operator restir.ToneMapOperator

	// Exposure compensation in stops.
	ExposureCompensation float32

	// Scale radiance so that the log-average luminance maps to middle gray.
	AutoExposure bool
}

// Create a tone mapper from the output options of a configuration.
func NewToneMapper(cfg restir.Config) *ToneMapper {
	return &ToneMapper{
		Operator:             cfg.ToneMap,
		ExposureCompensation: cfg.ExposureCompensation,
		AutoExposure:         cfg.AutoExposure,
	}
}

// Get the linear exposure scale applied to the frame.
func (tm *ToneMapper) Exposure(hdr []types.Vec3) float32 {
	exposure := math32.Exp2(tm.ExposureCompensation)
	if tm.AutoExposure {
		if avg := logAverageLuminance(hdr); avg > 0 {
			exposure *= autoExposureKey / avg
		}
	}
	return exposure
}

// Tone-map a w x h frame.
func (tm *ToneMapper) Apply(hdr []types.Vec3, w, h uint32) (*image.RGBA, float32, error) {
	if len(hdr) != int(w)*int(h) {
		return nil, 0, ErrSizeMismatch
	}

	exposure := tm.Exposure(hdr)
	im := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for i, c := range hdr {
		mapped := tm.mapColor(c.Mul(exposure))
		im.SetRGBA(i%int(w), i/int(w), color.RGBA{
			R: toSRGB8(mapped[0]),
			G: toSRGB8(mapped[1]),
			B: toSRGB8(mapped[2]),
			A: 255,
		})
	}
	return im, exposure, nil
}

func (tm *ToneMapper) mapColor(c types.Vec3) types.Vec3 {
	if c.IsInvalid() {
		return types.Vec3{}
	}
	switch tm.Operator {
	case restir.ToneMapReinhard:
		for ch := 0; ch < 3; ch++ {
			c[ch] = c[ch] / (1 + c[ch])
		}
	case restir.ToneMapACES:
		// Narkowicz fit of the ACES filmic curve.
		for ch := 0; ch < 3; ch++ {
			x := c[ch]
			c[ch] = (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
		}
	}
	return c
}

// Get the log-average luminance of all non-black pixels or 0 if there are
// none.
func logAverageLuminance(hdr []types.Vec3) float32 {
	var sum float64
	var count int
	for _, c := range hdr {
		lum := c.Luminance()
		if !types.IsFinite(lum) || lum <= 0 {
			continue
		}
		sum += float64(math32.Log(lum))
		count++
	}
	if count == 0 {
		return 0
	}
	return math32.Exp(float32(sum / float64(count)))
}

// Encode a linear value in [0, 1] as an 8-bit sRGB value.
func toSRGB8(v float32) uint8 {
	v = types.Clamp(v, 0, 1)
	if v <= 0.0031308 {
		v *= 12.92
	} else {
		v = 1.055*math32.Pow(v, 1/2.4) - 0.055
	}
	return uint8(types.Clamp(v*255+0.5, 0, 255))
}

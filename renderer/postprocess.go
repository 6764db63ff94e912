package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"github.com/achilleasa/restir/types"
)

// A stage executed on every frame after tone-mapping.
type PostProcessStage func(frame *Frame) error

// Save the tone-mapped frame as a PNG. If the path contains a printf verb
// it is formatted with the frame index.
func SaveFrame(path string) PostProcessStage {
	return func(frame *Frame) error {
		return writePNG(framePath(path, frame.Index), frame.Image)
	}
}

// Save the albedo and normal buffers as PNGs next to path, using the
// "-albedo" and "-normal" suffixes.
func SaveAuxBuffers(path string) PostProcessStage {
	return func(frame *Frame) error {
		base := framePath(path, frame.Index)
		ext := ".png"
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
		}

		albedo := bufferImage(frame.Albedo, frame.Width, frame.Height, func(c types.Vec3) types.Vec3 { return c })
		if err := writePNG(base+"-albedo"+ext, albedo); err != nil {
			return err
		}

		// Map normals from [-1, 1] to [0, 1].
		normal := bufferImage(frame.Normal, frame.Width, frame.Height, func(c types.Vec3) types.Vec3 {
			return c.Add(types.Splat3(1)).Mul(0.5)
		})
		return writePNG(base+"-normal"+ext, normal)
	}
}

func framePath(path string, index uint32) string {
	if strings.Contains(path, "%") {
		return fmt.Sprintf(path, index)
	}
	return path
}

func bufferImage(buf []types.Vec3, w, h uint32, mapFn func(types.Vec3) types.Vec3) *image.RGBA {
	im := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for i, c := range buf {
		c = mapFn(c)
		im.SetRGBA(i%int(w), i/int(w), color.RGBA{
			R: uint8(types.Clamp(c[0], 0, 1) * 255),
			G: uint8(types.Clamp(c[1], 0, 1) * 255),
			B: uint8(types.Clamp(c[2], 0, 1) * 255),
			A: 255,
		})
	}
	return im
}

func writePNG(path string, im image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, im); err != nil {
		return fmt.Errorf("renderer: could not encode %s: %w", path, err)
	}
	return nil
}

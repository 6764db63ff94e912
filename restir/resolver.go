package restir

import (
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/types"
)

// The reconstructed primary hit for a pixel. Records are written once per
// frame by the resolve phase and are read-only afterwards.
type PixelRecord struct {
	// False for pixels whose primary ray escaped the scene.
	Valid bool

	// World-space position and shading normal facing the camera.
	Pos    types.Vec3
	Normal types.Vec3

	// View-space normal and linear depth copied from the input buffers.
	ViewNormal types.Vec3
	Depth      float32

	MaterialID uint32
	Albedo     types.Vec3
	Emission   types.Vec3

	// The primitive id from the visibility buffer.
	VisibilityID uint32

	// Unit vector from the surface towards the camera.
	ViewDir types.Vec3
}

// Reconstruct the pixel record for pixel index i.
func resolvePixel(sc *scene.Scene, in *FrameInputs, i int) PixelRecord {
	texel := in.VBuffer[i]
	if !texel.IsValid() {
		return PixelRecord{VisibilityID: texel.PrimID}
	}

	pos, normal, matIndex, ok := sc.Surface(texel.PrimID, texel.Bary)
	if !ok || int(matIndex) >= len(sc.Materials) {
		return PixelRecord{VisibilityID: texel.PrimID}
	}

	viewDir := in.Camera.Position.Sub(pos).Normalize()
	if normal.Dot(viewDir) < 0 {
		normal = normal.Neg()
	}

	mat := sc.Material(matIndex)
	return PixelRecord{
		Valid:        true,
		Pos:          pos,
		Normal:       normal,
		ViewNormal:   in.Normals[i],
		Depth:        in.Depth[i],
		MaterialID:   matIndex,
		Albedo:       mat.Albedo,
		Emission:     mat.Emission,
		VisibilityID: texel.PrimID,
		ViewDir:      viewDir,
	}
}

// Returns true if the two records describe similar enough geometry to
// share samples, using the view-space normal and linear depth buffers.
func screenSimilar(a, b *PixelRecord, normalThreshold, depthThreshold float32) bool {
	if !a.Valid || !b.Valid {
		return false
	}
	if a.ViewNormal.Dot(b.ViewNormal) < normalThreshold {
		return false
	}
	return relativeDiff(a.Depth, b.Depth) <= depthThreshold
}

// Returns true if a previous-frame record matches the current one. World
// positions are compared relative to the current view depth since linear
// depth changes when the camera moves.
func historySimilar(cur, prev *PixelRecord, normalThreshold, depthThreshold float32) bool {
	if !cur.Valid || !prev.Valid {
		return false
	}
	if cur.Normal.Dot(prev.Normal) < normalThreshold {
		return false
	}
	depth := cur.Depth
	if depth <= 0 {
		depth = 1
	}
	return cur.Pos.Sub(prev.Pos).Len() <= depthThreshold*depth
}

func relativeDiff(a, b float32) float32 {
	d := a - b
	if d < 0 {
		d = -d
	}
	ref := a
	if ref < 0 {
		ref = -ref
	}
	if ref < 1e-6 {
		ref = 1e-6
	}
	return d / ref
}

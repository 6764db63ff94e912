package restir

import (
	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/achilleasa/restir/types"
)

// Compute the final color of pixel i from its selected sample. In unbiased
// mode the sample is validated with a visibility ray first; occluded
// samples are dropped from the reservoir so they do not propagate to the
// next frame.
func (p *Pipeline) shadePixel(i int, final []reservoir.Reservoir, out *Output, c *counters) {
	rec := &p.records[p.cur][i]
	res := &final[i]
	if !rec.Valid {
		out.Color[i] = p.scene.BackgroundRadiance()
		res.Reset()
		return
	}

	color := rec.Emission
	if res.HasSample() && res.W > 0 {
		contrib, _ := evalTarget(rec, &res.Sample)
		visible := true
		if p.cfg.Unbiased {
			c.visibilityRays++
			visible = sampleVisible(p.scene, rec, &res.Sample)
		}

		if visible {
			color = color.Add(contrib.Mul(res.W))
		} else {
			c.invalidated++
			invalidate(res)
		}
	}

	if p.in.DirectLighting != nil {
		color = color.Add(p.in.DirectLighting[i])
	}
	if color.IsInvalid() {
		color = types.Vec3{}
	}

	out.Color[i] = color
	out.Albedo[i] = rec.Albedo
	out.Normal[i] = rec.Normal
	res.State = reservoir.Shaded
}

// Drop the selected sample while keeping the candidate count.
func invalidate(res *reservoir.Reservoir) {
	res.Sample = reservoir.Sample{LightIndex: -1}
	res.WeightSum = 0
	res.W = 0
	res.TargetPdf = 0
}

package restir

import (
	"github.com/achilleasa/restir/restir/reservoir"
)

// A reservoir taking part in a resampling step together with the pixel
// record of the domain it was built for.
type participant struct {
	rec *PixelRecord
	res *reservoir.Reservoir
}

// Returns true if the participant's domain could have produced samples.
func (pt participant) active() bool {
	return pt.res.M > 0 && pt.rec.Valid
}

// Resample the participants into a new reservoir for dst. The first
// participant must be dst's own reservoir. Samples coming from other
// domains are shifted by reconnecting their sample point to dst and their
// weights are scaled by the reconnection jacobian.
func (p *Pipeline) resample(dst *PixelRecord, parts []participant, mis MisKind, smp *sampler, c *counters) reservoir.Reservoir {
	var out reservoir.Reservoir

	for i := range parts {
		src := parts[i].res
		// Always consume one value per participant so the stream does not
		// depend on which participants are empty.
		u := smp.Float32()
		if src.M == 0 {
			continue
		}
		if !src.HasSample() || src.W <= 0 {
			out.Combine(src, 0, 0, u)
			continue
		}

		targetPdf, jacobian := p.shiftedTarget(dst, parts, i, c)
		var weight float32
		if targetPdf > 0 {
			switch mis {
			case MisTalbot:
				weight = p.talbotWeight(parts, i, c) * targetPdf * src.W * jacobian
			case MisPairwise:
				weight = p.pairwiseWeight(parts, i, c) * targetPdf * src.W * jacobian
			default:
				weight = targetPdf * src.W * float32(src.M) * jacobian
			}
		}
		out.Combine(src, targetPdf, weight, u)
	}

	if !out.HasSample() {
		out.Finalize(1)
		return out
	}

	var normalization float64
	switch {
	case mis == MisTalbot || mis == MisPairwise:
		normalization = 1
	case p.cfg.Unbiased:
		normalization = p.confidenceNormalization(parts, &out.Sample, c)
	default:
		normalization = float64(out.M)
	}
	out.Finalize(normalization)

	out.Sample.VisiblePos = dst.Pos
	out.Sample.VisibleNormal = dst.Normal
	return out
}

// Evaluate the target function at dst for the sample of participant i
// together with the jacobian of the shift. In unbiased mode samples that
// are not visible from dst get a zero target value.
func (p *Pipeline) shiftedTarget(dst *PixelRecord, parts []participant, i int, c *counters) (float32, float32) {
	src := parts[i].res
	if i == 0 {
		return src.TargetPdf, 1
	}

	jacobian, ok := reconnectionJacobian(&src.Sample, dst.Pos, p.cfg.MaxJacobian)
	if !ok {
		c.rejectedJacobians++
		return 0, 0
	}

	_, targetPdf := evalTarget(dst, &src.Sample)
	if targetPdf > 0 && p.cfg.Unbiased {
		c.visibilityRays++
		if !sampleVisible(p.scene, dst, &src.Sample) {
			return 0, 0
		}
	}
	return targetPdf, jacobian
}

// Compute the generalized balance heuristic weight of participant i for
// its own sample. Each domain j contributes M_j * p̂_j(y) in area measure.
func (p *Pipeline) talbotWeight(parts []participant, i int, c *counters) float32 {
	y := &parts[i].res.Sample

	var num, den float32
	for j := range parts {
		if !parts[j].active() {
			continue
		}
		term := float32(parts[j].res.M) * p.domainTarget(parts, j, i, y, c)
		if j == i {
			num = term
		}
		den += term
	}

	if den <= 0 || num <= 0 {
		return 0
	}
	return num / den
}

// Compute the pairwise MIS weight of participant i for its own sample.
// Participant 0 is the canonical domain. Its confidence is split evenly
// into one pair per active neighbor; every pair runs a two-way balance
// heuristic and is scaled by its share of the total confidence, so the
// weights of all domains sum to one while only the canonical sample is
// evaluated at every neighbor.
func (p *Pipeline) pairwiseWeight(parts []participant, i int, c *counters) float32 {
	y := &parts[i].res.Sample

	var k int
	total := float32(parts[0].res.M)
	for j := 1; j < len(parts); j++ {
		if parts[j].active() {
			k++
			total += float32(parts[j].res.M)
		}
	}
	if k == 0 {
		if i == 0 {
			return 1
		}
		return 0
	}

	canonicalM := float32(parts[0].res.M) / float32(k)
	canonical := canonicalM * p.domainTarget(parts, 0, i, y, c)

	if i != 0 {
		neighborM := float32(parts[i].res.M)
		num := neighborM * p.domainTarget(parts, i, i, y, c)
		if num <= 0 {
			return 0
		}
		return (neighborM + canonicalM) / total * num / (num + canonical)
	}

	if canonical <= 0 {
		return 0
	}
	var weight float32
	for j := 1; j < len(parts); j++ {
		if !parts[j].active() {
			continue
		}
		neighborM := float32(parts[j].res.M)
		neighbor := neighborM * p.domainTarget(parts, j, 0, y, c)
		weight += (neighborM + canonicalM) / total * canonical / (canonical + neighbor)
	}
	return weight
}

// Evaluate the target function of the domain of participant j for sample
// y converted to area measure. owner is the participant y was drawn from;
// its stored target value is used as is. In unbiased mode y must also be
// visible from the other domains.
func (p *Pipeline) domainTarget(parts []participant, j, owner int, y *reservoir.Sample, c *counters) float32 {
	pj := parts[j]

	var targetPdf float32
	if j == owner {
		targetPdf = pj.res.TargetPdf
	} else {
		_, targetPdf = evalTarget(pj.rec, y)
	}
	if targetPdf <= 0 {
		return 0
	}

	g, ok := geometryTerm(y, pj.rec.Pos)
	if !ok {
		return 0
	}
	if j != owner && p.cfg.Unbiased {
		c.visibilityRays++
		if !sampleVisible(p.scene, pj.rec, y) {
			return 0
		}
	}
	return targetPdf * g
}

// Sum the confidence of every participant that could have produced sample
// y: its target function must be positive for y and y must be visible
// from its visible point.
func (p *Pipeline) confidenceNormalization(parts []participant, y *reservoir.Sample, c *counters) float64 {
	var z float64
	for j := range parts {
		pj := parts[j]
		if pj.res.M == 0 {
			continue
		}
		if j == 0 {
			z += float64(pj.res.M)
			continue
		}

		if _, targetPdf := evalTarget(pj.rec, y); targetPdf <= 0 {
			continue
		}
		if _, ok := geometryTerm(y, pj.rec.Pos); !ok {
			continue
		}
		c.visibilityRays++
		if !sampleVisible(p.scene, pj.rec, y) {
			continue
		}
		z += float64(pj.res.M)
	}
	return z
}

package restir

import (
	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

// Fill the initial reservoir of pixel i with bounce candidates and, unless
// direct lighting is supplied externally, light candidates.
func (p *Pipeline) generateCandidates(i int, c *counters) {
	rec := &p.records[p.cur][i]
	res := &p.initial[i]
	res.Reset()
	if !rec.Valid {
		return
	}

	smp := newSampler(p.cfg.Seed, p.frame, uint64(i), phaseCandidates)

	numBounce := float32(p.cfg.SamplesPerPixel)
	for k := uint32(0); k < p.cfg.SamplesPerPixel; k++ {
		dir, pdf := sampleHemisphere(rec.Normal, smp.Vec2(), p.cfg.UseCosineSampling)
		sample := p.traceBounce(rec, dir, &smp, c)
		_, targetPdf := evalTarget(rec, &sample)

		weight := targetPdf / (pdf * numBounce)
		c.candidates++
		if !reservoir.ValidWeight(weight) {
			c.dropped++
		}
		res.Update(sample, targetPdf, weight, smp.Float32())
	}

	lights := p.scene.PointLights()
	if p.in.DirectLighting == nil && p.cfg.LightSamples > 0 && len(lights) > 0 {
		numLight := float32(p.cfg.LightSamples)
		for k := uint32(0); k < p.cfg.LightSamples; k++ {
			index, lightPdf := p.scene.SampleLight(smp.Float32())
			u := smp.Float32()
			c.candidates++
			if index < 0 {
				c.dropped++
				res.M++
				continue
			}

			light := lights[index]
			sample := reservoir.Sample{
				Kind:          reservoir.Light,
				VisiblePos:    rec.Pos,
				VisibleNormal: rec.Normal,
				Pos:           light.Position,
				Radiance:      light.Intensity,
				LightIndex:    int32(index),
			}
			_, targetPdf := evalTarget(rec, &sample)
			if targetPdf > 0 {
				c.shadowRays++
				if !sampleVisible(p.scene, rec, &sample) {
					targetPdf = 0
				}
			}

			weight := targetPdf / (lightPdf * numLight)
			if !reservoir.ValidWeight(weight) {
				c.dropped++
			}
			res.Update(sample, targetPdf, weight, u)
		}
	}

	// Bounce directions and lights are disjoint sampling domains with their
	// pdfs already folded into the weights.
	res.Finalize(1)
}

// Trace a bounce ray from the visible point and estimate the radiance
// leaving the hit point towards it.
func (p *Pipeline) traceBounce(rec *PixelRecord, dir types.Vec3, smp *sampler, c *counters) reservoir.Sample {
	sample := reservoir.Sample{
		VisiblePos:    rec.Pos,
		VisibleNormal: rec.Normal,
		LightIndex:    -1,
	}

	hit, found := p.scene.Intersect(scene.Ray{Origin: offsetOrigin(rec.Pos, rec.Normal), Dir: dir}, math32.MaxFloat32)
	if !found {
		sample.Kind = reservoir.Escaped
		sample.Dir = dir
		sample.Radiance = p.scene.BackgroundRadiance()
		return sample
	}

	pos, normal, matIndex, ok := p.scene.Surface(hit.PrimID, hit.Bary)
	if !ok {
		sample.Kind = reservoir.Escaped
		sample.Dir = dir
		return sample
	}
	if normal.Dot(dir) > 0 {
		normal = normal.Neg()
	}

	sample.Kind = reservoir.Bounce
	sample.Pos = pos
	sample.Normal = normal
	sample.Radiance = p.outgoingRadiance(pos, normal, p.scene.Material(matIndex), smp, c)
	return sample
}

// Estimate the radiance leaving a diffuse surface point with a short path
// tracer. Each vertex adds its emission and the contribution of one light
// picked by power (next event estimation). Point lights cannot be hit so
// there is no double counting.
func (p *Pipeline) outgoingRadiance(pos, normal types.Vec3, mat *scene.Material, smp *sampler, c *counters) types.Vec3 {
	radiance := mat.Emission
	throughput := types.Splat3(1)
	albedo := mat.Albedo

	for bounce := uint32(0); ; bounce++ {
		radiance = radiance.Add(throughput.MulVec(p.sampleDirect(pos, normal, albedo, smp, c)))
		if bounce >= p.cfg.MaxBounces {
			break
		}

		// Cosine-weighted sampling of a lambertian BRDF has a weight equal
		// to the albedo.
		throughput = throughput.MulVec(albedo)
		if p.cfg.UseRussianRoulette && bounce > 0 {
			survive := math32.Min(0.95, throughput.MaxComponent())
			if smp.Float32() >= survive {
				break
			}
			throughput = throughput.Mul(1 / survive)
		}
		if throughput.IsZero() {
			break
		}

		dir, _ := sampleHemisphere(normal, smp.Vec2(), true)
		hit, found := p.scene.Intersect(scene.Ray{Origin: offsetOrigin(pos, normal), Dir: dir}, math32.MaxFloat32)
		if !found {
			radiance = radiance.Add(throughput.MulVec(p.scene.BackgroundRadiance()))
			break
		}

		nextPos, nextNormal, matIndex, ok := p.scene.Surface(hit.PrimID, hit.Bary)
		if !ok {
			break
		}
		if nextNormal.Dot(dir) > 0 {
			nextNormal = nextNormal.Neg()
		}
		nextMat := p.scene.Material(matIndex)
		radiance = radiance.Add(throughput.MulVec(nextMat.Emission))

		pos, normal, albedo = nextPos, nextNormal, nextMat.Albedo
	}

	if radiance.IsInvalid() {
		return types.Vec3{}
	}
	return radiance
}

// Estimate reflected direct lighting at a diffuse point using a single
// light sample.
func (p *Pipeline) sampleDirect(pos, normal, albedo types.Vec3, smp *sampler, c *counters) types.Vec3 {
	index, lightPdf := p.scene.SampleLight(smp.Float32())
	if index < 0 || lightPdf <= 0 {
		return types.Vec3{}
	}

	light := p.scene.PointLights()[index]
	irradiance := light.Irradiance(pos, normal)
	if irradiance.IsZero() {
		return types.Vec3{}
	}

	c.shadowRays++
	if p.scene.Occluded(offsetOrigin(pos, normal), light.Position) {
		return types.Vec3{}
	}
	return albedo.MulVec(irradiance).Mul(invPi / lightPdf)
}

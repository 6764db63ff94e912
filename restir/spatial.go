package restir

import (
	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

const maxSpatialParticipants = 33

// Resample pixel i against randomly chosen neighbors inside a disk of
// SpatialRadius pixels. Neighbors outside the frame or with dissimilar
// geometry are rejected.
func (p *Pipeline) spatialPixel(iter uint32, i int, src, dst []reservoir.Reservoir, c *counters) {
	rec := &p.records[p.cur][i]
	if !rec.Valid {
		dst[i] = src[i]
		return
	}

	smp := newSampler(p.cfg.Seed, p.frame, uint64(i), phaseSpatial|phase(iter)<<4)
	w, h := int(p.width), int(p.height)
	x, y := i%w, i/w
	radius := float32(p.cfg.SpatialRadius)

	var buf [maxSpatialParticipants]participant
	parts := append(buf[:0], participant{rec: rec, res: &src[i]})
	for k := uint32(0); k < p.cfg.SpatialSamples && len(parts) < maxSpatialParticipants; k++ {
		offset := sampleDisk(smp.Vec2()).Mul(radius)
		nx := x + int(math32.Round(offset[0]))
		ny := y + int(math32.Round(offset[1]))
		if nx < 0 || ny < 0 || nx >= w || ny >= h || (nx == x && ny == y) {
			c.rejectedNeighbors++
			continue
		}

		j := ny*w + nx
		neighbor := &p.records[p.cur][j]
		if !screenSimilar(rec, neighbor, p.cfg.NormalThreshold, p.cfg.DepthThreshold) {
			c.rejectedNeighbors++
			continue
		}
		parts = append(parts, participant{rec: neighbor, res: &src[j]})
	}

	out := p.resample(rec, parts, p.cfg.SpatialMis, &smp, c)
	out.Age = src[i].Age
	dst[i] = out
}

// Map a pair of uniform values to a point in the unit disk.
func sampleDisk(u types.Vec2) types.Vec2 {
	r := math32.Sqrt(u[0])
	sin, cos := math32.Sincos(2 * math32.Pi * u[1])
	return types.Vec2{r * cos, r * sin}
}

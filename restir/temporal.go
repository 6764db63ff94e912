package restir

import (
	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/chewxy/math32"
)

// Combine the reservoir of pixel i with the history of the pixel it
// reprojects to and store the result as this frame's history. Pixels
// without usable history keep the current reservoir with its age reset.
func (p *Pipeline) temporalPixel(i int, current []reservoir.Reservoir, c *counters) {
	rec := &p.records[p.cur][i]
	out := &p.history[p.cur][i]
	*out = current[i]
	out.Age = 0
	if !rec.Valid {
		return
	}

	prevIndex, ok := p.reproject(i)
	if !ok {
		c.disocclusions++
		return
	}

	prev := 1 - p.cur
	prevRec := &p.records[prev][prevIndex]
	if !historySimilar(rec, prevRec, p.cfg.NormalThreshold, p.cfg.DepthThreshold) {
		c.disocclusions++
		return
	}

	hist := p.history[prev][prevIndex]
	if hist.M == 0 {
		return
	}
	if hist.HasSample() {
		hist.Sample.Age++
		if hist.Sample.Age > p.cfg.MaxSampleAge {
			c.staleSamples++
			return
		}
	}

	curM := current[i].M
	if curM == 0 {
		curM = 1
	}
	hist.CapM(reservoir.SaturatingMul(p.cfg.MaxHistoryLength, curM))

	smp := newSampler(p.cfg.Seed, p.frame, uint64(i), phaseTemporal)
	parts := [2]participant{
		{rec: rec, res: &current[i]},
		{rec: prevRec, res: &hist},
	}
	res := p.resample(rec, parts[:], p.cfg.TemporalMis, &smp, c)
	res.Age = hist.Age + 1
	*out = res
}

// Find the previous frame pixel that pixel i reprojects to.
func (p *Pipeline) reproject(i int) (int, bool) {
	if !p.hasHistory || p.in.MotionVectors == nil {
		return 0, false
	}
	mv := p.in.MotionVectors[i]
	if mv.IsInvalid() {
		return 0, false
	}

	w, h := int(p.width), int(p.height)
	x, y := i%w, i/w
	prevU := (float32(x)+0.5)/float32(w) + mv[0]
	prevV := (float32(y)+0.5)/float32(h) + mv[1]
	if !(prevU >= 0 && prevU < 1 && prevV >= 0 && prevV < 1) {
		return 0, false
	}

	px := int(math32.Floor(prevU * float32(w)))
	py := int(math32.Floor(prevV * float32(h)))
	if px >= w || py >= h {
		return 0, false
	}
	return py*w + px, true
}

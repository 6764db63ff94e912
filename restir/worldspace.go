package restir

import (
	"github.com/achilleasa/restir/restir/reservoir"
)

// Cells are processed on a domain of this width.
const cellDomainWidth = 64

// An occupied grid cell and the range of pixels binned into it.
type activeCell struct {
	index       int32
	firstPixel  int
	pixelCount  int
	nextPixelAt int
}

// World-space reuse: pixels are binned into hash grid cells keyed by their
// quantized position and normal orientation. Each cell merges the initial
// reservoirs of its pixels with its own history, then every pixel resamples
// its initial reservoir against the cell reservoir.
func (p *Pipeline) runWorldSpace() error {
	p.stats.EvictedCells = p.grid.Evict(p.frame, p.cfg.MaxSampleAge)
	if !p.cfg.TemporalReuse {
		p.grid.Reset()
	}

	if err := p.runPhase("bin", p.binPixel); err != nil {
		return err
	}
	p.bucketPixels()

	numCells := uint32(len(p.activeCells))
	if numCells > 0 {
		rows := (numCells + cellDomainWidth - 1) / cellDomainWidth
		err := p.runDomain("cell-merge", func(i int, c *counters) {
			if i < len(p.activeCells) {
				p.mergeCell(&p.activeCells[i], c)
			}
		}, cellDomainWidth, rows)
		if err != nil {
			return err
		}
	}

	return p.runPhase("cell-resample", p.resampleFromCell)
}

func (p *Pipeline) binPixel(i int, c *counters) {
	rec := &p.records[p.cur][i]
	p.cellOf[i] = -1
	if !rec.Valid {
		return
	}

	key := reservoir.KeyFor(rec.Pos, rec.Normal, p.cfg.CellSize)
	index, ok := p.grid.Acquire(key, p.frame)
	if !ok {
		c.gridOverflows++
		return
	}
	p.cellOf[i] = int32(index)
}

// Group pixel indices by cell. Pixels are visited in order so the
// per-cell lists do not depend on how binning was scheduled.
func (p *Pipeline) bucketPixels() {
	p.activeCells = p.activeCells[:0]
	slots := make(map[int32]int)
	for _, cell := range p.cellOf {
		if cell < 0 {
			continue
		}
		slot, exists := slots[cell]
		if !exists {
			slot = len(p.activeCells)
			slots[cell] = slot
			p.activeCells = append(p.activeCells, activeCell{index: cell})
		}
		p.activeCells[slot].pixelCount++
	}

	offset := 0
	for i := range p.activeCells {
		p.activeCells[i].firstPixel = offset
		p.activeCells[i].nextPixelAt = offset
		offset += p.activeCells[i].pixelCount
	}

	p.cellPixels = p.cellPixels[:offset]
	for pixel, cell := range p.cellOf {
		if cell < 0 {
			continue
		}
		ac := &p.activeCells[slots[cell]]
		p.cellPixels[ac.nextPixelAt] = int32(pixel)
		ac.nextPixelAt++
	}
}

func (p *Pipeline) mergeCell(ac *activeCell, c *counters) {
	cell := p.grid.Cell(int(ac.index))
	key := cell.Key
	id := uint64(key.Hash()) | uint64(uint32(key.X)^uint32(key.Y)<<11^uint32(key.Z)<<22)<<32
	smp := newSampler(p.cfg.Seed, p.frame, id, phaseCellMerge)

	var out reservoir.Reservoir
	hist := cell.Reservoir
	u := smp.Float32()
	if hist.M > 0 {
		expired := false
		if hist.HasSample() {
			hist.Sample.Age++
			if hist.Sample.Age > p.cfg.MaxSampleAge {
				c.staleSamples++
				expired = true
			}
		}
		if !expired {
			hist.CapM(reservoir.SaturatingMul(p.cfg.MaxHistoryLength, uint32(ac.pixelCount)))
			out.Merge(&hist, u)
			out.Age = hist.Age + 1
		}
	}

	for _, pixel := range p.cellPixels[ac.firstPixel : ac.firstPixel+ac.pixelCount] {
		src := &p.initial[pixel]
		u := smp.Float32()
		out.Combine(src, src.TargetPdf, src.TargetPdf*src.W*float32(src.M), u)
	}

	out.Finalize(float64(out.M))
	cell.Reservoir = out
}

// Resample the pixel's initial reservoir against its cell. Cells do not
// have a single visible point so the pixel's own record stands in for the
// cell's domain when counting confidence.
func (p *Pipeline) resampleFromCell(i int, c *counters) {
	rec := &p.records[p.cur][i]
	out := &p.history[p.cur][i]
	*out = p.initial[i]
	out.Age = 0
	if !rec.Valid || p.cellOf[i] < 0 || !p.cfg.SpatialReuse {
		return
	}

	cellRes := p.grid.Cell(int(p.cellOf[i])).Reservoir
	if cellRes.M == 0 {
		return
	}
	cellRec := *rec
	if cellRes.HasSample() {
		cellRec.Pos = cellRes.Sample.VisiblePos
		cellRec.Normal = cellRes.Sample.VisibleNormal
	}

	smp := newSampler(p.cfg.Seed, p.frame, uint64(i), phaseCellResample)
	parts := [2]participant{
		{rec: rec, res: &p.initial[i]},
		{rec: &cellRec, res: &cellRes},
	}
	res := p.resample(rec, parts[:], MisConstant, &smp, c)
	res.Age = cellRes.Age
	*out = res
}

package restir

import (
	"time"

	"github.com/achilleasa/restir/log"
	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/tracer"
	"github.com/achilleasa/restir/types"
)

// The per-pixel buffers produced by a frame.
type Output struct {
	Width  uint32
	Height uint32

	// Outgoing radiance towards the camera.
	Color []types.Vec3

	// Surface albedo and world-space normal of the primary hit.
	Albedo []types.Vec3
	Normal []types.Vec3
}

func newOutput(w, h uint32) *Output {
	n := int(w) * int(h)
	return &Output{
		Width:  w,
		Height: h,
		Color:  make([]types.Vec3, n),
		Albedo: make([]types.Vec3, n),
		Normal: make([]types.Vec3, n),
	}
}

// Pipeline runs the resampling phases over a frame. Frame-to-frame state
// (pixel records and reservoirs of the previous frame, world-space cells)
// is kept between Execute calls.
type Pipeline struct {
	logger log.Logger

	cfg      Config
	warnings []Warning

	scene *scene.Scene
	pool  *tracer.Pool

	width  uint32
	height uint32

	// Double-buffered records and final reservoirs; index cur belongs to
	// the frame being rendered and 1-cur to the previous frame.
	records    [2][]PixelRecord
	history    [2][]reservoir.Reservoir
	cur        int
	hasHistory bool

	initial []reservoir.Reservoir
	spatial [2][]reservoir.Reservoir

	// World-space reuse state.
	grid        *reservoir.HashGrid
	cellOf      []int32
	activeCells []activeCell
	cellPixels  []int32

	// State for the frame being executed.
	in       *FrameInputs
	frame    uint32
	counters counters
	stats    FrameStats

	warnedNoMotion bool
}

// Create a new pipeline. The configuration is sanitized; any problems are
// logged and available through Warnings.
func New(sc *scene.Scene, pool *tracer.Pool, cfg Config) (*Pipeline, error) {
	if sc == nil {
		return nil, ErrNoScene
	}
	if !sc.IsCompiled() {
		return nil, ErrSceneNotCompiled
	}
	if pool == nil {
		return nil, ErrNoPool
	}

	p := &Pipeline{
		logger: log.New("restir"),
		scene:  sc,
		pool:   pool,
	}

	p.cfg, p.warnings = cfg.Sanitize()
	for _, w := range p.warnings {
		p.logger.Warningf("config: %s", w)
	}

	if p.cfg.Variant == WorldSpace {
		p.grid = reservoir.NewHashGrid(int(p.cfg.HashGridCapacity))
	}

	p.logger.Debugf("created %s-space pipeline (spp: %d, light samples: %d, unbiased: %t)", p.cfg.Variant, p.cfg.SamplesPerPixel, p.cfg.LightSamples, p.cfg.Unbiased)
	return p, nil
}

// Get the sanitized configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Get the warnings generated while sanitizing the configuration.
func (p *Pipeline) Warnings() []Warning {
	return p.warnings
}

// Get the statistics of the last executed frame.
func (p *Pipeline) Stats() FrameStats {
	return p.stats
}

// Get the final reservoirs of the last executed frame.
func (p *Pipeline) Reservoirs() []reservoir.Reservoir {
	return append([]reservoir.Reservoir(nil), p.history[p.cur]...)
}

// Get the pixel records of the last executed frame.
func (p *Pipeline) PixelRecords() []PixelRecord {
	return append([]PixelRecord(nil), p.records[p.cur]...)
}

// Discard all history so that the next frame starts cold.
func (p *Pipeline) Reset() {
	p.hasHistory = false
	for _, buf := range p.history {
		for i := range buf {
			buf[i].Reset()
		}
	}
	if p.grid != nil {
		p.grid.Reset()
	}
}

func (p *Pipeline) allocate(w, h uint32) {
	n := int(w) * int(h)
	p.width, p.height = w, h
	for i := 0; i < 2; i++ {
		p.records[i] = make([]PixelRecord, n)
		p.history[i] = make([]reservoir.Reservoir, n)
		p.spatial[i] = make([]reservoir.Reservoir, n)
	}
	p.initial = make([]reservoir.Reservoir, n)
	p.cellOf = make([]int32, n)
	p.cellPixels = make([]int32, 0, n)
	p.hasHistory = false
	if p.grid != nil {
		p.grid.Reset()
	}
}

// Run all phases for a frame. Only missing or malformed inputs produce an
// error; everything else is handled per pixel.
func (p *Pipeline) Execute(in *FrameInputs) (*Output, error) {
	if in == nil {
		return nil, ErrMissingInput
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	if in.Width != p.width || in.Height != p.height {
		p.logger.Debugf("allocating buffers for %dx%d frame", in.Width, in.Height)
		p.allocate(in.Width, in.Height)
	}

	p.cur = 1 - p.cur
	p.in = in
	p.frame = in.Frame
	p.counters = counters{}
	p.stats = FrameStats{Frame: in.Frame}
	defer func() { p.in = nil }()

	if in.MotionVectors == nil && p.cfg.TemporalReuse && p.cfg.Variant == ScreenSpace && !p.warnedNoMotion {
		p.logger.Warning("no motion vector buffer supplied; temporal reuse will treat every pixel as disoccluded")
		p.warnedNoMotion = true
	}

	out, err := p.runPhases(in)
	if err != nil {
		// The buffers of the failed frame are partially written and must
		// not be reused by the next one.
		p.Reset()
		return nil, err
	}

	p.hasHistory = true
	p.counters.apply(&p.stats)
	if p.grid != nil {
		p.stats.GridCells = p.grid.Len()
	}
	p.stats.Total = time.Since(start)
	return out, nil
}

func (p *Pipeline) runPhases(in *FrameInputs) (*Output, error) {
	out := newOutput(in.Width, in.Height)
	if err := p.runPhase("resolve", p.resolve); err != nil {
		return nil, err
	}
	if err := p.runPhase("candidates", p.generateCandidates); err != nil {
		return nil, err
	}

	var err error
	switch p.cfg.Variant {
	case WorldSpace:
		err = p.runWorldSpace()
	default:
		err = p.runScreenSpace()
	}
	if err != nil {
		return nil, err
	}

	final := p.history[p.cur]
	if err = p.runPhase("shade", func(i int, c *counters) { p.shadePixel(i, final, out, c) }); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) runScreenSpace() error {
	result := p.initial
	if p.cfg.SpatialReuse && p.cfg.SpatialSamples > 0 {
		for iter := uint32(0); iter < p.cfg.SpatialIterations; iter++ {
			src, dst := result, p.spatial[iter%2]
			if err := p.runPhase("spatial", func(i int, c *counters) { p.spatialPixel(iter, i, src, dst, c) }); err != nil {
				return err
			}
			result = dst
		}
	}

	if p.cfg.TemporalReuse {
		return p.runPhase("temporal", func(i int, c *counters) { p.temporalPixel(i, result, c) })
	}

	copy(p.history[p.cur], result)
	return nil
}

// Run a per-pixel function over the frame and record its duration.
func (p *Pipeline) runPhase(name string, fn func(i int, c *counters)) error {
	return p.runDomain(name, fn, p.width, p.height)
}

// Run fn over a w x h index domain using the pool. The call returns once
// all indices have been processed.
func (p *Pipeline) runDomain(name string, fn func(i int, c *counters), w, h uint32) error {
	start := time.Now()
	err := p.pool.Run(func(blockReq *tracer.BlockRequest) error {
		var local counters
		lastRow := blockReq.BlockY + blockReq.BlockH
		for y := blockReq.BlockY; y < lastRow; y++ {
			for x := uint32(0); x < blockReq.FrameW; x++ {
				fn(int(y*blockReq.FrameW+x), &local)
			}
		}
		local.flush(&p.counters)
		return nil
	}, w, h)
	p.stats.Phases = append(p.stats.Phases, PhaseTiming{Name: name, Duration: time.Since(start)})
	return err
}

func (p *Pipeline) resolve(i int, _ *counters) {
	p.records[p.cur][i] = resolvePixel(p.scene, p.in, i)
}

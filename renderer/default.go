package renderer

import (
	"time"

	"github.com/achilleasa/restir/log"
	"github.com/achilleasa/restir/restir"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/tracer"
	"github.com/achilleasa/restir/tracer/vbuffer"
)

// The default renderer runs the visibility pass and the resampling
// pipeline on a pool of cpu tracers and post-processes the result.
type defaultRenderer struct {
	logger log.Logger

	scene    *scene.Scene
	pool     *tracer.Pool
	pass     *vbuffer.Pass
	pipeline *restir.Pipeline

	accumulator *AccumulatePass
	toneMapper  *ToneMapper
	postProcess []PostProcessStage

	options Options
	frame   uint32
	stats   FrameStats
}

// Create a new renderer for the given scene. Post-process stages run in
// order after every frame.
func NewDefault(sc *scene.Scene, opts Options, postProcess ...PostProcessStage) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if sc.Camera == nil {
		return nil, ErrCameraNotDefined
	}
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return nil, ErrInvalidFrameSize
	}

	pool, err := tracer.NewCPUPool(opts.Workers, opts.Scheduler)
	if err != nil {
		return nil, err
	}

	pipeline, err := restir.New(sc, pool, opts.Config)
	if err != nil {
		pool.Close()
		return nil, err
	}

	pass := vbuffer.NewPass(pool)
	pass.DisableMotionVectors = opts.DisableMotionVectors

	sc.Camera.SetupProjection(float32(opts.FrameW) / float32(opts.FrameH))

	cfg := pipeline.Config()
	r := &defaultRenderer{
		logger:      log.New("renderer"),
		scene:       sc,
		pool:        pool,
		pass:        pass,
		pipeline:    pipeline,
		accumulator: NewAccumulatePass(cfg.Precision),
		toneMapper:  NewToneMapper(cfg),
		postProcess: postProcess,
		options:     opts,
	}
	r.logger.Noticef("using %d cpu tracers for %dx%d frames", pool.Size(), opts.FrameW, opts.FrameH)
	return r, nil
}

// Get the sanitized pipeline configuration.
func (r *defaultRenderer) Config() restir.Config {
	return r.pipeline.Config()
}

// Get the warnings raised while sanitizing the configuration.
func (r *defaultRenderer) Warnings() []restir.Warning {
	return r.pipeline.Warnings()
}

func (r *defaultRenderer) Close() {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}

func (r *defaultRenderer) Render() (*Frame, error) {
	start := time.Now()
	stats := FrameStats{Frame: r.frame}
	timeStage := func(name string, stageStart time.Time) {
		stats.Stages = append(stats.Stages, restir.PhaseTiming{Name: name, Duration: time.Since(stageStart)})
	}

	cam := r.scene.Camera
	cam.BeginFrame()
	moved := r.animateCamera()
	r.pool.BeginFrame(r.options.FrameH)

	stageStart := time.Now()
	buf, err := r.pass.Render(r.scene, r.options.FrameW, r.options.FrameH)
	if err != nil {
		return nil, err
	}
	timeStage("vbuffer", stageStart)

	stageStart = time.Now()
	out, err := r.pipeline.Execute(restir.InputsFromBuffers(buf, cam, r.frame))
	if err != nil {
		return nil, err
	}
	timeStage("restir", stageStart)

	stageStart = time.Now()
	color := out.Color
	if r.pipeline.Config().EnableAccumulation {
		if moved {
			r.accumulator.Reset()
		}
		color = r.accumulator.Accumulate(out.Color)
		stats.AccumulatedFrames = r.accumulator.Frames()
	}
	timeStage("accumulate", stageStart)

	stageStart = time.Now()
	im, exposure, err := r.toneMapper.Apply(color, r.options.FrameW, r.options.FrameH)
	if err != nil {
		return nil, err
	}
	stats.Exposure = exposure
	timeStage("tonemap", stageStart)

	frame := &Frame{
		Index:  r.frame,
		Width:  r.options.FrameW,
		Height: r.options.FrameH,
		Color:  color,
		Albedo: out.Albedo,
		Normal: out.Normal,
		Image:  im,
	}

	stageStart = time.Now()
	for _, stage := range r.postProcess {
		if err = stage(frame); err != nil {
			return nil, err
		}
	}
	timeStage("post-process", stageStart)

	stats.Tracers = r.pool.Stats()
	stats.Pipeline = r.pipeline.Stats()
	stats.RenderTime = time.Since(start)
	r.stats = stats
	r.frame++
	return frame, nil
}

// Move the camera according to the configured motion. The first frame is
// always rendered from the initial position. Returns true if the camera moved.
func (r *defaultRenderer) animateCamera() bool {
	if r.frame == 0 || r.options.MotionSpeed == 0 {
		return false
	}

	cam := r.scene.Camera
	switch r.options.Motion {
	case MotionOrbit:
		cam.Orbit(r.options.MotionSpeed)
	case MotionStrafe:
		cam.Move(scene.Right, r.options.MotionSpeed)
	case MotionDolly:
		cam.Move(scene.Forward, r.options.MotionSpeed)
	default:
		return false
	}
	return true
}

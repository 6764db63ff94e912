package restir

import (
	"errors"
	"math"
	"testing"

	"github.com/achilleasa/restir/restir/reservoir"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/tracer"
	"github.com/achilleasa/restir/tracer/vbuffer"
	"github.com/achilleasa/restir/types"
)

type testRig struct {
	sc   *scene.Scene
	pool *tracer.Pool
	pass *vbuffer.Pass
	w, h uint32
}

func newTestRig(t *testing.T, sceneName string, workers int, w, h uint32) *testRig {
	sc, err := scene.LoadBuiltin(sceneName)
	if err != nil {
		t.Fatal(err)
	}
	sc.Camera.SetupProjection(float32(w) / float32(h))

	pool, err := tracer.NewCPUPool(workers, tracer.NaiveScheduler())
	if err != nil {
		t.Fatal(err)
	}
	return &testRig{sc: sc, pool: pool, pass: vbuffer.NewPass(pool), w: w, h: h}
}

func (r *testRig) Close() {
	r.pool.Close()
}

func (r *testRig) inputs(t *testing.T, frame uint32) *FrameInputs {
	r.sc.Camera.BeginFrame()
	buf, err := r.pass.Render(r.sc, r.w, r.h)
	if err != nil {
		t.Fatal(err)
	}
	return InputsFromBuffers(buf, r.sc.Camera, frame)
}

func (r *testRig) pipeline(t *testing.T, cfg Config) *Pipeline {
	p, err := New(r.sc, r.pool, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// Direct lighting from all point lights at the record's visible point.
func analyticDirect(sc *scene.Scene, rec *PixelRecord) types.Vec3 {
	var total types.Vec3
	for _, light := range sc.PointLights() {
		if sc.Occluded(offsetOrigin(rec.Pos, rec.Normal), light.Position) {
			continue
		}
		total = total.Add(rec.Albedo.MulVec(light.Irradiance(rec.Pos, rec.Normal)).Mul(invPi))
	}
	return total
}

func approxEqual(a, b types.Vec3, relTolerance float64) bool {
	for i := 0; i < 3; i++ {
		diff := math.Abs(float64(a[i] - b[i]))
		if diff > relTolerance*math.Abs(float64(b[i]))+1e-6 {
			return false
		}
	}
	return true
}

func TestNewErrors(t *testing.T) {
	pool, err := tracer.NewCPUPool(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	compiled, err := scene.LoadBuiltin("occluder")
	if err != nil {
		t.Fatal(err)
	}

	type spec struct {
		sc     *scene.Scene
		pool   *tracer.Pool
		expErr error
	}
	specs := []spec{
		{nil, pool, ErrNoScene},
		{scene.NewScene("empty"), pool, ErrSceneNotCompiled},
		{compiled, nil, ErrNoPool},
	}

	for index, s := range specs {
		if _, err := New(s.sc, s.pool, DefaultConfig()); !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}
	}
}

func TestNewSanitizesConfig(t *testing.T) {
	rig := newTestRig(t, "occluder", 1, 8, 8)
	defer rig.Close()

	cfg := DefaultConfig()
	cfg.SpatialSamples = 100
	cfg.DepthThreshold = 4
	p := rig.pipeline(t, cfg)

	if got := p.Config().SpatialSamples; got != 32 {
		t.Fatalf("expected spatial samples to be clamped to 32; got %d", got)
	}
	if got := p.Config().DepthThreshold; got != 1 {
		t.Fatalf("expected depth threshold to be clamped to 1; got %f", got)
	}
	if got := len(p.Warnings()); got != 2 {
		t.Fatalf("expected 2 warnings; got %d", got)
	}
}

func TestExecuteInputErrors(t *testing.T) {
	rig := newTestRig(t, "occluder", 2, 8, 8)
	defer rig.Close()
	p := rig.pipeline(t, DefaultConfig())

	type spec struct {
		mutate func(in *FrameInputs) *FrameInputs
		expErr error
	}
	specs := []spec{
		{func(in *FrameInputs) *FrameInputs { return nil }, ErrMissingInput},
		{func(in *FrameInputs) *FrameInputs { in.Camera = nil; return in }, ErrMissingInput},
		{func(in *FrameInputs) *FrameInputs { in.VBuffer = nil; return in }, ErrMissingInput},
		{func(in *FrameInputs) *FrameInputs { in.Normals = nil; return in }, ErrMissingInput},
		{func(in *FrameInputs) *FrameInputs { in.Depth = in.Depth[:10]; return in }, ErrInputSize},
		{func(in *FrameInputs) *FrameInputs { in.MotionVectors = in.MotionVectors[:1]; return in }, ErrInputSize},
		{func(in *FrameInputs) *FrameInputs { in.DirectLighting = make([]types.Vec3, 3); return in }, ErrInputSize},
		{func(in *FrameInputs) *FrameInputs { in.Width = 0; return in }, ErrInputSize},
	}

	for index, s := range specs {
		in := s.mutate(rig.inputs(t, 0))
		if _, err := p.Execute(in); !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}
	}
}

func TestOccluderMatchesAnalyticDirectLighting(t *testing.T) {
	type spec struct {
		unbiased bool
		spatial  bool
		temporal bool
		mis      MisKind
	}
	specs := []spec{
		{true, true, true, MisTalbot},
		{true, true, true, MisPairwise},
		{true, true, false, MisPairwise},
		{true, true, true, MisConstant},
		{true, false, false, MisConstant},
		{false, false, false, MisConstant},
		{false, false, true, MisConstant},
	}

	rig := newTestRig(t, "occluder", 3, 48, 48)
	defer rig.Close()

	for index, s := range specs {
		cfg := DefaultConfig()
		cfg.MaxBounces = 0
		cfg.Unbiased = s.unbiased
		cfg.SpatialReuse = s.spatial
		cfg.SpatialSamples = 8
		cfg.TemporalReuse = s.temporal
		cfg.SpatialMis = s.mis
		cfg.TemporalMis = s.mis
		p := rig.pipeline(t, cfg)

		for frame := uint32(0); frame < 3; frame++ {
			out, err := p.Execute(rig.inputs(t, frame))
			if err != nil {
				t.Fatalf("[spec %d] frame %d: unexpected error: %v", index, frame, err)
			}

			var lit, shadowed int
			for i, rec := range p.PixelRecords() {
				if !rec.Valid {
					continue
				}
				exp := analyticDirect(rig.sc, &rec)
				got := out.Color[i]
				if exp.IsZero() {
					shadowed++
					if !got.IsZero() {
						t.Fatalf("[spec %d] frame %d: expected shadowed pixel %d to be black; got %v", index, frame, i, got)
					}
					continue
				}
				lit++
				if !approxEqual(got, exp, 1e-3) {
					t.Fatalf("[spec %d] frame %d: expected pixel %d to be %v; got %v", index, frame, i, exp, got)
				}
			}

			if lit == 0 || shadowed == 0 {
				t.Fatalf("[spec %d] expected both lit and shadowed pixels; got %d lit, %d shadowed", index, lit, shadowed)
			}
		}
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	type spec struct {
		sceneName string
		variant   Variant
	}
	specs := []spec{
		{"cornell", ScreenSpace},
		{"corridor", ScreenSpace},
		{"cornell", WorldSpace},
	}

	for index, s := range specs {
		cfg := DefaultConfig()
		cfg.MaxBounces = 1
		cfg.Variant = s.variant
		cfg.Seed = 1234

		rig := newTestRig(t, s.sceneName, 1, 32, 24)
		pool4, err := tracer.NewCPUPool(4, tracer.PerfectScheduler())
		if err != nil {
			t.Fatal(err)
		}

		serial := rig.pipeline(t, cfg)
		parallel, err := New(rig.sc, pool4, cfg)
		if err != nil {
			t.Fatal(err)
		}

		for frame := uint32(0); frame < 3; frame++ {
			in := rig.inputs(t, frame)
			outA, err := serial.Execute(in)
			if err != nil {
				t.Fatal(err)
			}
			outB, err := parallel.Execute(in)
			if err != nil {
				t.Fatal(err)
			}

			for i := range outA.Color {
				if outA.Color[i] != outB.Color[i] {
					t.Fatalf("[spec %d] frame %d: pixel %d differs: %v vs %v", index, frame, i, outA.Color[i], outB.Color[i])
				}
			}
			resA, resB := serial.Reservoirs(), parallel.Reservoirs()
			for i := range resA {
				if resA[i] != resB[i] {
					t.Fatalf("[spec %d] frame %d: reservoir %d differs:\n%+v\n%+v", index, frame, i, resA[i], resB[i])
				}
			}
		}

		pool4.Close()
		rig.Close()
	}
}

func TestDisocclusionResetsAge(t *testing.T) {
	rig := newTestRig(t, "cornell", 2, 24, 24)
	defer rig.Close()

	cfg := DefaultConfig()
	cfg.MaxBounces = 1
	p := rig.pipeline(t, cfg)

	countValid := func() int {
		var n int
		for _, rec := range p.PixelRecords() {
			if rec.Valid {
				n++
			}
		}
		return n
	}

	// Static camera: history accumulates.
	for frame := uint32(0); frame < 3; frame++ {
		if _, err := p.Execute(rig.inputs(t, frame)); err != nil {
			t.Fatal(err)
		}
	}
	records := p.PixelRecords()
	for i, res := range p.Reservoirs() {
		if records[i].Valid && res.Age != 2 {
			t.Fatalf("expected pixel %d to carry 2 frames of history; got %d", i, res.Age)
		}
	}

	type spec struct {
		name   string
		mutate func(in *FrameInputs)
	}
	specs := []spec{
		{"out of bounds motion", func(in *FrameInputs) {
			for i := range in.MotionVectors {
				in.MotionVectors[i] = types.Vec2{2, 2}
			}
		}},
		{"invalid motion", func(in *FrameInputs) {
			for i := range in.MotionVectors {
				in.MotionVectors[i] = types.Vec2{float32(math.NaN()), 0}
			}
		}},
		{"no motion buffer", func(in *FrameInputs) {
			in.MotionVectors = nil
		}},
	}

	frame := uint32(3)
	for index, s := range specs {
		in := rig.inputs(t, frame)
		s.mutate(in)
		if _, err := p.Execute(in); err != nil {
			t.Fatalf("[spec %d] %s: unexpected error: %v", index, s.name, err)
		}
		frame++

		for i, res := range p.Reservoirs() {
			if res.Age != 0 {
				t.Fatalf("[spec %d] %s: expected pixel %d age to be reset; got %d", index, s.name, i, res.Age)
			}
		}
		if got, exp := p.Stats().Disocclusions, uint64(countValid()); got != exp {
			t.Fatalf("[spec %d] %s: expected %d disocclusions; got %d", index, s.name, exp, got)
		}
	}

	// Reset discards history even when motion is valid.
	if _, err := p.Execute(rig.inputs(t, frame)); err != nil {
		t.Fatal(err)
	}
	p.Reset()
	if _, err := p.Execute(rig.inputs(t, frame+1)); err != nil {
		t.Fatal(err)
	}
	for i, res := range p.Reservoirs() {
		if res.Age != 0 {
			t.Fatalf("expected pixel %d age to be 0 after reset; got %d", i, res.Age)
		}
	}
}

func TestSpatialReuseRejectsDissimilarNeighbors(t *testing.T) {
	const w, h = 16, 16
	cfg := DefaultConfig()
	cfg.Unbiased = false
	cfg.SpatialMis = MisConstant
	cfg.SpatialSamples = 32
	cfg.SpatialRadius = 8

	p := &Pipeline{cfg: cfg, width: w, height: h}
	records := make([]PixelRecord, w*h)
	src := make([]reservoir.Reservoir, w*h)
	for i := range records {
		// Left and right halves face the camera at very different depths.
		region := int32(0)
		depth := float32(5)
		if i%w >= w/2 {
			region, depth = 1, 10
		}
		records[i] = PixelRecord{
			Valid:      true,
			Pos:        types.Vec3{float32(i % w), 0, float32(i / w)},
			Normal:     types.Vec3{0, 1, 0},
			ViewNormal: types.Vec3{0, 0, 1},
			Depth:      depth,
			Albedo:     types.Splat3(0.5),
		}

		// Both regions hold a sample that every pixel could use.
		sample := reservoir.Sample{
			Kind:       reservoir.Light,
			VisiblePos: records[i].Pos,
			Pos:        types.Vec3{8, 10, 8},
			Radiance:   types.Splat3(10),
			LightIndex: region,
		}
		_, targetPdf := evalTarget(&records[i], &sample)
		src[i].Update(sample, targetPdf, targetPdf, 0)
		src[i].Finalize(1)
	}
	p.records[0] = records

	dst := make([]reservoir.Reservoir, w*h)
	var c counters
	for i := range records {
		p.spatialPixel(0, i, src, dst, &c)
	}

	for i, res := range dst {
		exp := int32(0)
		if i%w >= w/2 {
			exp = 1
		}
		if !res.HasSample() {
			t.Fatalf("expected pixel %d to keep a sample", i)
		}
		if res.Sample.LightIndex != exp {
			t.Fatalf("expected pixel %d to only reuse samples from region %d; got %d", i, exp, res.Sample.LightIndex)
		}
		if res.M < 2 {
			t.Fatalf("expected pixel %d to merge at least one similar neighbor; got M = %d", i, res.M)
		}
	}
	if c.rejectedNeighbors == 0 {
		t.Fatal("expected some neighbors to be rejected")
	}
}

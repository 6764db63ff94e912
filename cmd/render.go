package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/achilleasa/restir/metrics"
	"github.com/achilleasa/restir/renderer"
	"github.com/achilleasa/restir/scene"
	"github.com/achilleasa/restir/tracer"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Grace period for in-flight metric scrapes on shutdown.
const metricsShutdownTimeout = 2 * time.Second

// Render a sequence of frames.
func RenderFrames(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing scene name argument")
	}

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	sc, err := scene.LoadBuiltin(ctx.Args().First())
	if err != nil {
		return err
	}

	var postProcess []renderer.PostProcessStage
	if out := ctx.String("out"); out != "" {
		postProcess = append(postProcess, renderer.SaveFrame(out))
		if ctx.Bool("aux") {
			postProcess = append(postProcess, renderer.SaveAuxBuffers(out))
		}
	}

	r, err := renderer.NewDefault(sc, opts, postProcess...)
	if err != nil {
		return err
	}
	defer r.Close()

	collector := metrics.NewCollector()
	collector.ObserveConfigWarnings(len(r.Warnings()))
	if addr := ctx.String("metrics-addr"); addr != "" {
		srv, err := collector.Serve(addr)
		if err != nil {
			return err
		}
		defer srv.Close(metricsShutdownTimeout)
	}

	var total time.Duration
	for frame := uint32(0); frame < opts.NumFrames; frame++ {
		if _, err = r.Render(); err != nil {
			return err
		}
		stats := r.Stats()
		collector.ObserveFrame(stats)
		total += stats.RenderTime
		logger.Infof("rendered frame %d in %s", stats.Frame, stats.RenderTime)
	}

	// Display stats
	displayFrameStats(r.Stats())
	logger.Noticef("rendered %d frame(s) in %s", opts.NumFrames, total)

	if ctx.Bool("wait") && ctx.String("metrics-addr") != "" {
		logger.Notice("waiting for interrupt; metrics remain available")
		waitForInterrupt()
	}
	return nil
}

// Build renderer options from command flags.
func renderOptions(ctx *cli.Context) (renderer.Options, error) {
	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return renderer.Options{}, err
	}

	motion, err := renderer.ParseCameraMotion(ctx.String("motion"))
	if err != nil {
		return renderer.Options{}, err
	}

	scheduler, err := blockScheduler(ctx.String("scheduler"))
	if err != nil {
		return renderer.Options{}, err
	}

	workers := ctx.Int("workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	opts := renderer.Options{
		FrameW:               uint32(ctx.Int("width")),
		FrameH:               uint32(ctx.Int("height")),
		NumFrames:            uint32(ctx.Int("frames")),
		Motion:               motion,
		MotionSpeed:          float32(ctx.Float64("speed")),
		Config:               cfg,
		Workers:              workers,
		Scheduler:            scheduler,
		DisableMotionVectors: ctx.Bool("no-mvec"),
	}

	if opts.NumFrames == 0 {
		logger.Notice("frame count is zero; rendering a single frame")
		opts.NumFrames = 1
	}
	return opts, nil
}

func blockScheduler(name string) (tracer.BlockScheduler, error) {
	switch name {
	case "naive":
		return tracer.NaiveScheduler(), nil
	case "perfect":
		return tracer.PerfectScheduler(), nil
	}
	return nil, fmt.Errorf("unknown block scheduler %q", name)
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tracer", "Block height", "% of frame", "Render time"})
	for _, stat := range stats.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			fmt.Sprintf("%s", stat.RenderTime),
		})
	}
	table.SetFooter([]string{"", "", "TOTAL", fmt.Sprintf("%s", stats.RenderTime)})
	table.Render()

	p := stats.Pipeline
	table = tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Counter", "Value"})
	table.AppendBulk([][]string{
		{"Candidates", fmt.Sprint(p.Candidates)},
		{"Dropped samples", fmt.Sprint(p.DroppedSamples)},
		{"Rejected neighbors", fmt.Sprint(p.RejectedNeighbors)},
		{"Rejected jacobians", fmt.Sprint(p.RejectedJacobians)},
		{"Disocclusions", fmt.Sprint(p.Disocclusions)},
		{"Stale samples", fmt.Sprint(p.StaleSamples)},
		{"Shadow rays", fmt.Sprint(p.ShadowRays)},
		{"Visibility rays", fmt.Sprint(p.VisibilityRays)},
		{"Invalidated samples", fmt.Sprint(p.InvalidatedSamples)},
		{"Grid cells", fmt.Sprintf("%d (%d evicted, %d overflows)", p.GridCells, p.EvictedCells, p.GridOverflows)},
		{"Accumulated frames", fmt.Sprint(stats.AccumulatedFrames)},
		{"Exposure", fmt.Sprintf("%.3f", stats.Exposure)},
	})
	table.Render()

	table = tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Time"})
	for _, stage := range stats.Stages {
		table.Append([]string{stage.Name, stage.Duration.String()})
	}
	for _, phase := range p.Phases {
		table.Append([]string{"  restir/" + phase.Name, phase.Duration.String()})
	}
	table.Render()

	logger.Noticef("frame %d statistics\n%s", stats.Frame, buf.String())
}

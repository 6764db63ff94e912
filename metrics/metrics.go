package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/achilleasa/restir/log"
	"github.com/achilleasa/restir/renderer"
)

const namespace = "restir"

var durationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// Collector exports per-frame renderer statistics. Each collector owns a
// private registry so several renderers can coexist in one process.
type Collector struct {
	logger   log.Logger
	registry *prometheus.Registry

	frames             prometheus.Counter
	candidates         prometheus.Counter
	droppedSamples     prometheus.Counter
	rejectedNeighbors  prometheus.Counter
	rejectedJacobians  prometheus.Counter
	disocclusions      prometheus.Counter
	staleSamples       prometheus.Counter
	visibilityRays     prometheus.Counter
	shadowRays         prometheus.Counter
	invalidatedSamples prometheus.Counter
	gridOverflows      prometheus.Counter
	configWarnings     prometheus.Counter

	gridCells         prometheus.Gauge
	exposure          prometheus.Gauge
	accumulatedFrames prometheus.Gauge

	frameDuration prometheus.Histogram
	phaseDuration *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
}

// Create a new collector.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Collector{
		logger:   log.New("metrics"),
		registry: reg,

		frames:             counter("frames_total", "Number of rendered frames"),
		candidates:         counter("candidates_total", "Candidate samples generated"),
		droppedSamples:     counter("dropped_samples_total", "Candidate samples dropped for having an invalid weight"),
		rejectedNeighbors:  counter("rejected_neighbors_total", "Spatial neighbors rejected by bounds or similarity tests"),
		rejectedJacobians:  counter("rejected_jacobians_total", "Reused samples rejected by the reconnection jacobian test"),
		disocclusions:      counter("disocclusions_total", "Pixels whose temporal history was discarded"),
		staleSamples:       counter("stale_samples_total", "History samples dropped for exceeding the max sample age"),
		visibilityRays:     counter("visibility_rays_total", "Visibility rays traced for reused and final samples"),
		shadowRays:         counter("shadow_rays_total", "Shadow rays traced during candidate generation"),
		invalidatedSamples: counter("invalidated_samples_total", "Selected samples found occluded before shading"),
		gridOverflows:      counter("grid_overflows_total", "Pixels that could not be binned into the world-space grid"),
		configWarnings:     counter("config_warnings_total", "Configuration options replaced by defaults or clamped"),

		gridCells:         gauge("grid_cells", "Occupied world-space grid cells"),
		exposure:          gauge("exposure", "Linear exposure used by the tone mapper"),
		accumulatedFrames: gauge("accumulated_frames", "Frames merged by the accumulation pass"),

		frameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Total frame render time",
			Buckets:   durationBuckets,
		}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of resampling pipeline phases",
			Buckets:   durationBuckets,
		}, []string{"phase"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of renderer stages",
			Buckets:   durationBuckets,
		}, []string{"stage"}),
	}
}

// Get the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record the statistics of a rendered frame.
func (c *Collector) ObserveFrame(stats renderer.FrameStats) {
	p := stats.Pipeline

	c.frames.Inc()
	c.candidates.Add(float64(p.Candidates))
	c.droppedSamples.Add(float64(p.DroppedSamples))
	c.rejectedNeighbors.Add(float64(p.RejectedNeighbors))
	c.rejectedJacobians.Add(float64(p.RejectedJacobians))
	c.disocclusions.Add(float64(p.Disocclusions))
	c.staleSamples.Add(float64(p.StaleSamples))
	c.visibilityRays.Add(float64(p.VisibilityRays))
	c.shadowRays.Add(float64(p.ShadowRays))
	c.invalidatedSamples.Add(float64(p.InvalidatedSamples))
	c.gridOverflows.Add(float64(p.GridOverflows))

	c.gridCells.Set(float64(p.GridCells))
	c.exposure.Set(float64(stats.Exposure))
	c.accumulatedFrames.Set(float64(stats.AccumulatedFrames))

	c.frameDuration.Observe(stats.RenderTime.Seconds())
	for _, phase := range p.Phases {
		c.phaseDuration.WithLabelValues(phase.Name).Observe(phase.Duration.Seconds())
	}
	for _, stage := range stats.Stages {
		c.stageDuration.WithLabelValues(stage.Name).Observe(stage.Duration.Seconds())
	}
}

// Record configuration warnings.
func (c *Collector) ObserveConfigWarnings(count int) {
	c.configWarnings.Add(float64(count))
}

// Get an HTTP handler exposing the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Server exposes metrics over HTTP until closed.
type Server struct {
	srv  *http.Server
	addr net.Addr
	done chan struct{}
}

// Start serving metrics on addr under /metrics. The listener is bound
// before returning so that address errors are reported to the caller.
func (c *Collector) Serve(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: unable to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	s := &Server{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr: ln.Addr(),
		done: make(chan struct{}),
	}
	c.logger.Noticef("serving metrics on http://%s/metrics", s.addr)
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorf("metrics server failed: %v", err)
		}
	}()
	return s, nil
}

// Get the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown the server, waiting up to timeout for in-flight scrapes.
func (s *Server) Close(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}

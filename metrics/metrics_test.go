package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/achilleasa/restir/renderer"
	"github.com/achilleasa/restir/restir"
)

func testStats() renderer.FrameStats {
	return renderer.FrameStats{
		Pipeline: restir.FrameStats{
			Candidates:        100,
			DroppedSamples:    7,
			RejectedNeighbors: 12,
			Disocclusions:     3,
			VisibilityRays:    40,
			GridCells:         9,
			Phases: []restir.PhaseTiming{
				{Name: "candidates", Duration: 2 * time.Millisecond},
				{Name: "spatial", Duration: time.Millisecond},
			},
		},
		Stages:            []restir.PhaseTiming{{Name: "vbuffer", Duration: time.Millisecond}},
		AccumulatedFrames: 4,
		Exposure:          0.5,
		RenderTime:        10 * time.Millisecond,
	}
}

func TestObserveFrame(t *testing.T) {
	c := NewCollector()
	c.ObserveFrame(testStats())
	c.ObserveFrame(testStats())
	c.ObserveConfigWarnings(2)

	type spec struct {
		name string
		got  float64
		exp  float64
	}
	specs := []spec{
		{"frames", testutil.ToFloat64(c.frames), 2},
		{"candidates", testutil.ToFloat64(c.candidates), 200},
		{"dropped", testutil.ToFloat64(c.droppedSamples), 14},
		{"rejected neighbors", testutil.ToFloat64(c.rejectedNeighbors), 24},
		{"disocclusions", testutil.ToFloat64(c.disocclusions), 6},
		{"visibility rays", testutil.ToFloat64(c.visibilityRays), 80},
		{"config warnings", testutil.ToFloat64(c.configWarnings), 2},
		{"grid cells", testutil.ToFloat64(c.gridCells), 9},
		{"exposure", testutil.ToFloat64(c.exposure), 0.5},
		{"accumulated frames", testutil.ToFloat64(c.accumulatedFrames), 4},
	}

	for index, s := range specs {
		if s.got != s.exp {
			t.Fatalf("[spec %d] expected %s to be %f; got %f", index, s.name, s.exp, s.got)
		}
	}

	if got := testutil.CollectAndCount(c.phaseDuration); got != 2 {
		t.Fatalf("expected 2 phase series; got %d", got)
	}
	if got := testutil.CollectAndCount(c.stageDuration); got != 1 {
		t.Fatalf("expected 1 stage series; got %d", got)
	}
}

func TestCollectorsAreIsolated(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.ObserveFrame(testStats())

	if got := testutil.ToFloat64(b.frames); got != 0 {
		t.Fatalf("expected second collector to be unaffected; got %f frames", got)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.ObserveFrame(testStats())

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	res, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"restir_frames_total 1", "restir_candidates_total 100", `restir_phase_duration_seconds_count{phase="spatial"} 1`} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected scrape output to contain %q", name)
		}
	}
}

func TestServe(t *testing.T) {
	c := NewCollector()
	c.ObserveFrame(testStats())

	srv, err := c.Serve("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close(time.Second)

	res, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "restir_frames_total 1") {
		t.Fatalf("expected scrape output to contain the frame counter; got:\n%s", body)
	}

	type spec struct {
		addr string
	}
	specs := []spec{
		// Already bound by the running server.
		{srv.Addr().String()},
		{"127.0.0.1:-1"},
	}

	for index, s := range specs {
		other, err := NewCollector().Serve(s.addr)
		if err == nil {
			other.Close(time.Second)
			t.Fatalf("[spec %d] expected an error when serving on %q", index, s.addr)
		}
		if !strings.Contains(err.Error(), "unable to listen") {
			t.Fatalf("[spec %d] expected a listen error; got %v", index, err)
		}
	}
}

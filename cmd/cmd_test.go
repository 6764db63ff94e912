package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/restir/asset/config"
	"github.com/achilleasa/restir/restir"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := NewApp()
	app.Writer = &buf
	err := app.Run(append([]string{"restir"}, args...))
	return buf.String(), err
}

func TestParseOverride(t *testing.T) {
	type spec struct {
		in       string
		expKey   string
		expValue interface{}
		expErr   bool
	}
	specs := []spec{
		{"maxBounces=3", "maxBounces", 3, false},
		{"normalThreshold=0.5", "normalThreshold", 0.5, false},
		{" unbiased = false", "unbiased", false, false},
		{"variant=world", "variant", "world", false},
		{"maxBounces", "", nil, true},
		{"=3", "", nil, true},
	}

	for index, s := range specs {
		key, value, err := parseOverride(s.in)
		if s.expErr {
			if err == nil {
				t.Fatalf("[spec %d] expected an error", index)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if key != s.expKey || value != s.expValue {
			t.Fatalf("[spec %d] expected %s=%v; got %s=%v", index, s.expKey, s.expValue, key, value)
		}
	}
}

func TestShowConfigExport(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "opts.toml")
	if err := os.WriteFile(doc, []byte("maxBounces = 4\nspatialSamples = 99\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "show-config", "--config", doc, "--set", "unbiased=false", "--seed", "7", "--export", "json")
	if err != nil {
		t.Fatal(err)
	}

	opts, err := config.Decode(strings.NewReader(out), config.JSON)
	if err != nil {
		t.Fatalf("could not decode exported config: %v\n%s", err, out)
	}
	cfg, warnings := restir.ParseConfig(opts)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if cfg.MaxBounces != 4 || cfg.SpatialSamples != 32 || cfg.Unbiased || cfg.Seed != 7 {
		t.Fatalf("unexpected exported config %+v", cfg)
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "frame-%02d.png")

	_, err := runApp(t, "render",
		"--width", "12", "--height", "8", "--frames", "2",
		"--workers", "2", "--scheduler", "naive", "--motion", "orbit",
		"--set", "maxBounces=0", "--out", pattern, "--aux",
		"occluder",
	)
	if err != nil {
		t.Fatal(err)
	}

	for frame := 0; frame < 2; frame++ {
		for _, suffix := range []string{"", "-albedo", "-normal"} {
			path := filepath.Join(dir, fmt.Sprintf("frame-%02d%s.png", frame, suffix))
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("expected %s to exist: %v", path, err)
			}
		}
	}
}

func TestCommandErrors(t *testing.T) {
	type spec struct {
		args   []string
		expErr string
	}
	specs := []spec{
		{[]string{"render"}, "missing scene name"},
		{[]string{"render", "--scheduler", "random", "occluder"}, "unknown block scheduler"},
		{[]string{"render", "--motion", "spin", "occluder"}, "camera motion"},
		{[]string{"render", "--width", "8", "--height", "8", "--out", "", "atrium"}, "unknown"},
		{[]string{"render", "--set", "bogus", "occluder"}, "invalid option override"},
		{[]string{"render", "--width", "8", "--height", "8", "--metrics-addr", "127.0.0.1:-1", "occluder"}, "unable to listen"},
		{[]string{"scene-info"}, "missing scene name"},
		{[]string{"show-config", "--config", "opts.ini"}, "no such file"},
		{[]string{"show-config", "--export", "xml"}, "unsupported document format"},
		{[]string{"--log-level", "loud", "list-scenes"}, "unknown level"},
	}

	for index, s := range specs {
		_, err := runApp(t, s.args...)
		if err == nil || !strings.Contains(err.Error(), s.expErr) {
			t.Fatalf("[spec %d] expected error containing %q; got %v", index, s.expErr, err)
		}
	}
}

func TestInfoCommands(t *testing.T) {
	for _, args := range [][]string{{"list-scenes"}, {"scene-info", "cornell"}, {"show-config"}} {
		if _, err := runApp(t, args...); err != nil {
			t.Fatalf("%v: unexpected error: %v", args, err)
		}
	}
}

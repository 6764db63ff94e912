package restir

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, warnings := ParseConfig(nil)
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings; got %v", warnings)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected default config; got %+v", cfg)
	}
}

func TestParseConfigValues(t *testing.T) {
	cfg, warnings := ParseConfig(map[string]interface{}{
		"samplesPerPixel": 4,
		"maxJacobian":     25.5,
		"unbiased":        false,
		"spatialMisKind":  "Constant",
		"variant":         " world ",
		"seed":            uint64(1<<63 + 5),
		"lightSamples":    json.Number("3"),
		"temporalReuse":   0,
	})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings; got %v", warnings)
	}

	if cfg.SamplesPerPixel != 4 {
		t.Fatalf("expected samplesPerPixel to be 4; got %d", cfg.SamplesPerPixel)
	}
	if cfg.MaxJacobian != 25.5 {
		t.Fatalf("expected maxJacobian to be 25.5; got %f", cfg.MaxJacobian)
	}
	if cfg.Unbiased || cfg.TemporalReuse {
		t.Fatal("expected unbiased and temporalReuse to be disabled")
	}
	if cfg.SpatialMis != MisConstant {
		t.Fatalf("expected constant spatial mis; got %s", cfg.SpatialMis)
	}
	if cfg.Variant != WorldSpace {
		t.Fatalf("expected world variant; got %s", cfg.Variant)
	}
	if cfg.Seed != 1<<63+5 {
		t.Fatalf("expected seed to survive without rounding; got %d", cfg.Seed)
	}
	if cfg.LightSamples != 3 {
		t.Fatalf("expected lightSamples to be 3; got %d", cfg.LightSamples)
	}
}

func TestParseConfigSeed(t *testing.T) {
	type spec struct {
		value   interface{}
		expSeed uint64
	}
	specs := []spec{
		{json.Number("18446744073709551557"), 18446744073709551557},
		{json.Number("9007199254740993"), 1<<53 + 1},
		{json.Number("1e3"), 1000},
		{uint32(7), 7},
		{float64(42), 42},
	}

	for index, s := range specs {
		cfg, warnings := ParseConfig(map[string]interface{}{"seed": s.value})
		if len(warnings) != 0 {
			t.Fatalf("[spec %d] expected no warnings; got %v", index, warnings)
		}
		if cfg.Seed != s.expSeed {
			t.Fatalf("[spec %d] expected seed %d; got %d", index, s.expSeed, cfg.Seed)
		}
	}
}

func TestParseConfigMisKinds(t *testing.T) {
	type spec struct {
		spatial, temporal string
		expSpatial        MisKind
		expTemporal       MisKind
	}
	specs := []spec{
		{"pairwise", "talbot", MisPairwise, MisTalbot},
		{"Talbot", "PAIRWISE", MisTalbot, MisPairwise},
		{"constant", "constant", MisConstant, MisConstant},
	}

	for index, s := range specs {
		cfg, warnings := ParseConfig(map[string]interface{}{"spatialMisKind": s.spatial, "temporalMisKind": s.temporal})
		if len(warnings) != 0 {
			t.Fatalf("[spec %d] expected no warnings; got %v", index, warnings)
		}
		if cfg.SpatialMis != s.expSpatial || cfg.TemporalMis != s.expTemporal {
			t.Fatalf("[spec %d] expected %s/%s; got %s/%s", index, s.expSpatial, s.expTemporal, cfg.SpatialMis, cfg.TemporalMis)
		}
	}

	def := DefaultConfig()
	if def.SpatialMis != MisPairwise || def.TemporalMis != MisTalbot {
		t.Fatalf("expected pairwise spatial and talbot temporal mis by default; got %s/%s", def.SpatialMis, def.TemporalMis)
	}
}

func TestParseConfigWarnings(t *testing.T) {
	type spec struct {
		key     string
		value   interface{}
		check   func(Config) bool
		message string
	}
	specs := []spec{
		{"samplesPerPixel", 0, func(c Config) bool { return c.SamplesPerPixel == 1 }, "out of range"},
		{"samplesPerPixel", 1000, func(c Config) bool { return c.SamplesPerPixel == 64 }, "out of range"},
		{"samplesPerPixel", 2.5, func(c Config) bool { return c.SamplesPerPixel == 2 }, "not an integer"},
		{"samplesPerPixel", "lots", func(c Config) bool { return c.SamplesPerPixel == 1 }, "expected an integer"},
		{"normalThreshold", 1.5, func(c Config) bool { return c.NormalThreshold == 1 }, "out of range"},
		{"depthThreshold", -1, func(c Config) bool { return c.DepthThreshold == 0 }, "out of range"},
		{"unbiased", "yes", func(c Config) bool { return c.Unbiased }, "expected a boolean"},
		{"temporalMisKind", "balance", func(c Config) bool { return c.TemporalMis == MisTalbot }, "expected one of"},
		{"seed", -3, func(c Config) bool { return c.Seed == 1 }, "out of range"},
		{"noSuchOption", 1, func(c Config) bool { return c == DefaultConfig() }, "unknown option"},
	}

	for index, s := range specs {
		cfg, warnings := ParseConfig(map[string]interface{}{s.key: s.value})
		if len(warnings) != 1 {
			t.Fatalf("[spec %d] expected 1 warning; got %v", index, warnings)
		}
		if warnings[0].Key != s.key || !strings.Contains(warnings[0].Message, s.message) {
			t.Fatalf("[spec %d] expected warning for %q containing %q; got %s", index, s.key, s.message, warnings[0])
		}
		if !s.check(cfg) {
			t.Fatalf("[spec %d] unexpected config value for %q: %+v", index, s.key, cfg)
		}
	}
}

func TestParseConfigWarningsAreSorted(t *testing.T) {
	_, warnings := ParseConfig(map[string]interface{}{
		"zeta":          1,
		"alpha":         1,
		"maxBounces":    -1,
		"spatialRadius": 0,
	})
	if len(warnings) != 4 {
		t.Fatalf("expected 4 warnings; got %v", warnings)
	}
	for i := 1; i < len(warnings); i++ {
		if warnings[i-1].Key > warnings[i].Key {
			t.Fatalf("expected warnings to be sorted by key; got %v", warnings)
		}
	}
}

func TestConfigSanitizeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpatialSamples = 12
	cfg.CellSize = 0.5
	cfg.ToneMap = ToneMapACES
	cfg.Seed = 42

	sanitized, warnings := cfg.Sanitize()
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings; got %v", warnings)
	}
	if sanitized != cfg {
		t.Fatalf("expected sanitized config to match input;\n got %+v\nwant %+v", sanitized, cfg)
	}

	cfg.SpatialSamples = 500
	sanitized, warnings = cfg.Sanitize()
	if len(warnings) != 1 || sanitized.SpatialSamples != 32 {
		t.Fatalf("expected spatialSamples to be clamped to 32 with a warning; got %d, %v", sanitized.SpatialSamples, warnings)
	}
}

func TestConfigEntries(t *testing.T) {
	entries := DefaultConfig().Entries()
	if len(entries) != len(DefaultConfig().Map()) {
		t.Fatalf("expected one entry per option; got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key >= entries[i].Key {
			t.Fatalf("expected entries to be sorted; got %q before %q", entries[i-1].Key, entries[i].Key)
		}
	}
}

package restir

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Weighting scheme used when resampling reservoirs from several domains.
type MisKind uint8

const (
	// 1/M weights (biased) or 1/Z weights (unbiased).
	MisConstant MisKind = iota

	// Generalized balance heuristic over all participating reservoirs.
	MisTalbot

	// Balance heuristic between the canonical reservoir and each neighbor
	// in turn. Linear in the number of participants.
	MisPairwise
)

var misKindNames = []string{"constant", "talbot", "pairwise"}

func (k MisKind) String() string { return enumName(misKindNames, int(k)) }

// Reservoir reuse domain.
type Variant uint8

const (
	ScreenSpace Variant = iota
	WorldSpace
)

var variantNames = []string{"screen", "world"}

func (v Variant) String() string { return enumName(variantNames, int(v)) }

// Frame accumulation precision.
type PrecisionMode uint8

const (
	PrecisionSingle PrecisionMode = iota
	PrecisionDouble
	PrecisionCompensated
)

var precisionNames = []string{"single", "double", "compensated"}

func (p PrecisionMode) String() string { return enumName(precisionNames, int(p)) }

// HDR to LDR mapping operator.
type ToneMapOperator uint8

const (
	ToneMapLinear ToneMapOperator = iota
	ToneMapReinhard
	ToneMapACES
)

var toneMapNames = []string{"linear", "reinhard", "aces"}

func (t ToneMapOperator) String() string { return enumName(toneMapNames, int(t)) }

func enumName(names []string, index int) string {
	if index < 0 || index >= len(names) {
		return "unknown"
	}
	return names[index]
}

// Config holds the resampling options. Values are validated by
// ParseConfig and treated as read-only once a pipeline is created.
type Config struct {
	// Candidate generation.
	SamplesPerPixel    uint32
	LightSamples       uint32
	MaxBounces         uint32
	UseCosineSampling  bool
	UseRussianRoulette bool

	// Spatial reuse.
	SpatialReuse      bool
	SpatialSamples    uint32
	SpatialRadius     uint32
	SpatialIterations uint32
	NormalThreshold   float32
	DepthThreshold    float32
	MaxJacobian       float32

	// Temporal reuse.
	TemporalReuse    bool
	MaxHistoryLength uint32
	MaxSampleAge     uint32

	// Trace visibility rays for reused samples and validate the final
	// selection before shading.
	Unbiased    bool
	SpatialMis  MisKind
	TemporalMis MisKind

	// World-space reuse.
	Variant          Variant
	CellSize         float32
	HashGridCapacity uint32

	Seed uint64

	// Output passes.
	EnableAccumulation   bool
	Precision            PrecisionMode
	ToneMap              ToneMapOperator
	ExposureCompensation float32
	AutoExposure         bool
}

// A non-fatal configuration problem. The offending option has been
// replaced by its default or clamped value.
type Warning struct {
	Key     string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("option %q: %s", w.Key, w.Message)
}

// Get the default configuration.
func DefaultConfig() Config {
	return Config{
		SamplesPerPixel:    1,
		LightSamples:       1,
		MaxBounces:         2,
		UseCosineSampling:  true,
		UseRussianRoulette: false,

		SpatialReuse:      true,
		SpatialSamples:    5,
		SpatialRadius:     16,
		SpatialIterations: 1,
		NormalThreshold:   0.9,
		DepthThreshold:    0.1,
		MaxJacobian:       10,

		TemporalReuse:    true,
		MaxHistoryLength: 20,
		MaxSampleAge:     50,

		Unbiased:    true,
		SpatialMis:  MisPairwise,
		TemporalMis: MisTalbot,

		Variant:          ScreenSpace,
		CellSize:         0.25,
		HashGridCapacity: 262144,

		Seed: 1,

		EnableAccumulation:   false,
		Precision:            PrecisionDouble,
		ToneMap:              ToneMapLinear,
		ExposureCompensation: 0,
		AutoExposure:         false,
	}
}

type intOption struct {
	min, max uint32
	field    func(*Config) *uint32
}

type floatOption struct {
	min, max float32
	field    func(*Config) *float32
}

type boolOption struct {
	field func(*Config) *bool
}

type enumOption struct {
	names []string
	get   func(*Config) int
	set   func(*Config, int)
}

var (
	intOptions = map[string]intOption{
		"samplesPerPixel":   {1, 64, func(c *Config) *uint32 { return &c.SamplesPerPixel }},
		"lightSamples":      {0, 64, func(c *Config) *uint32 { return &c.LightSamples }},
		"maxBounces":        {0, 16, func(c *Config) *uint32 { return &c.MaxBounces }},
		"spatialSamples":    {0, 32, func(c *Config) *uint32 { return &c.SpatialSamples }},
		"spatialRadius":     {1, 64, func(c *Config) *uint32 { return &c.SpatialRadius }},
		"spatialIterations": {1, 4, func(c *Config) *uint32 { return &c.SpatialIterations }},
		"maxHistoryLength":  {1, 100, func(c *Config) *uint32 { return &c.MaxHistoryLength }},
		"maxSampleAge":      {1, 1000, func(c *Config) *uint32 { return &c.MaxSampleAge }},
		"hashGridCapacity":  {1024, 16777216, func(c *Config) *uint32 { return &c.HashGridCapacity }},
	}

	floatOptions = map[string]floatOption{
		"normalThreshold":      {0, 1, func(c *Config) *float32 { return &c.NormalThreshold }},
		"depthThreshold":       {0, 1, func(c *Config) *float32 { return &c.DepthThreshold }},
		"maxJacobian":          {1, 1000, func(c *Config) *float32 { return &c.MaxJacobian }},
		"cellSize":             {0.001, 100, func(c *Config) *float32 { return &c.CellSize }},
		"exposureCompensation": {-12, 12, func(c *Config) *float32 { return &c.ExposureCompensation }},
	}

	boolOptions = map[string]boolOption{
		"useCosineSampling":  {func(c *Config) *bool { return &c.UseCosineSampling }},
		"useRussianRoulette": {func(c *Config) *bool { return &c.UseRussianRoulette }},
		"spatialReuse":       {func(c *Config) *bool { return &c.SpatialReuse }},
		"temporalReuse":      {func(c *Config) *bool { return &c.TemporalReuse }},
		"unbiased":           {func(c *Config) *bool { return &c.Unbiased }},
		"enableAccumulation": {func(c *Config) *bool { return &c.EnableAccumulation }},
		"autoExposure":       {func(c *Config) *bool { return &c.AutoExposure }},
	}

	enumOptions = map[string]enumOption{
		"spatialMisKind": {misKindNames,
			func(c *Config) int { return int(c.SpatialMis) },
			func(c *Config, v int) { c.SpatialMis = MisKind(v) }},
		"temporalMisKind": {misKindNames,
			func(c *Config) int { return int(c.TemporalMis) },
			func(c *Config, v int) { c.TemporalMis = MisKind(v) }},
		"variant": {variantNames,
			func(c *Config) int { return int(c.Variant) },
			func(c *Config, v int) { c.Variant = Variant(v) }},
		"precisionMode": {precisionNames,
			func(c *Config) int { return int(c.Precision) },
			func(c *Config, v int) { c.Precision = PrecisionMode(v) }},
		"toneMapOperator": {toneMapNames,
			func(c *Config) int { return int(c.ToneMap) },
			func(c *Config, v int) { c.ToneMap = ToneMapOperator(v) }},
	}
)

const seedKey = "seed"

// Build a configuration from a set of key-value options. Missing keys keep
// their default value. Unknown keys, values of the wrong type and values
// outside the allowed range never cause a failure; they are reported as
// warnings and replaced by the default or the nearest valid value.
// Warnings are sorted by key.
func ParseConfig(opts map[string]interface{}) (Config, []Warning) {
	cfg := DefaultConfig()
	var warnings []Warning
	warn := func(key, format string, args ...interface{}) {
		warnings = append(warnings, Warning{Key: key, Message: fmt.Sprintf(format, args...)})
	}

	for key, raw := range opts {
		if opt, ok := intOptions[key]; ok {
			v, isNum := toFloat64(raw)
			if !isNum {
				warn(key, "expected an integer; got %T; using default %d", raw, *opt.field(&cfg))
				continue
			}
			*opt.field(&cfg) = clampInt(key, v, opt.min, opt.max, warn)
			continue
		}

		if opt, ok := floatOptions[key]; ok {
			v, isNum := toFloat64(raw)
			if !isNum || math.IsNaN(v) {
				warn(key, "expected a number; got %v; using default %g", raw, *opt.field(&cfg))
				continue
			}
			fv := float32(v)
			clamped := fv
			if clamped < opt.min {
				clamped = opt.min
			} else if clamped > opt.max {
				clamped = opt.max
			}
			if clamped != fv {
				warn(key, "value %g out of range [%g, %g]; clamped to %g", v, opt.min, opt.max, clamped)
			}
			*opt.field(&cfg) = clamped
			continue
		}

		if opt, ok := boolOptions[key]; ok {
			v, isBool := toBool(raw)
			if !isBool {
				warn(key, "expected a boolean; got %v; using default %t", raw, *opt.field(&cfg))
				continue
			}
			*opt.field(&cfg) = v
			continue
		}

		if opt, ok := enumOptions[key]; ok {
			name, isString := raw.(string)
			index := -1
			if isString {
				for idx, candidate := range opt.names {
					if strings.EqualFold(candidate, strings.TrimSpace(name)) {
						index = idx
						break
					}
				}
			}
			if index == -1 {
				warn(key, "expected one of %s; got %v; using default %q", strings.Join(opt.names, ", "), raw, opt.names[opt.get(&cfg)])
				continue
			}
			opt.set(&cfg, index)
			continue
		}

		if key == seedKey {
			v, isNum := toFloat64(raw)
			switch {
			case !isNum || math.IsNaN(v):
				warn(key, "expected an unsigned integer; got %v; using default %d", raw, cfg.Seed)
			case v < 0:
				warn(key, "value %g out of range; using default %d", v, cfg.Seed)
			default:
				cfg.Seed = toSeed(raw, v)
			}
			continue
		}

		warn(key, "unknown option; ignored")
	}

	sort.SliceStable(warnings, func(i, j int) bool { return warnings[i].Key < warnings[j].Key })
	return cfg, warnings
}

func clampInt(key string, v float64, min, max uint32, warn func(string, string, ...interface{})) uint32 {
	if math.IsNaN(v) {
		warn(key, "value is not a number; clamped to %d", min)
		return min
	}
	if v != math.Trunc(v) {
		warn(key, "value %g is not an integer; truncated to %g", v, math.Trunc(v))
		v = math.Trunc(v)
	}
	switch {
	case v < float64(min):
		warn(key, "value %g out of range [%d, %d]; clamped to %d", v, min, max, min)
		return min
	case v > float64(max):
		warn(key, "value %g out of range [%d, %d]; clamped to %d", v, min, max, max)
		return max
	}
	return uint32(v)
}

func toFloat64(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case fmt.Stringer:
		// json.Number and similar numeric string wrappers
		f, err := strconv.ParseFloat(v.String(), 64)
		return f, err == nil
	}
	return 0, false
}

// Integer seeds are converted directly to avoid float64 rounding.
func toSeed(raw interface{}, fallback float64) uint64 {
	switch v := raw.(type) {
	case uint64:
		return v
	case uint:
		return uint64(v)
	case uint32:
		return uint64(v)
	case int64:
		return uint64(v)
	case int:
		return uint64(v)
	case int32:
		return uint64(v)
	case fmt.Stringer:
		// Decimal strings such as json.Number may not fit in a float64.
		if seed, err := strconv.ParseUint(strings.TrimSpace(v.String()), 10, 64); err == nil {
			return seed
		}
	}
	return uint64(fallback)
}

func toBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case int, int64, float64:
		f, _ := toFloat64(v)
		if f == 0 || f == 1 {
			return f == 1, true
		}
	}
	return false, false
}

// Convert the configuration into a key-value option map that round-trips
// through ParseConfig.
func (c Config) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(intOptions)+len(floatOptions)+len(boolOptions)+len(enumOptions)+1)
	for key, opt := range intOptions {
		out[key] = int64(*opt.field(&c))
	}
	for key, opt := range floatOptions {
		out[key] = float64(*opt.field(&c))
	}
	for key, opt := range boolOptions {
		out[key] = *opt.field(&c)
	}
	for key, opt := range enumOptions {
		out[key] = enumName(opt.names, opt.get(&c))
	}
	out[seedKey] = c.Seed
	return out
}

// A formatted configuration entry.
type Entry struct {
	Key   string
	Value string
}

// Get the configuration as a list of formatted entries sorted by key.
func (c Config) Entries() []Entry {
	m := c.Map()
	entries := make([]Entry, 0, len(m))
	for key, value := range m {
		entries = append(entries, Entry{Key: key, Value: fmt.Sprint(value)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Re-validate a configuration that was assembled by hand.
func (c Config) Sanitize() (Config, []Warning) {
	return ParseConfig(c.Map())
}

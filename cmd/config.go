package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/achilleasa/restir/asset/config"
	"github.com/achilleasa/restir/restir"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Load the resampling configuration from an optional option document and
// apply flag overrides on top of it.
func loadConfig(ctx *cli.Context) (restir.Config, []restir.Warning, error) {
	opts := make(map[string]interface{})
	if path := ctx.String("config"); path != "" {
		doc, err := config.Load(path)
		if err != nil {
			return restir.Config{}, nil, err
		}
		opts = doc
		logger.Infof("loaded %d option(s) from %s", len(opts), path)
	}

	if ctx.IsSet("seed") {
		opts["seed"] = ctx.Uint64("seed")
	}
	if ctx.IsSet("variant") {
		opts["variant"] = ctx.String("variant")
	}
	for _, kv := range ctx.StringSlice("set") {
		key, value, err := parseOverride(kv)
		if err != nil {
			return restir.Config{}, nil, err
		}
		opts[key] = value
	}

	cfg, warnings := restir.ParseConfig(opts)
	for _, w := range warnings {
		logger.Warningf("config: %s", w)
	}
	return cfg, warnings, nil
}

// Parse a key=value override. The value is decoded as a YAML scalar so
// numbers and booleans keep their type.
func parseOverride(kv string) (string, interface{}, error) {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return "", nil, fmt.Errorf("invalid option override %q; expected key=value", kv)
	}
	key := strings.TrimSpace(parts[0])
	doc, err := config.Decode(strings.NewReader(key+": "+parts[1]), config.YAML)
	if err != nil {
		return "", nil, fmt.Errorf("invalid option override %q: %w", kv, err)
	}
	return key, doc[key], nil
}

// Display the effective configuration.
func ShowConfig(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	cfg, warnings, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if name := ctx.String("export"); name != "" {
		format, err := config.FormatFromPath("." + name)
		if err != nil {
			return err
		}
		return config.Encode(ctx.App.Writer, cfg.Map(), format)
	}

	logger.Noticef("effective configuration\n%s", configTable(cfg, warnings))
	return nil
}

func configTable(cfg restir.Config, warnings []restir.Warning) string {
	notes := make(map[string]string, len(warnings))
	for _, w := range warnings {
		notes[w.Key] = w.Message
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Option", "Value", "Notes"})
	for _, entry := range cfg.Entries() {
		table.Append([]string{entry.Key, entry.Value, notes[entry.Key]})
		delete(notes, entry.Key)
	}
	for _, w := range warnings {
		if _, unused := notes[w.Key]; unused {
			table.Append([]string{w.Key, "-", w.Message})
		}
	}
	table.Render()
	return buf.String()
}

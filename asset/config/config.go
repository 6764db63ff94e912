package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/achilleasa/restir/asset"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of an option document.
type Format uint8

const (
	TOML Format = iota
	YAML
	JSON
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported document format")
)

func (f Format) String() string {
	switch f {
	case TOML:
		return "toml"
	case YAML:
		return "yaml"
	default:
		return "json"
	}
}

// Detect the document format from a path or URL extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Load a key-value option document from a local path or an http(s) URL.
func Load(path string) (map[string]interface{}, error) {
	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	format, err := FormatFromPath(res.Ext())
	if err != nil {
		return nil, err
	}

	opts, err := Decode(res, format)
	if err != nil {
		return nil, fmt.Errorf("config: could not parse %s: %w", res.Path(), err)
	}
	return opts, nil
}

// Decode an option document. Nested tables are flattened into dotted keys
// and an empty document yields an empty map.
func Decode(r io.Reader, format Format) (map[string]interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := make(map[string]interface{})
	if len(strings.TrimSpace(string(data))) != 0 {
		switch format {
		case TOML:
			err = toml.Unmarshal(data, &doc)
		case YAML:
			err = yaml.Unmarshal(data, &doc)
		case JSON:
			dec := json.NewDecoder(strings.NewReader(string(data)))
			dec.UseNumber()
			err = dec.Decode(&doc)
		default:
			err = ErrUnsupportedFormat
		}
		if err != nil {
			return nil, err
		}
	}

	opts := make(map[string]interface{}, len(doc))
	flatten("", doc, opts)
	return opts, nil
}

// Encode an option map. Keys are written in sorted order by all encoders.
func Encode(w io.Writer, opts map[string]interface{}, format Format) error {
	switch format {
	case TOML:
		return toml.NewEncoder(w).Encode(opts)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(opts); err != nil {
			return err
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(opts)
	}
	return ErrUnsupportedFormat
}

func flatten(prefix string, src, dst map[string]interface{}) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, dst)
			continue
		}
		dst[key] = v
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a config file encoding.
type Format int

// Supported formats.
const (
	YAML Format = iota + 1
	JSON
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "CALC"

// FormatOf picks the format from the file extension: .yaml, .yml or .json.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unsupported config file extension: %q", ext)
	}
}

// Parse decodes data in the given format.
func Parse(data []byte, f Format) (Config, error) {
	var m map[string]any
	switch f {
	case YAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	case JSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return Config{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unknown config format %d", f)
	}
	return New(m), nil
}

// FromFile loads the file at path, choosing the format with FormatOf.
func FromFile(path string) (Config, error) {
	f, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, f)
}

// FromYAML parses YAML data.
func FromYAML(data []byte) (Config, error) {
	return Parse(data, YAML)
}

// FromJSON parses JSON data.
func FromJSON(data []byte) (Config, error) {
	return Parse(data, JSON)
}

// FromEnv collects variables named PREFIX_SECTION_KEY from environ (in
// os.Environ form) as "section.key" entries, lowercased. For example
// CALC_SESSION_SWEEP_INTERVAL=5m becomes session.sweep_interval.
func FromEnv(prefix string, environ []string) Config {
	data := make(map[string]any)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		rest, ok := strings.CutPrefix(name, prefix+"_")
		if !ok {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(rest), "_")
		if !ok || section == "" || key == "" {
			continue
		}
		data[section+"."+key] = value
	}
	return New(data)
}

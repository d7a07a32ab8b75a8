package config

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// Config is a tree of settings decoded from YAML, JSON or the environment.
// Keys are dotted paths ("server.addr"); a flat key holding the whole path
// takes precedence over walking nested maps. Accessors fall back to the
// given default when a key is missing or its value does not convert.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// Overlay returns a Config in which the top-level entries of over replace
// those of c. Neither input is modified.
func (c Config) Overlay(over Config) Config {
	merged := maps.Clone(c.data)
	maps.Copy(merged, over.data)
	return Config{data: merged}
}

func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.data[key]; ok {
		return v, true
	}
	var cur any = c.data
	for part := range strings.SplitSeq(key, ".") {
		section, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = section[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at key.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.value(key).(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration at key. Strings are parsed with
// time.ParseDuration; bare numbers count seconds.
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch v := c.value(key).(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// Int returns the integer at key. Floats must be integral (JSON numbers);
// strings must hold a decimal integer (environment values).
func (c Config) Int(key string, defaultVal int) int {
	switch v := c.value(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return defaultVal
}

// Has reports whether key is set.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

func (c Config) value(key string) any {
	v, _ := c.lookup(key)
	return v
}

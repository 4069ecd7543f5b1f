package vintf

import (
	"os"
	"strconv"
	"strings"
)

// PropertyFetcher reads system properties. The default implementation maps
// property names onto environment variables so the library stays usable on
// hosts without a property service; tests substitute a map-backed fetcher.
type PropertyFetcher interface {
	// GetProperty returns the property value, or def when unset.
	GetProperty(key, def string) string
	// GetUintProperty returns the property parsed as an unsigned integer,
	// or def when unset or unparsable.
	GetUintProperty(key string, def uint64) uint64
	// GetBoolProperty returns the property parsed as a boolean, or def
	// when unset or unparsable.
	GetBoolProperty(key string, def bool) bool
}

// EnvPropertyFetcher resolves "ro.boot.foo.bar" as the environment variable
// "RO_BOOT_FOO_BAR".
type EnvPropertyFetcher struct {
	// Getenv defaults to os.Getenv; overridable for tests.
	Getenv func(string) string
}

func (f *EnvPropertyFetcher) lookup(key string) (string, bool) {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	getenv := f.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	v := getenv(name)
	return v, v != ""
}

func (f *EnvPropertyFetcher) GetProperty(key, def string) string {
	if v, ok := f.lookup(key); ok {
		return v
	}
	return def
}

func (f *EnvPropertyFetcher) GetUintProperty(key string, def uint64) uint64 {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return u
}

func (f *EnvPropertyFetcher) GetBoolProperty(key string, def bool) bool {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "y", "yes", "on":
		return true
	case "0", "false", "n", "no", "off":
		return false
	}
	return def
}

// MapPropertyFetcher serves properties from a fixed map. Used in tests and
// when the caller already knows the system state.
type MapPropertyFetcher map[string]string

func (m MapPropertyFetcher) GetProperty(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func (m MapPropertyFetcher) GetUintProperty(key string, def uint64) uint64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return u
}

func (m MapPropertyFetcher) GetBoolProperty(key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "y", "yes", "on":
		return true
	case "0", "false", "n", "no", "off":
		return false
	}
	return def
}

//go:build linux

package vintf

import (
	"strings"
	"testing"
)

func TestParseConfigs(t *testing.T) {
	input := `#
# Automatically generated file; DO NOT EDIT.
#
CONFIG_64BIT=y
CONFIG_MODULES=m
CONFIG_ARCH_MMAP_RND_BITS=24
CONFIG_DEFAULT_HOSTNAME="(none)"
# CONFIG_DEVKMEM is not set
NOT_A_CONFIG=1
`
	configs, err := parseConfigs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseConfigs: %v", err)
	}

	// Raw values are preserved verbatim, quotes included.
	want := map[string]string{
		"CONFIG_64BIT":              "y",
		"CONFIG_MODULES":            "m",
		"CONFIG_ARCH_MMAP_RND_BITS": "24",
		"CONFIG_DEFAULT_HOSTNAME":   `"(none)"`,
	}
	if len(configs) != len(want) {
		t.Fatalf("configs = %v, want %v", configs, want)
	}
	for k, v := range want {
		if configs[k] != v {
			t.Errorf("configs[%s] = %q, want %q", k, configs[k], v)
		}
	}
	// "is not set" comment lines are not observations; absence already
	// reads as tristate n.
	if _, ok := configs["CONFIG_DEVKMEM"]; ok {
		t.Error("comment line must not produce an entry")
	}
}

func TestKernelVersionPrefix(t *testing.T) {
	tests := []struct {
		release string
		want    string
	}{
		{"4.14.42-android", "4.14.42"},
		{"6.1.0", "6.1.0"},
		{"5.10.43-2-amd64", "5.10.43"},
		{"3.18.31+", "3.18.31"},
	}
	for _, tt := range tests {
		if got := kernelVersionPrefix(tt.release); got != tt.want {
			t.Errorf("kernelVersionPrefix(%q) = %q, want %q", tt.release, got, tt.want)
		}
	}
}

package main

import (
	"strings"
	"testing"

	"github.com/leodido/vintf"
)

func TestParseKernelArg(t *testing.T) {
	minLts, paths, err := parseKernelArg("4.14.0:/cfg/android-base.cfg:/cfg/android-base-arm64.cfg")
	if err != nil {
		t.Fatalf("parseKernelArg() error = %v", err)
	}
	if minLts != (vintf.KernelVersion{Version: 4, MajorRev: 14, MinorRev: 0}) {
		t.Fatalf("minLts = %v", minLts)
	}
	want := []string{"/cfg/android-base.cfg", "/cfg/android-base-arm64.cfg"}
	if len(paths) != len(want) {
		t.Fatalf("len(paths) = %d, want %d", len(paths), len(want))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestParseKernelArg_Errors(t *testing.T) {
	for _, bad := range []string{"", "4.14.0", "x.y.z:/cfg/android-base.cfg"} {
		if _, _, err := parseKernelArg(bad); err == nil {
			t.Fatalf("parseKernelArg(%q) expected error", bad)
		}
	}
}

func TestDecodeEmit(t *testing.T) {
	opts := &AssembleOptions{}

	got, err := opts.DecodeEmit("HALS-ONLY")
	if err != nil {
		t.Fatalf("DecodeEmit() error = %v", err)
	}
	if got != vintf.SerializeHalsOnly {
		t.Fatalf("DecodeEmit(HALS-ONLY) = %v", got)
	}

	_, err = opts.DecodeEmit("nope")
	if err == nil {
		t.Fatal("DecodeEmit(nope) expected error")
	}
	if !strings.Contains(err.Error(), "unknown emit mode") {
		t.Fatalf("error %q missing context", err)
	}
}

package vintf

import (
	"strings"
	"testing"
)

func deviceManifestWith(t *testing.T, hals ...*ManifestHal) *HalManifest {
	t.Helper()
	m := &HalManifest{Type: SchemaDevice}
	for _, hal := range hals {
		if err := m.AddHal(hal); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func hidlHal(t *testing.T, name string, versions []Version, fqnames ...string) *ManifestHal {
	t.Helper()
	var instances []FqInstance
	for _, s := range fqnames {
		instances = append(instances, mustFq(t, s))
	}
	hal, err := NewManifestHal(FormatHIDL, name, versions, TransportHwbinder, instances)
	if err != nil {
		t.Fatal(err)
	}
	return hal
}

func frameworkMatrixWith(t *testing.T, hals ...*MatrixHal) *CompatibilityMatrix {
	t.Helper()
	cm := &CompatibilityMatrix{Type: SchemaFramework}
	for _, hal := range hals {
		if err := cm.AddHal(hal); err != nil {
			t.Fatal(err)
		}
	}
	return cm
}

func TestHalManifest_CheckCompatibility(t *testing.T) {
	manifest := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{1, 0}}, "@1.0::IFoo/default"))

	t.Run("satisfied", func(t *testing.T) {
		cm := frameworkMatrixWith(t, fooRequirement([]VersionRange{{1, 0, 0}},
			exactInterface("IFoo", "default")))
		if err := manifest.CheckCompatibility(cm); err != nil {
			t.Errorf("CheckCompatibility: %v", err)
		}
	})

	t.Run("missing instance", func(t *testing.T) {
		cm := frameworkMatrixWith(t, fooRequirement([]VersionRange{{1, 2, 3}},
			exactInterface("IFoo", "default", "slot1")))
		err := manifest.CheckCompatibility(cm)
		if err == nil {
			t.Fatal("want error")
		}
		want := "android.hardware.foo:\n" +
			"    required: (@1.2-3::IFoo/default AND @1.2-3::IFoo/slot1)\n" +
			"    provided: @1.0::IFoo/default"
		if !strings.Contains(err.Error(), want) {
			t.Errorf("diagnostic = %q, want substring %q", err, want)
		}
	})

	t.Run("multiple ranges", func(t *testing.T) {
		cm := frameworkMatrixWith(t, fooRequirement(
			[]VersionRange{{1, 2, 3}, {4, 5, 5}},
			exactInterface("IFoo", "default", "slot1"),
			exactInterface("IBar", "default")))
		err := manifest.CheckCompatibility(cm)
		if err == nil {
			t.Fatal("want error")
		}
		want := "android.hardware.foo:\n" +
			"    required: \n" +
			"        (@1.2-3::IBar/default AND @1.2-3::IFoo/default AND @1.2-3::IFoo/slot1) OR\n" +
			"        (@4.5::IBar/default AND @4.5::IFoo/default AND @4.5::IFoo/slot1)\n" +
			"    provided: @1.0::IFoo/default"
		if !strings.Contains(err.Error(), want) {
			t.Errorf("diagnostic = %q, want substring %q", err, want)
		}
	})

	t.Run("optional requirement skipped", func(t *testing.T) {
		hal := fooRequirement([]VersionRange{{9, 0, 0}}, exactInterface("IFoo", "default"))
		hal.Optional = true
		cm := frameworkMatrixWith(t, hal)
		if err := manifest.CheckCompatibility(cm); err != nil {
			t.Errorf("CheckCompatibility: %v", err)
		}
	})

	t.Run("same schema type rejected", func(t *testing.T) {
		cm := &CompatibilityMatrix{Type: SchemaDevice}
		if err := manifest.CheckCompatibility(cm); err == nil {
			t.Error("device manifest vs device matrix: want error")
		}
	})
}

func TestHalManifest_CheckCompatibilityVersionOnly(t *testing.T) {
	manifest := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{3, 3}}))

	t.Run("single range", func(t *testing.T) {
		cm := frameworkMatrixWith(t, fooRequirement([]VersionRange{{1, 0, 1}}))
		err := manifest.CheckCompatibility(cm)
		if err == nil {
			t.Fatal("want error")
		}
		want := "android.hardware.foo:\n" +
			"    required: @1.0-1\n" +
			"    provided: "
		if !strings.Contains(err.Error(), want) {
			t.Errorf("diagnostic = %q, want substring %q", err, want)
		}
	})

	t.Run("multiple ranges", func(t *testing.T) {
		cm := frameworkMatrixWith(t, fooRequirement([]VersionRange{{1, 0, 1}, {4, 5, 5}}))
		err := manifest.CheckCompatibility(cm)
		if err == nil {
			t.Fatal("want error")
		}
		want := "android.hardware.foo:\n" +
			"    required: \n" +
			"        @1.0-1 OR\n" +
			"        @4.5\n" +
			"    provided: "
		if !strings.Contains(err.Error(), want) {
			t.Errorf("diagnostic = %q, want substring %q", err, want)
		}
	})
}

func TestHalManifest_CheckCompatibilityMultipleProvided(t *testing.T) {
	manifest := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{1, 0}},
			"@1.0::IFoo/default", "@1.0::IFoo/custom"))

	cm := frameworkMatrixWith(t, fooRequirement([]VersionRange{{1, 1, 1}},
		exactInterface("IFoo", "custom")))
	err := manifest.CheckCompatibility(cm)
	if err == nil {
		t.Fatal("want error")
	}
	want := "android.hardware.foo:\n" +
		"    required: @1.1::IFoo/custom\n" +
		"    provided: \n" +
		"        @1.0::IFoo/custom\n" +
		"        @1.0::IFoo/default"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("diagnostic = %q, want substring %q", err, want)
	}
}

func TestHalManifest_CheckCompatibilityAidl(t *testing.T) {
	var instances []FqInstance
	for _, s := range []string{"IFoo/incompat_instance", "IFoo/test0"} {
		fq := mustFq(t, s).WithVersion(Version{fakeAidlMajor, 1})
		instances = append(instances, fq)
	}
	hal, err := NewManifestHal(FormatAIDL, "android.hardware.foo",
		[]Version{{fakeAidlMajor, 1}}, TransportEmpty, instances)
	if err != nil {
		t.Fatal(err)
	}
	manifest := deviceManifestWith(t, hal)

	pattern, err := RegexInstance("test.*")
	if err != nil {
		t.Fatal(err)
	}
	req := &MatrixHal{
		Format:        FormatAIDL,
		Name:          "android.hardware.foo",
		VersionRanges: []VersionRange{{fakeAidlMajor, 1, 1}},
		Interfaces: map[string]HalInterface{
			"IFoo": {Name: "IFoo", Instances: []HalInstanceName{ExactInstance("default"), pattern}},
		},
	}
	cm := frameworkMatrixWith(t, req)

	err = manifest.CheckCompatibility(cm)
	if err == nil {
		t.Fatal("want error")
	}
	for _, want := range []string{
		"required: (IFoo/default (@1) AND IFoo/test.* (@1))",
		"provided: \n        IFoo/incompat_instance (@1)\n        IFoo/test0 (@1)",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("diagnostic = %q, want substring %q", err, want)
		}
	}
}

func TestHalManifest_CheckCompatibilityLevels(t *testing.T) {
	manifest := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{1, 0}}, "@1.0::IFoo/default"))
	manifest.Level = 8

	cm := frameworkMatrixWith(t, fooRequirement([]VersionRange{{2, 0, 0}},
		exactInterface("IFoo", "default")))
	cm.Level = 7

	err := manifest.CheckCompatibility(cm)
	if err == nil {
		t.Fatal("want error")
	}
	want := "HALs incompatible. Matrix level = 7 Manifest level = 8 The following requirements are not met:\n"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("diagnostic = %q, want substring %q", err, want)
	}
}

func TestHalManifest_SepolicyCheck(t *testing.T) {
	minor := func(m uint64) *uint64 { return &m }
	manifest := deviceManifestWith(t)
	manifest.SepolicyVersion = SepolicyVersion{Major: 25, Minor: minor(5)}

	ok := &CompatibilityMatrix{Type: SchemaFramework, Sepolicy: &Sepolicy{
		SepolicyVersions: []SepolicyVersionRange{{MajorVer: 25, MinMinor: minor(0), MaxMinor: minor(3)}},
	}}
	if err := manifest.CheckCompatibility(ok); err != nil {
		t.Errorf("CheckCompatibility: %v", err)
	}

	bad := &CompatibilityMatrix{Type: SchemaFramework, Sepolicy: &Sepolicy{
		SepolicyVersions: []SepolicyVersionRange{{MajorVer: 26, MinMinor: minor(0), MaxMinor: minor(3)}},
	}}
	err := manifest.CheckCompatibility(bad)
	if err == nil {
		t.Fatal("want error")
	}
	want := "Sepolicy version 25.5 doesn't satisfy the requirements 26.0-3"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("diagnostic = %q, want %q", err, want)
	}
}

func TestHalManifest_AddAll(t *testing.T) {
	base := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{1, 0}}, "@1.0::IFoo/default"))
	other := deviceManifestWith(t,
		hidlHal(t, "android.hardware.bar", []Version{{1, 0}}, "@1.0::IBar/default"))

	if err := base.AddAll(other, "base.xml", "other.xml"); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	if len(base.HalsByName("android.hardware.bar")) != 1 {
		t.Error("bar not folded in")
	}

	// A second hal with the same (name, major) conflicts.
	dup := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{1, 1}}, "@1.1::IFoo/default"))
	err := base.AddAll(dup, "base.xml", "dup.xml")
	if err == nil {
		t.Fatal("want conflict")
	}
	if !strings.Contains(err.Error(), "base.xml") || !strings.Contains(err.Error(), "dup.xml") {
		t.Errorf("conflict does not name both sources: %v", err)
	}
}

func TestHalManifest_AddAllLevelConflict(t *testing.T) {
	base := deviceManifestWith(t)
	base.Level = 5
	other := deviceManifestWith(t)
	other.Level = 6
	if err := base.AddAll(other, "a.xml", "b.xml"); err == nil {
		t.Error("mismatched levels: want conflict")
	}
}

func TestHalManifest_GenerateCompatibleMatrix(t *testing.T) {
	manifest := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{1, 0}}, "@1.0::IFoo/default"))
	cm := manifest.GenerateCompatibleMatrix()

	if cm.Type != SchemaFramework {
		t.Errorf("Type = %v, want framework", cm.Type)
	}
	hals := cm.HalsByName("android.hardware.foo")
	if len(hals) != 1 {
		t.Fatalf("hals = %d, want 1", len(hals))
	}
	if !hals[0].Optional {
		t.Error("generated requirement must be optional")
	}
	// The manifest trivially satisfies its own generated matrix.
	if err := manifest.CheckCompatibility(cm); err != nil {
		t.Errorf("CheckCompatibility against generated matrix: %v", err)
	}
}

func TestHalManifest_ProvidedInstances(t *testing.T) {
	manifest := deviceManifestWith(t,
		hidlHal(t, "android.hardware.foo", []Version{{1, 0}},
			"@1.0::IFoo/slot1", "@1.0::IFoo/default"))
	got := manifest.ProvidedInstances("android.hardware.foo")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Sorted by coordinate.
	if got[0].FqInstance.Instance() != "default" || got[1].FqInstance.Instance() != "slot1" {
		t.Errorf("order = %s, %s", got[0].FqInstance, got[1].FqInstance)
	}
	if got[0].FqInstance.Package() != "android.hardware.foo" {
		t.Errorf("package = %q", got[0].FqInstance.Package())
	}
}

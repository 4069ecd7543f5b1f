package vintf

import "testing"

func TestParseFqInstance(t *testing.T) {
	tests := []struct {
		in       string
		pkg      string
		version  string
		iface    string
		instance string
	}{
		{"android.hardware.foo@1.0::IFoo/default", "android.hardware.foo", "1.0", "IFoo", "default"},
		{"@1.0::IFoo/default", "", "1.0", "IFoo", "default"},
		{"@1.0/default", "", "1.0", "", "default"},
		{"IFoo/default", "", "", "IFoo", "default"},
	}
	for _, tt := range tests {
		fq, err := ParseFqInstance(tt.in)
		if err != nil {
			t.Errorf("ParseFqInstance(%q): %v", tt.in, err)
			continue
		}
		if fq.Package() != tt.pkg {
			t.Errorf("ParseFqInstance(%q).Package() = %q, want %q", tt.in, fq.Package(), tt.pkg)
		}
		if tt.version == "" {
			if fq.HasVersion() {
				t.Errorf("ParseFqInstance(%q).HasVersion() = true, want false", tt.in)
			}
		} else if fq.Version().String() != tt.version {
			t.Errorf("ParseFqInstance(%q).Version() = %s, want %s", tt.in, fq.Version(), tt.version)
		}
		if fq.Interface() != tt.iface {
			t.Errorf("ParseFqInstance(%q).Interface() = %q, want %q", tt.in, fq.Interface(), tt.iface)
		}
		if fq.Instance() != tt.instance {
			t.Errorf("ParseFqInstance(%q).Instance() = %q, want %q", tt.in, fq.Instance(), tt.instance)
		}
		// Parsing is the inverse of rendering for these forms.
		if fq.String() != tt.in {
			t.Errorf("ParseFqInstance(%q).String() = %q", tt.in, fq.String())
		}
	}
}

func TestParseFqInstance_Errors(t *testing.T) {
	for _, bad := range []string{"", "@::IFoo/default", "@1::IFoo/default", "IFoo/", "::"} {
		if fq, err := ParseFqInstance(bad); err == nil {
			t.Errorf("ParseFqInstance(%q) = %v, want error", bad, fq)
		}
	}
}

func TestFqInstance_Compare(t *testing.T) {
	a := NewFqInstance("pkg.a", Version{1, 0}, "IFoo", "default")
	b := NewFqInstance("pkg.a", Version{1, 1}, "IFoo", "default")
	c := NewFqInstance("pkg.a", Version{1, 1}, "IFoo", "slot1")
	d := NewFqInstance("pkg.b", Version{1, 0}, "IFoo", "default")

	ordered := []FqInstance{a, b, c, d}
	for i := range ordered {
		for j := range ordered {
			got := ordered[i].Compare(ordered[j])
			switch {
			case i < j && got >= 0:
				t.Errorf("Compare(%s, %s) = %d, want < 0", ordered[i], ordered[j], got)
			case i == j && got != 0:
				t.Errorf("Compare(%s, %s) = %d, want 0", ordered[i], ordered[j], got)
			case i > j && got <= 0:
				t.Errorf("Compare(%s, %s) = %d, want > 0", ordered[i], ordered[j], got)
			}
		}
	}
}

func TestFqInstance_WithPackage(t *testing.T) {
	fq, err := ParseFqInstance("@1.0::IFoo/default")
	if err != nil {
		t.Fatal(err)
	}
	got := fq.WithPackage("android.hardware.foo")
	if got.String() != "android.hardware.foo@1.0::IFoo/default" {
		t.Errorf("WithPackage: %q", got.String())
	}
	// The receiver is unchanged.
	if fq.Package() != "" {
		t.Errorf("original mutated: %q", fq.Package())
	}
}

package vintf

import (
	"fmt"
	"strings"
)

// FqInstance is a fully-qualified capability coordinate:
// package@major.minor::interface/instance. Any part except the instance pair
// may be absent depending on the document format; accessors decide what a
// given context requires. Immutable once constructed.
type FqInstance struct {
	pkg        string
	version    Version
	hasVersion bool
	iface      string
	instance   string
}

// NewFqInstance builds a coordinate from explicit parts.
func NewFqInstance(pkg string, version Version, iface, instance string) FqInstance {
	return FqInstance{pkg: pkg, version: version, hasVersion: true, iface: iface, instance: instance}
}

func (fq FqInstance) Package() string    { return fq.pkg }
func (fq FqInstance) Version() Version   { return fq.version }
func (fq FqInstance) Interface() string  { return fq.iface }
func (fq FqInstance) Instance() string   { return fq.instance }
func (fq FqInstance) HasPackage() bool   { return fq.pkg != "" }
func (fq FqInstance) HasVersion() bool   { return fq.hasVersion }
func (fq FqInstance) HasInterface() bool { return fq.iface != "" }
func (fq FqInstance) HasInstance() bool  { return fq.instance != "" }

// WithVersion returns a copy of fq carrying the given version.
func (fq FqInstance) WithVersion(v Version) FqInstance {
	fq.version = v
	fq.hasVersion = true
	return fq
}

// WithPackage returns a copy of fq carrying the given package.
func (fq FqInstance) WithPackage(pkg string) FqInstance {
	fq.pkg = pkg
	return fq
}

func (fq FqInstance) String() string {
	var b strings.Builder
	b.WriteString(fq.pkg)
	if fq.hasVersion {
		fmt.Fprintf(&b, "@%s", fq.version)
	}
	if fq.iface != "" {
		if fq.hasVersion || fq.pkg != "" {
			b.WriteString("::")
		}
		b.WriteString(fq.iface)
	}
	if fq.instance != "" {
		b.WriteString("/")
		b.WriteString(fq.instance)
	}
	return b.String()
}

// Compare is a total lexicographic order over (package, version, interface,
// instance), used for deduplication and deterministic diagnostics.
func (fq FqInstance) Compare(other FqInstance) int {
	if c := strings.Compare(fq.pkg, other.pkg); c != 0 {
		return c
	}
	if c := fq.version.Compare(other.version); c != 0 {
		return c
	}
	if c := strings.Compare(fq.iface, other.iface); c != 0 {
		return c
	}
	return strings.Compare(fq.instance, other.instance)
}

// ParseFqInstance parses any of the textual forms:
//
//	package@1.0::IFoo/default
//	@1.0::IFoo/default
//	@1.0/default
//	IFoo/default
//
// A '@' requires a parsable version; a '/' requires a non-empty instance.
func ParseFqInstance(s string) (FqInstance, error) {
	var fq FqInstance
	rest := s

	if at := strings.Index(rest, "@"); at >= 0 {
		fq.pkg = rest[:at]
		rest = rest[at+1:]
		verEnd := len(rest)
		if sep := strings.Index(rest, "::"); sep >= 0 {
			verEnd = sep
		} else if slash := strings.Index(rest, "/"); slash >= 0 {
			verEnd = slash
		}
		v, err := ParseVersion(rest[:verEnd])
		if err != nil {
			return FqInstance{}, fmt.Errorf("cannot parse fqinstance %q: %w", s, err)
		}
		fq.version = v
		fq.hasVersion = true
		rest = rest[verEnd:]
	}

	if strings.HasPrefix(rest, "::") {
		rest = rest[2:]
	} else if strings.Contains(rest, "::") {
		return FqInstance{}, fmt.Errorf("cannot parse fqinstance %q", s)
	}

	if slash := strings.Index(rest, "/"); slash >= 0 {
		fq.iface = rest[:slash]
		fq.instance = rest[slash+1:]
		if fq.instance == "" {
			return FqInstance{}, fmt.Errorf("cannot parse fqinstance %q: empty instance", s)
		}
	} else {
		fq.iface = rest
	}

	if !fq.hasVersion && fq.iface == "" {
		return FqInstance{}, fmt.Errorf("cannot parse fqinstance %q", s)
	}
	return fq, nil
}

// toFQNameString renders package@version::interface/instance, omitting empty
// parts the way diagnostics expect.
func toFQNameString(pkg, version, iface, instance string) string {
	var b strings.Builder
	b.WriteString(pkg)
	b.WriteString("@")
	b.WriteString(version)
	if iface != "" {
		b.WriteString("::")
		b.WriteString(iface)
	}
	if instance != "" {
		b.WriteString("/")
		b.WriteString(instance)
	}
	return b.String()
}

// toAidlFqnameString renders package.interface/instance.
func toAidlFqnameString(pkg, iface, instance string) string {
	s := pkg + "." + iface
	if instance != "" {
		s += "/" + instance
	}
	return s
}

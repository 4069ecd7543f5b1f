package vintf

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// HalInstanceName is one declared instance requirement: either an exact
// instance name or an anchored regular-expression pattern standing in for a
// family of names.
type HalInstanceName struct {
	text    string
	isRegex bool
	pattern *regexp.Regexp
}

// ExactInstance declares an instance by exact name.
func ExactInstance(name string) HalInstanceName {
	return HalInstanceName{text: name}
}

// RegexInstance declares an instance family by pattern. The pattern is
// anchored: it must match the whole instance name.
func RegexInstance(pattern string) (HalInstanceName, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return HalInstanceName{}, fmt.Errorf("invalid instance pattern %q: %w", pattern, err)
	}
	return HalInstanceName{text: pattern, isRegex: true, pattern: re}, nil
}

// Text returns the exact name or the pattern source.
func (n HalInstanceName) Text() string { return n.text }

// IsRegex reports whether this is a pattern.
func (n HalInstanceName) IsRegex() bool { return n.isRegex }

// Matches reports whether a concrete instance name satisfies this
// declaration.
func (n HalInstanceName) Matches(instance string) bool {
	if n.isRegex {
		return n.pattern.MatchString(instance)
	}
	return n.text == instance
}

// HalInterface is one interface of a HAL entry together with its declared
// instance names and patterns.
type HalInterface struct {
	Name      string
	Instances []HalInstanceName
}

// ExactInstances returns the exact (non-pattern) instance names, sorted.
func (hi *HalInterface) ExactInstances() []string {
	var names []string
	for _, inst := range hi.Instances {
		if !inst.isRegex {
			names = append(names, inst.text)
		}
	}
	slices.Sort(names)
	return names
}

// MatchesInstance reports whether any declaration covers the given name.
func (hi *HalInterface) MatchesInstance(instance string) bool {
	for _, inst := range hi.Instances {
		if inst.Matches(instance) {
			return true
		}
	}
	return false
}

// MatrixHal is one named HAL requirement of a compatibility matrix: the
// format variant, acceptable version ranges (related by OR), the interfaces
// and instances that must be served, and whether the whole requirement is
// optional at the matrix's level.
type MatrixHal struct {
	Format           HalFormat
	Name             string
	VersionRanges    []VersionRange
	Optional         bool
	UpdatableViaApex bool
	Interfaces       map[string]HalInterface
}

// MatrixInstance is the expansion of one (version range, interface,
// instance) obligation of a MatrixHal.
type MatrixInstance struct {
	Package      string
	Format       HalFormat
	VersionRange VersionRange
	Interface    string
	Instance     HalInstanceName
	Optional     bool
}

// IsSatisfiedBy reports whether a concrete provided endpoint discharges
// this obligation. The provided version satisfies the range as a minimum
// (SupportedBy), not by containment.
func (mi *MatrixInstance) IsSatisfiedBy(provided FqInstance) bool {
	return mi.Package == provided.Package() &&
		mi.VersionRange.SupportedBy(provided.Version()) &&
		mi.Interface == provided.Interface() &&
		mi.Instance.Matches(provided.Instance())
}

// interfaceNames returns the declared interface names, sorted for
// deterministic iteration and diagnostics.
func (hal *MatrixHal) interfaceNames() []string {
	names := make([]string, 0, len(hal.Interfaces))
	for name := range hal.Interfaces {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// InstanceNames returns the exact instance names declared for an interface,
// excluding patterns.
func (hal *MatrixHal) InstanceNames(interfaceName string) []string {
	hi, ok := hal.Interfaces[interfaceName]
	if !ok {
		return nil
	}
	return hi.ExactInstances()
}

// MatchesInstance reports whether the requirement covers the given
// (interface, instance) pair, by exact name or pattern.
func (hal *MatrixHal) MatchesInstance(interfaceName, instance string) bool {
	hi, ok := hal.Interfaces[interfaceName]
	if !ok {
		return false
	}
	return hi.MatchesInstance(instance)
}

// ContainsVersion reports whether any declared range contains v.
func (hal *MatrixHal) ContainsVersion(v Version) bool {
	for _, vr := range hal.VersionRanges {
		if vr.Contains(v) {
			return true
		}
	}
	return false
}

// ContainsInstances reports whether, for every interface other declares,
// this requirement's exact instance set is a superset of other's. Used to
// decide whether a lower-priority requirement is already subsumed.
func (hal *MatrixHal) ContainsInstances(other *MatrixHal) bool {
	for name, otherIntf := range other.Interfaces {
		thisIntf, ok := hal.Interfaces[name]
		if !ok {
			return false
		}
		thisSet := thisIntf.ExactInstances()
		for _, inst := range otherIntf.ExactInstances() {
			if !slices.Contains(thisSet, inst) {
				return false
			}
		}
	}
	return true
}

// forEachInstance expands the obligations of one version range in
// deterministic order. The callback returns false to stop early; the return
// value reports whether iteration ran to completion.
func (hal *MatrixHal) forEachInstance(vr VersionRange, fn func(MatrixInstance) bool) bool {
	for _, name := range hal.interfaceNames() {
		hi := hal.Interfaces[name]
		for _, inst := range hi.Instances {
			mi := MatrixInstance{
				Package:      hal.Name,
				Format:       hal.Format,
				VersionRange: vr,
				Interface:    name,
				Instance:     inst,
				Optional:     hal.Optional,
			}
			if !fn(mi) {
				return false
			}
		}
	}
	return true
}

// instancesCount is the total number of obligations across all ranges.
func (hal *MatrixHal) instancesCount() int {
	count := 0
	for _, vr := range hal.VersionRanges {
		hal.forEachInstance(vr, func(MatrixInstance) bool {
			count++
			return true
		})
	}
	return count
}

// IsCompatible decides whether the provided endpoints and versions satisfy
// this requirement. Version ranges are related by OR; within a range every
// declared obligation must be discharged by some provided endpoint (AND
// across obligations, OR across candidates). A requirement that declares no
// obligations anywhere is satisfied by version presence alone.
func (hal *MatrixHal) IsCompatible(providedInstances []FqInstance, providedVersions []Version) bool {
	for _, vr := range hal.VersionRanges {
		if hal.isCompatibleRange(vr, providedInstances, providedVersions) {
			return true
		}
	}
	return false
}

func (hal *MatrixHal) isCompatibleRange(vr VersionRange, providedInstances []FqInstance, providedVersions []Version) bool {
	hasAnyInstance := false
	satisfied := true

	hal.forEachInstance(vr, func(mi MatrixInstance) bool {
		hasAnyInstance = true
		found := false
		for _, provided := range providedInstances {
			if mi.IsSatisfiedBy(provided) {
				found = true
				break
			}
		}
		if !found {
			satisfied = false
		}
		return satisfied
	})

	if hasAnyInstance {
		return satisfied
	}

	// Some matrices (tests, native HALs) declare no instances at all.
	// Check versions only.
	for _, v := range providedVersions {
		if vr.SupportedBy(v) {
			return true
		}
	}
	return false
}

// insertVersionRanges folds other's ranges into a copy of this
// requirement's ranges: overlapping ranges are widened to cover both,
// disjoint ones appended, and the result re-normalized so no two ranges
// overlap. The receiver is not modified.
func (hal *MatrixHal) insertVersionRanges(other *MatrixHal) []VersionRange {
	merged := slices.Clone(hal.VersionRanges)
	merged = append(merged, other.VersionRanges...)
	return coalesceVersionRanges(merged)
}

// coalesceVersionRanges merges overlapping ranges until the list is
// overlap-free, keeping first-occurrence order. Widening one range may make
// it overlap another, so the pass repeats until it removes nothing.
func coalesceVersionRanges(ranges []VersionRange) []VersionRange {
	for {
		out := make([]VersionRange, 0, len(ranges))
		for _, vr := range ranges {
			idx := slices.IndexFunc(out, func(existing VersionRange) bool {
				return existing.Overlaps(vr)
			})
			if idx < 0 {
				out = append(out, vr)
				continue
			}
			out[idx].MinMinor = min(out[idx].MinMinor, vr.MinMinor)
			out[idx].MaxMinor = max(out[idx].MaxMinor, vr.MaxMinor)
		}
		if len(out) == len(ranges) {
			return out
		}
		ranges = out
	}
}

// clone deep-copies the requirement so combination can produce new
// documents without aliasing the inputs.
func (hal *MatrixHal) clone() *MatrixHal {
	dup := *hal
	dup.VersionRanges = slices.Clone(hal.VersionRanges)
	dup.Interfaces = make(map[string]HalInterface, len(hal.Interfaces))
	for name, hi := range hal.Interfaces {
		hiDup := hi
		hiDup.Instances = slices.Clone(hi.Instances)
		dup.Interfaces[name] = hiDup
	}
	return &dup
}

func (hal *MatrixHal) String() string {
	var ranges []string
	for _, vr := range hal.VersionRanges {
		ranges = append(ranges, vr.String())
	}
	return fmt.Sprintf("%s/%s/%s", hal.Format, hal.Name, strings.Join(ranges, ","))
}

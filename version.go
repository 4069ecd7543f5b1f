package vintf

import (
	"fmt"
	"strconv"
	"strings"
)

// fakeAidlMajor is the synthetic major version assigned to AIDL HALs so the
// same range machinery applies; the AIDL interface version is the minor.
const fakeAidlMajor uint64 = 0

// defaultAidlMinor is the version assumed for an AIDL HAL that declares none.
const defaultAidlMinor uint64 = 1

// Version is a major.minor pair with total order.
type Version struct {
	Major uint64
	Minor uint64
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare orders by major, then minor.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	major, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	minor, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{Major: major, Minor: minor}, nil
}

// ParseAidlVersion parses a bare AIDL version number into a Version under
// the synthetic AIDL major.
func ParseAidlVersion(s string) (Version, error) {
	minor, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Version{}, fmt.Errorf("invalid aidl version %q", s)
	}
	return Version{Major: fakeAidlMajor, Minor: minor}, nil
}

// AidlVersionString renders the AIDL view of v: the minor only.
func AidlVersionString(v Version) string {
	return strconv.FormatUint(v.Minor, 10)
}

// VersionRange is a closed range of minor versions under one major,
// e.g. 2.3-7.
type VersionRange struct {
	MajorVer uint64
	MinMinor uint64
	MaxMinor uint64
}

// SingleVersionRange makes a range holding exactly v.
func SingleVersionRange(v Version) VersionRange {
	return VersionRange{MajorVer: v.Major, MinMinor: v.Minor, MaxMinor: v.Minor}
}

// MinVer returns the inclusive lower bound.
func (vr VersionRange) MinVer() Version {
	return Version{Major: vr.MajorVer, Minor: vr.MinMinor}
}

// MaxVer returns the inclusive upper bound.
func (vr VersionRange) MaxVer() Version {
	return Version{Major: vr.MajorVer, Minor: vr.MaxMinor}
}

// IsSingleVersion reports whether the range holds exactly one version.
func (vr VersionRange) IsSingleVersion() bool {
	return vr.MinMinor == vr.MaxMinor
}

// Contains reports whether v lies within the closed range.
func (vr VersionRange) Contains(v Version) bool {
	return vr.MajorVer == v.Major && vr.MinMinor <= v.Minor && v.Minor <= vr.MaxMinor
}

// SupportedBy reports whether a provided version v satisfies this range as a
// minimum-minor requirement. If the range is 2.3-7:
//
//	2.2: false
//	2.3: true
//	2.7: true
//	2.8: true
//
// The upper bound is deliberately not enforced; a device may provide a
// higher minor version than required.
func (vr VersionRange) SupportedBy(v Version) bool {
	return vr.MajorVer == v.Major && vr.MinMinor <= v.Minor
}

// Overlaps reports whether two ranges intersect. Symmetric:
// if a.Overlaps(b) then b.Overlaps(a).
//
//	1.2-4 and 2.2-4: false
//	1.2-4 and 1.4-5: true
//	1.2-4 and 1.0-1: false
func (vr VersionRange) Overlaps(other VersionRange) bool {
	return vr.MajorVer == other.MajorVer && vr.MinMinor <= other.MaxMinor && other.MinMinor <= vr.MaxMinor
}

func (vr VersionRange) String() string {
	if vr.IsSingleVersion() {
		return vr.MinVer().String()
	}
	return fmt.Sprintf("%s-%d", vr.MinVer(), vr.MaxMinor)
}

// AidlVersionRangeString renders the AIDL view of vr: minors only,
// e.g. "1" or "1-3".
func AidlVersionRangeString(vr VersionRange) string {
	if vr.IsSingleVersion() {
		return strconv.FormatUint(vr.MinMinor, 10)
	}
	return fmt.Sprintf("%d-%d", vr.MinMinor, vr.MaxMinor)
}

// ParseVersionRange parses "major.minor" or "major.min-max".
func ParseVersionRange(s string) (VersionRange, error) {
	return parseVersionRangeWith(s, ParseVersion)
}

// ParseAidlVersionRange parses "minor" or "min-max" under the synthetic
// AIDL major.
func ParseAidlVersionRange(s string) (VersionRange, error) {
	return parseVersionRangeWith(s, ParseAidlVersion)
}

func parseVersionRangeWith(s string, parseVersion func(string) (Version, error)) (VersionRange, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 1 && len(parts) != 2 {
		return VersionRange{}, fmt.Errorf("invalid version range %q", s)
	}
	minVer, err := parseVersion(parts[0])
	if err != nil {
		return VersionRange{}, err
	}
	if len(parts) == 1 {
		return SingleVersionRange(minVer), nil
	}
	maxMinor, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return VersionRange{}, fmt.Errorf("invalid version range %q", s)
	}
	if maxMinor < minVer.Minor {
		return VersionRange{}, fmt.Errorf("invalid version range %q: max minor below min minor", s)
	}
	return VersionRange{MajorVer: minVer.Major, MinMinor: minVer.Minor, MaxMinor: maxMinor}, nil
}

// KernelVersion is a kernel release triplet, e.g. 3.18.22.
type KernelVersion struct {
	Version  uint64
	MajorRev uint64
	MinorRev uint64
}

func (kv KernelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", kv.Version, kv.MajorRev, kv.MinorRev)
}

// MatchesMinLts reports whether kv is an exact version/major match for the
// minimum LTS requirement min with at least its minor revision. A 3.18.22
// requirement is met by 3.18.22 and 3.18.31 but not by 3.18.21 or 4.4.1.
func (kv KernelVersion) MatchesMinLts(min KernelVersion) bool {
	return kv.Version == min.Version && kv.MajorRev == min.MajorRev && kv.MinorRev >= min.MinorRev
}

// ParseKernelVersion parses "version.major.minor".
func ParseKernelVersion(s string) (KernelVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return KernelVersion{}, fmt.Errorf("invalid kernel version %q", s)
	}
	var nums [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return KernelVersion{}, fmt.Errorf("invalid kernel version %q", s)
		}
		nums[i] = n
	}
	return KernelVersion{Version: nums[0], MajorRev: nums[1], MinorRev: nums[2]}, nil
}

// SepolicyVersion is a sepolicy version whose minor part is optional;
// absence of a minor means the major-only rolling versioning scheme used by
// newer policy versions.
type SepolicyVersion struct {
	Major uint64
	Minor *uint64
}

func (sv SepolicyVersion) String() string {
	if sv.Minor == nil {
		return strconv.FormatUint(sv.Major, 10)
	}
	return fmt.Sprintf("%d.%d", sv.Major, *sv.Minor)
}

// ParseSepolicyVersion parses "major" (rolling scheme) or "major.minor".
func ParseSepolicyVersion(s string) (SepolicyVersion, error) {
	if major, err := strconv.ParseUint(s, 10, 64); err == nil {
		return SepolicyVersion{Major: major}, nil
	}
	v, err := ParseVersion(s)
	if err != nil {
		return SepolicyVersion{}, fmt.Errorf("invalid sepolicy version %q", s)
	}
	minor := v.Minor
	return SepolicyVersion{Major: v.Major, Minor: &minor}, nil
}

// SepolicyVersionRange is a VersionRange whose minor bounds are optional.
type SepolicyVersionRange struct {
	MajorVer uint64
	MinMinor *uint64
	MaxMinor *uint64
}

// IsSingleVersion reports whether the bounds coincide (including both
// absent).
func (svr SepolicyVersionRange) IsSingleVersion() bool {
	if svr.MinMinor == nil || svr.MaxMinor == nil {
		return svr.MinMinor == nil && svr.MaxMinor == nil
	}
	return *svr.MinMinor == *svr.MaxMinor
}

// SupportedBy mirrors VersionRange.SupportedBy, degrading gracefully when
// minors are absent: an absent bound or an absent provided minor imposes no
// minor constraint.
func (svr SepolicyVersionRange) SupportedBy(v SepolicyVersion) bool {
	if svr.MajorVer != v.Major {
		return false
	}
	if svr.MinMinor == nil || v.Minor == nil {
		return true
	}
	return *svr.MinMinor <= *v.Minor
}

func (svr SepolicyVersionRange) String() string {
	if svr.MaxMinor != nil {
		min := uint64(0)
		if svr.MinMinor != nil {
			min = *svr.MinMinor
		}
		return VersionRange{MajorVer: svr.MajorVer, MinMinor: min, MaxMinor: *svr.MaxMinor}.String()
	}
	return SepolicyVersion{Major: svr.MajorVer, Minor: svr.MinMinor}.String()
}

// ParseSepolicyVersionRange parses "major", "major.minor" or
// "major.min-max".
func ParseSepolicyVersionRange(s string) (SepolicyVersionRange, error) {
	if !strings.Contains(s, "-") {
		sv, err := ParseSepolicyVersion(s)
		if err == nil {
			return SepolicyVersionRange{MajorVer: sv.Major, MinMinor: sv.Minor, MaxMinor: sv.Minor}, nil
		}
	}
	vr, err := ParseVersionRange(s)
	if err != nil {
		return SepolicyVersionRange{}, fmt.Errorf("invalid sepolicy version range %q", s)
	}
	min, max := vr.MinMinor, vr.MaxMinor
	return SepolicyVersionRange{MajorVer: vr.MajorVer, MinMinor: &min, MaxMinor: &max}, nil
}

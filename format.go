package vintf

import (
	"slices"
	"strings"
)

// expandRangeInstances renders every obligation of one version range as a
// boolean expression joined by AND, e.g.
// "(@1.2-3::IFoo/default AND @1.2-3::IFoo/slot1)". A range with no declared
// obligations renders as its bare version requirement "@1.2-3".
func expandRangeInstances(hal *MatrixHal, vr VersionRange, brace bool) string {
	var b strings.Builder
	count := 0
	hal.forEachInstance(vr, func(mi MatrixInstance) bool {
		if count > 0 {
			b.WriteString(" AND ")
		}
		instance := mi.Instance.Text()
		switch hal.Format {
		case FormatAIDL:
			b.WriteString(mi.Interface + "/" + instance + " (@" + AidlVersionRangeString(vr) + ")")
		default:
			b.WriteString(toFQNameString("", vr.String(), mi.Interface, instance))
		}
		count++
		return true
	})
	if count == 0 {
		b.WriteString("@" + vr.String())
	}
	s := b.String()
	if count >= 2 && brace {
		s = "(" + s + ")"
	}
	return s
}

// expandInstances renders the whole requirement, one entry per version
// range, with " OR" appended to every entry but the last. A requirement
// with no declared obligations renders its bare version ranges.
func expandInstances(hal *MatrixHal) []string {
	if len(hal.VersionRanges) == 0 {
		return nil
	}
	count := hal.instancesCount()
	if count == 1 || (count == 0 && len(hal.VersionRanges) == 1) {
		return []string{expandRangeInstances(hal, hal.VersionRanges[0], false)}
	}
	var out []string
	for _, vr := range hal.VersionRanges {
		if len(out) > 0 {
			out[len(out)-1] += " OR"
		}
		out = append(out, expandRangeInstances(hal, vr, true))
	}
	return out
}

// incompatibleHalMessage renders the load-bearing diagnostic for one
// unsatisfied requirement:
//
//	android.hardware.foo:
//	    required: @1.2-3::IFoo/default
//	    provided: @1.0::IFoo/default
//
// Multiple range disjuncts are each indented on their own line; provided
// endpoints are sorted for determinism.
func incompatibleHalMessage(hal *MatrixHal, provided []ManifestInstance) string {
	var b strings.Builder
	b.WriteString(hal.Name + ":\n    required: ")

	required := expandInstances(hal)
	if len(required) == 1 {
		b.WriteString(required[0])
	} else {
		for _, entry := range required {
			b.WriteString("\n        " + entry)
		}
	}

	b.WriteString("\n    provided: ")
	descriptions := make([]string, 0, len(provided))
	for _, mi := range provided {
		descriptions = append(descriptions, mi.DescriptionWithoutPackage())
	}
	slices.Sort(descriptions)
	descriptions = slices.Compact(descriptions)
	if len(descriptions) == 1 {
		b.WriteString(descriptions[0])
	} else {
		for _, d := range descriptions {
			b.WriteString("\n        " + d)
		}
	}

	return b.String()
}

package vintf

import (
	"fmt"
	"slices"
)

// Sepolicy carries the framework matrix's security-policy requirements: the
// minimum kernel sepolicy version and the set of acceptable sepolicy
// version ranges for the device.
type Sepolicy struct {
	KernelSepolicyVersion uint64
	SepolicyVersions      []SepolicyVersionRange
}

// CompatibilityMatrix is a requirement document: every HAL requirement plus
// the singleton cross-cutting fields contributed by at most one source.
type CompatibilityMatrix struct {
	Type  SchemaType
	Level Level

	hals    []*MatrixHal
	Kernels []MatrixKernel

	// Framework-matrix singletons.
	Sepolicy       *Sepolicy
	AvbMetaVersion *Version

	// Device-matrix singletons.
	VendorNdkVersion  string
	SystemSdkVersions []string
}

// AddHal appends a requirement after validating its internal range
// invariant: no two of its ranges may overlap (overlapping ranges must have
// been normalized into one on construction or combination).
func (cm *CompatibilityMatrix) AddHal(hal *MatrixHal) error {
	for i, a := range hal.VersionRanges {
		for _, b := range hal.VersionRanges[i+1:] {
			if a.Overlaps(b) {
				return fmt.Errorf("hal %s: overlapping version ranges %s and %s", hal.Name, a, b)
			}
		}
	}
	cm.hals = append(cm.hals, hal)
	return nil
}

// Hals returns all requirement entries in document order.
func (cm *CompatibilityMatrix) Hals() []*MatrixHal {
	return cm.hals
}

// HalsByName returns every entry for a HAL name (combination can leave more
// than one, at different majors or marked optional).
func (cm *CompatibilityMatrix) HalsByName(name string) []*MatrixHal {
	var out []*MatrixHal
	for _, hal := range cm.hals {
		if hal.Name == name {
			out = append(out, hal)
		}
	}
	return out
}

// HalNames returns the distinct requirement names, sorted.
func (cm *CompatibilityMatrix) HalNames() []string {
	var names []string
	for _, hal := range cm.hals {
		if !slices.Contains(names, hal.Name) {
			names = append(names, hal.Name)
		}
	}
	slices.Sort(names)
	return names
}

// clone deep-copies the matrix so combination never aliases its inputs.
func (cm *CompatibilityMatrix) clone() *CompatibilityMatrix {
	dup := *cm
	dup.hals = make([]*MatrixHal, 0, len(cm.hals))
	for _, hal := range cm.hals {
		dup.hals = append(dup.hals, hal.clone())
	}
	dup.Kernels = slices.Clone(cm.Kernels)
	for i := range dup.Kernels {
		dup.Kernels[i].Conditions = slices.Clone(cm.Kernels[i].Conditions)
		dup.Kernels[i].Configs = slices.Clone(cm.Kernels[i].Configs)
	}
	if cm.Sepolicy != nil {
		sp := *cm.Sepolicy
		sp.SepolicyVersions = slices.Clone(cm.Sepolicy.SepolicyVersions)
		dup.Sepolicy = &sp
	}
	if cm.AvbMetaVersion != nil {
		avb := *cm.AvbMetaVersion
		dup.AvbMetaVersion = &avb
	}
	dup.SystemSdkVersions = slices.Clone(cm.SystemSdkVersions)
	return &dup
}

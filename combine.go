package vintf

import (
	"fmt"
	"slices"
)

// MatrixSource pairs a requirement document with the identifier of where it
// came from (a file path, usually), so combination conflicts can name both
// offending documents.
type MatrixSource struct {
	Name   string
	Matrix *CompatibilityMatrix
}

// CombineMatrices merges per-level framework requirement documents into one
// effective document for a device shipping at deviceLevel. The document at
// deviceLevel is the base and keeps every declared optional/required flag;
// HALs declared only at higher levels fold in as optional unless an
// existing entry already subsumes their instances, in which case the
// version ranges are unioned and the existing flag preserved.
//
// Kernel requirements are gathered from every document at or above
// min(deviceLevel, kernelLevel) and tagged with their source level;
// kernelLevel may be LevelUnspecified.
//
// The inputs are never mutated; a new document is returned. Any conflict
// aborts the whole combination with a ConflictError.
func CombineMatrices(matrices []MatrixSource, deviceLevel, kernelLevel Level) (*CompatibilityMatrix, error) {
	if len(matrices) == 0 {
		return nil, fmt.Errorf("no matrices to combine")
	}
	for _, src := range matrices {
		if src.Matrix.Type != SchemaFramework {
			return nil, fmt.Errorf("matrix %q is not a framework matrix", src.Name)
		}
	}

	if deviceLevel == LevelUnspecified {
		// Legacy devices and devices in development target the lowest
		// declared level.
		deviceLevel = lowestLevel(matrices)
	}

	ordered := slices.Clone(matrices)
	slices.SortStableFunc(ordered, func(a, b MatrixSource) int {
		switch {
		case a.Matrix.Level < b.Matrix.Level:
			return -1
		case a.Matrix.Level > b.Matrix.Level:
			return 1
		}
		return 0
	})

	var base *CompatibilityMatrix
	var baseSource string
	for _, src := range ordered {
		if src.Matrix.Level == deviceLevel {
			base = src.Matrix.clone()
			baseSource = src.Name
			break
		}
	}
	if base == nil {
		return nil, fmt.Errorf("cannot find matrix with level %q", deviceLevel)
	}
	if err := validateKernelBaselines(baseSource, base.Kernels); err != nil {
		return nil, err
	}

	kernelThreshold := deviceLevel
	if kernelLevel != LevelUnspecified && kernelLevel < kernelThreshold {
		kernelThreshold = kernelLevel
	}

	for _, src := range ordered {
		if src.Matrix.Level == deviceLevel && src.Name == baseSource {
			continue
		}
		if src.Matrix.Level > deviceLevel {
			addAllHalsAsOptional(base, src.Matrix)
		}
		if src.Matrix.Level >= kernelThreshold && src.Matrix.Level != deviceLevel {
			if err := addAllKernels(base, src, baseSource); err != nil {
				return nil, err
			}
		}
		if err := mergeSingletons(base, baseSource, src); err != nil {
			return nil, err
		}
	}
	return base, nil
}

// CombineDeviceMatrices merges multiple partial device requirement
// documents. There is no level precedence: HAL sets are unioned keeping
// their declared flags, and a duplicate singleton field is always a
// conflict.
func CombineDeviceMatrices(matrices []MatrixSource) (*CompatibilityMatrix, error) {
	if len(matrices) == 0 {
		return nil, fmt.Errorf("no matrices to combine")
	}
	for _, src := range matrices {
		if src.Matrix.Type != SchemaDevice {
			return nil, fmt.Errorf("matrix %q is not a device matrix", src.Name)
		}
	}
	base := matrices[0].Matrix.clone()
	baseSource := matrices[0].Name
	for _, src := range matrices[1:] {
		addAllHals(base, src.Matrix)
		base.Kernels = append(base.Kernels, src.Matrix.clone().Kernels...)
		if err := mergeSingletons(base, baseSource, src); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func lowestLevel(matrices []MatrixSource) Level {
	ret := LevelUnspecified
	for _, src := range matrices {
		if ret == LevelUnspecified || (src.Matrix.Level != LevelUnspecified && src.Matrix.Level < ret) {
			ret = src.Matrix.Level
		}
	}
	return ret
}

// addAllHalsAsOptional folds other's HAL entries into dst. An entry whose
// instances are already subsumed by an existing entry of the same name
// extends that entry's version ranges and keeps its flag; anything else is
// appended as a new entry forced optional, because a requirement appearing
// only at a higher level must not become mandatory at the target level.
func addAllHalsAsOptional(dst *CompatibilityMatrix, other *CompatibilityMatrix) {
	for _, incoming := range other.Hals() {
		merged := false
		for _, existing := range dst.HalsByName(incoming.Name) {
			if existing.ContainsInstances(incoming) {
				existing.VersionRanges = existing.insertVersionRanges(incoming)
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		dup := incoming.clone()
		dup.Optional = true
		dst.hals = append(dst.hals, dup)
	}
}

// addAllHals is the device-side union: flags are preserved as declared.
func addAllHals(dst *CompatibilityMatrix, other *CompatibilityMatrix) {
	for _, incoming := range other.Hals() {
		merged := false
		for _, existing := range dst.HalsByName(incoming.Name) {
			if existing.ContainsInstances(incoming) {
				existing.VersionRanges = existing.insertVersionRanges(incoming)
				merged = true
				break
			}
		}
		if !merged {
			dst.hals = append(dst.hals, incoming.clone())
		}
	}
}

// addAllKernels merges other's kernel entries into dst. Unconditional
// baselines for the same kernel version must agree exactly; conditioned
// entries are concatenated, never merged, preserving each one's own
// condition/config pairing. A conditioned entry for a kernel version no
// document has introduced with an unconditional baseline is an error.
// Every retained entry is tagged with its source document's level.
func addAllKernels(dst *CompatibilityMatrix, other MatrixSource, dstSource string) error {
	for _, incoming := range other.Matrix.Kernels {
		entry := incoming
		entry.Conditions = slices.Clone(incoming.Conditions)
		entry.Configs = slices.Clone(incoming.Configs)
		entry.SourceLevel = other.Matrix.Level

		if len(entry.Conditions) == 0 {
			if existing := findBaseline(dst.Kernels, entry.MinLts); existing != nil {
				if !kernelConfigsEqual(existing.Configs, entry.Configs) {
					return &ConflictError{
						Field:   fmt.Sprintf("kernel %s baseline", entry.MinLts),
						SourceA: dstSource,
						SourceB: other.Name,
					}
				}
				continue
			}
		} else if findBaseline(dst.Kernels, entry.MinLts) == nil {
			return fmt.Errorf("matrix %q: conditioned kernel entry for %s has no unconditional baseline",
				other.Name, entry.MinLts)
		}
		dst.Kernels = append(dst.Kernels, entry)
	}
	return nil
}

// validateKernelBaselines checks that every kernel version carrying
// conditioned entries is introduced by an unconditional baseline entry
// first.
func validateKernelBaselines(source string, kernels []MatrixKernel) error {
	seen := make(map[KernelVersion]bool)
	for _, k := range kernels {
		if len(k.Conditions) == 0 {
			seen[k.MinLts] = true
			continue
		}
		if !seen[k.MinLts] {
			return fmt.Errorf("matrix %q: conditioned kernel entry for %s has no unconditional baseline",
				source, k.MinLts)
		}
	}
	return nil
}

func findBaseline(kernels []MatrixKernel, version KernelVersion) *MatrixKernel {
	for i := range kernels {
		if len(kernels[i].Conditions) == 0 && kernels[i].MinLts == version {
			return &kernels[i]
		}
	}
	return nil
}

func kernelConfigsEqual(a, b []KernelConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for _, ca := range a {
		found := false
		for _, cb := range b {
			if ca.Key == cb.Key && ca.Value.Equal(cb.Value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// mergeSingletons enforces the at-most-one-contributor rule for the
// cross-cutting fields: a second document defining an already-defined
// singleton is a conflict naming both documents; a field nobody has
// defined yet is adopted from its first contributor.
func mergeSingletons(dst *CompatibilityMatrix, dstSource string, src MatrixSource) error {
	conflict := func(field string) error {
		return &ConflictError{Field: field, SourceA: dstSource, SourceB: src.Name}
	}
	other := src.Matrix

	if other.Sepolicy != nil {
		if dst.Sepolicy != nil {
			return conflict("sepolicy")
		}
		sp := *other.Sepolicy
		sp.SepolicyVersions = slices.Clone(other.Sepolicy.SepolicyVersions)
		dst.Sepolicy = &sp
	}
	if other.AvbMetaVersion != nil {
		if dst.AvbMetaVersion != nil {
			return conflict("avb version")
		}
		avb := *other.AvbMetaVersion
		dst.AvbMetaVersion = &avb
	}
	if other.VendorNdkVersion != "" {
		if dst.VendorNdkVersion != "" {
			return conflict("vendor ndk version")
		}
		dst.VendorNdkVersion = other.VendorNdkVersion
	}
	if len(other.SystemSdkVersions) > 0 {
		if len(dst.SystemSdkVersions) > 0 {
			return conflict("system sdk versions")
		}
		dst.SystemSdkVersions = slices.Clone(other.SystemSdkVersions)
	}
	return nil
}

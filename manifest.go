package vintf

import (
	"fmt"
	"slices"
	"strings"
)

// HalManifest is a capability document: the HALs a partition actually
// provides, plus the partition's level and (for device manifests) its
// sepolicy version.
type HalManifest struct {
	Type  SchemaType
	Level Level

	hals []*ManifestHal

	// Device-manifest singleton.
	SepolicyVersion SepolicyVersion
}

// AddHal appends a capability entry. Declaring the same (name, major
// version) twice in one document is a validation error.
func (m *HalManifest) AddHal(hal *ManifestHal) error {
	for _, existing := range m.hals {
		if existing.Name != hal.Name {
			continue
		}
		for _, v := range hal.Versions {
			for _, ev := range existing.Versions {
				if v.Major == ev.Major {
					return fmt.Errorf("hal %s: duplicate major version %d", hal.Name, v.Major)
				}
			}
		}
	}
	m.hals = append(m.hals, hal)
	return nil
}

// Hals returns all capability entries in document order.
func (m *HalManifest) Hals() []*ManifestHal {
	return m.hals
}

// HalsByName returns every entry for a HAL name.
func (m *HalManifest) HalsByName(name string) []*ManifestHal {
	var out []*ManifestHal
	for _, hal := range m.hals {
		if hal.Name == name {
			out = append(out, hal)
		}
	}
	return out
}

// AddAll folds another manifest fragment into this one, enforcing level
// agreement; a HAL conflict surfaces as a ConflictError naming the HAL.
// Used when assembling a partition manifest from fragments.
func (m *HalManifest) AddAll(other *HalManifest, source, otherSource string) error {
	if other.Level != LevelUnspecified {
		if m.Level == LevelUnspecified {
			m.Level = other.Level
		} else if m.Level != other.Level {
			return &ConflictError{
				Field:   "target level",
				SourceA: source,
				SourceB: otherSource,
				Err:     fmt.Errorf("level %s vs %s", m.Level, other.Level),
			}
		}
	}
	for _, hal := range other.hals {
		if err := m.AddHal(hal.clone()); err != nil {
			return &ConflictError{Field: "hal " + hal.Name, SourceA: source, SourceB: otherSource, Err: err}
		}
	}
	if other.SepolicyVersion != (SepolicyVersion{}) {
		if m.SepolicyVersion != (SepolicyVersion{}) {
			return &ConflictError{Field: "sepolicy version", SourceA: source, SourceB: otherSource}
		}
		m.SepolicyVersion = other.SepolicyVersion
	}
	return nil
}

// ProvidedInstances returns every endpoint provided for a HAL name, fully
// qualified, sorted.
func (m *HalManifest) ProvidedInstances(name string) []ManifestInstance {
	var out []ManifestInstance
	for _, hal := range m.HalsByName(name) {
		out = append(out, hal.Instances()...)
	}
	slices.SortFunc(out, ManifestInstance.Compare)
	return out
}

// ProvidedVersions returns every concrete version provided for a HAL name.
func (m *HalManifest) ProvidedVersions(name string) []Version {
	var out []Version
	for _, hal := range m.HalsByName(name) {
		out = append(out, hal.Versions...)
	}
	slices.SortFunc(out, Version.Compare)
	return slices.Compact(out)
}

// CheckCompatibility decides whether this manifest satisfies every required
// HAL of the matrix, and for device manifests the matrix's sepolicy version
// requirement. The returned error is a CompatError whose Diagnostic names
// each unmet requirement with its required-vs-provided rendering.
func (m *HalManifest) CheckCompatibility(mat *CompatibilityMatrix) error {
	if m.Type == mat.Type {
		return fmt.Errorf("cannot check a %s manifest against a %s matrix", m.Type, mat.Type)
	}

	var unmet []string
	for _, hal := range mat.Hals() {
		if hal.Optional {
			continue
		}
		provided := m.ProvidedInstances(hal.Name)
		fqs := make([]FqInstance, 0, len(provided))
		for _, mi := range provided {
			fqs = append(fqs, mi.FqInstance)
		}
		if hal.IsCompatible(fqs, m.ProvidedVersions(hal.Name)) {
			continue
		}
		unmet = append(unmet, incompatibleHalMessage(hal, provided))
	}

	if len(unmet) > 0 {
		var b strings.Builder
		b.WriteString("HALs incompatible.")
		if mat.Level != LevelUnspecified {
			b.WriteString(" Matrix level = " + mat.Level.String())
		}
		if m.Level != LevelUnspecified {
			b.WriteString(" Manifest level = " + m.Level.String())
		}
		b.WriteString(" The following requirements are not met:\n")
		for _, msg := range unmet {
			b.WriteString(msg + "\n")
		}
		return &CompatError{Diagnostic: b.String()}
	}

	if m.Type == SchemaDevice && mat.Type == SchemaFramework && mat.Sepolicy != nil {
		if !m.sepolicyVersionSatisfied(mat.Sepolicy) {
			return &CompatError{Diagnostic: fmt.Sprintf(
				"Sepolicy version %s doesn't satisfy the requirements %s",
				m.SepolicyVersion, sepolicyRangesString(mat.Sepolicy.SepolicyVersions))}
		}
	}

	return nil
}

func (m *HalManifest) sepolicyVersionSatisfied(sp *Sepolicy) bool {
	for _, svr := range sp.SepolicyVersions {
		if svr.SupportedBy(m.SepolicyVersion) {
			return true
		}
	}
	return false
}

func sepolicyRangesString(ranges []SepolicyVersionRange) string {
	parts := make([]string, 0, len(ranges))
	for _, svr := range ranges {
		parts = append(parts, svr.String())
	}
	slices.Sort(parts)
	return strings.Join(parts, ", ")
}

// GenerateCompatibleMatrix derives a skeleton requirement document that
// this manifest trivially satisfies: one optional entry per provided HAL
// with a single-version range per provided version.
func (m *HalManifest) GenerateCompatibleMatrix() *CompatibilityMatrix {
	mat := &CompatibilityMatrix{Type: oppositeSchema(m.Type)}
	for _, hal := range m.hals {
		req := &MatrixHal{
			Format:     hal.Format,
			Name:       hal.Name,
			Optional:   true,
			Interfaces: make(map[string]HalInterface),
		}
		for _, v := range hal.Versions {
			req.VersionRanges = append(req.VersionRanges, SingleVersionRange(v))
		}
		hal.ForEachInstance(func(mi ManifestInstance) bool {
			name := mi.FqInstance.Interface()
			hi := req.Interfaces[name]
			hi.Name = name
			if !hi.MatchesInstance(mi.FqInstance.Instance()) {
				hi.Instances = append(hi.Instances, ExactInstance(mi.FqInstance.Instance()))
			}
			req.Interfaces[name] = hi
			return true
		})
		mat.hals = append(mat.hals, req)
	}
	return mat
}

func oppositeSchema(t SchemaType) SchemaType {
	if t == SchemaDevice {
		return SchemaFramework
	}
	return SchemaDevice
}

// clone deep-copies the manifest.
func (m *HalManifest) clone() *HalManifest {
	dup := *m
	dup.hals = make([]*ManifestHal, 0, len(m.hals))
	for _, hal := range m.hals {
		dup.hals = append(dup.hals, hal.clone())
	}
	return &dup
}

package vintf

import (
	"fmt"
	"slices"
)

// ManifestInstance is one concrete provided endpoint of a HAL manifest,
// together with its transport binding and, for HALs served out of process
// by another package, an accessor reference.
type ManifestInstance struct {
	FqInstance FqInstance
	Transport  Transport
	Format     HalFormat
	Accessor   string

	// UpdatableViaApex names the package that can deliver updates to this
	// HAL, when it is updatable.
	UpdatableViaApex string
}

// Description renders the instance for operator-facing output.
// AIDL: "package.interface/instance (@version)"; others:
// "package@version::interface/instance".
func (mi ManifestInstance) Description() string {
	fq := mi.FqInstance
	if mi.Format == FormatAIDL {
		return toAidlFqnameString(fq.Package(), fq.Interface(), fq.Instance()) +
			" (@" + AidlVersionString(fq.Version()) + ")"
	}
	return toFQNameString(fq.Package(), fq.Version().String(), fq.Interface(), fq.Instance())
}

// DescriptionWithoutPackage is Description without the leading package,
// used when the surrounding context already names the HAL.
func (mi ManifestInstance) DescriptionWithoutPackage() string {
	fq := mi.FqInstance
	if mi.Format == FormatAIDL {
		s := fq.Interface()
		if fq.Instance() != "" {
			s += "/" + fq.Instance()
		}
		return s + " (@" + AidlVersionString(fq.Version()) + ")"
	}
	return toFQNameString("", fq.Version().String(), fq.Interface(), fq.Instance())
}

// Compare orders instances by coordinate; used for stable diagnostics.
func (mi ManifestInstance) Compare(other ManifestInstance) int {
	return mi.FqInstance.Compare(other.FqInstance)
}

// ManifestHal is one named HAL capability of a manifest: the format, the
// concrete versions served, the transport, and the (interface, instance)
// pairs actually provided.
type ManifestHal struct {
	Format           HalFormat
	Name             string
	Versions         []Version
	Transport        Transport
	Accessor         string
	UpdatableViaApex string

	// fqInstances are the provided endpoints, without package (the HAL
	// name) and, for legacy <interface> declarations, expanded per version.
	fqInstances []FqInstance
}

// NewManifestHal builds a capability entry. Versions must not repeat a
// major version; instances are deduplicated.
func NewManifestHal(format HalFormat, name string, versions []Version, transport Transport, instances []FqInstance) (*ManifestHal, error) {
	seen := make(map[uint64]bool, len(versions))
	for _, v := range versions {
		if seen[v.Major] {
			return nil, fmt.Errorf("hal %s: duplicate major version %d", name, v.Major)
		}
		seen[v.Major] = true
	}
	hal := &ManifestHal{
		Format:    format,
		Name:      name,
		Versions:  slices.Clone(versions),
		Transport: transport,
	}
	for _, fq := range instances {
		hal.addInstance(fq)
	}
	return hal, nil
}

func (hal *ManifestHal) addInstance(fq FqInstance) {
	for _, existing := range hal.fqInstances {
		if existing.Compare(fq) == 0 {
			return
		}
	}
	hal.fqInstances = append(hal.fqInstances, fq)
}

// ForEachInstance visits every provided endpoint, fully qualified with the
// HAL name, in deterministic order.
func (hal *ManifestHal) ForEachInstance(fn func(ManifestInstance) bool) bool {
	instances := make([]ManifestInstance, 0, len(hal.fqInstances))
	for _, fq := range hal.fqInstances {
		instances = append(instances, ManifestInstance{
			FqInstance:       fq.WithPackage(hal.Name),
			Transport:        hal.Transport,
			Format:           hal.Format,
			Accessor:         hal.Accessor,
			UpdatableViaApex: hal.UpdatableViaApex,
		})
	}
	slices.SortFunc(instances, ManifestInstance.Compare)
	for _, mi := range instances {
		if !fn(mi) {
			return false
		}
	}
	return true
}

// Instances returns the provided endpoints sorted by coordinate.
func (hal *ManifestHal) Instances() []ManifestInstance {
	var out []ManifestInstance
	hal.ForEachInstance(func(mi ManifestInstance) bool {
		out = append(out, mi)
		return true
	})
	return out
}

// clone deep-copies the capability entry.
func (hal *ManifestHal) clone() *ManifestHal {
	dup := *hal
	dup.Versions = slices.Clone(hal.Versions)
	dup.fqInstances = slices.Clone(hal.fqInstances)
	return &dup
}

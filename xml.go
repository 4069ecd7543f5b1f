package vintf

import (
	"encoding/xml"
	"fmt"
)

// metaVersion is the document schema version stamped on written documents.
// Readers accept any value; unknown elements are ignored rather than
// rejected so newer documents stay loadable.
const metaVersion = "1.0"

// SerializeFlags selects which parts of a document a writer emits.
type SerializeFlags int

const (
	// SerializeEverything writes the full document.
	SerializeEverything SerializeFlags = iota
	// SerializeHalsOnly writes only the HAL entries (plus identity attrs).
	SerializeHalsOnly
	// SerializeNoHals writes everything except the HAL entries.
	SerializeNoHals
)

// Wire representation. The domain types keep unexported invariant-bearing
// fields, so (un)marshalling goes through these flat structs and explicit
// conversion, which is also where per-HAL validation errors are produced.

type xmlManifestInterface struct {
	Name      string   `xml:"name"`
	Instances []string `xml:"instance"`
}

type xmlManifestHal struct {
	Format           string                 `xml:"format,attr,omitempty"`
	UpdatableViaApex string                 `xml:"updatable-via-apex,attr,omitempty"`
	Name             string                 `xml:"name"`
	Transport        string                 `xml:"transport,omitempty"`
	Accessor         string                 `xml:"accessor,omitempty"`
	Versions         []string               `xml:"version"`
	Interfaces       []xmlManifestInterface `xml:"interface"`
	Fqnames          []string               `xml:"fqname"`
}

type xmlManifestSepolicy struct {
	Version string `xml:"version"`
}

type xmlManifest struct {
	XMLName     xml.Name             `xml:"manifest"`
	Version     string               `xml:"version,attr"`
	Type        string               `xml:"type,attr"`
	TargetLevel string               `xml:"target-level,attr,omitempty"`
	Hals        []xmlManifestHal     `xml:"hal"`
	Sepolicy    *xmlManifestSepolicy `xml:"sepolicy"`
}

type xmlMatrixInterface struct {
	Name           string   `xml:"name"`
	Instances      []string `xml:"instance"`
	RegexInstances []string `xml:"regex-instance"`
}

type xmlMatrixHal struct {
	Format           string               `xml:"format,attr,omitempty"`
	Optional         bool                 `xml:"optional,attr"`
	UpdatableViaApex bool                 `xml:"updatable-via-apex,attr,omitempty"`
	Name             string               `xml:"name"`
	Versions         []string             `xml:"version"`
	Interfaces       []xmlMatrixInterface `xml:"interface"`
}

type xmlConfigValue struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

type xmlKernelConfig struct {
	Key   string         `xml:"key"`
	Value xmlConfigValue `xml:"value"`
}

type xmlConditions struct {
	Configs []xmlKernelConfig `xml:"config"`
}

type xmlMatrixKernel struct {
	Version    string            `xml:"version,attr"`
	Level      string            `xml:"level,attr,omitempty"`
	Conditions *xmlConditions    `xml:"conditions"`
	Configs    []xmlKernelConfig `xml:"config"`
}

type xmlMatrixSepolicy struct {
	KernelSepolicyVersion uint64   `xml:"kernel-sepolicy-version"`
	SepolicyVersions      []string `xml:"sepolicy-version"`
}

type xmlAvb struct {
	VbmetaVersion string `xml:"vbmeta-version"`
}

type xmlVendorNdk struct {
	Version string `xml:"version"`
}

type xmlSystemSdk struct {
	Versions []string `xml:"version"`
}

type xmlCompatibilityMatrix struct {
	XMLName   xml.Name           `xml:"compatibility-matrix"`
	Version   string             `xml:"version,attr"`
	Type      string             `xml:"type,attr"`
	Level     string             `xml:"level,attr,omitempty"`
	Hals      []xmlMatrixHal     `xml:"hal"`
	Kernels   []xmlMatrixKernel  `xml:"kernel"`
	Sepolicy  *xmlMatrixSepolicy `xml:"sepolicy"`
	Avb       *xmlAvb            `xml:"avb"`
	VendorNdk *xmlVendorNdk      `xml:"vendor-ndk"`
	SystemSdk *xmlSystemSdk      `xml:"system-sdk"`
}

func parseHalFormatAttr(s string) (HalFormat, error) {
	if s == "" {
		return FormatHIDL, nil
	}
	return ParseHalFormat(s)
}

// UnmarshalHalManifest parses a manifest document, validating each HAL
// entry as it converts; the error names the offending HAL.
func UnmarshalHalManifest(data []byte) (*HalManifest, error) {
	var doc xmlManifest
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse manifest: %w", err)
	}

	m := &HalManifest{}
	typ, err := ParseSchemaType(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	m.Type = typ
	level, err := ParseLevel(doc.TargetLevel)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	m.Level = level

	for _, xh := range doc.Hals {
		hal, err := convertManifestHal(xh)
		if err != nil {
			return nil, fmt.Errorf("manifest hal %q: %w", xh.Name, err)
		}
		if err := m.AddHal(hal); err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
	}

	if doc.Sepolicy != nil {
		sv, err := ParseSepolicyVersion(doc.Sepolicy.Version)
		if err != nil {
			return nil, fmt.Errorf("manifest sepolicy: %w", err)
		}
		m.SepolicyVersion = sv
	}
	return m, nil
}

func convertManifestHal(xh xmlManifestHal) (*ManifestHal, error) {
	format, err := parseHalFormatAttr(xh.Format)
	if err != nil {
		return nil, err
	}

	parseVer := ParseVersion
	if format == FormatAIDL {
		parseVer = ParseAidlVersion
	}
	var versions []Version
	for _, raw := range xh.Versions {
		v, err := parseVer(raw)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		if format != FormatAIDL {
			return nil, fmt.Errorf("no version declared")
		}
		// An AIDL HAL with no declared version serves version 1.
		versions = []Version{{Major: fakeAidlMajor, Minor: defaultAidlMinor}}
	}

	transport, err := ParseTransport(xh.Transport)
	if err != nil {
		return nil, err
	}
	if format == FormatHIDL && transport == TransportEmpty {
		return nil, fmt.Errorf("hidl hal requires a transport")
	}

	// Legacy <interface>/<instance> pairs provide the instance at every
	// declared version; <fqname> entries carry their own version, except for
	// AIDL where the declared versions apply.
	var instances []FqInstance
	for _, xi := range xh.Interfaces {
		for _, inst := range xi.Instances {
			for _, v := range versions {
				instances = append(instances, NewFqInstance("", v, xi.Name, inst))
			}
		}
	}
	for _, raw := range xh.Fqnames {
		fq, err := ParseFqInstance(raw)
		if err != nil {
			return nil, err
		}
		if fq.HasPackage() {
			return nil, fmt.Errorf("fqname %q must not name a package", raw)
		}
		if fq.HasVersion() {
			instances = append(instances, fq)
			continue
		}
		for _, v := range versions {
			instances = append(instances, fq.WithVersion(v))
		}
	}

	hal, err := NewManifestHal(format, xh.Name, versions, transport, instances)
	if err != nil {
		return nil, err
	}
	hal.Accessor = xh.Accessor
	hal.UpdatableViaApex = xh.UpdatableViaApex
	return hal, nil
}

// MarshalHalManifest writes a manifest document. Provided endpoints are
// written in the <fqname> form.
func MarshalHalManifest(m *HalManifest, flags SerializeFlags) ([]byte, error) {
	doc := xmlManifest{
		Version:     metaVersion,
		Type:        m.Type.String(),
		TargetLevel: m.Level.String(),
	}
	if flags != SerializeNoHals {
		for _, hal := range m.Hals() {
			doc.Hals = append(doc.Hals, convertManifestHalToXML(hal))
		}
	}
	if flags != SerializeHalsOnly && m.SepolicyVersion != (SepolicyVersion{}) {
		doc.Sepolicy = &xmlManifestSepolicy{Version: m.SepolicyVersion.String()}
	}
	return marshalIndented(doc)
}

func convertManifestHalToXML(hal *ManifestHal) xmlManifestHal {
	xh := xmlManifestHal{
		Format:           hal.Format.String(),
		UpdatableViaApex: hal.UpdatableViaApex,
		Name:             hal.Name,
		Transport:        hal.Transport.String(),
		Accessor:         hal.Accessor,
	}
	for _, v := range hal.Versions {
		if hal.Format == FormatAIDL {
			xh.Versions = append(xh.Versions, AidlVersionString(v))
		} else {
			xh.Versions = append(xh.Versions, v.String())
		}
	}
	hal.ForEachInstance(func(mi ManifestInstance) bool {
		fq := mi.FqInstance
		if hal.Format == FormatAIDL {
			xh.Fqnames = append(xh.Fqnames, fq.Interface()+"/"+fq.Instance())
		} else {
			xh.Fqnames = append(xh.Fqnames, "@"+fq.Version().String()+"::"+fq.Interface()+"/"+fq.Instance())
		}
		return true
	})
	return xh
}

// UnmarshalCompatibilityMatrix parses a requirement document, validating
// each HAL entry as it converts; the error names the offending HAL.
func UnmarshalCompatibilityMatrix(data []byte) (*CompatibilityMatrix, error) {
	var doc xmlCompatibilityMatrix
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse compatibility matrix: %w", err)
	}

	cm := &CompatibilityMatrix{}
	typ, err := ParseSchemaType(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("compatibility matrix: %w", err)
	}
	cm.Type = typ
	level, err := ParseLevel(doc.Level)
	if err != nil {
		return nil, fmt.Errorf("compatibility matrix: %w", err)
	}
	cm.Level = level

	for _, xh := range doc.Hals {
		hal, err := convertMatrixHal(xh)
		if err != nil {
			return nil, fmt.Errorf("matrix hal %q: %w", xh.Name, err)
		}
		if err := cm.AddHal(hal); err != nil {
			return nil, fmt.Errorf("compatibility matrix: %w", err)
		}
	}

	for _, xk := range doc.Kernels {
		mk, err := convertMatrixKernel(xk)
		if err != nil {
			return nil, fmt.Errorf("matrix kernel %q: %w", xk.Version, err)
		}
		cm.Kernels = append(cm.Kernels, mk)
	}

	if doc.Sepolicy != nil {
		sp := &Sepolicy{KernelSepolicyVersion: doc.Sepolicy.KernelSepolicyVersion}
		for _, raw := range doc.Sepolicy.SepolicyVersions {
			svr, err := ParseSepolicyVersionRange(raw)
			if err != nil {
				return nil, fmt.Errorf("matrix sepolicy: %w", err)
			}
			sp.SepolicyVersions = append(sp.SepolicyVersions, svr)
		}
		cm.Sepolicy = sp
	}
	if doc.Avb != nil {
		v, err := ParseVersion(doc.Avb.VbmetaVersion)
		if err != nil {
			return nil, fmt.Errorf("matrix avb: %w", err)
		}
		cm.AvbMetaVersion = &v
	}
	if doc.VendorNdk != nil {
		cm.VendorNdkVersion = doc.VendorNdk.Version
	}
	if doc.SystemSdk != nil {
		cm.SystemSdkVersions = doc.SystemSdk.Versions
	}
	return cm, nil
}

func convertMatrixHal(xh xmlMatrixHal) (*MatrixHal, error) {
	format, err := parseHalFormatAttr(xh.Format)
	if err != nil {
		return nil, err
	}

	parseRange := ParseVersionRange
	if format == FormatAIDL {
		parseRange = ParseAidlVersionRange
	}
	var ranges []VersionRange
	for _, raw := range xh.Versions {
		vr, err := parseRange(raw)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, vr)
	}
	if len(ranges) == 0 {
		if format != FormatAIDL {
			return nil, fmt.Errorf("no version declared")
		}
		ranges = []VersionRange{{MajorVer: fakeAidlMajor, MinMinor: defaultAidlMinor, MaxMinor: defaultAidlMinor}}
	}

	hal := &MatrixHal{
		Format:           format,
		Name:             xh.Name,
		VersionRanges:    ranges,
		Optional:         xh.Optional,
		UpdatableViaApex: xh.UpdatableViaApex,
		Interfaces:       make(map[string]HalInterface, len(xh.Interfaces)),
	}
	for _, xi := range xh.Interfaces {
		if _, ok := hal.Interfaces[xi.Name]; ok {
			return nil, fmt.Errorf("duplicate interface %q", xi.Name)
		}
		hi := HalInterface{Name: xi.Name}
		for _, inst := range xi.Instances {
			hi.Instances = append(hi.Instances, ExactInstance(inst))
		}
		for _, pattern := range xi.RegexInstances {
			rin, err := RegexInstance(pattern)
			if err != nil {
				return nil, err
			}
			hi.Instances = append(hi.Instances, rin)
		}
		hal.Interfaces[xi.Name] = hi
	}
	return hal, nil
}

func convertMatrixKernel(xk xmlMatrixKernel) (MatrixKernel, error) {
	minLts, err := ParseKernelVersion(xk.Version)
	if err != nil {
		return MatrixKernel{}, err
	}
	level, err := ParseLevel(xk.Level)
	if err != nil {
		return MatrixKernel{}, err
	}
	mk := MatrixKernel{MinLts: minLts, SourceLevel: level}
	if xk.Conditions != nil {
		for _, xc := range xk.Conditions.Configs {
			kc, err := convertKernelConfig(xc)
			if err != nil {
				return MatrixKernel{}, err
			}
			mk.Conditions = append(mk.Conditions, kc)
		}
	}
	for _, xc := range xk.Configs {
		kc, err := convertKernelConfig(xc)
		if err != nil {
			return MatrixKernel{}, err
		}
		mk.Configs = append(mk.Configs, kc)
	}
	return mk, nil
}

func convertKernelConfig(xc xmlKernelConfig) (KernelConfig, error) {
	typ, err := ParseKernelConfigType(xc.Value.Type)
	if err != nil {
		return KernelConfig{}, fmt.Errorf("config %s: %w", xc.Key, err)
	}
	value, err := ParseKernelConfigValue(xc.Value.Text, typ)
	if err != nil {
		return KernelConfig{}, fmt.Errorf("config %s: %w", xc.Key, err)
	}
	return KernelConfig{Key: xc.Key, Value: value}, nil
}

// MarshalCompatibilityMatrix writes a requirement document.
func MarshalCompatibilityMatrix(cm *CompatibilityMatrix, flags SerializeFlags) ([]byte, error) {
	doc := xmlCompatibilityMatrix{
		Version: metaVersion,
		Type:    cm.Type.String(),
		Level:   cm.Level.String(),
	}
	if flags != SerializeNoHals {
		for _, hal := range cm.Hals() {
			doc.Hals = append(doc.Hals, convertMatrixHalToXML(hal))
		}
	}
	if flags != SerializeHalsOnly {
		for i := range cm.Kernels {
			doc.Kernels = append(doc.Kernels, convertMatrixKernelToXML(&cm.Kernels[i]))
		}
		if cm.Sepolicy != nil {
			sp := &xmlMatrixSepolicy{KernelSepolicyVersion: cm.Sepolicy.KernelSepolicyVersion}
			for _, svr := range cm.Sepolicy.SepolicyVersions {
				sp.SepolicyVersions = append(sp.SepolicyVersions, svr.String())
			}
			doc.Sepolicy = sp
		}
		if cm.AvbMetaVersion != nil {
			doc.Avb = &xmlAvb{VbmetaVersion: cm.AvbMetaVersion.String()}
		}
		if cm.VendorNdkVersion != "" {
			doc.VendorNdk = &xmlVendorNdk{Version: cm.VendorNdkVersion}
		}
		if len(cm.SystemSdkVersions) > 0 {
			doc.SystemSdk = &xmlSystemSdk{Versions: cm.SystemSdkVersions}
		}
	}
	return marshalIndented(doc)
}

func convertMatrixHalToXML(hal *MatrixHal) xmlMatrixHal {
	xh := xmlMatrixHal{
		Format:           hal.Format.String(),
		Optional:         hal.Optional,
		UpdatableViaApex: hal.UpdatableViaApex,
		Name:             hal.Name,
	}
	for _, vr := range hal.VersionRanges {
		if hal.Format == FormatAIDL {
			xh.Versions = append(xh.Versions, AidlVersionRangeString(vr))
		} else {
			xh.Versions = append(xh.Versions, vr.String())
		}
	}
	for _, name := range hal.interfaceNames() {
		hi := hal.Interfaces[name]
		xi := xmlMatrixInterface{Name: name}
		for _, inst := range hi.Instances {
			if inst.IsRegex() {
				xi.RegexInstances = append(xi.RegexInstances, inst.Text())
			} else {
				xi.Instances = append(xi.Instances, inst.Text())
			}
		}
		xh.Interfaces = append(xh.Interfaces, xi)
	}
	return xh
}

func convertMatrixKernelToXML(mk *MatrixKernel) xmlMatrixKernel {
	xk := xmlMatrixKernel{
		Version: mk.MinLts.String(),
		Level:   mk.SourceLevel.String(),
	}
	if len(mk.Conditions) > 0 {
		conds := &xmlConditions{}
		for _, kc := range mk.Conditions {
			conds.Configs = append(conds.Configs, convertKernelConfigToXML(kc))
		}
		xk.Conditions = conds
	}
	for _, kc := range mk.Configs {
		xk.Configs = append(xk.Configs, convertKernelConfigToXML(kc))
	}
	return xk
}

func convertKernelConfigToXML(kc KernelConfig) xmlKernelConfig {
	return xmlKernelConfig{
		Key:   kc.Key,
		Value: xmlConfigValue{Type: kc.Value.Type.String(), Text: kc.Value.String()},
	}
}

func marshalIndented(doc any) ([]byte, error) {
	out, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

package vintf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Build-system flags consulted during assembly. They are read through the
// PropertyFetcher so tests and callers can inject them.
const (
	flagBoardSepolicyVers     = "BOARD_SEPOLICY_VERS"
	flagPolicyVers            = "POLICYVERS"
	flagFrameworkVbmeta       = "FRAMEWORK_VBMETA_VERSION"
	flagShippingAPILevel      = "PRODUCT_SHIPPING_API_LEVEL"
	flagEnforceVintfManifest  = "PRODUCT_ENFORCE_VINTF_MANIFEST"
	enforceVintfApiLevelFloor = 26
)

// kernelArg is one --kernel style argument: the minimum LTS version plus
// its android-base fragment files.
type kernelArg struct {
	minLts KernelVersion
	paths  []string
}

// Assembler merges partial documents into one effective manifest or matrix,
// the way the build system produces the files installed on a device image.
// Input kind is autodetected from the document root element; all inputs
// must be of the same kind and schema type.
type Assembler struct {
	fs      FileSystem
	props   PropertyFetcher
	logger  io.Writer
	kernels []kernelArg

	checkPath    string
	outputMatrix bool
	flags        SerializeFlags
}

// AssembleOption configures an Assembler.
type AssembleOption func(*Assembler)

// AssembleWithFileSystem substitutes the input source.
func AssembleWithFileSystem(fs FileSystem) AssembleOption {
	return func(a *Assembler) { a.fs = fs }
}

// AssembleWithProperties substitutes the build-flag source.
func AssembleWithProperties(props PropertyFetcher) AssembleOption {
	return func(a *Assembler) { a.props = props }
}

// AssembleWithKernel adds kernel requirements for one minimum LTS version,
// read from android-base config fragment files.
func AssembleWithKernel(minLts KernelVersion, paths ...string) AssembleOption {
	return func(a *Assembler) {
		a.kernels = append(a.kernels, kernelArg{minLts: minLts, paths: paths})
	}
}

// AssembleWithCheckFile verifies the assembled document against the named
// counterpart document; assembly fails if they are incompatible.
func AssembleWithCheckFile(path string) AssembleOption {
	return func(a *Assembler) { a.checkPath = path }
}

// AssembleWithOutputMatrix makes manifest inputs produce the compatible
// matrix skeleton instead of the merged manifest.
func AssembleWithOutputMatrix() AssembleOption {
	return func(a *Assembler) { a.outputMatrix = true }
}

// AssembleWithSerializeFlags selects which parts of the output are written.
func AssembleWithSerializeFlags(flags SerializeFlags) AssembleOption {
	return func(a *Assembler) { a.flags = flags }
}

// AssembleWithLogger redirects assembly warnings.
func AssembleWithLogger(w io.Writer) AssembleOption {
	return func(a *Assembler) { a.logger = w }
}

// NewAssembler builds an Assembler reading from the host filesystem and
// environment-backed build flags unless configured otherwise.
func NewAssembler(opts ...AssembleOption) *Assembler {
	a := &Assembler{
		fs:     OSFileSystem{},
		props:  &EnvPropertyFetcher{},
		logger: io.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assembler) warnf(format string, args ...any) {
	fmt.Fprintf(a.logger, "warning: "+format+"\n", args...)
}

// Assemble reads the input documents, merges them, applies the build flags
// and kernel fragments, runs the optional check, and returns the serialized
// result.
func (a *Assembler) Assemble(paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	contents := make([][]byte, len(paths))
	for i, path := range paths {
		data, err := a.fs.Fetch(path)
		if err != nil {
			return nil, err
		}
		contents[i] = data
	}

	switch root := documentRootName(contents[0]); root {
	case "manifest":
		return a.assembleManifests(paths, contents)
	case "compatibility-matrix":
		return a.assembleMatrices(paths, contents)
	default:
		return nil, fmt.Errorf("%s: unknown document root %q", paths[0], root)
	}
}

// documentRootName returns the local name of the first element.
func documentRootName(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local
		}
	}
}

func (a *Assembler) assembleManifests(paths []string, contents [][]byte) ([]byte, error) {
	var merged *HalManifest
	var mergedSource string
	for i, data := range contents {
		m, err := UnmarshalHalManifest(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
		if merged == nil {
			merged = m
			mergedSource = paths[i]
			continue
		}
		if err := merged.AddAll(m, mergedSource, paths[i]); err != nil {
			return nil, err
		}
	}

	if merged.Type == SchemaDevice {
		a.setDeviceTargetLevel(merged)
	}

	if a.checkPath != "" {
		if err := a.checkManifest(merged); err != nil {
			return nil, err
		}
	}

	if a.outputMatrix {
		return MarshalCompatibilityMatrix(merged.GenerateCompatibleMatrix(), a.flags)
	}
	return MarshalHalManifest(merged, a.flags)
}

// setDeviceTargetLevel backfills a device manifest's target level from the
// build flags when the manifest does not declare one. Devices that do not
// enforce manifests, or that shipped before enforcement began, are legacy.
func (a *Assembler) setDeviceTargetLevel(m *HalManifest) {
	if m.Level != LevelUnspecified {
		return
	}
	if !a.props.GetBoolProperty(flagEnforceVintfManifest, false) {
		m.Level = LevelLegacy
		return
	}
	apiLevel := a.props.GetUintProperty(flagShippingAPILevel, 0)
	if apiLevel != 0 && apiLevel < enforceVintfApiLevelFloor {
		m.Level = LevelLegacy
		return
	}
	a.warnf("cannot infer target level for device manifest; set it explicitly")
}

func (a *Assembler) checkManifest(m *HalManifest) error {
	data, err := a.fs.Fetch(a.checkPath)
	if err != nil {
		return err
	}
	cm, err := UnmarshalCompatibilityMatrix(data)
	if err != nil {
		return fmt.Errorf("%s: %w", a.checkPath, err)
	}
	if err := m.CheckCompatibility(cm); err != nil {
		return fmt.Errorf("assembled manifest is incompatible with %s: %w", a.checkPath, err)
	}
	return nil
}

func (a *Assembler) assembleMatrices(paths []string, contents [][]byte) ([]byte, error) {
	sources := make([]MatrixSource, len(contents))
	for i, data := range contents {
		cm, err := UnmarshalCompatibilityMatrix(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
		sources[i] = MatrixSource{Name: paths[i], Matrix: cm}
	}

	if sources[0].Matrix.Type == SchemaDevice {
		combined, err := CombineDeviceMatrices(sources)
		if err != nil {
			return nil, err
		}
		if err := a.checkMatrix(combined); err != nil {
			return nil, err
		}
		return MarshalCompatibilityMatrix(combined, a.flags)
	}

	// Framework matrices combine at the device's target level, read from
	// the check manifest when one is given.
	deviceLevel := LevelUnspecified
	var checkManifest *HalManifest
	if a.checkPath != "" {
		data, err := a.fs.Fetch(a.checkPath)
		if err != nil {
			return nil, err
		}
		checkManifest, err = UnmarshalHalManifest(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.checkPath, err)
		}
		deviceLevel = checkManifest.Level
	}

	combined, err := CombineMatrices(sources, deviceLevel, LevelUnspecified)
	if err != nil {
		return nil, err
	}

	if err := a.applyKernelArgs(combined); err != nil {
		return nil, err
	}
	if err := a.applyFrameworkFlags(combined); err != nil {
		return nil, err
	}

	if checkManifest != nil {
		if err := checkManifest.CheckCompatibility(combined); err != nil {
			return nil, fmt.Errorf("assembled matrix is incompatible with %s: %w", a.checkPath, err)
		}
	}
	return MarshalCompatibilityMatrix(combined, a.flags)
}

func (a *Assembler) checkMatrix(cm *CompatibilityMatrix) error {
	if a.checkPath == "" {
		return nil
	}
	data, err := a.fs.Fetch(a.checkPath)
	if err != nil {
		return err
	}
	m, err := UnmarshalHalManifest(data)
	if err != nil {
		return fmt.Errorf("%s: %w", a.checkPath, err)
	}
	if err := m.CheckCompatibility(cm); err != nil {
		return fmt.Errorf("assembled matrix is incompatible with %s: %w", a.checkPath, err)
	}
	return nil
}

// applyKernelArgs replaces any hard-coded kernel requirements with the ones
// built from the android-base fragment files.
func (a *Assembler) applyKernelArgs(cm *CompatibilityMatrix) error {
	if len(a.kernels) == 0 {
		return nil
	}
	if len(cm.Kernels) > 0 {
		a.warnf("hard-coded kernel requirements are replaced by config fragments")
		cm.Kernels = nil
	}
	for _, arg := range a.kernels {
		entries, err := LoadKernelRequirements(a.fs, arg.minLts, arg.paths)
		if err != nil {
			return err
		}
		cm.Kernels = append(cm.Kernels, entries...)
	}
	return nil
}

// applyFrameworkFlags fills the framework matrix singletons from the build
// flags when the documents themselves did not define them.
func (a *Assembler) applyFrameworkFlags(cm *CompatibilityMatrix) error {
	if cm.Sepolicy == nil {
		kernelVers := a.props.GetUintProperty(flagPolicyVers, 0)
		boardVers := a.props.GetProperty(flagBoardSepolicyVers, "")
		if kernelVers != 0 && boardVers != "" {
			svr, err := ParseSepolicyVersionRange(boardVers)
			if err != nil {
				return fmt.Errorf("%s: %w", flagBoardSepolicyVers, err)
			}
			cm.Sepolicy = &Sepolicy{
				KernelSepolicyVersion: kernelVers,
				SepolicyVersions:      []SepolicyVersionRange{svr},
			}
		}
	}
	if cm.AvbMetaVersion == nil {
		if raw := a.props.GetProperty(flagFrameworkVbmeta, ""); raw != "" {
			v, err := ParseVersion(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", flagFrameworkVbmeta, err)
			}
			cm.AvbMetaVersion = &v
		}
	}
	return nil
}

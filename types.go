package vintf

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedPlatform is returned by runtime introspection on platforms
// where the kernel and system properties cannot be observed.
var ErrUnsupportedPlatform = errors.New("runtime introspection requires linux")

// HalFormat identifies the interface definition language of a HAL entry.
type HalFormat int

const (
	// FormatHIDL is a HIDL HAL with true major.minor versioning.
	FormatHIDL HalFormat = iota
	// FormatNative is a native (non-binderized) HAL; versioned like HIDL.
	FormatNative
	// FormatAIDL is an AIDL HAL with a single monotonically increasing
	// version, modeled internally as minor under a synthetic major.
	FormatAIDL
)

var halFormatNames = map[HalFormat]string{
	FormatHIDL:   "hidl",
	FormatNative: "native",
	FormatAIDL:   "aidl",
}

func (f HalFormat) String() string {
	if name, ok := halFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("HalFormat(%d)", f)
}

// ParseHalFormat parses the textual form used in documents ("hidl",
// "native", "aidl").
func ParseHalFormat(s string) (HalFormat, error) {
	for f, name := range halFormatNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown hal format %q", s)
}

// Transport is the IPC binding a manifest HAL is served over.
type Transport int

const (
	// TransportEmpty means no transport is declared (AIDL default binder,
	// or native HALs).
	TransportEmpty Transport = iota
	TransportPassthrough
	TransportHwbinder
	TransportInet
)

var transportNames = map[Transport]string{
	TransportEmpty:       "",
	TransportPassthrough: "passthrough",
	TransportHwbinder:    "hwbinder",
	TransportInet:        "inet",
}

func (t Transport) String() string {
	if name, ok := transportNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Transport(%d)", t)
}

// ParseTransport parses the textual form used in documents.
func ParseTransport(s string) (Transport, error) {
	for t, name := range transportNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transport %q", s)
}

// Tristate is a three-valued kernel configuration state.
type Tristate int

const (
	// TristateNo means the option is disabled or absent.
	TristateNo Tristate = iota
	// TristateYes means the option is built into the kernel.
	TristateYes
	// TristateModule means the option is built as a loadable module.
	TristateModule
)

var tristateNames = map[Tristate]string{
	TristateNo:     "n",
	TristateYes:    "y",
	TristateModule: "m",
}

func (t Tristate) String() string {
	if name, ok := tristateNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tristate(%d)", t)
}

// ParseTristate parses "y", "n" or "m".
func ParseTristate(s string) (Tristate, error) {
	for t, name := range tristateNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tristate %q", s)
}

// KernelConfigType is the value type tag of a kernel config requirement.
type KernelConfigType int

const (
	ConfigString KernelConfigType = iota
	ConfigInteger
	ConfigRange
	ConfigTristate
)

var kernelConfigTypeNames = map[KernelConfigType]string{
	ConfigString:   "string",
	ConfigInteger:  "int",
	ConfigRange:    "range",
	ConfigTristate: "tristate",
}

func (t KernelConfigType) String() string {
	if name, ok := kernelConfigTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("KernelConfigType(%d)", t)
}

// ParseKernelConfigType parses the type attribute of a config value.
func ParseKernelConfigType(s string) (KernelConfigType, error) {
	for t, name := range kernelConfigTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown kernel config type %q", s)
}

// SchemaType distinguishes device documents from framework documents.
type SchemaType int

const (
	SchemaDevice SchemaType = iota
	SchemaFramework
)

var schemaTypeNames = map[SchemaType]string{
	SchemaDevice:    "device",
	SchemaFramework: "framework",
}

func (t SchemaType) String() string {
	if name, ok := schemaTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SchemaType(%d)", t)
}

// ParseSchemaType parses "device" or "framework".
func ParseSchemaType(s string) (SchemaType, error) {
	for t, name := range schemaTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown schema type %q", s)
}

// Level is a framework compatibility matrix (FCM) deployment level: a
// monotonically increasing integer tagging which requirement document
// generation a device/framework pair targets. The zero value means
// unspecified.
type Level uint64

const (
	// LevelUnspecified is the absence of a declared level.
	LevelUnspecified Level = 0
	// LevelLegacy tags devices that predate level enforcement.
	LevelLegacy Level = 1
)

func (l Level) String() string {
	switch l {
	case LevelUnspecified:
		return ""
	case LevelLegacy:
		return "legacy"
	}
	return fmt.Sprintf("%d", uint64(l))
}

// ParseLevel parses a level attribute. The empty string is unspecified.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelUnspecified, nil
	}
	if s == "legacy" {
		return LevelLegacy, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == uint64(LevelUnspecified) {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return Level(v), nil
}

// CompatError reports a failed compatibility check. Diagnostic carries the
// full required-vs-provided rendering; it is deterministic so it can be
// asserted on in tests and compared across runs.
type CompatError struct {
	Diagnostic string
}

func (e *CompatError) Error() string {
	return e.Diagnostic
}

// ConflictError reports that two source documents disagree on a field that
// must be contributed by at most one of them. Combination aborts on the
// first conflict; no partial document is produced.
type ConflictError struct {
	Field   string
	SourceA string
	SourceB string
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict on %s between %q and %q: %v", e.Field, e.SourceA, e.SourceB, e.Err)
	}
	return fmt.Sprintf("conflict on %s between %q and %q", e.Field, e.SourceA, e.SourceB)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

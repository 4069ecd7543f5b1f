package vintf

import (
	"fmt"
	"strings"
)

// RuntimeInfo is the observed state of the running system: the kernel
// version and its raw configuration, the kernel sepolicy version, and the
// verified-boot metadata version. Raw config values keep the exact text
// from the kernel config (quotes included for strings); typing happens at
// match time against the requirement's declared type.
type RuntimeInfo struct {
	KernelVersion KernelVersion
	KernelRelease string
	KernelConfigs map[string]string

	KernelSepolicyVersion uint64
	BootVbmetaAvbVersion  Version

	OsName     string
	NodeName   string
	HardwareID string
}

// CheckCompatibility decides whether the running system satisfies a
// framework matrix's kernel, kernel-sepolicy and AVB requirements. The
// returned error is a CompatError with a per-key expected-vs-actual
// explanation.
func (ri *RuntimeInfo) CheckCompatibility(mat *CompatibilityMatrix) error {
	if mat.Type != SchemaFramework {
		return fmt.Errorf("runtime info can only be checked against a framework matrix")
	}

	if err := ri.matchKernelRequirements(mat.Kernels); err != nil {
		return err
	}

	if mat.Sepolicy != nil && ri.KernelSepolicyVersion < mat.Sepolicy.KernelSepolicyVersion {
		return &CompatError{Diagnostic: fmt.Sprintf(
			"kernelSepolicyVersion = %d but required >= %d",
			ri.KernelSepolicyVersion, mat.Sepolicy.KernelSepolicyVersion)}
	}

	if mat.AvbMetaVersion != nil {
		required := *mat.AvbMetaVersion
		provided := ri.BootVbmetaAvbVersion
		if provided.Major != required.Major || provided.Minor < required.Minor {
			return &CompatError{Diagnostic: fmt.Sprintf(
				"Vbmeta version %s does not match framework matrix %s", provided, required)}
		}
	}

	return nil
}

// matchKernelRequirements checks every matrix kernel entry whose minimum
// LTS version the running kernel matches. Entries are evaluated
// independently: an entry's conditions gate only its own configs. Failure
// of the unconditional baseline, or of any entry whose conditions are met,
// is fatal.
func (ri *RuntimeInfo) matchKernelRequirements(kernels []MatrixKernel) error {
	if len(kernels) == 0 {
		return nil
	}

	matchedVersion := false
	var failures []string
	for i := range kernels {
		entry := &kernels[i]
		if !ri.KernelVersion.MatchesMinLts(entry.MinLts) {
			continue
		}
		matchedVersion = true
		if !entry.ConditionsMatch(ri.KernelConfigs) {
			continue
		}
		if err := matchKernelConfigs(entry.Configs, ri.KernelConfigs); err != nil {
			failures = append(failures, err.Error())
		}
	}

	if !matchedVersion {
		return &CompatError{Diagnostic: fmt.Sprintf(
			"Framework matrix does not match kernel version %s", ri.KernelVersion)}
	}
	if len(failures) > 0 {
		return &CompatError{Diagnostic: "Kernel configs are incompatible:\n" + strings.Join(failures, "\n")}
	}
	return nil
}

// String returns a human-readable summary of the observed system.
func (ri *RuntimeInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kernel = %s/%s/%s/%s\n", ri.OsName, ri.NodeName, ri.KernelRelease, ri.HardwareID)
	fmt.Fprintf(&b, "kernel version = %s\n", ri.KernelVersion)
	fmt.Fprintf(&b, "kernelSepolicyVersion = %d\n", ri.KernelSepolicyVersion)
	fmt.Fprintf(&b, "vbmeta version = %s\n", ri.BootVbmetaAvbVersion)
	fmt.Fprintf(&b, "#CONFIG's loaded = %d\n", len(ri.KernelConfigs))
	return b.String()
}

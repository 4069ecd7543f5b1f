package vintf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kernel requirement fragments follow the android-base naming convention:
// android-base.cfg holds the unconditional requirements, and each
// android-base-<feature>.cfg holds requirements that apply only when
// CONFIG_<FEATURE>=y on the running kernel.
const (
	baseConfigName   = "android-base.cfg"
	configNamePrefix = "android-base-"
	configNameSuffix = ".cfg"
)

// ParseKernelConfigFragment parses kernel requirement text in the relaxed
// config format: "CONFIG_X=value" lines with optional whitespace around the
// separator, "# CONFIG_X is not set" lines standing for CONFIG_X=n, and all
// other comment and blank lines ignored. Value types are inferred.
func ParseKernelConfigFragment(content []byte) ([]KernelConfig, error) {
	var out []KernelConfig
	for lineno, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			key, ok := notSetKey(line)
			if !ok {
				continue
			}
			out = append(out, KernelConfig{Key: key, Value: KernelConfigTristate(TristateNo)})
			continue
		}
		rawKey, rawValue, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected CONFIG_X=value, got %q", lineno+1, line)
		}
		key := strings.TrimSpace(rawKey)
		if !strings.HasPrefix(key, "CONFIG_") {
			return nil, fmt.Errorf("line %d: key %q does not start with CONFIG_", lineno+1, key)
		}
		value, err := ParseKernelConfigTypedValue(strings.TrimSpace(rawValue))
		if err != nil {
			return nil, fmt.Errorf("line %d: key %s: %w", lineno+1, key, err)
		}
		out = append(out, KernelConfig{Key: key, Value: value})
	}
	return out, nil
}

// notSetKey recognizes "# CONFIG_X is not set".
func notSetKey(line string) (string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	key, ok := strings.CutSuffix(rest, " is not set")
	if !ok || !strings.HasPrefix(key, "CONFIG_") {
		return "", false
	}
	return key, true
}

// conditionFromFileName derives the gating condition from a conditional
// fragment's file name: android-base-<feature>.cfg requires
// CONFIG_<FEATURE>=y, with dashes mapped to underscores.
func conditionFromFileName(name string) (KernelConfig, error) {
	sub, ok := strings.CutPrefix(name, configNamePrefix)
	if ok {
		sub, ok = strings.CutSuffix(sub, configNameSuffix)
	}
	if !ok || sub == "" {
		return KernelConfig{}, fmt.Errorf("%q is not a valid conditional kernel config file name, must match android-base-[0-9a-zA-Z-]+.cfg", name)
	}
	feature := make([]byte, 0, len(sub))
	for i := 0; i < len(sub); i++ {
		c := sub[i]
		switch {
		case c == '-':
			feature = append(feature, '_')
		case c >= 'a' && c <= 'z':
			feature = append(feature, c-'a'+'A')
		case c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			feature = append(feature, c)
		default:
			return KernelConfig{}, fmt.Errorf("%q is not a valid conditional kernel config file name, must match android-base-[0-9a-zA-Z-]+.cfg", name)
		}
	}
	return KernelConfig{Key: "CONFIG_" + string(feature), Value: KernelConfigTristate(TristateYes)}, nil
}

// LoadKernelRequirements reads a set of android-base fragment files and
// builds the kernel requirement entries for one minimum LTS version: the
// mandatory android-base.cfg becomes the unconditional baseline entry, and
// each conditional fragment becomes its own entry gated by the condition
// derived from its file name.
func LoadKernelRequirements(fs FileSystem, minLts KernelVersion, paths []string) ([]MatrixKernel, error) {
	var baseline *MatrixKernel
	var conditioned []MatrixKernel
	for _, path := range paths {
		content, err := fs.Fetch(path)
		if err != nil {
			return nil, err
		}
		configs, err := ParseKernelConfigFragment(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := filepath.Base(path)
		if name == baseConfigName {
			if baseline != nil {
				return nil, fmt.Errorf("duplicate %s in %q", baseConfigName, paths)
			}
			baseline = &MatrixKernel{MinLts: minLts, Configs: configs}
			continue
		}
		condition, err := conditionFromFileName(name)
		if err != nil {
			return nil, err
		}
		conditioned = append(conditioned, MatrixKernel{
			MinLts:     minLts,
			Conditions: []KernelConfig{condition},
			Configs:    configs,
		})
	}
	if baseline == nil {
		return nil, fmt.Errorf("no %s found in %q", baseConfigName, paths)
	}
	// The baseline is always first.
	return append([]MatrixKernel{*baseline}, conditioned...), nil
}

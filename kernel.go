package vintf

import (
	"fmt"
	"strconv"
	"strings"
)

// KernelConfigTypedValue is the typed value of one kernel config
// requirement: a tagged variant over string, 64-bit integer, tristate and
// closed integer range. Only the field selected by Type is meaningful.
type KernelConfigTypedValue struct {
	Type          KernelConfigType
	StringValue   string
	IntegerValue  int64
	RangeValue    [2]uint64
	TristateValue Tristate
}

// KernelConfigString makes a string-typed value.
func KernelConfigString(s string) KernelConfigTypedValue {
	return KernelConfigTypedValue{Type: ConfigString, StringValue: s}
}

// KernelConfigInt makes an integer-typed value.
func KernelConfigInt(i int64) KernelConfigTypedValue {
	return KernelConfigTypedValue{Type: ConfigInteger, IntegerValue: i}
}

// KernelConfigTristate makes a tristate-typed value.
func KernelConfigTristate(t Tristate) KernelConfigTypedValue {
	return KernelConfigTypedValue{Type: ConfigTristate, TristateValue: t}
}

// KernelConfigRangeVal makes a closed-range value [lo, hi].
func KernelConfigRangeVal(lo, hi uint64) KernelConfigTypedValue {
	return KernelConfigTypedValue{Type: ConfigRange, RangeValue: [2]uint64{lo, hi}}
}

// missingConfig is what an absent kernel config key compares as.
var missingConfig = KernelConfigTristate(TristateNo)

func (v KernelConfigTypedValue) String() string {
	switch v.Type {
	case ConfigString:
		return v.StringValue
	case ConfigInteger:
		return strconv.FormatInt(v.IntegerValue, 10)
	case ConfigRange:
		return fmt.Sprintf("%d-%d", v.RangeValue[0], v.RangeValue[1])
	case ConfigTristate:
		return v.TristateValue.String()
	}
	return fmt.Sprintf("KernelConfigTypedValue(%d)", v.Type)
}

// Equal compares type tags and the value selected by them.
func (v KernelConfigTypedValue) Equal(other KernelConfigTypedValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ConfigString:
		return v.StringValue == other.StringValue
	case ConfigInteger:
		return v.IntegerValue == other.IntegerValue
	case ConfigRange:
		return v.RangeValue == other.RangeValue
	case ConfigTristate:
		return v.TristateValue == other.TristateValue
	}
	return false
}

// MatchesRaw reports whether a raw observed config value (as read from the
// running kernel's config, quotes included for strings) satisfies this
// required value. The observed value is interpreted according to the
// required type; a type mismatch never matches.
func (v KernelConfigTypedValue) MatchesRaw(raw string) bool {
	switch v.Type {
	case ConfigString:
		return stripQuotes(raw) == v.StringValue
	case ConfigInteger:
		i, ok := parseKernelConfigInt(raw)
		return ok && i == v.IntegerValue
	case ConfigRange:
		u, ok := parseKernelConfigUint(raw)
		return ok && v.RangeValue[0] <= u && u <= v.RangeValue[1]
	case ConfigTristate:
		t, err := ParseTristate(raw)
		return err == nil && t == v.TristateValue
	}
	return false
}

func stripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// parseKernelConfigInt accepts decimal, hex and octal text, including the
// full unsigned 64-bit range and negative values, truncating to
// two's-complement like the kernel build does.
func parseKernelConfigInt(s string) (int64, bool) {
	if u, ok := parseKernelConfigUint(s); ok {
		return int64(u), true
	}
	return 0, false
}

func parseKernelConfigUint(s string) (uint64, bool) {
	if u, err := strconv.ParseUint(s, 0, 64); err == nil {
		return u, true
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return uint64(i), true
	}
	return 0, false
}

// ParseKernelConfigTypedValue infers a typed value from free-form fragment
// text: quoted text is a string, integers before tristates, and ranges are
// never inferred (they only appear with an explicit type in documents).
func ParseKernelConfigTypedValue(s string) (KernelConfigTypedValue, error) {
	if len(s) > 1 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return KernelConfigString(s[1 : len(s)-1]), nil
	}
	if i, ok := parseKernelConfigInt(s); ok {
		return KernelConfigInt(i), nil
	}
	if t, err := ParseTristate(s); err == nil {
		return KernelConfigTristate(t), nil
	}
	return KernelConfigTypedValue{}, fmt.Errorf("unknown kernel config value %q", s)
}

// ParseKernelConfigValue parses document text under an explicit type tag.
func ParseKernelConfigValue(s string, typ KernelConfigType) (KernelConfigTypedValue, error) {
	switch typ {
	case ConfigString:
		return KernelConfigString(s), nil
	case ConfigInteger:
		i, ok := parseKernelConfigInt(s)
		if !ok {
			return KernelConfigTypedValue{}, fmt.Errorf("invalid int config value %q", s)
		}
		return KernelConfigInt(i), nil
	case ConfigRange:
		dash := strings.Index(s, "-")
		if dash < 0 {
			return KernelConfigTypedValue{}, fmt.Errorf("invalid range config value %q", s)
		}
		lo, okLo := parseKernelConfigUint(s[:dash])
		hi, okHi := parseKernelConfigUint(s[dash+1:])
		if !okLo || !okHi {
			return KernelConfigTypedValue{}, fmt.Errorf("invalid range config value %q", s)
		}
		return KernelConfigRangeVal(lo, hi), nil
	case ConfigTristate:
		t, err := ParseTristate(s)
		if err != nil {
			return KernelConfigTypedValue{}, err
		}
		return KernelConfigTristate(t), nil
	}
	return KernelConfigTypedValue{}, fmt.Errorf("unknown kernel config type %v", typ)
}

// KernelConfig is one required (key, typed value) pair.
type KernelConfig struct {
	Key   string
	Value KernelConfigTypedValue
}

// MatrixKernel is one kernel requirement entry of a compatibility matrix:
// a minimum LTS kernel version, the conditions gating the entry, and the
// config requirements the entry imposes when its conditions hold. The first
// entry for a given version carries no conditions; it is the unconditional
// baseline.
type MatrixKernel struct {
	MinLts     KernelVersion
	Conditions []KernelConfig
	Configs    []KernelConfig

	// SourceLevel tags which document contributed this entry during matrix
	// combination, so consumers can reason about provenance.
	SourceLevel Level
}

// ConditionsMatch reports whether every condition holds for the observed
// raw config map. Unlike config requirements, a condition key must be
// present; an absent key never gates an entry in.
func (mk *MatrixKernel) ConditionsMatch(observed map[string]string) bool {
	for _, cond := range mk.Conditions {
		raw, ok := observed[cond.Key]
		if !ok || !cond.Value.MatchesRaw(raw) {
			return false
		}
	}
	return true
}

// matchKernelConfigs checks each required config against the observed raw
// values, reporting the first per-key mismatch as expected-vs-actual.
func matchKernelConfigs(required []KernelConfig, observed map[string]string) error {
	for _, config := range required {
		raw, ok := observed[config.Key]
		if !ok {
			// An absent tristate requirement of "n" is satisfied vacuously.
			if config.Value.Equal(missingConfig) {
				continue
			}
			return fmt.Errorf("missing config %s; required %s", config.Key, config.Value)
		}
		if !config.Value.MatchesRaw(raw) {
			return fmt.Errorf("for config %s, value = %s but required %s", config.Key, raw, config.Value)
		}
	}
	return nil
}

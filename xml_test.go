package vintf

import (
	"strings"
	"testing"
)

const deviceManifestXML = `
<manifest version="1.0" type="device" target-level="5">
    <hal format="hidl">
        <name>android.hardware.nfc</name>
        <transport>hwbinder</transport>
        <version>1.0</version>
        <interface>
            <name>INfc</name>
            <instance>default</instance>
        </interface>
        <fqname>@1.1::INfc/custom</fqname>
    </hal>
    <hal format="aidl">
        <name>android.hardware.light</name>
        <version>2</version>
        <fqname>ILights/default</fqname>
    </hal>
    <sepolicy>
        <version>25.0</version>
    </sepolicy>
</manifest>
`

func TestUnmarshalHalManifest(t *testing.T) {
	m, err := UnmarshalHalManifest([]byte(deviceManifestXML))
	if err != nil {
		t.Fatalf("UnmarshalHalManifest: %v", err)
	}
	if m.Type != SchemaDevice {
		t.Errorf("Type = %v, want device", m.Type)
	}
	if m.Level != 5 {
		t.Errorf("Level = %v, want 5", m.Level)
	}
	if m.SepolicyVersion.String() != "25.0" {
		t.Errorf("SepolicyVersion = %s", m.SepolicyVersion)
	}

	nfc := m.ProvidedInstances("android.hardware.nfc")
	var got []string
	for _, mi := range nfc {
		got = append(got, mi.FqInstance.String())
	}
	want := []string{
		"android.hardware.nfc@1.0::INfc/default",
		"android.hardware.nfc@1.1::INfc/custom",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("nfc instances = %v, want %v", got, want)
	}

	light := m.ProvidedInstances("android.hardware.light")
	if len(light) != 1 {
		t.Fatalf("light instances = %d, want 1", len(light))
	}
	if v := light[0].FqInstance.Version(); v != (Version{fakeAidlMajor, 2}) {
		t.Errorf("light version = %v", v)
	}
	if light[0].Format != FormatAIDL {
		t.Errorf("light format = %v", light[0].Format)
	}
}

func TestUnmarshalHalManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{
			name: "missing transport",
			xml: `<manifest version="1.0" type="device">
				<hal format="hidl"><name>android.hardware.foo</name><version>1.0</version></hal>
			</manifest>`,
			want: "android.hardware.foo",
		},
		{
			name: "missing version",
			xml: `<manifest version="1.0" type="device">
				<hal format="hidl"><name>android.hardware.foo</name><transport>hwbinder</transport></hal>
			</manifest>`,
			want: "no version",
		},
		{
			name: "fqname with package",
			xml: `<manifest version="1.0" type="device">
				<hal format="hidl"><name>android.hardware.foo</name><transport>hwbinder</transport>
				<version>1.0</version><fqname>other.package@1.0::IFoo/default</fqname></hal>
			</manifest>`,
			want: "must not name a package",
		},
		{
			name: "duplicate major version",
			xml: `<manifest version="1.0" type="device">
				<hal format="hidl"><name>android.hardware.foo</name><transport>hwbinder</transport>
				<version>1.0</version><version>1.1</version></hal>
			</manifest>`,
			want: "duplicate major version",
		},
		{
			name: "bad type",
			xml:  `<manifest version="1.0" type="sideways"/>`,
			want: "unknown schema type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalHalManifest([]byte(tt.xml))
			if err == nil {
				t.Fatal("want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

const frameworkMatrixXML = `
<compatibility-matrix version="1.0" type="framework" level="5">
    <hal format="hidl" optional="false">
        <name>android.hardware.nfc</name>
        <version>1.0-1</version>
        <interface>
            <name>INfc</name>
            <instance>default</instance>
            <regex-instance>legacy/[0-9]+</regex-instance>
        </interface>
    </hal>
    <kernel version="3.18.22">
        <config>
            <key>CONFIG_SECCOMP</key>
            <value type="tristate">y</value>
        </config>
    </kernel>
    <kernel version="3.18.22">
        <conditions>
            <config>
                <key>CONFIG_64BIT</key>
                <value type="tristate">y</value>
            </config>
        </conditions>
        <config>
            <key>CONFIG_ARCH_MMAP_RND_BITS</key>
            <value type="range">24-32</value>
        </config>
    </kernel>
    <sepolicy>
        <kernel-sepolicy-version>30</kernel-sepolicy-version>
        <sepolicy-version>25.0-3</sepolicy-version>
    </sepolicy>
    <avb>
        <vbmeta-version>2.1</vbmeta-version>
    </avb>
</compatibility-matrix>
`

func TestUnmarshalCompatibilityMatrix(t *testing.T) {
	cm, err := UnmarshalCompatibilityMatrix([]byte(frameworkMatrixXML))
	if err != nil {
		t.Fatalf("UnmarshalCompatibilityMatrix: %v", err)
	}
	if cm.Type != SchemaFramework || cm.Level != 5 {
		t.Errorf("Type = %v Level = %v", cm.Type, cm.Level)
	}

	hals := cm.HalsByName("android.hardware.nfc")
	if len(hals) != 1 {
		t.Fatalf("hals = %d", len(hals))
	}
	hal := hals[0]
	if hal.Optional {
		t.Error("optional = true, want false")
	}
	if len(hal.VersionRanges) != 1 || hal.VersionRanges[0] != (VersionRange{1, 0, 1}) {
		t.Errorf("ranges = %v", hal.VersionRanges)
	}
	if !hal.MatchesInstance("INfc", "default") {
		t.Error("exact instance not declared")
	}
	if !hal.MatchesInstance("INfc", "legacy/7") {
		t.Error("regex instance does not match")
	}
	if hal.MatchesInstance("INfc", "legacy/x") {
		t.Error("regex instance matches junk")
	}

	if len(cm.Kernels) != 2 {
		t.Fatalf("kernels = %d", len(cm.Kernels))
	}
	baseline := cm.Kernels[0]
	if baseline.MinLts != (KernelVersion{3, 18, 22}) || len(baseline.Conditions) != 0 {
		t.Errorf("baseline = %+v", baseline)
	}
	conditioned := cm.Kernels[1]
	if len(conditioned.Conditions) != 1 || conditioned.Conditions[0].Key != "CONFIG_64BIT" {
		t.Errorf("conditions = %+v", conditioned.Conditions)
	}
	if got := conditioned.Configs[0].Value; !got.Equal(KernelConfigRangeVal(24, 32)) {
		t.Errorf("range config = %v", got)
	}

	if cm.Sepolicy == nil || cm.Sepolicy.KernelSepolicyVersion != 30 {
		t.Errorf("sepolicy = %+v", cm.Sepolicy)
	}
	if cm.AvbMetaVersion == nil || *cm.AvbMetaVersion != (Version{2, 1}) {
		t.Errorf("avb = %v", cm.AvbMetaVersion)
	}
}

func TestUnmarshalCompatibilityMatrix_NamesOffendingHal(t *testing.T) {
	xml := `<compatibility-matrix version="1.0" type="framework">
		<hal format="hidl"><name>android.hardware.broken</name><version>1.4-2</version></hal>
	</compatibility-matrix>`
	_, err := UnmarshalCompatibilityMatrix([]byte(xml))
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "android.hardware.broken") {
		t.Errorf("error does not name the hal: %v", err)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	m, err := UnmarshalHalManifest([]byte(deviceManifestXML))
	if err != nil {
		t.Fatal(err)
	}
	out, err := MarshalHalManifest(m, SerializeEverything)
	if err != nil {
		t.Fatalf("MarshalHalManifest: %v", err)
	}
	back, err := UnmarshalHalManifest(out)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}

	if back.Type != m.Type || back.Level != m.Level || back.SepolicyVersion.String() != m.SepolicyVersion.String() {
		t.Errorf("identity lost: %+v", back)
	}
	for _, name := range []string{"android.hardware.nfc", "android.hardware.light"} {
		want := m.ProvidedInstances(name)
		got := back.ProvidedInstances(name)
		if len(want) != len(got) {
			t.Fatalf("%s: %d instances, want %d", name, len(got), len(want))
		}
		for i := range want {
			if want[i].FqInstance.Compare(got[i].FqInstance) != 0 {
				t.Errorf("%s: instance %s, want %s", name, got[i].FqInstance, want[i].FqInstance)
			}
		}
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	cm, err := UnmarshalCompatibilityMatrix([]byte(frameworkMatrixXML))
	if err != nil {
		t.Fatal(err)
	}
	out, err := MarshalCompatibilityMatrix(cm, SerializeEverything)
	if err != nil {
		t.Fatalf("MarshalCompatibilityMatrix: %v", err)
	}
	back, err := UnmarshalCompatibilityMatrix(out)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}

	if back.Type != cm.Type || back.Level != cm.Level {
		t.Errorf("identity lost: %+v", back)
	}
	if len(back.Kernels) != len(cm.Kernels) {
		t.Errorf("kernels = %d, want %d", len(back.Kernels), len(cm.Kernels))
	}
	if back.Sepolicy == nil || back.Sepolicy.KernelSepolicyVersion != 30 {
		t.Errorf("sepolicy lost: %+v", back.Sepolicy)
	}
	hal := back.HalsByName("android.hardware.nfc")[0]
	if !hal.MatchesInstance("INfc", "legacy/7") {
		t.Error("regex instance lost in round trip")
	}
}

func TestMarshalSerializeFlags(t *testing.T) {
	cm, err := UnmarshalCompatibilityMatrix([]byte(frameworkMatrixXML))
	if err != nil {
		t.Fatal(err)
	}

	halsOnly, err := MarshalCompatibilityMatrix(cm, SerializeHalsOnly)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(halsOnly), "<kernel") || strings.Contains(string(halsOnly), "<sepolicy") {
		t.Errorf("hals-only output carries non-hal sections:\n%s", halsOnly)
	}
	if !strings.Contains(string(halsOnly), "android.hardware.nfc") {
		t.Errorf("hals-only output misses hals:\n%s", halsOnly)
	}

	noHals, err := MarshalCompatibilityMatrix(cm, SerializeNoHals)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(noHals), "android.hardware.nfc") {
		t.Errorf("no-hals output carries hals:\n%s", noHals)
	}
	if !strings.Contains(string(noHals), "<kernel") {
		t.Errorf("no-hals output misses kernels:\n%s", noHals)
	}
}

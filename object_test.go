package vintf

import (
	"strings"
	"testing"
)

func deviceImage() MapFileSystem {
	return MapFileSystem{
		"/vendor/etc/vintf/manifest.xml": `<manifest version="1.0" type="device" target-level="5">
			<hal format="hidl">
				<name>android.hardware.nfc</name>
				<transport>hwbinder</transport>
				<version>1.0</version>
				<fqname>@1.0::INfc/default</fqname>
			</hal>
		</manifest>`,
		"/system/etc/vintf/manifest.xml": `<manifest version="1.0" type="framework">
			<hal format="hidl">
				<name>android.frameworks.displayservice</name>
				<transport>hwbinder</transport>
				<version>1.0</version>
				<fqname>@1.0::IDisplayService/default</fqname>
			</hal>
		</manifest>`,
		"/vendor/etc/vintf/compatibility_matrix.xml": `<compatibility-matrix version="1.0" type="device">
			<hal format="hidl" optional="true">
				<name>android.frameworks.displayservice</name>
				<version>1.0</version>
				<interface><name>IDisplayService</name><instance>default</instance></interface>
			</hal>
		</compatibility-matrix>`,
		"/system/etc/vintf/compatibility_matrix.5.xml": `<compatibility-matrix version="1.0" type="framework" level="5">
			<hal format="hidl" optional="false">
				<name>android.hardware.nfc</name>
				<version>1.0</version>
				<interface><name>INfc</name><instance>default</instance></interface>
			</hal>
		</compatibility-matrix>`,
		"/system/etc/vintf/compatibility_matrix.6.xml": `<compatibility-matrix version="1.0" type="framework" level="6">
			<hal format="hidl" optional="false">
				<name>android.hardware.nfc</name>
				<version>2.0</version>
				<interface><name>INfc</name><instance>default</instance></interface>
			</hal>
		</compatibility-matrix>`,
	}
}

func TestObject_Getters(t *testing.T) {
	obj := NewObject(WithFileSystem(deviceImage()))

	dm, err := obj.DeviceHalManifest()
	if err != nil {
		t.Fatalf("DeviceHalManifest: %v", err)
	}
	if dm.Level != 5 {
		t.Errorf("device level = %v, want 5", dm.Level)
	}

	// Cached: a second call yields the same parsed document.
	dm2, err := obj.DeviceHalManifest()
	if err != nil {
		t.Fatal(err)
	}
	if dm != dm2 {
		t.Error("second call re-parsed the document")
	}

	fcm, err := obj.FrameworkCompatibilityMatrix()
	if err != nil {
		t.Fatalf("FrameworkCompatibilityMatrix: %v", err)
	}
	// Combined at the device level; the level-6 requirement folds in as
	// optional so the level-5 device is not held to it.
	if fcm.Level != 5 {
		t.Errorf("framework matrix level = %v, want 5", fcm.Level)
	}
	hals := fcm.HalsByName("android.hardware.nfc")
	if len(hals) != 1 {
		t.Fatalf("nfc entries = %d, want 1 merged", len(hals))
	}
	if len(hals[0].VersionRanges) != 2 {
		t.Errorf("ranges = %v, want both levels' versions", hals[0].VersionRanges)
	}

	// The combined matrix is built once and held until Invalidate.
	fcm2, err := obj.FrameworkCompatibilityMatrix()
	if err != nil {
		t.Fatal(err)
	}
	if fcm != fcm2 {
		t.Error("second call rebuilt the combined matrix")
	}
}

func TestObject_CheckCompatibility(t *testing.T) {
	obj := NewObject(WithFileSystem(deviceImage()))
	if err := obj.CheckCompatibility(false); err != nil {
		t.Errorf("CheckCompatibility: %v", err)
	}
}

func TestObject_CheckCompatibilityFailure(t *testing.T) {
	fs := deviceImage()
	fs["/vendor/etc/vintf/manifest.xml"] = `<manifest version="1.0" type="device" target-level="5">
	</manifest>`

	obj := NewObject(WithFileSystem(fs))
	err := obj.CheckCompatibility(false)
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "android.hardware.nfc") {
		t.Errorf("error = %v", err)
	}
}

func TestObject_Invalidate(t *testing.T) {
	fs := deviceImage()
	obj := NewObject(WithFileSystem(fs))

	dm, err := obj.DeviceHalManifest()
	if err != nil {
		t.Fatal(err)
	}

	// MapFileSystem reports a constant mtime, so only Invalidate forces a
	// re-parse.
	obj.Invalidate()
	dm2, err := obj.DeviceHalManifest()
	if err != nil {
		t.Fatal(err)
	}
	if dm == dm2 {
		t.Error("Invalidate did not drop the cache")
	}
}

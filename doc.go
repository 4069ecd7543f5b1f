// Package vintf decides whether the interfaces a platform actually provides
// satisfy the interfaces a platform release requires.
//
// A HAL manifest declares concrete capabilities: named packages exposing
// versioned (interface, instance) endpoints over a transport. A compatibility
// matrix declares requirements: named packages with acceptable version
// ranges, required instances (exact names or anchored regular expressions),
// kernel configuration constraints, sepolicy and verified-boot versions.
// This package models both documents, checks a manifest against a matrix
// with operator-facing diagnostics, and combines per-level framework
// matrices into one effective matrix for a target device level.
//
// # API Model
//
// vintf intentionally exposes three API families:
//   - [HalManifest.CheckCompatibility] and [RuntimeInfo.CheckCompatibility]
//     for pass/fail validation with a diagnostic explanation
//   - [CombineMatrices] and [CombineDeviceMatrices] for merging per-level or
//     partial requirement documents into one effective document
//   - [Assembler] for build-time assembly of manifest and matrix fragments
//
// Documents are immutable value objects once parsed or combined; combination
// produces new documents instead of mutating its inputs.
//
// # Quick Check
//
// Validate a manifest against an effective matrix:
//
//	var manifest vintf.HalManifest
//	var matrix vintf.CompatibilityMatrix
//	// ... unmarshal from XML ...
//	if err := manifest.CheckCompatibility(&matrix); err != nil {
//	    var ce *vintf.CompatError
//	    if errors.As(err, &ce) {
//	        log.Fatalf("not compatible:\n%s", ce.Diagnostic)
//	    }
//	    log.Fatal(err)
//	}
//
// # Matrix Combination
//
// Merge per-level framework matrices for a device shipping at level 7:
//
//	effective, err := vintf.CombineMatrices(matrices, 7, vintf.LevelUnspecified)
//	if err != nil {
//	    var conflict *vintf.ConflictError
//	    if errors.As(err, &conflict) {
//	        log.Fatalf("matrix conflict: %v", conflict)
//	    }
//	    log.Fatal(err)
//	}
//
// # Types
//
// [Version], [VersionRange] and friends form the version algebra. A range
// like 2.3-7 contains 2.3 through 2.7 but is supported by any 2.x with
// x >= 3; this asymmetry is deliberate and lets a device provide a higher
// minor version than required.
//
// [MatrixHal] is one named requirement, [ManifestHal] one named capability.
// [FqInstance] is a fully-qualified package@version::interface/instance
// coordinate. [MatrixKernel] carries typed kernel config requirements with
// conditional applicability. [RuntimeInfo] is the observed state of the
// running system.
//
// [CompatError] reports a failed check together with the required-vs-provided
// rendering. [ConflictError] reports a combination conflict naming both
// contributing documents; combination never picks a winner silently.
package vintf

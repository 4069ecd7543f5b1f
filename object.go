package vintf

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ObjectPaths names where the four documents live on a device image.
type ObjectPaths struct {
	DeviceManifest     string
	FrameworkManifest  string
	DeviceMatrix       string
	FrameworkMatrixDir string
}

// DefaultObjectPaths are the standard on-device locations.
var DefaultObjectPaths = ObjectPaths{
	DeviceManifest:     "/vendor/etc/vintf/manifest.xml",
	FrameworkManifest:  "/system/etc/vintf/manifest.xml",
	DeviceMatrix:       "/vendor/etc/vintf/compatibility_matrix.xml",
	FrameworkMatrixDir: "/system/etc/vintf",
}

// Object is the cached view of a device's compatibility documents.
// Single-file getters parse lazily and re-parse when the backing file's
// modification time changes; the combined framework matrix is built once
// and held until Invalidate. All methods are safe for concurrent use.
type Object struct {
	fs    FileSystem
	props PropertyFetcher
	paths ObjectPaths

	mu                sync.Mutex
	deviceManifest    cachedDoc[*HalManifest]
	frameworkManifest cachedDoc[*HalManifest]
	deviceMatrix      cachedDoc[*CompatibilityMatrix]
	frameworkMatrix   cachedDoc[*CompatibilityMatrix]
	runtime           *RuntimeInfo
}

type cachedDoc[T any] struct {
	value T
	mtime time.Time
	valid bool
}

// ObjectOption configures a new Object.
type ObjectOption func(*Object)

// WithFileSystem substitutes the document source.
func WithFileSystem(fs FileSystem) ObjectOption {
	return func(o *Object) { o.fs = fs }
}

// WithProperties substitutes the property source.
func WithProperties(props PropertyFetcher) ObjectOption {
	return func(o *Object) { o.props = props }
}

// WithPaths substitutes the document locations.
func WithPaths(paths ObjectPaths) ObjectOption {
	return func(o *Object) { o.paths = paths }
}

// NewObject builds an Object reading from the host filesystem and
// environment-backed properties unless configured otherwise.
func NewObject(opts ...ObjectOption) *Object {
	o := &Object{
		fs:    OSFileSystem{},
		props: &EnvPropertyFetcher{},
		paths: DefaultObjectPaths,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func fetchCached[T any](o *Object, cache *cachedDoc[T], path string, parse func([]byte) (T, error)) (T, error) {
	var zero T
	mtime, err := o.fs.ModifiedTime(path)
	if err != nil {
		return zero, err
	}
	if cache.valid && cache.mtime.Equal(mtime) {
		return cache.value, nil
	}
	data, err := o.fs.Fetch(path)
	if err != nil {
		return zero, err
	}
	value, err := parse(data)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	cache.value = value
	cache.mtime = mtime
	cache.valid = true
	return value, nil
}

// DeviceHalManifest returns the vendor manifest.
func (o *Object) DeviceHalManifest() (*HalManifest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fetchCached(o, &o.deviceManifest, o.paths.DeviceManifest, UnmarshalHalManifest)
}

// FrameworkHalManifest returns the system manifest.
func (o *Object) FrameworkHalManifest() (*HalManifest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fetchCached(o, &o.frameworkManifest, o.paths.FrameworkManifest, UnmarshalHalManifest)
}

// DeviceCompatibilityMatrix returns the vendor requirement document.
func (o *Object) DeviceCompatibilityMatrix() (*CompatibilityMatrix, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fetchCached(o, &o.deviceMatrix, o.paths.DeviceMatrix, UnmarshalCompatibilityMatrix)
}

// FrameworkCompatibilityMatrix returns the framework requirement document
// effective for the device: the per-level fragments found in the framework
// matrix directory, combined at the device manifest's target level. The
// combined result is cached until Invalidate; fragment changes on disk are
// not observed by mtime.
func (o *Object) FrameworkCompatibilityMatrix() (*CompatibilityMatrix, error) {
	deviceLevel := LevelUnspecified
	if dm, err := o.DeviceHalManifest(); err == nil {
		deviceLevel = dm.Level
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.frameworkMatrix.valid {
		return o.frameworkMatrix.value, nil
	}

	sources, err := o.loadFrameworkMatrixFragments()
	if err != nil {
		return nil, err
	}
	combined, err := CombineMatrices(sources, deviceLevel, LevelUnspecified)
	if err != nil {
		return nil, err
	}
	o.frameworkMatrix.value = combined
	o.frameworkMatrix.valid = true
	return combined, nil
}

func (o *Object) loadFrameworkMatrixFragments() ([]MatrixSource, error) {
	dir := o.paths.FrameworkMatrixDir
	names, err := o.fs.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	var sources []MatrixSource
	for _, name := range names {
		if !strings.HasPrefix(name, "compatibility_matrix") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := o.fs.Fetch(path)
		if err != nil {
			return nil, err
		}
		cm, err := UnmarshalCompatibilityMatrix(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		sources = append(sources, MatrixSource{Name: path, Matrix: cm})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no framework compatibility matrix found under %s", dir)
	}
	return sources, nil
}

// RuntimeInfo returns the observed system state, fetched once.
func (o *Object) RuntimeInfo() (*RuntimeInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runtime != nil {
		return o.runtime, nil
	}
	ri, err := FetchRuntimeInfo(o.props)
	if err != nil {
		return nil, err
	}
	o.runtime = ri
	return ri, nil
}

// Invalidate drops every cached document so the next getter re-reads.
func (o *Object) Invalidate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deviceManifest = cachedDoc[*HalManifest]{}
	o.frameworkManifest = cachedDoc[*HalManifest]{}
	o.deviceMatrix = cachedDoc[*CompatibilityMatrix]{}
	o.frameworkMatrix = cachedDoc[*CompatibilityMatrix]{}
	o.runtime = nil
}

// CheckCompatibility runs every pairwise check between the four documents
// and the running system, collecting each failure. Missing documents are
// skipped; a device with no framework manifest simply has nothing to check
// on that side.
func (o *Object) CheckCompatibility(checkRuntime bool) error {
	var errs []error

	deviceManifest, dmErr := o.DeviceHalManifest()
	frameworkMatrix, fcmErr := o.FrameworkCompatibilityMatrix()
	if dmErr == nil && fcmErr == nil {
		if err := deviceManifest.CheckCompatibility(frameworkMatrix); err != nil {
			errs = append(errs, fmt.Errorf("device manifest vs framework matrix: %w", err))
		}
	}

	frameworkManifest, fmErr := o.FrameworkHalManifest()
	deviceMatrix, dcmErr := o.DeviceCompatibilityMatrix()
	if fmErr == nil && dcmErr == nil {
		if err := frameworkManifest.CheckCompatibility(deviceMatrix); err != nil {
			errs = append(errs, fmt.Errorf("framework manifest vs device matrix: %w", err))
		}
	}

	if checkRuntime && fcmErr == nil {
		ri, err := o.RuntimeInfo()
		if err != nil {
			errs = append(errs, err)
		} else if err := ri.CheckCompatibility(frameworkMatrix); err != nil {
			errs = append(errs, fmt.Errorf("runtime info vs framework matrix: %w", err))
		}
	}

	return errors.Join(errs...)
}

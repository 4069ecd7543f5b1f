//go:build linux

package vintf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrNoKernelConfig is returned when no kernel config source is available.
var ErrNoKernelConfig = errors.New("no kernel config found")

// Cache for FetchRuntimeInfo() results. The kernel version, its config and
// the boot-time properties don't change at runtime, so we cache after the
// first fetch to avoid repeated syscalls and config parsing.
var (
	cachedRuntimeInfo *RuntimeInfo
	runtimeCacheMu    sync.Mutex
	runtimeCacheErr   error
)

// FetchRuntimeInfo gathers the observed system state: kernel identity via
// uname, the raw kernel configuration, the kernel sepolicy version and the
// boot vbmeta AVB version from props. Results are cached; use
// FetchRuntimeInfoNoCache to force a fresh read.
func FetchRuntimeInfo(props PropertyFetcher) (*RuntimeInfo, error) {
	runtimeCacheMu.Lock()
	defer runtimeCacheMu.Unlock()
	if cachedRuntimeInfo != nil || runtimeCacheErr != nil {
		return cachedRuntimeInfo, runtimeCacheErr
	}
	cachedRuntimeInfo, runtimeCacheErr = fetchRuntimeInfo(props)
	return cachedRuntimeInfo, runtimeCacheErr
}

// FetchRuntimeInfoNoCache gathers the observed system state without
// consulting or populating the cache.
func FetchRuntimeInfoNoCache(props PropertyFetcher) (*RuntimeInfo, error) {
	return fetchRuntimeInfo(props)
}

// ResetRuntimeInfoCache clears the cached fetch result.
func ResetRuntimeInfoCache() {
	runtimeCacheMu.Lock()
	defer runtimeCacheMu.Unlock()
	cachedRuntimeInfo = nil
	runtimeCacheErr = nil
}

func fetchRuntimeInfo(props PropertyFetcher) (*RuntimeInfo, error) {
	ri := &RuntimeInfo{}

	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return nil, err
	}
	ri.OsName = unix.ByteSliceToString(uname.Sysname[:])
	ri.NodeName = unix.ByteSliceToString(uname.Nodename[:])
	ri.KernelRelease = unix.ByteSliceToString(uname.Release[:])
	ri.HardwareID = unix.ByteSliceToString(uname.Machine[:])

	kv, err := ParseKernelVersion(kernelVersionPrefix(ri.KernelRelease))
	if err != nil {
		return nil, fmt.Errorf("cannot parse kernel version from release %q: %w", ri.KernelRelease, err)
	}
	ri.KernelVersion = kv

	configs, err := readKernelConfigs(ri.KernelRelease)
	if err != nil {
		return nil, err
	}
	ri.KernelConfigs = configs

	ri.KernelSepolicyVersion = readPolicyvers()

	if props != nil {
		avbRaw := props.GetProperty("ro.boot.vbmeta.avb_version", "0.0")
		avb, err := ParseVersion(avbRaw)
		if err != nil {
			return nil, fmt.Errorf("cannot parse avb version %q: %w", avbRaw, err)
		}
		ri.BootVbmetaAvbVersion = avb
	}

	return ri, nil
}

// kernelVersionPrefix trims a release string like "4.14.42-something" down
// to its leading x.y.z component.
func kernelVersionPrefix(release string) string {
	end := len(release)
	dots := 0
	for i, r := range release {
		switch {
		case r >= '0' && r <= '9':
			continue
		case r == '.' && dots < 2:
			dots++
		default:
			end = i
			return release[:end]
		}
	}
	return release[:end]
}

// readPolicyvers reads the kernel's supported policy version from selinuxfs.
// A missing or unreadable file yields zero, which fails any matrix that
// actually requires a kernel sepolicy version.
func readPolicyvers() uint64 {
	data, err := os.ReadFile("/sys/fs/selinux/policyvers")
	if err != nil {
		return 0
	}
	var vers uint64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "%d", &vers); err != nil {
		return 0
	}
	return vers
}

// configSource describes a kernel config file location.
type configSource struct {
	path       string
	compressed bool
}

// readKernelConfigs reads the running kernel's configuration. It tries
// sources in priority order:
//  1. /proc/config.gz (requires CONFIG_IKCONFIG_PROC=y)
//  2. /boot/config-$(uname -r)
//  3. /lib/modules/$(uname -r)/config
func readKernelConfigs(release string) (map[string]string, error) {
	sources := []configSource{
		{path: "/proc/config.gz", compressed: true},
		{path: "/boot/config-" + release, compressed: false},
		{path: "/lib/modules/" + release + "/config", compressed: false},
	}

	var lastErr error
	for _, src := range sources {
		configs, err := parseConfigsFrom(src)
		if err == nil {
			return configs, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %w", ErrNoKernelConfig, lastErr)
}

// parseConfigsFrom reads and parses a kernel config from the given source.
func parseConfigsFrom(src configSource) (map[string]string, error) {
	f, err := os.Open(src.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if src.compressed {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		reader = gr
	}

	return parseConfigs(reader)
}

// parseConfigs parses kernel configuration from a reader. Values are kept
// as their raw text, quotes included, so requirement entries can interpret
// them under their own declared type at match time.
func parseConfigs(r io.Reader) (map[string]string, error) {
	raw := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !strings.HasPrefix(line, "CONFIG_") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		raw[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return raw, nil
}

//go:build !linux

package vintf

// ErrNoKernelConfig is returned when no kernel config source is available.
// On non-Linux platforms, kernel config is never available.
var ErrNoKernelConfig = ErrUnsupportedPlatform

func FetchRuntimeInfo(_ PropertyFetcher) (*RuntimeInfo, error) {
	return nil, ErrUnsupportedPlatform
}

func FetchRuntimeInfoNoCache(_ PropertyFetcher) (*RuntimeInfo, error) {
	return nil, ErrUnsupportedPlatform
}

func ResetRuntimeInfoCache() {}

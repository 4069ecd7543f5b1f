package vintf

import (
	"os"
	"path/filepath"
	"slices"
	"time"
)

// FileSystem abstracts document retrieval so the assembler and checkers can
// run against the real filesystem, a re-rooted one, or a test fixture.
type FileSystem interface {
	// Fetch returns the content of the file at path.
	Fetch(path string) ([]byte, error)
	// ListFiles returns the names (not paths) of regular files in dir.
	ListFiles(dir string) ([]string, error)
	// ModifiedTime returns the file's last modification time, used to
	// invalidate cached documents.
	ModifiedTime(path string) (time.Time, error)
}

// OSFileSystem reads straight from the host filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Fetch(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (OSFileSystem) ModifiedTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// RootedFileSystem resolves every path under a fixed root directory, so a
// device image mounted at some prefix can be inspected with its own
// absolute paths.
type RootedFileSystem struct {
	Root  string
	Inner FileSystem
}

func (fs RootedFileSystem) inner() FileSystem {
	if fs.Inner != nil {
		return fs.Inner
	}
	return OSFileSystem{}
}

func (fs RootedFileSystem) Fetch(path string) ([]byte, error) {
	return fs.inner().Fetch(filepath.Join(fs.Root, path))
}

func (fs RootedFileSystem) ListFiles(dir string) ([]string, error) {
	return fs.inner().ListFiles(filepath.Join(fs.Root, dir))
}

func (fs RootedFileSystem) ModifiedTime(path string) (time.Time, error) {
	return fs.inner().ModifiedTime(filepath.Join(fs.Root, path))
}

// MapFileSystem serves fixed content from memory; used in tests.
type MapFileSystem map[string]string

func (m MapFileSystem) Fetch(path string) ([]byte, error) {
	content, ok := m[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return []byte(content), nil
}

func (m MapFileSystem) ListFiles(dir string) ([]string, error) {
	var names []string
	for path := range m {
		if filepath.Dir(path) == filepath.Clean(dir) {
			names = append(names, filepath.Base(path))
		}
	}
	if names == nil {
		return nil, &os.PathError{Op: "open", Path: dir, Err: os.ErrNotExist}
	}
	slices.Sort(names)
	return names, nil
}

func (m MapFileSystem) ModifiedTime(path string) (time.Time, error) {
	if _, ok := m[path]; !ok {
		return time.Time{}, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}
	return time.Time{}, nil
}

package hosts

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

const defaultFileMode os.FileMode = 0o644

// File is the target hosts file. Reads and writes go through an afero.Fs so
// the merge pipeline can run against an in-memory filesystem.
type File struct {
	fs   afero.Fs
	path string
}

// NewFile returns the target file at path on fs. A nil fs means the OS
// filesystem.
func NewFile(fs afero.Fs, path string) *File {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &File{fs: fs, path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Read returns the current file content.
func (f *File) Read() ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return nil, fmt.Errorf("hosts: reading %s: %w", f.path, err)
	}
	return data, nil
}

// Write overwrites the file in place, keeping its permission bits.
func (f *File) Write(data []byte) error {
	mode := defaultFileMode
	if info, err := f.fs.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(f.fs, f.path, data, mode); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailure, f.path, err)
	}
	return nil
}

// DefaultPath returns the OS hosts file location.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

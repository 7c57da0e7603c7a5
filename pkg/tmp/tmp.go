// Package tmp provides spool files that clean up after themselves.
package tmp

import "os"

// File wraps an *os.File and also implements a Close method which removes
// the file from the filesystem.
type File struct {
	*os.File
}

// NewFile creates a spool file in dir, named after pattern as in
// [os.CreateTemp].
func NewFile(dir, pattern string) (*File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &File{f}, nil
}

// Close closes the file handle and removes the file from the filesystem.
func (t *File) Close() error {
	if err := t.File.Close(); err != nil {
		return err
	}
	return os.Remove(t.File.Name())
}

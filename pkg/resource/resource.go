package resource

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when opening a resource that does not exist
var ErrNotFound = errors.New("resource not found")

// Resource is a readable document reference
type Resource interface {
	// Name identifies the resource in diagnostics
	Name() string
	// Exists reports whether Open can succeed
	Exists() bool
	// Open returns a reader positioned at the start of the content
	Open() (io.ReadCloser, error)
}

// ReadAll reads the complete content of r
func ReadAll(r Resource) ([]byte, error) {
	rc, err := r.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.Name(), err)
	}
	return data, nil
}

// FileResource is a document on disk
type FileResource struct {
	path string
}

// File returns a resource for the file at path
func File(path string) *FileResource {
	return &FileResource{path: path}
}

// Name returns the file path
func (f *FileResource) Name() string { return f.path }

// Path returns the file path
func (f *FileResource) Path() string { return f.path }

// Exists reports whether path is a regular file or a link to one
func (f *FileResource) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

// Open opens the file
func (f *FileResource) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, f.path)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// BytesResource is an in-memory document
type BytesResource struct {
	name string
	data []byte
}

// Bytes returns a resource for data. A nil slice does not exist.
func Bytes(name string, data []byte) *BytesResource {
	return &BytesResource{name: name, data: data}
}

// Name returns the resource name
func (b *BytesResource) Name() string { return b.name }

// Exists reports whether data was supplied
func (b *BytesResource) Exists() bool { return b.data != nil }

// Open returns a reader over the data
func (b *BytesResource) Open() (io.ReadCloser, error) {
	if b.data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, b.name)
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// GzipResource decompresses another resource
type GzipResource struct {
	inner Resource
}

// Gzip wraps a gzip compressed resource
func Gzip(inner Resource) *GzipResource {
	return &GzipResource{inner: inner}
}

// Name returns the name of the compressed resource
func (g *GzipResource) Name() string { return g.inner.Name() }

// Exists reports whether the compressed resource exists
func (g *GzipResource) Exists() bool { return g.inner.Exists() }

// Open returns a decompressing reader
func (g *GzipResource) Open() (io.ReadCloser, error) {
	rc, err := g.inner.Open()
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", g.inner.Name(), err)
	}
	return &gzipReadCloser{Reader: zr, inner: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	inner io.Closer
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.inner.Close(); err == nil {
		err = cerr
	}
	return err
}

// ForPath returns a file resource, decompressed when path ends in ".gz"
func ForPath(path string) Resource {
	if strings.EqualFold(filepath.Ext(path), ".gz") {
		return Gzip(File(path))
	}
	return File(path)
}

// Compress gzips data at the given level, for example gzip.BestCompression
func Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

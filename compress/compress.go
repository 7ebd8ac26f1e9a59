package compress

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Kind names a compression format.
type Kind string

const (
	// None passes data through unchanged.
	None Kind = "none"
	// Gzip is RFC 1952 gzip.
	Gzip Kind = "gzip"
	// Zstd is Zstandard framed data.
	Zstd Kind = "zstd"
	// LZ4 is the LZ4 frame format.
	LZ4 Kind = "lz4"
)

// ErrUnknownCompression is returned for kinds or extensions nobody registered.
var ErrUnknownCompression = errors.New("compress: unknown compression")

// Error reports a failure inside a compression backend.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s compression error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Backend creates compressing writers and decompressing readers.
type Backend interface {
	NewReader(r io.Reader) (io.ReadCloser, error)
	NewWriter(w io.Writer) (io.WriteCloser, error)
}

// Registry maps compression kinds and file extensions to backends.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[Kind]Backend
	exts     map[string]Kind
}

// NewRegistry returns a registry with the built-in backends registered.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	r.Register(None, noneBackend{})
	r.Register(Gzip, gzipBackend{}, ".gz", ".gzip")
	r.Register(Zstd, zstdBackend{}, ".zst", ".zstd")
	r.Register(LZ4, lz4Backend{}, ".lz4")
	return r
}

// NewEmptyRegistry returns a registry without any backend.
func NewEmptyRegistry() *Registry {
	return &Registry{
		backends: make(map[Kind]Backend),
		exts:     make(map[string]Kind),
	}
}

// Register adds or replaces the backend for kind and maps the given file
// extensions to it.
func (r *Registry) Register(kind Kind, b Backend, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backends[kind] = b
	for _, ext := range exts {
		r.exts[strings.ToLower(ext)] = kind
	}
}

// Lookup returns the backend for kind.
func (r *Registry) Lookup(kind Kind) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, kind)
	}
	return b, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.backends))
	for k := range r.backends {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DetectFromPath returns the kind registered for the extension of path.
// Paths without a registered extension are uncompressed.
func (r *Registry) DetectFromPath(path string) Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if kind, ok := r.exts[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return None
}

// NewReader wraps src with the decompressor for kind. Errors from the
// returned reader are *Error values.
func (r *Registry) NewReader(kind Kind, src io.Reader) (io.ReadCloser, error) {
	b, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	rc, err := b.NewReader(src)
	if err != nil {
		return nil, &Error{Kind: kind, Op: "open reader", Err: err}
	}
	if kind == None {
		return rc, nil
	}
	return &reader{kind: kind, rc: rc}, nil
}

// NewWriter wraps dst with the compressor for kind.
func (r *Registry) NewWriter(kind Kind, dst io.Writer) (io.WriteCloser, error) {
	b, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	wc, err := b.NewWriter(dst)
	if err != nil {
		return nil, &Error{Kind: kind, Op: "open writer", Err: err}
	}
	return wc, nil
}

type reader struct {
	kind Kind
	rc   io.ReadCloser
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF {
		var cerr *Error
		if !errors.As(err, &cerr) {
			err = &Error{Kind: r.kind, Op: "read", Err: err}
		}
	}
	return n, err
}

func (r *reader) Close() error {
	if err := r.rc.Close(); err != nil {
		return &Error{Kind: r.kind, Op: "close", Err: err}
	}
	return nil
}

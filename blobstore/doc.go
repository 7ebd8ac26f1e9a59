// Package blobstore abstracts where relstash reads its input from and writes
// its reports to.
//
// # Built-in Implementations
//
//   - LocalStore: local file system, atomic writes via rename
//   - MemoryStore: in-process map, for tests
//   - minio.Store: S3 and S3-compatible object storage
//
// # Custom Implementations
//
// Implement the Store interface to support other backends:
//
//	type Store interface {
//	    Open(ctx, name) (io.ReadCloser, error)
//	    Put(ctx, name, data) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Implementations must be safe for concurrent use and report missing blobs
// with an error satisfying errors.Is(err, ErrNotFound).
package blobstore

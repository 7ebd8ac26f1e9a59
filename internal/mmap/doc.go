// Package mmap provides anonymous read-write mappings for off-heap stash blocks.
//
// Blocks obtained through MapAnon live outside the Go heap, so a stash holding
// millions of serialized relations does not add to garbage collector scan work.
// The mapping never moves for its lifetime, which is what stash handles rely on.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE
//   - Windows: VirtualAlloc with MEM_RESERVE|MEM_COMMIT
//   - Everything else: a heap allocated slice
package mmap

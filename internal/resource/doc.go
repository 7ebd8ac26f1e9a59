// Package resource implements a Controller for memory and input IO limits.
//
// The Controller covers two resource types:
//
//   - Memory: Track and limit the bytes reserved by stash blocks (non-blocking, fail-fast)
//   - IO: Rate-limit reading of entity input streams
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and an atomic
// counter for usage. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.AcquireMemory(ctx, 1<<20); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(1 << 20)
//
// A Controller satisfies stash.MemoryAcquirer.
//
// # IO Rate Limiting
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024, // 100MB/s
//	})
//	reader := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource

package resource

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for stash block memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum input read throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages memory and IO budgets.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
	memPeak atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if limit would be exceeded.
// Non-blocking; ctx is only checked for cancellation.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	used := c.memUsed.Add(bytes)
	for {
		peak := c.memPeak.Load()
		if used <= peak || c.memPeak.CompareAndSwap(peak, used) {
			break
		}
	}
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// PeakMemoryUsage returns the highest memory usage observed.
func (c *Controller) PeakMemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memPeak.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests larger than the burst.
	burst := c.ioLimiter.Burst()
	for bytes > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		bytes -= burst
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// RateLimitedReader throttles reads through a Controller's IO limiter.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader wraps r. With a nil controller reads pass through.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{ctx: ctx, r: r, rc: rc}
}

// Read implements io.Reader.
func (r *RateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if waitErr := r.rc.AcquireIO(r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

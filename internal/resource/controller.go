package resource

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a filter allocation would exceed
// the configured memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for filter memory.
	// If 0, usage is tracked but never enforced.
	MemoryLimitBytes int64

	// MaxConcurrentBuilds bounds the number of filters populated at once.
	// If 0, defaults to GOMAXPROCS.
	MaxConcurrentBuilds int64

	// SourceBytesPerSec throttles reads from term sources.
	// If 0, unlimited.
	SourceBytesPerSec int64
}

// Controller manages the resources shared by concurrent builds.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	buildSem *semaphore.Weighted
	building atomic.Int64

	readLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentBuilds <= 0 {
		cfg.MaxConcurrentBuilds = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:      cfg,
		buildSem: semaphore.NewWeighted(cfg.MaxConcurrentBuilds),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.SourceBytesPerSec > 0 {
		c.readLimiter = rate.NewLimiter(rate.Limit(cfg.SourceBytesPerSec), int(cfg.SourceBytesPerSec))
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireMemory accounts for a filter allocation of the given size.
// Non-blocking: returns ErrMemoryLimitExceeded if a limit is configured and
// would be exceeded.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns a previously acquired allocation.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the tracked filter memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireBuild reserves a build slot, blocking while all slots are busy.
func (c *Controller) AcquireBuild(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.buildSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.building.Add(1)
	return nil
}

// TryAcquireBuild reserves a build slot without blocking.
func (c *Controller) TryAcquireBuild() bool {
	if c == nil {
		return true
	}
	if !c.buildSem.TryAcquire(1) {
		return false
	}
	c.building.Add(1)
	return true
}

// ReleaseBuild releases a build slot.
func (c *Controller) ReleaseBuild() {
	if c == nil {
		return
	}
	c.building.Add(-1)
	c.buildSem.Release(1)
}

// ActiveBuilds returns the number of slots currently held.
func (c *Controller) ActiveBuilds() int64 {
	if c == nil {
		return 0
	}
	return c.building.Load()
}

// LimitReader wraps r so reads are paced by the source read limit.
// Returns r unchanged when no limit is configured.
func (c *Controller) LimitReader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.readLimiter == nil {
		return r
	}
	return &rateLimitedReader{ctx: ctx, r: r, limiter: c.readLimiter}
}

type rateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (rl *rateLimitedReader) Read(p []byte) (int, error) {
	// WaitN rejects requests larger than the bucket.
	if burst := rl.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := rl.r.Read(p)
	if n > 0 {
		if werr := rl.limiter.WaitN(rl.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

package pipeline

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Locker guards each stage with a single-writer run lease. The redis client
// is the production implementation; MemoryLocker backs tests and
// single-process deployments without redis.
type Locker interface {
	Acquire(ctx context.Context, stage, runID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, stage, runID string) error
}

// MemoryLocker is an in-process Locker. TTLs are not enforced; a crashed
// in-process run releases its lease when the process dies anyway.
type MemoryLocker struct {
	held *xsync.Map[string, string]
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: xsync.NewMap[string, string]()}
}

func (l *MemoryLocker) Acquire(_ context.Context, stage, runID string, _ time.Duration) (bool, error) {
	_, loaded := l.held.LoadOrStore(stage, runID)
	return !loaded, nil
}

func (l *MemoryLocker) Release(_ context.Context, stage, runID string) error {
	if held, ok := l.held.Load(stage); ok && held == runID {
		l.held.Delete(stage)
	}
	return nil
}

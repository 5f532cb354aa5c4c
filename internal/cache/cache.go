// Package cache keeps recent backend responses keyed by request and grouped by tag,
// so a write can drop every response it made stale.
package cache

import (
	"context"
	"time"

	"fintrack/internal/log"
)

// Cache defines a generic tagged cache
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, tags []string, data T)
	Delete(key string)
	// InvalidateTag removes every entry stored with tag.
	InvalidateTag(tag string) int
	Purge()
	Size() int
}

// Cleaner is a cache that can sweep its expired entries
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches for long-running commands.
type Janitor struct {
	caches []Cleaner
	logger *log.Logger
}

func NewJanitor(logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Janitor{logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache to the sweep
func (j *Janitor) Register(c Cleaner) {
	j.caches = append(j.caches, c)
}

// Sweep runs one cleanup pass over every cache and returns the number of entries dropped.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.DebugContext(ctx, "Expired cache entries removed", log.FieldCount, n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Package jobs holds background maintenance for the pipeline.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/archivebot/mediarchive/internal/download"
)

// StartJanitor sweeps stale staging files on a fixed interval until
// ctx is cancelled. Crashed downloads and merges leave files behind;
// the janitor keeps staging from accumulating them.
func StartJanitor(ctx context.Context, staging *download.Staging, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := staging.Sweep(maxAge)
				if err != nil {
					log.Printf("janitor: sweep failed: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("janitor: removed %d stale staging file(s)", removed)
				}
			}
		}
	}()
}

package pool

import (
	"context"
	"log/slog"
	"time"
)

// Watch periodically scans the handle set for dead workers. With respawn
// disabled the pool simply degrades as workers die; with respawn enabled
// every dead handle is replaced by a freshly spawned worker bound to the
// same routing table. Watch blocks until ctx is cancelled and is meant to
// run in its own goroutine.
func (p *Pool) Watch(ctx context.Context, interval time.Duration, respawn bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Pool watcher stopped")
			return

		case <-ticker.C:
			p.sweep(ctx, respawn)
		}
	}
}

func (p *Pool) sweep(ctx context.Context, respawn bool) {
	p.mutex.Lock()
	var dead []int
	for i, h := range p.handles {
		if h.State() == StateDead {
			dead = append(dead, i)
		}
	}
	p.mutex.Unlock()

	if len(dead) == 0 {
		return
	}

	if !respawn {
		p.logger.Warn("Pool degraded", slog.Int("dead_workers", len(dead)))
		return
	}

	for _, i := range dead {
		replacement := p.spawn(ctx)

		p.mutex.Lock()
		old := p.handles[i]
		p.handles[i] = replacement
		p.mutex.Unlock()

		p.logger.Info("Worker respawned",
			slog.Int("dead_worker", old.ID()),
			slog.Int("new_worker", replacement.ID()))
	}
}

// Package janitor reclaims sessions whose refresh horizon has passed.
// Validation already treats such sessions as dead; the sweep only reclaims
// storage, so a delayed or failed sweep never extends a credential's life.
package janitor

import (
	"context"
	"log"
	"strconv"
	"time"

	"task-manager/backend/internal/audit"
)

// Sweeper deletes sessions whose refresh horizon passed before now and
// returns the number reclaimed.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Janitor periodically sweeps expired sessions from the store.
type Janitor struct {
	sweeper     Sweeper
	interval    time.Duration
	auditLogger audit.AuditLogger
	now         func() time.Time
}

// New returns a Janitor sweeping at the given interval.
func New(sweeper Sweeper, interval time.Duration) *Janitor {
	return &Janitor{
		sweeper:     sweeper,
		interval:    interval,
		auditLogger: audit.Nop{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithAuditLogger records an audit event for each sweep that reclaims rows.
func (j *Janitor) WithAuditLogger(l audit.AuditLogger) *Janitor {
	if l != nil {
		j.auditLogger = l
	}
	return j
}

// Run sweeps once immediately, then at every interval tick until ctx is
// cancelled. Sweep failures are logged and the loop keeps going; the next
// tick retries naturally.
func (j *Janitor) Run(ctx context.Context) {
	j.sweep(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("janitor: stopping")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.sweeper.Sweep(ctx, j.now())
	if err != nil {
		log.Printf("janitor: sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("janitor: reclaimed %d expired sessions", n)
		j.auditLogger.LogEvent(ctx, "system", "sweep", "session", strconv.FormatInt(n, 10))
	}
}

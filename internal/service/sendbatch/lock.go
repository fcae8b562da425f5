package sendbatch

import (
	"context"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/ingest"
	"github.com/ignite/batch-email/internal/pkg/distlock"
	"github.com/ignite/batch-email/internal/pkg/logger"
)

// lockedRunner processes a target only while holding its lock, so a
// redelivered event does not publish the same file twice at once.
type lockedRunner struct {
	next   ingest.TargetRunner
	locker distlock.Locker
	onSkip func()
	log    *logger.Logger
}

func (r *lockedRunner) Process(ctx context.Context, t domain.Target) domain.TargetOutcome {
	var out domain.TargetOutcome
	ran, err := distlock.Run(ctx, r.locker.NewLock(t.Path()), func(ctx context.Context) error {
		out = r.next.Process(ctx, t)
		return nil
	})

	switch {
	case err != nil && !ran:
		r.log.Warn("target lock unavailable, processing unguarded", "target", t.Path(), "error", err)
		return r.next.Process(ctx, t)
	case err != nil:
		r.log.Warn("failed to release target lock", "target", t.Path(), "error", err)
	case !ran:
		r.log.Info("target held by another invocation, skipping", "target", t.Path())
		if r.onSkip != nil {
			r.onSkip()
		}
		return domain.NewTargetOutcome(t)
	}
	return out
}

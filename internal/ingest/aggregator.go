package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/batch-email/internal/domain"
)

// Aggregator runs a TargetRunner over every target of a run.
type Aggregator struct {
	runner      TargetRunner
	concurrency int
}

// NewAggregator processes up to concurrency targets at a time (at least 1).
func NewAggregator(runner TargetRunner, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Aggregator{runner: runner, concurrency: concurrency}
}

// Aggregate processes targets and merges their outcomes. Outcomes keep the
// order of targets whatever the concurrency.
func (a *Aggregator) Aggregate(ctx context.Context, targets []domain.Target) domain.RunOutcome {
	outcomes := make([]domain.TargetOutcome, len(targets))

	if a.concurrency == 1 {
		for i, t := range targets {
			outcomes[i] = a.runner.Process(ctx, t)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(a.concurrency)
		for i, t := range targets {
			g.Go(func() error {
				outcomes[i] = a.runner.Process(ctx, t)
				return nil
			})
		}
		_ = g.Wait()
	}

	return Merge(outcomes)
}

// Merge sums target outcomes into a classified RunOutcome.
func Merge(outcomes []domain.TargetOutcome) domain.RunOutcome {
	run := domain.RunOutcome{
		Targets:       outcomes,
		FailedTargets: []domain.TargetOutcome{},
	}
	for _, o := range outcomes {
		run.SuccessCount += o.SuccessCount
		if o.HasErrors() {
			run.FailedTargets = append(run.FailedTargets, o)
		}
	}
	run.Status = domain.ClassifyRun(run.SuccessCount, len(run.FailedTargets))
	return run
}

// Package stages provides the concrete Stage adapters wired into the
// orchestrator: collection, reconciliation, validation, and archival.
package stages

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/orchestrator"
	"github.com/draftiq/scoutsync/internal/source"
)

// CollectStage fans out across the configured collectors and gathers the
// run's raw records. The fan-out is internal concurrency, invisible to the
// orchestrator, which only awaits the stage as a whole.
type CollectStage struct {
	collectors []source.Collector
	limiters   map[string]*rate.Limiter
}

// NewCollectStage creates the collect stage. rates maps source name to
// requests-per-second; sources without an entry are not limited.
func NewCollectStage(collectors []source.Collector, rates map[string]float64) *CollectStage {
	limiters := make(map[string]*rate.Limiter)
	for name, r := range rates {
		if r > 0 {
			limiters[name] = rate.NewLimiter(rate.Limit(r), 1)
		}
	}
	return &CollectStage{collectors: collectors, limiters: limiters}
}

// Name implements orchestrator.Stage.
func (s *CollectStage) Name() string { return "collect" }

// Execute gathers records from every collector. Individual collector
// failures are non-fatal as long as at least one source delivers; a run
// with no records at all fails with the first collector error so the
// orchestrator can classify it for retry.
func (s *CollectStage) Execute(ctx context.Context, _ *orchestrator.StageInput) (*orchestrator.StageResult, error) {
	var (
		mu       sync.Mutex
		records  []model.RawSourceRecord
		collErrs []error
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range s.collectors {
		g.Go(func() error {
			if lim := s.limiters[c.Source()]; lim != nil {
				if err := lim.Wait(gCtx); err != nil {
					return nil
				}
			}

			recs, err := c.Collect(gCtx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				collErrs = append(collErrs, err)
				zap.L().Warn("collect: source failed",
					zap.String("source", c.Source()),
					zap.Error(err),
				)
				return nil
			}
			records = append(records, recs...)
			zap.L().Info("collect: source complete",
				zap.String("source", c.Source()),
				zap.Int("records", len(recs)),
			)
			return nil
		})
	}
	_ = g.Wait()

	if len(records) == 0 && len(collErrs) > 0 {
		return nil, collErrs[0]
	}

	errStrs := make([]string, 0, len(collErrs))
	for _, err := range collErrs {
		errStrs = append(errStrs, err.Error())
	}

	return &orchestrator.StageResult{
		RecordsProcessed: len(records),
		Errors:           errStrs,
		Output:           records,
	}, nil
}

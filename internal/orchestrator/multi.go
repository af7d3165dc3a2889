// internal/orchestrator/multi.go
package orchestrator

import (
	"context"
	"sync"

	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

// Target names one store/platform pair to process.
type Target struct {
	StoreID  string
	Platform models.Platform
}

// Runner fans a batch out over multiple stores under the store-level
// concurrency cap. Store failures are independent: one failed store
// never stops the others.
type Runner struct {
	batch               *Batch
	maxConcurrentStores int
	log                 logger.Logger
}

func NewRunner(batch *Batch, maxConcurrentStores int, log logger.Logger) *Runner {
	if maxConcurrentStores <= 0 {
		maxConcurrentStores = 1
	}
	return &Runner{
		batch:               batch,
		maxConcurrentStores: maxConcurrentStores,
		log: log.With(map[string]interface{}{
			"component": "runner",
		}),
	}
}

// RunAll processes every target and returns the summaries for those
// that ran. Per-store errors are logged and collected by target.
func (r *Runner) RunAll(ctx context.Context, targets []Target) ([]*models.BatchSummary, map[Target]error) {
	summaries := make([]*models.BatchSummary, len(targets))
	failures := make(map[Target]error)

	sem := make(chan struct{}, r.maxConcurrentStores)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, target := range targets {
		select {
		case <-ctx.Done():
			mu.Lock()
			failures[target] = ctx.Err()
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, t Target) {
			defer wg.Done()
			defer func() { <-sem }()

			summary, err := r.batch.Run(ctx, t.StoreID, t.Platform)
			if err != nil {
				r.log.Error("store batch failed", map[string]interface{}{
					"storeId":  t.StoreID,
					"platform": string(t.Platform),
					"error":    err.Error(),
				})
				mu.Lock()
				failures[t] = err
				mu.Unlock()
				return
			}
			summaries[idx] = summary
		}(i, target)
	}
	wg.Wait()

	kept := summaries[:0]
	for _, s := range summaries {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return kept, failures
}

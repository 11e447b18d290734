package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default batch policy.
const (
	DefaultBatchSize  = 10
	DefaultBatchPause = 100 * time.Millisecond
)

// ItemProcessor produces one outcome for one item.
type ItemProcessor interface {
	Process(ctx context.Context, item string) Outcome
}

// Orchestrator processes items in fixed-size batches. Items within a batch
// run concurrently; batches run one after another with a pacing delay in
// between so the downstream store is never hit by an unbounded burst.
type Orchestrator struct {
	proc      ItemProcessor
	batchSize int
	pause     time.Duration
}

// NewOrchestrator creates an Orchestrator. A non-positive batchSize falls
// back to DefaultBatchSize; a negative pause falls back to
// DefaultBatchPause (zero disables pacing).
func NewOrchestrator(proc ItemProcessor, batchSize int, pause time.Duration) *Orchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if pause < 0 {
		pause = DefaultBatchPause
	}
	return &Orchestrator{proc: proc, batchSize: batchSize, pause: pause}
}

// Run processes all items and returns exactly one outcome per item, in
// submission order. A failed item never aborts its batch or the run.
func (o *Orchestrator) Run(ctx context.Context, items []string) []Outcome {
	outcomes := make([]Outcome, len(items))

	for start := 0; start < len(items); start += o.batchSize {
		end := start + o.batchSize
		if end > len(items) {
			end = len(items)
		}

		slog.Info("processing batch",
			"from", start,
			"to", end,
			"total", len(items),
		)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = o.proc.Process(ctx, items[i])
			}(i)
		}
		wg.Wait()

		// Pace between batches, but not after the last one.
		if end < len(items) && o.pause > 0 {
			timer := time.NewTimer(o.pause)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}

	return outcomes
}

package sweep

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingProcessor records concurrency and succeeds or fails per item.
type countingProcessor struct {
	active    atomic.Int64
	maxActive atomic.Int64
	failFor   func(item string) bool
	delay     time.Duration
}

func (p *countingProcessor) Process(_ context.Context, item string) Outcome {
	n := p.active.Add(1)
	for {
		max := p.maxActive.Load()
		if n <= max || p.maxActive.CompareAndSwap(max, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.active.Add(-1)

	if p.failFor != nil && p.failFor(item) {
		return Outcome{Item: item, Success: false, Err: "boom", Retries: 3}
	}
	return Outcome{Item: item, Success: true}
}

func itemList(n int) []string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("report-%03d.json", i)
	}
	return items
}

func TestRun_OneOutcomePerItemInOrder(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25} {
		o := NewOrchestrator(&countingProcessor{}, 10, 0)
		outcomes := o.Run(context.Background(), itemList(n))

		if len(outcomes) != n {
			t.Fatalf("Run(%d items) returned %d outcomes", n, len(outcomes))
		}
		for i, out := range outcomes {
			if want := fmt.Sprintf("report-%03d.json", i); out.Item != want {
				t.Fatalf("outcome %d is for %q, want %q (order not preserved)", i, out.Item, want)
			}
		}
	}
}

func TestRun_ConcurrencyBoundedByBatchSize(t *testing.T) {
	proc := &countingProcessor{delay: 20 * time.Millisecond}
	o := NewOrchestrator(proc, 5, 0)

	o.Run(context.Background(), itemList(20))

	if max := proc.maxActive.Load(); max > 5 {
		t.Errorf("max concurrent items = %d, want <= 5", max)
	}
}

func TestRun_FailedItemDoesNotAbortBatch(t *testing.T) {
	proc := &countingProcessor{failFor: func(item string) bool {
		return strings.Contains(item, "report-003")
	}}
	o := NewOrchestrator(proc, 10, 0)

	outcomes := o.Run(context.Background(), itemList(8))

	var failed, succeeded int
	for _, out := range outcomes {
		if out.Success {
			succeeded++
		} else {
			failed++
		}
	}
	if failed != 1 || succeeded != 7 {
		t.Errorf("failed = %d, succeeded = %d, want 1 and 7", failed, succeeded)
	}
}

func TestRun_PacingBetweenBatchesOnly(t *testing.T) {
	pause := 50 * time.Millisecond
	o := NewOrchestrator(&countingProcessor{}, 10, pause)

	// 20 items = 2 batches = exactly one pacing delay.
	start := time.Now()
	o.Run(context.Background(), itemList(20))
	elapsed := time.Since(start)

	if elapsed < pause {
		t.Errorf("elapsed = %v, want at least one pacing delay of %v", elapsed, pause)
	}
	if elapsed > 2*pause {
		t.Errorf("elapsed = %v, suggests pacing after the final batch", elapsed)
	}

	// A single batch gets no pacing at all.
	start = time.Now()
	o.Run(context.Background(), itemList(10))
	if elapsed := time.Since(start); elapsed >= pause {
		t.Errorf("single-batch run took %v, want no pacing delay", elapsed)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	called := false
	o := NewOrchestrator(processorFunc(func(ctx context.Context, item string) Outcome {
		called = true
		return Outcome{Item: item}
	}), 10, 0)

	outcomes := o.Run(context.Background(), nil)
	if len(outcomes) != 0 {
		t.Fatalf("Run(nil) returned %d outcomes, want 0", len(outcomes))
	}
	if called {
		t.Error("processor invoked for an empty item list")
	}
}

// processorFunc adapts a function to ItemProcessor.
type processorFunc func(ctx context.Context, item string) Outcome

func (f processorFunc) Process(ctx context.Context, item string) Outcome {
	return f(ctx, item)
}

func TestRun_OutcomeSlotsRaceFree(t *testing.T) {
	// Hammer the orchestrator with a processor that returns immediately to
	// give the race detector something to chew on.
	var wg sync.WaitGroup
	o := NewOrchestrator(&countingProcessor{}, 4, 0)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Run(context.Background(), itemList(13))
		}()
	}
	wg.Wait()
}

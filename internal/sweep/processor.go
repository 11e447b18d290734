package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Default retry policy.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Transformer executes the business transformation for one item. One call is
// one attempt; any error fails the attempt.
type Transformer interface {
	Transform(ctx context.Context, item string) error
}

// terminalError is implemented by errors that retrying cannot fix
// (validation failures). The processor stops immediately on them instead of
// burning retries.
type terminalError interface {
	Terminal() bool
}

func isTerminal(err error) bool {
	var te terminalError
	return errors.As(err, &te) && te.Terminal()
}

// Processor runs a transformation with bounded retry and exponential
// backoff.
type Processor struct {
	transform  Transformer
	maxRetries int
	baseDelay  time.Duration
}

// NewProcessor creates a Processor. Non-positive maxRetries or baseDelay
// fall back to the defaults.
func NewProcessor(transform Transformer, maxRetries int, baseDelay time.Duration) *Processor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Processor{transform: transform, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Process runs the transformation for one item. Retries is the number of
// retries consumed: 0 on first-try success, maxRetries on exhaustion. The
// delay before retry n is baseDelay × 2^(n-1). Cancellation ends the item
// with a failed outcome; it never blocks a sleeping retry.
func (p *Processor) Process(ctx context.Context, item string) Outcome {
	for retries := 0; ; retries++ {
		err := p.transform.Transform(ctx, item)
		if err == nil {
			return Outcome{Item: item, Success: true, Retries: retries}
		}

		if isTerminal(err) {
			slog.Warn("item failed terminally, not retrying", "item", item, "error", err)
			return Outcome{Item: item, Success: false, Err: err.Error(), Retries: retries}
		}
		if retries >= p.maxRetries {
			return Outcome{Item: item, Success: false, Err: err.Error(), Retries: retries}
		}

		delay := p.baseDelay << retries
		slog.Info("retrying item", "item", item, "retry", retries+1, "delay", delay.String(), "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Outcome{Item: item, Success: false, Err: ctx.Err().Error(), Retries: retries}
		}
	}
}

package sweep

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/reportsweep/reportsweep/internal/metrics"
)

// Relocator moves a failed item out of the source location.
type Relocator interface {
	Exists(ctx context.Context, name string) (bool, error)
	Move(ctx context.Context, name string, meta map[string]string) error
}

// Router quarantines the items whose processing terminally failed.
// Successful items were already relocated by the transformation itself.
type Router struct {
	quarantine Relocator
	now        func() time.Time
}

// NewRouter creates a Router.
func NewRouter(quarantine Relocator) *Router {
	return &Router{quarantine: quarantine, now: time.Now}
}

// Route relocates every failed outcome's source object to quarantine with
// failure metadata. Each relocation failure is logged and swallowed so one
// stuck item never blocks quarantining the rest; the item stays retrievable
// from its original location for manual recovery.
func (r *Router) Route(ctx context.Context, outcomes []Outcome) {
	for _, o := range outcomes {
		if o.Success {
			continue
		}

		present, err := r.quarantine.Exists(ctx, o.Item)
		if err != nil {
			slog.Warn("quarantine check failed", "item", o.Item, "error", err)
			continue
		}
		if !present {
			// Already gone; nothing to relocate.
			continue
		}

		meta := map[string]string{
			"error":       o.Err,
			"retry_count": strconv.Itoa(o.Retries),
			"failed_at":   r.now().UTC().Format(time.RFC3339),
		}
		if err := r.quarantine.Move(ctx, o.Item, meta); err != nil {
			slog.Warn("failed to quarantine item", "item", o.Item, "error", err)
			continue
		}
		metrics.ItemsQuarantined.Inc()
		slog.Info("quarantined item", "item", o.Item, "retries", o.Retries)
	}
}

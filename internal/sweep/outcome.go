// Package sweep implements the batched, retrying processing engine and the
// run coordination around it.
package sweep

import (
	"fmt"
	"time"
)

// Outcome is the terminal result of processing one work item. Exactly one
// Outcome exists per item submitted to the orchestrator.
type Outcome struct {
	Item    string
	Success bool
	Err     string
	Retries int
}

// Stats aggregates the outcomes of one run.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
	Retries   int
	Elapsed   time.Duration
}

// Summarize computes run statistics from a set of outcomes.
func Summarize(outcomes []Outcome, elapsed time.Duration) Stats {
	s := Stats{Total: len(outcomes), Elapsed: elapsed}
	for _, o := range outcomes {
		if o.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.Retries += o.Retries
	}
	return s
}

// SuccessRate formats the share of succeeded items as a percentage string,
// e.g. "66.67%". An empty run reports "0%".
func (s Stats) SuccessRate() string {
	if s.Total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(s.Succeeded)/float64(s.Total)*100)
}

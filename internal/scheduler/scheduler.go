// Package scheduler fires sweep runs on a cron schedule.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/reportsweep/reportsweep/internal/sweep"
)

// lateTolerance is how far past the scheduled time a firing may drift
// before the trigger is flagged late.
const lateTolerance = time.Minute

// Scheduler invokes the run function whenever the cron schedule fires.
type Scheduler struct {
	schedule cron.Schedule
	run      func(sweep.Trigger)

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// New parses a cron expression (standard 5-field syntax or descriptors like
// @hourly) and returns a Scheduler that calls run on each firing.
func New(spec string, run func(sweep.Trigger)) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return &Scheduler{
		schedule: schedule,
		run:      run,
		stop:     make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Start launches the scheduling loop in the background.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop halts the scheduling loop. Idempotent. A run already in flight is
// not interrupted.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) loop() {
	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-timer.C:
			fired := s.now()
			trig := sweep.Trigger{
				RunID:        uuid.NewString(),
				ScheduledFor: next,
				FiredAt:      fired,
				Late:         fired.Sub(next) > lateTolerance,
			}
			slog.Info("schedule fired",
				"run_id", trig.RunID,
				"scheduled_for", next.Format(time.RFC3339),
				"late", trig.Late,
			)
			s.run(trig)
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

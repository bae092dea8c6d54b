package digest

import (
	"context"
	"time"

	"github.com/signalboard/signalboard/internal/logging"
)

// digestHour is the local hour at which the daily digest fires.
const digestHour = 9

// Scheduler runs the synthesizer once a day at 9am local time.
type Scheduler struct {
	synth *Synthesizer
	loc   *time.Location
}

// NewScheduler builds a scheduler in the synthesizer's timezone.
func NewScheduler(synth *Synthesizer, loc *time.Location) *Scheduler {
	return &Scheduler{synth: synth, loc: loc}
}

// Run blocks until ctx is cancelled, firing the digest at each 9am boundary.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextRun(time.Now().In(s.loc))
		logging.Info("digest", "next scheduled digest at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.synth.Run(ctx, time.Now()); err != nil {
			logging.Error("digest", "scheduled digest failed: %v", err)
		}
	}
}

// nextRun returns the next 9am strictly after now in now's location.
func nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), digestHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

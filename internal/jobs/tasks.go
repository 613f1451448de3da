package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultSweepSchedule = "@every 1m"

// SweepTask runs one sweep kind on a cron schedule.
type SweepTask struct {
	name     string
	schedule string
	timeout  time.Duration
	run      func(ctx context.Context, now time.Time) (Report, error)
	clock    func() time.Time
}

func NewPublishTask(sweeper *Sweeper, schedule string, timeout time.Duration) *SweepTask {
	return newSweepTask("scheduled_publish", schedule, timeout, sweeper.ProcessScheduledPublications)
}

func NewArchiveTask(sweeper *Sweeper, schedule string, timeout time.Duration) *SweepTask {
	return newSweepTask("scheduled_archive", schedule, timeout, sweeper.ProcessScheduledArchivals)
}

func newSweepTask(name, schedule string, timeout time.Duration, run func(context.Context, time.Time) (Report, error)) *SweepTask {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SweepTask{name: name, schedule: schedule, timeout: timeout, run: run, clock: time.Now}
}

func (t *SweepTask) ID() string {
	return t.name
}

func (t *SweepTask) Schedule() string {
	return t.schedule
}

func (t *SweepTask) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if _, err := t.run(ctx, t.clock().UTC()); err != nil {
		logrus.WithError(err).Errorf("%s sweep failed", t.name)
	}
}

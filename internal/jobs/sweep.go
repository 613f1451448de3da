package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/service"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type OutcomeStatus string

const (
	OutcomeAdvanced OutcomeStatus = "advanced"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeFailed   OutcomeStatus = "failed"
)

type Outcome struct {
	RevisionID string
	Status     OutcomeStatus
	Err        error
}

// Step advances one due revision.
type Step func(ctx context.Context, id uuid.UUID, now time.Time) error

// Advance runs step over every due revision. A failing item never stops the
// batch and stays due for the next run. Items that already moved on are
// skipped, which makes overlapping runs harmless. Once ctx is done the
// remaining items are left for the next run.
func Advance(ctx context.Context, now time.Time, due []*model.Revision, step Step) []Outcome {
	outcomes := make([]Outcome, 0, len(due))
	for _, rev := range due {
		if ctx.Err() != nil {
			break
		}

		id, err := uuid.Parse(rev.ID)
		if err == nil {
			err = step(ctx, id, now)
		}

		outcome := Outcome{RevisionID: rev.ID, Err: err}
		switch {
		case err == nil:
			outcome.Status = OutcomeAdvanced
		case errors.Is(err, service.ErrInvalidTransition),
			errors.Is(err, service.ErrStatusConflict),
			errors.Is(err, service.ErrNothingScheduled):
			outcome.Status = OutcomeSkipped
		default:
			outcome.Status = OutcomeFailed
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

type Report struct {
	Advanced int
	Skipped  int
	Failed   int
	Outcomes []Outcome
}

func newReport(outcomes []Outcome) Report {
	report := Report{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeAdvanced:
			report.Advanced++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}

	return report
}

// Lifecycle is the part of the revision service the sweep drives.
type Lifecycle interface {
	PublishScheduled(ctx context.Context, id uuid.UUID, now time.Time) (*model.Revision, error)
	ArchiveScheduled(ctx context.Context, id uuid.UUID, now time.Time) (*model.Revision, error)
}

// DueFinder lists revisions whose scheduled transition is due.
type DueFinder interface {
	FindScheduledToPublish(ctx context.Context, now time.Time) ([]*model.Revision, error)
	FindScheduledToArchive(ctx context.Context, now time.Time) ([]*model.Revision, error)
}

type Sweeper struct {
	finder    DueFinder
	lifecycle Lifecycle
}

func NewSweeper(finder DueFinder, lifecycle Lifecycle) *Sweeper {
	return &Sweeper{finder: finder, lifecycle: lifecycle}
}

func (s *Sweeper) ProcessScheduledPublications(ctx context.Context, now time.Time) (Report, error) {
	due, err := s.finder.FindScheduledToPublish(ctx, now)
	if err != nil {
		return Report{}, err
	}

	report := newReport(Advance(ctx, now, due, func(ctx context.Context, id uuid.UUID, now time.Time) error {
		_, err := s.lifecycle.PublishScheduled(ctx, id, now)
		return err
	}))
	logReport("publish", report)

	return report, nil
}

func (s *Sweeper) ProcessScheduledArchivals(ctx context.Context, now time.Time) (Report, error) {
	due, err := s.finder.FindScheduledToArchive(ctx, now)
	if err != nil {
		return Report{}, err
	}

	report := newReport(Advance(ctx, now, due, func(ctx context.Context, id uuid.UUID, now time.Time) error {
		_, err := s.lifecycle.ArchiveScheduled(ctx, id, now)
		return err
	}))
	logReport("archive", report)

	return report, nil
}

func logReport(kind string, report Report) {
	for _, o := range report.Outcomes {
		switch o.Status {
		case OutcomeFailed:
			logrus.WithError(o.Err).WithField("revision", o.RevisionID).Errorf("scheduled %s failed", kind)
		case OutcomeSkipped:
			logrus.WithField("revision", o.RevisionID).Debugf("scheduled %s skipped: %v", kind, o.Err)
		}
	}

	if len(report.Outcomes) > 0 {
		logrus.Infof("scheduled %s sweep: %d advanced, %d skipped, %d failed",
			kind, report.Advanced, report.Skipped, report.Failed)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/template/internal/content"
	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/queue"
	"github.com/emrgen/template/internal/store"
	"github.com/emrgen/template/internal/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// SchedulerActor stamps transitions made by the scheduler sweep.
const SchedulerActor = "system:scheduler"

const maxNameLength = 255

// ContentValidator gates saves and publications.
type ContentValidator interface {
	ValidateForDraft(raw []byte) *validator.Result
	ValidateForPublish(ctx context.Context, workspaceID, revisionID uuid.UUID, raw []byte) (*validator.Result, error)
}

// NewRevisionService creates a new RevisionService.
func NewRevisionService(store store.Store, validator ContentValidator, queue queue.RevisionQueue) *RevisionService {
	return &RevisionService{
		store:     store,
		validator: validator,
		queue:     queue,
		clock:     time.Now,
	}
}

// RevisionService owns the revision lifecycle of templates.
type RevisionService struct {
	store     store.Store
	validator ContentValidator
	queue     queue.RevisionQueue
	clock     func() time.Time
}

// WithClock replaces the time source.
func (s *RevisionService) WithClock(clock func() time.Time) *RevisionService {
	s.clock = clock
	return s
}

func (s *RevisionService) now() time.Time {
	return instant(s.clock())
}

// instant normalises a time to the precision every supported database keeps.
func instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

type CreateVersionRequest struct {
	TemplateID  uuid.UUID
	Name        string
	Description *string
	Content     json.RawMessage
	Actor       string
}

func (r *CreateVersionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TemplateID, validation.NotIn(uuid.Nil).Error("is required")),
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
	)
}

type CreateVersionFromExistingRequest struct {
	SourceID    uuid.UUID
	Name        string
	Description *string
	Actor       string
}

func (r *CreateVersionFromExistingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SourceID, validation.NotIn(uuid.Nil).Error("is required")),
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
	)
}

// UpdateVersionRequest changes only the fields that are set. A nil Content
// keeps the current body and a JSON null clears it.
type UpdateVersionRequest struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	Content     json.RawMessage
	Actor       string
}

func (r *UpdateVersionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.NotIn(uuid.Nil).Error("is required")),
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, maxNameLength)),
	)
}

// CreateVersion creates a new draft revision.
func (s *RevisionService) CreateVersion(ctx context.Context, req *CreateVersionRequest) (*model.Revision, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return nil, lifecycleErr(ErrInvalidRequest, "invalid request: %v", err)
	}

	if res := s.validator.ValidateForDraft(req.Content); !res.Valid {
		return nil, &ContentInvalidError{Result: res}
	}

	return s.create(ctx, req.TemplateID, req.Name, req.Description, contentColumn(req.Content), req.Actor, nil)
}

// CreateVersionFromExisting creates a draft seeded with the content and the
// injectables of another revision of any status.
func (s *RevisionService) CreateVersionFromExisting(ctx context.Context, req *CreateVersionFromExistingRequest) (*model.Revision, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return nil, lifecycleErr(ErrInvalidRequest, "invalid request: %v", err)
	}

	source, err := s.get(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, uuid.MustParse(source.TemplateID), req.Name, req.Description, source.ContentStructure, req.Actor, &req.SourceID)
}

func (s *RevisionService) create(ctx context.Context, templateID uuid.UUID, name string, description *string, body datatypes.JSON, actor string, sourceID *uuid.UUID) (*model.Revision, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, notFound(err, ErrTemplateNotFound)
	}

	rev := &model.Revision{
		TemplateID:       templateID.String(),
		Name:             name,
		Description:      description,
		ContentStructure: body,
		Status:           model.StatusDraft,
		CreatedBy:        actorRef(actor),
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		taken, err := tx.ExistsRevisionName(ctx, templateID, name, nil)
		if err != nil {
			return err
		}
		if taken {
			return lifecycleErr(ErrNameTaken, "revision name %q is already used in this template", name)
		}

		number, err := tx.NextVersionNumber(ctx, templateID)
		if err != nil {
			return notFound(err, ErrTemplateNotFound)
		}
		rev.VersionNumber = number

		if err := tx.CreateRevision(ctx, rev); err != nil {
			return conflict(err)
		}

		if sourceID != nil {
			return tx.CopyRevisionInjectablesFromVersion(ctx, *sourceID, uuid.MustParse(rev.ID))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, queue.EventCreated, rev, actor)

	return rev, nil
}

// UpdateVersion edits a draft, or a scheduled revision that is not due yet.
// Content only has to decode, publish checks run again at publication.
func (s *RevisionService) UpdateVersion(ctx context.Context, req *UpdateVersionRequest) (*model.Revision, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := req.Validate(); err != nil {
		return nil, lifecycleErr(ErrInvalidRequest, "invalid request: %v", err)
	}

	rev, err := s.get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !editable(rev, now) {
		return nil, lifecycleErr(ErrNotEditable, "revision %s is %s and cannot be edited", rev.ID, rev.Status)
	}

	changes := store.Changes{"updated_at": now}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Content != nil {
		if res := s.validator.ValidateForDraft(req.Content); !res.Valid {
			return nil, &ContentInvalidError{Result: res}
		}
		changes["content_structure"] = contentColumn(req.Content)
	}

	templateID := uuid.MustParse(rev.TemplateID)
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if req.Name != nil {
			taken, err := tx.ExistsRevisionName(ctx, templateID, *req.Name, &req.ID)
			if err != nil {
				return err
			}
			if taken {
				return lifecycleErr(ErrNameTaken, "revision name %q is already used in this template", *req.Name)
			}
			changes["name"] = *req.Name
		}

		return tx.UpdateRevision(ctx, req.ID, store.From(model.StatusDraft, model.StatusScheduled), changes)
	})
	if err != nil {
		return nil, conflict(err)
	}

	return s.reload(ctx, req.ID, queue.EventUpdated, req.Actor)
}

// PublishVersion validates a draft or scheduled revision and makes it the
// published revision of its template, archiving the previous one.
func (s *RevisionService) PublishVersion(ctx context.Context, id uuid.UUID, actor string) (*model.Revision, error) {
	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if rev.Status != model.StatusDraft && rev.Status != model.StatusScheduled {
		return nil, lifecycleErr(ErrInvalidTransition, "cannot publish a %s revision", rev.Status)
	}

	return s.publish(ctx, rev, actor, store.From(rev.Status))
}

// PublishScheduled publishes a scheduled revision whose publish instant is
// not after now.
func (s *RevisionService) PublishScheduled(ctx context.Context, id uuid.UUID, now time.Time) (*model.Revision, error) {
	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if rev.Status != model.StatusScheduled {
		return nil, lifecycleErr(ErrInvalidTransition, "revision %s is %s, not scheduled", rev.ID, rev.Status)
	}
	if rev.ScheduledPublishAt == nil || rev.ScheduledPublishAt.After(now) {
		return nil, lifecycleErr(ErrNothingScheduled, "revision %s is not due for publication", rev.ID)
	}

	due := now.UTC()
	return s.publish(ctx, rev, SchedulerActor, store.Guard{
		Statuses:   []model.RevisionStatus{model.StatusScheduled},
		PublishDue: &due,
	})
}

func (s *RevisionService) publish(ctx context.Context, rev *model.Revision, actor string, guard store.Guard) (*model.Revision, error) {
	template, err := s.store.GetTemplate(ctx, uuid.MustParse(rev.TemplateID))
	if err != nil {
		return nil, notFound(err, ErrTemplateNotFound)
	}

	extracted, err := s.validatePublish(ctx, template, rev)
	if err != nil {
		return nil, err
	}

	id := uuid.MustParse(rev.ID)
	now := s.now()
	var archived *model.Revision

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := replaceInjectables(ctx, tx, id, extracted); err != nil {
			return err
		}

		current, err := tx.FindPublishedByTemplateID(ctx, uuid.MustParse(template.ID))
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		case current.ID != rev.ID:
			err = tx.UpdateRevision(ctx, uuid.MustParse(current.ID), store.From(model.StatusPublished), store.Changes{
				"status":               model.StatusArchived,
				"archived_at":          now,
				"archived_by":          actorRef(actor),
				"scheduled_archive_at": nil,
				"updated_at":           now,
			})
			if err != nil {
				return err
			}
			current.Status = model.StatusArchived
			archived = current
		}

		return tx.UpdateRevision(ctx, id, guard.Unchanged(rev), store.Changes{
			"status":               model.StatusPublished,
			"published_at":         now,
			"published_by":         actorRef(actor),
			"scheduled_publish_at": nil,
			"updated_at":           now,
		})
	})
	if err != nil {
		return nil, conflict(err)
	}

	if archived != nil {
		s.emit(ctx, queue.EventArchived, archived, actor)
	}

	return s.reload(ctx, id, queue.EventPublished, actor)
}

// SchedulePublish validates a revision now and queues its publication at at.
// A scheduled revision may be moved to another instant.
func (s *RevisionService) SchedulePublish(ctx context.Context, id uuid.UUID, at time.Time, actor string) (*model.Revision, error) {
	at = instant(at)
	now := s.now()
	if !at.After(now) {
		return nil, lifecycleErr(ErrScheduleInPast, "publish instant %s is not in the future", at.Format(time.RFC3339))
	}

	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev.Status != model.StatusDraft && rev.Status != model.StatusScheduled {
		return nil, lifecycleErr(ErrInvalidTransition, "cannot schedule a %s revision", rev.Status)
	}

	template, err := s.store.GetTemplate(ctx, uuid.MustParse(rev.TemplateID))
	if err != nil {
		return nil, notFound(err, ErrTemplateNotFound)
	}

	extracted, err := s.validatePublish(ctx, template, rev)
	if err != nil {
		return nil, err
	}

	templateID := uuid.MustParse(template.ID)
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		taken, err := tx.ExistsScheduledAtTime(ctx, templateID, at, &id)
		if err != nil {
			return err
		}
		if taken {
			return lifecycleErr(ErrScheduleConflict, "another revision is already scheduled at %s", at.Format(time.RFC3339))
		}

		if err := replaceInjectables(ctx, tx, id, extracted); err != nil {
			return err
		}

		err = tx.UpdateRevision(ctx, id, store.From(rev.Status).Unchanged(rev), store.Changes{
			"status":               model.StatusScheduled,
			"scheduled_publish_at": at,
			"updated_at":           now,
		})
		if err != nil {
			return err
		}

		if rev.Status == model.StatusScheduled {
			return releaseOrphanedArchive(ctx, tx, templateID, now)
		}

		return nil
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, lifecycleErr(ErrScheduleConflict, "another revision is already scheduled at %s", at.Format(time.RFC3339))
	}
	if err != nil {
		return nil, conflict(err)
	}

	return s.reload(ctx, id, queue.EventScheduled, actor)
}

// ScheduleArchive queues the archival of the published revision. It needs a
// scheduled successor that goes live no later than at.
func (s *RevisionService) ScheduleArchive(ctx context.Context, id uuid.UUID, at time.Time, actor string) (*model.Revision, error) {
	at = instant(at)
	now := s.now()
	if !at.After(now) {
		return nil, lifecycleErr(ErrScheduleInPast, "archive instant %s is not in the future", at.Format(time.RFC3339))
	}

	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev.Status != model.StatusPublished {
		return nil, lifecycleErr(ErrInvalidTransition, "cannot schedule archival of a %s revision", rev.Status)
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		ok, err := tx.ExistsScheduledSuccessor(ctx, uuid.MustParse(rev.TemplateID), id, at)
		if err != nil {
			return err
		}
		if !ok {
			return lifecycleErr(ErrNoSuccessor, "no revision is scheduled to publish by %s", at.Format(time.RFC3339))
		}

		return tx.UpdateRevision(ctx, id, store.From(model.StatusPublished), store.Changes{
			"scheduled_archive_at": at,
			"updated_at":           now,
		})
	})
	if err != nil {
		return nil, conflict(err)
	}

	return s.reload(ctx, id, queue.EventScheduled, actor)
}

// CancelSchedule returns a scheduled revision to draft, or drops the pending
// archival of a published one.
func (s *RevisionService) CancelSchedule(ctx context.Context, id uuid.UUID, actor string) (*model.Revision, error) {
	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case rev.Status == model.StatusScheduled:
		err = s.store.Transaction(ctx, func(tx store.Store) error {
			err := tx.UpdateRevision(ctx, id, store.From(model.StatusScheduled), store.Changes{
				"status":               model.StatusDraft,
				"scheduled_publish_at": nil,
				"updated_at":           now,
			})
			if err != nil {
				return err
			}

			return releaseOrphanedArchive(ctx, tx, uuid.MustParse(rev.TemplateID), now)
		})
	case rev.Status == model.StatusPublished && rev.ScheduledArchiveAt != nil:
		err = s.store.UpdateRevision(ctx, id, store.From(model.StatusPublished), store.Changes{
			"scheduled_archive_at": nil,
			"updated_at":           now,
		})
	default:
		return nil, lifecycleErr(ErrNothingScheduled, "revision %s has no pending schedule", rev.ID)
	}
	if err != nil {
		return nil, conflict(err)
	}

	return s.reload(ctx, id, queue.EventCancelled, actor)
}

// ArchiveVersion archives the published revision right away.
func (s *RevisionService) ArchiveVersion(ctx context.Context, id uuid.UUID, actor string) (*model.Revision, error) {
	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev.Status != model.StatusPublished {
		return nil, lifecycleErr(ErrInvalidTransition, "cannot archive a %s revision", rev.Status)
	}

	return s.archive(ctx, id, actor, store.From(model.StatusPublished))
}

// ArchiveScheduled archives a published revision whose archive instant is not
// after now.
func (s *RevisionService) ArchiveScheduled(ctx context.Context, id uuid.UUID, now time.Time) (*model.Revision, error) {
	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev.Status != model.StatusPublished {
		return nil, lifecycleErr(ErrInvalidTransition, "revision %s is %s, not published", rev.ID, rev.Status)
	}
	if rev.ScheduledArchiveAt == nil || rev.ScheduledArchiveAt.After(now) {
		return nil, lifecycleErr(ErrNothingScheduled, "revision %s is not due for archival", rev.ID)
	}

	due := now.UTC()
	guard := store.Guard{
		Statuses:   []model.RevisionStatus{model.StatusPublished},
		ArchiveDue: &due,
	}

	return s.archive(ctx, id, SchedulerActor, guard, func(tx store.Store) error {
		// a due successor that is still scheduled has not gone live yet
		waiting, err := tx.ExistsScheduledSuccessor(ctx, uuid.MustParse(rev.TemplateID), id, due)
		if err != nil {
			return err
		}
		if waiting {
			return lifecycleErr(ErrNothingScheduled, "revision %s stays live until its successor is published", rev.ID)
		}

		return nil
	})
}

func (s *RevisionService) archive(ctx context.Context, id uuid.UUID, actor string, guard store.Guard, checks ...func(tx store.Store) error) (*model.Revision, error) {
	now := s.now()
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		for _, check := range checks {
			if err := check(tx); err != nil {
				return err
			}
		}

		return tx.UpdateRevision(ctx, id, guard, store.Changes{
			"status":               model.StatusArchived,
			"archived_at":          now,
			"archived_by":          actorRef(actor),
			"scheduled_archive_at": nil,
			"updated_at":           now,
		})
	})
	if err != nil {
		return nil, conflict(err)
	}

	return s.reload(ctx, id, queue.EventArchived, actor)
}

// DeleteVersion removes a draft or scheduled revision with its injectables.
func (s *RevisionService) DeleteVersion(ctx context.Context, id uuid.UUID, actor string) error {
	rev, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if rev.Status != model.StatusDraft && rev.Status != model.StatusScheduled {
		return lifecycleErr(ErrNotDeletable, "cannot delete a %s revision", rev.Status)
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteRevisionInjectablesByVersionID(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteRevision(ctx, id, []model.RevisionStatus{model.StatusDraft, model.StatusScheduled}); err != nil {
			return err
		}
		if rev.Status == model.StatusScheduled {
			return releaseOrphanedArchive(ctx, tx, uuid.MustParse(rev.TemplateID), now)
		}

		return nil
	})
	if err != nil {
		return conflict(err)
	}

	s.emit(ctx, queue.EventDeleted, rev, actor)

	return nil
}

// GetVersion returns a revision with its extracted injectables.
func (s *RevisionService) GetVersion(ctx context.Context, id uuid.UUID) (*model.Revision, error) {
	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	injectables, err := s.store.ListRevisionInjectables(ctx, id)
	if err != nil {
		return nil, err
	}
	rev.Injectables = make([]model.RevisionInjectable, 0, len(injectables))
	for _, injectable := range injectables {
		rev.Injectables = append(rev.Injectables, *injectable)
	}

	return rev, nil
}

// ListVersions returns the revisions of a template by version number.
func (s *RevisionService) ListVersions(ctx context.Context, templateID uuid.UUID) ([]*model.Revision, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, notFound(err, ErrTemplateNotFound)
	}

	return s.store.ListRevisions(ctx, templateID)
}

func (s *RevisionService) get(ctx context.Context, id uuid.UUID) (*model.Revision, error) {
	rev, err := s.store.GetRevision(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrRevisionNotFound)
	}

	return rev, nil
}

// reload reads the committed revision back and announces the transition.
func (s *RevisionService) reload(ctx context.Context, id uuid.UUID, event queue.EventType, actor string) (*model.Revision, error) {
	rev, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event, rev, actor)

	return rev, nil
}

func (s *RevisionService) validatePublish(ctx context.Context, template *model.Template, rev *model.Revision) ([]*model.RevisionInjectable, error) {
	res, err := s.validator.ValidateForPublish(ctx, uuid.MustParse(template.WorkspaceID), uuid.MustParse(rev.ID), rev.ContentStructure)
	if err != nil {
		return nil, fmt.Errorf("validate revision %s: %w", rev.ID, err)
	}
	if !res.Valid {
		return nil, &ContentInvalidError{Result: res}
	}

	return res.ExtractedInjectables, nil
}

// emit publishes after commit. A lost event never undoes a transition.
func (s *RevisionService) emit(ctx context.Context, event queue.EventType, rev *model.Revision, actor string) {
	if s.queue == nil {
		return
	}

	if err := s.queue.Publish(ctx, queue.NewRevisionEvent(event, rev, actor, s.now())); err != nil {
		logrus.WithError(err).Warnf("failed to publish %s for revision %s", event, rev.ID)
	}
}

// replaceInjectables swaps the extracted injectables of a revision.
func replaceInjectables(ctx context.Context, tx store.Store, revisionID uuid.UUID, extracted []*model.RevisionInjectable) error {
	if err := tx.DeleteRevisionInjectablesByVersionID(ctx, revisionID); err != nil {
		return err
	}

	rows := make([]*model.RevisionInjectable, 0, len(extracted))
	for _, e := range extracted {
		rows = append(rows, &model.RevisionInjectable{
			RevisionID:            revisionID.String(),
			WorkspaceInjectableID: e.WorkspaceInjectableID,
			SystemInjectableKey:   e.SystemInjectableKey,
		})
	}

	return tx.CreateRevisionInjectables(ctx, rows)
}

// releaseOrphanedArchive drops the pending archival of the published revision
// once no scheduled revision would replace it in time.
func releaseOrphanedArchive(ctx context.Context, tx store.Store, templateID uuid.UUID, now time.Time) error {
	published, err := tx.FindPublishedByTemplateID(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if published.ScheduledArchiveAt == nil {
		return nil
	}

	ok, err := tx.ExistsScheduledSuccessor(ctx, templateID, uuid.MustParse(published.ID), *published.ScheduledArchiveAt)
	if err != nil || ok {
		return err
	}

	logrus.Infof("clearing pending archive of revision %s: no scheduled successor left", published.ID)

	return tx.UpdateRevision(ctx, uuid.MustParse(published.ID), store.From(model.StatusPublished), store.Changes{
		"scheduled_archive_at": nil,
		"updated_at":           now,
	})
}

func editable(rev *model.Revision, now time.Time) bool {
	switch rev.Status {
	case model.StatusDraft:
		return true
	case model.StatusScheduled:
		return rev.ScheduledPublishAt != nil && rev.ScheduledPublishAt.After(now)
	default:
		return false
	}
}

func contentColumn(raw json.RawMessage) datatypes.JSON {
	if content.IsEmpty(raw) {
		return nil
	}

	return datatypes.JSON(raw)
}

func actorRef(actor string) *string {
	if actor == "" {
		return nil
	}

	return &actor
}

func notFound(err error, sentinel *LifecycleError) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}

	return err
}

// conflict maps lost compare-and-swap races onto lifecycle errors.
func conflict(err error) error {
	switch {
	case errors.Is(err, store.ErrStatusChanged), errors.Is(err, store.ErrDuplicate):
		return lifecycleErr(ErrStatusConflict, "revision was changed concurrently: %v", err)
	case errors.Is(err, store.ErrNotFound):
		return ErrRevisionNotFound
	default:
		return err
	}
}

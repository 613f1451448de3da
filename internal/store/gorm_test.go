package store

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var (
	ctx  = context.Background()
	noon = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func setup(t *testing.T) (*GormStore, *model.Template) {
	t.Helper()

	db := tester.TestDB(t)
	ws := tester.CreateWorkspace(t, db, "acme", "main")
	return NewGormStore(db), tester.CreateTemplate(t, db, ws, "INVOICE")
}

func newRevision(t *testing.T, s *GormStore, tmpl *model.Template, name string, status model.RevisionStatus, publishAt *time.Time) *model.Revision {
	t.Helper()

	n, err := s.NextVersionNumber(ctx, uuid.MustParse(tmpl.ID))
	require.NoError(t, err)

	rev := &model.Revision{
		TemplateID:         tmpl.ID,
		VersionNumber:      n,
		Name:               name,
		Status:             status,
		ScheduledPublishAt: publishAt,
		CreatedAt:          noon,
	}
	require.NoError(t, s.CreateRevision(ctx, rev))

	return rev
}

func at(d time.Duration) *time.Time {
	t := noon.Add(d)
	return &t
}

func TestNextVersionNumber(t *testing.T) {
	s, tmpl := setup(t)

	for want := 1; want <= 3; want++ {
		got, err := s.NextVersionNumber(ctx, uuid.MustParse(tmpl.ID))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := s.NextVersionNumber(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRevision_Guard(t *testing.T) {
	s, tmpl := setup(t)
	rev := newRevision(t, s, tmpl, "v1", model.StatusScheduled, at(time.Hour))
	id := uuid.MustParse(rev.ID)

	err := s.UpdateRevision(ctx, id, From(model.StatusDraft), Changes{"name": "x"})
	assert.ErrorIs(t, err, ErrStatusChanged)

	early := noon.Add(30 * time.Minute)
	err = s.UpdateRevision(ctx, id, Guard{Statuses: []model.RevisionStatus{model.StatusScheduled}, PublishDue: &early},
		Changes{"status": model.StatusPublished})
	assert.ErrorIs(t, err, ErrStatusChanged, "not due yet")

	due := noon.Add(time.Hour)
	err = s.UpdateRevision(ctx, id, Guard{Statuses: []model.RevisionStatus{model.StatusScheduled}, PublishDue: &due},
		Changes{"status": model.StatusPublished, "scheduled_publish_at": nil})
	require.NoError(t, err)

	got, err := s.GetRevision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, got.Status)
	assert.Nil(t, got.ScheduledPublishAt)

	err = s.UpdateRevision(ctx, uuid.New(), From(model.StatusDraft), Changes{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRevision_Unchanged(t *testing.T) {
	s, tmpl := setup(t)
	rev := newRevision(t, s, tmpl, "v1", model.StatusDraft, nil)
	id := uuid.MustParse(rev.ID)

	read, err := s.GetRevision(ctx, id)
	require.NoError(t, err)

	edited := noon.Add(time.Minute)
	require.NoError(t, s.UpdateRevision(ctx, id, From(model.StatusDraft).Unchanged(read), Changes{
		"content_structure": datatypes.JSON(`{"version":"1.0.0"}`),
		"updated_at":        edited,
	}))

	// the first read is stale now
	err = s.UpdateRevision(ctx, id, From(model.StatusDraft).Unchanged(read), Changes{"status": model.StatusPublished})
	assert.ErrorIs(t, err, ErrStatusChanged)

	read, err = s.GetRevision(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.UpdateRevision(ctx, id, From(model.StatusDraft), Changes{
		"content_structure": datatypes.JSON(`{"version":"2.0.0"}`),
	}))
	err = s.UpdateRevision(ctx, id, From(model.StatusDraft).Unchanged(read), Changes{"status": model.StatusPublished})
	assert.ErrorIs(t, err, ErrStatusChanged, "content changed without a new updated_at")

	read, err = s.GetRevision(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.UpdateRevision(ctx, id, From(model.StatusDraft).Unchanged(read), Changes{"status": model.StatusPublished}))
}

func TestDeleteRevision_Guard(t *testing.T) {
	s, tmpl := setup(t)
	rev := newRevision(t, s, tmpl, "v1", model.StatusPublished, nil)
	id := uuid.MustParse(rev.ID)

	err := s.DeleteRevision(ctx, id, []model.RevisionStatus{model.StatusDraft, model.StatusScheduled})
	assert.ErrorIs(t, err, ErrStatusChanged)

	err = s.DeleteRevision(ctx, uuid.New(), []model.RevisionStatus{model.StatusDraft})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartialIndexes(t *testing.T) {
	s, tmpl := setup(t)

	newRevision(t, s, tmpl, "v1", model.StatusPublished, nil)
	second := &model.Revision{TemplateID: tmpl.ID, VersionNumber: 99, Name: "v2", Status: model.StatusPublished}
	assert.ErrorIs(t, s.CreateRevision(ctx, second), ErrDuplicate)

	newRevision(t, s, tmpl, "v3", model.StatusScheduled, at(time.Hour))
	clash := &model.Revision{TemplateID: tmpl.ID, VersionNumber: 100, Name: "v4", Status: model.StatusScheduled, ScheduledPublishAt: at(time.Hour)}
	assert.ErrorIs(t, s.CreateRevision(ctx, clash), ErrDuplicate)

	// a draft keeps its stale instant without clashing
	draft := newRevision(t, s, tmpl, "v5", model.StatusDraft, at(time.Hour))
	assert.NotEmpty(t, draft.ID)
}

func TestExistsRevisionName(t *testing.T) {
	s, tmpl := setup(t)
	rev := newRevision(t, s, tmpl, "Quarterly", model.StatusDraft, nil)
	tmplID := uuid.MustParse(tmpl.ID)

	taken, err := s.ExistsRevisionName(ctx, tmplID, "quarterly", nil)
	require.NoError(t, err)
	assert.True(t, taken)

	self := uuid.MustParse(rev.ID)
	taken, err = s.ExistsRevisionName(ctx, tmplID, "QUARTERLY", &self)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestScheduledQueries(t *testing.T) {
	s, tmpl := setup(t)
	tmplID := uuid.MustParse(tmpl.ID)

	soon := newRevision(t, s, tmpl, "soon", model.StatusScheduled, at(time.Hour))
	newRevision(t, s, tmpl, "later", model.StatusScheduled, at(3*time.Hour))
	live := newRevision(t, s, tmpl, "live", model.StatusPublished, nil)
	require.NoError(t, s.UpdateRevision(ctx, uuid.MustParse(live.ID), From(model.StatusPublished),
		Changes{"scheduled_archive_at": noon.Add(2 * time.Hour)}))

	due, err := s.FindScheduledToPublish(ctx, noon.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)

	archive, err := s.FindScheduledToArchive(ctx, noon.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, archive)
	archive, err = s.FindScheduledToArchive(ctx, noon.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, archive, 1)
	assert.Equal(t, live.ID, archive[0].ID)

	taken, err := s.ExistsScheduledAtTime(ctx, tmplID, noon.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.True(t, taken)
	soonID := uuid.MustParse(soon.ID)
	taken, err = s.ExistsScheduledAtTime(ctx, tmplID, noon.Add(time.Hour), &soonID)
	require.NoError(t, err)
	assert.False(t, taken)

	liveID := uuid.MustParse(live.ID)
	ok, err := s.ExistsScheduledSuccessor(ctx, tmplID, liveID, noon.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.ExistsScheduledSuccessor(ctx, tmplID, liveID, noon.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFindPublishedByDocumentType(t *testing.T) {
	s, tmpl := setup(t)

	_, err := s.FindPublishedByDocumentType(ctx, "acme", "main", "INVOICE")
	assert.ErrorIs(t, err, ErrNotFound)

	live := newRevision(t, s, tmpl, "live", model.StatusPublished, nil)
	key := "current_date"
	require.NoError(t, s.CreateRevisionInjectables(ctx, []*model.RevisionInjectable{
		{RevisionID: live.ID, SystemInjectableKey: &key},
	}))

	got, err := s.FindPublishedByDocumentType(ctx, "acme", "main", "INVOICE")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)
	require.Len(t, got.Injectables, 1)
	assert.Equal(t, "current_date", got.Injectables[0].Key())

	_, err = s.FindPublishedByDocumentType(ctx, "acme", "other", "INVOICE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevisionInjectables_CopyAndDelete(t *testing.T) {
	s, tmpl := setup(t)
	from := newRevision(t, s, tmpl, "from", model.StatusPublished, nil)
	to := newRevision(t, s, tmpl, "to", model.StatusDraft, nil)
	fromID, toID := uuid.MustParse(from.ID), uuid.MustParse(to.ID)

	wsInjectable := uuid.NewString()
	key := "current_date"
	require.NoError(t, s.CreateRevisionInjectables(ctx, []*model.RevisionInjectable{
		{RevisionID: from.ID, SystemInjectableKey: &key},
		{RevisionID: from.ID, WorkspaceInjectableID: &wsInjectable},
	}))

	require.NoError(t, s.CopyRevisionInjectablesFromVersion(ctx, fromID, toID))
	copied, err := s.ListRevisionInjectables(ctx, toID)
	require.NoError(t, err)
	require.Len(t, copied, 2)
	keys := []string{copied[0].Key(), copied[1].Key()}
	assert.ElementsMatch(t, []string{"current_date", wsInjectable}, keys)

	require.NoError(t, s.DeleteRevisionInjectablesByVersionID(ctx, toID))
	left, err := s.ListRevisionInjectables(ctx, toID)
	require.NoError(t, err)
	assert.Empty(t, left)

	original, err := s.ListRevisionInjectables(ctx, fromID)
	require.NoError(t, err)
	assert.Len(t, original, 2)
}

func TestTransaction_RollsBack(t *testing.T) {
	s, tmpl := setup(t)

	err := s.Transaction(ctx, func(tx Store) error {
		rev := &model.Revision{TemplateID: tmpl.ID, VersionNumber: 1, Name: "v1"}
		if err := tx.CreateRevision(ctx, rev); err != nil {
			return err
		}
		return ErrStatusChanged
	})
	assert.ErrorIs(t, err, ErrStatusChanged)

	revs, err := s.ListRevisions(ctx, uuid.MustParse(tmpl.ID))
	require.NoError(t, err)
	assert.Empty(t, revs)
}

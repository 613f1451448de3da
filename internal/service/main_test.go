package service

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/template/internal/injectable"
	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/queue"
	"github.com/emrgen/template/internal/store"
	"github.com/emrgen/template/internal/tester"
	"github.com/emrgen/template/internal/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	store     *store.GormStore
	queue     *queue.MemoryQueue
	service   *RevisionService
	workspace *model.Workspace
	template  *model.Template
	now       time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := tester.TestDB(t)
	f := &fixture{
		db:    db,
		store: store.NewGormStore(db),
		queue: queue.NewMemoryQueue(),
		now:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.workspace = tester.CreateWorkspace(t, db, "acme", "main")
	f.template = tester.CreateTemplate(t, db, f.workspace, "INVOICE")
	tester.CreateInjectable(t, db, f.workspace, "name")
	tester.CreateInjectable(t, db, nil, "current_date")

	v := validator.New(injectable.NewRegistry(f.store), validator.Options{})
	f.service = NewRevisionService(f.store, v, f.queue).WithClock(func() time.Time { return f.now })

	return f
}

func (f *fixture) templateID() uuid.UUID {
	return uuid.MustParse(f.template.ID)
}

func (f *fixture) create(t *testing.T, name string, body []byte) *model.Revision {
	t.Helper()

	rev, err := f.service.CreateVersion(context.Background(), &CreateVersionRequest{
		TemplateID: f.templateID(),
		Name:       name,
		Content:    body,
		Actor:      "alice",
	})
	require.NoError(t, err)

	return rev
}

func (f *fixture) reload(t *testing.T, rev *model.Revision) *model.Revision {
	t.Helper()

	got, err := f.store.GetRevision(context.Background(), uuid.MustParse(rev.ID))
	require.NoError(t, err)

	return got
}

func (f *fixture) publishedCount(t *testing.T) int64 {
	t.Helper()

	var count int64
	require.NoError(t, f.db.Model(&model.Revision{}).
		Where("template_id = ? AND status = ?", f.template.ID, model.StatusPublished).
		Count(&count).Error)

	return count
}

func id(rev *model.Revision) uuid.UUID {
	return uuid.MustParse(rev.ID)
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/template/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateWorkspace(ctx context.Context, workspace *model.Workspace) error {
	return translate(g.db.WithContext(ctx).Create(workspace).Error)
}

func (g *GormStore) GetWorkspace(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	var workspace model.Workspace
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&workspace).Error
	if err != nil {
		return nil, translate(err)
	}

	return &workspace, nil
}

func (g *GormStore) CreateTemplate(ctx context.Context, template *model.Template) error {
	return translate(g.db.WithContext(ctx).Omit(clause.Associations).Create(template).Error)
}

func (g *GormStore) GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	var template model.Template
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&template).Error
	if err != nil {
		return nil, translate(err)
	}

	return &template, nil
}

// NextVersionNumber relies on the row lock taken by the UPDATE to serialize
// concurrent creators of the same template.
func (g *GormStore) NextVersionNumber(ctx context.Context, templateID uuid.UUID) (int, error) {
	res := g.db.WithContext(ctx).Model(&model.Template{}).
		Where("id = ?", templateID.String()).
		UpdateColumn("last_version_number", gorm.Expr("last_version_number + 1"))
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var next int
	err := g.db.WithContext(ctx).Model(&model.Template{}).
		Where("id = ?", templateID.String()).
		Pluck("last_version_number", &next).Error
	if err != nil {
		return 0, err
	}

	return next, nil
}

func (g *GormStore) CreateRevision(ctx context.Context, revision *model.Revision) error {
	return translate(g.db.WithContext(ctx).Omit(clause.Associations).Create(revision).Error)
}

func (g *GormStore) GetRevision(ctx context.Context, id uuid.UUID) (*model.Revision, error) {
	var revision model.Revision
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&revision).Error
	if err != nil {
		return nil, translate(err)
	}

	return &revision, nil
}

func (g *GormStore) ListRevisions(ctx context.Context, templateID uuid.UUID) ([]*model.Revision, error) {
	var revisions []*model.Revision
	err := g.db.WithContext(ctx).
		Where("template_id = ?", templateID.String()).
		Order("version_number asc").
		Find(&revisions).Error

	return revisions, err
}

func (g *GormStore) UpdateRevision(ctx context.Context, id uuid.UUID, guard Guard, changes Changes) error {
	query := g.db.WithContext(ctx).Model(&model.Revision{}).
		Where("id = ? AND status IN ?", id.String(), guard.Statuses)
	if guard.PublishDue != nil {
		query = query.Where("scheduled_publish_at IS NOT NULL AND scheduled_publish_at <= ?", guard.PublishDue.UTC())
	}
	if guard.ArchiveDue != nil {
		query = query.Where("scheduled_archive_at IS NOT NULL AND scheduled_archive_at <= ?", guard.ArchiveDue.UTC())
	}
	if snap := guard.Snapshot; snap != nil {
		if snap.UpdatedAt == nil {
			query = query.Where("updated_at IS NULL")
		} else {
			query = query.Where("updated_at = ?", snap.UpdatedAt.UTC())
		}
		if snap.HasContent() {
			query = query.Where("content_structure = ?", string(snap.ContentStructure))
		} else {
			query = query.Where("content_structure IS NULL")
		}
	}

	res := query.Updates(map[string]any(changes))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return g.missOrConflict(ctx, id)
	}

	return nil
}

func (g *GormStore) DeleteRevision(ctx context.Context, id uuid.UUID, from []model.RevisionStatus) error {
	res := g.db.WithContext(ctx).
		Where("id = ? AND status IN ?", id.String(), from).
		Delete(&model.Revision{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return g.missOrConflict(ctx, id)
	}

	return nil
}

// missOrConflict explains a guarded write that touched no rows.
func (g *GormStore) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Revision{}).Where("id = ?", id.String()).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	return ErrStatusChanged
}

func (g *GormStore) ExistsRevisionName(ctx context.Context, templateID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error) {
	query := g.db.WithContext(ctx).Model(&model.Revision{}).
		Where("template_id = ? AND LOWER(name) = LOWER(?)", templateID.String(), name)
	if excludeID != nil {
		query = query.Where("id <> ?", excludeID.String())
	}

	var count int64
	err := query.Count(&count).Error

	return count > 0, err
}

func (g *GormStore) FindPublishedByTemplateID(ctx context.Context, templateID uuid.UUID) (*model.Revision, error) {
	var revision model.Revision
	err := g.db.WithContext(ctx).
		Where("template_id = ? AND status = ?", templateID.String(), model.StatusPublished).
		Take(&revision).Error
	if err != nil {
		return nil, translate(err)
	}

	return &revision, nil
}

func (g *GormStore) FindPublishedByDocumentType(ctx context.Context, tenantCode, workspaceCode, documentTypeCode string) (*model.Revision, error) {
	var revision model.Revision
	err := g.db.WithContext(ctx).
		Select("revisions.*").
		Preload("Injectables").
		Joins("JOIN templates ON templates.id = revisions.template_id").
		Joins("JOIN workspaces ON workspaces.id = templates.workspace_id").
		Where("workspaces.tenant_code = ? AND workspaces.code = ?", tenantCode, workspaceCode).
		Where("templates.document_type_code = ? AND revisions.status = ?", documentTypeCode, model.StatusPublished).
		Order("revisions.published_at desc").
		Take(&revision).Error
	if err != nil {
		return nil, translate(err)
	}

	return &revision, nil
}

func (g *GormStore) FindScheduledToPublish(ctx context.Context, now time.Time) ([]*model.Revision, error) {
	var revisions []*model.Revision
	err := g.db.WithContext(ctx).
		Where("status = ? AND scheduled_publish_at <= ?", model.StatusScheduled, now.UTC()).
		Order("scheduled_publish_at asc").
		Find(&revisions).Error

	return revisions, err
}

func (g *GormStore) FindScheduledToArchive(ctx context.Context, now time.Time) ([]*model.Revision, error) {
	var revisions []*model.Revision
	err := g.db.WithContext(ctx).
		Where("status = ? AND scheduled_archive_at IS NOT NULL AND scheduled_archive_at <= ?", model.StatusPublished, now.UTC()).
		Order("scheduled_archive_at asc").
		Find(&revisions).Error

	return revisions, err
}

func (g *GormStore) ExistsScheduledAtTime(ctx context.Context, templateID uuid.UUID, at time.Time, excludeID *uuid.UUID) (bool, error) {
	query := g.db.WithContext(ctx).Model(&model.Revision{}).
		Where("template_id = ? AND status = ? AND scheduled_publish_at = ?", templateID.String(), model.StatusScheduled, at.UTC())
	if excludeID != nil {
		query = query.Where("id <> ?", excludeID.String())
	}

	var count int64
	err := query.Count(&count).Error

	return count > 0, err
}

func (g *GormStore) ExistsScheduledSuccessor(ctx context.Context, templateID, excludeID uuid.UUID, notAfter time.Time) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Revision{}).
		Where("template_id = ? AND status = ? AND id <> ?", templateID.String(), model.StatusScheduled, excludeID.String()).
		Where("scheduled_publish_at <= ?", notAfter.UTC()).
		Count(&count).Error

	return count > 0, err
}

func (g *GormStore) CreateRevisionInjectables(ctx context.Context, injectables []*model.RevisionInjectable) error {
	if len(injectables) == 0 {
		return nil
	}

	return translate(g.db.WithContext(ctx).Create(&injectables).Error)
}

func (g *GormStore) ListRevisionInjectables(ctx context.Context, revisionID uuid.UUID) ([]*model.RevisionInjectable, error) {
	var injectables []*model.RevisionInjectable
	err := g.db.WithContext(ctx).
		Where("revision_id = ?", revisionID.String()).
		Order("created_at asc").
		Find(&injectables).Error

	return injectables, err
}

func (g *GormStore) DeleteRevisionInjectablesByVersionID(ctx context.Context, revisionID uuid.UUID) error {
	return g.db.WithContext(ctx).
		Where("revision_id = ?", revisionID.String()).
		Delete(&model.RevisionInjectable{}).Error
}

func (g *GormStore) CopyRevisionInjectablesFromVersion(ctx context.Context, fromID, toID uuid.UUID) error {
	source, err := g.ListRevisionInjectables(ctx, fromID)
	if err != nil {
		return err
	}

	copies := make([]*model.RevisionInjectable, 0, len(source))
	for _, injectable := range source {
		copies = append(copies, &model.RevisionInjectable{
			RevisionID:            toID.String(),
			WorkspaceInjectableID: injectable.WorkspaceInjectableID,
			SystemInjectableKey:   injectable.SystemInjectableKey,
		})
	}

	return g.CreateRevisionInjectables(ctx, copies)
}

func (g *GormStore) CreateInjectable(ctx context.Context, injectable *model.Injectable) error {
	return translate(g.db.WithContext(ctx).Create(injectable).Error)
}

func (g *GormStore) ListAccessibleInjectables(ctx context.Context, workspaceID uuid.UUID) ([]*model.Injectable, error) {
	var injectables []*model.Injectable
	err := g.db.WithContext(ctx).
		Where("workspace_id IS NULL OR workspace_id = ?", workspaceID.String()).
		Order("key asc").
		Find(&injectables).Error

	return injectables, err
}

func (g *GormStore) SaveMembership(ctx context.Context, membership *model.Membership) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "scope_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(membership).Error
}

func (g *GormStore) GetMembership(ctx context.Context, scope model.MembershipScope, scopeID, userID string) (*model.Membership, error) {
	var membership model.Membership
	err := g.db.WithContext(ctx).
		Where("scope = ? AND scope_id = ? AND user_id = ?", scope, scopeID, userID).
		Take(&membership).Error
	if err != nil {
		return nil, translate(err)
	}

	return &membership, nil
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(NewGormStore(tx))
	})
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

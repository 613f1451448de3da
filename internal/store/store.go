package store

import (
	"context"
	"time"

	"github.com/emrgen/template/internal/model"
	"github.com/google/uuid"
)

// Changes maps column names to new values for a guarded revision update.
type Changes map[string]any

// Guard is the precondition of a revision write. The write only happens while
// the revision is in one of Statuses and, when set, its scheduled publish or
// archive instant is not after PublishDue or ArchiveDue.
type Guard struct {
	Statuses   []model.RevisionStatus
	PublishDue *time.Time
	ArchiveDue *time.Time
	// Snapshot pins the content and updated_at the caller read.
	Snapshot *model.Revision
}

// From guards on the current status only.
func From(statuses ...model.RevisionStatus) Guard {
	return Guard{Statuses: statuses}
}

// Unchanged additionally requires the revision to still hold the content of rev.
func (g Guard) Unchanged(rev *model.Revision) Guard {
	g.Snapshot = rev
	return g
}

type Store interface {
	TemplateStore
	RevisionStore
	RevisionInjectableStore
	InjectableStore
	MembershipStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type TemplateStore interface {
	// CreateWorkspace creates a new workspace.
	CreateWorkspace(ctx context.Context, workspace *model.Workspace) error
	// GetWorkspace retrieves a workspace by ID.
	GetWorkspace(ctx context.Context, id uuid.UUID) (*model.Workspace, error)
	// CreateTemplate creates a new template.
	CreateTemplate(ctx context.Context, template *model.Template) error
	// GetTemplate retrieves a template by ID.
	GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error)
	// NextVersionNumber bumps the template's version counter and returns the new value.
	NextVersionNumber(ctx context.Context, templateID uuid.UUID) (int, error)
}

type RevisionStore interface {
	// CreateRevision creates a new revision.
	CreateRevision(ctx context.Context, revision *model.Revision) error
	// GetRevision retrieves a revision by ID.
	GetRevision(ctx context.Context, id uuid.UUID) (*model.Revision, error)
	// ListRevisions retrieves the revisions of a template ordered by version number.
	ListRevisions(ctx context.Context, templateID uuid.UUID) ([]*model.Revision, error)
	// UpdateRevision applies changes only if the guard holds.
	// It returns ErrStatusChanged when the revision exists but the guard does not hold.
	UpdateRevision(ctx context.Context, id uuid.UUID, guard Guard, changes Changes) error
	// DeleteRevision deletes a revision only if it is in one of the from statuses.
	DeleteRevision(ctx context.Context, id uuid.UUID, from []model.RevisionStatus) error
	// ExistsRevisionName checks, case-insensitively, whether a template already has a revision named name.
	ExistsRevisionName(ctx context.Context, templateID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error)
	// FindPublishedByTemplateID retrieves the published revision of a template.
	FindPublishedByTemplateID(ctx context.Context, templateID uuid.UUID) (*model.Revision, error)
	// FindPublishedByDocumentType resolves the published revision for a tenant/workspace/document type, with its injectables.
	FindPublishedByDocumentType(ctx context.Context, tenantCode, workspaceCode, documentTypeCode string) (*model.Revision, error)
	// FindScheduledToPublish retrieves scheduled revisions whose publish instant is not after now.
	FindScheduledToPublish(ctx context.Context, now time.Time) ([]*model.Revision, error)
	// FindScheduledToArchive retrieves published revisions whose archive instant is not after now.
	FindScheduledToArchive(ctx context.Context, now time.Time) ([]*model.Revision, error)
	// ExistsScheduledAtTime checks whether another revision of the template is scheduled to publish at exactly at.
	ExistsScheduledAtTime(ctx context.Context, templateID uuid.UUID, at time.Time, excludeID *uuid.UUID) (bool, error)
	// ExistsScheduledSuccessor checks whether another revision of the template is scheduled to publish no later than notAfter.
	ExistsScheduledSuccessor(ctx context.Context, templateID, excludeID uuid.UUID, notAfter time.Time) (bool, error)
}

type RevisionInjectableStore interface {
	// CreateRevisionInjectables inserts extracted injectables.
	CreateRevisionInjectables(ctx context.Context, injectables []*model.RevisionInjectable) error
	// ListRevisionInjectables retrieves the injectables of a revision.
	ListRevisionInjectables(ctx context.Context, revisionID uuid.UUID) ([]*model.RevisionInjectable, error)
	// DeleteRevisionInjectablesByVersionID removes every injectable of a revision.
	DeleteRevisionInjectablesByVersionID(ctx context.Context, revisionID uuid.UUID) error
	// CopyRevisionInjectablesFromVersion copies the injectables of one revision onto another.
	CopyRevisionInjectablesFromVersion(ctx context.Context, fromID, toID uuid.UUID) error
}

type InjectableStore interface {
	// CreateInjectable creates a system or workspace injectable definition.
	CreateInjectable(ctx context.Context, injectable *model.Injectable) error
	// ListAccessibleInjectables retrieves system injectables plus those of the workspace.
	ListAccessibleInjectables(ctx context.Context, workspaceID uuid.UUID) ([]*model.Injectable, error)
}

type MembershipStore interface {
	// SaveMembership creates or replaces a membership.
	SaveMembership(ctx context.Context, membership *model.Membership) error
	// GetMembership retrieves a user's membership in a scope.
	GetMembership(ctx context.Context, scope model.MembershipScope, scopeID, userID string) (*model.Membership, error)
}

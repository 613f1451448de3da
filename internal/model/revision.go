package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RevisionStatus is the lifecycle state of a revision.
type RevisionStatus string

const (
	StatusDraft     RevisionStatus = "DRAFT"
	StatusScheduled RevisionStatus = "SCHEDULED"
	StatusPublished RevisionStatus = "PUBLISHED"
	StatusArchived  RevisionStatus = "ARCHIVED"
)

// Revision is one versioned content state of a template.
type Revision struct {
	ID                 string         `gorm:"primaryKey;type:uuid;not null" json:"id"`
	TemplateID         string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_revisions_template_version" json:"templateId"`
	VersionNumber      int            `gorm:"not null;uniqueIndex:idx_revisions_template_version" json:"versionNumber"`
	Name               string         `gorm:"not null;size:255" json:"name"`
	Description        *string        `json:"description,omitempty"`
	ContentStructure   datatypes.JSON `json:"contentStructure,omitempty"`
	Status             RevisionStatus `gorm:"not null;size:16;index" json:"status"`
	ScheduledPublishAt *time.Time     `gorm:"index" json:"scheduledPublishAt,omitempty"`
	ScheduledArchiveAt *time.Time     `gorm:"index" json:"scheduledArchiveAt,omitempty"`
	PublishedAt        *time.Time     `json:"publishedAt,omitempty"`
	PublishedBy        *string        `json:"publishedBy,omitempty"`
	ArchivedAt         *time.Time     `json:"archivedAt,omitempty"`
	ArchivedBy         *string        `json:"archivedBy,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	CreatedBy          *string        `json:"createdBy,omitempty"`
	UpdatedAt          *time.Time     `gorm:"autoUpdateTime:false" json:"updatedAt,omitempty"`

	Injectables []RevisionInjectable `gorm:"foreignKey:RevisionID;constraint:OnDelete:CASCADE" json:"injectables,omitempty"`
}

func (Revision) TableName() string {
	return "revisions"
}

func (r *Revision) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusDraft
	}

	return nil
}

// HasContent reports whether the revision carries a document body.
func (r *Revision) HasContent() bool {
	return len(r.ContentStructure) > 0 && string(r.ContentStructure) != "null"
}

func (r *Revision) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}

// Clone returns a copy that shares no memory with r.
func (r *Revision) Clone() *Revision {
	if r == nil {
		return nil
	}

	c := *r
	c.Description = clonePtr(r.Description)
	c.ScheduledPublishAt = clonePtr(r.ScheduledPublishAt)
	c.ScheduledArchiveAt = clonePtr(r.ScheduledArchiveAt)
	c.PublishedAt = clonePtr(r.PublishedAt)
	c.PublishedBy = clonePtr(r.PublishedBy)
	c.ArchivedAt = clonePtr(r.ArchivedAt)
	c.ArchivedBy = clonePtr(r.ArchivedBy)
	c.CreatedBy = clonePtr(r.CreatedBy)
	c.UpdatedAt = clonePtr(r.UpdatedAt)
	if r.ContentStructure != nil {
		c.ContentStructure = append(datatypes.JSON(nil), r.ContentStructure...)
	}
	if r.Injectables != nil {
		c.Injectables = make([]RevisionInjectable, len(r.Injectables))
		for i, injectable := range r.Injectables {
			injectable.WorkspaceInjectableID = clonePtr(injectable.WorkspaceInjectableID)
			injectable.SystemInjectableKey = clonePtr(injectable.SystemInjectableKey)
			c.Injectables[i] = injectable
		}
	}

	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p
	return &v
}

// RevisionInjectable records an injectable a revision uses. Rows are produced by
// publish-time extraction only.
type RevisionInjectable struct {
	ID                    string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	RevisionID            string    `gorm:"type:uuid;not null;index" json:"revisionId"`
	WorkspaceInjectableID *string   `gorm:"type:uuid" json:"workspaceInjectableId,omitempty"`
	SystemInjectableKey   *string   `gorm:"size:128" json:"systemInjectableKey,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
}

func (RevisionInjectable) TableName() string {
	return "revision_injectables"
}

func (r *RevisionInjectable) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	return nil
}

// Key returns the system key or the workspace injectable id, whichever is set.
func (r *RevisionInjectable) Key() string {
	if r.SystemInjectableKey != nil {
		return *r.SystemInjectableKey
	}
	if r.WorkspaceInjectableID != nil {
		return *r.WorkspaceInjectableID
	}

	return ""
}

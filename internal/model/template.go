package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workspace carries only what template resolution needs.
type Workspace struct {
	ID         string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	TenantCode string    `gorm:"not null;size:64;uniqueIndex:idx_workspaces_tenant_code" json:"tenantCode"`
	Code       string    `gorm:"not null;size:64;uniqueIndex:idx_workspaces_tenant_code" json:"code"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}

	return nil
}

// Template owns its revisions. LastVersionNumber only ever grows so that version
// numbers are never handed out twice, even after revisions are deleted.
type Template struct {
	ID                string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	WorkspaceID       string     `gorm:"type:uuid;not null;index" json:"workspaceId"`
	Workspace         *Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
	DocumentTypeCode  *string    `gorm:"size:64;index" json:"documentTypeCode,omitempty"`
	Title             string     `gorm:"not null;size:255" json:"title"`
	LastVersionNumber int        `gorm:"not null;default:0" json:"lastVersionNumber"`
	CreatedAt         time.Time  `json:"createdAt"`
	CreatedBy         *string    `json:"createdBy,omitempty"`

	Revisions []Revision `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Template) TableName() string {
	return "templates"
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	return nil
}

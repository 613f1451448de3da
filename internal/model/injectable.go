package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Injectable is a variable definition a document may reference. Rows without a
// workspace are system injectables addressed by their well-known key.
type Injectable struct {
	ID          string            `gorm:"primaryKey;type:uuid;not null" json:"id"`
	WorkspaceID *string           `gorm:"type:uuid;index;uniqueIndex:idx_injectables_workspace_key" json:"workspaceId,omitempty"`
	Key         string            `gorm:"not null;size:128;uniqueIndex:idx_injectables_workspace_key" json:"key"`
	DataType    string            `gorm:"not null;size:32" json:"dataType"`
	SourceType  string            `gorm:"not null;size:32" json:"sourceType"`
	Labels      datatypes.JSONMap `json:"labels,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func (Injectable) TableName() string {
	return "injectables"
}

func (i *Injectable) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}

	return nil
}

// IsGlobal reports whether the injectable is system-provided.
func (i *Injectable) IsGlobal() bool {
	return i.WorkspaceID == nil
}

// Label returns the label for locale, falling back to the key.
func (i *Injectable) Label(locale string) string {
	if label, ok := i.Labels[locale].(string); ok && label != "" {
		return label
	}

	return i.Key
}

package model

import "time"

type MembershipScope string

const (
	ScopeTenant    MembershipScope = "tenant"
	ScopeWorkspace MembershipScope = "workspace"
)

// Membership grants a user a role within a tenant or a workspace.
type Membership struct {
	Scope     MembershipScope `gorm:"primaryKey;size:16" json:"scope"`
	ScopeID   string          `gorm:"primaryKey;size:64" json:"scopeId"`
	UserID    string          `gorm:"primaryKey;size:128" json:"userId"`
	Role      string          `gorm:"not null;size:32" json:"role"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (Membership) TableName() string {
	return "memberships"
}

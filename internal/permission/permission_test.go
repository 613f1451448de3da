package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/store"
	"github.com/emrgen/template/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Can(t *testing.T) {
	tests := []struct {
		role    Role
		view    bool
		edit    bool
		publish bool
	}{
		{RoleNone, false, false, false},
		{RoleViewer, true, false, false},
		{RoleEditor, true, true, false},
		{RolePublisher, true, true, true},
		{RoleOwner, true, true, true},
		{RoleAdmin, true, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.view, tt.role.Can(CapabilityView))
			assert.Equal(t, tt.edit, tt.role.Can(CapabilityEdit))
			assert.Equal(t, tt.publish, tt.role.Can(CapabilityPublish))
		})
	}
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleEditor, ParseRole(" editor "))
	assert.Equal(t, RoleNone, ParseRole("janitor"))
}

func TestChain_FirstDecisionWins(t *testing.T) {
	var asked []string
	probe := func(name string, role Role, decided bool) Provider {
		return ProviderFunc(func(context.Context, Subject) (Role, bool, error) {
			asked = append(asked, name)
			return role, decided, nil
		})
	}

	chain := Chain{probe("a", RoleAdmin, false), probe("b", RoleViewer, true), probe("c", RoleAdmin, true)}
	role, err := chain.Resolve(context.Background(), Subject{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, role)
	assert.Equal(t, []string{"a", "b"}, asked)

	role, err = Chain{probe("d", RoleAdmin, false)}.Resolve(context.Background(), Subject{})
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)
}

func TestChain_ErrorStops(t *testing.T) {
	boom := ProviderFunc(func(context.Context, Subject) (Role, bool, error) {
		return RoleNone, false, errors.New("boom")
	})

	gate := NewGate(boom, Static(RoleAdmin))
	err := gate.Require(context.Background(), Subject{UserID: "u"}, CapabilityView)
	assert.ErrorContains(t, err, "boom")
	assert.NotErrorIs(t, err, ErrForbidden)
}

func TestGate_Memberships(t *testing.T) {
	db := tester.TestDB(t)
	s := store.NewGormStore(db)
	ctx := context.Background()
	ws := tester.CreateWorkspace(t, db, "acme", "main")

	require.NoError(t, s.SaveMembership(ctx, &model.Membership{Scope: model.ScopeTenant, ScopeID: "acme", UserID: "olga", Role: "OWNER"}))
	require.NoError(t, s.SaveMembership(ctx, &model.Membership{Scope: model.ScopeTenant, ScopeID: "acme", UserID: "tim", Role: "VIEWER"}))
	require.NoError(t, s.SaveMembership(ctx, &model.Membership{Scope: model.ScopeWorkspace, ScopeID: ws.ID, UserID: "tim", Role: "EDITOR"}))
	require.NoError(t, s.SaveMembership(ctx, &model.Membership{Scope: model.ScopeWorkspace, ScopeID: ws.ID, UserID: "vic", Role: "VIEWER"}))

	gate := Default(s, "root")
	subject := func(user string) Subject {
		return Subject{UserID: user, TenantCode: "acme", WorkspaceID: ws.ID}
	}

	tests := []struct {
		user       string
		capability Capability
		allowed    bool
	}{
		{"root", CapabilityPublish, true},
		{"olga", CapabilityPublish, true},
		{"tim", CapabilityEdit, true},
		{"tim", CapabilityPublish, false},
		{"vic", CapabilityView, true},
		{"vic", CapabilityEdit, false},
		{"stranger", CapabilityView, false},
	}

	for _, tt := range tests {
		t.Run(tt.user+"/"+string(tt.capability), func(t *testing.T) {
			err := gate.Require(ctx, subject(tt.user), tt.capability)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestGate_MembershipUpsert(t *testing.T) {
	db := tester.TestDB(t)
	s := store.NewGormStore(db)
	ctx := context.Background()
	ws := tester.CreateWorkspace(t, db, "acme", "main")

	m := &model.Membership{Scope: model.ScopeWorkspace, ScopeID: ws.ID, UserID: "tim", Role: "VIEWER"}
	require.NoError(t, s.SaveMembership(ctx, m))
	m = &model.Membership{Scope: model.ScopeWorkspace, ScopeID: ws.ID, UserID: "tim", Role: "PUBLISHER"}
	require.NoError(t, s.SaveMembership(ctx, m))

	gate := NewGate(WorkspaceMember(s))
	assert.NoError(t, gate.Require(ctx, Subject{UserID: "tim", WorkspaceID: ws.ID}, CapabilityPublish))
}

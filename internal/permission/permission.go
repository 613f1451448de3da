package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/store"
	"github.com/sirupsen/logrus"
)

var ErrForbidden = errors.New("permission denied")

type Capability string

const (
	CapabilityView    Capability = "view"
	CapabilityEdit    Capability = "edit"
	CapabilityPublish Capability = "publish"
)

type Role string

const (
	RoleNone      Role = ""
	RoleViewer    Role = "VIEWER"
	RoleEditor    Role = "EDITOR"
	RolePublisher Role = "PUBLISHER"
	RoleOwner     Role = "OWNER"
	RoleAdmin     Role = "ADMIN"
)

var grants = map[Role][]Capability{
	RoleViewer:    {CapabilityView},
	RoleEditor:    {CapabilityView, CapabilityEdit},
	RolePublisher: {CapabilityView, CapabilityEdit, CapabilityPublish},
	RoleOwner:     {CapabilityView, CapabilityEdit, CapabilityPublish},
	RoleAdmin:     {CapabilityView, CapabilityEdit, CapabilityPublish},
}

// ParseRole accepts any casing. Unknown names map to RoleNone.
func ParseRole(name string) Role {
	role := Role(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := grants[role]; !ok {
		return RoleNone
	}
	return role
}

func (r Role) Can(capability Capability) bool {
	for _, c := range grants[r] {
		if c == capability {
			return true
		}
	}
	return false
}

// Subject is the caller and the workspace it acts on.
type Subject struct {
	UserID      string
	TenantCode  string
	WorkspaceID string
}

// Provider resolves a role for the subject. When decided is false the next
// provider in the chain is asked.
type Provider interface {
	Role(ctx context.Context, subject Subject) (role Role, decided bool, err error)
}

type ProviderFunc func(ctx context.Context, subject Subject) (Role, bool, error)

func (f ProviderFunc) Role(ctx context.Context, subject Subject) (Role, bool, error) {
	return f(ctx, subject)
}

// Chain asks providers in order; the first decision wins.
type Chain []Provider

func (c Chain) Resolve(ctx context.Context, subject Subject) (Role, error) {
	for _, p := range c {
		role, decided, err := p.Role(ctx, subject)
		if err != nil {
			return RoleNone, err
		}
		if decided {
			return role, nil
		}
	}

	return RoleNone, nil
}

// Gate answers capability checks for the lifecycle callers.
type Gate struct {
	chain Chain
}

func NewGate(providers ...Provider) *Gate {
	return &Gate{chain: providers}
}

// Require returns an error wrapping ErrForbidden when the subject lacks the capability.
func (g *Gate) Require(ctx context.Context, subject Subject, capability Capability) error {
	role, err := g.chain.Resolve(ctx, subject)
	if err != nil {
		return fmt.Errorf("resolve role: %w", err)
	}

	if !role.Can(capability) {
		logrus.WithFields(logrus.Fields{
			"user":       subject.UserID,
			"workspace":  subject.WorkspaceID,
			"capability": capability,
		}).Warn("permission denied")
		return fmt.Errorf("%w: %q cannot %s", ErrForbidden, subject.UserID, capability)
	}

	return nil
}

// Static decides role for every subject.
func Static(role Role) Provider {
	return ProviderFunc(func(context.Context, Subject) (Role, bool, error) {
		return role, true, nil
	})
}

// SystemAdmins decides RoleAdmin for the listed users.
func SystemAdmins(userIDs ...string) Provider {
	admins := mapset.NewSet[string]()
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins.Add(id)
		}
	}

	return ProviderFunc(func(_ context.Context, subject Subject) (Role, bool, error) {
		if admins.Contains(subject.UserID) {
			return RoleAdmin, true, nil
		}
		return RoleNone, false, nil
	})
}

// TenantOwner decides RoleOwner for owners of the subject's tenant.
func TenantOwner(memberships store.MembershipStore) Provider {
	return ProviderFunc(func(ctx context.Context, subject Subject) (Role, bool, error) {
		if subject.TenantCode == "" {
			return RoleNone, false, nil
		}

		m, err := memberships.GetMembership(ctx, model.ScopeTenant, subject.TenantCode, subject.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return RoleNone, false, nil
		}
		if err != nil {
			return RoleNone, false, err
		}
		if ParseRole(m.Role) != RoleOwner {
			return RoleNone, false, nil
		}

		return RoleOwner, true, nil
	})
}

// WorkspaceMember decides the member's role within the subject's workspace.
func WorkspaceMember(memberships store.MembershipStore) Provider {
	return ProviderFunc(func(ctx context.Context, subject Subject) (Role, bool, error) {
		if subject.WorkspaceID == "" {
			return RoleNone, false, nil
		}

		m, err := memberships.GetMembership(ctx, model.ScopeWorkspace, subject.WorkspaceID, subject.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return RoleNone, false, nil
		}
		if err != nil {
			return RoleNone, false, err
		}

		return ParseRole(m.Role), true, nil
	})
}

// Default is the system, tenant owner, workspace member chain.
func Default(memberships store.MembershipStore, admins ...string) *Gate {
	return NewGate(SystemAdmins(admins...), TenantOwner(memberships), WorkspaceMember(memberships))
}

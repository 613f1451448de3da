package cmd

import (
	"context"
	"os"

	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/permission"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "workspace commands",
}

func init() {
	workspaceCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	workspaceCmd.AddCommand(createWorkspaceCmd())
	workspaceCmd.AddCommand(addMemberCmd())
}

func createWorkspaceCmd() *cobra.Command {
	var tenant string
	var code string

	var required = []string{"tenant", "code"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a workspace",
		Example: "tmpl workspace create --tenant acme --code main",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			a := newApp()
			defer a.close()

			ws := &model.Workspace{TenantCode: tenant, Code: code}
			if err := a.store.CreateWorkspace(context.Background(), ws); err != nil {
				report(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Tenant", "Code"})
			table.Append([]string{ws.ID, ws.TenantCode, ws.Code})
			table.Render()
		},
	}

	command.Flags().StringVar(&tenant, "tenant", "", "tenant code (required)")
	command.Flags().StringVar(&code, "code", "", "workspace code (required)")

	command.Flags().SortFlags = false

	return command
}

func addMemberCmd() *cobra.Command {
	var workspaceID string
	var member string
	var role string

	var required = []string{"workspace-id", "member", "role"}

	command := &cobra.Command{
		Use:     "member",
		Short:   "grant a user a role in a workspace",
		Example: "tmpl workspace member -w <workspace-id> --member bob --role EDITOR",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			wsID, ok := parseID("workspace id", workspaceID)
			if !ok {
				return
			}
			parsed := permission.ParseRole(role)
			if parsed == permission.RoleNone {
				color.Red("unknown role %q", role)
				return
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireWorkspace(ctx, user, wsID, permission.CapabilityPublish); err != nil {
				report(err)
				return
			}

			err := a.store.SaveMembership(ctx, &model.Membership{
				Scope:   model.ScopeWorkspace,
				ScopeID: wsID.String(),
				UserID:  member,
				Role:    string(parsed),
			})
			if err != nil {
				report(err)
				return
			}

			color.Green("%s is %s in %s", member, parsed, wsID)
		},
	}

	command.Flags().StringVarP(&workspaceID, "workspace-id", "w", "", "workspace id (required)")
	command.Flags().StringVar(&member, "member", "", "user to grant (required)")
	command.Flags().StringVar(&role, "role", "", "VIEWER, EDITOR or PUBLISHER (required)")

	command.Flags().SortFlags = false

	return command
}

package cmd

import (
	"context"
	"os"

	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/permission"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "template commands",
}

func init() {
	templateCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	templateCmd.AddCommand(createTemplateCmd())
}

func createTemplateCmd() *cobra.Command {
	var workspaceID string
	var docType string
	var title string

	var required = []string{"workspace-id", "title"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a template",
		Example: "tmpl template create -w <workspace-id> --doc-type INVOICE --title Invoice",
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

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireWorkspace(ctx, user, wsID, permission.CapabilityEdit); err != nil {
				report(err)
				return
			}

			tmpl := &model.Template{WorkspaceID: wsID.String(), Title: title, CreatedBy: &user}
			if docType != "" {
				tmpl.DocumentTypeCode = &docType
			}
			if err := a.store.CreateTemplate(ctx, tmpl); err != nil {
				report(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Title", "Document Type"})
			table.Append([]string{tmpl.ID, tmpl.Title, docType})
			table.Render()
		},
	}

	command.Flags().StringVarP(&workspaceID, "workspace-id", "w", "", "workspace id (required)")
	command.Flags().StringVar(&docType, "doc-type", "", "document type code the template renders")
	command.Flags().StringVar(&title, "title", "", "template title (required)")

	command.Flags().SortFlags = false

	return command
}

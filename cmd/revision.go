package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/permission"
	"github.com/emrgen/template/internal/service"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var revisionCmd = &cobra.Command{
	Use:   "revision",
	Short: "template revision commands",
}

func init() {
	revisionCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	revisionCmd.AddCommand(createRevisionCmd())
	revisionCmd.AddCommand(copyRevisionCmd())
	revisionCmd.AddCommand(updateRevisionCmd())
	revisionCmd.AddCommand(getRevisionCmd())
	revisionCmd.AddCommand(listRevisionsCmd())
	revisionCmd.AddCommand(revisionAction("publish", "publish a revision now", permission.CapabilityPublish,
		func(ctx context.Context, a *app, id uuid.UUID, user string) (*model.Revision, error) {
			return a.revisions.PublishVersion(ctx, id, user)
		}))
	revisionCmd.AddCommand(scheduleRevisionCmd("schedule", "schedule a revision for publication",
		func(ctx context.Context, a *app, id uuid.UUID, at string, user string) (*model.Revision, error) {
			instant, ok := parseInstant(at)
			if !ok {
				return nil, nil
			}
			return a.revisions.SchedulePublish(ctx, id, instant, user)
		}))
	revisionCmd.AddCommand(scheduleRevisionCmd("schedule-archive", "schedule the archival of the published revision",
		func(ctx context.Context, a *app, id uuid.UUID, at string, user string) (*model.Revision, error) {
			instant, ok := parseInstant(at)
			if !ok {
				return nil, nil
			}
			return a.revisions.ScheduleArchive(ctx, id, instant, user)
		}))
	revisionCmd.AddCommand(revisionAction("cancel", "cancel a pending publication or archival", permission.CapabilityPublish,
		func(ctx context.Context, a *app, id uuid.UUID, user string) (*model.Revision, error) {
			return a.revisions.CancelSchedule(ctx, id, user)
		}))
	revisionCmd.AddCommand(revisionAction("archive", "archive the published revision now", permission.CapabilityPublish,
		func(ctx context.Context, a *app, id uuid.UUID, user string) (*model.Revision, error) {
			return a.revisions.ArchiveVersion(ctx, id, user)
		}))
	revisionCmd.AddCommand(deleteRevisionCmd())
}

type revisionFunc func(ctx context.Context, a *app, id uuid.UUID, user string) (*model.Revision, error)

// revisionAction builds a command that runs one lifecycle transition on -r.
func revisionAction(use, short string, capability permission.Capability, run revisionFunc) *cobra.Command {
	var revisionID string

	var required = []string{"revision-id"}

	command := &cobra.Command{
		Use:     use,
		Short:   short,
		Example: "tmpl revision " + use + " -r <revision-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			id, ok := parseID("revision id", revisionID)
			if !ok {
				return
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireRevision(ctx, user, id, capability); err != nil {
				report(err)
				return
			}

			rev, err := run(ctx, a, id, user)
			if err != nil {
				report(err)
				return
			}
			if rev != nil {
				printRevisions(rev)
			}
		},
	}

	command.Flags().StringVarP(&revisionID, "revision-id", "r", "", "revision id (required)")

	return command
}

func scheduleRevisionCmd(use, short string, run func(ctx context.Context, a *app, id uuid.UUID, at string, user string) (*model.Revision, error)) *cobra.Command {
	var at string

	command := revisionAction(use, short, permission.CapabilityPublish,
		func(ctx context.Context, a *app, id uuid.UUID, user string) (*model.Revision, error) {
			return run(ctx, a, id, at, user)
		})
	command.Example = "tmpl revision " + use + " -r <revision-id> --at 2025-01-01T00:00:00Z"
	command.Flags().StringVar(&at, "at", "", "RFC3339 instant (required)")
	_ = command.MarkFlagRequired("at")

	return command
}

func createRevisionCmd() *cobra.Command {
	var templateID string
	var name string
	var description string
	var file string

	var required = []string{"template-id", "name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a draft revision",
		Example: "tmpl revision create -t <template-id> -n v1 -f invoice.json",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			tmplID, ok := parseID("template id", templateID)
			if !ok {
				return
			}
			body, ok := readContent(file)
			if !ok {
				return
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireTemplate(ctx, user, tmplID, permission.CapabilityEdit); err != nil {
				report(err)
				return
			}

			req := &service.CreateVersionRequest{TemplateID: tmplID, Name: name, Content: body, Actor: user}
			if cmd.Flag("description").Changed {
				req.Description = &description
			}
			rev, err := a.revisions.CreateVersion(ctx, req)
			if err != nil {
				report(err)
				return
			}

			printRevisions(rev)
		},
	}

	command.Flags().StringVarP(&templateID, "template-id", "t", "", "template id (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "revision name (required)")
	command.Flags().StringVarP(&description, "description", "d", "", "revision description")
	command.Flags().StringVarP(&file, "file", "f", "", "document json file")

	command.Flags().SortFlags = false

	return command
}

func copyRevisionCmd() *cobra.Command {
	var sourceID string
	var name string
	var description string

	var required = []string{"revision-id", "name"}

	command := &cobra.Command{
		Use:     "copy",
		Short:   "create a draft revision from an existing one",
		Example: "tmpl revision copy -r <revision-id> -n v2",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			id, ok := parseID("revision id", sourceID)
			if !ok {
				return
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireRevision(ctx, user, id, permission.CapabilityEdit); err != nil {
				report(err)
				return
			}

			req := &service.CreateVersionFromExistingRequest{SourceID: id, Name: name, Actor: user}
			if cmd.Flag("description").Changed {
				req.Description = &description
			}
			rev, err := a.revisions.CreateVersionFromExisting(ctx, req)
			if err != nil {
				report(err)
				return
			}

			printRevisions(rev)
		},
	}

	command.Flags().StringVarP(&sourceID, "revision-id", "r", "", "source revision id (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "new revision name (required)")
	command.Flags().StringVarP(&description, "description", "d", "", "new revision description")

	command.Flags().SortFlags = false

	return command
}

func updateRevisionCmd() *cobra.Command {
	var revisionID string
	var name string
	var description string
	var file string
	var clearContent bool

	var required = []string{"revision-id"}

	command := &cobra.Command{
		Use:     "update",
		Short:   "update a draft or a scheduled revision",
		Example: "tmpl revision update -r <revision-id> -f invoice.json\ntmpl revision update -r <revision-id> --clear-content",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			id, ok := parseID("revision id", revisionID)
			if !ok {
				return
			}

			req := &service.UpdateVersionRequest{ID: id, Actor: user}
			if cmd.Flag("name").Changed {
				req.Name = &name
			}
			if cmd.Flag("description").Changed {
				req.Description = &description
			}
			switch {
			case clearContent:
				req.Content = json.RawMessage("null")
			case file != "":
				body, ok := readContent(file)
				if !ok {
					return
				}
				req.Content = body
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireRevision(ctx, user, id, permission.CapabilityEdit); err != nil {
				report(err)
				return
			}

			rev, err := a.revisions.UpdateVersion(ctx, req)
			if err != nil {
				report(err)
				return
			}

			printRevisions(rev)
		},
	}

	command.Flags().StringVarP(&revisionID, "revision-id", "r", "", "revision id (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "new name")
	command.Flags().StringVarP(&description, "description", "d", "", "new description")
	command.Flags().StringVarP(&file, "file", "f", "", "new document json file")
	command.Flags().BoolVar(&clearContent, "clear-content", false, "remove the document body")

	command.Flags().SortFlags = false

	return command
}

func getRevisionCmd() *cobra.Command {
	var revisionID string

	var required = []string{"revision-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "show a revision and its injectables",
		Example: "tmpl revision get -r <revision-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			id, ok := parseID("revision id", revisionID)
			if !ok {
				return
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireRevision(ctx, user, id, permission.CapabilityView); err != nil {
				report(err)
				return
			}

			rev, err := a.revisions.GetVersion(ctx, id)
			if err != nil {
				report(err)
				return
			}

			printRevisions(rev)
			if len(rev.Injectables) > 0 {
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"Injectable", "Kind"})
				for _, inj := range rev.Injectables {
					kind := "workspace"
					if inj.SystemInjectableKey != nil {
						kind = "system"
					}
					table.Append([]string{inj.Key(), kind})
				}
				table.Render()
			}
		},
	}

	command.Flags().StringVarP(&revisionID, "revision-id", "r", "", "revision id (required)")

	return command
}

func listRevisionsCmd() *cobra.Command {
	var templateID string

	var required = []string{"template-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the revisions of a template",
		Example: "tmpl revision list -t <template-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			tmplID, ok := parseID("template id", templateID)
			if !ok {
				return
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireTemplate(ctx, user, tmplID, permission.CapabilityView); err != nil {
				report(err)
				return
			}

			revs, err := a.revisions.ListVersions(ctx, tmplID)
			if err != nil {
				report(err)
				return
			}
			if len(revs) == 0 {
				color.Yellow("no revisions")
				return
			}

			printRevisions(revs...)
		},
	}

	command.Flags().StringVarP(&templateID, "template-id", "t", "", "template id (required)")

	return command
}

func deleteRevisionCmd() *cobra.Command {
	var revisionID string

	var required = []string{"revision-id"}

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a draft or scheduled revision",
		Example: "tmpl revision delete -r <revision-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			user, ok := actingUser()
			if !ok {
				return
			}
			id, ok := parseID("revision id", revisionID)
			if !ok {
				return
			}

			a := newApp()
			defer a.close()

			ctx := context.Background()
			if err := a.requireRevision(ctx, user, id, permission.CapabilityEdit); err != nil {
				report(err)
				return
			}

			if err := a.revisions.DeleteVersion(ctx, id, user); err != nil {
				report(err)
				return
			}

			color.Green("revision %s deleted", id)
		},
	}

	command.Flags().StringVarP(&revisionID, "revision-id", "r", "", "revision id (required)")

	return command
}

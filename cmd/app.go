package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emrgen/template/internal/config"
	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/permission"
	"github.com/emrgen/template/internal/queue"
	"github.com/emrgen/template/internal/service"
	"github.com/emrgen/template/internal/store"
	"github.com/emrgen/template/internal/validator"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds what the lifecycle commands need.
type app struct {
	cfg       *config.Config
	store     *store.GormStore
	events    queue.RevisionQueue
	validator *validator.Validator
	revisions *service.RevisionService
	gate      *permission.Gate
}

func newApp() *app {
	cfg := config.LoadConfig()
	s := store.NewGormStore(config.GetDb(cfg))

	events, err := config.NewRevisionQueue(cfg)
	if err != nil {
		logrus.Fatalf("failed to create revision queue: %v", err)
	}

	v := config.NewValidator(cfg, s)

	return &app{
		cfg:       cfg,
		store:     s,
		events:    events,
		validator: v,
		revisions: service.NewRevisionService(s, v, events),
		gate:      config.NewGate(cfg, s),
	}
}

func (a *app) close() {
	if err := a.events.Close(); err != nil {
		logrus.Errorf("error closing revision queue: %v", err)
	}
}

// requireWorkspace checks that user holds capability in the workspace.
func (a *app) requireWorkspace(ctx context.Context, user string, workspaceID uuid.UUID, capability permission.Capability) error {
	ws, err := a.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("workspace %s: %w", workspaceID, err)
	}

	return a.gate.Require(ctx, permission.Subject{
		UserID:      user,
		TenantCode:  ws.TenantCode,
		WorkspaceID: ws.ID,
	}, capability)
}

// requireTemplate checks that user holds capability in the template's workspace.
func (a *app) requireTemplate(ctx context.Context, user string, templateID uuid.UUID, capability permission.Capability) error {
	tmpl, err := a.store.GetTemplate(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return service.ErrTemplateNotFound
	}
	if err != nil {
		return err
	}

	return a.requireWorkspace(ctx, user, uuid.MustParse(tmpl.WorkspaceID), capability)
}

// requireRevision checks that user holds capability in the revision's workspace.
func (a *app) requireRevision(ctx context.Context, user string, revisionID uuid.UUID, capability permission.Capability) error {
	rev, err := a.store.GetRevision(ctx, revisionID)
	if errors.Is(err, store.ErrNotFound) {
		return service.ErrRevisionNotFound
	}
	if err != nil {
		return err
	}

	return a.requireTemplate(ctx, user, uuid.MustParse(rev.TemplateID), capability)
}

func parseID(name, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		color.Red("invalid %s, expected a valid uuid", name)
		return uuid.Nil, false
	}
	return id, true
}

func parseInstant(value string) (time.Time, bool) {
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		color.Red("invalid time %q, expected RFC3339 such as 2025-01-01T00:00:00Z", value)
		return time.Time{}, false
	}
	return at, true
}

func readContent(path string) ([]byte, bool) {
	if path == "" {
		return nil, true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Error(err)
		return nil, false
	}
	return data, true
}

// report prints err in the shape of its class.
func report(err error) {
	var invalid *service.ContentInvalidError
	var lifecycle *service.LifecycleError
	switch {
	case errors.As(err, &invalid):
		color.Red("content is not publishable")
		printResult(invalid.Result)
	case errors.As(err, &lifecycle):
		color.Red("%s: %s", lifecycle.Code, lifecycle.Message)
	case errors.Is(err, permission.ErrForbidden):
		color.Red("%v", err)
	default:
		logrus.Error(err)
	}
}

func printResult(res *validator.Result) {
	if res.Valid {
		color.Green("valid")
	} else {
		color.Red("invalid: %d error(s)", len(res.Errors))
	}

	if len(res.Errors)+len(res.Warnings) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Severity", "Code", "Path", "Message"})
		for _, issue := range res.Errors {
			table.Append([]string{"error", issue.Code, issue.Path, issue.Message})
		}
		for _, issue := range res.Warnings {
			table.Append([]string{"warning", issue.Code, issue.Path, issue.Message})
		}
		table.Render()
	}

	if len(res.ExtractedInjectables) > 0 {
		keys := make([]string, 0, len(res.ExtractedInjectables))
		for _, inj := range res.ExtractedInjectables {
			keys = append(keys, inj.Key())
		}
		fmt.Println("injectables:", strings.Join(keys, ", "))
	}
}

func printRevisions(revisions ...*model.Revision) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Version", "Name", "Status", "Publish At", "Archive At", "Published At"})
	for _, rev := range revisions {
		table.Append([]string{
			rev.ID,
			strconv.Itoa(rev.VersionNumber),
			rev.Name,
			string(rev.Status),
			formatTime(rev.ScheduledPublishAt),
			formatTime(rev.ScheduledArchiveAt),
			formatTime(rev.PublishedAt),
		})
	}
	table.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Green("provide: %s\n", provided)
		}

		cmd.Println("")
		_ = cmd.Usage()
		return true
	}

	return false
}

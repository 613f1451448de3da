package main

import (
	"context"
	"os"

	"github.com/emrgen/template/internal/config"
	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/service"
	"github.com/emrgen/template/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const sample = `{
  "version": "1.0.0",
  "meta": {"title": "Invoice", "language": "en"},
  "pageConfig": {"formatId": "A4", "width": 210, "height": 297,
    "margins": {"top": 20, "bottom": 20, "left": 15, "right": 15}},
  "variableIds": ["customer_name", "current_date"],
  "content": {"type": "doc", "content": [
    {"type": "paragraph", "content": [
      {"type": "text", "text": "Dear "},
      {"type": "injector", "attrs": {"variableId": "customer_name"}}
    ]},
    {"type": "conditional", "attrs": {
      "expression": "customer_name != \"\"",
      "conditions": {"type": "group", "logic": "AND", "children": [
        {"type": "rule", "variableId": "customer_name", "operator": "not_empty"}
      ]}},
     "content": [{"type": "injector", "attrs": {"variableId": "current_date"}}]}
  ]}
}`

// seeds a local database with one published invoice template
func main() {
	tenant := os.Getenv("SEED_TENANT")
	if tenant == "" {
		tenant = "acme"
	}

	cnf := config.LoadConfig()
	config.SetupLogging(cnf)

	s := store.NewGormStore(config.GetDb(cnf))
	if err := s.Migrate(); err != nil {
		logrus.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	ws := &model.Workspace{TenantCode: tenant, Code: "debug-" + uuid.NewString()[:8]}
	if err := s.CreateWorkspace(ctx, ws); err != nil {
		logrus.Fatalf("workspace: %v", err)
	}

	for _, inj := range []*model.Injectable{
		{Key: "current_date", DataType: "DATE", SourceType: "EXTERNAL", Labels: datatypes.JSONMap{"en": "Current date", "es": "Fecha actual"}},
		{WorkspaceID: &ws.ID, Key: "customer_name", DataType: "TEXT", SourceType: "INTERNAL", Labels: datatypes.JSONMap{"en": "Customer name"}},
	} {
		if err := s.CreateInjectable(ctx, inj); err != nil {
			logrus.Warnf("injectable %s: %v", inj.Key, err)
		}
	}

	docType := "INVOICE"
	tmpl := &model.Template{WorkspaceID: ws.ID, Title: "Invoice", DocumentTypeCode: &docType}
	if err := s.CreateTemplate(ctx, tmpl); err != nil {
		logrus.Fatalf("template: %v", err)
	}

	events, err := config.NewRevisionQueue(cnf)
	if err != nil {
		logrus.Fatalf("queue: %v", err)
	}
	defer events.Close()

	revisions := service.NewRevisionService(s, config.NewValidator(cnf, s), events)
	rev, err := revisions.CreateVersion(ctx, &service.CreateVersionRequest{
		TemplateID: uuid.MustParse(tmpl.ID),
		Name:       "v1",
		Content:    []byte(sample),
		Actor:      "debug",
	})
	if err != nil {
		logrus.Fatalf("create revision: %v", err)
	}

	if _, err := revisions.PublishVersion(ctx, uuid.MustParse(rev.ID), "debug"); err != nil {
		logrus.Fatalf("publish revision: %v", err)
	}

	logrus.Infof("seeded workspace %s (%s/%s), template %s, revision %s", ws.ID, ws.TenantCode, ws.Code, tmpl.ID, rev.ID)
}

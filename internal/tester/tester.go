package tester

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/emrgen/template/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a private in-memory sqlite database with every table migrated.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.Migrate(db))

	return db
}

// Redis starts a miniredis server bound to the test lifetime.
func Redis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func CreateWorkspace(t testing.TB, db *gorm.DB, tenantCode, code string) *model.Workspace {
	t.Helper()

	workspace := &model.Workspace{TenantCode: tenantCode, Code: code}
	require.NoError(t, db.WithContext(context.Background()).Create(workspace).Error)

	return workspace
}

func CreateTemplate(t testing.TB, db *gorm.DB, workspace *model.Workspace, documentTypeCode string) *model.Template {
	t.Helper()

	template := &model.Template{WorkspaceID: workspace.ID, Title: "template " + documentTypeCode}
	if documentTypeCode != "" {
		template.DocumentTypeCode = &documentTypeCode
	}
	require.NoError(t, db.Omit("Workspace", "Revisions").Create(template).Error)

	return template
}

// CreateInjectable adds a workspace injectable, or a system one when workspace is nil.
func CreateInjectable(t testing.TB, db *gorm.DB, workspace *model.Workspace, key string) *model.Injectable {
	t.Helper()

	injectable := &model.Injectable{
		Key:        key,
		DataType:   "TEXT",
		SourceType: "INTERNAL",
		Labels:     datatypes.JSONMap{"en": key},
	}
	if workspace != nil {
		injectable.WorkspaceID = &workspace.ID
	} else {
		injectable.SourceType = "EXTERNAL"
	}
	require.NoError(t, db.Create(injectable).Error)

	return injectable
}

// Document renders a minimal publishable document declaring vars and
// injecting each of them once.
func Document(vars ...string) []byte {
	injectors := ""
	declared := ""
	for i, v := range vars {
		if i > 0 {
			injectors += ","
			declared += ","
		}
		injectors += fmt.Sprintf(`{"type":"injector","attrs":{"variableId":%q}}`, v)
		declared += fmt.Sprintf("%q", v)
	}

	return []byte(fmt.Sprintf(`{
  "version": "1.0.0",
  "meta": {"title": "Test", "language": "en"},
  "pageConfig": {"formatId": "A4", "width": 210, "height": 297, "margins": {"top": 10, "bottom": 10, "left": 10, "right": 10}},
  "variableIds": [%s],
  "content": {"type": "doc", "content": [{"type": "paragraph", "content": [%s]}]}
}`, declared, injectors))
}

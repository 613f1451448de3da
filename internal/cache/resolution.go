package cache

import (
	"context"
	"strings"
	"time"

	"github.com/emrgen/template/internal/model"
)

// ResolutionCache maps a tenant/workspace/document type to the revision that
// was published for it when the entry was written. Entries only expire.
type ResolutionCache interface {
	// Get returns nil and no error on a miss.
	Get(ctx context.Context, key ResolutionKey) (*model.Revision, error)
	// Set stores the revision for ttl. The last writer wins.
	Set(ctx context.Context, key ResolutionKey, revision *model.Revision, ttl time.Duration) error
	// Delete drops an entry before it expires.
	Delete(ctx context.Context, key ResolutionKey) error
}

type ResolutionKey struct {
	TenantCode       string
	WorkspaceCode    string
	DocumentTypeCode string
}

func (k ResolutionKey) String() string {
	return strings.Join([]string{"template", "resolution", k.TenantCode, k.WorkspaceCode, k.DocumentTypeCode}, ":")
}

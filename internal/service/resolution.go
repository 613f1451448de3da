package service

import (
	"context"
	"fmt"
	"time"

	"github.com/emrgen/template/internal/cache"
	"github.com/emrgen/template/internal/content"
	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/store"
	"github.com/sirupsen/logrus"
)

const DefaultResolutionTTL = 5 * time.Minute

// RenderPayload is what a renderer needs to produce a document.
type RenderPayload struct {
	Revision    *model.Revision            `json:"revision"`
	Document    *content.Document          `json:"document"`
	Injectables []model.RevisionInjectable `json:"injectables"`
}

// ResolutionService finds the published revision for a document type. Cached
// entries may lag behind the store by up to ttl.
type ResolutionService struct {
	store store.RevisionStore
	cache cache.ResolutionCache
	ttl   time.Duration
}

func NewResolutionService(store store.RevisionStore, cache cache.ResolutionCache, ttl time.Duration) *ResolutionService {
	if ttl <= 0 {
		ttl = DefaultResolutionTTL
	}

	return &ResolutionService{store: store, cache: cache, ttl: ttl}
}

func (r *ResolutionService) Resolve(ctx context.Context, tenantCode, workspaceCode, documentTypeCode string) (*RenderPayload, error) {
	key := cache.ResolutionKey{
		TenantCode:       tenantCode,
		WorkspaceCode:    workspaceCode,
		DocumentTypeCode: documentTypeCode,
	}

	rev, err := r.cache.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).Warnf("resolution cache read failed for %s", key)
		rev = nil
	}

	if rev == nil {
		rev, err = r.store.FindPublishedByDocumentType(ctx, tenantCode, workspaceCode, documentTypeCode)
		if err != nil {
			return nil, notFound(err, lifecycleErr(ErrRevisionNotFound,
				"no published revision for document type %q in %s/%s", documentTypeCode, tenantCode, workspaceCode))
		}

		if err := r.cache.Set(ctx, key, rev, r.ttl); err != nil {
			logrus.WithError(err).Warnf("resolution cache write failed for %s", key)
		}
	}

	doc, err := content.Parse(rev.ContentStructure)
	if err != nil {
		return nil, fmt.Errorf("published revision %s has unreadable content: %w", rev.ID, err)
	}

	return &RenderPayload{
		Revision:    rev,
		Document:    doc,
		Injectables: rev.Injectables,
	}, nil
}

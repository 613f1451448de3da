package injectable

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var _ Lister = (*Fetcher)(nil)

// Fetcher coalesces concurrent lookups for the same workspace and locale and
// remembers the last successful result for a while.
type Fetcher struct {
	source LocalizedLister
	group  singleflight.Group
	cache  *expirable.LRU[string, []Accessible]
}

func NewFetcher(source LocalizedLister, capacity int, ttl time.Duration) *Fetcher {
	if capacity <= 0 {
		capacity = 256
	}

	return &Fetcher{
		source: source,
		cache:  expirable.NewLRU[string, []Accessible](capacity, nil, ttl),
	}
}

func (f *Fetcher) List(ctx context.Context, workspaceID uuid.UUID) ([]Accessible, error) {
	return f.Fetch(ctx, workspaceID, DefaultLocale)
}

func (f *Fetcher) Fetch(ctx context.Context, workspaceID uuid.UUID, locale string) ([]Accessible, error) {
	key := fetchKey(workspaceID, locale)
	if cached, ok := f.cache.Get(key); ok {
		return slices.Clone(cached), nil
	}

	// the shared call must not die with whichever caller arrived first
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (any, error) {
		accessible, err := f.source.ListLocalized(shared, workspaceID, locale)
		if err != nil {
			return nil, err
		}
		f.cache.Add(key, accessible)
		logrus.Debugf("fetched %d injectables for %s", len(accessible), key)

		return accessible, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]Accessible)), nil
	}
}

// Forget drops every cached locale of a workspace.
func (f *Fetcher) Forget(workspaceID uuid.UUID) {
	prefix := workspaceID.String() + "|"
	for _, key := range f.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			f.cache.Remove(key)
		}
	}
}

func (f *Fetcher) Reset() {
	f.cache.Purge()
}

func fetchKey(workspaceID uuid.UUID, locale string) string {
	if locale == "" {
		locale = DefaultLocale
	}
	return workspaceID.String() + "|" + locale
}

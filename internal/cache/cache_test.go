package cache

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/template/internal/compress"
	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var key = ResolutionKey{TenantCode: "acme", WorkspaceCode: "main", DocumentTypeCode: "INVOICE"}

func revision(id string) *model.Revision {
	systemKey := "current_date"
	return &model.Revision{
		ID:               id,
		TemplateID:       "t1",
		VersionNumber:    2,
		Name:             "v2",
		Status:           model.StatusPublished,
		ContentStructure: datatypes.JSON(`{"version":"1.0.0"}`),
		Injectables: []model.RevisionInjectable{
			{ID: "i1", RevisionID: id, SystemInjectableKey: &systemKey},
		},
	}
}

func TestResolutionKey(t *testing.T) {
	assert.Equal(t, "template:resolution:acme:main:INVOICE", key.String())
}

func TestRedisResolutionCache(t *testing.T) {
	for _, codec := range []string{"none", "gzip", "brotli", "lz4"} {
		t.Run(codec, func(t *testing.T) {
			client, server := tester.Redis(t)
			encoder, err := compress.New(codec)
			require.NoError(t, err)

			cache := NewRedisResolutionCache(client, encoder)
			ctx := context.Background()

			got, err := cache.Get(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, cache.Set(ctx, key, revision("r1"), time.Minute))

			got, err = cache.Get(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "r1", got.ID)
			assert.JSONEq(t, `{"version":"1.0.0"}`, string(got.ContentStructure))
			require.Len(t, got.Injectables, 1)
			assert.Equal(t, "current_date", got.Injectables[0].Key())

			keys, err := client.Keys(ctx, "*").Result()
			require.NoError(t, err)
			assert.Equal(t, []string{key.String()}, keys, "nothing but the entry is written")

			server.FastForward(2 * time.Minute)
			got, err = cache.Get(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestRedisResolutionCache_LastWriterWinsAndDelete(t *testing.T) {
	client, _ := tester.Redis(t)
	cache := NewRedisResolutionCache(client, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, key, revision("r1"), time.Minute))
	require.NoError(t, cache.Set(ctx, key, revision("r2"), time.Minute))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ID)

	require.NoError(t, cache.Delete(ctx, key))
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryResolutionCache(t *testing.T) {
	cache := NewMemoryResolutionCache(2, time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, key, revision("r1"), time.Minute))
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	now = now.Add(time.Minute)
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryResolutionCache_CopiesEntries(t *testing.T) {
	cache := NewMemoryResolutionCache(2, time.Hour)
	ctx := context.Background()

	stored := revision("r1")
	require.NoError(t, cache.Set(ctx, key, stored, time.Minute))
	stored.Name = "changed by the resolver"

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	got.Name = "changed by a caller"
	*got.Injectables[0].SystemInjectableKey = "other"
	got.ContentStructure[0] = '['

	again, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v2", again.Name)
	assert.Equal(t, "current_date", again.Injectables[0].Key())
	assert.JSONEq(t, `{"version":"1.0.0"}`, string(again.ContentStructure))
}

func TestMemoryResolutionCache_CapacityEviction(t *testing.T) {
	cache := NewMemoryResolutionCache(2, time.Hour)
	ctx := context.Background()

	keys := []ResolutionKey{
		{TenantCode: "a", WorkspaceCode: "w", DocumentTypeCode: "1"},
		{TenantCode: "a", WorkspaceCode: "w", DocumentTypeCode: "2"},
		{TenantCode: "a", WorkspaceCode: "w", DocumentTypeCode: "3"},
	}
	for i, k := range keys {
		require.NoError(t, cache.Set(ctx, k, revision(k.DocumentTypeCode), time.Minute))
		assert.LessOrEqual(t, cache.Len(), 2, i)
	}

	got, err := cache.Get(ctx, keys[0])
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = cache.Get(ctx, keys[2])
	require.NoError(t, err)
	assert.Equal(t, "3", got.ID)

	require.NoError(t, cache.Delete(ctx, keys[2]))
	got, err = cache.Get(ctx, keys[2])
	require.NoError(t, err)
	assert.Nil(t, got)
}

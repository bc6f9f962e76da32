package revisor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/revisor"
	"github.com/emrgen/revisor/store"
)

func TestCreate_NaturalKey(t *testing.T) {
	posts := revisor.NewEntity("pages").WithNaturalKey()
	m := setup(t, posts, revisor.DefaultConfig())
	ctx := context.Background()

	// missing key is rejected
	_, err := m.Create(ctx, posts, map[string]any{"title": "Home"})
	assert.True(t, errors.Is(err, revisor.ErrMissingKey))

	draft, err := m.Create(ctx, posts, map[string]any{"id": int64(7), "title": "Home"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), draft.ID())

	versions, err := m.Versions(ctx, posts, int64(7))
	require.NoError(t, err)
	require.Len(t, versions, 1)
	n, _ := versions[0].VersionNumber()
	assert.Equal(t, 1, n)
}

func TestLifecycle_PublishRevisePublish(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()
	pubCtx := revisor.WithTableContext(ctx, revisor.ContextPublished)

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)

	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2"})
	require.NoError(t, err)

	// readers keep the published content while the draft moves ahead
	published, err := m.Find(pubCtx, pages, draft.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home", published.String("title"))

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].IsPublished())
	assert.False(t, versions[1].IsPublished())
	assert.True(t, versions[1].IsCurrent())

	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)

	published, err = m.Find(pubCtx, pages, draft.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home 2", published.String("title"))

	// publish-state exclusivity moved to the new current version
	versions, err = m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].IsPublished())
	assert.True(t, versions[1].IsPublished())
}

func TestPublishOnSaved(t *testing.T) {
	pages := pagesEntity().PublishOnSaved(true)
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()
	pubCtx := revisor.WithTableContext(ctx, revisor.ContextPublished)

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	assert.True(t, draft.IsPublished())

	published, err := m.Find(pubCtx, pages, draft.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home", published.String("title"))

	// creating yields exactly one version, carrying the publish mirror
	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].IsPublished())

	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2"})
	require.NoError(t, err)

	published, err = m.Find(pubCtx, pages, draft.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home 2", published.String("title"))
}

func TestDelete_DraftCascade(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()
	pubCtx := revisor.WithTableContext(ctx, revisor.ContextPublished)

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, pages, draft.ID()))

	_, err = m.Find(ctx, pages, draft.ID())
	assert.True(t, errors.Is(err, revisor.ErrRecordNotFound))
	_, err = m.Find(pubCtx, pages, draft.ID())
	assert.True(t, errors.Is(err, revisor.ErrRecordNotFound))
	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.Empty(t, versions)

	// soft deletion is reversible, family included
	restored, err := m.Restore(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home", restored.String("title"))

	_, err = m.Find(pubCtx, pages, draft.ID())
	require.NoError(t, err)
	versions, err = m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestForceDelete_Draft(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)

	require.NoError(t, m.ForceDelete(ctx, pages, draft.ID()))

	_, err = m.Restore(ctx, pages, draft.ID())
	assert.True(t, errors.Is(err, revisor.ErrRecordNotFound))
}

func TestRestore_RequiresSoftDeletes(t *testing.T) {
	pages := revisor.NewEntity("pages")
	m := setup(t, pages, revisor.DefaultConfig())

	_, err := m.Restore(context.Background(), pages, "missing")
	assert.True(t, errors.Is(err, revisor.ErrSoftDeleteDisabled))
}

func TestDelete_PublishedContext(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()
	pubCtx := revisor.WithTableContext(ctx, revisor.ContextPublished)

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)

	require.NoError(t, m.Delete(pubCtx, pages, draft.ID()))

	_, err = m.Find(pubCtx, pages, draft.ID())
	assert.True(t, errors.Is(err, revisor.ErrRecordNotFound))

	// the draft survives, demoted to unpublished
	draft, err = m.Find(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.False(t, draft.IsPublished())

	current, err := m.CurrentVersion(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.False(t, current.IsPublished())
}

func TestDelete_VersionContext(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()
	verCtx := revisor.WithTableContext(ctx, revisor.ContextVersion)

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2"})
	require.NoError(t, err)

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 2)

	// deleting a non-pointed-at version leaves the draft pointer alone
	require.NoError(t, m.Delete(verCtx, pages, versions[0].ID()))
	draft, err = m.Find(ctx, pages, draft.ID())
	require.NoError(t, err)
	n, ok := draft.VersionNumber()
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	// deleting the pointed-at version nulls the pointer
	require.NoError(t, m.Delete(verCtx, pages, versions[1].ID()))
	draft, err = m.Find(ctx, pages, draft.ID())
	require.NoError(t, err)
	_, ok = draft.VersionNumber()
	assert.False(t, ok)
}

func TestListQueries(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	a, err := m.Create(ctx, pages, map[string]any{"title": "a"})
	require.NoError(t, err)
	_, err = m.Create(ctx, pages, map[string]any{"title": "b"})
	require.NoError(t, err)
	_, err = m.Create(ctx, pages, map[string]any{"title": "c"})
	require.NoError(t, err)

	_, err = m.Publish(ctx, pages, a.ID())
	require.NoError(t, err)

	published, err := m.ListPublished(ctx, pages)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "a", published[0].String("title"))

	unpublished, err := m.ListUnpublished(ctx, pages)
	require.NoError(t, err)
	assert.Len(t, unpublished, 2)

	// an untouched published draft is neither unpublished nor revised
	pending, err := m.ListUnpublishedOrRevised(ctx, pages)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = m.Update(ctx, pages, a.ID(), map[string]any{"title": "a2"})
	require.NoError(t, err)

	pending, err = m.ListUnpublishedOrRevised(ctx, pages)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestRelatedRecords(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 1)

	// a version resolves its owning draft through record_id
	owner, err := m.DraftRecord(ctx, pages, versions[0])
	require.NoError(t, err)
	assert.Equal(t, draft.ID(), owner.ID())

	published, err := m.PublishedRecord(ctx, pages, versions[0])
	require.NoError(t, err)
	assert.Equal(t, draft.ID(), published.ID())

	_, err = m.DraftRecord(ctx, pages, owner)
	assert.True(t, errors.Is(err, revisor.ErrWrongContext))
	_, err = m.PublishedRecord(ctx, pages, published)
	assert.True(t, errors.Is(err, revisor.ErrWrongContext))
}

// memCache is an in-process PublishedCache used to observe read-through and
// eviction behaviour.
type memCache struct {
	mu   sync.Mutex
	rows map[string]store.Row
	hits int
}

func newMemCache() *memCache {
	return &memCache{rows: make(map[string]store.Row)}
}

func (c *memCache) key(base string, id any) string {
	return base + ":" + id.(string)
}

func (c *memCache) Get(ctx context.Context, base string, id any) (store.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[c.key(base, id)]
	if !ok {
		return nil, nil
	}
	c.hits++
	return row, nil
}

func (c *memCache) Set(ctx context.Context, base string, id any, row store.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[c.key(base, id)] = row
	return nil
}

func (c *memCache) Delete(ctx context.Context, base string, id any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, c.key(base, id))
	return nil
}

func TestPublishedCache_ReadThrough(t *testing.T) {
	pages := pagesEntity()
	mc := newMemCache()
	m := setup(t, pages, revisor.DefaultConfig(), revisor.WithPublishedCache(mc))
	ctx := context.Background()
	pubCtx := revisor.WithTableContext(ctx, revisor.ContextPublished)

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)

	published, err := m.Find(pubCtx, pages, draft.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home", published.String("title"))
	assert.True(t, mc.hits >= 1)

	_, err = m.Unpublish(ctx, pages, draft.ID())
	require.NoError(t, err)

	// the eviction keeps the cache from serving a revoked publication
	_, err = m.Find(pubCtx, pages, draft.ID())
	assert.True(t, errors.Is(err, revisor.ErrRecordNotFound))
}

package revisor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/revisor"
)

func TestSaveNewVersion_Numbering(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	n, ok := draft.VersionNumber()
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	for i := 0; i < 2; i++ {
		_, err = m.SaveNewVersion(ctx, pages, draft.ID())
		require.NoError(t, err)
	}

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 3)

	currents := 0
	for i, v := range versions {
		n, ok := v.VersionNumber()
		assert.True(t, ok)
		assert.Equal(t, i+1, n)
		assert.Equal(t, draft.ID(), v.RecordID())
		if v.IsCurrent() {
			currents++
		}
	}
	assert.Equal(t, 1, currents)
	assert.True(t, versions[2].IsCurrent())

	draft, err = m.Find(ctx, pages, draft.ID())
	require.NoError(t, err)
	n, _ = draft.VersionNumber()
	assert.Equal(t, 3, n)
}

func TestRevertToVersionNumber(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home", "content": "first"})
	require.NoError(t, err)
	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2", "content": "second"})
	require.NoError(t, err)

	draft, err = m.RevertToVersionNumber(ctx, pages, draft.ID(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Home", draft.String("title"))
	assert.Equal(t, "first", draft.String("content"))
	n, _ := draft.VersionNumber()
	assert.Equal(t, 1, n)

	current, err := m.CurrentVersion(ctx, pages, draft.ID())
	require.NoError(t, err)
	n, _ = current.VersionNumber()
	assert.Equal(t, 1, n)
}

func TestRevertToVersion_ByID(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2"})
	require.NoError(t, err)

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 2)

	draft, err = m.RevertToVersion(ctx, pages, draft.ID(), versions[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "Home", draft.String("title"))
}

func TestRevertDraftToThisVersion(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2"})
	require.NoError(t, err)

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)

	reverted, err := m.RevertDraftToThisVersion(ctx, pages, versions[0])
	require.NoError(t, err)
	assert.Equal(t, "Home", reverted.String("title"))

	// only version records can be reverted from
	_, err = m.RevertDraftToThisVersion(ctx, pages, reverted)
	assert.True(t, errors.Is(err, revisor.ErrWrongContext))
}

func TestRevert_UnknownVersion(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)

	_, err = m.RevertToVersionNumber(ctx, pages, draft.ID(), 99)
	assert.True(t, errors.Is(err, revisor.ErrVersionNotFound))
}

func TestRevert_KeepsPublishState(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)
	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2"})
	require.NoError(t, err)

	draft, err = m.RevertToVersionNumber(ctx, pages, draft.ID(), 1)
	require.NoError(t, err)

	// content history and publish state are independent
	assert.Equal(t, "Home", draft.String("title"))
	assert.True(t, draft.IsPublished())
}

func TestPrune_KeepLatest(t *testing.T) {
	pages := pagesEntity().KeepVersions(revisor.KeepLatest(2))
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "v1"})
	require.NoError(t, err)
	for i := 2; i <= 5; i++ {
		_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": fmt.Sprintf("v%d", i)})
		require.NoError(t, err)
	}

	// the current version plus the two most recent non-current ones survive
	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		n, _ := v.VersionNumber()
		assert.Equal(t, i+3, n)
	}
}

func TestPrune_KeepNone(t *testing.T) {
	pages := pagesEntity().KeepVersions(revisor.KeepNone())
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.Empty(t, versions)

	// pruning the pointed-at version nulls the draft's pointer
	_, ok := draft.VersionNumber()
	assert.False(t, ok)
}

func TestPrunableVersions(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "v1"})
	require.NoError(t, err)
	for i := 2; i <= 5; i++ {
		_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": fmt.Sprintf("v%d", i)})
		require.NoError(t, err)
	}

	// same base entity under a tighter policy
	tight := pagesEntity().KeepVersions(revisor.KeepLatest(1))

	prunable, err := m.PrunableVersions(ctx, tight, draft.ID())
	require.NoError(t, err)
	require.Len(t, prunable, 3)
	for i, v := range prunable {
		n, _ := v.VersionNumber()
		assert.Equal(t, i+1, n)
	}

	require.NoError(t, m.PruneVersions(ctx, tight, draft.ID()))

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	n, _ := versions[0].VersionNumber()
	assert.Equal(t, 4, n)
}

func TestSyncToCurrentVersion(t *testing.T) {
	pages := pagesEntity().SaveNewVersionOnSaved(false)
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.Empty(t, versions)

	// syncing without a version creates the first one
	version, err := m.SyncToCurrentVersion(ctx, pages, draft.ID())
	require.NoError(t, err)
	n, _ := version.VersionNumber()
	assert.Equal(t, 1, n)

	// updates keep flowing onto the same version instead of adding new ones
	_, err = m.Update(ctx, pages, draft.ID(), map[string]any{"title": "Home 2"})
	require.NoError(t, err)

	versions, err = m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "Home 2", versions[0].String("title"))
	assert.True(t, versions[0].IsCurrent())
}

func TestSaveNewVersion_Veto(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	m.Hooks().On(revisor.EventSavingNewVersion, func(ctx context.Context, rec *revisor.Record) error {
		return revisor.ErrVetoed
	})

	// the veto rolls back the whole create, draft included
	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	assert.True(t, errors.Is(err, revisor.ErrVetoed))
	assert.Nil(t, draft)

	drafts, err := m.List(ctx, pages)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

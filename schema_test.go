package revisor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/revisor"
)

func TestCreateSchemas(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()
	st := m.Store()

	for _, table := range m.Config().AllTablesFor("pages") {
		assert.True(t, st.HasTable(ctx, table), table)
		assert.True(t, st.HasColumn(ctx, table, "title"), table)
		assert.True(t, st.HasColumn(ctx, table, "is_published"), table)
		assert.True(t, st.HasColumn(ctx, table, "version_number"), table)
		assert.True(t, st.HasColumn(ctx, table, "deleted_at"), table)
	}

	// the owning-draft pointer exists on the version table only
	assert.True(t, st.HasColumn(ctx, "pages_versions", "record_id"))
	assert.False(t, st.HasColumn(ctx, "pages_drafts", "record_id"))
	assert.False(t, st.HasColumn(ctx, "pages_published", "record_id"))
}

func TestAlterSchemas(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	err := m.AlterSchemas(ctx, "pages", func(tb *revisor.TableBuilder, rc revisor.Context) {
		tb.String("summary").Nullable()
	})
	require.NoError(t, err)

	for _, table := range m.Config().AllTablesFor("pages") {
		assert.True(t, m.Store().HasColumn(ctx, table, "summary"), table)
	}
}

func TestDropSchemasIfExists(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	require.NoError(t, m.DropSchemasIfExists(ctx, "pages"))
	for _, table := range m.Config().AllTablesFor("pages") {
		assert.False(t, m.Store().HasTable(ctx, table), table)
	}

	// dropping again is a no-op
	assert.NoError(t, m.DropSchemasIfExists(ctx, "pages"))
}

func TestTruncateAll(t *testing.T) {
	pages := pagesEntity()
	m := setup(t, pages, revisor.DefaultConfig())
	ctx := context.Background()

	draft, err := m.Create(ctx, pages, map[string]any{"title": "Home"})
	require.NoError(t, err)
	_, err = m.Publish(ctx, pages, draft.ID())
	require.NoError(t, err)

	require.NoError(t, m.TruncateAll(ctx, "pages"))

	drafts, err := m.List(ctx, pages)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	versions, err := m.Versions(ctx, pages, draft.ID())
	require.NoError(t, err)
	assert.Empty(t, versions)
}

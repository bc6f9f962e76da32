// Package revisor provides draft/version/published content lifecycle
// management on top of a relational database. Every base entity is backed by
// three physical tables: a draft table holding the working copies, a version
// table holding numbered historical snapshots, and a published table holding
// the publicly visible projection. The Manager moves and synchronizes record
// state across the three tables.
package revisor

import "context"

// Context selects which of the three physical tables an operation targets.
type Context string

const (
	ContextDraft     Context = "draft"
	ContextVersion   Context = "version"
	ContextPublished Context = "published"
)

func (c Context) Valid() bool {
	switch c {
	case ContextDraft, ContextVersion, ContextPublished:
		return true
	}
	return false
}

func (c Context) String() string {
	return string(c)
}

type tableContextKey struct{}

// WithTableContext returns a child context carrying rc as the active table
// context. The override is scoped to the derived context; callers holding the
// parent context are unaffected, so nesting and concurrent use are safe.
func WithTableContext(ctx context.Context, rc Context) context.Context {
	return context.WithValue(ctx, tableContextKey{}, rc)
}

// TableContext reports the explicitly set table context, if any.
func TableContext(ctx context.Context) (Context, bool) {
	rc, ok := ctx.Value(tableContextKey{}).(Context)
	return rc, ok
}

// InContext runs fn with rc as the active table context. The previous context
// is restored on every exit path simply because the override only lives on
// the derived context value.
func InContext(ctx context.Context, rc Context, fn func(ctx context.Context) error) error {
	return fn(WithTableContext(ctx, rc))
}

// InDraftContext runs fn against the draft tables.
func InDraftContext(ctx context.Context, fn func(ctx context.Context) error) error {
	return InContext(ctx, ContextDraft, fn)
}

// InVersionContext runs fn against the version tables.
func InVersionContext(ctx context.Context, fn func(ctx context.Context) error) error {
	return InContext(ctx, ContextVersion, fn)
}

// InPublishedContext runs fn against the published tables.
func InPublishedContext(ctx context.Context, fn func(ctx context.Context) error) error {
	return InContext(ctx, ContextPublished, fn)
}

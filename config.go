package revisor

import "context"

// Reserved column names shared by all three tables.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
)

// ColumnNames maps the auxiliary publishing and versioning fields to physical
// column names. Consumers must read these through the config rather than
// hardcoding names.
type ColumnNames struct {
	IsPublished   string
	PublishedAt   string
	PublisherType string
	PublisherID   string
	IsCurrent     string
	VersionNumber string
	RecordID      string
}

// DefaultColumnNames returns the standard auxiliary column names.
func DefaultColumnNames() ColumnNames {
	return ColumnNames{
		IsPublished:   "is_published",
		PublishedAt:   "published_at",
		PublisherType: "publisher_type",
		PublisherID:   "publisher_id",
		IsCurrent:     "is_current",
		VersionNumber: "version_number",
		RecordID:      "record_id",
	}
}

// publishing returns the columns that carry publish state. Version snapshots
// exclude them, and reverts never copy them back.
func (c ColumnNames) publishing() []string {
	return []string{c.IsPublished, c.PublishedAt, c.PublisherType, c.PublisherID}
}

// Config holds the global behaviour of a Manager. Per-entity overrides on
// Entity take precedence over the values here.
type Config struct {
	// DefaultContext is the table context used when none is set on the
	// context.Context of an operation.
	DefaultContext Context

	// TableSuffixes maps each context to the suffix appended to the base
	// entity name. An empty suffix leaves the base name unchanged.
	TableSuffixes map[Context]string

	PublishOnCreated bool
	PublishOnUpdated bool

	SaveNewVersionOnCreated bool
	SaveNewVersionOnUpdated bool

	// KeepVersions is the default retention policy for non-current versions.
	KeepVersions Retention

	Columns ColumnNames
}

// DefaultConfig returns a config with draft as the default context, the
// standard table suffixes, versioning on create/update enabled, publishing
// manual, and the ten most recent non-current versions retained.
func DefaultConfig() *Config {
	return &Config{
		DefaultContext: ContextDraft,
		TableSuffixes: map[Context]string{
			ContextDraft:     "_drafts",
			ContextVersion:   "_versions",
			ContextPublished: "_published",
		},
		PublishOnCreated:        false,
		PublishOnUpdated:        false,
		SaveNewVersionOnCreated: true,
		SaveNewVersionOnUpdated: true,
		KeepVersions:            KeepLatest(10),
		Columns:                 DefaultColumnNames(),
	}
}

// ActiveContext resolves the table context for an operation: the explicit
// value carried on ctx if present, else the configured default.
func (c *Config) ActiveContext(ctx context.Context) Context {
	if rc, ok := TableContext(ctx); ok {
		return rc
	}
	if c.DefaultContext.Valid() {
		return c.DefaultContext
	}
	return ContextDraft
}

// Retention controls how many non-current versions survive pruning.
type Retention struct {
	mode retentionMode
	keep int
}

type retentionMode int

const (
	retainLatest retentionMode = iota
	retainAll
	retainNone
)

// KeepAll disables pruning entirely.
func KeepAll() Retention { return Retention{mode: retainAll} }

// KeepNone makes every version prunable, including the current one.
func KeepNone() Retention { return Retention{mode: retainNone} }

// KeepLatest keeps the n most recently numbered non-current versions.
func KeepLatest(n int) Retention {
	if n < 0 {
		n = 0
	}
	return Retention{mode: retainLatest, keep: n}
}

// All reports whether the policy never prunes.
func (r Retention) All() bool { return r.mode == retainAll }

// None reports whether the policy prunes every version.
func (r Retention) None() bool { return r.mode == retainNone }

// Limit returns the number of retained non-current versions and whether the
// policy is count based.
func (r Retention) Limit() (int, bool) {
	return r.keep, r.mode == retainLatest
}

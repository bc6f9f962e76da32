package revisor

import (
	"time"

	"github.com/emrgen/revisor/store"
)

// Record is one row from a draft, version or published table, carried as a
// schema-generic attribute map plus enough metadata to interpret the
// auxiliary columns.
type Record struct {
	base   string
	kind   Context
	attrs  store.Row
	cols   ColumnNames
	hidden []string
}

// NewRecord wraps a raw row for the given entity and table context.
func NewRecord(e *Entity, cfg *Config, kind Context, attrs store.Row) *Record {
	return &Record{
		base:   e.Base(),
		kind:   kind,
		attrs:  attrs,
		cols:   cfg.Columns,
		hidden: e.Hidden(),
	}
}

func (r *Record) Base() string { return r.base }

// Kind reports which of the three tables the record came from.
func (r *Record) Kind() Context { return r.kind }

func (r *Record) IsDraft() bool           { return r.kind == ContextDraft }
func (r *Record) IsVersion() bool         { return r.kind == ContextVersion }
func (r *Record) IsPublishedRecord() bool { return r.kind == ContextPublished }

// ID returns the primary key value.
func (r *Record) ID() any { return r.attrs[ColumnID] }

// Get returns a raw attribute value.
func (r *Record) Get(column string) (any, bool) {
	v, ok := r.attrs[column]
	return v, ok
}

// Set writes a raw attribute value.
func (r *Record) Set(column string, v any) {
	r.attrs[column] = v
}

// String returns an entity column as a string, empty when absent or null.
func (r *Record) String(column string) string {
	if v, ok := r.attrs[column]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Attributes returns a copy of the full attribute map, hidden columns
// included.
func (r *Record) Attributes() store.Row {
	out := make(store.Row, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// PublicAttributes returns a copy of the attribute map without the entity's
// hidden columns. Engine copies between tables never use this.
func (r *Record) PublicAttributes() store.Row {
	out := r.Attributes()
	for _, h := range r.hidden {
		delete(out, h)
	}
	return out
}

// attributesExcluding copies the attribute map minus the given columns.
func (r *Record) attributesExcluding(columns ...string) store.Row {
	out := r.Attributes()
	for _, c := range columns {
		delete(out, c)
	}
	return out
}

func (r *Record) IsPublished() bool {
	return asBool(r.attrs[r.cols.IsPublished])
}

func (r *Record) IsCurrent() bool {
	return asBool(r.attrs[r.cols.IsCurrent])
}

// PublishedAt returns the publish timestamp, ok false when unpublished.
func (r *Record) PublishedAt() (time.Time, bool) {
	return asTime(r.attrs[r.cols.PublishedAt])
}

// Publisher returns the polymorphic publisher reference.
func (r *Record) Publisher() (kind string, id any, ok bool) {
	t := r.attrs[r.cols.PublisherType]
	if t == nil {
		return "", nil, false
	}
	s, _ := t.(string)
	return s, r.attrs[r.cols.PublisherID], s != ""
}

// VersionNumber returns the version pointer, ok false when null.
func (r *Record) VersionNumber() (int, bool) {
	v := r.attrs[r.cols.VersionNumber]
	if v == nil {
		return 0, false
	}
	return int(asInt64(v)), true
}

// RecordID returns the owning draft id of a version record.
func (r *Record) RecordID() any {
	return r.attrs[r.cols.RecordID]
}

func (r *Record) CreatedAt() time.Time {
	t, _ := asTime(r.attrs[ColumnCreatedAt])
	return t
}

func (r *Record) UpdatedAt() time.Time {
	t, _ := asTime(r.attrs[ColumnUpdatedAt])
	return t
}

// DeletedAt returns the soft-delete timestamp, ok false when the record is
// not trashed.
func (r *Record) DeletedAt() (time.Time, bool) {
	return asTime(r.attrs[ColumnDeletedAt])
}

// IsRevised reports whether the draft changed after its last publish.
func (r *Record) IsRevised() bool {
	publishedAt, ok := r.PublishedAt()
	if !ok {
		return false
	}
	return r.UpdatedAt().After(publishedAt)
}

func (r *Record) IsUnpublishedOrRevised() bool {
	return !r.IsPublished() || r.IsRevised()
}

// Statuses reports the lifecycle states of a draft: draft, published,
// published+revised.
func (r *Record) Statuses() []string {
	if !r.IsPublished() {
		return []string{"draft"}
	}
	if !r.IsRevised() {
		return []string{"published"}
	}
	return []string{"published", "revised"}
}

// Database drivers hand back different scalar shapes per dialect; the
// coercions below normalize them.

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t == "1" || t == "true"
	}
	return false
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, !parsed.IsZero()
			}
		}
	}
	return time.Time{}, false
}

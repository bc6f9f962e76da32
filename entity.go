package revisor

// KeyKind controls how primary keys are assigned for an entity.
type KeyKind int

const (
	// KeyUUID generates uuid string keys for new drafts and versions.
	KeyUUID KeyKind = iota
	// KeyNatural leaves key assignment to the caller. Drafts created without
	// an id are rejected with ErrMissingKey.
	KeyNatural
)

// Entity describes one versioned base entity: its base table name, key
// scheme, soft-delete capability and per-entity policy overrides. Overrides
// left nil fall back to the Config defaults.
type Entity struct {
	base       string
	key        KeyKind
	softDelete bool
	hidden     []string

	publishOnCreated        *bool
	publishOnUpdated        *bool
	saveNewVersionOnCreated *bool
	saveNewVersionOnUpdated *bool
	keepVersions            *Retention
}

// NewEntity declares a base entity with uuid keys and hard deletes.
func NewEntity(base string) *Entity {
	return &Entity{base: base, key: KeyUUID}
}

func (e *Entity) Base() string { return e.base }

func (e *Entity) Key() KeyKind { return e.key }

// WithNaturalKey makes the caller responsible for assigning draft ids.
func (e *Entity) WithNaturalKey() *Entity {
	e.key = KeyNatural
	return e
}

// WithSoftDeletes gives all three tables a nullable deleted_at column and
// makes deletes reversible via Restore.
func (e *Entity) WithSoftDeletes() *Entity {
	e.softDelete = true
	return e
}

func (e *Entity) SoftDeletes() bool { return e.softDelete }

// WithHidden marks columns that Record.PublicAttributes omits. Engine copies
// between tables always include them.
func (e *Entity) WithHidden(columns ...string) *Entity {
	e.hidden = append(e.hidden, columns...)
	return e
}

func (e *Entity) Hidden() []string { return e.hidden }

// PublishOnCreated overrides the global publish-on-create default.
func (e *Entity) PublishOnCreated(b bool) *Entity {
	e.publishOnCreated = &b
	return e
}

// PublishOnUpdated overrides the global publish-on-update default.
func (e *Entity) PublishOnUpdated(b bool) *Entity {
	e.publishOnUpdated = &b
	return e
}

// PublishOnSaved overrides both publish-on-create and publish-on-update.
func (e *Entity) PublishOnSaved(b bool) *Entity {
	return e.PublishOnCreated(b).PublishOnUpdated(b)
}

// SaveNewVersionOnCreated overrides the global version-on-create default.
func (e *Entity) SaveNewVersionOnCreated(b bool) *Entity {
	e.saveNewVersionOnCreated = &b
	return e
}

// SaveNewVersionOnUpdated overrides the global version-on-update default.
func (e *Entity) SaveNewVersionOnUpdated(b bool) *Entity {
	e.saveNewVersionOnUpdated = &b
	return e
}

// SaveNewVersionOnSaved overrides both version-on-create and version-on-update.
func (e *Entity) SaveNewVersionOnSaved(b bool) *Entity {
	return e.SaveNewVersionOnCreated(b).SaveNewVersionOnUpdated(b)
}

// KeepVersions overrides the global retention policy.
func (e *Entity) KeepVersions(r Retention) *Entity {
	e.keepVersions = &r
	return e
}

func (e *Entity) shouldPublishOnCreated(cfg *Config) bool {
	if e.publishOnCreated != nil {
		return *e.publishOnCreated
	}
	return cfg.PublishOnCreated
}

func (e *Entity) shouldPublishOnUpdated(cfg *Config) bool {
	if e.publishOnUpdated != nil {
		return *e.publishOnUpdated
	}
	return cfg.PublishOnUpdated
}

func (e *Entity) shouldSaveNewVersionOnCreated(cfg *Config) bool {
	if e.saveNewVersionOnCreated != nil {
		return *e.saveNewVersionOnCreated
	}
	return cfg.SaveNewVersionOnCreated
}

func (e *Entity) shouldSaveNewVersionOnUpdated(cfg *Config) bool {
	if e.saveNewVersionOnUpdated != nil {
		return *e.saveNewVersionOnUpdated
	}
	return cfg.SaveNewVersionOnUpdated
}

func (e *Entity) retention(cfg *Config) Retention {
	if e.keepVersions != nil {
		return *e.keepVersions
	}
	return cfg.KeepVersions
}

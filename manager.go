package revisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emrgen/revisor/cache"
	"github.com/emrgen/revisor/store"
)

// Option configures a Manager.
type Option func(*Manager)

// WithActorProvider sets the identity source stamped onto published records.
func WithActorProvider(p ActorProvider) Option {
	return func(m *Manager) { m.actors = p }
}

// WithPublishedCache attaches a read cache for published projections.
func WithPublishedCache(c cache.PublishedCache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithStore replaces the default gorm-backed store.
func WithStore(st store.Store) Option {
	return func(m *Manager) { m.store = st }
}

// Manager coordinates the publishing and versioning engines over the three
// tables of each registered entity. Every logical operation runs inside a
// single store transaction, so a failure rolls back all cross-table effects.
type Manager struct {
	cfg         *Config
	store       store.Store
	hooks       *Hooks
	actors      ActorProvider
	cache       cache.PublishedCache
	publisher   *Publisher
	versioner   *Versioner
	provisioner *Provisioner

	mu       sync.RWMutex
	entities map[string]*Entity
}

// New creates a Manager over a gorm connection. A nil cfg gets the defaults.
func New(db *gorm.DB, cfg *Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{
		cfg:      cfg,
		hooks:    NewHooks(),
		entities: make(map[string]*Entity),
	}
	if db != nil {
		m.store = store.NewGormStore(db)
	}
	for _, opt := range opts {
		opt(m)
	}
	m.publisher = NewPublisher(cfg, m.store, m.hooks, m.actors)
	m.versioner = NewVersioner(cfg, m.store, m.hooks)
	m.provisioner = NewProvisioner(cfg, m.store)
	return m
}

// Register makes an entity known to the manager so background jobs can
// enumerate it.
func (m *Manager) Register(e *Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.Base()] = e
}

// Entity looks up a registered entity by base name.
func (m *Manager) Entity(base string) (*Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[base]
	if !ok {
		return nil, fmt.Errorf("%s: %w", base, ErrEntityNotRegistered)
	}
	return e, nil
}

// Entities returns all registered entities.
func (m *Manager) Entities() []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	return out
}

func (m *Manager) Config() *Config           { return m.cfg }
func (m *Manager) Hooks() *Hooks             { return m.hooks }
func (m *Manager) Store() store.Store        { return m.store }
func (m *Manager) Publisher() *Publisher     { return m.publisher }
func (m *Manager) Versioner() *Versioner     { return m.versioner }
func (m *Manager) Provisioner() *Provisioner { return m.provisioner }

// CreateSchemas provisions the three tables for an entity.
func (m *Manager) CreateSchemas(ctx context.Context, e *Entity, fn ColumnFunc) error {
	return m.provisioner.CreateSchemas(ctx, e, fn)
}

// AlterSchemas applies additive column changes to the three tables.
func (m *Manager) AlterSchemas(ctx context.Context, base string, fn ColumnFunc) error {
	return m.provisioner.AlterSchemas(ctx, base, fn)
}

// DropSchemasIfExists drops the three tables.
func (m *Manager) DropSchemasIfExists(ctx context.Context, base string) error {
	return m.provisioner.DropSchemasIfExists(ctx, base)
}

// TruncateAll clears the three tables.
func (m *Manager) TruncateAll(ctx context.Context, base string) error {
	return m.provisioner.TruncateAll(ctx, base)
}

// Create inserts a new draft and applies the configured publish/version
// automation. Publishing is evaluated before version recording so a snapshot
// taken on create reflects the just-applied publish state.
func (m *Manager) Create(ctx context.Context, e *Entity, attrs store.Row) (*Record, error) {
	cols := m.cfg.Columns
	row := make(store.Row, len(attrs)+6)
	for k, v := range attrs {
		row[k] = v
	}
	if row[ColumnID] == nil {
		if e.Key() != KeyUUID {
			return nil, fmt.Errorf("create %s: %w", e.Base(), ErrMissingKey)
		}
		row[ColumnID] = uuid.New().String()
	}
	now := time.Now().UTC()
	row[ColumnCreatedAt] = now
	row[ColumnUpdatedAt] = now
	if _, ok := row[cols.IsPublished]; !ok {
		row[cols.IsPublished] = false
	}

	rec := NewRecord(e, m.cfg, ContextDraft, row)
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		if err := m.hooks.Fire(ctx, EventCreating, rec); err != nil {
			return err
		}
		if err := m.hooks.Fire(ctx, EventSaving, rec); err != nil {
			return err
		}
		// drafts are always current by definition
		rec.Set(cols.IsCurrent, true)
		if err := tx.Insert(ctx, m.cfg.DraftTableFor(e.Base()), rec.Attributes()); err != nil {
			return err
		}
		if err := m.hooks.Fire(ctx, EventCreated, rec); err != nil {
			return err
		}

		if e.shouldPublishOnCreated(m.cfg) {
			cur, err := m.publishAndSyncTx(ctx, tx, e, rec)
			if err != nil {
				return err
			}
			rec = cur
		}
		if e.shouldSaveNewVersionOnCreated(m.cfg) {
			if _, ok := rec.VersionNumber(); !ok {
				if _, err := m.versioner.saveNewVersionTx(ctx, tx, e, rec); err != nil {
					return err
				}
			}
		}

		var err error
		out, err = refreshRecord(ctx, tx, m.cfg, e, ContextDraft, rec.ID())
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cacheSync(ctx, e, out)
	return out, nil
}

// Update writes entity columns onto the draft and applies the configured
// publish/version automation: publish first, then a new version or a sync of
// the current one.
func (m *Manager) Update(ctx context.Context, e *Entity, id any, attrs store.Row) (*Record, error) {
	cols := m.cfg.Columns
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, id)
		if err != nil {
			return err
		}
		if err := m.hooks.Fire(ctx, EventUpdating, draft); err != nil {
			return err
		}
		if err := m.hooks.Fire(ctx, EventSaving, draft); err != nil {
			return err
		}

		values := make(store.Row, len(attrs)+2)
		for k, v := range attrs {
			values[k] = v
		}
		delete(values, ColumnID)
		values[ColumnUpdatedAt] = time.Now().UTC()
		values[cols.IsCurrent] = true
		if err := tx.Update(ctx, m.cfg.DraftTableFor(e.Base()), id, values); err != nil {
			return err
		}
		for k, v := range values {
			draft.Set(k, v)
		}
		if err := m.hooks.Fire(ctx, EventUpdated, draft); err != nil {
			return err
		}

		if e.shouldPublishOnUpdated(m.cfg) {
			draft, err = m.publishAndSyncTx(ctx, tx, e, draft)
			if err != nil {
				return err
			}
		}
		if e.shouldSaveNewVersionOnUpdated(m.cfg) {
			if _, err := m.versioner.saveNewVersionTx(ctx, tx, e, draft); err != nil {
				return err
			}
		} else {
			if _, err := m.versioner.syncTx(ctx, tx, e, draft); err != nil {
				return err
			}
		}

		out, err = refreshRecord(ctx, tx, m.cfg, e, ContextDraft, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cacheSync(ctx, e, out)
	return out, nil
}

// Find retrieves a record from the table selected by the active context.
// Published reads go through the cache when one is attached.
func (m *Manager) Find(ctx context.Context, e *Entity, id any) (*Record, error) {
	rc := m.cfg.ActiveContext(ctx)
	if rc == ContextPublished && m.cache != nil {
		row, err := m.cache.Get(ctx, e.Base(), id)
		if err != nil {
			logrus.Errorf("published cache get %s %v: %v", e.Base(), id, err)
		} else if row != nil {
			return NewRecord(e, m.cfg, ContextPublished, row), nil
		}
	}

	table := m.cfg.TableFor(e.Base(), rc)
	row, err := m.store.FindBy(ctx, table, aliveConds(e, store.Row{ColumnID: id}))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s %s %v: %w", rc, e.Base(), id, ErrRecordNotFound)
	}
	rec := NewRecord(e, m.cfg, rc, row)

	if rc == ContextPublished && m.cache != nil {
		if err := m.cache.Set(ctx, e.Base(), id, row); err != nil {
			logrus.Errorf("published cache set %s %v: %v", e.Base(), id, err)
		}
	}
	return rec, nil
}

// List retrieves all live records from the table selected by the active
// context.
func (m *Manager) List(ctx context.Context, e *Entity) ([]*Record, error) {
	rc := m.cfg.ActiveContext(ctx)
	rows, err := m.store.ListBy(ctx, m.cfg.TableFor(e.Base(), rc), aliveConds(e, store.Row{}), ColumnCreatedAt+" ASC")
	if err != nil {
		return nil, err
	}
	return m.wrapRows(e, rc, rows), nil
}

// ListPublished returns drafts currently flagged published.
func (m *Manager) ListPublished(ctx context.Context, e *Entity) ([]*Record, error) {
	return m.listDraftsByFlag(ctx, e, true)
}

// ListUnpublished returns drafts not currently published.
func (m *Manager) ListUnpublished(ctx context.Context, e *Entity) ([]*Record, error) {
	return m.listDraftsByFlag(ctx, e, false)
}

func (m *Manager) listDraftsByFlag(ctx context.Context, e *Entity, published bool) ([]*Record, error) {
	cols := m.cfg.Columns
	rows, err := m.store.ListBy(ctx, m.cfg.DraftTableFor(e.Base()),
		aliveConds(e, store.Row{cols.IsPublished: published}), ColumnCreatedAt+" ASC")
	if err != nil {
		return nil, err
	}
	return m.wrapRows(e, ContextDraft, rows), nil
}

// ListUnpublishedOrRevised returns drafts that are either unpublished or
// changed since their last publish.
func (m *Manager) ListUnpublishedOrRevised(ctx context.Context, e *Entity) ([]*Record, error) {
	cols := m.cfg.Columns
	query := fmt.Sprintf("%s = ? OR %s > %s", cols.IsPublished, ColumnUpdatedAt, cols.PublishedAt)
	if e.SoftDeletes() {
		query = "(" + query + ") AND " + ColumnDeletedAt + " IS NULL"
	}
	rows, err := m.store.ListWhere(ctx, m.cfg.DraftTableFor(e.Base()), query, []any{false}, ColumnCreatedAt+" ASC")
	if err != nil {
		return nil, err
	}
	return m.wrapRows(e, ContextDraft, rows), nil
}

// Versions returns the draft's version history, oldest first.
func (m *Manager) Versions(ctx context.Context, e *Entity, draftID any) ([]*Record, error) {
	cols := m.cfg.Columns
	rows, err := m.store.ListBy(ctx, m.cfg.VersionTableFor(e.Base()),
		aliveConds(e, store.Row{cols.RecordID: draftID}), cols.VersionNumber+" ASC")
	if err != nil {
		return nil, err
	}
	return m.wrapRows(e, ContextVersion, rows), nil
}

// CurrentVersion returns the draft's current version.
func (m *Manager) CurrentVersion(ctx context.Context, e *Entity, draftID any) (*Record, error) {
	cur, err := m.versioner.currentVersionTx(ctx, m.store, e, draftID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("current version %s %v: %w", e.Base(), draftID, ErrRecordNotFound)
	}
	return cur, nil
}

// PublishedRecord returns the published projection related to a draft or
// version record.
func (m *Manager) PublishedRecord(ctx context.Context, e *Entity, rec *Record) (*Record, error) {
	if rec.IsPublishedRecord() {
		return nil, fmt.Errorf("published record of %s: %w", e.Base(), ErrWrongContext)
	}
	return m.relatedRecord(ctx, e, rec, ContextPublished)
}

// DraftRecord returns the draft related to a version or published record.
func (m *Manager) DraftRecord(ctx context.Context, e *Entity, rec *Record) (*Record, error) {
	if rec.IsDraft() {
		return nil, fmt.Errorf("draft record of %s: %w", e.Base(), ErrWrongContext)
	}
	return m.relatedRecord(ctx, e, rec, ContextDraft)
}

func (m *Manager) relatedRecord(ctx context.Context, e *Entity, rec *Record, rc Context) (*Record, error) {
	key := rec.ID()
	if rec.IsVersion() {
		key = rec.RecordID()
	}
	row, err := m.store.FindBy(ctx, m.cfg.TableFor(e.Base(), rc), aliveConds(e, store.Row{ColumnID: key}))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s %s %v: %w", rc, e.Base(), key, ErrRecordNotFound)
	}
	return NewRecord(e, m.cfg, rc, row), nil
}

// Publish promotes the draft to the published table and syncs the current
// version's publish-state mirror.
func (m *Manager) Publish(ctx context.Context, e *Entity, id any) (*Record, error) {
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, id)
		if err != nil {
			return err
		}
		out, err = m.publishAndSyncTx(ctx, tx, e, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cacheSync(ctx, e, out)
	return out, nil
}

// Unpublish demotes the draft, removes the published projection and syncs
// the current version's publish-state mirror.
func (m *Manager) Unpublish(ctx context.Context, e *Entity, id any) (*Record, error) {
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, id)
		if err != nil {
			return err
		}
		out, err = m.publisher.unpublishTx(ctx, tx, e, draft, true)
		if err != nil {
			return err
		}
		_, err = m.versioner.syncTx(ctx, tx, e, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cacheEvict(ctx, e, id)
	return out, nil
}

func (m *Manager) publishAndSyncTx(ctx context.Context, tx store.Store, e *Entity, draft *Record) (*Record, error) {
	cur, err := m.publisher.publishTx(ctx, tx, e, draft)
	if err != nil {
		return nil, err
	}
	if _, err := m.versioner.syncTx(ctx, tx, e, cur); err != nil {
		return nil, err
	}
	return refreshRecord(ctx, tx, m.cfg, e, ContextDraft, cur.ID())
}

// SaveNewVersion snapshots the draft into a new version.
func (m *Manager) SaveNewVersion(ctx context.Context, e *Entity, id any) (*Record, error) {
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, id)
		if err != nil {
			return err
		}
		out, err = m.versioner.saveNewVersionTx(ctx, tx, e, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RevertToVersion restores the draft from the version with the given id.
func (m *Manager) RevertToVersion(ctx context.Context, e *Entity, id any, versionID any) (*Record, error) {
	return m.revert(ctx, e, id, store.Row{ColumnID: versionID})
}

// RevertToVersionNumber restores the draft from the version with the given
// number.
func (m *Manager) RevertToVersionNumber(ctx context.Context, e *Entity, id any, number int) (*Record, error) {
	return m.revert(ctx, e, id, store.Row{m.cfg.Columns.VersionNumber: number})
}

func (m *Manager) revert(ctx context.Context, e *Entity, id any, conds store.Row) (*Record, error) {
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, id)
		if err != nil {
			return err
		}
		version, err := m.versioner.getVersionTx(ctx, tx, e, draft, conds)
		if err != nil {
			return err
		}
		out, err = m.versioner.revertTx(ctx, tx, e, draft, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RevertDraftToThisVersion restores the owning draft from a version record
// handle.
func (m *Manager) RevertDraftToThisVersion(ctx context.Context, e *Entity, version *Record) (*Record, error) {
	if !version.IsVersion() {
		return nil, fmt.Errorf("revert %s from a %s record: %w", e.Base(), version.Kind(), ErrWrongContext)
	}
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, version.RecordID())
		if err != nil {
			return err
		}
		out, err = m.versioner.revertTx(ctx, tx, e, draft, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SyncToCurrentVersion pushes the draft's latest content onto its current
// version row.
func (m *Manager) SyncToCurrentVersion(ctx context.Context, e *Entity, id any) (*Record, error) {
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, id)
		if err != nil {
			return err
		}
		out, err = m.versioner.syncTx(ctx, tx, e, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PruneVersions applies the retention policy to a draft's history.
func (m *Manager) PruneVersions(ctx context.Context, e *Entity, id any) error {
	return m.store.Transaction(ctx, func(tx store.Store) error {
		draft, err := m.getDraftTx(ctx, tx, e, id)
		if err != nil {
			return err
		}
		return m.versioner.pruneTx(ctx, tx, e, draft)
	})
}

// PrunableVersions lists the versions the retention policy would delete.
func (m *Manager) PrunableVersions(ctx context.Context, e *Entity, id any) ([]*Record, error) {
	return m.versioner.PrunableVersions(ctx, e, id)
}

// Delete removes the record the active context points at, honoring the
// entity's soft-delete capability, and cascades per record kind: a draft
// deletion takes its published projection and versions along; a version
// deletion nulls matching version pointers; a published deletion marks the
// draft and its current version unpublished.
func (m *Manager) Delete(ctx context.Context, e *Entity, id any) error {
	return m.delete(ctx, e, id, e.SoftDeletes())
}

// ForceDelete removes the record and its cascade targets permanently.
func (m *Manager) ForceDelete(ctx context.Context, e *Entity, id any) error {
	return m.delete(ctx, e, id, false)
}

func (m *Manager) delete(ctx context.Context, e *Entity, id any, soft bool) error {
	rc := m.cfg.ActiveContext(ctx)
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		switch rc {
		case ContextVersion:
			return m.deleteVersionRecordTx(ctx, tx, e, id, soft)
		case ContextPublished:
			return m.deletePublishedTx(ctx, tx, e, id, soft)
		default:
			return m.deleteDraftTx(ctx, tx, e, id, soft)
		}
	})
	if err != nil {
		return err
	}
	m.cacheEvict(ctx, e, id)
	return nil
}

func (m *Manager) deleteDraftTx(ctx context.Context, tx store.Store, e *Entity, id any, soft bool) error {
	rec, err := refreshRecord(ctx, tx, m.cfg, e, ContextDraft, id)
	if err != nil {
		return err
	}
	if err := m.hooks.Fire(ctx, EventDeleting, rec); err != nil {
		return err
	}
	if err := tx.Delete(ctx, m.cfg.DraftTableFor(e.Base()), id, soft); err != nil {
		return err
	}
	// cascade quietly: no pointer cleanup while the whole family goes away
	if err := tx.Delete(ctx, m.cfg.PublishedTableFor(e.Base()), id, soft); err != nil {
		return err
	}
	cols := m.cfg.Columns
	if err := tx.DeleteBy(ctx, m.cfg.VersionTableFor(e.Base()), store.Row{cols.RecordID: id}, soft); err != nil {
		return err
	}
	return m.hooks.Fire(ctx, EventDeleted, rec)
}

func (m *Manager) deleteVersionRecordTx(ctx context.Context, tx store.Store, e *Entity, id any, soft bool) error {
	rec, err := refreshRecord(ctx, tx, m.cfg, e, ContextVersion, id)
	if err != nil {
		return err
	}
	if err := m.hooks.Fire(ctx, EventDeleting, rec); err != nil {
		return err
	}
	if err := m.versioner.deleteVersionTx(ctx, tx, e, rec.Attributes(), soft); err != nil {
		return err
	}
	return m.hooks.Fire(ctx, EventDeleted, rec)
}

func (m *Manager) deletePublishedTx(ctx context.Context, tx store.Store, e *Entity, id any, soft bool) error {
	rec, err := refreshRecord(ctx, tx, m.cfg, e, ContextPublished, id)
	if err != nil {
		return err
	}
	if err := m.hooks.Fire(ctx, EventDeleting, rec); err != nil {
		return err
	}
	if err := tx.Delete(ctx, m.cfg.PublishedTableFor(e.Base()), id, soft); err != nil {
		return err
	}
	if err := m.hooks.Fire(ctx, EventDeleted, rec); err != nil {
		return err
	}

	// the projection is gone; mark the draft and its current version
	// unpublished without touching the published table again
	draftRow, err := tx.FindBy(ctx, m.cfg.DraftTableFor(e.Base()), aliveConds(e, store.Row{ColumnID: id}))
	if err != nil {
		return err
	}
	if draftRow != nil {
		draft := NewRecord(e, m.cfg, ContextDraft, draftRow)
		if _, err := m.publisher.unpublishTx(ctx, tx, e, draft, false); err != nil {
			return err
		}
	}
	cur, err := m.versioner.currentVersionTx(ctx, tx, e, id)
	if err != nil {
		return err
	}
	if cur != nil {
		cols := m.cfg.Columns
		err := tx.Update(ctx, m.cfg.VersionTableFor(e.Base()), cur.ID(), store.Row{
			cols.IsPublished:   false,
			cols.PublishedAt:   nil,
			cols.PublisherType: nil,
			cols.PublisherID:   nil,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Restore brings back a soft-deleted draft together with its published
// projection and version history.
func (m *Manager) Restore(ctx context.Context, e *Entity, id any) (*Record, error) {
	if !e.SoftDeletes() {
		return nil, fmt.Errorf("restore %s: %w", e.Base(), ErrSoftDeleteDisabled)
	}
	cols := m.cfg.Columns
	var out *Record
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.RestoreBy(ctx, m.cfg.DraftTableFor(e.Base()), store.Row{ColumnID: id}); err != nil {
			return err
		}
		rec, err := refreshRecord(ctx, tx, m.cfg, e, ContextDraft, id)
		if err != nil {
			return err
		}
		if err := tx.RestoreBy(ctx, m.cfg.PublishedTableFor(e.Base()), store.Row{ColumnID: id}); err != nil {
			return err
		}
		if err := tx.RestoreBy(ctx, m.cfg.VersionTableFor(e.Base()), store.Row{cols.RecordID: id}); err != nil {
			return err
		}
		if err := m.hooks.Fire(ctx, EventRestored, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.cacheEvict(ctx, e, id)
	return out, nil
}

func (m *Manager) getDraftTx(ctx context.Context, tx store.Store, e *Entity, id any) (*Record, error) {
	row, err := tx.FindBy(ctx, m.cfg.DraftTableFor(e.Base()), aliveConds(e, store.Row{ColumnID: id}))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("draft %s %v: %w", e.Base(), id, ErrRecordNotFound)
	}
	return NewRecord(e, m.cfg, ContextDraft, row), nil
}

func (m *Manager) wrapRows(e *Entity, rc Context, rows []store.Row) []*Record {
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewRecord(e, m.cfg, rc, row))
	}
	return out
}

// cacheSync refreshes or evicts the cached projection after a draft
// mutation.
func (m *Manager) cacheSync(ctx context.Context, e *Entity, draft *Record) {
	if m.cache == nil || draft == nil {
		return
	}
	if !draft.IsPublished() {
		m.cacheEvict(ctx, e, draft.ID())
		return
	}
	row, err := m.store.FindBy(ctx, m.cfg.PublishedTableFor(e.Base()), aliveConds(e, store.Row{ColumnID: draft.ID()}))
	if err != nil || row == nil {
		m.cacheEvict(ctx, e, draft.ID())
		return
	}
	if err := m.cache.Set(ctx, e.Base(), draft.ID(), row); err != nil {
		logrus.Errorf("published cache set %s %v: %v", e.Base(), draft.ID(), err)
	}
}

func (m *Manager) cacheEvict(ctx context.Context, e *Entity, id any) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, e.Base(), id); err != nil {
		logrus.Errorf("published cache evict %s %v: %v", e.Base(), id, err)
	}
}

package revisor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emrgen/revisor/store"
)

// Versioner snapshots draft records into the version table, numbers the
// snapshots, tracks the current version and prunes history per the retention
// policy.
type Versioner struct {
	cfg   *Config
	store store.Store
	hooks *Hooks
}

func NewVersioner(cfg *Config, st store.Store, hooks *Hooks) *Versioner {
	return &Versioner{cfg: cfg, store: st, hooks: hooks}
}

// SaveNewVersion snapshots the draft into the version table with the next
// version number, marks it current, updates the draft's version pointer and
// prunes old versions. The returned record is the new version. The only
// expected failure is a hook veto, reported as ErrVetoed.
func (v *Versioner) SaveNewVersion(ctx context.Context, e *Entity, draft *Record) (*Record, error) {
	var out *Record
	err := v.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		out, err = v.saveNewVersionTx(ctx, tx, e, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Versioner) saveNewVersionTx(ctx context.Context, tx store.Store, e *Entity, draft *Record) (*Record, error) {
	if !draft.IsDraft() {
		return nil, fmt.Errorf("save new version %s: %w", e.Base(), ErrWrongContext)
	}
	if err := v.hooks.Fire(ctx, EventSavingNewVersion, draft); err != nil {
		return nil, err
	}

	cols := v.cfg.Columns
	verTable := v.cfg.VersionTableFor(e.Base())
	draftTable := v.cfg.DraftTableFor(e.Base())

	// serialize number allocation per draft
	if err := tx.Lock(ctx, draftTable, draft.ID()); err != nil {
		return nil, err
	}
	max, err := tx.MaxInt(ctx, verTable, cols.VersionNumber, store.Row{cols.RecordID: draft.ID()})
	if err != nil {
		return nil, err
	}
	next := int(max) + 1

	excluded := append(cols.publishing(), ColumnID, ColumnDeletedAt)
	attrs := draft.attributesExcluding(excluded...)
	attrs[cols.RecordID] = draft.ID()
	attrs[cols.VersionNumber] = next
	attrs[cols.IsCurrent] = true
	if e.Key() == KeyUUID {
		attrs[ColumnID] = uuid.New().String()
	}

	// two-step single-current flip, atomic within the surrounding transaction
	_, err = tx.UpdateBy(ctx, verTable,
		store.Row{cols.RecordID: draft.ID(), cols.IsCurrent: true},
		store.Row{cols.IsCurrent: false})
	if err != nil {
		return nil, err
	}
	if err := tx.Insert(ctx, verTable, attrs); err != nil {
		return nil, err
	}

	if n, ok := draft.VersionNumber(); !ok || n != next {
		if err := tx.Update(ctx, draftTable, draft.ID(), store.Row{cols.VersionNumber: next}); err != nil {
			return nil, err
		}
		draft.Set(cols.VersionNumber, next)
	}

	version := NewRecord(e, v.cfg, ContextVersion, attrs)
	if err := v.pruneTx(ctx, tx, e, draft); err != nil {
		return nil, err
	}

	if err := v.hooks.Fire(ctx, EventSavedNewVersion, version); err != nil {
		return nil, err
	}
	return version, nil
}

// RevertToVersion restores the draft's content from the version with the
// given id. Publishing state is not reverted; content history and publish
// state are independent.
func (v *Versioner) RevertToVersion(ctx context.Context, e *Entity, draft *Record, versionID any) (*Record, error) {
	var out *Record
	err := v.store.Transaction(ctx, func(tx store.Store) error {
		version, err := v.getVersionTx(ctx, tx, e, draft, store.Row{ColumnID: versionID})
		if err != nil {
			return err
		}
		out, err = v.revertTx(ctx, tx, e, draft, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RevertToVersionNumber restores the draft's content from the version with
// the given number.
func (v *Versioner) RevertToVersionNumber(ctx context.Context, e *Entity, draft *Record, number int) (*Record, error) {
	cols := v.cfg.Columns
	var out *Record
	err := v.store.Transaction(ctx, func(tx store.Store) error {
		version, err := v.getVersionTx(ctx, tx, e, draft, store.Row{cols.VersionNumber: number})
		if err != nil {
			return err
		}
		out, err = v.revertTx(ctx, tx, e, draft, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Versioner) getVersionTx(ctx context.Context, tx store.Store, e *Entity, draft *Record, conds store.Row) (*Record, error) {
	cols := v.cfg.Columns
	conds[cols.RecordID] = draft.ID()
	row, err := tx.FindBy(ctx, v.cfg.VersionTableFor(e.Base()), aliveConds(e, conds))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s %v: %w", e.Base(), draft.ID(), ErrVersionNotFound)
	}
	return NewRecord(e, v.cfg, ContextVersion, row), nil
}

func (v *Versioner) revertTx(ctx context.Context, tx store.Store, e *Entity, draft *Record, version *Record) (*Record, error) {
	if !draft.IsDraft() {
		return nil, fmt.Errorf("revert %s: %w", e.Base(), ErrWrongContext)
	}
	if err := v.hooks.Fire(ctx, EventRevertingToVersion, version); err != nil {
		return nil, err
	}

	cols := v.cfg.Columns
	if err := tx.Lock(ctx, v.cfg.DraftTableFor(e.Base()), draft.ID()); err != nil {
		return nil, err
	}
	if err := v.setVersionAsCurrentTx(ctx, tx, e, draft, version); err != nil {
		return nil, err
	}

	excluded := append(cols.publishing(), ColumnID, cols.RecordID, ColumnDeletedAt)
	attrs := version.attributesExcluding(excluded...)
	attrs[ColumnUpdatedAt] = time.Now().UTC()
	if err := tx.Update(ctx, v.cfg.DraftTableFor(e.Base()), draft.ID(), attrs); err != nil {
		return nil, err
	}

	if err := v.hooks.Fire(ctx, EventRevertedToVersion, version); err != nil {
		return nil, err
	}
	return refreshRecord(ctx, tx, v.cfg, e, ContextDraft, draft.ID())
}

// setVersionAsCurrentTx flips the single-current pointer: every sibling loses
// is_current, the target gains it, and the draft's version pointer follows.
func (v *Versioner) setVersionAsCurrentTx(ctx context.Context, tx store.Store, e *Entity, draft *Record, version *Record) error {
	cols := v.cfg.Columns
	verTable := v.cfg.VersionTableFor(e.Base())

	_, err := tx.UpdateBy(ctx, verTable,
		store.Row{cols.RecordID: draft.ID(), cols.IsCurrent: true},
		store.Row{cols.IsCurrent: false})
	if err != nil {
		return err
	}
	if err := tx.Update(ctx, verTable, version.ID(), store.Row{cols.IsCurrent: true}); err != nil {
		return err
	}
	version.Set(cols.IsCurrent, true)

	target, _ := version.VersionNumber()
	if n, ok := draft.VersionNumber(); !ok || n != target {
		err := tx.Update(ctx, v.cfg.DraftTableFor(e.Base()), draft.ID(), store.Row{cols.VersionNumber: target})
		if err != nil {
			return err
		}
		draft.Set(cols.VersionNumber, target)
	}
	return nil
}

// SyncToCurrentVersionRecord copies the draft's latest content onto the
// current version row, creating a first version when none exists. When the
// synced version carries publish state, every other version of the draft is
// marked unpublished.
func (v *Versioner) SyncToCurrentVersionRecord(ctx context.Context, e *Entity, draft *Record) (*Record, error) {
	var out *Record
	err := v.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		out, err = v.syncTx(ctx, tx, e, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Versioner) syncTx(ctx context.Context, tx store.Store, e *Entity, draft *Record) (*Record, error) {
	if !draft.IsDraft() {
		return nil, fmt.Errorf("sync %s: %w", e.Base(), ErrWrongContext)
	}
	cols := v.cfg.Columns
	verTable := v.cfg.VersionTableFor(e.Base())

	current, err := v.currentVersionTx(ctx, tx, e, draft.ID())
	if err != nil {
		return nil, err
	}
	if current == nil {
		version, err := v.saveNewVersionTx(ctx, tx, e, draft)
		if err != nil {
			return nil, err
		}
		if draft.IsPublished() {
			// the fresh snapshot carries no publish state; mirror the draft's
			if err := v.mirrorPublishStateTx(ctx, tx, e, draft, version); err != nil {
				return nil, err
			}
		}
		return version, nil
	}

	if err := v.hooks.Fire(ctx, EventSyncingToCurrentVersion, current); err != nil {
		return nil, err
	}

	attrs := draft.attributesExcluding(ColumnID, cols.VersionNumber, ColumnDeletedAt)
	if asBool(attrs[cols.IsPublished]) {
		// published-state exclusivity across the draft's versions
		_, err = tx.UpdateBy(ctx, verTable,
			store.Row{cols.RecordID: draft.ID(), cols.IsPublished: true},
			store.Row{cols.IsPublished: false, cols.PublishedAt: nil, cols.PublisherType: nil, cols.PublisherID: nil})
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Update(ctx, verTable, current.ID(), attrs); err != nil {
		return nil, err
	}
	for k, val := range attrs {
		current.Set(k, val)
	}

	if err := v.hooks.Fire(ctx, EventSyncedToCurrentVersion, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (v *Versioner) mirrorPublishStateTx(ctx context.Context, tx store.Store, e *Entity, draft *Record, version *Record) error {
	cols := v.cfg.Columns
	verTable := v.cfg.VersionTableFor(e.Base())

	_, err := tx.UpdateBy(ctx, verTable,
		store.Row{cols.RecordID: draft.ID(), cols.IsPublished: true},
		store.Row{cols.IsPublished: false, cols.PublishedAt: nil, cols.PublisherType: nil, cols.PublisherID: nil})
	if err != nil {
		return err
	}

	number, _ := version.VersionNumber()
	mirror := store.Row{
		cols.IsPublished:   draft.attrs[cols.IsPublished],
		cols.PublishedAt:   draft.attrs[cols.PublishedAt],
		cols.PublisherType: draft.attrs[cols.PublisherType],
		cols.PublisherID:   draft.attrs[cols.PublisherID],
	}
	_, err = tx.UpdateBy(ctx, verTable,
		store.Row{cols.RecordID: draft.ID(), cols.VersionNumber: number},
		mirror)
	return err
}

// currentVersionTx returns the draft's current version, or nil when no
// version exists yet.
func (v *Versioner) currentVersionTx(ctx context.Context, tx store.Store, e *Entity, draftID any) (*Record, error) {
	cols := v.cfg.Columns
	row, err := tx.FindBy(ctx, v.cfg.VersionTableFor(e.Base()),
		aliveConds(e, store.Row{cols.RecordID: draftID, cols.IsCurrent: true}))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return NewRecord(e, v.cfg, ContextVersion, row), nil
}

// PrunableVersions returns the versions the retention policy would delete,
// oldest first.
func (v *Versioner) PrunableVersions(ctx context.Context, e *Entity, draftID any) ([]*Record, error) {
	rows, err := v.prunableRowsTx(ctx, v.store, e, draftID)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewRecord(e, v.cfg, ContextVersion, row))
	}
	return out, nil
}

func (v *Versioner) prunableRowsTx(ctx context.Context, tx store.Store, e *Entity, draftID any) ([]store.Row, error) {
	cols := v.cfg.Columns
	verTable := v.cfg.VersionTableFor(e.Base())
	ret := e.retention(v.cfg)

	if ret.All() {
		return nil, nil
	}
	if ret.None() {
		return tx.ListBy(ctx, verTable,
			aliveConds(e, store.Row{cols.RecordID: draftID}),
			cols.VersionNumber+" ASC")
	}

	keep, _ := ret.Limit()
	rows, err := tx.ListBy(ctx, verTable,
		aliveConds(e, store.Row{cols.RecordID: draftID, cols.IsCurrent: false}),
		cols.VersionNumber+" ASC")
	if err != nil {
		return nil, err
	}
	if len(rows) <= keep {
		return nil, nil
	}
	return rows[:len(rows)-keep], nil
}

// PruneVersions applies the retention policy to a draft's version history.
func (v *Versioner) PruneVersions(ctx context.Context, e *Entity, draft *Record) error {
	return v.store.Transaction(ctx, func(tx store.Store) error {
		return v.pruneTx(ctx, tx, e, draft)
	})
}

func (v *Versioner) pruneTx(ctx context.Context, tx store.Store, e *Entity, draft *Record) error {
	rows, err := v.prunableRowsTx(ctx, tx, e, draft.ID())
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := v.deleteVersionTx(ctx, tx, e, row, e.SoftDeletes()); err != nil {
			return err
		}
	}
	return nil
}

// deleteVersionTx removes one version row and performs the orphaned-pointer
// cleanup: a draft or published row pointing at the deleted version number
// loses its pointer. The cleanup runs for soft and hard deletes alike.
func (v *Versioner) deleteVersionTx(ctx context.Context, tx store.Store, e *Entity, verRow store.Row, soft bool) error {
	cols := v.cfg.Columns
	verTable := v.cfg.VersionTableFor(e.Base())

	if err := tx.Delete(ctx, verTable, verRow[ColumnID], soft); err != nil {
		return err
	}

	number := verRow[cols.VersionNumber]
	recordID := verRow[cols.RecordID]
	if number == nil || recordID == nil {
		return nil
	}
	for _, table := range []string{v.cfg.PublishedTableFor(e.Base()), v.cfg.DraftTableFor(e.Base())} {
		_, err := tx.UpdateBy(ctx, table,
			store.Row{ColumnID: recordID, cols.VersionNumber: number},
			store.Row{cols.VersionNumber: nil})
		if err != nil {
			return err
		}
	}
	return nil
}

// aliveConds narrows a condition map to non-trashed rows for soft-delete
// entities.
func aliveConds(e *Entity, conds store.Row) store.Row {
	if e.SoftDeletes() {
		conds[ColumnDeletedAt] = nil
	}
	return conds
}

package revisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/revisor/store"
)

// ActorProvider exposes the identity stamped onto records as their publisher.
type ActorProvider interface {
	// CurrentActor returns the acting identity as a polymorphic kind/id
	// pair; ok false means no actor is known.
	CurrentActor(ctx context.Context) (kind string, id any, ok bool)
}

// Publisher promotes draft records to the published table and back. All
// writes go through the store, so publishing never re-enters the lifecycle
// event chain.
type Publisher struct {
	cfg    *Config
	store  store.Store
	hooks  *Hooks
	actors ActorProvider
}

func NewPublisher(cfg *Config, st store.Store, hooks *Hooks, actors ActorProvider) *Publisher {
	return &Publisher{cfg: cfg, store: st, hooks: hooks, actors: actors}
}

// Publish marks the draft published and copies its full attribute set,
// hidden columns included, onto the published table. Safe to call
// repeatedly; the only expected failure is a hook veto, reported as
// ErrVetoed.
func (p *Publisher) Publish(ctx context.Context, e *Entity, draft *Record) (*Record, error) {
	var out *Record
	err := p.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		out, err = p.publishTx(ctx, tx, e, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Publisher) publishTx(ctx context.Context, tx store.Store, e *Entity, draft *Record) (*Record, error) {
	if !draft.IsDraft() {
		return nil, fmt.Errorf("publish %s: %w", e.Base(), ErrWrongContext)
	}
	if err := p.hooks.Fire(ctx, EventPublishing, draft); err != nil {
		return nil, err
	}

	cols := p.cfg.Columns
	now := time.Now().UTC()
	draft.Set(cols.IsPublished, true)
	draft.Set(cols.PublishedAt, now)

	var actorKind any
	var actorID any
	if p.actors != nil {
		if kind, id, ok := p.actors.CurrentActor(ctx); ok {
			actorKind, actorID = kind, id
		}
	}
	draft.Set(cols.PublisherType, actorKind)
	draft.Set(cols.PublisherID, actorID)

	pubTable := p.cfg.PublishedTableFor(e.Base())
	existing, err := tx.FindBy(ctx, pubTable, store.Row{ColumnID: draft.ID()})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := tx.Insert(ctx, pubTable, draft.Attributes()); err != nil {
			return nil, err
		}
	} else {
		values := draft.attributesExcluding(ColumnID)
		if e.SoftDeletes() {
			// a previously unpublished soft-deleted projection comes back
			values[ColumnDeletedAt] = nil
		}
		if err := tx.Update(ctx, pubTable, draft.ID(), values); err != nil {
			return nil, err
		}
	}

	// quiet-save the publish state onto the draft row
	err = tx.Update(ctx, p.cfg.DraftTableFor(e.Base()), draft.ID(), store.Row{
		cols.IsPublished:   true,
		cols.PublishedAt:   now,
		cols.PublisherType: actorKind,
		cols.PublisherID:   actorID,
	})
	if err != nil {
		return nil, err
	}

	if err := p.hooks.Fire(ctx, EventPublished, draft); err != nil {
		return nil, err
	}
	return refreshRecord(ctx, tx, p.cfg, e, ContextDraft, draft.ID())
}

// Unpublish clears the draft's publish state and removes the published
// projection. The projection is soft-deleted when the entity supports it,
// hard-deleted otherwise.
func (p *Publisher) Unpublish(ctx context.Context, e *Entity, draft *Record) (*Record, error) {
	var out *Record
	err := p.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		out, err = p.unpublishTx(ctx, tx, e, draft, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// unpublishTx clears publish state on the draft and, when deleteProjection is
// set, removes the published row. The published-deletion cascade passes
// deleteProjection false since its row is already gone.
func (p *Publisher) unpublishTx(ctx context.Context, tx store.Store, e *Entity, draft *Record, deleteProjection bool) (*Record, error) {
	if !draft.IsDraft() {
		return nil, fmt.Errorf("unpublish %s: %w", e.Base(), ErrWrongContext)
	}
	if err := p.hooks.Fire(ctx, EventUnpublishing, draft); err != nil {
		return nil, err
	}

	cols := p.cfg.Columns
	cleared := store.Row{
		cols.IsPublished:   false,
		cols.PublishedAt:   nil,
		cols.PublisherType: nil,
		cols.PublisherID:   nil,
	}
	for k, v := range cleared {
		draft.Set(k, v)
	}

	if deleteProjection {
		err := tx.Delete(ctx, p.cfg.PublishedTableFor(e.Base()), draft.ID(), e.SoftDeletes())
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Update(ctx, p.cfg.DraftTableFor(e.Base()), draft.ID(), cleared); err != nil {
		return nil, err
	}

	if err := p.hooks.Fire(ctx, EventUnpublished, draft); err != nil {
		return nil, err
	}
	return refreshRecord(ctx, tx, p.cfg, e, ContextDraft, draft.ID())
}

// refreshRecord re-reads a row after a mutation so callers always see the
// stored state.
func refreshRecord(ctx context.Context, st store.Store, cfg *Config, e *Entity, kind Context, id any) (*Record, error) {
	row, err := st.Get(ctx, cfg.TableFor(e.Base(), kind), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s %s %v: %w", kind, e.Base(), id, ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return NewRecord(e, cfg, kind, row), nil
}

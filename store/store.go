package store

import (
	"context"
	"errors"
)

// Row is a schema-generic table row keyed by column name.
type Row = map[string]any

// ErrNotFound is returned by Get and Lock when the row does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store is the narrow persistence contract the lifecycle engines depend on.
// All writes are quiet: the store never fires lifecycle hooks, which is what
// makes the engines' internal saves safe against re-entry.
type Store interface {
	// Dialect reports the database dialect name ("sqlite", "postgres").
	Dialect() string
	// Get retrieves a row by primary key.
	Get(ctx context.Context, table string, id any) (Row, error)
	// FindBy retrieves the first row matching conds, or nil when absent.
	FindBy(ctx context.Context, table string, conds Row) (Row, error)
	// ListBy retrieves all rows matching conds in the given order.
	ListBy(ctx context.Context, table string, conds Row, orderBy string) ([]Row, error)
	// ListWhere retrieves rows matching a raw condition in the given order.
	ListWhere(ctx context.Context, table string, query string, args []any, orderBy string) ([]Row, error)
	// Insert writes a new row.
	Insert(ctx context.Context, table string, row Row) error
	// Update writes values onto the row with the given primary key.
	Update(ctx context.Context, table string, id any, values Row) error
	// UpdateBy writes values onto all rows matching conds.
	UpdateBy(ctx context.Context, table string, conds Row, values Row) (int64, error)
	// Delete removes a row by primary key; soft marks deleted_at instead.
	Delete(ctx context.Context, table string, id any, soft bool) error
	// DeleteBy removes all rows matching conds; soft marks deleted_at instead.
	DeleteBy(ctx context.Context, table string, conds Row, soft bool) error
	// RestoreBy clears deleted_at on all rows matching conds, trashed included.
	RestoreBy(ctx context.Context, table string, conds Row) error
	// MaxInt returns the maximum value of an integer column over rows
	// matching conds, zero when no rows match.
	MaxInt(ctx context.Context, table string, column string, conds Row) (int64, error)
	// Lock takes a row-level write lock on the row with the given primary
	// key for the remainder of the surrounding transaction.
	Lock(ctx context.Context, table string, id any) error
	// Exec runs a raw statement, used by the schema provisioner.
	Exec(ctx context.Context, sql string, args ...any) error
	// HasTable reports whether a table exists.
	HasTable(ctx context.Context, table string) bool
	// HasColumn reports whether a column exists on a table.
	HasColumn(ctx context.Context, table string, column string) bool
	// Transaction runs fn atomically, rolling back on error.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

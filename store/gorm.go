package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

// GormStore implements Store over a gorm connection. Table names are passed
// through verbatim; they come from the revisor table router, never from user
// input.
type GormStore struct {
	db *gorm.DB
}

// DB exposes the underlying connection for schema inspection.
func (g *GormStore) DB() *gorm.DB {
	return g.db
}

func (g *GormStore) Dialect() string {
	return g.db.Dialector.Name()
}

func (g *GormStore) Get(ctx context.Context, table string, id any) (Row, error) {
	row := Row{}
	err := g.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (g *GormStore) FindBy(ctx context.Context, table string, conds Row) (Row, error) {
	row := Row{}
	err := g.db.WithContext(ctx).Table(table).Where(map[string]any(conds)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (g *GormStore) ListBy(ctx context.Context, table string, conds Row, orderBy string) ([]Row, error) {
	var rows []Row
	q := g.db.WithContext(ctx).Table(table)
	if len(conds) > 0 {
		q = q.Where(map[string]any(conds))
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (g *GormStore) ListWhere(ctx context.Context, table string, query string, args []any, orderBy string) ([]Row, error) {
	var rows []Row
	q := g.db.WithContext(ctx).Table(table)
	if query != "" {
		q = q.Where(query, args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (g *GormStore) Insert(ctx context.Context, table string, row Row) error {
	return g.db.WithContext(ctx).Table(table).Create(map[string]any(row)).Error
}

func (g *GormStore) Update(ctx context.Context, table string, id any, values Row) error {
	if len(values) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Table(table).Where("id = ?", id).Updates(map[string]any(values)).Error
}

func (g *GormStore) UpdateBy(ctx context.Context, table string, conds Row, values Row) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	res := g.db.WithContext(ctx).Table(table).Where(map[string]any(conds)).Updates(map[string]any(values))
	return res.RowsAffected, res.Error
}

func (g *GormStore) Delete(ctx context.Context, table string, id any, soft bool) error {
	return g.DeleteBy(ctx, table, Row{"id": id}, soft)
}

func (g *GormStore) DeleteBy(ctx context.Context, table string, conds Row, soft bool) error {
	if soft {
		_, err := g.UpdateBy(ctx, table, conds, Row{"deleted_at": time.Now().UTC()})
		return err
	}
	where, args := buildConds(conds)
	return g.db.WithContext(ctx).Exec("DELETE FROM "+table+where, args...).Error
}

func (g *GormStore) RestoreBy(ctx context.Context, table string, conds Row) error {
	_, err := g.UpdateBy(ctx, table, conds, Row{"deleted_at": nil})
	return err
}

func (g *GormStore) MaxInt(ctx context.Context, table string, column string, conds Row) (int64, error) {
	var max int64
	q := g.db.WithContext(ctx).Table(table)
	if len(conds) > 0 {
		q = q.Where(map[string]any(conds))
	}
	err := q.Select("COALESCE(MAX(" + column + "), 0)").Scan(&max).Error
	return max, err
}

func (g *GormStore) Lock(ctx context.Context, table string, id any) error {
	// sqlite serializes writers at the transaction level and rejects
	// FOR UPDATE syntax.
	if g.Dialect() == "sqlite" {
		return nil
	}
	row := Row{}
	err := g.db.WithContext(ctx).Table(table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *GormStore) Exec(ctx context.Context, sql string, args ...any) error {
	return g.db.WithContext(ctx).Exec(sql, args...).Error
}

func (g *GormStore) HasTable(ctx context.Context, table string) bool {
	return g.db.WithContext(ctx).Migrator().HasTable(table)
}

func (g *GormStore) HasColumn(ctx context.Context, table string, column string) bool {
	return g.db.WithContext(ctx).Migrator().HasColumn(table, column)
}

func (g *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// buildConds renders a deterministic WHERE clause from a condition map.
// nil values become IS NULL checks.
func buildConds(conds Row) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	var args []any
	for _, k := range keys {
		if conds[k] == nil {
			parts = append(parts, k+" IS NULL")
			continue
		}
		parts = append(parts, k+" = ?")
		args = append(args, conds[k])
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

package revisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/emrgen/revisor/store"
)

// ColumnFunc declares the entity-specific columns of a table. It is invoked
// once per physical table with the context being built, so column sets may
// differ per context when needed.
type ColumnFunc func(t *TableBuilder, rc Context)

// Provisioner creates, alters and drops the three physical tables of a base
// entity.
type Provisioner struct {
	cfg   *Config
	store store.Store
}

func NewProvisioner(cfg *Config, st store.Store) *Provisioner {
	return &Provisioner{cfg: cfg, store: st}
}

// CreateSchemas creates the draft, version and published tables for an
// entity. Each table receives the caller's columns plus the auxiliary
// publishing and versioning columns. The version table gets a record_id
// foreign key onto the draft table with cascade-on-delete, which is why the
// draft table is created first.
func (p *Provisioner) CreateSchemas(ctx context.Context, e *Entity, fn ColumnFunc) error {
	dialect := p.store.Dialect()
	cols := p.cfg.Columns
	draftTable := p.cfg.DraftTableFor(e.Base())

	build := func(rc Context) *TableBuilder {
		t := newTableBuilder(p.cfg.TableFor(e.Base(), rc), dialect, false)
		t.primaryKey(e.Key())
		if fn != nil {
			fn(t, rc)
		}
		t.Boolean(cols.IsPublished).Default("FALSE")
		t.Timestamp(cols.PublishedAt).Nullable()
		t.String(cols.PublisherType).Nullable()
		t.Column(cols.PublisherID, typeKey).Nullable()
		t.Boolean(cols.IsCurrent).Default("FALSE")
		t.Integer(cols.VersionNumber).Nullable().Index()
		if rc == ContextVersion {
			t.Boolean(cols.IsPublished).Index()
			t.Boolean(cols.IsCurrent).Index()
			t.foreignKey(cols.RecordID, e.Key(), draftTable)
		}
		t.Timestamp(ColumnCreatedAt)
		t.Timestamp(ColumnUpdatedAt)
		if e.SoftDeletes() {
			t.Timestamp(ColumnDeletedAt).Nullable().Index()
		}
		return t
	}

	for _, rc := range []Context{ContextDraft, ContextVersion, ContextPublished} {
		t := build(rc)
		for _, stmt := range t.statements() {
			if err := p.store.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create schema %s: %w", t.name, err)
			}
		}
		logrus.Infof("created table %s", t.name)
	}
	return nil
}

// AlterSchemas applies additive column changes to all three tables, version
// table first.
func (p *Provisioner) AlterSchemas(ctx context.Context, base string, fn ColumnFunc) error {
	dialect := p.store.Dialect()
	for _, rc := range []Context{ContextVersion, ContextPublished, ContextDraft} {
		t := newTableBuilder(p.cfg.TableFor(base, rc), dialect, true)
		fn(t, rc)
		for _, stmt := range t.statements() {
			if err := p.store.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("alter schema %s: %w", t.name, err)
			}
		}
	}
	return nil
}

// DropSchemasIfExists drops the three tables, version table first so the
// foreign key onto the draft table never dangles.
func (p *Provisioner) DropSchemasIfExists(ctx context.Context, base string) error {
	for _, table := range p.cfg.AllTablesFor(base) {
		if err := p.store.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop schema %s: %w", table, err)
		}
	}
	return nil
}

// TruncateAll deletes every row from the three tables, version table first.
func (p *Provisioner) TruncateAll(ctx context.Context, base string) error {
	for _, table := range p.cfg.AllTablesFor(base) {
		if err := p.store.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// Abstract column type keys, resolved per dialect at render time.
const (
	typeString    = "string"
	typeText      = "text"
	typeInteger   = "integer"
	typeBigInt    = "bigint"
	typeBoolean   = "boolean"
	typeTimestamp = "timestamp"
	typeFloat     = "float"
	typeKey       = "key"
)

// TableBuilder collects column definitions for one physical table and renders
// them as dialect-specific DDL.
type TableBuilder struct {
	name    string
	dialect string
	alter   bool
	cols    []*Column
	fk      *foreignKey
}

type foreignKey struct {
	column   string
	refTable string
	kind     KeyKind
}

// Column is a single column under construction.
type Column struct {
	name       string
	kind       string
	nullable   bool
	def        string
	indexed    bool
	primary    bool
	autoInc    bool
}

func newTableBuilder(name, dialect string, alter bool) *TableBuilder {
	return &TableBuilder{name: name, dialect: dialect, alter: alter}
}

// Column declares a column with an abstract type key. Redeclaring a name
// returns the existing column so auxiliary defaults stay adjustable.
func (t *TableBuilder) Column(name, kind string) *Column {
	for _, c := range t.cols {
		if c.name == name {
			c.kind = kind
			return c
		}
	}
	c := &Column{name: name, kind: kind}
	t.cols = append(t.cols, c)
	return c
}

func (t *TableBuilder) String(name string) *Column     { return t.Column(name, typeString) }
func (t *TableBuilder) Text(name string) *Column       { return t.Column(name, typeText) }
func (t *TableBuilder) Integer(name string) *Column    { return t.Column(name, typeInteger) }
func (t *TableBuilder) BigInteger(name string) *Column { return t.Column(name, typeBigInt) }
func (t *TableBuilder) Boolean(name string) *Column    { return t.Column(name, typeBoolean) }
func (t *TableBuilder) Timestamp(name string) *Column  { return t.Column(name, typeTimestamp) }
func (t *TableBuilder) Float(name string) *Column      { return t.Column(name, typeFloat) }

func (t *TableBuilder) primaryKey(kind KeyKind) {
	c := t.Column(ColumnID, typeKey)
	c.primary = true
	c.autoInc = kind == KeyNatural
}

func (t *TableBuilder) foreignKey(column string, kind KeyKind, refTable string) {
	c := t.Column(column, typeKey)
	if kind == KeyNatural {
		c.kind = typeBigInt
	}
	c.indexed = true
	t.fk = &foreignKey{column: column, refTable: refTable, kind: kind}
}

// Nullable allows NULL values.
func (c *Column) Nullable() *Column {
	c.nullable = true
	return c
}

// Default sets a literal SQL default.
func (c *Column) Default(literal string) *Column {
	c.def = literal
	return c
}

// Index requests a single-column index.
func (c *Column) Index() *Column {
	c.indexed = true
	return c
}

func (t *TableBuilder) sqlType(c *Column) string {
	pg := t.dialect == "postgres"
	switch c.kind {
	case typeString:
		return "VARCHAR(255)"
	case typeText:
		return "TEXT"
	case typeInteger:
		return "INTEGER"
	case typeBigInt:
		return "BIGINT"
	case typeBoolean:
		return "BOOLEAN"
	case typeTimestamp:
		if pg {
			return "TIMESTAMPTZ"
		}
		return "DATETIME"
	case typeFloat:
		if pg {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case typeKey:
		if c.primary && c.autoInc {
			if pg {
				return "BIGSERIAL"
			}
			return "INTEGER"
		}
		return "VARCHAR(36)"
	}
	return "TEXT"
}

func (t *TableBuilder) columnDef(c *Column) string {
	var b strings.Builder
	b.WriteString(c.name)
	b.WriteString(" ")
	b.WriteString(t.sqlType(c))
	if c.primary {
		b.WriteString(" PRIMARY KEY")
		if c.autoInc && t.dialect == "sqlite" {
			b.WriteString(" AUTOINCREMENT")
		}
		return b.String()
	}
	if !c.nullable {
		b.WriteString(" NOT NULL")
	}
	if c.def != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.def)
	}
	return b.String()
}

// statements renders the DDL for the collected columns: one CREATE TABLE (or
// one ALTER TABLE ADD COLUMN per column) followed by index statements.
func (t *TableBuilder) statements() []string {
	var stmts []string

	if t.alter {
		for _, c := range t.cols {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", t.name, t.columnDef(c)))
		}
	} else {
		defs := make([]string, 0, len(t.cols)+1)
		for _, c := range t.cols {
			defs = append(defs, t.columnDef(c))
		}
		if t.fk != nil {
			defs = append(defs, fmt.Sprintf(
				"FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
				t.fk.column, t.fk.refTable, ColumnID,
			))
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (%s)", t.name, strings.Join(defs, ", ")))
	}

	for _, c := range t.cols {
		if c.indexed {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
				t.name, c.name, t.name, c.name,
			))
		}
	}
	return stmts
}
